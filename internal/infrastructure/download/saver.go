// Package download writes finished spreadsheets to the download directory.
package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/billsight/billsight-client/internal/core/ports"
)

const maxCollisions = 1000

var ErrNoFreeName = errors.New("download: no free file name")

var _ ports.FileSaver = (*Saver)(nil)

// Saver stores payloads under dir without overwriting: a taken name gets a
// " (n)" suffix before the extension.
type Saver struct {
	fs  afero.Fs
	dir string
	log zerolog.Logger
}

func NewSaver(fs afero.Fs, dir string, log zerolog.Logger) *Saver {
	return &Saver{fs: fs, dir: dir, log: log}
}

func (s *Saver) Save(ctx context.Context, filename string, payload []byte) (string, error) {
	name := filepath.Base(filename)
	if name == "." || name == string(filepath.Separator) || name == ".." {
		return "", fmt.Errorf("download: invalid file name %q", filename)
	}
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 0; n < maxCollisions; n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate := name
		if n > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, n, ext)
		}
		path := filepath.Join(s.dir, candidate)

		f, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create %s: %w", path, err)
		}
		if _, err := f.Write(payload); err != nil {
			_ = f.Close()
			_ = s.fs.Remove(path)
			return "", fmt.Errorf("write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("close %s: %w", path, err)
		}

		s.log.Debug().Str("path", path).Int("bytes", len(payload)).Msg("download saved")
		return path, nil
	}
	return "", fmt.Errorf("%w for %s in %s", ErrNoFreeName, name, s.dir)
}
