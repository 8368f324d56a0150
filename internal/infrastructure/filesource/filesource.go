// Package filesource turns local paths into upload candidates.
package filesource

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"

	"github.com/billsight/billsight-client/internal/core/domain"
)

// Source reads candidate files from a filesystem.
type Source struct {
	fs afero.Fs
}

func New(fs afero.Fs) *Source {
	return &Source{fs: fs}
}

// Item stats path and sniffs its MIME type from the leading bytes. The
// content itself is read lazily through the item's opener, so a file that
// fails admission is never read in full.
func (s *Source) Item(path string) (domain.UploadItem, error) {
	info, err := s.fs.Stat(path)
	if err != nil {
		return domain.UploadItem{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return domain.UploadItem{}, fmt.Errorf("%s is a directory", path)
	}

	item := domain.UploadItem{
		Name: filepath.Base(path),
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) {
			return s.fs.Open(path)
		},
	}
	item.MIME, err = s.sniff(path)
	if err != nil {
		return domain.UploadItem{}, err
	}
	return item, nil
}

// Items resolves every path, stopping at the first that cannot be read.
func (s *Source) Items(paths ...string) ([]domain.UploadItem, error) {
	items := make([]domain.UploadItem, 0, len(paths))
	for _, p := range paths {
		it, err := s.Item(p)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

func (s *Source) sniff(path string) (string, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return "", fmt.Errorf("detect type of %s: %w", path, err)
	}
	return mt.String(), nil
}
