package domain

import (
	"bytes"
	"errors"
	"io"
	"path"
	"strings"
)

// MaxUploadBytes is the largest file accepted for submission (10 MiB).
const MaxUploadBytes int64 = 10 * 1024 * 1024

var allowedExtensions = map[string]struct{}{
	"xlsx": {},
	"xls":  {},
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

var (
	ErrUnsupportedExtension = errors.New("unsupported file extension")
	ErrFileTooLarge         = errors.New("file exceeds the 10 MiB limit")
	ErrNoContent            = errors.New("upload item has no content")
)

// ContentOpener returns a fresh reader over an item's bytes.
type ContentOpener func() (io.ReadCloser, error)

// UploadItem is a candidate file for submission.
type UploadItem struct {
	Name string
	Size int64
	// MIME is informational; acceptance is decided by extension and size.
	MIME string
	Open ContentOpener
}

// NewBytesItem wraps an in-memory payload as an UploadItem.
func NewBytesItem(name string, data []byte) UploadItem {
	return UploadItem{
		Name: name,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// Extension returns the lower-cased extension without the dot.
func (u UploadItem) Extension() string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(u.Name)), ".")
}

// Validate checks the admission rule: allowed extension and size <= MaxUploadBytes.
// Zero-byte files pass.
func (u UploadItem) Validate() error {
	if _, ok := allowedExtensions[u.Extension()]; !ok {
		return ErrUnsupportedExtension
	}
	if u.Size < 0 || u.Size > MaxUploadBytes {
		return ErrFileTooLarge
	}
	return nil
}

// AllowedExtensions lists the accepted extensions, for help texts.
func AllowedExtensions() []string {
	return []string{"xlsx", "xls", "pdf", "jpg", "jpeg", "png"}
}
