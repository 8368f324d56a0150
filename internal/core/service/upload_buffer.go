package service

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/billsight/billsight-client/internal/core/domain"
	"github.com/billsight/billsight-client/internal/metrics"
)

var ErrIndexOutOfRange = errors.New("upload buffer: index out of range")

// UploadBuffer keeps the ordered set of files chosen for one submission slot.
// Only valid files ever enter it.
type UploadBuffer struct {
	mu       sync.Mutex
	name     string
	items    []domain.UploadItem
	log      zerolog.Logger
	onReject func(domain.UploadItem, error)
}

// NewUploadBuffer creates an empty buffer. name labels log lines
// ("document", "purchase", "sales").
func NewUploadBuffer(name string, log zerolog.Logger) *UploadBuffer {
	return &UploadBuffer{name: name, log: log}
}

// OnReject registers fn to be told why each dropped candidate was refused.
func (b *UploadBuffer) OnReject(fn func(domain.UploadItem, error)) {
	b.mu.Lock()
	b.onReject = fn
	b.mu.Unlock()
}

// Admit appends every valid candidate, preserving order, and returns the
// accepted items and how many were dropped.
func (b *UploadBuffer) Admit(candidates ...domain.UploadItem) (accepted []domain.UploadItem, rejected int) {
	b.mu.Lock()
	onReject := b.onReject
	b.mu.Unlock()

	accepted = make([]domain.UploadItem, 0, len(candidates))
	for _, c := range candidates {
		if err := c.Validate(); err != nil {
			rejected++
			metrics.UploadRejectionsTotal.WithLabelValues(rejectionReason(err)).Inc()
			b.log.Debug().Str("buffer", b.name).Str("file", c.Name).Int64("size", c.Size).Err(err).Msg("file rejected")
			if onReject != nil {
				onReject(c, err)
			}
			continue
		}
		accepted = append(accepted, c)
	}

	b.mu.Lock()
	b.items = append(b.items, accepted...)
	b.mu.Unlock()
	return accepted, rejected
}

// Remove drops the item at index; the rest keep their relative order.
func (b *UploadBuffer) Remove(index int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if index < 0 || index >= len(b.items) {
		return fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, index, len(b.items))
	}
	b.items = append(b.items[:index:index], b.items[index+1:]...)
	return nil
}

func (b *UploadBuffer) Clear() {
	b.mu.Lock()
	b.items = nil
	b.mu.Unlock()
}

// Snapshot returns a copy of the buffered items in order.
func (b *UploadBuffer) Snapshot() []domain.UploadItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.UploadItem, len(b.items))
	copy(out, b.items)
	return out
}

func (b *UploadBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

func rejectionReason(err error) string {
	if errors.Is(err, domain.ErrFileTooLarge) {
		return "size"
	}
	return "extension"
}
