package store

import (
	"context"
	"sync"

	"timeclock/pkg/platform/sentinel"
)

// MemoryBackend keeps the document in process memory. It backs tests and
// ephemeral demo kiosks.
type MemoryBackend struct {
	mu     sync.RWMutex
	data   []byte
	writes int
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (b *MemoryBackend) Read(_ context.Context) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.data == nil {
		return nil, sentinel.ErrNotFound
	}
	return append([]byte(nil), b.data...), nil
}

func (b *MemoryBackend) Write(_ context.Context, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append([]byte(nil), data...)
	b.writes++
	return nil
}

func (b *MemoryBackend) WriteIfVersion(_ context.Context, data []byte, expected int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data != nil {
		if err := versionMatches(b.data, expected); err != nil {
			return err
		}
	}
	b.data = append([]byte(nil), data...)
	b.writes++
	return nil
}

// Writes reports how many times the document has been written.
func (b *MemoryBackend) Writes() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.writes
}
