package devbundler

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/helix/internal/common"
)

// BlobStore keeps serialized data items by identifier.
type BlobStore interface {
	Put(ctx context.Context, id string, item []byte) error
	// Get fails with common.ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) ([]byte, error)
	Has(ctx context.Context, id string) (bool, error)
}

type MemoryBlobs struct {
	mu    sync.RWMutex
	items map[string][]byte
}

func NewMemoryBlobs() *MemoryBlobs {
	return &MemoryBlobs{items: map[string][]byte{}}
}

func (m *MemoryBlobs) Put(_ context.Context, id string, item []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[id] = append([]byte(nil), item...)
	return nil
}

func (m *MemoryBlobs) Get(_ context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: item %s", common.ErrNotFound, id)
	}
	return b, nil
}

func (m *MemoryBlobs) Has(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.items[id]
	return ok, nil
}
