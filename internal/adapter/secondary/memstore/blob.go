package memstore

import (
	"context"
	"sync"

	"github.com/WRLC/alma-item-checks-webhook-service/internal/port/secondary"
)

// BlobStore keeps blobs in a map keyed by container and name.
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string]map[string][]byte
}

var _ secondary.BlobStore = (*BlobStore)(nil)

// NewBlobStore creates an empty blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string]map[string][]byte)}
}

// Upload writes data, replacing any existing blob.
func (b *BlobStore) Upload(_ context.Context, container, name string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.blobs[container]
	if !ok {
		c = make(map[string][]byte)
		b.blobs[container] = c
	}
	c[name] = append([]byte(nil), data...)
	return nil
}

// Get returns a copy of the blob.
func (b *BlobStore) Get(container, name string) ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, ok := b.blobs[container][name]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Count returns the number of blobs in container.
func (b *BlobStore) Count(container string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.blobs[container])
}
