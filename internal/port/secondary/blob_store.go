package secondary

import "context"

// BlobStore defines the secondary port for writing item snapshots.
type BlobStore interface {
	// Upload writes data to container/name, replacing any existing blob.
	Upload(ctx context.Context, container, name string, data []byte) error
}
