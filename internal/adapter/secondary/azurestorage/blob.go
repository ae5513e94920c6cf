package azurestorage

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/WRLC/alma-item-checks-webhook-service/internal/port/secondary"
)

// BlobStore implements secondary.BlobStore on Azure Blob Storage.
type BlobStore struct {
	client *azblob.Client
	tracer trace.Tracer
	logger *zap.Logger
}

var _ secondary.BlobStore = (*BlobStore)(nil)

// NewBlobStore creates a blob gateway from a storage connection string.
// A nil tp uses the global tracer provider.
func NewBlobStore(connectionString string, tp trace.TracerProvider, logger *zap.Logger) (*BlobStore, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure Blob client: %w", err)
	}

	return &BlobStore{
		client: client,
		tracer: tracerFrom(tp),
		logger: logger.Named("azure-blob"),
	}, nil
}

// Ensure creates the named containers when they do not exist.
func (b *BlobStore) Ensure(ctx context.Context, containers ...string) error {
	for _, name := range containers {
		_, err := b.client.CreateContainer(ctx, name, nil)
		if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return fmt.Errorf("creating container %q: %w", name, err)
		}
	}
	return nil
}

// Upload writes data as a JSON block blob, replacing any existing blob.
func (b *BlobStore) Upload(ctx context.Context, container, name string, data []byte) error {
	ctx, span := b.tracer.Start(ctx, "azurestorage.BlobStore.Upload",
		trace.WithAttributes(
			attribute.String("container", container),
			attribute.String("blob", name),
			attribute.Int("size", len(data)),
		),
	)
	defer span.End()

	_, err := b.client.UploadBuffer(ctx, container, name, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: to.Ptr("application/json"),
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		return fmt.Errorf("failed to upload blob %s/%s: %w", container, name, err)
	}

	b.logger.Debug("blob uploaded",
		zap.String("container", container),
		zap.String("blob", name),
		zap.Int("size", len(data)),
	)
	return nil
}

// Name identifies the gateway in the health report.
func (b *BlobStore) Name() string {
	return "blob"
}

// Check reads the blob service properties.
func (b *BlobStore) Check(ctx context.Context) error {
	_, err := b.client.ServiceClient().GetProperties(ctx, nil)
	return err
}
