package storage

import (
	"context"
	"time"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

// FileStorage defines the object storage operations used for copy archives.
type FileStorage interface {
	// PutObject writes body under objectKey with optional user metadata.
	PutObject(ctx context.Context, objectKey string, contentType string, body []byte, metadata map[string]string) error

	// GeneratePresignedDownloadURL creates a temporary URL that allows GET requests
	// for downloading an archived copy directly from the storage provider.
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)

	// DeleteObject removes an object from the storage provider.
	DeleteObject(ctx context.Context, objectKey string) error
}
