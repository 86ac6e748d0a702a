package storage

import (
	"context"
	"io"
)

type ObjectStore interface {
	CreateBucket(ctx context.Context, bucket string) error

	PutObject(ctx context.Context, bucket, key string, data io.Reader) error

	GetObject(ctx context.Context, bucket, key string) ([]byte, error)

	// UploadFile copies a local file to bucket/key. With overwrite false the
	// upload fails if an object already exists at that key.
	UploadFile(ctx context.Context, localPath, bucket, key string, overwrite bool) error

	// Close releases the connection to the storage endpoint.
	Close()
}
