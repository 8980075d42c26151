// Package blob stores archives and media in named buckets.
package blob

import (
	"context"
	"errors"
	"time"
)

var (
	ErrBucketNotFound = errors.New("bucket not found")
	ErrObjectTooLarge = errors.New("object exceeds bucket capacity")
	ErrObjectNotFound = errors.New("object not found")
)

// Backend is a bucket/object store. Implementations report missing buckets
// with ErrBucketNotFound and oversize writes with ErrObjectTooLarge.
type Backend interface {
	CreateBucket(ctx context.Context, bucket string, maxObjectBytes int64) error
	// BucketLimit returns the bucket's object ceiling; zero means unlimited.
	BucketLimit(ctx context.Context, bucket string) (int64, error)
	SetBucketLimit(ctx context.Context, bucket string, maxObjectBytes int64) error
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	// Delete removes an object; a missing object is not an error.
	Delete(ctx context.Context, bucket, key string) error
	SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
	Close() error
}

// BucketPolicy is the configured ceiling of one bucket.
type BucketPolicy struct {
	Name           string
	MaxObjectBytes int64
}
