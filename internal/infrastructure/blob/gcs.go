package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// limitLabel is the bucket label holding the object ceiling in bytes.
const limitLabel = "max-object-bytes"

// GCSConfig configures the Google Cloud Storage backend.
type GCSConfig struct {
	ProjectID       string
	CredentialsFile string
}

// GCSBackend stores blobs in Google Cloud Storage. Bucket ceilings live in
// bucket labels since GCS has no native per-object limit.
type GCSBackend struct {
	client    *storage.Client
	projectID string
}

// NewGCSBackend creates a storage client from a service account key file, or
// from application default credentials when no file is configured.
func NewGCSBackend(ctx context.Context, cfg GCSConfig) (*GCSBackend, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		if _, err := os.Stat(cfg.CredentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s", cfg.CredentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &GCSBackend{client: client, projectID: cfg.ProjectID}, nil
}

func (g *GCSBackend) CreateBucket(ctx context.Context, bucket string, maxObjectBytes int64) error {
	attrs := &storage.BucketAttrs{Labels: map[string]string{}}
	if maxObjectBytes > 0 {
		attrs.Labels[limitLabel] = strconv.FormatInt(maxObjectBytes, 10)
	}
	err := g.client.Bucket(bucket).Create(ctx, g.projectID, attrs)
	if apiErr := asAPIError(err); apiErr != nil && apiErr.Code == http.StatusConflict {
		return nil
	}
	return translateGCSError(err)
}

func (g *GCSBackend) BucketLimit(ctx context.Context, bucket string) (int64, error) {
	attrs, err := g.client.Bucket(bucket).Attrs(ctx)
	if err != nil {
		return 0, translateGCSError(err)
	}
	raw, ok := attrs.Labels[limitLabel]
	if !ok {
		return 0, nil
	}
	limit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bucket %s: bad %s label %q", bucket, limitLabel, raw)
	}
	return limit, nil
}

func (g *GCSBackend) SetBucketLimit(ctx context.Context, bucket string, maxObjectBytes int64) error {
	var update storage.BucketAttrsToUpdate
	update.SetLabel(limitLabel, strconv.FormatInt(maxObjectBytes, 10))
	_, err := g.client.Bucket(bucket).Update(ctx, update)
	return translateGCSError(err)
}

func (g *GCSBackend) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	limit, err := g.BucketLimit(ctx, bucket)
	if err != nil {
		return err
	}
	if limit > 0 && int64(len(data)) > limit {
		return fmt.Errorf("%w: %d bytes > %d in %s", ErrObjectTooLarge, len(data), limit, bucket)
	}

	writer := g.client.Bucket(bucket).Object(key).NewWriter(ctx)
	writer.ContentType = contentType
	writer.CacheControl = "no-cache, no-store, must-revalidate"
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("write gs://%s/%s: %w", bucket, key, translateGCSError(err))
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close gs://%s/%s: %w", bucket, key, translateGCSError(err))
	}
	return nil
}

func (g *GCSBackend) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	reader, err := g.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, translateGCSError(err)
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

func (g *GCSBackend) Delete(ctx context.Context, bucket, key string) error {
	err := g.client.Bucket(bucket).Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return translateGCSError(err)
}

func (g *GCSBackend) SignedURL(_ context.Context, bucket, key string, ttl time.Duration) (string, error) {
	return g.client.Bucket(bucket).SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(ttl),
	})
}

func (g *GCSBackend) Close() error {
	return g.client.Close()
}

func asAPIError(err error) *googleapi.Error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}

func translateGCSError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrBucketNotExist):
		return fmt.Errorf("%w: %v", ErrBucketNotFound, err)
	case errors.Is(err, storage.ErrObjectNotExist):
		return fmt.Errorf("%w: %v", ErrObjectNotFound, err)
	}
	if apiErr := asAPIError(err); apiErr != nil {
		switch apiErr.Code {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrBucketNotFound, err)
		case http.StatusRequestEntityTooLarge:
			return fmt.Errorf("%w: %v", ErrObjectTooLarge, err)
		}
	}
	return err
}
