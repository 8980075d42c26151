package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/deeplisten/internal/entity"
)

var (
	// uploadTotal counts uploads by bucket role and result
	uploadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deeplisten_blob_upload_total",
		Help: "Total blob uploads by result",
	}, []string{"result"})

	// uploadBytes tracks uploaded object sizes
	uploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "deeplisten_blob_upload_bytes",
		Help:    "Uploaded object size in bytes",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 12), // 1KiB to ~4GiB
	})

	// recoveryTotal counts bucket creations and capacity fallbacks
	recoveryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deeplisten_blob_recovery_total",
		Help: "Storage recoveries by kind",
	}, []string{"kind"})
)

// Gateway uploads and downloads blobs. Missing buckets are created on first
// write; objects over a bucket's ceiling are redirected to the fallback bucket.
type Gateway struct {
	backend  Backend
	fallback string
	logger   logrus.FieldLogger

	mu     sync.RWMutex
	limits map[string]int64
}

// NewGateway constructs a gateway over backend. fallback names the
// large-capacity bucket and may be empty to disable redirection.
func NewGateway(backend Backend, buckets []BucketPolicy, fallback string, logger logrus.FieldLogger) *Gateway {
	limits := make(map[string]int64, len(buckets))
	for _, b := range buckets {
		limits[b.Name] = b.MaxObjectBytes
	}
	return &Gateway{
		backend:  backend,
		fallback: fallback,
		logger:   logger.WithField("component", "blob"),
		limits:   limits,
	}
}

// Upload stores data under bucket/key and returns the reference of the bucket
// that actually holds it.
func (g *Gateway) Upload(ctx context.Context, bucket, key string, data []byte) (entity.ObjectRef, error) {
	uploadBytes.Observe(float64(len(data)))

	err := g.put(ctx, bucket, key, data)
	if err == nil {
		uploadTotal.WithLabelValues("ok").Inc()
		return entity.ObjectRef{Bucket: bucket, Key: key}, nil
	}
	if !errors.Is(err, ErrObjectTooLarge) || g.fallback == "" || g.fallback == bucket {
		uploadTotal.WithLabelValues("error").Inc()
		return entity.ObjectRef{}, err
	}

	size := int64(len(data))
	g.logger.WithFields(logrus.Fields{"bucket": bucket, "fallback": g.fallback, "key": key, "bytes": size}).
		Warn("object too large for bucket, using fallback")
	recoveryTotal.WithLabelValues("fallback").Inc()

	if err := g.ensureCapacity(ctx, g.fallback, size); err != nil {
		uploadTotal.WithLabelValues("error").Inc()
		return entity.ObjectRef{}, fmt.Errorf("prepare fallback bucket %s: %w", g.fallback, err)
	}
	if err := g.put(ctx, g.fallback, key, data); err != nil {
		uploadTotal.WithLabelValues("error").Inc()
		return entity.ObjectRef{}, fmt.Errorf("upload to fallback bucket %s: %w", g.fallback, err)
	}
	uploadTotal.WithLabelValues("fallback").Inc()
	return entity.ObjectRef{Bucket: g.fallback, Key: key}, nil
}

// put writes once, creating the bucket and retrying a single time when it is missing.
func (g *Gateway) put(ctx context.Context, bucket, key string, data []byte) error {
	if limit := g.limit(bucket); limit > 0 && int64(len(data)) > limit {
		return fmt.Errorf("%w: %d bytes > %d in %s", ErrObjectTooLarge, len(data), limit, bucket)
	}

	contentType := contentTypeOf(key)
	err := g.backend.Put(ctx, bucket, key, data, contentType)
	if !errors.Is(err, ErrBucketNotFound) {
		return err
	}

	g.logger.WithField("bucket", bucket).Info("bucket missing, creating it")
	recoveryTotal.WithLabelValues("create_bucket").Inc()
	if err := g.backend.CreateBucket(ctx, bucket, g.limit(bucket)); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return g.backend.Put(ctx, bucket, key, data, contentType)
}

// ensureCapacity makes bucket exist with a ceiling of at least size.
func (g *Gateway) ensureCapacity(ctx context.Context, bucket string, size int64) error {
	want := max(g.limit(bucket), size)
	current, err := g.backend.BucketLimit(ctx, bucket)
	switch {
	case errors.Is(err, ErrBucketNotFound):
		recoveryTotal.WithLabelValues("create_bucket").Inc()
		if err := g.backend.CreateBucket(ctx, bucket, want); err != nil {
			return err
		}
	case err != nil:
		return err
	case current > 0 && current < size:
		recoveryTotal.WithLabelValues("resize_bucket").Inc()
		if err := g.backend.SetBucketLimit(ctx, bucket, want); err != nil {
			return err
		}
	}

	g.mu.Lock()
	if limit := g.limits[bucket]; limit > 0 && limit < size {
		g.limits[bucket] = want
	}
	g.mu.Unlock()
	return nil
}

func (g *Gateway) limit(bucket string) int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.limits[bucket]
}

// Download returns the bytes referenced by ref.
func (g *Gateway) Download(ctx context.Context, ref entity.ObjectRef) ([]byte, error) {
	data, err := g.backend.Get(ctx, ref.Bucket, ref.Key)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", ref, err)
	}
	return data, nil
}

// Open returns a reader over the object referenced by ref.
func (g *Gateway) Open(ctx context.Context, ref entity.ObjectRef) (io.ReadCloser, error) {
	data, err := g.Download(ctx, ref)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes the object referenced by ref.
func (g *Gateway) Delete(ctx context.Context, ref entity.ObjectRef) error {
	if err := g.backend.Delete(ctx, ref.Bucket, ref.Key); err != nil {
		return fmt.Errorf("delete %s: %w", ref, err)
	}
	return nil
}

// SignedURL returns a time-limited download link for ref.
func (g *Gateway) SignedURL(ctx context.Context, ref entity.ObjectRef, ttl time.Duration) (string, error) {
	u, err := g.backend.SignedURL(ctx, ref.Bucket, ref.Key, ttl)
	if err != nil {
		return "", fmt.Errorf("sign %s: %w", ref, err)
	}
	return u, nil
}

// Close releases the backend.
func (g *Gateway) Close() error {
	return g.backend.Close()
}

func contentTypeOf(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
