package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/deeplisten/internal/entity"
	"github.com/eslsoft/deeplisten/internal/repository"
)

const (
	defaultBatchSize   = 512
	defaultMediaBucket = "deeplisten-media"
	wordCacheKeys      = 100_000
)

// BlobStore is the subset of the storage gateway used for media and archives.
type BlobStore interface {
	Upload(ctx context.Context, bucket, key string, data []byte) (entity.ObjectRef, error)
	Download(ctx context.Context, ref entity.ObjectRef) ([]byte, error)
	Delete(ctx context.Context, ref entity.ObjectRef) error
}

// ProgressReporter receives per-section progress callbacks.
type ProgressReporter interface {
	StartSection(section string, total int)
	Increment(section string, delta int)
	FinishSection(section string)
}

type noopProgress struct{}

func (noopProgress) StartSection(string, int) {}
func (noopProgress) Increment(string, int)    {}
func (noopProgress) FinishSection(string)     {}

// Service exports a user's data into a document tree and imports such a
// tree back into the live store.
type Service struct {
	store       repository.Store
	blobs       BlobStore
	logger      logrus.FieldLogger
	batchSize   int
	mediaBucket string
	clock       func() time.Time
	words       *ristretto.Cache[string, string]
}

type Option func(*Service)

func WithBatchSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithMediaBucket sets the bucket holding material media and avatars.
func WithMediaBucket(bucket string) Option {
	return func(s *Service) {
		if bucket != "" {
			s.mediaBucket = bucket
		}
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService constructs a backup service over the live store and blob storage.
func NewService(store repository.Store, blobs BlobStore, opts ...Option) (*Service, error) {
	words, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: wordCacheKeys * 10,
		MaxCost:     wordCacheKeys,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create word cache: %w", err)
	}
	svc := &Service{
		store:       store,
		blobs:       blobs,
		logger:      logrus.StandardLogger(),
		batchSize:   defaultBatchSize,
		mediaBucket: defaultMediaBucket,
		clock:       time.Now,
		words:       words,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Close releases the word cache.
func (s *Service) Close() {
	s.words.Close()
}

// Eraser returns a cascade eraser over the service's store.
func (s *Service) Eraser() *Eraser {
	return NewEraser(s.store.Purger(), s.batchSize, s.logger)
}

// eachPage calls fn for every page returned by list until a short page.
func eachPage[T any](ctx context.Context, size int, list func(context.Context, repository.Pagination) ([]T, error), fn func([]T) error) error {
	page := repository.FirstPage(int32(size))
	for {
		items, err := list(ctx, page)
		if err != nil {
			return err
		}
		if len(items) > 0 {
			if err := fn(items); err != nil {
				return err
			}
		}
		if len(items) < size {
			return nil
		}
		page.Next()
	}
}

// listAll collects every page of list.
func listAll[T any](ctx context.Context, size int, list func(context.Context, repository.Pagination) ([]T, error)) ([]T, error) {
	var all []T
	err := eachPage(ctx, size, list, func(items []T) error {
		all = append(all, items...)
		return nil
	})
	return all, err
}
