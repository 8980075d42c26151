package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

const (
	bucketPrefix = "b/"
	objectPrefix = "o/"
)

// BadgerConfig configures the embedded backend.
type BadgerConfig struct {
	Path     string
	InMemory bool
	Logger   logrus.FieldLogger
}

type bucketMeta struct {
	MaxObjectBytes int64     `json:"max_object_bytes"`
	CreatedAt      time.Time `json:"created_at"`
}

// BadgerBackend keeps buckets and objects in an embedded badger database.
// Signed URLs point at the HTTP server's blob handler.
type BadgerBackend struct {
	db     *badger.DB
	signer *URLSigner
}

type badgerLogger struct {
	logger logrus.FieldLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) { l.logger.Errorf(format, args...) }

func (l *badgerLogger) Warningf(format string, args ...interface{}) { l.logger.Warnf(format, args...) }

func (l *badgerLogger) Infof(format string, args ...interface{}) { l.logger.Debugf(format, args...) }

func (l *badgerLogger) Debugf(format string, args ...interface{}) { l.logger.Debugf(format, args...) }

// OpenBadger opens the embedded backend.
func OpenBadger(cfg BadgerConfig, signer *URLSigner) (*BadgerBackend, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent blob store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create blob directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger.WithField("component", "badger")})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger blob store: %w", err)
	}
	return &BadgerBackend{db: db, signer: signer}, nil
}

func (b *BadgerBackend) CreateBucket(_ context.Context, bucket string, maxObjectBytes int64) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(bucketKey(bucket)); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return putMeta(txn, bucket, bucketMeta{MaxObjectBytes: maxObjectBytes, CreatedAt: time.Now().UTC()})
	})
}

func (b *BadgerBackend) BucketLimit(_ context.Context, bucket string) (int64, error) {
	var meta bucketMeta
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		meta, err = getMeta(txn, bucket)
		return err
	})
	return meta.MaxObjectBytes, err
}

func (b *BadgerBackend) SetBucketLimit(_ context.Context, bucket string, maxObjectBytes int64) error {
	return b.db.Update(func(txn *badger.Txn) error {
		meta, err := getMeta(txn, bucket)
		if err != nil {
			return err
		}
		meta.MaxObjectBytes = maxObjectBytes
		return putMeta(txn, bucket, meta)
	})
}

func (b *BadgerBackend) Put(ctx context.Context, bucket, key string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		meta, err := getMeta(txn, bucket)
		if err != nil {
			return err
		}
		if meta.MaxObjectBytes > 0 && int64(len(data)) > meta.MaxObjectBytes {
			return fmt.Errorf("%w: %d bytes > %d in %s", ErrObjectTooLarge, len(data), meta.MaxObjectBytes, bucket)
		}
		return txn.Set(objectKey(bucket, key), data)
	})
}

func (b *BadgerBackend) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		if _, err := getMeta(txn, bucket); err != nil {
			return err
		}
		item, err := txn.Get(objectKey(bucket, key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, key)
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	return data, err
}

func (b *BadgerBackend) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := getMeta(txn, bucket); err != nil {
			return err
		}
		return txn.Delete(objectKey(bucket, key))
	})
}

func (b *BadgerBackend) SignedURL(_ context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if b.signer == nil {
		return "", errors.New("badger backend has no url signer")
	}
	return b.signer.Sign(bucket, key, ttl), nil
}

func (b *BadgerBackend) Close() error {
	return b.db.Close()
}

func bucketKey(bucket string) []byte {
	return []byte(bucketPrefix + bucket)
}

func objectKey(bucket, key string) []byte {
	return []byte(objectPrefix + bucket + "/" + key)
}

func getMeta(txn *badger.Txn, bucket string) (bucketMeta, error) {
	var meta bucketMeta
	item, err := txn.Get(bucketKey(bucket))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return meta, fmt.Errorf("%w: %s", ErrBucketNotFound, bucket)
	}
	if err != nil {
		return meta, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &meta)
	})
	return meta, err
}

func putMeta(txn *badger.Txn, bucket string, meta bucketMeta) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return txn.Set(bucketKey(bucket), raw)
}
