package job

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	adapterrepo "github.com/eslsoft/deeplisten/internal/adapter/repository"
	"github.com/eslsoft/deeplisten/internal/entity"
	"github.com/eslsoft/deeplisten/internal/infrastructure/database"
	"github.com/eslsoft/deeplisten/internal/repository"
)

func newJobRepo(t *testing.T) repository.JobRepository {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "jobs.db") + "?_fk=1&cache=shared"
	db, cleanup, err := database.OpenSQLite(dsn)
	require.NoError(t, err)
	t.Cleanup(cleanup)
	require.NoError(t, db.Migrate(context.Background()))
	return adapterrepo.NewJobRepository(adapterrepo.NewConn(db))
}

func quietLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeBlobs struct {
	mu      sync.Mutex
	objects map[entity.ObjectRef][]byte
	signs   atomic.Int32
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[entity.ObjectRef][]byte)}
}

func (f *fakeBlobs) Upload(_ context.Context, bucket, key string, data []byte) (entity.ObjectRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref := entity.ObjectRef{Bucket: bucket, Key: key}
	f.objects[ref] = data
	return ref, nil
}

func (f *fakeBlobs) SignedURL(_ context.Context, ref entity.ObjectRef, ttl time.Duration) (string, error) {
	n := f.signs.Add(1)
	return fmt.Sprintf("https://blobs.test/%s?ttl=%s&n=%d", ref, ttl, n), nil
}

type countingWaker struct{ n atomic.Int32 }

func (w *countingWaker) Wake() { w.n.Add(1) }
