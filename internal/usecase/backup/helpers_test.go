package backup

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	adapterrepo "github.com/eslsoft/deeplisten/internal/adapter/repository"
	"github.com/eslsoft/deeplisten/internal/entity"
	"github.com/eslsoft/deeplisten/internal/infrastructure/database"
	"github.com/eslsoft/deeplisten/internal/repository"
)

var errBlobMissing = errors.New("blob missing")

type fakeBlobs struct {
	mu      sync.RWMutex
	objects map[entity.ObjectRef][]byte
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[entity.ObjectRef][]byte)}
}

func (f *fakeBlobs) Upload(_ context.Context, bucket, key string, data []byte) (entity.ObjectRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref := entity.ObjectRef{Bucket: bucket, Key: key}
	f.objects[ref] = append([]byte(nil), data...)
	return ref, nil
}

func (f *fakeBlobs) Download(_ context.Context, ref entity.ObjectRef) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	data, ok := f.objects[ref]
	if !ok {
		return nil, errBlobMissing
	}
	return data, nil
}

func (f *fakeBlobs) Delete(_ context.Context, ref entity.ObjectRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, ref)
	return nil
}

func (f *fakeBlobs) count(prefix string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := 0
	for ref := range f.objects {
		if strings.HasPrefix(ref.Key, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeBlobs) has(bucket, key string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.objects[entity.ObjectRef{Bucket: bucket, Key: key}]
	return ok
}

type testEnv struct {
	store repository.Store
	blobs *fakeBlobs
	svc   *Service
}

func newTestEnv(t *testing.T, name string) *testEnv {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), name+".db") + "?_fk=1&cache=shared"
	db, cleanup, err := database.OpenSQLite(dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(cleanup)
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	store := adapterrepo.NewStore(adapterrepo.NewConn(db))
	blobs := newFakeBlobs()
	svc, err := NewService(store, blobs,
		WithBatchSize(2),
		WithMediaBucket("media"),
		WithLogger(logger),
		WithClock(func() time.Time { return time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC) }),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(svc.Close)
	return &testEnv{store: store, blobs: blobs, svc: svc}
}

func (e *testEnv) createUser(t *testing.T, id string) *entity.User {
	t.Helper()
	u, err := e.store.Users().Create(context.Background(), &entity.User{
		ID:           id,
		Username:     id,
		Email:        id + "@example.com",
		PasswordHash: "secret-hash",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// seedVocabulary creates five words, three NEW and two MASTERED, for userID.
func (e *testEnv) seedVocabulary(t *testing.T, userID string) []entity.Word {
	t.Helper()
	ctx := context.Background()
	texts := []string{"Apple", "banana", "Cherry ", "date", "elder"}
	words := make([]entity.Word, 0, len(texts))
	for i, text := range texts {
		w, err := e.store.Words().Create(ctx, &entity.Word{Text: text, Language: entity.LanguageEnglish})
		if err != nil {
			t.Fatalf("create word %q: %v", text, err)
		}
		state := entity.StatusNew
		if i >= 3 {
			state = entity.StatusMastered
		}
		if _, err := e.store.Statuses().Create(ctx, &entity.UserWordStatus{
			UserID:    userID,
			WordID:    w.ID,
			State:     state,
			Scheduler: []byte(`{"interval":3}`),
		}); err != nil {
			t.Fatalf("create status: %v", err)
		}
		words = append(words, *w)
	}
	return words
}

func (e *testEnv) count(t *testing.T, c repository.Collection, userID string) int {
	t.Helper()
	n, err := e.store.Purger().Count(context.Background(), c, repository.PurgeScope{UserID: userID})
	if err != nil {
		t.Fatalf("count %s: %v", c, err)
	}
	return n
}

func (e *testEnv) countRun(t *testing.T, c repository.Collection, runID string) int {
	t.Helper()
	n, err := e.store.Purger().Count(context.Background(), c, repository.PurgeScope{ImportRun: runID})
	if err != nil {
		t.Fatalf("count %s: %v", c, err)
	}
	return n
}

func strPtr(s string) *string { return &s }
