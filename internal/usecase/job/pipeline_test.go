package job

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	adapterrepo "github.com/eslsoft/deeplisten/internal/adapter/repository"
	"github.com/eslsoft/deeplisten/internal/entity"
	"github.com/eslsoft/deeplisten/internal/infrastructure/blob"
	"github.com/eslsoft/deeplisten/internal/infrastructure/database"
	"github.com/eslsoft/deeplisten/internal/usecase/backup"
)

func TestExportPipeline_OversizedArchiveLandsInFallbackBucket(t *testing.T) {
	ctx := context.Background()
	logger := quietLogger()

	dsn := "file:" + filepath.Join(t.TempDir(), "pipeline.db") + "?_fk=1&cache=shared"
	db, cleanup, err := database.OpenSQLite(dsn)
	require.NoError(t, err)
	t.Cleanup(cleanup)
	require.NoError(t, db.Migrate(ctx))
	conn := adapterrepo.NewConn(db)
	store := adapterrepo.NewStore(conn)
	jobs := adapterrepo.NewJobRepository(conn)

	_, err = store.Users().Create(ctx, &entity.User{ID: "u1", Username: "u1", DisplayName: "Listener"})
	require.NoError(t, err)
	for _, text := range []string{"harbor", "lantern", "meadow"} {
		_, err := store.Words().Create(ctx, &entity.Word{Text: text, Language: entity.LanguageEnglish})
		require.NoError(t, err)
	}

	signer, err := blob.NewURLSigner("secret", "http://localhost:8080")
	require.NoError(t, err)
	backend, err := blob.OpenBadger(blob.BadgerConfig{InMemory: true}, signer)
	require.NoError(t, err)
	gw := blob.NewGateway(backend, []blob.BucketPolicy{
		{Name: "archives", MaxObjectBytes: 16},
		{Name: "archives-large", MaxObjectBytes: 1 << 20},
	}, "archives-large", logger)
	t.Cleanup(func() { _ = gw.Close() })

	engine, err := backup.NewService(store, gw, backup.WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	runner := NewRunner(jobs, engine, RunnerConfig{
		ScratchDir:    t.TempDir(),
		ArchiveBucket: "archives",
	}, logger)
	svc := NewService(jobs, gw, runner, ServiceConfig{UploadsBucket: "uploads", SignedURLTTL: time.Minute}, logger)

	job, err := svc.CreateExport(ctx, CreateExportInput{UserID: "u1", Include: entity.AllExportOptions()})
	require.NoError(t, err)
	ran, err := runner.RunPending(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, ran)

	got, err := svc.Get(ctx, "u1", job.ID)
	require.NoError(t, err)
	require.Equal(t, entity.JobStatusFinished, got.Status, got.Error)
	require.Equal(t, &entity.ObjectRef{Bucket: "archives-large", Key: backup.ArchiveKey("u1", job.ID)}, got.Archive)

	data, err := gw.Download(ctx, *got.Archive)
	require.NoError(t, err)
	require.Greater(t, len(data), 16)

	link, err := svc.DownloadURL(ctx, "u1", job.ID)
	require.NoError(t, err)
	require.Contains(t, link.URL, blob.SignedPathPrefix+"archives-large/")
	require.NotContains(t, link.URL, blob.SignedPathPrefix+"archives/")
}
