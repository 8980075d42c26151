package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eslsoft/deeplisten/internal/entity"
	"github.com/eslsoft/deeplisten/internal/repository"
)

func newTestService(t *testing.T) (*Service, repository.JobRepository, *fakeBlobs, *countingWaker) {
	t.Helper()
	jobs := newJobRepo(t)
	blobs := newFakeBlobs()
	waker := &countingWaker{}
	svc := NewService(jobs, blobs, waker, ServiceConfig{
		UploadsBucket: "uploads",
		MaxUploadSize: 64,
		SignedURLTTL:  10 * time.Minute,
	}, quietLogger())
	return svc, jobs, blobs, waker
}

func TestCreateExport_Validation(t *testing.T) {
	svc, _, _, waker := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateExport(ctx, CreateExportInput{Include: entity.ExportOptions{Vocab: true}})
	require.ErrorIs(t, err, entity.ErrInvalidJobRequest)

	_, err = svc.CreateExport(ctx, CreateExportInput{UserID: "u1"})
	require.ErrorIs(t, err, entity.ErrInvalidJobRequest)

	job, err := svc.CreateExport(ctx, CreateExportInput{UserID: "u1", Include: entity.ExportOptions{Vocab: true}})
	require.NoError(t, err)
	require.Equal(t, entity.JobStatusQueued, job.Status)
	require.Equal(t, entity.JobKindExport, job.Kind)
	require.NotEmpty(t, job.ID)
	require.EqualValues(t, 1, waker.n.Load())

	got, err := svc.Get(ctx, "u1", job.ID)
	require.NoError(t, err)
	require.True(t, got.Options.Vocab)
	require.False(t, got.Options.Materials)
}

func TestCreateImport_Validation(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   CreateImportInput
	}{
		{"missing mode", CreateImportInput{UserID: "u1", ArchiveRef: "uploads/uploads/u1/a.tar.gz"}},
		{"unknown mode", CreateImportInput{UserID: "u1", ArchiveRef: "uploads/uploads/u1/a.tar.gz", Mode: "replace"}},
		{"malformed ref", CreateImportInput{UserID: "u1", ArchiveRef: "no-slash", Mode: "merge"}},
		{"foreign archive", CreateImportInput{UserID: "u1", ArchiveRef: "uploads/uploads/u2/a.tar.gz", Mode: "merge"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateImport(ctx, tc.in)
			require.ErrorIs(t, err, entity.ErrInvalidJobRequest)
		})
	}

	job, err := svc.CreateImport(ctx, CreateImportInput{UserID: "u1", ArchiveRef: "archives/exports/u1/j.tar.gz", Mode: "Overwrite"})
	require.NoError(t, err)
	require.Equal(t, entity.ImportModeOverwrite, job.Mode)
	require.Equal(t, &entity.ObjectRef{Bucket: "archives", Key: "exports/u1/j.tar.gz"}, job.Source)
}

func TestGet_OtherUsersJobIsNotFound(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	job, err := svc.CreateExport(ctx, CreateExportInput{UserID: "alice", Include: entity.AllExportOptions()})
	require.NoError(t, err)

	_, err = svc.Get(ctx, "bob", job.ID)
	require.ErrorIs(t, err, entity.ErrJobNotFound)

	_, err = svc.DownloadURL(ctx, "bob", job.ID)
	require.ErrorIs(t, err, entity.ErrJobNotFound)

	_, err = svc.Get(ctx, "", job.ID)
	require.ErrorIs(t, err, entity.ErrInvalidUserID)
}

func TestDownloadURL(t *testing.T) {
	svc, jobs, blobs, _ := newTestService(t)
	ctx := context.Background()

	job, err := svc.CreateExport(ctx, CreateExportInput{UserID: "u1", Include: entity.AllExportOptions()})
	require.NoError(t, err)

	_, err = svc.DownloadURL(ctx, "u1", job.ID)
	require.ErrorIs(t, err, entity.ErrJobNotDownloadable)

	claimed, err := jobs.ClaimNext(ctx, "runner-1", time.Now(), time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, job.ID, claimed.ID)
	archive := &entity.ObjectRef{Bucket: "archives", Key: "exports/u1/" + job.ID + ".tar.gz"}
	require.NoError(t, jobs.Finish(ctx, job.ID, "runner-1", archive, entity.NewJobReport(), time.Now()))

	first, err := svc.DownloadURL(ctx, "u1", job.ID)
	require.NoError(t, err)
	require.Contains(t, first.URL, archive.String())
	require.True(t, first.ExpiresAt.After(time.Now()))

	second, err := svc.DownloadURL(ctx, "u1", job.ID)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.EqualValues(t, 1, blobs.signs.Load())
}

func TestList_ScopesAndPages(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	for range 3 {
		_, err := svc.CreateExport(ctx, CreateExportInput{UserID: "u1", Include: entity.ExportOptions{Vocab: true}})
		require.NoError(t, err)
	}
	_, err := svc.CreateImport(ctx, CreateImportInput{UserID: "u1", ArchiveRef: "uploads/uploads/u1/x.tar.gz", Mode: "merge"})
	require.NoError(t, err)
	_, err = svc.CreateExport(ctx, CreateExportInput{UserID: "u2", Include: entity.ExportOptions{Vocab: true}})
	require.NoError(t, err)

	all, total, err := svc.List(ctx, &repository.ListJobQuery{UserID: "u1"})
	require.NoError(t, err)
	require.EqualValues(t, 4, total)
	require.Len(t, all, 4)

	exports, total, err := svc.List(ctx, &repository.ListJobQuery{
		UserID:      "u1",
		FilterOrder: repository.FilterOrder{Filter: `kind == "export"`},
		Pagination:  repository.Pagination{PageNo: 1, PageSize: 2},
	})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, exports, 2)

	_, _, err = svc.List(ctx, &repository.ListJobQuery{})
	require.ErrorIs(t, err, entity.ErrInvalidUserID)
}

func TestUpload(t *testing.T) {
	svc, _, blobs, _ := newTestService(t)
	ctx := context.Background()

	ref, err := svc.Upload(ctx, "u1", []byte("archive"))
	require.NoError(t, err)
	require.Equal(t, "uploads", ref.Bucket)
	require.Regexp(t, `^uploads/u1/[0-9a-f-]+\.tar\.gz$`, ref.Key)
	require.Contains(t, blobs.objects, ref)

	_, err = svc.Upload(ctx, "u1", make([]byte, 65))
	require.ErrorIs(t, err, entity.ErrInvalidJobRequest)

	_, err = svc.Upload(ctx, "u1", nil)
	require.ErrorIs(t, err, entity.ErrInvalidJobRequest)

	job, err := svc.CreateImport(ctx, CreateImportInput{UserID: "u1", ArchiveRef: ref.String(), Mode: "merge"})
	require.NoError(t, err)
	require.Equal(t, ref, *job.Source)
}
