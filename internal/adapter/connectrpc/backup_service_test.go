package connectrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	backupv1 "github.com/eslsoft/deeplisten/api/backup/v1"
	"github.com/eslsoft/deeplisten/api/backup/v1/backupv1connect"
	"github.com/eslsoft/deeplisten/internal/entity"
	"github.com/eslsoft/deeplisten/internal/repository"
	"github.com/eslsoft/deeplisten/internal/usecase/job"
)

type memJobs struct {
	mu      sync.Mutex
	jobs    map[string]*entity.Job
	uploads map[entity.ObjectRef][]byte
	seq     int
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: map[string]*entity.Job{}, uploads: map[entity.ObjectRef][]byte{}}
}

func (m *memJobs) add(j *entity.Job) *entity.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	j.ID = fmt.Sprintf("job-%d", m.seq)
	j.Status = entity.JobStatusQueued
	j.CreatedAt = time.Date(2025, 3, 1, 12, 0, m.seq, 0, time.UTC)
	m.jobs[j.ID] = j
	return j
}

func (m *memJobs) CreateExport(_ context.Context, in job.CreateExportInput) (*entity.Job, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return m.add(&entity.Job{UserID: in.UserID, Kind: entity.JobKindExport, Options: in.Include}), nil
}

func (m *memJobs) CreateImport(_ context.Context, in job.CreateImportInput) (*entity.Job, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	ref, err := entity.ParseObjectRef(in.ArchiveRef)
	if err != nil {
		return nil, err
	}
	mode, _ := entity.ParseImportMode(in.Mode)
	return m.add(&entity.Job{UserID: in.UserID, Kind: entity.JobKindImport, Mode: mode, Source: &ref}), nil
}

func (m *memJobs) Get(_ context.Context, userID, id string) (*entity.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.UserID != userID {
		return nil, entity.ErrJobNotFound
	}
	return j, nil
}

func (m *memJobs) List(_ context.Context, query *repository.ListJobQuery) ([]entity.Job, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.Job
	for _, j := range m.jobs {
		if j.UserID == query.UserID {
			out = append(out, *j)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memJobs) DownloadURL(ctx context.Context, userID, id string) (job.DownloadURL, error) {
	j, err := m.Get(ctx, userID, id)
	if err != nil {
		return job.DownloadURL{}, err
	}
	if !j.Downloadable() {
		return job.DownloadURL{}, entity.ErrJobNotDownloadable
	}
	return job.DownloadURL{URL: "https://blobs.test/" + j.Archive.String(), ExpiresAt: time.Now().Add(time.Minute)}, nil
}

func (m *memJobs) Upload(_ context.Context, userID string, data []byte) (entity.ObjectRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref := entity.ObjectRef{Bucket: "uploads", Key: "uploads/" + userID + "/a.tar.gz"}
	m.uploads[ref] = data
	return ref, nil
}

func newTestServer(t *testing.T, uc JobUsecase) *httptest.Server {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	mux := http.NewServeMux()
	mux.Handle(backupv1connect.NewBackupServiceHandler(NewBackupServiceServer(uc),
		connect.WithInterceptors(NewAuthInterceptor())))
	mux.Handle(UploadPath, RequireUserID(NewUploadHandler(uc, 16, logger)))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func clientFor(srv *httptest.Server, userID string) *backupv1connect.BackupServiceClient {
	var opts []connect.ClientOption
	if userID != "" {
		opts = append(opts, connect.WithInterceptors(backupv1connect.WithUserID(userID)))
	}
	return backupv1connect.NewBackupServiceClient(srv.Client(), srv.URL, opts...)
}

func TestBackupService_RequiresCaller(t *testing.T) {
	srv := newTestServer(t, newMemJobs())
	_, err := clientFor(srv, "").ListJobs(context.Background(), connect.NewRequest(&backupv1.ListJobsRequest{}))
	require.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
}

func TestBackupService_ExportLifecycle(t *testing.T) {
	uc := newMemJobs()
	srv := newTestServer(t, uc)
	ctx := context.Background()
	alice := clientFor(srv, "alice")

	_, err := alice.CreateExportJob(ctx, connect.NewRequest(&backupv1.CreateExportJobRequest{}))
	require.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	created, err := alice.CreateExportJob(ctx, connect.NewRequest(&backupv1.CreateExportJobRequest{
		Include: backupv1.ExportOptions{Vocab: true, Learning: true},
	}))
	require.NoError(t, err)
	require.Equal(t, "queued", created.Msg.Status)
	require.Equal(t, "export", created.Msg.Kind)
	require.Equal(t, &backupv1.ExportOptions{Vocab: true, Learning: true}, created.Msg.Include)

	_, err = alice.GetDownloadURL(ctx, connect.NewRequest(&backupv1.GetDownloadURLRequest{ID: created.Msg.ID}))
	require.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))

	uc.mu.Lock()
	stored := uc.jobs[created.Msg.ID]
	stored.Status = entity.JobStatusFinished
	stored.Archive = &entity.ObjectRef{Bucket: "archives", Key: "exports/alice/" + stored.ID + ".tar.gz"}
	uc.mu.Unlock()

	link, err := alice.GetDownloadURL(ctx, connect.NewRequest(&backupv1.GetDownloadURLRequest{ID: created.Msg.ID}))
	require.NoError(t, err)
	require.Contains(t, link.Msg.URL, "archives/exports/alice/")

	got, err := alice.GetJob(ctx, connect.NewRequest(&backupv1.GetJobRequest{ID: created.Msg.ID}))
	require.NoError(t, err)
	require.Equal(t, "finished", got.Msg.Status)
	require.Equal(t, stored.Archive.String(), got.Msg.ArchiveRef)
}

func TestBackupService_OtherUsersJobsAreHidden(t *testing.T) {
	srv := newTestServer(t, newMemJobs())
	ctx := context.Background()

	created, err := clientFor(srv, "alice").CreateExportJob(ctx, connect.NewRequest(&backupv1.CreateExportJobRequest{
		Include: backupv1.ExportOptions{Vocab: true},
	}))
	require.NoError(t, err)

	bob := clientFor(srv, "bob")
	_, err = bob.GetJob(ctx, connect.NewRequest(&backupv1.GetJobRequest{ID: created.Msg.ID}))
	require.Equal(t, connect.CodeNotFound, connect.CodeOf(err))

	list, err := bob.ListJobs(ctx, connect.NewRequest(&backupv1.ListJobsRequest{}))
	require.NoError(t, err)
	require.Empty(t, list.Msg.Jobs)
	require.EqualValues(t, 1, list.Msg.Pagination.PageNo)
}

func TestUploadHandler(t *testing.T) {
	uc := newMemJobs()
	srv := newTestServer(t, uc)

	put := func(userID string, body []byte) *http.Response {
		req, err := http.NewRequest(http.MethodPut, srv.URL+UploadPath, bytes.NewReader(body))
		require.NoError(t, err)
		if userID != "" {
			req.Header.Set(backupv1connect.UserIDHeader, userID)
		}
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	require.Equal(t, http.StatusUnauthorized, put("", []byte("x")).StatusCode)
	require.Equal(t, http.StatusRequestEntityTooLarge, put("alice", bytes.Repeat([]byte("x"), 17)).StatusCode)

	resp := put("alice", []byte("tarball"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out backupv1.UploadArchiveResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "uploads/uploads/alice/a.tar.gz", out.ArchiveRef)

	imported, err := clientFor(srv, "alice").CreateImportJob(context.Background(), connect.NewRequest(&backupv1.CreateImportJobRequest{
		ArchiveRef: out.ArchiveRef,
		Mode:       "merge",
	}))
	require.NoError(t, err)
	require.Equal(t, "merge", imported.Msg.Mode)
	require.Equal(t, out.ArchiveRef, imported.Msg.SourceRef)
}
