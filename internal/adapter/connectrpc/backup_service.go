package connectrpc

import (
	"context"
	"errors"
	"time"

	"connectrpc.com/connect"

	backupv1 "github.com/eslsoft/deeplisten/api/backup/v1"
	"github.com/eslsoft/deeplisten/api/backup/v1/backupv1connect"
	"github.com/eslsoft/deeplisten/internal/adapter/mapping"
	"github.com/eslsoft/deeplisten/internal/entity"
	"github.com/eslsoft/deeplisten/internal/repository"
	"github.com/eslsoft/deeplisten/internal/usecase/job"
)

var _ backupv1connect.BackupServiceHandler = (*BackupServiceServer)(nil)

// JobUsecase is the request-facing side of the job pipeline.
type JobUsecase interface {
	CreateExport(ctx context.Context, in job.CreateExportInput) (*entity.Job, error)
	CreateImport(ctx context.Context, in job.CreateImportInput) (*entity.Job, error)
	Get(ctx context.Context, userID, id string) (*entity.Job, error)
	List(ctx context.Context, query *repository.ListJobQuery) ([]entity.Job, int64, error)
	DownloadURL(ctx context.Context, userID, id string) (job.DownloadURL, error)
	Upload(ctx context.Context, userID string, data []byte) (entity.ObjectRef, error)
}

type BackupServiceServer struct {
	uc JobUsecase
}

func NewBackupServiceServer(uc JobUsecase) *BackupServiceServer {
	return &BackupServiceServer{uc: uc}
}

func (s *BackupServiceServer) CreateExportJob(ctx context.Context, req *connect.Request[backupv1.CreateExportJobRequest]) (*connect.Response[backupv1.Job], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	result, err := s.uc.CreateExport(ctx, job.CreateExportInput{
		UserID:  userID,
		Include: mapping.FromPbExportOptions(req.Msg.Include),
	})
	if err != nil {
		return nil, mapping.ToConnectError(err)
	}
	return connect.NewResponse(mapping.ToPbJob(result)), nil
}

func (s *BackupServiceServer) CreateImportJob(ctx context.Context, req *connect.Request[backupv1.CreateImportJobRequest]) (*connect.Response[backupv1.Job], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	result, err := s.uc.CreateImport(ctx, job.CreateImportInput{
		UserID:     userID,
		ArchiveRef: req.Msg.ArchiveRef,
		Mode:       req.Msg.Mode,
	})
	if err != nil {
		return nil, mapping.ToConnectError(err)
	}
	return connect.NewResponse(mapping.ToPbJob(result)), nil
}

func (s *BackupServiceServer) GetJob(ctx context.Context, req *connect.Request[backupv1.GetJobRequest]) (*connect.Response[backupv1.Job], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.Msg.ID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("id required"))
	}
	result, err := s.uc.Get(ctx, userID, req.Msg.ID)
	if err != nil {
		return nil, mapping.ToConnectError(err)
	}
	return connect.NewResponse(mapping.ToPbJob(result)), nil
}

func (s *BackupServiceServer) GetDownloadURL(ctx context.Context, req *connect.Request[backupv1.GetDownloadURLRequest]) (*connect.Response[backupv1.GetDownloadURLResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.Msg.ID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("id required"))
	}
	link, err := s.uc.DownloadURL(ctx, userID, req.Msg.ID)
	if err != nil {
		return nil, mapping.ToConnectError(err)
	}
	return connect.NewResponse(&backupv1.GetDownloadURLResponse{
		URL:       link.URL,
		ExpiresAt: link.ExpiresAt.UTC().Truncate(time.Second),
	}), nil
}

func (s *BackupServiceServer) ListJobs(ctx context.Context, req *connect.Request[backupv1.ListJobsRequest]) (*connect.Response[backupv1.ListJobsResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	msg := req.Msg
	query := &repository.ListJobQuery{
		Pagination: convertPagination(msg.Pagination),
		FilterOrder: repository.FilterOrder{
			Filter:  msg.Filter,
			OrderBy: msg.OrderBy,
		},
		UserID: userID,
	}
	items, total, err := s.uc.List(ctx, query)
	if err != nil {
		return nil, mapping.ToConnectError(err)
	}

	page, err := toPaginationResponse(query.Pagination, total)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	return connect.NewResponse(&backupv1.ListJobsResponse{
		Jobs:       mapping.ToPbJobs(items),
		Pagination: page,
	}), nil
}

func caller(ctx context.Context) (string, error) {
	userID, ok := UserIDFrom(ctx)
	if !ok {
		return "", connect.NewError(connect.CodeUnauthenticated, errNoCaller)
	}
	return userID, nil
}
