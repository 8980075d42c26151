// Package backupv1connect exposes BackupService over the Connect protocol.
package backupv1connect

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	backupv1 "github.com/eslsoft/deeplisten/api/backup/v1"
)

// BackupServiceName is the fully-qualified name of the BackupService service.
const BackupServiceName = "deeplisten.backup.v1.BackupService"

const (
	BackupServiceCreateExportJobProcedure = "/deeplisten.backup.v1.BackupService/CreateExportJob"
	BackupServiceCreateImportJobProcedure = "/deeplisten.backup.v1.BackupService/CreateImportJob"
	BackupServiceGetJobProcedure          = "/deeplisten.backup.v1.BackupService/GetJob"
	BackupServiceGetDownloadURLProcedure  = "/deeplisten.backup.v1.BackupService/GetDownloadURL"
	BackupServiceListJobsProcedure        = "/deeplisten.backup.v1.BackupService/ListJobs"
)

// UserIDHeader carries the authenticated caller.
const UserIDHeader = "X-User-Id"

// Codec encodes messages as plain JSON. It takes the place of the default
// protojson codec registered under the same name.
func Codec() connect.Codec { return jsonCodec{} }

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// BackupServiceHandler is implemented by the server.
type BackupServiceHandler interface {
	CreateExportJob(context.Context, *connect.Request[backupv1.CreateExportJobRequest]) (*connect.Response[backupv1.Job], error)
	CreateImportJob(context.Context, *connect.Request[backupv1.CreateImportJobRequest]) (*connect.Response[backupv1.Job], error)
	GetJob(context.Context, *connect.Request[backupv1.GetJobRequest]) (*connect.Response[backupv1.Job], error)
	GetDownloadURL(context.Context, *connect.Request[backupv1.GetDownloadURLRequest]) (*connect.Response[backupv1.GetDownloadURLResponse], error)
	ListJobs(context.Context, *connect.Request[backupv1.ListJobsRequest]) (*connect.Response[backupv1.ListJobsResponse], error)
}

// NewBackupServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler.
func NewBackupServiceHandler(svc BackupServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec())}, opts...)
	createExport := connect.NewUnaryHandler(BackupServiceCreateExportJobProcedure, svc.CreateExportJob, opts...)
	createImport := connect.NewUnaryHandler(BackupServiceCreateImportJobProcedure, svc.CreateImportJob, opts...)
	getJob := connect.NewUnaryHandler(BackupServiceGetJobProcedure, svc.GetJob, opts...)
	getDownloadURL := connect.NewUnaryHandler(BackupServiceGetDownloadURLProcedure, svc.GetDownloadURL, opts...)
	listJobs := connect.NewUnaryHandler(BackupServiceListJobsProcedure, svc.ListJobs, opts...)
	return "/" + BackupServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case BackupServiceCreateExportJobProcedure:
			createExport.ServeHTTP(w, r)
		case BackupServiceCreateImportJobProcedure:
			createImport.ServeHTTP(w, r)
		case BackupServiceGetJobProcedure:
			getJob.ServeHTTP(w, r)
		case BackupServiceGetDownloadURLProcedure:
			getDownloadURL.ServeHTTP(w, r)
		case BackupServiceListJobsProcedure:
			listJobs.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// BackupServiceClient calls a remote BackupService.
type BackupServiceClient struct {
	createExport   *connect.Client[backupv1.CreateExportJobRequest, backupv1.Job]
	createImport   *connect.Client[backupv1.CreateImportJobRequest, backupv1.Job]
	getJob         *connect.Client[backupv1.GetJobRequest, backupv1.Job]
	getDownloadURL *connect.Client[backupv1.GetDownloadURLRequest, backupv1.GetDownloadURLResponse]
	listJobs       *connect.Client[backupv1.ListJobsRequest, backupv1.ListJobsResponse]
}

// NewBackupServiceClient constructs a client for the service at baseURL.
func NewBackupServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *BackupServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(Codec())}, opts...)
	return &BackupServiceClient{
		createExport:   connect.NewClient[backupv1.CreateExportJobRequest, backupv1.Job](httpClient, baseURL+BackupServiceCreateExportJobProcedure, opts...),
		createImport:   connect.NewClient[backupv1.CreateImportJobRequest, backupv1.Job](httpClient, baseURL+BackupServiceCreateImportJobProcedure, opts...),
		getJob:         connect.NewClient[backupv1.GetJobRequest, backupv1.Job](httpClient, baseURL+BackupServiceGetJobProcedure, opts...),
		getDownloadURL: connect.NewClient[backupv1.GetDownloadURLRequest, backupv1.GetDownloadURLResponse](httpClient, baseURL+BackupServiceGetDownloadURLProcedure, opts...),
		listJobs:       connect.NewClient[backupv1.ListJobsRequest, backupv1.ListJobsResponse](httpClient, baseURL+BackupServiceListJobsProcedure, opts...),
	}
}

func (c *BackupServiceClient) CreateExportJob(ctx context.Context, req *connect.Request[backupv1.CreateExportJobRequest]) (*connect.Response[backupv1.Job], error) {
	return c.createExport.CallUnary(ctx, req)
}

func (c *BackupServiceClient) CreateImportJob(ctx context.Context, req *connect.Request[backupv1.CreateImportJobRequest]) (*connect.Response[backupv1.Job], error) {
	return c.createImport.CallUnary(ctx, req)
}

func (c *BackupServiceClient) GetJob(ctx context.Context, req *connect.Request[backupv1.GetJobRequest]) (*connect.Response[backupv1.Job], error) {
	return c.getJob.CallUnary(ctx, req)
}

func (c *BackupServiceClient) GetDownloadURL(ctx context.Context, req *connect.Request[backupv1.GetDownloadURLRequest]) (*connect.Response[backupv1.GetDownloadURLResponse], error) {
	return c.getDownloadURL.CallUnary(ctx, req)
}

func (c *BackupServiceClient) ListJobs(ctx context.Context, req *connect.Request[backupv1.ListJobsRequest]) (*connect.Response[backupv1.ListJobsResponse], error) {
	return c.listJobs.CallUnary(ctx, req)
}

// WithUserID returns a client interceptor that stamps every call with userID.
func WithUserID(userID string) connect.Interceptor {
	return connect.UnaryInterceptorFunc(func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if req.Spec().IsClient {
				req.Header().Set(UserIDHeader, userID)
			}
			return next(ctx, req)
		}
	})
}
