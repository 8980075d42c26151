package job

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/deeplisten/internal/entity"
	"github.com/eslsoft/deeplisten/internal/repository"
	"github.com/eslsoft/deeplisten/pkg/memo"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("importmode", func(fl validator.FieldLevel) bool {
		_, err := entity.ParseImportMode(fl.Field().String())
		return err == nil
	})
}

// Blobs is the storage used for uploads and signed downloads.
type Blobs interface {
	Upload(ctx context.Context, bucket, key string, data []byte) (entity.ObjectRef, error)
	SignedURL(ctx context.Context, ref entity.ObjectRef, ttl time.Duration) (string, error)
}

// Waker is notified when a job is queued.
type Waker interface {
	Wake()
}

// CreateExportInput requests an export of the selected categories.
type CreateExportInput struct {
	UserID  string `validate:"required"`
	Include entity.ExportOptions
}

func (in *CreateExportInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrInvalidJobRequest, err)
	}
	if !in.Include.Any() {
		return fmt.Errorf("%w: select at least one category", entity.ErrInvalidJobRequest)
	}
	return nil
}

// CreateImportInput requests an import of a previously uploaded archive.
type CreateImportInput struct {
	UserID     string `validate:"required"`
	ArchiveRef string `validate:"required"`
	Mode       string `validate:"required,importmode"`
}

func (in *CreateImportInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrInvalidJobRequest, err)
	}
	return nil
}

// DownloadURL is a time-limited link to an export archive.
type DownloadURL struct {
	URL       string
	ExpiresAt time.Time
}

// ServiceConfig holds the job service settings.
type ServiceConfig struct {
	UploadsBucket string
	MaxUploadSize int64
	SignedURLTTL  time.Duration
}

// Service is the request-facing side of the job pipeline: it validates,
// enqueues and reports jobs but never executes them.
type Service struct {
	jobs   repository.JobRepository
	blobs  Blobs
	waker  Waker
	cfg    ServiceConfig
	urls   *memo.Group[string, DownloadURL]
	clock  func() time.Time
	logger logrus.FieldLogger
}

// NewService constructs the job service.
func NewService(jobs repository.JobRepository, blobs Blobs, waker Waker, cfg ServiceConfig, logger logrus.FieldLogger) *Service {
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = 15 * time.Minute
	}
	if cfg.UploadsBucket == "" {
		cfg.UploadsBucket = "deeplisten-uploads"
	}
	return &Service{
		jobs:  jobs,
		blobs: blobs,
		waker: waker,
		cfg:   cfg,
		// Cached links are handed out for at most half their lifetime.
		urls:   memo.New[string, DownloadURL](cfg.SignedURLTTL / 2),
		clock:  time.Now,
		logger: logger,
	}
}

// CreateExport persists a queued export job.
func (s *Service) CreateExport(ctx context.Context, in CreateExportInput) (*entity.Job, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return s.enqueue(ctx, &entity.Job{
		UserID:  in.UserID,
		Kind:    entity.JobKindExport,
		Options: in.Include,
	})
}

// CreateImport persists a queued import job. The archive must live under
// one of the caller's own upload or export prefixes.
func (s *Service) CreateImport(ctx context.Context, in CreateImportInput) (*entity.Job, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	ref, err := entity.ParseObjectRef(in.ArchiveRef)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidJobRequest, err)
	}
	if !ownsKey(in.UserID, ref.Key) {
		return nil, fmt.Errorf("%w: archive %s does not belong to the caller", entity.ErrInvalidJobRequest, ref)
	}
	mode, err := entity.ParseImportMode(in.Mode)
	if err != nil {
		return nil, err
	}
	return s.enqueue(ctx, &entity.Job{
		UserID: in.UserID,
		Kind:   entity.JobKindImport,
		Mode:   mode,
		Source: &ref,
	})
}

func (s *Service) enqueue(ctx context.Context, job *entity.Job) (*entity.Job, error) {
	job.ID = uuid.NewString()
	job.Status = entity.JobStatusQueued
	job.CreatedAt = s.clock().UTC()
	created, err := s.jobs.Create(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"job_id": created.ID, "user_id": created.UserID, "kind": created.Kind}).Info("job queued")
	if s.waker != nil {
		s.waker.Wake()
	}
	return created, nil
}

// Get returns a job of userID. Jobs of other users are reported as missing.
func (s *Service) Get(ctx context.Context, userID, id string) (*entity.Job, error) {
	if userID == "" {
		return nil, entity.ErrInvalidUserID
	}
	if strings.TrimSpace(id) == "" {
		return nil, entity.ErrJobNotFound
	}
	return s.jobs.GetByID(ctx, userID, id)
}

// List returns the caller's jobs matching the query.
func (s *Service) List(ctx context.Context, query *repository.ListJobQuery) ([]entity.Job, int64, error) {
	if query.UserID == "" {
		return nil, 0, entity.ErrInvalidUserID
	}
	if query.PageNo <= 0 {
		query.PageNo = 1
	}
	if query.PageSize <= 0 {
		query.PageSize = defaultPageSize
	}
	if query.PageSize > maxPageSize {
		query.PageSize = maxPageSize
	}
	return s.jobs.List(ctx, query)
}

// DownloadURL returns a signed link to a finished export of userID. Links
// are memoized per job so repeated polls reuse one signature.
func (s *Service) DownloadURL(ctx context.Context, userID, id string) (DownloadURL, error) {
	job, err := s.Get(ctx, userID, id)
	if err != nil {
		return DownloadURL{}, err
	}
	if !job.Downloadable() {
		return DownloadURL{}, fmt.Errorf("%w: job %s is %s", entity.ErrJobNotDownloadable, job.ID, job.Status)
	}
	ref := *job.Archive
	return s.urls.Do(ctx, job.ID, func(ctx context.Context) (DownloadURL, error) {
		expires := s.clock().Add(s.cfg.SignedURLTTL).UTC()
		url, err := s.blobs.SignedURL(ctx, ref, s.cfg.SignedURLTTL)
		if err != nil {
			return DownloadURL{}, fmt.Errorf("sign %s: %w", ref, err)
		}
		return DownloadURL{URL: url, ExpiresAt: expires}, nil
	})
}

// Upload stores an archive for a later import and returns its reference.
func (s *Service) Upload(ctx context.Context, userID string, data []byte) (entity.ObjectRef, error) {
	if userID == "" {
		return entity.ObjectRef{}, entity.ErrInvalidUserID
	}
	if len(data) == 0 {
		return entity.ObjectRef{}, fmt.Errorf("%w: empty upload", entity.ErrInvalidJobRequest)
	}
	if s.cfg.MaxUploadSize > 0 && int64(len(data)) > s.cfg.MaxUploadSize {
		return entity.ObjectRef{}, fmt.Errorf("%w: upload exceeds %d bytes", entity.ErrInvalidJobRequest, s.cfg.MaxUploadSize)
	}
	key := fmt.Sprintf("uploads/%s/%s.tar.gz", userID, uuid.NewString())
	return s.blobs.Upload(ctx, s.cfg.UploadsBucket, key, data)
}

func ownsKey(userID, key string) bool {
	return strings.HasPrefix(key, "uploads/"+userID+"/") || strings.HasPrefix(key, "exports/"+userID+"/")
}
