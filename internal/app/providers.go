package app

import (
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/deeplisten/internal/adapter/connectrpc"
	"github.com/eslsoft/deeplisten/internal/infrastructure/blob"
	"github.com/eslsoft/deeplisten/internal/infrastructure/config"
	"github.com/eslsoft/deeplisten/internal/repository"
	"github.com/eslsoft/deeplisten/internal/usecase/backup"
	"github.com/eslsoft/deeplisten/internal/usecase/job"
)

// NewBackupService builds the export/import engine from config.
func NewBackupService(cfg *config.Config, store repository.Store, blobs *blob.Gateway, logger logrus.FieldLogger) (*backup.Service, func(), error) {
	svc, err := backup.NewService(store, blobs,
		backup.WithBatchSize(cfg.Jobs.BatchSize),
		backup.WithMediaBucket(cfg.Storage.Buckets.Media.Name),
		backup.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, err
	}
	return svc, svc.Close, nil
}

// NewRunner builds the job runner from config.
func NewRunner(cfg *config.Config, jobs repository.JobRepository, engine *backup.Service, logger logrus.FieldLogger) *job.Runner {
	return job.NewRunner(jobs, engine, job.RunnerConfig{
		Workers:       cfg.Jobs.Workers,
		PollInterval:  cfg.Jobs.PollInterval,
		ScratchDir:    cfg.Jobs.ScratchDir,
		ArchiveBucket: cfg.Storage.Buckets.Archive.Name,
		LeaseTTL:      cfg.Jobs.LeaseTTL,
	}, logger)
}

// NewJobService builds the request-facing job service from config.
func NewJobService(cfg *config.Config, jobs repository.JobRepository, blobs *blob.Gateway, runner *job.Runner, logger logrus.FieldLogger) *job.Service {
	return job.NewService(jobs, blobs, runner, job.ServiceConfig{
		UploadsBucket: cfg.Storage.Buckets.Uploads.Name,
		MaxUploadSize: cfg.Storage.Buckets.Uploads.MaxObjectBytes,
		SignedURLTTL:  cfg.Storage.SignedURLTTL,
	}, logger)
}

func newUploadHandler(cfg *config.Config, uc connectrpc.JobUsecase, logger logrus.FieldLogger) *connectrpc.UploadHandler {
	return connectrpc.NewUploadHandler(uc, cfg.Storage.Buckets.Uploads.MaxObjectBytes, logger)
}
