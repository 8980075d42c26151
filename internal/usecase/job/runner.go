package job

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/eslsoft/deeplisten/internal/entity"
	"github.com/eslsoft/deeplisten/internal/repository"
	"github.com/eslsoft/deeplisten/internal/usecase/backup"
)

// interruptedMessage is recorded on processing jobs whose runner stopped
// renewing the lease.
const interruptedMessage = "interrupted: runner lease expired while the job was processing"

var (
	tracer = otel.Tracer("deeplisten.jobs")

	jobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deeplisten_jobs_completed_total",
		Help: "Jobs that reached a terminal state, by kind and status",
	}, []string{"kind", "status"})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "deeplisten_job_duration_seconds",
		Help:    "Wall time from claim to terminal state",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
	}, []string{"kind"})

	jobsInterrupted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deeplisten_jobs_interrupted_total",
		Help: "Processing jobs failed after their runner lease expired",
	})
)

// Backup is the export/import engine driven by the runner.
type Backup interface {
	Export(ctx context.Context, userID string, options entity.ExportOptions, dir string, opts ...backup.ExportOption) (*entity.JobReport, error)
	Publish(ctx context.Context, dir, archivePath, bucket, key string) (entity.ObjectRef, error)
	Fetch(ctx context.Context, ref entity.ObjectRef, dir string) (*backup.Metadata, error)
	Import(ctx context.Context, req backup.ImportRequest, dir string) (*entity.JobReport, error)
}

// RunnerConfig holds the runner settings.
type RunnerConfig struct {
	Workers       int
	PollInterval  time.Duration
	ScratchDir    string
	ArchiveBucket string
	// InstanceID names this runner as the owner of its claims; generated when empty.
	InstanceID string
	// LeaseTTL is how long a claim survives without renewal. Renewal runs
	// every third of it.
	LeaseTTL time.Duration
}

// Runner claims queued jobs from the job store and executes them on a fixed
// worker pool. The persisted record is the only job state; nothing about a
// job survives in memory across restarts. Several runners may share one
// store: each claim is leased to its runner, and only lapsed leases are
// reaped.
type Runner struct {
	jobs   repository.JobRepository
	backup Backup
	cfg    RunnerConfig
	logger logrus.FieldLogger
	clock  func() time.Time
	wake   chan struct{}
}

// NewRunner constructs a runner.
func NewRunner(jobs repository.JobRepository, engine Backup, cfg RunnerConfig, logger logrus.FieldLogger) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = os.TempDir()
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 30 * time.Second
	}
	return &Runner{
		jobs:   jobs,
		backup: engine,
		cfg:    cfg,
		logger: logger.WithField("runner", cfg.InstanceID),
		clock:  time.Now,
		wake:   make(chan struct{}, 1),
	}
}

// Wake makes the dispatcher look for work without waiting for the next poll.
func (r *Runner) Wake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// InstanceID is the owner recorded on jobs this runner claims.
func (r *Runner) InstanceID() string { return r.cfg.InstanceID }

// Run dispatches jobs until ctx is done, then waits for running jobs. Jobs
// execute on a context detached from ctx, so shutdown never cancels them.
func (r *Runner) Run(ctx context.Context) error {
	if _, err := r.reapExpired(ctx); err != nil {
		return err
	}

	// Registered before the pool so leases stay renewed while it drains.
	stop := r.keepLeases(context.WithoutCancel(ctx))
	defer stop()

	pool := NewWorkerPool(r.cfg.Workers, r.cfg.Workers)
	pool.Start(context.WithoutCancel(ctx))
	defer pool.Close()

	slots := make(chan struct{}, pool.Workers())
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	r.logger.WithField("workers", pool.Workers()).Info("job runner started")
	for {
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			r.logger.Info("job runner stopping, waiting for running jobs")
			return nil
		}

		job, err := r.claim(ctx)
		if err != nil && ctx.Err() == nil {
			r.logger.WithError(err).Error("claim job")
		}
		if err != nil || job == nil {
			<-slots
			select {
			case <-ctx.Done():
				r.logger.Info("job runner stopping, waiting for running jobs")
				return nil
			case <-r.wake:
			case <-ticker.C:
			}
			continue
		}

		claimed := job
		if err := pool.Submit(func(ctx context.Context) {
			defer func() { <-slots }()
			r.Execute(ctx, claimed)
		}); err != nil {
			<-slots
			return err
		}
	}
}

// RunPending executes claimable jobs one at a time on the calling goroutine
// until none is left and returns how many ran.
func (r *Runner) RunPending(ctx context.Context) (int, error) {
	if _, err := r.reapExpired(ctx); err != nil {
		return 0, err
	}
	stop := r.keepLeases(context.WithoutCancel(ctx))
	defer stop()

	ran := 0
	for {
		job, err := r.claim(ctx)
		if err != nil {
			return ran, err
		}
		if job == nil {
			return ran, nil
		}
		r.Execute(context.WithoutCancel(ctx), job)
		ran++
	}
}

// Execute runs one claimed job to a terminal state. Errors and panics mark
// the job failed; the scratch dir is removed either way.
func (r *Runner) Execute(ctx context.Context, job *entity.Job) {
	started := r.clock()
	logger := r.logger.WithFields(logrus.Fields{"job_id": job.ID, "user_id": job.UserID, "kind": job.Kind})
	ctx, span := tracer.Start(ctx, "job."+string(job.Kind), trace.WithAttributes(
		attribute.String("job.id", job.ID),
		attribute.String("job.user_id", job.UserID),
		attribute.String("job.mode", string(job.Mode)),
	))
	defer span.End()

	scratch := filepath.Join(r.cfg.ScratchDir, job.ID)
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			logger.WithError(err).Warn("remove scratch dir")
		}
	}()

	logger.Info("job started")
	archive, report, err := r.run(ctx, job, scratch)
	now := r.clock().UTC()
	jobDuration.WithLabelValues(string(job.Kind)).Observe(now.Sub(started).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ferr := r.jobs.Fail(ctx, job.ID, r.cfg.InstanceID, err.Error(), report, now); ferr != nil {
			logger.WithError(ferr).Error("record job failure")
		}
		jobsCompleted.WithLabelValues(string(job.Kind), string(entity.JobStatusFailed)).Inc()
		logger.WithError(err).Error("job failed")
		return
	}

	if ferr := r.jobs.Finish(ctx, job.ID, r.cfg.InstanceID, archive, report, now); ferr != nil {
		span.RecordError(ferr)
		logger.WithError(ferr).Error("record job completion")
		return
	}
	jobsCompleted.WithLabelValues(string(job.Kind), string(entity.JobStatusFinished)).Inc()
	fields := logrus.Fields{}
	if archive != nil {
		fields["archive"] = archive.String()
	}
	if report != nil {
		fields["warnings"] = len(report.Warnings)
	}
	logger.WithFields(fields).Info("job finished")
}

func (r *Runner) claim(ctx context.Context) (*entity.Job, error) {
	now := r.clock().UTC()
	return r.jobs.ClaimNext(ctx, r.cfg.InstanceID, now, now.Add(r.cfg.LeaseTTL))
}

// reapExpired fails processing jobs whose owner stopped renewing them.
func (r *Runner) reapExpired(ctx context.Context) (int, error) {
	n, err := r.jobs.FailExpired(ctx, interruptedMessage, r.clock().UTC())
	if err != nil {
		return 0, fmt.Errorf("fail interrupted jobs: %w", err)
	}
	if n > 0 {
		jobsInterrupted.Add(float64(n))
		r.logger.WithField("count", n).Warn("marked interrupted jobs failed")
	}
	return n, nil
}

// keepLeases renews this runner's claims and reaps lapsed ones every third
// of the lease until the returned stop func is called.
func (r *Runner) keepLeases(ctx context.Context) (stop func()) {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(max(r.cfg.LeaseTTL/3, time.Millisecond))
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
			}
			now := r.clock().UTC()
			if _, err := r.jobs.RenewLeases(ctx, r.cfg.InstanceID, now.Add(r.cfg.LeaseTTL)); err != nil {
				r.logger.WithError(err).Error("renew job leases")
			}
			if _, err := r.reapExpired(ctx); err != nil {
				r.logger.WithError(err).Error("reap expired jobs")
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

func (r *Runner) run(ctx context.Context, job *entity.Job, scratch string) (archive *entity.ObjectRef, report *entity.JobReport, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.WithFields(logrus.Fields{"job_id": job.ID, "stack": string(debug.Stack())}).Error("job panicked")
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	tree := filepath.Join(scratch, "tree")
	switch job.Kind {
	case entity.JobKindExport:
		report, err = r.phase(ctx, "backup.export", func(ctx context.Context) (*entity.JobReport, error) {
			return r.backup.Export(ctx, job.UserID, job.Options, tree)
		})
		if err != nil {
			return nil, report, err
		}
		var ref entity.ObjectRef
		_, err = r.phase(ctx, "backup.publish", func(ctx context.Context) (*entity.JobReport, error) {
			ref, err = r.backup.Publish(ctx, tree, filepath.Join(scratch, backup.ArchiveName), r.cfg.ArchiveBucket, backup.ArchiveKey(job.UserID, job.ID))
			return nil, err
		})
		if err != nil {
			return nil, report, err
		}
		return &ref, report, nil

	case entity.JobKindImport:
		if job.Source == nil || job.Source.IsZero() {
			return nil, nil, fmt.Errorf("%w: import job without source archive", entity.ErrInvalidJobRequest)
		}
		_, err = r.phase(ctx, "backup.fetch", func(ctx context.Context) (*entity.JobReport, error) {
			_, err := r.backup.Fetch(ctx, *job.Source, tree)
			return nil, err
		})
		if err != nil {
			return nil, nil, err
		}
		report, err = r.phase(ctx, "backup.import", func(ctx context.Context) (*entity.JobReport, error) {
			return r.backup.Import(ctx, backup.ImportRequest{RunID: job.ID, UserID: job.UserID, Mode: job.Mode}, tree)
		})
		return nil, report, err

	default:
		return nil, nil, fmt.Errorf("%w: unknown job kind %q", entity.ErrInvalidJobRequest, job.Kind)
	}
}

// phase runs fn inside a child span.
func (r *Runner) phase(ctx context.Context, name string, fn func(context.Context) (*entity.JobReport, error)) (*entity.JobReport, error) {
	ctx, span := tracer.Start(ctx, name)
	defer span.End()
	report, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return report, err
}
