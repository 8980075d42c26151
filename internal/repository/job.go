package repository

import (
	"context"
	"time"

	"github.com/eslsoft/deeplisten/internal/entity"
)

// ListJobQuery holds parameters for listing jobs of one user.
type ListJobQuery struct {
	Pagination
	FilterOrder

	UserID string
}

// JobRepository persists job records; the record is the only source of truth for job state.
type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) (*entity.Job, error)
	// GetByID returns entity.ErrJobNotFound unless the job exists and belongs to userID.
	GetByID(ctx context.Context, userID, id string) (*entity.Job, error)
	List(ctx context.Context, query *ListJobQuery) ([]entity.Job, int64, error)
	// ClaimNext moves the oldest claimable queued job to processing, leased
	// to owner until leaseUntil. It returns nil when nothing is claimable.
	// Jobs whose user already has a processing job are not claimable.
	ClaimNext(ctx context.Context, owner string, now, leaseUntil time.Time) (*entity.Job, error)
	// RenewLeases extends every processing job held by owner.
	RenewLeases(ctx context.Context, owner string, until time.Time) (int, error)
	// Finish and Fail only apply to a processing job held by owner.
	Finish(ctx context.Context, id, owner string, archive *entity.ObjectRef, report *entity.JobReport, now time.Time) error
	Fail(ctx context.Context, id, owner, message string, report *entity.JobReport, now time.Time) error
	// FailExpired marks processing jobs whose lease lapsed before now failed
	// and returns how many were touched.
	FailExpired(ctx context.Context, message string, now time.Time) (int, error)
}
