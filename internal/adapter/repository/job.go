package repository

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"strings"
	"time"

	"entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/eslsoft/deeplisten/internal/entity"
	"github.com/eslsoft/deeplisten/internal/infrastructure/database/types"
	"github.com/eslsoft/deeplisten/internal/repository"
	"github.com/eslsoft/deeplisten/pkg/filterexpr"
)

const (
	jobsTable = "jobs"

	// claimAttempts bounds how often ClaimNext retries after losing a race.
	claimAttempts = 3
)

var jobColumns = []string{
	"id", "user_id", "kind", "status", "mode", "options",
	"source_bucket", "source_key", "archive_bucket", "archive_key",
	"error", "report", "created_at", "started_at", "finished_at",
	"owner", "lease_until",
}

type JobRepository struct {
	conn *Conn
}

// NewJobRepository constructs the durable job store.
func NewJobRepository(conn *Conn) repository.JobRepository {
	return &JobRepository{conn: conn}
}

type listJobsParams struct {
	Status        string
	Statuses      []string
	Kind          string
	Kinds         []string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	PrimaryKey    string
	PrimaryDesc   bool
	SecondaryKey  string
	SecondaryDesc bool
}

func (r *JobRepository) Create(ctx context.Context, job *entity.Job) (*entity.Job, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	job.CreatedAt = job.CreatedAt.UTC()
	if job.Status == "" {
		job.Status = entity.JobStatusQueued
	}

	rec := (&record{}).
		set("id", job.ID).
		set("user_id", job.UserID).
		set("kind", string(job.Kind)).
		set("status", string(job.Status)).
		set("mode", nullableString(string(job.Mode))).
		set("options", types.NewJSON(job.Options)).
		set("created_at", job.CreatedAt)
	if job.Source != nil {
		rec.set("source_bucket", job.Source.Bucket).set("source_key", job.Source.Key)
	}
	if err := r.conn.insert(ctx, jobsTable, rec, false); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

func (r *JobRepository) GetByID(ctx context.Context, userID, id string) (*entity.Job, error) {
	q := r.conn.selectFrom(jobsTable, jobColumns...).
		Where(sql.And(sql.EQ("id", id), sql.EQ("user_id", userID)))
	jobs, err := r.scanJobs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if len(jobs) == 0 {
		return nil, entity.ErrJobNotFound
	}
	return &jobs[0], nil
}

func (r *JobRepository) List(ctx context.Context, query *repository.ListJobQuery) ([]entity.Job, int64, error) {
	var params listJobsParams
	if err := filterexpr.Bind(query, &params, listJobsSchema); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", entity.ErrInvalidFilterOrder, err)
	}

	where := jobFilters(query.UserID, params)
	total, err := r.conn.count(ctx, jobsTable, where)
	if err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	q := r.conn.selectFrom(jobsTable, jobColumns...).Where(where)
	applyJobOrdering(q, params)
	jobs, err := r.scanJobs(ctx, limitOffset(q, query.PageSize, query.Offset()))
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, int64(total), nil
}

func (r *JobRepository) ClaimNext(ctx context.Context, owner string, now, leaseUntil time.Time) (*entity.Job, error) {
	if owner == "" {
		return nil, fmt.Errorf("claim job: empty owner")
	}
	for range claimAttempts {
		var id string
		pick := r.conn.selectFrom(jobsTable, "id").
			Where(sql.And(
				sql.EQ("status", string(entity.JobStatusQueued)),
				sql.NotIn("user_id", r.busyUsers()),
			)).
			OrderBy(sql.Asc("created_at"), sql.Asc("id")).
			Limit(1)
		found, err := r.conn.first(ctx, pick, &id)
		if err != nil {
			return nil, fmt.Errorf("pick queued job: %w", err)
		}
		if !found {
			return nil, nil
		}

		claim := r.conn.builder().Update(jobsTable).
			Set("status", string(entity.JobStatusProcessing)).
			Set("started_at", now.UTC()).
			Set("owner", owner).
			Set("lease_until", leaseUntil.UTC()).
			Where(sql.And(
				sql.EQ("id", id),
				sql.EQ("status", string(entity.JobStatusQueued)),
				sql.NotIn("user_id", r.busyUsers()),
			))
		affected, err := r.conn.exec(ctx, claim)
		if err != nil {
			return nil, fmt.Errorf("claim job %s: %w", id, err)
		}
		if affected == 0 {
			continue
		}

		jobs, err := r.scanJobs(ctx, r.conn.selectFrom(jobsTable, jobColumns...).Where(sql.EQ("id", id)))
		if err != nil {
			return nil, fmt.Errorf("load claimed job %s: %w", id, err)
		}
		if len(jobs) == 0 {
			return nil, entity.ErrJobNotFound
		}
		return &jobs[0], nil
	}
	return nil, nil
}

func (r *JobRepository) busyUsers() *sql.Selector {
	return r.conn.selectFrom(jobsTable, "user_id").
		Where(sql.EQ("status", string(entity.JobStatusProcessing)))
}

func (r *JobRepository) RenewLeases(ctx context.Context, owner string, until time.Time) (int, error) {
	update := r.conn.builder().Update(jobsTable).
		Set("lease_until", until.UTC()).
		Where(sql.And(sql.EQ("status", string(entity.JobStatusProcessing)), sql.EQ("owner", owner)))
	affected, err := r.conn.exec(ctx, update)
	if err != nil {
		return 0, fmt.Errorf("renew job leases: %w", err)
	}
	return int(affected), nil
}

func (r *JobRepository) Finish(ctx context.Context, id, owner string, archive *entity.ObjectRef, report *entity.JobReport, now time.Time) error {
	update := r.conn.builder().Update(jobsTable).
		Set("status", string(entity.JobStatusFinished)).
		Set("finished_at", now.UTC()).
		SetNull("lease_until").
		Where(ownedBy(id, owner))
	if archive != nil {
		update.Set("archive_bucket", archive.Bucket).Set("archive_key", archive.Key)
	}
	if report != nil {
		update.Set("report", types.NewJSON(report))
	}
	return r.transition(ctx, id, update)
}

func (r *JobRepository) Fail(ctx context.Context, id, owner, message string, report *entity.JobReport, now time.Time) error {
	update := r.conn.builder().Update(jobsTable).
		Set("status", string(entity.JobStatusFailed)).
		Set("error", message).
		Set("finished_at", now.UTC()).
		SetNull("lease_until").
		Where(ownedBy(id, owner))
	if report != nil {
		update.Set("report", types.NewJSON(report))
	}
	return r.transition(ctx, id, update)
}

func (r *JobRepository) FailExpired(ctx context.Context, message string, now time.Time) (int, error) {
	update := r.conn.builder().Update(jobsTable).
		Set("status", string(entity.JobStatusFailed)).
		Set("error", message).
		Set("finished_at", now.UTC()).
		SetNull("lease_until").
		Where(sql.And(
			sql.EQ("status", string(entity.JobStatusProcessing)),
			sql.Or(sql.IsNull("lease_until"), sql.LT("lease_until", now.UTC())),
		))
	affected, err := r.conn.exec(ctx, update)
	if err != nil {
		return 0, fmt.Errorf("fail expired jobs: %w", err)
	}
	return int(affected), nil
}

func ownedBy(id, owner string) *sql.Predicate {
	return sql.And(
		sql.EQ("id", id),
		sql.EQ("status", string(entity.JobStatusProcessing)),
		sql.EQ("owner", owner),
	)
}

func (r *JobRepository) transition(ctx context.Context, id string, update *sql.UpdateBuilder) error {
	affected, err := r.conn.exec(ctx, update)
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("job %s is not processing under this runner: %w", id, entity.ErrJobNotFound)
	}
	return nil
}

func jobFilters(userID string, params listJobsParams) *sql.Predicate {
	preds := []*sql.Predicate{sql.EQ("user_id", userID)}
	statuses := normalizeLowerStrings(append(params.Statuses, params.Status))
	if len(statuses) > 0 {
		preds = append(preds, sql.In("status", lo.ToAnySlice(statuses)...))
	}
	kinds := normalizeLowerStrings(append(params.Kinds, params.Kind))
	if len(kinds) > 0 {
		preds = append(preds, sql.In("kind", lo.ToAnySlice(kinds)...))
	}
	if params.CreatedAfter != nil {
		preds = append(preds, sql.GTE("created_at", params.CreatedAfter.UTC()))
	}
	if params.CreatedBefore != nil {
		preds = append(preds, sql.LTE("created_at", params.CreatedBefore.UTC()))
	}
	return sql.And(preds...)
}

func applyJobOrdering(q *sql.Selector, params listJobsParams) {
	for _, term := range []struct {
		key  string
		desc bool
	}{
		{key: params.PrimaryKey, desc: params.PrimaryDesc},
		{key: params.SecondaryKey, desc: params.SecondaryDesc},
	} {
		if expr, ok := listJobsSchema.Order.OrderExpr(term.key); ok {
			q.OrderBy(orderBy(term.desc, expr))
		}
	}
	q.OrderBy(sql.Asc("id"))
}

func (r *JobRepository) scanJobs(ctx context.Context, q *sql.Selector) ([]entity.Job, error) {
	var jobs []entity.Job
	err := r.conn.query(ctx, q, func(rows *stdsql.Rows) error {
		var (
			j                         entity.Job
			kind, status              string
			mode, errMsg              stdsql.NullString
			srcBucket, srcKey         stdsql.NullString
			archiveBucket, archiveKey stdsql.NullString
			options                   types.JSON[entity.ExportOptions]
			report                    types.JSON[*entity.JobReport]
			startedAt, finishedAt     stdsql.NullTime
			owner                     stdsql.NullString
			leaseUntil                stdsql.NullTime
		)
		if err := rows.Scan(&j.ID, &j.UserID, &kind, &status, &mode, &options,
			&srcBucket, &srcKey, &archiveBucket, &archiveKey,
			&errMsg, &report, &j.CreatedAt, &startedAt, &finishedAt,
			&owner, &leaseUntil); err != nil {
			return err
		}
		j.Kind = entity.JobKind(kind)
		j.Status = entity.JobStatus(status)
		j.Mode = entity.ImportMode(mode.String)
		j.Options = options.V
		j.Error = errMsg.String
		j.Report = report.V
		j.StartedAt = timePtr(startedAt)
		j.FinishedAt = timePtr(finishedAt)
		j.Owner = owner.String
		j.LeaseUntil = timePtr(leaseUntil)
		if srcBucket.Valid {
			j.Source = &entity.ObjectRef{Bucket: srcBucket.String, Key: srcKey.String}
		}
		if archiveBucket.Valid {
			j.Archive = &entity.ObjectRef{Bucket: archiveBucket.String, Key: archiveKey.String}
		}
		jobs = append(jobs, j)
		return nil
	})
	return jobs, err
}

// normalizeLowerStrings trims, lowercases and dedupes filter values, dropping blanks.
func normalizeLowerStrings(in []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(in))
	for _, item := range in {
		v := strings.ToLower(strings.TrimSpace(item))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
