package repository

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"time"

	"entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/eslsoft/deeplisten/internal/entity"
	"github.com/eslsoft/deeplisten/internal/infrastructure/database/types"
	"github.com/eslsoft/deeplisten/internal/repository"
)

const (
	statusesTable = "user_word_statuses"
	reviewsTable  = "word_reviews"
)

var (
	statusColumns = []string{"id", "user_id", "word_id", "state", "scheduler", "notes", "created_at", "updated_at"}
	reviewColumns = []string{"id", "user_id", "status_id", "rating", "duration_ms", "reviewed_at"}
)

type UserWordStatusRepository struct {
	conn *Conn
}

// NewUserWordStatusRepository constructs a SQL-backed status repository.
func NewUserWordStatusRepository(conn *Conn) repository.UserWordStatusRepository {
	return &UserWordStatusRepository{conn: conn}
}

func (r *UserWordStatusRepository) Create(ctx context.Context, s *entity.UserWordStatus) (*entity.UserWordStatus, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.Normalize(time.Now())
	rec := (&record{}).
		set("id", s.ID).
		set("user_id", s.UserID).
		set("word_id", s.WordID).
		set("state", string(s.State)).
		set("scheduler", types.RawJSON(s.Scheduler)).
		set("notes", nullableString(s.Notes)).
		set("created_at", s.CreatedAt.UTC()).
		set("updated_at", s.UpdatedAt.UTC())
	if err := r.conn.insert(ctx, statusesTable, rec, true); err != nil {
		return nil, fmt.Errorf("create word status: %w", err)
	}
	return s, nil
}

func (r *UserWordStatusRepository) Update(ctx context.Context, s *entity.UserWordStatus) (*entity.UserWordStatus, error) {
	s.Normalize(time.Now())
	update := r.conn.builder().Update(statusesTable).
		Set("state", string(s.State)).
		Set("scheduler", types.RawJSON(s.Scheduler)).
		Set("notes", nullableString(s.Notes)).
		Set("updated_at", s.UpdatedAt.UTC()).
		Where(sql.And(sql.EQ("user_id", s.UserID), sql.EQ("id", s.ID)))
	affected, err := r.conn.exec(ctx, update)
	if err != nil {
		return nil, fmt.Errorf("update word status: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("update word status %s: %w", s.ID, entity.ErrWordNotFound)
	}
	return s, nil
}

func (r *UserWordStatusRepository) FindByWord(ctx context.Context, userID, wordID string) (*entity.UserWordStatus, error) {
	q := r.conn.selectFrom(statusesTable, statusColumns...).
		Where(sql.And(sql.EQ("user_id", userID), sql.EQ("word_id", wordID)))
	statuses, err := r.scanStatuses(ctx, q)
	if err != nil || len(statuses) == 0 {
		return nil, err
	}
	return &statuses[0], nil
}

func (r *UserWordStatusRepository) List(ctx context.Context, userID string, page repository.Pagination) ([]entity.UserWordStatus, error) {
	q := r.conn.selectFrom(statusesTable, statusColumns...).
		Where(sql.EQ("user_id", userID)).
		OrderBy(sql.Asc("created_at"), sql.Asc("id"))
	return r.scanStatuses(ctx, limitOffset(q, page.PageSize, page.Offset()))
}

func (r *UserWordStatusRepository) CreateReview(ctx context.Context, review *entity.WordReview) (*entity.WordReview, error) {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	rec := (&record{}).
		set("id", review.ID).
		set("user_id", review.UserID).
		set("status_id", review.StatusID).
		set("rating", review.Rating).
		set("duration_ms", review.DurationMs).
		set("reviewed_at", review.ReviewedAt.UTC())
	if err := r.conn.insert(ctx, reviewsTable, rec, true); err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}
	return review, nil
}

func (r *UserWordStatusRepository) FindReview(ctx context.Context, statusID string, reviewedAt time.Time) (*entity.WordReview, error) {
	q := r.conn.selectFrom(reviewsTable, reviewColumns...).
		Where(sql.And(sql.EQ("status_id", statusID), sql.EQ("reviewed_at", reviewedAt.UTC()))).
		Limit(1)
	reviews, err := r.scanReviews(ctx, q)
	if err != nil || len(reviews) == 0 {
		return nil, err
	}
	return &reviews[0], nil
}

func (r *UserWordStatusRepository) ListReviews(ctx context.Context, userID string, page repository.Pagination) ([]entity.WordReview, error) {
	q := r.conn.selectFrom(reviewsTable, reviewColumns...).
		Where(sql.EQ("user_id", userID)).
		OrderBy(sql.Asc("reviewed_at"), sql.Asc("id"))
	return r.scanReviews(ctx, limitOffset(q, page.PageSize, page.Offset()))
}

func (r *UserWordStatusRepository) scanStatuses(ctx context.Context, q *sql.Selector) ([]entity.UserWordStatus, error) {
	var statuses []entity.UserWordStatus
	err := r.conn.query(ctx, q, func(rows *stdsql.Rows) error {
		var (
			s         entity.UserWordStatus
			state     string
			scheduler types.RawJSON
			notes     stdsql.NullString
		)
		if err := rows.Scan(&s.ID, &s.UserID, &s.WordID, &state, &scheduler, &notes, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return err
		}
		s.State = entity.ParseStatusState(state)
		s.Scheduler = []byte(scheduler)
		s.Notes = notes.String
		statuses = append(statuses, s)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list word statuses: %w", err)
	}
	return statuses, nil
}

func (r *UserWordStatusRepository) scanReviews(ctx context.Context, q *sql.Selector) ([]entity.WordReview, error) {
	var reviews []entity.WordReview
	err := r.conn.query(ctx, q, func(rows *stdsql.Rows) error {
		var rv entity.WordReview
		if err := rows.Scan(&rv.ID, &rv.UserID, &rv.StatusID, &rv.Rating, &rv.DurationMs, &rv.ReviewedAt); err != nil {
			return err
		}
		reviews = append(reviews, rv)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}
