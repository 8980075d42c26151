package repository

import (
	"context"
	stdsql "database/sql"
	"fmt"

	"entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/eslsoft/deeplisten/internal/entity"
	"github.com/eslsoft/deeplisten/internal/repository"
)

const (
	practicesTable  = "practice_progress"
	dailyStatsTable = "daily_study_stats"
)

var (
	practiceColumns   = []string{"id", "user_id", "sentence_id", "attempts", "best_score", "last_input", "last_practiced_at"}
	dailyStatsColumns = []string{"id", "user_id", "date", "new_words", "reviews", "practice_seconds", "sentences_practiced"}
)

type StudyRepository struct {
	conn *Conn
}

// NewStudyRepository constructs a SQL-backed study repository.
func NewStudyRepository(conn *Conn) repository.StudyRepository {
	return &StudyRepository{conn: conn}
}

func (r *StudyRepository) CreatePractice(ctx context.Context, p *entity.PracticeProgress) (*entity.PracticeProgress, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	rec := (&record{}).
		set("id", p.ID).
		set("user_id", p.UserID).
		set("sentence_id", p.SentenceID).
		set("attempts", p.Attempts).
		set("best_score", p.BestScore).
		set("last_input", nullableString(p.LastInput)).
		set("last_practiced_at", nullableTime(p.LastPracticedAt))
	if err := r.conn.insert(ctx, practicesTable, rec, true); err != nil {
		return nil, fmt.Errorf("create practice: %w", err)
	}
	return p, nil
}

func (r *StudyRepository) UpdatePractice(ctx context.Context, p *entity.PracticeProgress) (*entity.PracticeProgress, error) {
	update := r.conn.builder().Update(practicesTable).
		Set("attempts", p.Attempts).
		Set("best_score", p.BestScore).
		Set("last_input", nullableString(p.LastInput)).
		Set("last_practiced_at", nullableTime(p.LastPracticedAt)).
		Where(sql.And(sql.EQ("user_id", p.UserID), sql.EQ("id", p.ID)))
	if _, err := r.conn.exec(ctx, update); err != nil {
		return nil, fmt.Errorf("update practice: %w", err)
	}
	return p, nil
}

func (r *StudyRepository) FindPractice(ctx context.Context, userID, sentenceID string) (*entity.PracticeProgress, error) {
	q := r.conn.selectFrom(practicesTable, practiceColumns...).
		Where(sql.And(sql.EQ("user_id", userID), sql.EQ("sentence_id", sentenceID)))
	practices, err := r.scanPractices(ctx, q)
	if err != nil || len(practices) == 0 {
		return nil, err
	}
	return &practices[0], nil
}

func (r *StudyRepository) ListPractices(ctx context.Context, userID string, page repository.Pagination) ([]entity.PracticeProgress, error) {
	q := r.conn.selectFrom(practicesTable, practiceColumns...).
		Where(sql.EQ("user_id", userID)).
		OrderBy(sql.Asc("id"))
	return r.scanPractices(ctx, limitOffset(q, page.PageSize, page.Offset()))
}

func (r *StudyRepository) CreateDailyStats(ctx context.Context, s *entity.DailyStudyStats) (*entity.DailyStudyStats, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	rec := (&record{}).
		set("id", s.ID).
		set("user_id", s.UserID).
		set("date", s.Date).
		set("new_words", s.NewWords).
		set("reviews", s.Reviews).
		set("practice_seconds", s.PracticeSeconds).
		set("sentences_practiced", s.SentencesPracticed)
	if err := r.conn.insert(ctx, dailyStatsTable, rec, true); err != nil {
		return nil, fmt.Errorf("create daily stats: %w", err)
	}
	return s, nil
}

func (r *StudyRepository) UpdateDailyStats(ctx context.Context, s *entity.DailyStudyStats) (*entity.DailyStudyStats, error) {
	update := r.conn.builder().Update(dailyStatsTable).
		Set("new_words", s.NewWords).
		Set("reviews", s.Reviews).
		Set("practice_seconds", s.PracticeSeconds).
		Set("sentences_practiced", s.SentencesPracticed).
		Where(sql.And(sql.EQ("user_id", s.UserID), sql.EQ("id", s.ID)))
	if _, err := r.conn.exec(ctx, update); err != nil {
		return nil, fmt.Errorf("update daily stats: %w", err)
	}
	return s, nil
}

func (r *StudyRepository) FindDailyStats(ctx context.Context, userID, date string) (*entity.DailyStudyStats, error) {
	q := r.conn.selectFrom(dailyStatsTable, dailyStatsColumns...).
		Where(sql.And(sql.EQ("user_id", userID), sql.EQ("date", date)))
	stats, err := r.scanDailyStats(ctx, q)
	if err != nil || len(stats) == 0 {
		return nil, err
	}
	return &stats[0], nil
}

func (r *StudyRepository) ListDailyStats(ctx context.Context, userID string, page repository.Pagination) ([]entity.DailyStudyStats, error) {
	q := r.conn.selectFrom(dailyStatsTable, dailyStatsColumns...).
		Where(sql.EQ("user_id", userID)).
		OrderBy(sql.Asc("date"))
	return r.scanDailyStats(ctx, limitOffset(q, page.PageSize, page.Offset()))
}

func (r *StudyRepository) scanPractices(ctx context.Context, q *sql.Selector) ([]entity.PracticeProgress, error) {
	var practices []entity.PracticeProgress
	err := r.conn.query(ctx, q, func(rows *stdsql.Rows) error {
		var (
			p         entity.PracticeProgress
			lastInput stdsql.NullString
			lastAt    stdsql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.SentenceID, &p.Attempts, &p.BestScore, &lastInput, &lastAt); err != nil {
			return err
		}
		p.LastInput = lastInput.String
		p.LastPracticedAt = timePtr(lastAt)
		practices = append(practices, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list practices: %w", err)
	}
	return practices, nil
}

func (r *StudyRepository) scanDailyStats(ctx context.Context, q *sql.Selector) ([]entity.DailyStudyStats, error) {
	var stats []entity.DailyStudyStats
	err := r.conn.query(ctx, q, func(rows *stdsql.Rows) error {
		var s entity.DailyStudyStats
		if err := rows.Scan(&s.ID, &s.UserID, &s.Date, &s.NewWords, &s.Reviews, &s.PracticeSeconds, &s.SentencesPracticed); err != nil {
			return err
		}
		stats = append(stats, s)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list daily stats: %w", err)
	}
	return stats, nil
}
