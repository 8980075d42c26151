package repository

import (
	"context"

	"github.com/eslsoft/deeplisten/internal/entity"
)

// StudyRepository defines data access for practice progress and daily stats.
type StudyRepository interface {
	CreatePractice(ctx context.Context, p *entity.PracticeProgress) (*entity.PracticeProgress, error)
	UpdatePractice(ctx context.Context, p *entity.PracticeProgress) (*entity.PracticeProgress, error)
	FindPractice(ctx context.Context, userID, sentenceID string) (*entity.PracticeProgress, error)
	ListPractices(ctx context.Context, userID string, page Pagination) ([]entity.PracticeProgress, error)

	CreateDailyStats(ctx context.Context, s *entity.DailyStudyStats) (*entity.DailyStudyStats, error)
	UpdateDailyStats(ctx context.Context, s *entity.DailyStudyStats) (*entity.DailyStudyStats, error)
	FindDailyStats(ctx context.Context, userID, date string) (*entity.DailyStudyStats, error)
	ListDailyStats(ctx context.Context, userID string, page Pagination) ([]entity.DailyStudyStats, error)
}
