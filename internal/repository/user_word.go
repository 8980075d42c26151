package repository

import (
	"context"
	"time"

	"github.com/eslsoft/deeplisten/internal/entity"
)

// UserWordStatusRepository abstracts persistence for per-user word state and its reviews.
type UserWordStatusRepository interface {
	Create(ctx context.Context, status *entity.UserWordStatus) (*entity.UserWordStatus, error)
	Update(ctx context.Context, status *entity.UserWordStatus) (*entity.UserWordStatus, error)
	FindByWord(ctx context.Context, userID, wordID string) (*entity.UserWordStatus, error)
	List(ctx context.Context, userID string, page Pagination) ([]entity.UserWordStatus, error)

	CreateReview(ctx context.Context, review *entity.WordReview) (*entity.WordReview, error)
	FindReview(ctx context.Context, statusID string, reviewedAt time.Time) (*entity.WordReview, error)
	ListReviews(ctx context.Context, userID string, page Pagination) ([]entity.WordReview, error)
}
