package repository

import (
	"context"

	"github.com/eslsoft/deeplisten/internal/entity"
)

// WordRepository defines data access for the shared word table.
type WordRepository interface {
	Create(ctx context.Context, word *entity.Word) (*entity.Word, error)
	GetByIDs(ctx context.Context, ids []string) ([]entity.Word, error)
	// FindByNormalized returns nil when no word has the normalized text.
	FindByNormalized(ctx context.Context, normalized string) (*entity.Word, error)
	CountByNormalized(ctx context.Context, normalized string) (int, error)
}
