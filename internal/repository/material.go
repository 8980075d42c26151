package repository

import (
	"context"

	"github.com/eslsoft/deeplisten/internal/entity"
)

// MaterialRepository defines data access for materials and their sentences.
type MaterialRepository interface {
	Create(ctx context.Context, material *entity.Material) (*entity.Material, error)
	FindByTitle(ctx context.Context, userID, title string) (*entity.Material, error)
	List(ctx context.Context, userID string, page Pagination) ([]entity.Material, error)
	SetMedia(ctx context.Context, userID, id, key string) error

	CreateSentence(ctx context.Context, sentence *entity.Sentence) (*entity.Sentence, error)
	// ListSentences returns the sentences of a material in position order.
	ListSentences(ctx context.Context, materialID string) ([]entity.Sentence, error)
}
