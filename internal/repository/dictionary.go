package repository

import (
	"context"

	"github.com/eslsoft/deeplisten/internal/entity"
)

// DictionaryRepository defines data access for user dictionaries and their word memberships.
type DictionaryRepository interface {
	Create(ctx context.Context, dict *entity.Dictionary) (*entity.Dictionary, error)
	FindByName(ctx context.Context, userID, name string) (*entity.Dictionary, error)
	List(ctx context.Context, userID string, page Pagination) ([]entity.Dictionary, error)

	// AddEntry reports false when the word is already a member.
	AddEntry(ctx context.Context, entry *entity.DictionaryEntry) (bool, error)
	ListEntries(ctx context.Context, dictionaryID string) ([]entity.DictionaryEntry, error)
}
