package repository

import (
	"context"

	"github.com/eslsoft/deeplisten/internal/entity"
)

// FolderRepository defines data access for material folders.
type FolderRepository interface {
	Create(ctx context.Context, folder *entity.Folder) (*entity.Folder, error)
	GetByID(ctx context.Context, userID, id string) (*entity.Folder, error)
	// FindByName matches name under parentID; a nil parentID matches root folders.
	FindByName(ctx context.Context, userID, name string, parentID *string) (*entity.Folder, error)
	SetParent(ctx context.Context, userID, id string, parentID *string) error
	// List returns folders ordered by parent then position.
	List(ctx context.Context, userID string, page Pagination) ([]entity.Folder, error)
}
