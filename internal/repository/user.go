package repository

import (
	"context"

	"github.com/eslsoft/deeplisten/internal/entity"
)

// UserRepository defines data access for user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) (*entity.User, error)
	GetByID(ctx context.Context, id string) (*entity.User, error)
	// UpdateProfile writes display name, avatar key and settings.
	UpdateProfile(ctx context.Context, user *entity.User) (*entity.User, error)
}
