package repository

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"time"

	"entgo.io/ent/dialect/sql"

	"github.com/eslsoft/deeplisten/internal/entity"
	"github.com/eslsoft/deeplisten/internal/infrastructure/database/types"
	"github.com/eslsoft/deeplisten/internal/repository"
)

const usersTable = "users"

var userColumns = []string{"id", "username", "email", "display_name", "password_hash", "avatar_key", "settings", "created_at", "updated_at"}

type UserRepository struct {
	conn *Conn
}

// NewUserRepository constructs a SQL-backed user repository.
func NewUserRepository(conn *Conn) repository.UserRepository {
	return &UserRepository{conn: conn}
}

func (r *UserRepository) Create(ctx context.Context, user *entity.User) (*entity.User, error) {
	if err := user.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	rec := (&record{}).
		set("id", user.ID).
		set("username", user.Username).
		set("email", user.Email).
		set("display_name", user.DisplayName).
		set("password_hash", user.PasswordHash).
		set("avatar_key", nullableString(user.AvatarKey)).
		set("settings", types.RawJSON(user.Settings)).
		set("created_at", user.CreatedAt.UTC()).
		set("updated_at", user.UpdatedAt)
	if err := r.conn.insert(ctx, usersTable, rec, false); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	var (
		u        entity.User
		avatar   stdsql.NullString
		settings types.RawJSON
	)
	found, err := r.conn.first(ctx,
		r.conn.selectFrom(usersTable, userColumns...).Where(sql.EQ("id", id)),
		&u.ID, &u.Username, &u.Email, &u.DisplayName, &u.PasswordHash, &avatar, &settings, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !found {
		return nil, entity.ErrUserNotFound
	}
	u.AvatarKey = avatar.String
	u.Settings = []byte(settings)
	return &u, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, user *entity.User) (*entity.User, error) {
	user.UpdatedAt = time.Now().UTC()
	update := r.conn.builder().Update(usersTable).
		Set("display_name", user.DisplayName).
		Set("settings", types.RawJSON(user.Settings)).
		Set("updated_at", user.UpdatedAt).
		Where(sql.EQ("id", user.ID))
	if user.AvatarKey == "" {
		update.SetNull("avatar_key")
	} else {
		update.Set("avatar_key", user.AvatarKey)
	}
	affected, err := r.conn.exec(ctx, update)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if affected == 0 {
		return nil, entity.ErrUserNotFound
	}
	return user, nil
}
