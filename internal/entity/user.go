package entity

import (
	"encoding/json"
	"time"
)

// User is the account owning every user-scoped row.
type User struct {
	ID           string
	Username     string
	Email        string
	DisplayName  string
	PasswordHash string
	AvatarKey    string // media bucket key, empty when unset
	Settings     json.RawMessage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate validates the user entity
func (u *User) Validate() error {
	if u.ID == "" {
		return ErrInvalidUserID
	}
	return nil
}
