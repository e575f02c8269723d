package repository

import (
	"context"
	"errors"

	"github.com/dwnilii/novao/cmd/novaoapi/internal/db/models"
)

var (
	// ErrUserNotFound is returned when no portal user matches the lookup.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists is returned when a user name is already taken.
	ErrUserExists = errors.New("user already exists")

	// ErrSettingNotFound is returned when a settings key has no row.
	ErrSettingNotFound = errors.New("setting not found")
)

// UserRepository exposes persistence operations for portal users.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByName(ctx context.Context, name string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) error
}

// SettingRepository exposes the key/value settings table. Every write is a
// single upsert so callers never need read-modify-write sequences.
type SettingRepository interface {
	Get(ctx context.Context, key string) (*models.Setting, error)
	Set(ctx context.Context, key, value string) error
	List(ctx context.Context) ([]models.Setting, error)
	Delete(ctx context.Context, key string) error
}
