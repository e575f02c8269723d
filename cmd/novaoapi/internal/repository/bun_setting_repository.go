package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dwnilii/novao/cmd/novaoapi/internal/db/models"
	"github.com/uptrace/bun"
)

// BunSettingRepository implements SettingRepository using Bun ORM
type BunSettingRepository struct {
	db *bun.DB
}

// NewBunSettingRepository creates a new Bun-based settings repository
func NewBunSettingRepository(db *bun.DB) *BunSettingRepository {
	return &BunSettingRepository{db: db}
}

// Get reads one key. Missing keys return ErrSettingNotFound.
func (r *BunSettingRepository) Get(ctx context.Context, key string) (*models.Setting, error) {
	setting := new(models.Setting)
	err := r.db.NewSelect().
		Model(setting).
		Where("key = ?", key).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSettingNotFound, key)
		}
		return nil, fmt.Errorf("get setting: %w", err)
	}
	return setting, nil
}

// Set upserts a key in one statement; the last writer wins.
func (r *BunSettingRepository) Set(ctx context.Context, key, value string) error {
	setting := &models.Setting{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}
	_, err := r.db.NewInsert().
		Model(setting).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// List returns every setting ordered by key
func (r *BunSettingRepository) List(ctx context.Context) ([]models.Setting, error) {
	var settings []models.Setting
	err := r.db.NewSelect().
		Model(&settings).
		Order("key ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return settings, nil
}

// Delete removes a key
func (r *BunSettingRepository) Delete(ctx context.Context, key string) error {
	res, err := r.db.NewDelete().
		Model((*models.Setting)(nil)).
		Where("key = ?", key).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete setting: %w", err)
	}
	return requireAffected(res, fmt.Errorf("%w: %s", ErrSettingNotFound, key))
}
