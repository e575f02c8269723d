package repository

import (
	"context"
	"testing"

	"github.com/dwnilii/novao/cmd/novaoapi/internal/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBunUserRepository_Create(t *testing.T) {
	repo := NewBunUserRepository(setupTestDB(t))
	ctx := context.Background()

	t.Run("create fills generated fields", func(t *testing.T) {
		user := &models.User{Name: "alice", PasswordHash: "$2a$10$hash", Total: 1024}
		require.NoError(t, repo.Create(ctx, user))

		assert.NotEmpty(t, user.ID)
		assert.NotEmpty(t, user.UUID)
		assert.Len(t, user.Registered, len("2006-01-02"))

		got, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Name)
		assert.Equal(t, int64(1024), got.Total)
		assert.Equal(t, user.UUID, got.UUID)
	})

	t.Run("duplicate name", func(t *testing.T) {
		err := repo.Create(ctx, &models.User{Name: "alice", PasswordHash: "x"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUserExists)
	})

	t.Run("missing name", func(t *testing.T) {
		err := repo.Create(ctx, &models.User{PasswordHash: "x"})
		require.Error(t, err)
	})

	t.Run("missing password hash", func(t *testing.T) {
		err := repo.Create(ctx, &models.User{Name: "bob"})
		require.Error(t, err)
	})
}

func TestBunUserRepository_GetByName(t *testing.T) {
	repo := NewBunUserRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.User{Name: "carol", PasswordHash: "h", PlanTitle: "Gold"}))

	got, err := repo.GetByName(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, "Gold", got.PlanTitle)

	_, err = repo.GetByName(ctx, "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)

	// Names are matched exactly.
	_, err = repo.GetByName(ctx, "Carol")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestBunUserRepository_ListUpdateDelete(t *testing.T) {
	repo := NewBunUserRepository(setupTestDB(t))
	ctx := context.Background()

	a := &models.User{Name: "a", PasswordHash: "h1"}
	b := &models.User{Name: "b", PasswordHash: "h2"}
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	users, err := repo.List(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Name)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, names)

	require.NoError(t, repo.UpdatePasswordHash(ctx, a.ID, "h1-new"))
	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "h1-new", got.PasswordHash)

	err = repo.UpdatePasswordHash(ctx, "missing", "x")
	assert.ErrorIs(t, err, ErrUserNotFound)

	require.NoError(t, repo.Delete(ctx, b.ID))
	_, err = repo.GetByID(ctx, b.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, b.ID), ErrUserNotFound)
}
