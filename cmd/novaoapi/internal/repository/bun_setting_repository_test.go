package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBunSettingRepository_Upsert(t *testing.T) {
	repo := NewBunSettingRepository(setupTestDB(t))
	ctx := context.Background()

	_, err := repo.Get(ctx, "panelUrl")
	assert.ErrorIs(t, err, ErrSettingNotFound)

	require.NoError(t, repo.Set(ctx, "panelUrl", "https://panel-a.example"))
	require.NoError(t, repo.Set(ctx, "panelUrl", "https://panel-b.example"))

	got, err := repo.Get(ctx, "panelUrl")
	require.NoError(t, err)
	assert.Equal(t, "https://panel-b.example", got.Value)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestBunSettingRepository_ListAndDelete(t *testing.T) {
	repo := NewBunSettingRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "siteTitle", "Novao"))
	require.NoError(t, repo.Set(ctx, "panelUrl", "https://p.example"))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "panelUrl", all[0].Key)
	assert.Equal(t, "siteTitle", all[1].Key)

	require.NoError(t, repo.Delete(ctx, "siteTitle"))
	assert.ErrorIs(t, repo.Delete(ctx, "siteTitle"), ErrSettingNotFound)
}

// Concurrent writers never leave more than one row per key.
func TestBunSettingRepository_ConcurrentSet(t *testing.T) {
	repo := NewBunSettingRepository(setupTestDB(t))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, repo.Set(ctx, "panelUrl", fmt.Sprintf("https://p%d.example", i)))
		}(i)
	}
	wg.Wait()

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
