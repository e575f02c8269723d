package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/dwnilii/novao/cmd/novaoapi/internal/db/models"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSettingRepository counts reads so tests can observe read-through behaviour.
type mockSettingRepository struct {
	values map[string]string
	gets   int
	getErr error
}

func newMockRepo() *mockSettingRepository {
	return &mockSettingRepository{values: map[string]string{}}
}

func (m *mockSettingRepository) Get(_ context.Context, key string) (*models.Setting, error) {
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return nil, repository.ErrSettingNotFound
	}
	return &models.Setting{Key: key, Value: v}, nil
}

func (m *mockSettingRepository) Set(_ context.Context, key, value string) error {
	m.values[key] = value
	return nil
}

func (m *mockSettingRepository) List(context.Context) ([]models.Setting, error) {
	return nil, nil
}

func (m *mockSettingRepository) Delete(_ context.Context, key string) error {
	delete(m.values, key)
	return nil
}

func TestPanelURL_NotConfigured(t *testing.T) {
	repo := newMockRepo()
	cfg := NewPanelConfig(repo)

	_, err := cfg.PanelURL(context.Background())
	assert.ErrorIs(t, err, ErrPanelURLNotConfigured)

	repo.values[models.SettingPanelURL] = "   "
	_, err = cfg.PanelURL(context.Background())
	assert.ErrorIs(t, err, ErrPanelURLNotConfigured)
}

func TestPanelURL_ReadThrough(t *testing.T) {
	repo := newMockRepo()
	cfg := NewPanelConfig(repo)
	ctx := context.Background()

	require.NoError(t, cfg.SetPanelURL(ctx, "https://panel-a.example/"))
	url, err := cfg.PanelURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://panel-a.example", url)

	// A write behind the accessor's back is visible on the next call.
	repo.values[models.SettingPanelURL] = "https://panel-b.example"
	url, err = cfg.PanelURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://panel-b.example", url)
	assert.Equal(t, 2, repo.gets)
}

func TestPanelURL_StoreError(t *testing.T) {
	repo := newMockRepo()
	repo.getErr = errors.New("disk on fire")

	_, err := NewPanelConfig(repo).PanelURL(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPanelURLNotConfigured)
}

func TestSetPanelURL_RejectsEmpty(t *testing.T) {
	cfg := NewPanelConfig(newMockRepo())
	assert.ErrorIs(t, cfg.SetPanelURL(context.Background(), " / "), ErrPanelURLNotConfigured)
}
