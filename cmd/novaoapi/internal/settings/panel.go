// Package settings exposes typed accessors over the key/value settings store.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dwnilii/novao/cmd/novaoapi/internal/db/models"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/repository"
)

// ErrPanelURLNotConfigured is returned when no upstream panel base URL is stored.
var ErrPanelURLNotConfigured = errors.New("panel url is not configured")

// PanelConfig reads and writes the upstream panel base URL.
// Every call goes to the store; nothing is cached between requests.
type PanelConfig struct {
	repo repository.SettingRepository
}

// NewPanelConfig wraps a settings repository.
func NewPanelConfig(repo repository.SettingRepository) *PanelConfig {
	return &PanelConfig{repo: repo}
}

// PanelURL returns the current panel base URL.
func (p *PanelConfig) PanelURL(ctx context.Context) (string, error) {
	setting, err := p.repo.Get(ctx, models.SettingPanelURL)
	if err != nil {
		if errors.Is(err, repository.ErrSettingNotFound) {
			return "", ErrPanelURLNotConfigured
		}
		return "", fmt.Errorf("read panel url: %w", err)
	}
	url := NormalizePanelURL(setting.Value)
	if url == "" {
		return "", ErrPanelURLNotConfigured
	}
	return url, nil
}

// SetPanelURL stores the panel base URL with a single upsert.
func (p *PanelConfig) SetPanelURL(ctx context.Context, panelURL string) error {
	panelURL = NormalizePanelURL(panelURL)
	if panelURL == "" {
		return ErrPanelURLNotConfigured
	}
	return p.repo.Set(ctx, models.SettingPanelURL, panelURL)
}

// NormalizePanelURL trims surrounding whitespace and trailing slashes so
// "https://p/" and "https://p" name the same panel.
func NormalizePanelURL(panelURL string) string {
	return strings.TrimRight(strings.TrimSpace(panelURL), "/")
}
