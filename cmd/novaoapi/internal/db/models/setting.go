package models

import (
	"time"

	"github.com/uptrace/bun"
)

// SettingPanelURL is the settings key holding the upstream panel base URL.
const SettingPanelURL = "panelUrl"

// Setting is a single key/value row of portal configuration.
type Setting struct {
	bun.BaseModel `bun:"table:settings,alias:s"`

	Key       string    `bun:"key,pk" json:"key"`
	Value     string    `bun:"value,notnull" json:"value"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}
