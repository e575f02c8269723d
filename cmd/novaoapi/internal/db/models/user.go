package models

import (
	"time"

	"github.com/uptrace/bun"
)

// User is a portal customer. Portal users sign in to see their own
// subscription; they never reach the upstream panel.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           string    `bun:"id,pk" json:"id"`
	Name         string    `bun:"name,notnull,unique" json:"name"`
	UUID         string    `bun:"uuid,notnull" json:"uuid"` // panel client identifier
	PasswordHash string    `bun:"password_hash,notnull" json:"-"`
	Subscription string    `bun:"subscription" json:"subscription"`
	Usage        int64     `bun:"usage,notnull,default:0" json:"usage"`
	Total        int64     `bun:"total,notnull,default:0" json:"total"`
	Registered   string    `bun:"registered" json:"registered"` // YYYY-MM-DD
	Config       string    `bun:"config" json:"config"`
	SubLink      string    `bun:"sublink" json:"sublink"`
	ExpiryDate   string    `bun:"expiry_date" json:"expiryDate"`
	PlanTitle    string    `bun:"plan_title" json:"planTitle"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt    time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}
