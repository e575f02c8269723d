package bunx

import "github.com/google/uuid"

// NewUUIDv7 generates a time-ordered UUIDv7 string for primary keys.
// It works the same on SQLite and PostgreSQL, which lack a shared UUID default.
func NewUUIDv7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewUUIDv4 generates a random UUID, used for the panel client identifier of
// portal users when none is supplied.
func NewUUIDv4() string {
	return uuid.NewString()
}
