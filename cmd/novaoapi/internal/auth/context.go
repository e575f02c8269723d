package auth

import (
	"context"
	"time"
)

// Scope is the privilege level a LocalSession grants.
type Scope string

const (
	// ScopePortalUser is granted to customers signing in with their portal password.
	ScopePortalUser Scope = "portal-user"
	// ScopeAdmin is granted to the operator after the PIN gate and admin login.
	ScopeAdmin Scope = "admin"
	// ScopeAnonymous is the casbin subject for requests without a LocalSession.
	ScopeAnonymous Scope = "anonymous"
)

// AdminSubject is the subject of every admin LocalSession.
const AdminSubject = "admin"

// Valid reports whether s is a scope a LocalSession may carry.
func (s Scope) Valid() bool {
	return s == ScopePortalUser || s == ScopeAdmin
}

// LocalSession is the portal's own authentication state. It never carries
// the upstream panel token.
type LocalSession struct {
	Subject   string
	Scope     Scope
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IsAdmin reports whether the session has admin scope.
func (s *LocalSession) IsAdmin() bool {
	return s != nil && s.Scope == ScopeAdmin
}

type sessionContextKey struct{}

// SetSessionContext stores the verified LocalSession on the context for downstream consumers.
func SetSessionContext(ctx context.Context, session *LocalSession) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, session)
}

// GetSessionFromContext retrieves the LocalSession from the context.
func GetSessionFromContext(ctx context.Context) (*LocalSession, bool) {
	session, ok := ctx.Value(sessionContextKey{}).(*LocalSession)
	return session, ok && session != nil
}
