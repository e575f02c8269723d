// Package iam issues and verifies LocalSessions for portal users and the operator.
package iam

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dwnilii/novao/cmd/novaoapi/internal/auth"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/db/models"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/repository"
)

var (
	// ErrInvalidCredentials is the single error for every failed login; it
	// never says whether the user or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrAdminNotConfigured means no operator credentials were configured.
	ErrAdminNotConfigured = errors.New("admin credentials are not configured")
)

// UserStore is the slice of the identity store iam reads.
type UserStore interface {
	GetByName(ctx context.Context, name string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// AdminCredentials are the operator-configured admin login.
type AdminCredentials struct {
	Username     string
	PasswordHash string
}

// Service authenticates both scopes.
type Service struct {
	users  UserStore
	issuer *auth.Issuer
	admin  AdminCredentials
}

// NewService wires iam.
func NewService(users UserStore, issuer *auth.Issuer, admin AdminCredentials) *Service {
	return &Service{users: users, issuer: issuer, admin: admin}
}

// AuthenticatePortalUser checks a portal user's password and issues a
// portal-user session whose subject is the user id.
func (s *Service) AuthenticatePortalUser(ctx context.Context, username, password string) (string, *auth.LocalSession, error) {
	user, err := s.users.GetByName(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Burn the same bcrypt cost so unknown names are not faster.
			auth.CheckSecret(dummyHash(), password)
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("lookup user: %w", err)
	}
	if !auth.CheckSecret(user.PasswordHash, password) {
		return "", nil, ErrInvalidCredentials
	}
	return s.issuer.IssueSession(user.ID, auth.ScopePortalUser)
}

// AuthenticateAdmin checks the operator credentials and issues an admin session.
func (s *Service) AuthenticateAdmin(_ context.Context, username, password string) (string, *auth.LocalSession, error) {
	if s.admin.Username == "" || s.admin.PasswordHash == "" {
		return "", nil, ErrAdminNotConfigured
	}
	nameOK := auth.EqualConstantTime(username, s.admin.Username)
	passOK := auth.CheckSecret(s.admin.PasswordHash, password)
	if !nameOK || !passOK {
		return "", nil, ErrInvalidCredentials
	}
	return s.issuer.IssueSession(auth.AdminSubject, auth.ScopeAdmin)
}

// VerifySession validates a LocalSession token.
func (s *Service) VerifySession(token string) (*auth.LocalSession, error) {
	return s.issuer.VerifySession(token)
}

// Profile returns the portal user behind a session with the password hash removed.
// Admin sessions have no profile and return (nil, nil).
func (s *Service) Profile(ctx context.Context, session *auth.LocalSession) (*models.User, error) {
	if session == nil || session.Scope != auth.ScopePortalUser {
		return nil, nil
	}
	user, err := s.users.GetByID(ctx, session.Subject)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}

var (
	dummyOnce sync.Once
	dummy     string
)

func dummyHash() string {
	dummyOnce.Do(func() {
		dummy, _ = auth.HashSecret("novao-timing-equalizer")
	})
	return dummy
}
