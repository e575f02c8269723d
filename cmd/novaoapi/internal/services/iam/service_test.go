package iam

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dwnilii/novao/cmd/novaoapi/internal/auth"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/db/models"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/repository"
)

type mockUserStore struct {
	users map[string]*models.User
	err   error
}

func (m *mockUserStore) GetByName(_ context.Context, name string) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users {
		if u.Name == name {
			clone := *u
			return &clone, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserStore) GetByID(_ context.Context, id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func hash(t *testing.T, s string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(s), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func newTestService(t *testing.T, store *mockUserStore, admin AdminCredentials) *Service {
	t.Helper()
	issuer, err := auth.NewIssuer([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return NewService(store, issuer, admin)
}

func TestAuthenticatePortalUser(t *testing.T) {
	store := &mockUserStore{users: map[string]*models.User{
		"u-1": {ID: "u-1", Name: "alice", PasswordHash: hash(t, "s3cret"), PlanTitle: "Gold"},
	}}
	svc := newTestService(t, store, AdminCredentials{})
	ctx := context.Background()

	token, session, err := svc.AuthenticatePortalUser(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "u-1", session.Subject)
	assert.Equal(t, auth.ScopePortalUser, session.Scope)

	verified, err := svc.VerifySession(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", verified.Subject)

	profile, err := svc.Profile(ctx, verified)
	require.NoError(t, err)
	assert.Equal(t, "Gold", profile.PlanTitle)
	assert.Empty(t, profile.PasswordHash)

	_, _, err = svc.AuthenticatePortalUser(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.AuthenticatePortalUser(ctx, "mallory", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticatePortalUser_StoreError(t *testing.T) {
	svc := newTestService(t, &mockUserStore{err: errors.New("db down")}, AdminCredentials{})
	_, _, err := svc.AuthenticatePortalUser(context.Background(), "alice", "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateAdmin(t *testing.T) {
	svc := newTestService(t, &mockUserStore{}, AdminCredentials{Username: "root", PasswordHash: hash(t, "hunter2")})
	ctx := context.Background()

	_, session, err := svc.AuthenticateAdmin(ctx, "root", "hunter2")
	require.NoError(t, err)
	assert.True(t, session.IsAdmin())
	assert.Equal(t, auth.AdminSubject, session.Subject)

	profile, err := svc.Profile(ctx, session)
	require.NoError(t, err)
	assert.Nil(t, profile)

	for _, tc := range [][2]string{{"root", "nope"}, {"Root", "hunter2"}, {"", ""}} {
		_, _, err := svc.AuthenticateAdmin(ctx, tc[0], tc[1])
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
}

func TestAuthenticateAdmin_NotConfigured(t *testing.T) {
	svc := newTestService(t, &mockUserStore{}, AdminCredentials{})
	_, _, err := svc.AuthenticateAdmin(context.Background(), "admin", "admin")
	assert.ErrorIs(t, err, ErrAdminNotConfigured)
}
