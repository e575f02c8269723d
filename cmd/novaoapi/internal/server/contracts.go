package server

import (
	"context"
	"time"

	"github.com/dwnilii/novao/cmd/novaoapi/internal/auth"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/db/models"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/repository"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/services/bridge"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/services/iam"
)

// iamService is the identity surface the handlers need.
type iamService interface {
	AuthenticatePortalUser(ctx context.Context, username, password string) (string, *auth.LocalSession, error)
	AuthenticateAdmin(ctx context.Context, username, password string) (string, *auth.LocalSession, error)
	VerifySession(token string) (*auth.LocalSession, error)
	Profile(ctx context.Context, session *auth.LocalSession) (*models.User, error)
}

// pinGate verifies the admin PIN for one client.
type pinGate interface {
	Verify(clientKey, pin string) (bool, error)
}

// gatePasses mints and checks the short-lived proof of a passed PIN gate.
type gatePasses interface {
	IssueGatePass() (string, time.Time, error)
	VerifyGatePass(token string) error
}

// bridger performs the upstream session bridge.
type bridger interface {
	Bridge(ctx context.Context, panelURL, username, password string) (*bridge.Result, error)
}

// panelSettings is the read-through panel URL accessor.
type panelSettings interface {
	PanelURL(ctx context.Context) (string, error)
	SetPanelURL(ctx context.Context, panelURL string) error
}

// Compile-time checks that the concrete services satisfy the handler contracts.
var (
	_ iamService                   = (*iam.Service)(nil)
	_ gatePasses                   = (*auth.Issuer)(nil)
	_ bridger                      = (*bridge.Service)(nil)
	_ repository.SettingRepository = (*repository.BunSettingRepository)(nil)
)
