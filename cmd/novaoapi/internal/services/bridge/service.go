// Package bridge logs into the upstream panel with operator credentials and
// turns the panel's session cookie into a first-party UpstreamSession.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dwnilii/novao/cmd/novaoapi/internal/auth"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/panel"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/settings"
)

// PanelURLWriter persists the panel base URL after a successful bridge.
type PanelURLWriter interface {
	SetPanelURL(ctx context.Context, panelURL string) error
}

// Result is a successful bridge.
type Result struct {
	Session *auth.UpstreamSession
	// Body is the panel's own login response, relayed to the caller.
	Body []byte
}

// Service performs the bridge sequence. It holds no per-session state.
type Service struct {
	client *panel.Client
	store  PanelURLWriter
	now    func() time.Time
}

// NewService wires the bridge.
func NewService(client *panel.Client, store PanelURLWriter) *Service {
	return &Service{client: client, store: store, now: time.Now}
}

// Bridge logs into panelURL and returns the session the panel granted.
// It makes one outbound call and, on success, one settings write. It never retries.
func (s *Service) Bridge(ctx context.Context, panelURL, username, password string) (*Result, error) {
	panelURL = settings.NormalizePanelURL(panelURL)
	if panelURL == "" {
		return nil, &ConfigError{Reason: "panel url is required"}
	}

	resp, err := s.client.Login(ctx, panelURL, panel.Credentials{Username: username, Password: password})
	if err != nil {
		var te *panel.TransportError
		if errors.As(err, &te) {
			return nil, &ConnectionError{Err: te.Err}
		}
		return nil, err
	}

	env, envErr := panel.ParseEnvelope(resp.Body)
	if !resp.OK() || envErr != nil || !env.Success {
		msg := GenericFailureMessage
		if envErr == nil && env.Msg != "" {
			msg = env.Msg
		}
		return nil, &UpstreamAuthError{Status: resp.StatusCode, Message: msg}
	}

	token := s.client.SessionToken(resp)
	if token == "" {
		return nil, ErrMissingSessionCookie
	}

	if err := s.store.SetPanelURL(ctx, panelURL); err != nil {
		return nil, fmt.Errorf("persist panel url: %w", err)
	}

	return &Result{
		Session: auth.NewUpstreamSession(token, panelURL, s.now()),
		Body:    resp.Body,
	}, nil
}
