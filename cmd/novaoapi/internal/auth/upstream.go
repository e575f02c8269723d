package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/securecookie"
)

var (
	// ErrNoUpstreamSession means the browser holds no usable bridged session.
	ErrNoUpstreamSession = errors.New("no upstream session")
	// ErrUpstreamSessionStale means the bridged session exists but was issued
	// for a different panel URL or has passed its absolute expiry.
	ErrUpstreamSessionStale = errors.New("upstream session is stale")
)

// UpstreamSession is a session token issued by the external panel and
// re-issued verbatim to the browser.
type UpstreamSession struct {
	Token     string
	PanelURL  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// NewUpstreamSession stamps a freshly bridged token with its lifetime.
func NewUpstreamSession(token, panelURL string, now time.Time) *UpstreamSession {
	now = now.UTC().Truncate(time.Second)
	return &UpstreamSession{
		Token:     token,
		PanelURL:  panelURL,
		IssuedAt:  now,
		ExpiresAt: now.Add(SessionDuration),
	}
}

// panelBinding is the signed companion record of the upstream cookie.
type panelBinding struct {
	TokenHash string `json:"th"`
	PanelURL  string `json:"url"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// BindingCodec signs and encrypts the panel binding cookie.
type BindingCodec struct {
	sc *securecookie.SecureCookie
}

// NewBindingCodec derives the cookie keys from the session secret.
func NewBindingCodec(secret []byte) *BindingCodec {
	sc := securecookie.New(deriveKey(secret, "novao.panel.hash", 64), deriveKey(secret, "novao.panel.block", 32))
	sc.SetSerializer(securecookie.JSONEncoder{})
	sc.MaxAge(int(SessionDuration / time.Second))
	return &BindingCodec{sc: sc}
}

// Encode produces the binding cookie value for s.
func (c *BindingCodec) Encode(s *UpstreamSession) (string, error) {
	value, err := c.sc.Encode(BindingCookieName, panelBinding{
		TokenHash: hashToken(s.Token),
		PanelURL:  s.PanelURL,
		IssuedAt:  s.IssuedAt.Unix(),
		ExpiresAt: s.ExpiresAt.Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("encode panel binding: %w", err)
	}
	return value, nil
}

// Resolve rebuilds the UpstreamSession from the raw token and binding cookie
// values, rejecting it unless it was bridged against currentPanelURL and
// has not expired.
func (c *BindingCodec) Resolve(token, binding, currentPanelURL string, now time.Time) (*UpstreamSession, error) {
	if token == "" || binding == "" {
		return nil, ErrNoUpstreamSession
	}
	var b panelBinding
	if err := c.sc.Decode(BindingCookieName, binding, &b); err != nil {
		return nil, ErrNoUpstreamSession
	}
	if subtle.ConstantTimeCompare([]byte(b.TokenHash), []byte(hashToken(token))) != 1 {
		return nil, ErrNoUpstreamSession
	}
	if b.PanelURL != currentPanelURL || !now.Before(time.Unix(b.ExpiresAt, 0)) {
		return nil, ErrUpstreamSessionStale
	}
	return &UpstreamSession{
		Token:     token,
		PanelURL:  b.PanelURL,
		IssuedAt:  time.Unix(b.IssuedAt, 0).UTC(),
		ExpiresAt: time.Unix(b.ExpiresAt, 0).UTC(),
	}, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func deriveKey(secret []byte, label string, size int) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(label))
	key := mac.Sum(nil)
	for len(key) < size {
		mac.Reset()
		mac.Write(key)
		key = append(key, mac.Sum(nil)...)
	}
	return key[:size]
}
