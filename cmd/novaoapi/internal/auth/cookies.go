package auth

import (
	"net/http"
	"time"
)

const (
	// AdminSessionCookieName carries the admin-scoped LocalSession.
	AdminSessionCookieName = "novao-admin-session"
	// UserSessionCookieName carries the portal-user LocalSession.
	UserSessionCookieName = "novao-user"
	// GatePassCookieName carries the proof that the PIN step succeeded.
	GatePassCookieName = "novao.gate"
	// BindingCookieName carries the signed panel binding of the upstream session.
	BindingCookieName = "novao.panel"
	// DefaultUpstreamCookieName is the cookie name the panel issues its session under.
	DefaultUpstreamCookieName = "session"
)

// Cookies writes and reads every cookie the portal owns.
type Cookies struct {
	Secure         bool
	UpstreamCookie string
	Binding        *BindingCodec
}

// NewCookies builds the cookie helper. upstreamCookie defaults to "session".
func NewCookies(secure bool, upstreamCookie string, binding *BindingCodec) *Cookies {
	if upstreamCookie == "" {
		upstreamCookie = DefaultUpstreamCookieName
	}
	return &Cookies{Secure: secure, UpstreamCookie: upstreamCookie, Binding: binding}
}

// SessionCookieName returns the LocalSession cookie for a scope.
func SessionCookieName(scope Scope) string {
	if scope == ScopeAdmin {
		return AdminSessionCookieName
	}
	return UserSessionCookieName
}

// SetLocalSession writes the LocalSession cookie for the session's scope and
// expires the other scope's cookie, so a browser holds one LocalSession.
func (c *Cookies) SetLocalSession(w http.ResponseWriter, token string, session *LocalSession) {
	name := SessionCookieName(session.Scope)
	for _, other := range []string{AdminSessionCookieName, UserSessionCookieName} {
		if other != name {
			http.SetCookie(w, c.expired(other))
		}
	}
	http.SetCookie(w, c.cookie(name, token, session.ExpiresAt))
}

// ClearLocalSessions expires both LocalSession cookies.
func (c *Cookies) ClearLocalSessions(w http.ResponseWriter) {
	http.SetCookie(w, c.expired(AdminSessionCookieName))
	http.SetCookie(w, c.expired(UserSessionCookieName))
}

// LocalSessionToken returns the raw LocalSession token, preferring the admin cookie.
func (c *Cookies) LocalSessionToken(r *http.Request) string {
	for _, name := range []string{AdminSessionCookieName, UserSessionCookieName} {
		if ck, err := r.Cookie(name); err == nil && ck.Value != "" {
			return ck.Value
		}
	}
	return ""
}

// SetUpstreamSession re-issues the panel token under the panel's own cookie
// name, byte for byte, together with its binding cookie.
func (c *Cookies) SetUpstreamSession(w http.ResponseWriter, s *UpstreamSession) error {
	binding, err := c.Binding.Encode(s)
	if err != nil {
		return err
	}
	http.SetCookie(w, c.cookie(c.UpstreamCookie, s.Token, s.ExpiresAt))
	http.SetCookie(w, c.cookie(BindingCookieName, binding, s.ExpiresAt))
	return nil
}

// ClearUpstreamSession expires the bridged cookies.
func (c *Cookies) ClearUpstreamSession(w http.ResponseWriter) {
	http.SetCookie(w, c.expired(c.UpstreamCookie))
	http.SetCookie(w, c.expired(BindingCookieName))
}

// UpstreamSession returns the bridged session valid against panelURL.
func (c *Cookies) UpstreamSession(r *http.Request, panelURL string, now time.Time) (*UpstreamSession, error) {
	return c.Binding.Resolve(cookieValue(r, c.UpstreamCookie), cookieValue(r, BindingCookieName), panelURL, now)
}

// SetGatePass writes the gate pass cookie.
func (c *Cookies) SetGatePass(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, c.cookie(GatePassCookieName, token, expires))
}

// ClearGatePass expires the gate pass cookie.
func (c *Cookies) ClearGatePass(w http.ResponseWriter) {
	http.SetCookie(w, c.expired(GatePassCookieName))
}

// GatePass returns the raw gate pass token.
func (c *Cookies) GatePass(r *http.Request) string {
	return cookieValue(r, GatePassCookieName)
}

func (c *Cookies) cookie(name, value string, expires time.Time) *http.Cookie {
	maxAge := int(time.Until(expires).Round(time.Second) / time.Second)
	if maxAge <= 0 {
		maxAge = -1
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (c *Cookies) expired(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func cookieValue(r *http.Request, name string) string {
	ck, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}
