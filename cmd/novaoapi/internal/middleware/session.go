package middleware

import (
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/dwnilii/novao/cmd/novaoapi/internal/auth"
)

// SessionVerifier validates a LocalSession token.
type SessionVerifier interface {
	VerifySession(token string) (*auth.LocalSession, error)
}

// NewSessionMiddleware puts a verified LocalSession on the request context.
// Missing or invalid cookies leave the request anonymous; the authz
// middleware decides whether that is enough.
func NewSessionMiddleware(verifier SessionVerifier, cookies *auth.Cookies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := cookies.LocalSessionToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			session, err := verifier.VerifySession(token)
			if err != nil {
				hlog.FromRequest(r).Debug().Err(err).Msg("ignoring invalid local session")
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.SetSessionContext(r.Context(), session)))
		})
	}
}
