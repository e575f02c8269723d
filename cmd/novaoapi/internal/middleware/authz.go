package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/casbin/casbin/v2"
	"github.com/rs/zerolog/hlog"

	"github.com/dwnilii/novao/cmd/novaoapi/internal/auth"
)

// NewAuthzMiddleware enforces the scope policy for every request. Anonymous
// callers are told to authenticate (401); authenticated callers without the
// right scope get 403.
func NewAuthzMiddleware(enforcer casbin.IEnforcer) (func(http.Handler) http.Handler, error) {
	if enforcer == nil {
		return nil, errors.New("authz middleware requires casbin enforcer")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			session, _ := auth.GetSessionFromContext(r.Context())
			subject := auth.SubjectFor(session)

			allowed, err := enforcer.Enforce(subject, r.URL.Path, r.Method)
			if err != nil {
				hlog.FromRequest(r).Error().Err(err).Msg("authorization error")
				writeMessage(w, http.StatusInternalServerError, "authorization error")
				return
			}
			if !allowed {
				if session == nil {
					writeMessage(w, http.StatusUnauthorized, "Authentication required.")
					return
				}
				writeMessage(w, http.StatusForbidden, "Forbidden.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
