package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/hlog"

	"github.com/dwnilii/novao/cmd/novaoapi/internal/auth"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/db/models"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/gate"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/middleware"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/services/iam"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/telemetry"
)

// PINRequest is the body of POST /auth/pin.
type PINRequest struct {
	PIN string `json:"pin"`
}

// LoginRequest is the body of both login endpoints.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned after a successful local login.
type LoginResponse struct {
	Success   bool         `json:"success"`
	Scope     auth.Scope   `json:"scope"`
	ExpiresAt int64        `json:"expiresAt"`
	User      *models.User `json:"user,omitempty"`
}

// WhoamiResponse describes the caller's LocalSession.
type WhoamiResponse struct {
	Subject   string       `json:"subject"`
	Scope     auth.Scope   `json:"scope"`
	ExpiresAt int64        `json:"expiresAt"`
	User      *models.User `json:"user,omitempty"`
}

// HandleVerifyPIN checks the admin PIN and, on success, hands out the gate pass
// the admin login step requires.
func HandleVerifyPIN(g pinGate, passes gatePasses, cookies *auth.Cookies, metrics *telemetry.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PINRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, ResultResponse{Message: msgInvalidBody})
			return
		}

		ok, err := g.Verify(middleware.ClientKey(r), req.PIN)
		if err != nil {
			var locked *gate.LockedError
			switch {
			case errors.As(err, &locked):
				metrics.RecordGate("locked")
				w.Header().Set("Retry-After", strconv.Itoa(int(locked.RetryAfter.Round(time.Second)/time.Second)))
				writeJSON(w, http.StatusTooManyRequests, ResultResponse{Message: msgTooManyAttempts})
			case errors.Is(err, gate.ErrNotConfigured):
				writeJSON(w, http.StatusServiceUnavailable, ResultResponse{Message: msgPINNotConfigured})
			default:
				hlog.FromRequest(r).Error().Err(err).Msg("pin verification failed")
				writeJSON(w, http.StatusInternalServerError, ResultResponse{Message: msgInternal})
			}
			return
		}
		if !ok {
			metrics.RecordGate("mismatch")
			writeJSON(w, http.StatusUnauthorized, ResultResponse{Message: msgInvalidPIN})
			return
		}

		token, expires, err := passes.IssueGatePass()
		if err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("issue gate pass")
			writeJSON(w, http.StatusInternalServerError, ResultResponse{Message: msgInternal})
			return
		}
		metrics.RecordGate("ok")
		cookies.SetGatePass(w, token, expires)
		writeJSON(w, http.StatusOK, ResultResponse{Success: true})
	}
}

// HandleAdminLogin authenticates the operator. It only runs after the PIN gate.
func HandleAdminLogin(svc iamService, passes gatePasses, cookies *auth.Cookies, metrics *telemetry.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := passes.VerifyGatePass(cookies.GatePass(r)); err != nil {
			writeMessage(w, http.StatusForbidden, msgGateRequired)
			return
		}

		var req LoginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeMessage(w, http.StatusBadRequest, msgInvalidBody)
			return
		}

		token, session, err := svc.AuthenticateAdmin(r.Context(), req.Username, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, iam.ErrInvalidCredentials):
				metrics.RecordLogin(string(auth.ScopeAdmin), "invalid")
				// A failed credential step restarts at the PIN.
				cookies.ClearGatePass(w)
				writeMessage(w, http.StatusUnauthorized, msgInvalidAdminLogin)
			case errors.Is(err, iam.ErrAdminNotConfigured):
				writeMessage(w, http.StatusServiceUnavailable, msgAdminNotConfigured)
			default:
				metrics.RecordLogin(string(auth.ScopeAdmin), "error")
				hlog.FromRequest(r).Error().Err(err).Msg("admin login failed")
				writeMessage(w, http.StatusInternalServerError, msgInternal)
			}
			return
		}

		metrics.RecordLogin(string(auth.ScopeAdmin), "ok")
		hlog.FromRequest(r).Info().Msg("admin signed in")
		cookies.ClearGatePass(w)
		cookies.SetLocalSession(w, token, session)
		writeJSON(w, http.StatusOK, LoginResponse{
			Success:   true,
			Scope:     session.Scope,
			ExpiresAt: session.ExpiresAt.UnixMilli(),
		})
	}
}

// HandlePortalLogin authenticates a portal customer.
func HandlePortalLogin(svc iamService, cookies *auth.Cookies, metrics *telemetry.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req LoginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeMessage(w, http.StatusBadRequest, msgInvalidBody)
			return
		}
		if req.Username == "" || req.Password == "" {
			writeMessage(w, http.StatusBadRequest, msgMissingCredentials)
			return
		}

		token, session, err := svc.AuthenticatePortalUser(ctx, req.Username, req.Password)
		if err != nil {
			if errors.Is(err, iam.ErrInvalidCredentials) {
				metrics.RecordLogin(string(auth.ScopePortalUser), "invalid")
				writeMessage(w, http.StatusUnauthorized, msgInvalidPortalLogin)
				return
			}
			metrics.RecordLogin(string(auth.ScopePortalUser), "error")
			hlog.FromRequest(r).Error().Err(err).Msg("portal login failed")
			writeMessage(w, http.StatusInternalServerError, msgInternal)
			return
		}

		profile, err := svc.Profile(ctx, session)
		if err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("load profile after login")
			writeMessage(w, http.StatusInternalServerError, msgInternal)
			return
		}

		metrics.RecordLogin(string(auth.ScopePortalUser), "ok")
		// A portal session never carries a bridged panel session.
		cookies.ClearUpstreamSession(w)
		cookies.SetLocalSession(w, token, session)
		writeJSON(w, http.StatusOK, LoginResponse{
			Success:   true,
			Scope:     session.Scope,
			ExpiresAt: session.ExpiresAt.UnixMilli(),
			User:      profile,
		})
	}
}

// HandleLogout destroys the LocalSession. Admin logouts also drop the
// bridged upstream session.
func HandleLogout(cookies *auth.Cookies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, _ := auth.GetSessionFromContext(r.Context())
		cookies.ClearLocalSessions(w)
		cookies.ClearGatePass(w)
		if session.IsAdmin() {
			cookies.ClearUpstreamSession(w)
		}
		writeJSON(w, http.StatusOK, ResultResponse{Success: true})
	}
}

// HandleWhoAmI reports the caller's session and, for portal users, their profile.
func HandleWhoAmI(svc iamService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := auth.GetSessionFromContext(r.Context())
		if !ok {
			writeMessage(w, http.StatusUnauthorized, msgUnauthenticated)
			return
		}

		profile, err := svc.Profile(r.Context(), session)
		if err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("load profile")
			writeMessage(w, http.StatusInternalServerError, msgInternal)
			return
		}

		writeJSON(w, http.StatusOK, WhoamiResponse{
			Subject:   session.Subject,
			Scope:     session.Scope,
			ExpiresAt: session.ExpiresAt.UnixMilli(),
			User:      profile,
		})
	}
}
