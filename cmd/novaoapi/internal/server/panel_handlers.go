package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"

	"github.com/dwnilii/novao/cmd/novaoapi/internal/auth"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/services/bridge"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/settings"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/telemetry"
)

// BridgeRequest is the body of POST /admin/panel/bridge.
type BridgeRequest struct {
	PanelURL string `json:"panelUrl"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// PanelStatusResponse reports the bridge state without calling the panel.
type PanelStatusResponse struct {
	Configured bool   `json:"configured"`
	PanelURL   string `json:"panelUrl,omitempty"`
	Bridged    bool   `json:"bridged"`
	ExpiresAt  int64  `json:"expiresAt,omitempty"`
}

// HandleBridge logs into the panel with the submitted credentials and
// re-issues the panel session to this browser.
func HandleBridge(svc bridger, cookies *auth.Cookies, metrics *telemetry.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := hlog.FromRequest(r)

		var req BridgeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, ResultResponse{Msg: msgInvalidBody})
			return
		}

		started := time.Now()
		result, err := svc.Bridge(r.Context(), req.PanelURL, req.Username, req.Password)
		metrics.ObserveUpstream("login", started)
		if err != nil {
			var (
				cfgErr  *bridge.ConfigError
				authErr *bridge.UpstreamAuthError
				connErr *bridge.ConnectionError
			)
			switch {
			case errors.As(err, &cfgErr):
				metrics.RecordBridge("config")
				writeMessage(w, http.StatusBadRequest, "Panel URL is required.")
			case errors.As(err, &authErr):
				metrics.RecordBridge("rejected")
				status := authErr.Status
				if status < 400 {
					status = http.StatusUnauthorized
				}
				writeJSON(w, status, ResultResponse{Msg: authErr.Message})
			case errors.Is(err, bridge.ErrMissingSessionCookie):
				metrics.RecordBridge("missing_cookie")
				logger.Warn().Msg("panel login succeeded without a session cookie")
				writeMessage(w, http.StatusBadGateway, msgMissingSessionCookie)
			case errors.As(err, &connErr):
				metrics.RecordBridge("connection")
				logger.Warn().Err(connErr.Err).Msg("panel unreachable during bridge")
				writeMessage(w, http.StatusInternalServerError, msgPanelUnreachable)
			default:
				metrics.RecordBridge("error")
				logger.Error().Err(err).Msg("bridge failed")
				writeMessage(w, http.StatusInternalServerError, msgInternal)
			}
			return
		}

		if err := cookies.SetUpstreamSession(w, result.Session); err != nil {
			metrics.RecordBridge("error")
			logger.Error().Err(err).Msg("write upstream session cookie")
			writeMessage(w, http.StatusInternalServerError, msgInternal)
			return
		}
		metrics.RecordBridge("success")
		logger.Info().Str("panel_url", result.Session.PanelURL).Msg("panel session bridged")
		writeRaw(w, http.StatusOK, result.Body)
	}
}

// HandleUnbridge drops the bridged session from this browser.
func HandleUnbridge(cookies *auth.Cookies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookies.ClearUpstreamSession(w)
		writeJSON(w, http.StatusOK, ResultResponse{Success: true})
	}
}

// HandlePanelStatus reports whether a panel is configured and whether this
// browser holds a session bridged against it.
func HandlePanelStatus(panel panelSettings, cookies *auth.Cookies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		panelURL, err := panel.PanelURL(r.Context())
		if err != nil {
			if errors.Is(err, settings.ErrPanelURLNotConfigured) {
				writeJSON(w, http.StatusOK, PanelStatusResponse{})
				return
			}
			hlog.FromRequest(r).Error().Err(err).Msg("read panel url")
			writeMessage(w, http.StatusInternalServerError, msgInternal)
			return
		}

		resp := PanelStatusResponse{Configured: true, PanelURL: panelURL}
		if session, err := cookies.UpstreamSession(r, panelURL, time.Now()); err == nil {
			resp.Bridged = true
			resp.ExpiresAt = session.ExpiresAt.UnixMilli()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
