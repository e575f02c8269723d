// Package gateway relays admin calls under the reserved prefix to the panel
// API, authenticated only by the bridged upstream session.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/hlog"

	"github.com/dwnilii/novao/cmd/novaoapi/internal/auth"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/panel"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/settings"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/telemetry"
)

const (
	// DefaultPrefix is the reserved inbound path prefix.
	DefaultPrefix = "/api/panel"
	// DefaultEndpointRoot is the panel's inbound API root.
	DefaultEndpointRoot = "/panel/api/inbounds"

	maxBodyBytes = 1 << 20

	msgNotConfigured   = "Panel URL is not configured in settings."
	msgNoSession       = "Authentication required. No session found."
	msgProxyFailure    = "An unknown error occurred during API proxying."
	msgInvalidBody     = "Request body could not be read."
	msgSettingsFailure = "Panel settings could not be read."
)

// PanelURLReader reads the panel base URL on every call.
type PanelURLReader interface {
	PanelURL(ctx context.Context) (string, error)
}

// Options configures a Gateway.
type Options struct {
	Prefix       string
	EndpointRoot string
	Routes       []Route
	Panel        PanelURLReader
	Client       *panel.Client
	Cookies      *auth.Cookies
	Metrics      *telemetry.Metrics
	Now          func() time.Time
}

// Gateway is an http.Handler. It keeps no state between requests.
type Gateway struct {
	opts Options
}

var _ http.Handler = (*Gateway)(nil)

// New builds a Gateway, filling in the default prefix, endpoint root and route table.
func New(opts Options) *Gateway {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	opts.Prefix = strings.TrimRight(opts.Prefix, "/")
	if opts.EndpointRoot == "" {
		opts.EndpointRoot = DefaultEndpointRoot
	}
	opts.EndpointRoot = strings.TrimRight(opts.EndpointRoot, "/")
	if opts.Routes == nil {
		opts.Routes = Routes
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Gateway{opts: opts}
}

// ServeHTTP proxies one call.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := hlog.FromRequest(r)

	panelURL, err := g.opts.Panel.PanelURL(ctx)
	if err != nil {
		if errors.Is(err, settings.ErrPanelURLNotConfigured) {
			g.fail(w, r, http.StatusInternalServerError, msgNotConfigured)
			return
		}
		logger.Error().Err(err).Msg("read panel url")
		g.fail(w, r, http.StatusInternalServerError, msgSettingsFailure)
		return
	}

	session, err := g.opts.Cookies.UpstreamSession(r, panelURL, g.opts.Now())
	if err != nil {
		if errors.Is(err, auth.ErrUpstreamSessionStale) {
			g.opts.Cookies.ClearUpstreamSession(w)
		}
		g.fail(w, r, http.StatusUnauthorized, msgNoSession)
		return
	}

	target := panelURL + g.UpstreamPath(r.Method, r.URL.EscapedPath())
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	body, err := forwardBody(w, r)
	if err != nil {
		g.fail(w, r, http.StatusBadRequest, msgInvalidBody)
		return
	}

	started := time.Now()
	resp, err := g.opts.Client.Forward(ctx, r.Method, target, body, session.Token)
	g.opts.Metrics.ObserveUpstream("forward", started)
	if err != nil {
		logger.Warn().Err(err).Str("method", r.Method).Bool("timeout", panel.IsTimeout(err)).Msg("panel call failed")
		g.fail(w, r, http.StatusInternalServerError, msgProxyFailure)
		return
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// The panel revoked the session; the admin must bridge again.
		g.opts.Cookies.ClearUpstreamSession(w)
	}

	payload := resp.Body
	if resp.OK() {
		var compact bytes.Buffer
		if err := json.Compact(&compact, resp.Body); err == nil {
			payload = compact.Bytes()
		}
	} else {
		logger.Debug().Int("status", resp.StatusCode).Msg("relaying panel error")
	}

	contentType := "application/json"
	if !json.Valid(payload) {
		contentType = resp.Header.Get("Content-Type")
	}
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(resp.StatusCode)
	if len(payload) > 0 {
		_, _ = w.Write(payload)
	}
	g.opts.Metrics.RecordGateway(r.Method, resp.StatusCode)
}

// UpstreamPath strips the prefix from an inbound path and maps it onto the
// endpoint root.
func (g *Gateway) UpstreamPath(method, inboundPath string) string {
	stripped := strings.TrimPrefix(inboundPath, g.opts.Prefix)
	if stripped != "" && !strings.HasPrefix(stripped, "/") {
		stripped = "/" + stripped
	}
	return g.opts.EndpointRoot + MapPath(g.opts.Routes, method, stripped)
}

func (g *Gateway) fail(w http.ResponseWriter, r *http.Request, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
	g.opts.Metrics.RecordGateway(r.Method, status)
}

// forwardBody returns the inbound body when it must travel upstream: only
// for POST, PUT and DELETE with a JSON content type.
func forwardBody(w http.ResponseWriter, r *http.Request) (io.Reader, error) {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return nil, nil
	}
	if !isJSON(r.Header.Get("Content-Type")) || r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return bytes.NewReader(data), nil
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
