package server

import (
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/dwnilii/novao/cmd/novaoapi/internal/auth"
	novaomw "github.com/dwnilii/novao/cmd/novaoapi/internal/middleware"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/repository"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/telemetry"
)

// RouterOptions controls the construction of the portal HTTP router.
// Route groups whose collaborators are nil are not mounted, so tests can
// build a router with only the pieces they exercise.
type RouterOptions struct {
	IAM            iamService
	Gate           pinGate
	GatePasses     gatePasses
	Bridge         bridger
	Panel          panelSettings
	Settings       repository.SettingRepository
	Gateway        http.Handler
	Cookies        *auth.Cookies
	Authz          func(http.Handler) http.Handler
	LoginLimiter   *novaomw.LoginLimiter
	Logger         *zerolog.Logger
	Metrics        *telemetry.Metrics
	// TrustedProxies may set the client address through forwarding headers.
	TrustedProxies []netip.Prefix
	// ExposeMetrics mounts /metrics (admin scope under the default policy).
	ExposeMetrics bool
	CORSOptions   *cors.Options
	Middleware    []func(http.Handler) http.Handler
	HealthHandler http.HandlerFunc
	ExtraRoutes   func(chi.Router)
}

// GatewayPrefix is where gateway calls are mounted.
const GatewayPrefix = "/api/panel"

// DefaultCORSOptions returns the policy for the portal front end in development.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins: []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Accept", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NewRouter assembles a chi.Router with shared middleware, CORS policy, and
// the portal handlers mounted.
func NewRouter(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	// Baseline middleware shared across entrypoints.
	r.Use(middleware.RequestID)
	r.Use(novaomw.NewTrustedRealIP(opts.TrustedProxies))
	if opts.Logger != nil {
		r.Use(novaomw.NewLoggingMiddleware(*opts.Logger, opts.Metrics)...)
	}
	r.Use(middleware.Recoverer)

	corsCfg := DefaultCORSOptions()
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	if opts.IAM != nil && opts.Cookies != nil {
		r.Use(novaomw.NewSessionMiddleware(opts.IAM, opts.Cookies))
	}
	if opts.Authz != nil {
		r.Use(opts.Authz)
	}

	// Apply custom middleware passed from the caller.
	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	healthHandler := opts.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	r.Get("/health", healthHandler)

	if opts.ExposeMetrics && opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	if opts.Cookies != nil {
		mountAuthRoutes(r, opts)
		mountAdminRoutes(r, opts)
	}

	if opts.Gateway != nil {
		for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete} {
			r.Method(method, GatewayPrefix+"/*", opts.Gateway)
		}
	}

	if opts.ExtraRoutes != nil {
		opts.ExtraRoutes(r)
	}

	return r
}

func mountAuthRoutes(r chi.Router, opts RouterOptions) {
	r.Group(func(r chi.Router) {
		if opts.LoginLimiter != nil {
			r.Use(opts.LoginLimiter.Middleware)
		}
		if opts.Gate != nil && opts.GatePasses != nil {
			r.Post("/auth/pin", HandleVerifyPIN(opts.Gate, opts.GatePasses, opts.Cookies, opts.Metrics))
		}
		if opts.IAM != nil {
			if opts.GatePasses != nil {
				r.Post("/auth/admin/login", HandleAdminLogin(opts.IAM, opts.GatePasses, opts.Cookies, opts.Metrics))
			}
			r.Post("/auth/login", HandlePortalLogin(opts.IAM, opts.Cookies, opts.Metrics))
		}
	})

	r.Post("/auth/logout", HandleLogout(opts.Cookies))
	if opts.IAM != nil {
		r.Get("/auth/whoami", HandleWhoAmI(opts.IAM))
	}
}

func mountAdminRoutes(r chi.Router, opts RouterOptions) {
	r.Route("/admin", func(r chi.Router) {
		if opts.Bridge != nil {
			r.Post("/panel/bridge", HandleBridge(opts.Bridge, opts.Cookies, opts.Metrics))
		}
		r.Delete("/panel/bridge", HandleUnbridge(opts.Cookies))
		if opts.Panel != nil {
			r.Get("/panel/status", HandlePanelStatus(opts.Panel, opts.Cookies))
		}
		if opts.Settings != nil && opts.Panel != nil {
			r.Get("/settings", HandleListSettings(opts.Settings))
			r.Get("/settings/{key}", HandleGetSetting(opts.Settings))
			r.Put("/settings/{key}", HandlePutSetting(opts.Settings, opts.Panel))
			r.Delete("/settings/{key}", HandleDeleteSetting(opts.Settings))
		}
	})
}
