package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dwnilii/novao/cmd/novaoapi/internal/auth"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/db/bunx"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/gate"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/gateway"
	novaomw "github.com/dwnilii/novao/cmd/novaoapi/internal/middleware"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/migrations"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/panel"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/repository"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/server"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/services/bridge"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/services/iam"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/settings"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/telemetry"
)

var autoMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the portal API server",
	Long:  `Starts the HTTP server with the auth, admin and panel gateway endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Connect to database
		db, err := bunx.NewDB(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		log.Info().Str("dialect", string(bunx.DetectDatabaseType(cfg.DatabaseURL))).Msg("connected to database")

		if autoMigrate {
			group, err := migrations.Apply(cmd.Context(), db)
			if err != nil {
				return fmt.Errorf("auto-migrate: %w", err)
			}
			if group.ID == 0 {
				log.Info().Msg("database schema up to date")
			} else {
				log.Info().Int64("group", group.ID).Msg("applied migrations")
			}
		}

		// Initialize repositories
		userRepo := repository.NewBunUserRepository(db)
		settingRepo := repository.NewBunSettingRepository(db)
		panelCfg := settings.NewPanelConfig(settingRepo)

		issuer, err := auth.NewIssuer(cfg.SessionSecret)
		if err != nil {
			return fmt.Errorf("configure session issuer: %w", err)
		}
		cookies := auth.NewCookies(cfg.SecureCookies(), cfg.Panel.SessionCookie, auth.NewBindingCodec(cfg.SessionSecret))

		pinGate, err := gate.New(gate.Options{
			PINHash:     cfg.Admin.PINHash,
			PINLength:   cfg.Admin.PINLength,
			MaxAttempts: cfg.Gate.MaxAttempts,
			BaseLockout: cfg.Gate.BaseLockout,
			MaxLockout:  cfg.Gate.MaxLockout,
			Capacity:    cfg.Gate.Capacity,
		})
		if err != nil {
			return fmt.Errorf("configure pin gate: %w", err)
		}
		if cfg.Admin.PINHash == "" {
			log.Warn().Msg("admin pin is not configured; the admin area is unreachable")
		}
		if !cfg.Admin.Configured() {
			log.Warn().Msg("admin credentials are not configured; admin login will be refused")
		}

		// Initialize services
		panelClient := panel.NewClient(panel.NewHTTPClient(cfg.Panel.Timeout), cfg.Panel.SessionCookie)
		bridgeService := bridge.NewService(panelClient, panelCfg)
		iamService := iam.NewService(userRepo, issuer, iam.AdminCredentials{
			Username:     cfg.Admin.Username,
			PasswordHash: cfg.Admin.PasswordHash,
		})

		var metrics *telemetry.Metrics
		if cfg.Metrics.Enabled {
			metrics = telemetry.NewMetrics()
		}

		gw := gateway.New(gateway.Options{
			Prefix:       server.GatewayPrefix,
			EndpointRoot: cfg.Panel.EndpointRoot,
			Panel:        panelCfg,
			Client:       panelClient,
			Cookies:      cookies,
			Metrics:      metrics,
		})

		enforcer, err := auth.InitEnforcer()
		if err != nil {
			return fmt.Errorf("configure casbin enforcer: %w", err)
		}
		authzMiddleware, err := novaomw.NewAuthzMiddleware(enforcer)
		if err != nil {
			return fmt.Errorf("configure authorization middleware: %w", err)
		}

		loginLimiter, err := novaomw.NewLoginLimiter(cfg.Login.Rate, cfg.Login.Burst, cfg.Gate.Capacity)
		if err != nil {
			return fmt.Errorf("configure login limiter: %w", err)
		}

		corsOpts := server.DefaultCORSOptions()
		if len(cfg.CORS.AllowedOrigins) > 0 {
			corsOpts.AllowedOrigins = cfg.CORS.AllowedOrigins
		}

		logger := log.Logger
		r := server.NewRouter(server.RouterOptions{
			IAM:            iamService,
			Gate:           pinGate,
			GatePasses:     issuer,
			Bridge:         bridgeService,
			Panel:          panelCfg,
			Settings:       settingRepo,
			Gateway:        gw,
			Cookies:        cookies,
			Authz:          authzMiddleware,
			LoginLimiter:   loginLimiter,
			Logger:         &logger,
			TrustedProxies: cfg.TrustedProxies,
			Metrics:        metrics,
			ExposeMetrics:  cfg.Metrics.Enabled,
			CORSOptions:    &corsOpts,
		})

		// Create HTTP server
		srv := &http.Server{
			Addr:              cfg.ServerAddr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			// Panel calls may take up to the panel timeout.
			WriteTimeout: cfg.Panel.Timeout + 15*time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// Start server in goroutine
		serverErrors := make(chan error, 1)
		go func() {
			log.Info().Str("addr", cfg.ServerAddr).Str("environment", cfg.Environment).Msg("starting server")
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			log.Info().Str("signal", sig.String()).Msg("shutting down gracefully")

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}

			log.Info().Msg("server stopped")
			return nil
		}
	},
}

func init() {
	serveCmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "Apply pending database migrations before serving")
	rootCmd.AddCommand(serveCmd)
}
