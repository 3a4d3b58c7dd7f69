// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/bulletcraft/bulletcraft/internal/config"
	"github.com/bulletcraft/bulletcraft/internal/database"
	"github.com/bulletcraft/bulletcraft/internal/handlers"
	"github.com/bulletcraft/bulletcraft/internal/i18n"
	"github.com/bulletcraft/bulletcraft/internal/metrics"
	appmw "github.com/bulletcraft/bulletcraft/internal/middleware"
	"github.com/bulletcraft/bulletcraft/internal/repository"
	"github.com/bulletcraft/bulletcraft/internal/services/email"
	"github.com/bulletcraft/bulletcraft/internal/services/identity"
	"github.com/bulletcraft/bulletcraft/internal/services/lockout"
	"github.com/bulletcraft/bulletcraft/internal/services/otp"
	"github.com/bulletcraft/bulletcraft/internal/services/session"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 10 * time.Second

// Deps are the collaborators the HTTP routes need.
type Deps struct {
	Repo     *repository.Repository
	Lockouts lockout.Store
	Sender   email.Sender
	Sessions *session.Issuer
	Registry *prometheus.Registry
}

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		return err
	}

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	// i18n
	if err := i18n.Init(); err != nil {
		return fmt.Errorf("failed to init i18n: %w", err)
	}

	// Database (migrations run on open)
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	repo := repository.New(db)

	lockouts, closeLockouts, err := newLockoutStore(ctx, cfg, repo)
	if err != nil {
		return err
	}
	defer closeLockouts()

	sender, err := newSender(cfg)
	if err != nil {
		return err
	}

	sessions, err := session.NewIssuer(cfg.Session.Secret, cfg.Session.TTL)
	if err != nil {
		return fmt.Errorf("failed to create session issuer: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	e, err := New(cfg, Deps{
		Repo:     repo,
		Lockouts: lockouts,
		Sender:   sender,
		Sessions: sessions,
		Registry: reg,
	})
	if err != nil {
		return err
	}

	return startWithGracefulShutdown(ctx, e, cfg)
}

// New builds the Echo instance with middleware and routes.
func New(cfg *config.Config, deps Deps) (*echo.Echo, error) {
	m := metrics.New(deps.Registry)
	if err := metrics.RegisterUserGauge(deps.Registry, deps.Repo); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	otpManager := otp.NewManager(deps.Repo, deps.Lockouts, otp.Options{
		TTL:           cfg.OTP.TTL,
		MaxAttempts:   cfg.OTP.MaxAttempts,
		LockoutWindow: cfg.OTP.LockoutWindow,
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handlers.ErrorHandler

	setupMiddleware(e, cfg)

	h := handlers.New(deps.Repo)
	authH := handlers.NewAuth(otpManager, identity.NewResolver(deps.Repo, m), deps.Sessions, deps.Sender, m)

	e.GET("/health", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))

	api := e.Group("/api/auth")
	api.POST("/send-otp", authH.SendOTP)
	api.POST("/verify-otp", authH.VerifyOTP)
	api.GET("/me", authH.Me, appmw.RequireSession(deps.Sessions, deps.Repo))

	return e, nil
}

// newLockoutStore returns the Redis store when configured, otherwise the database store.
func newLockoutStore(ctx context.Context, cfg *config.Config, repo *repository.Repository) (lockout.Store, func(), error) {
	if cfg.Redis.URL == "" {
		return repo.Lockouts(), func() {}, nil
	}

	client, err := lockout.Connect(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	slog.Info("using redis for lockout state")

	return lockout.NewRedisStore(client), func() {
		if err := client.Close(); err != nil {
			slog.Error("failed to close redis client", "error", err)
		}
	}, nil
}

// newSender returns the SMTP sender, or the log sender when no SMTP host is set.
func newSender(cfg *config.Config) (email.Sender, error) {
	if cfg.SMTP.Host == "" {
		slog.Warn("no SMTP host configured, one-time codes will only be logged")
		return email.LogSender{}, nil
	}

	svc, err := email.NewService(&cfg.SMTP)
	if err != nil {
		return nil, fmt.Errorf("failed to create email service: %w", err)
	}
	return svc, nil
}

func startWithGracefulShutdown(ctx context.Context, e *echo.Echo, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	errChan := make(chan error, 1)

	go func() {
		slog.Info("server running", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
		return err
	}

	slog.Info("server stopped")
	return nil
}
