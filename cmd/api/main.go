// Package main is the entry point for the PromptForge API server.
//
// Startup order: load configuration, apply pending schema migrations, open
// the database pool, wire the domain services and handlers, then serve HTTP
// until a shutdown signal arrives. Graceful shutdown drains in-flight
// requests, waits for background audit writes, and releases pooled
// resources.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"promptforge/internal/api/handlers"
	"promptforge/internal/auth"
	"promptforge/internal/billing"
	"promptforge/internal/config"
	"promptforge/internal/core"
	"promptforge/internal/db"
	"promptforge/internal/external"
	"promptforge/internal/metering"
	"promptforge/internal/ratelimit"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("promptforge API starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
	)

	// Schema first: the request path assumes migrated tables.
	if err := db.Migrate(cfg.Database.URL.Unmask()); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	logger.Info("database migrations applied")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database pool: %w", err)
	}
	defer pool.Close()

	// Repositories.
	users := db.NewUserRepository(pool)
	sessions := db.NewSessionRepository(pool)
	prompts := db.NewPromptRepository(pool)
	usage := db.NewDailyUsageRepo(pool)
	usageLog := db.NewUsageLogRepo(pool)
	planTx := db.NewPlanTxManager(pool)

	// Expired sessions accumulate silently; clear them on boot.
	if n, err := sessions.DeleteExpired(ctx, time.Now()); err != nil {
		logger.Warn("expired session cleanup failed", "error", err)
	} else if n > 0 {
		logger.Info("expired sessions removed", "count", n)
	}

	// Domain services.
	authService := auth.NewService(auth.ServiceConfig{
		Users:      users,
		Sessions:   sessions,
		SessionTTL: cfg.Auth.SessionTTL,
		BcryptCost: cfg.Auth.BcryptCost,
		Logger:     logger,
	})

	enforcer := metering.NewEnforcer(billing.NewStaticPlanRegistry(), usage, usageLog, logger)

	stripeClient := external.NewStripeClient(
		&http.Client{Timeout: 20 * time.Second},
		users,
		external.StripeClientConfig{
			SecretKey:  cfg.Billing.StripeSecretKey.Unmask(),
			ProPriceID: cfg.Billing.ProPriceID,
			Logger:     logger,
		},
	)
	growthClient := external.NewGrowthClient(
		&http.Client{Timeout: cfg.Growth.Timeout},
		cfg.Growth,
		logger,
	)

	billingService := billing.NewService(planTx, stripeClient, cfg.Server.DashboardURL, logger)

	// Rate limiters: a broad per-IP budget for all traffic and a stricter
	// one for AI-cost-bearing endpoints.
	apiLimiter := ratelimit.New(ratelimit.Config{
		Name:          "api",
		MaxRequests:   cfg.RateLimit.APIMaxRequests,
		Window:        cfg.RateLimit.APIWindow,
		SweepInterval: cfg.RateLimit.SweepInterval,
	})
	aiLimiter := ratelimit.New(ratelimit.Config{
		Name:          "ai",
		MaxRequests:   cfg.RateLimit.AIMaxRequests,
		Window:        cfg.RateLimit.AIWindow,
		SweepInterval: cfg.RateLimit.SweepInterval,
	})
	defer aiLimiter.Stop()

	// HTTP chassis.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Authenticator = authService
	srv.APILimiter = apiLimiter
	srv.Metrics = core.NewMetrics()
	srv.HealthProbes = append(srv.HealthProbes, &databaseProbe{pool: pool})

	authHandler := handlers.NewAuthHandler(authService, srv.Validator, logger)
	promptHandler := handlers.NewPromptHandler(prompts, enforcer, srv.Validator, logger)
	usageHandler := handlers.NewUsageHandler(enforcer, logger)
	growthHandler := handlers.NewGrowthHandler(
		growthClient,
		enforcer,
		core.NamedRateLimit(aiLimiter, cfg.RateLimit.AIMaxRequests, logger, srv.Metrics),
		srv.Validator,
		logger,
	)
	billingHandler := handlers.NewBillingHandler(
		billingService,
		stripeClient,
		cfg.Billing.StripeWebhookSecret.Unmask(),
		srv.Validator,
		logger,
	)
	userHandler := handlers.NewUserHandler(users, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		authHandler.RegisterRoutes,
		promptHandler.RegisterRoutes,
		usageHandler.RegisterRoutes,
		growthHandler.RegisterRoutes,
		billingHandler.RegisterRoutes,
		userHandler.RegisterRoutes,
	)
	srv.MountRoutes()

	err = serveHTTP(ctx, srv, cfg, logger)

	// Let in-flight audit writes land before the pool closes.
	enforcer.Wait()

	if shutdownErr := srv.Shutdown(context.Background()); shutdownErr != nil {
		logger.Error("server resource shutdown error", "error", shutdownErr)
	}
	return err
}

// serveHTTP runs the listener until ctx is cancelled (shutdown signal) or the
// server fails, then drains in-flight requests with a deadline.
func serveHTTP(ctx context.Context, srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped cleanly")
	return nil
}

// databaseProbe reports database reachability for the health endpoint.
type databaseProbe struct {
	pool interface {
		Ping(ctx context.Context) error
	}
}

func (p *databaseProbe) Name() string                    { return "database" }
func (p *databaseProbe) Check(ctx context.Context) error { return p.pool.Ping(ctx) }

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})
	return slog.New(handler)
}
