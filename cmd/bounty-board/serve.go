package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/terra-clan/bounty-board/internal/api"
	"github.com/terra-clan/bounty-board/internal/auth"
	"github.com/terra-clan/bounty-board/internal/bounty"
	"github.com/terra-clan/bounty-board/internal/config"
	"github.com/terra-clan/bounty-board/internal/events"
	"github.com/terra-clan/bounty-board/internal/services"
	"github.com/terra-clan/bounty-board/internal/storage"
	"github.com/terra-clan/bounty-board/internal/timewindow"
	"github.com/terra-clan/bounty-board/internal/watcher"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "migrate", Value: true, Usage: "apply pending migrations before serving"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := setup(c.Context)
			if err != nil {
				return err
			}
			return serve(c.Context, cfg, c.Bool("migrate"))
		},
	}
}

func serve(parent context.Context, cfg *config.Config, migrate bool) error {
	slog.Info("starting bounty-board",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"driver", cfg.Database.Driver,
		"environment", cfg.App.Environment,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(parent, 30*time.Second)
	defer initCancel()

	if migrate && cfg.Database.Driver == config.DriverPostgres {
		slog.Info("running database migrations", "dir", cfg.Database.MigrationsDir)
		if _, err := storage.MigrateFromDSN(initCtx, cfg.Database.DSN, cfg.Database.MigrationsDir); err != nil {
			return err
		}
	}

	repo, err := openRepository(initCtx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	registry := services.NewRegistry()
	registry.Register(cfg.Database.Driver, services.CheckFunc(repo.Ping))

	// Admin allow-list, cached in Redis when configured
	var cache auth.AdminCache
	if cfg.Redis.CacheEnabled() {
		redisCache, err := auth.NewRedisAdminCache(initCtx, auth.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.AdminTTL,
		})
		if err != nil {
			return err
		}
		defer redisCache.Close()
		registry.Register("redis", redisCache)
		cache = redisCache
		slog.Info("admin cache enabled", "address", cfg.Redis.Address)
	}
	authorizer := auth.NewAuthorizer(repo, cache)

	if cfg.Database.Driver == config.DriverMemory {
		res, err := applySeed(initCtx, repo, cfg.App.SeedDir, cache)
		if err != nil {
			slog.Warn("failed to seed memory store", "dir", cfg.App.SeedDir, "error", err)
		} else {
			slog.Info("memory store seeded", "categories", res.Categories, "bounties", res.Bounties)
		}
	}

	loc, err := cfg.Bounty.Location()
	if err != nil {
		return err
	}

	hub := events.NewHub(64)
	defer hub.Close()

	svc := bounty.NewService(repo, timewindow.New(timewindow.SystemClock, loc), authorizer,
		bounty.WithPublisher(hub),
		bounty.WithStrictLabels(cfg.Bounty.StrictLabels),
	)

	var verifier *auth.TokenVerifier
	if cfg.Auth.JWTSecret != "" {
		verifier = auth.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	}
	if cfg.Auth.InsecureWalletHeader {
		slog.Warn("trusting X-Wallet-Address without a token, do not use in production")
	}

	// Create context with cancellation on interrupt
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher.New(svc, hub, cfg.Watcher.Interval).Start(ctx)

	server := api.NewServer(cfg.Server, svc, hub, registry, api.Options{
		Verifier:             verifier,
		InsecureWalletHeader: cfg.Auth.InsecureWalletHeader,
		SubmissionsPerMinute: cfg.Rate.SubmissionsPerMinute,
		Burst:                cfg.Rate.Burst,
		Metrics:              cfg.Metrics.Enabled,
	})
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	slog.Info("shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("bounty-board stopped")
	return nil
}
