package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/terra-clan/bounty-board/internal/auth"
	"github.com/terra-clan/bounty-board/internal/config"
	"github.com/terra-clan/bounty-board/internal/seed"
	"github.com/terra-clan/bounty-board/internal/storage"
)

func main() {
	app := &cli.App{
		Name:  "bounty-board",
		Usage: "time-boxed bounties with wallet submissions and one-time winner selection",
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			seedCommand(),
			tokenCommand(),
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("bounty-board failed", "error", err)
		os.Exit(1)
	}
}

// setup loads configuration and installs the JSON logger
func setup(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.SlogLevel(),
	}))
	slog.SetDefault(logger)

	return cfg, nil
}

// openRepository connects the configured storage driver
func openRepository(ctx context.Context, cfg *config.Config) (storage.Repository, error) {
	if cfg.Database.Driver == config.DriverMemory {
		slog.Warn("using in-memory storage, data is lost on restart")
		return storage.NewMemoryRepository(), nil
	}

	repo, err := storage.NewPostgresRepository(ctx, storage.PostgresConfig{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxConns,
		MaxIdleConns: cfg.Database.MinConns,
		MaxLifetime:  cfg.Database.MaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("database connected successfully")
	return repo, nil
}

// applySeed loads every seed file from dir into repo. Membership may have
// changed, so a cached allow-list is dropped through the authorizer.
func applySeed(ctx context.Context, repo storage.Repository, dir string, cache auth.AdminCache) (seed.Result, error) {
	loader := seed.NewLoader()
	if err := loader.LoadFromDir(dir); err != nil {
		return seed.Result{}, err
	}
	res, err := loader.Apply(ctx, repo)
	if err != nil {
		return res, err
	}

	if err := auth.NewAuthorizer(repo, cache).Refresh(ctx); err != nil {
		slog.Warn("failed to refresh admin cache", "error", err)
	}
	return res, nil
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply pending database migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Usage: "migrations directory (overrides DB_MIGRATIONS_DIR)"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := setup(c.Context)
			if err != nil {
				return err
			}
			if cfg.Database.Driver != config.DriverPostgres {
				return fmt.Errorf("migrations require the %s driver", config.DriverPostgres)
			}

			dir := cfg.Database.MigrationsDir
			if c.String("dir") != "" {
				dir = c.String("dir")
			}

			ctx, cancel := context.WithTimeout(c.Context, 2*time.Minute)
			defer cancel()

			applied, err := storage.MigrateFromDSN(ctx, cfg.Database.DSN, dir)
			if err != nil {
				return err
			}
			slog.Info("migrations complete", "applied", applied, "dir", dir)
			return nil
		},
	}
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "load categories, admin wallets and sample bounties from YAML",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Usage: "seed directory (overrides APP_SEED_DIR)"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := setup(c.Context)
			if err != nil {
				return err
			}
			if cfg.Database.Driver != config.DriverPostgres {
				return fmt.Errorf("seeding a %s store is done by serve", cfg.Database.Driver)
			}

			dir := cfg.App.SeedDir
			if c.String("dir") != "" {
				dir = c.String("dir")
			}

			ctx, cancel := context.WithTimeout(c.Context, time.Minute)
			defer cancel()

			repo, err := openRepository(ctx, cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			var cache auth.AdminCache
			if cfg.Redis.CacheEnabled() {
				redisCache, err := auth.NewRedisAdminCache(ctx, auth.RedisConfig{
					Address:  cfg.Redis.Address,
					Password: cfg.Redis.Password,
					DB:       cfg.Redis.DB,
					TTL:      cfg.Redis.AdminTTL,
				})
				if err != nil {
					slog.Warn("failed to connect admin cache", "error", err)
				} else {
					defer redisCache.Close()
					cache = redisCache
				}
			}

			res, err := applySeed(ctx, repo, dir, cache)
			if err != nil {
				return err
			}

			slog.Info("seed applied",
				"dir", dir,
				"categories", res.Categories,
				"admin_wallets", res.AdminWallets,
				"bounties", res.Bounties,
			)
			return nil
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:      "token",
		Usage:     "issue a bearer token for a wallet",
		ArgsUsage: "<wallet-address>",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour, Usage: "token lifetime"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := setup(c.Context)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("AUTH_JWT_SECRET is not set")
			}
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one wallet address")
			}

			token, err := auth.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer).Issue(c.Args().First(), c.Duration("ttl"))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, token)
			return nil
		},
	}
}
