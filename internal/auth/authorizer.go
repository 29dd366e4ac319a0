package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/terra-clan/bounty-board/internal/models"
)

// WalletLister loads the admin allow-list
type WalletLister interface {
	ListAdminWallets(ctx context.Context) ([]*models.AdminWallet, error)
}

// AdminCache caches allow-list membership
type AdminCache interface {
	// Contains reports membership. loaded is false when nothing is cached.
	Contains(ctx context.Context, wallet string) (member, loaded bool, err error)
	Store(ctx context.Context, wallets []string) error
	Invalidate(ctx context.Context) error
}

// Authorizer answers IsAuthorizedAdmin from the allow-list table, through an
// optional cache
type Authorizer struct {
	source WalletLister
	cache  AdminCache
}

// NewAuthorizer creates an authorizer. cache may be nil.
func NewAuthorizer(source WalletLister, cache AdminCache) *Authorizer {
	return &Authorizer{source: source, cache: cache}
}

// IsAuthorizedAdmin reports whether wallet is on the allow-list. Cache
// failures fall back to the table.
func (a *Authorizer) IsAuthorizedAdmin(ctx context.Context, wallet string) (bool, error) {
	if wallet == "" {
		return false, nil
	}

	if a.cache != nil {
		member, loaded, err := a.cache.Contains(ctx, wallet)
		if err == nil && loaded {
			return member, nil
		}
		if err != nil {
			slog.Warn("admin cache lookup failed", "error", err)
		}
	}

	wallets, err := a.source.ListAdminWallets(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load admin wallets: %w", err)
	}

	addresses := make([]string, 0, len(wallets))
	found := false
	for _, w := range wallets {
		addresses = append(addresses, w.WalletAddress)
		if w.WalletAddress == wallet {
			found = true
		}
	}

	if a.cache != nil {
		if err := a.cache.Store(ctx, addresses); err != nil {
			slog.Warn("failed to cache admin wallets", "error", err)
		}
	}

	return found, nil
}

// Refresh drops cached membership so the next lookup reloads the table
func (a *Authorizer) Refresh(ctx context.Context) error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Invalidate(ctx)
}

// RedisAdminCache keeps the allow-list in a Redis set
type RedisAdminCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisAdminCache connects to Redis and verifies the connection
func NewRedisAdminCache(ctx context.Context, cfg RedisConfig) (*RedisAdminCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &RedisAdminCache{
		client: client,
		key:    "bounty:admin_wallets",
		ttl:    ttl,
	}, nil
}

// Contains checks set membership. An absent key means nothing is cached.
// Both reads run in one transaction so the key cannot expire between them.
func (c *RedisAdminCache) Contains(ctx context.Context, wallet string) (bool, bool, error) {
	pipe := c.client.TxPipeline()
	exists := pipe.Exists(ctx, c.key)
	member := pipe.SIsMember(ctx, c.key, wallet)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, false, err
	}

	if exists.Val() == 0 {
		return false, false, nil
	}
	return member.Val(), true, nil
}

// Store replaces the cached set. An empty allow-list is not cached.
func (c *RedisAdminCache) Store(ctx context.Context, wallets []string) error {
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, c.key)
	if len(wallets) > 0 {
		members := make([]interface{}, len(wallets))
		for i, w := range wallets {
			members[i] = w
		}
		pipe.SAdd(ctx, c.key, members...)
		pipe.Expire(ctx, c.key, c.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store admin wallets: %w", err)
	}
	return nil
}

// Invalidate removes the cached set
func (c *RedisAdminCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}

// HealthCheck verifies Redis connectivity
func (c *RedisAdminCache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisAdminCache) Close() error {
	return c.client.Close()
}
