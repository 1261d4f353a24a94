package dedup

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/alejandrodnm/automerger/internal/domain"
	"github.com/redis/go-redis/v9"
)

//go:embed scripts/admit.lua
var admitLua string

const defaultKeyPrefix = "automerger:dedup"

// RedisConfig holds connection parameters for the redis store.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Redis implements ports.DedupStore with one hash per market and an atomic
// Lua admit, so several instances on the same wallet share the cooldown.
type Redis struct {
	rdb      *redis.Client
	admit    *redis.Script
	prefix   string
	cooldown time.Duration
}

// NewRedis connects, pings and returns the store.
func NewRedis(ctx context.Context, cfg RedisConfig, cooldown time.Duration) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("dedup.NewRedis: ping %s: %w: %v", cfg.Addr, domain.ErrTransport, err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Redis{
		rdb:      rdb,
		admit:    redis.NewScript(admitLua),
		prefix:   prefix,
		cooldown: cooldown,
	}, nil
}

func (r *Redis) marketKey(marketID string) string {
	return r.prefix + ":" + marketID
}

// Admit implements ports.DedupStore.
func (r *Redis) Admit(ctx context.Context, key domain.DedupKey, now time.Time) (bool, error) {
	ttl := r.cooldown * 10
	if ttl < time.Second {
		ttl = time.Second
	}

	res, err := r.admit.Run(ctx, r.rdb,
		[]string{r.marketKey(key.MarketID)},
		key.Amount,
		now.UnixMilli(),
		r.cooldown.Milliseconds(),
		ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("dedup.Admit: %s: %w: %v", key, domain.ErrTransport, err)
	}
	return res == 1, nil
}

// Close closes the redis connection.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
