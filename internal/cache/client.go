package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrDisabled is returned by every operation when Redis is not connected
var ErrDisabled = errors.New("rank cache disabled")

// Config holds Redis configuration
type Config struct {
	Host        string
	Port        string
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

// RankCache keeps per-difficulty player rankings in Redis sorted sets.
// A zero RankCache is disabled and every call returns ErrDisabled.
type RankCache struct {
	rdb     *redis.Client
	enabled bool
}

// NewRankCache connects to Redis. On failure it returns a disabled cache
// together with the error so callers can keep running without it.
func NewRankCache(config *Config) (*RankCache, error) {
	addr := fmt.Sprintf("%s:%s", config.Host, config.Port)

	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return &RankCache{}, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info().Str("addr", addr).Int("db", config.DB).Int("poolSize", config.PoolSize).Msg("Connected to Redis")
	return &RankCache{rdb: rdb, enabled: true}, nil
}

// Enabled reports whether Redis is connected
func (c *RankCache) Enabled() bool {
	return c != nil && c.enabled
}

// Close closes the Redis connection
func (c *RankCache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Close()
}
