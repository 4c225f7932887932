// Package redis caches finished extraction results keyed by normalized query
// and configuration version. The cache is strictly best-effort: any Redis
// failure is logged and the request proceeds as a miss.
package redis

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/shortalex12333/Cloud-PMS-sub001/internal/infrastructure/monitoring/logging"
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/query"
	"github.com/shortalex12333/Cloud-PMS-sub001/pkg/errors"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// Config holds the Redis connection and TTL settings.
type Config struct {
	Addr     string `json:"addr" yaml:"addr" mapstructure:"addr"`
	Password string `json:"password" yaml:"password" mapstructure:"password"`
	DB       int    `json:"db" yaml:"db" mapstructure:"db"`

	// TTL bounds how long a cached result stays valid. Stale entries are
	// additionally fenced by the config version baked into every key.
	TTL time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`

	DialTimeout  time.Duration `json:"dial_timeout" yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" mapstructure:"write_timeout"`
	PoolSize     int           `json:"pool_size" yaml:"pool_size" mapstructure:"pool_size"`
}

// DefaultConfig returns settings for a local single-node Redis.
func DefaultConfig() *Config {
	return &Config{
		Addr:         "localhost:6379",
		TTL:          15 * time.Minute,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		PoolSize:     10,
	}
}

// ---------------------------------------------------------------------------
// Result cache
// ---------------------------------------------------------------------------

// ResultCache implements query.ResultCache on a Redis backend. Hit/miss
// accounting lives with the caller, which sees every lookup regardless of
// backend.
type ResultCache struct {
	client *goredis.Client
	ttl    time.Duration
	logger logging.Logger
}

var _ query.ResultCache = (*ResultCache)(nil)

// NewResultCache connects to Redis and verifies the connection with a ping.
func NewResultCache(ctx context.Context, cfg *Config, logger logging.Logger) (*ResultCache, error) {
	if cfg == nil {
		return nil, errors.InvalidParam("redis config is nil")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "redis ping failed")
	}

	logger.Info("connected to redis", logging.String("addr", cfg.Addr), logging.Int("db", cfg.DB))
	return &ResultCache{client: client, ttl: cfg.TTL, logger: logger}, nil
}

// Get returns the cached result for key, or (nil, false) on miss or any
// Redis or decoding failure.
func (c *ResultCache) Get(ctx context.Context, key string) (*query.Result, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			c.logger.Warn("cache read failed", logging.String("key", key), logging.Err(err))
		}
		return nil, false
	}

	var res query.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		c.logger.Warn("cache entry corrupt, evicting", logging.String("key", key), logging.Err(err))
		c.client.Del(ctx, key)
		return nil, false
	}

	return &res, true
}

// Set stores the result under key with the configured TTL. Failures are
// logged and swallowed.
func (c *ResultCache) Set(ctx context.Context, key string, res *query.Result) {
	raw, err := json.Marshal(res)
	if err != nil {
		c.logger.Warn("cache encode failed", logging.String("key", key), logging.Err(err))
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", logging.String("key", key), logging.Err(err))
	}
}

// Close releases the underlying connection pool.
func (c *ResultCache) Close() error {
	return c.client.Close()
}
