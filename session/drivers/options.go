package drivers

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// StoreOption configures the store built by NewStore. Options that do not
// apply to the requested store type are ignored.
type StoreOption func(*storeConfig)

type storeConfig struct {
	redisClient *redis.Client
	redisTTL    time.Duration
	keyPrefix   string
}

// WithRedisClient supplies the connection the redis store runs on. NewStore
// fails with session.ErrInvalidConfig for a redis store without one.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithRedisTTL sets how long an idle conversation is kept. Every read
// refreshes it. Zero keeps the 24h default.
func WithRedisTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) {
		c.redisTTL = ttl
	}
}

// WithKeyPrefix namespaces conversation keys, letting several deployments
// share one redis database. Empty keeps "session:".
func WithKeyPrefix(prefix string) StoreOption {
	return func(c *storeConfig) {
		c.keyPrefix = prefix
	}
}
