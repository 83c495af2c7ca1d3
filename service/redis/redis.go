package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/mikeydub/go-rediscache/service/logger"
	"github.com/mikeydub/go-rediscache/service/tracing"
)

// ErrKeyNotFound is returned by Get when the key doesn't exist or has expired.
type ErrKeyNotFound struct {
	Key string
}

func (e ErrKeyNotFound) Error() string {
	return fmt.Sprintf("key %s not found", e.Key)
}

// Cache represents an abstraction over a redis client
type Cache struct {
	client    *redis.Client
	config    Config
	keyPrefix string
	scripter  *scripter
	log       func(context.Context) logrus.FieldLogger
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger routes connection events through l instead of the context logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Cache) {
		c.log = func(context.Context) logrus.FieldLogger { return l }
	}
}

// NewCache creates the redis client for config. The connection is established lazily by the
// client pool, so an unreachable server is logged rather than treated as fatal.
func NewCache(ctx context.Context, config Config, opts ...Option) *Cache {
	if config.OpTimeout <= 0 {
		config.OpTimeout = DefaultOpTimeout
	}

	cache := &Cache{
		config:    config,
		keyPrefix: config.KeyPrefix,
		log:       func(ctx context.Context) logrus.FieldLogger { return logger.For(ctx) },
	}
	for _, opt := range opts {
		opt(cache)
	}

	fields := logrus.Fields{"addr": config.Addr, "db": config.DB}
	if config.Source == SourceEnv {
		cache.log(ctx).WithFields(fields).Info("using redis from environment URL")
	} else {
		cache.log(ctx).WithFields(fields).Info("using local redis instance")
	}

	options := config.options()
	options.OnConnect = cache.onConnect
	cache.client = redis.NewClient(options)
	cache.client.AddHook(eventsHook{cache: cache})
	cache.client.AddHook(tracing.NewRedisHook(config.DB, config.DisplayName, true))
	cache.scripter = &scripter{cache: cache}

	if err := cache.Ping(ctx); err != nil {
		cache.log(ctx).WithFields(fields).WithError(err).Warn("redis is not reachable yet")
	}

	return cache
}

// withTimeout bounds a single operation by the configured timeout. An earlier deadline on ctx
// still wins.
func (c *Cache) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.config.OpTimeout)
}

// Ping checks that the server is reachable
func (c *Cache) Ping(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.client.Ping(ctx).Err()
}

// Set sets a value in the redis cache
func (c *Cache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.client.Set(ctx, c.getPrefixedKey(key), value, expiration).Err()
}

// Get gets a value from the redis cache
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	bs, err := c.client.Get(ctx, c.getPrefixedKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrKeyNotFound{Key: key}
		}
		return nil, err
	}
	return bs, nil
}

// TTL returns the remaining time to live of a key. Missing keys return ErrKeyNotFound.
func (c *Cache) TTL(ctx context.Context, key string) (time.Duration, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	ttl, err := c.client.TTL(ctx, c.getPrefixedKey(key)).Result()
	if err != nil {
		return 0, err
	}
	// -2 means the key does not exist
	if ttl == -2 {
		return 0, ErrKeyNotFound{Key: key}
	}
	return ttl, nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.client.Del(ctx, c.getPrefixedKey(key)).Err()
}

// Close closes the underlying redis client
func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) getPrefixedKey(key string) string {
	if c.keyPrefix == "" {
		return key
	}

	return c.keyPrefix + ":" + key
}

func (c *Cache) getPrefixedKeys(keys []string) []string {
	if c.keyPrefix == "" {
		return keys
	}

	prefixedKeys := make([]string, len(keys))
	for i, key := range keys {
		prefixedKeys[i] = c.getPrefixedKey(key)
	}
	return prefixedKeys
}

// scripter is an implementation of the redis.Scripter interface that uses a Cache to namespace
// keys. Each call is bounded by the cache's operation timeout.
type scripter struct {
	cache *Cache
}

func (s scripter) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	ctx, cancel := s.cache.withTimeout(ctx)
	defer cancel()
	return s.cache.client.Eval(ctx, script, s.cache.getPrefixedKeys(keys), args...)
}

func (s scripter) EvalSha(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd {
	ctx, cancel := s.cache.withTimeout(ctx)
	defer cancel()
	return s.cache.client.EvalSha(ctx, sha1, s.cache.getPrefixedKeys(keys), args...)
}

func (s scripter) ScriptExists(ctx context.Context, scripts ...string) *redis.BoolSliceCmd {
	ctx, cancel := s.cache.withTimeout(ctx)
	defer cancel()
	return s.cache.client.ScriptExists(ctx, scripts...)
}

func (s scripter) ScriptLoad(ctx context.Context, script string) *redis.StringCmd {
	ctx, cancel := s.cache.withTimeout(ctx)
	defer cancel()
	return s.cache.client.ScriptLoad(ctx, script)
}

// NewLockClient returns a distributed lock client whose lock keys share the cache's prefix.
func NewLockClient(cache *Cache) *redislock.Client {
	return redislock.New(&redislockCacheClient{
		scripter: *cache.scripter,
	})
}

// redislockCacheClient is a minimal implementation of redislock.RedisClient that uses a Cache to namespace its keys.
type redislockCacheClient struct {
	scripter
}

func (r *redislockCacheClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	ctx, cancel := r.cache.withTimeout(ctx)
	defer cancel()
	return r.cache.client.SetNX(ctx, r.cache.getPrefixedKey(key), value, expiration)
}
