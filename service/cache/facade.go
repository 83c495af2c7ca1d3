// Package cache is a fail-open JSON cache over redis. Facade never returns store errors to its
// callers: a failed read looks like a miss and a failed write is only visible in the logs.
// Callers that need to know whether a write landed can use Strict instead.
package cache

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mikeydub/go-rediscache/service/redis"
	sentryutil "github.com/mikeydub/go-rediscache/service/sentry"
)

// Facade is the fail-open cache client.
type Facade struct {
	strict *Strict
	cache  *redis.Cache
}

// NewFacade builds a Facade over an existing connection. The caller keeps ownership of cache.
func NewFacade(cache *redis.Cache, opts ...Option) *Facade {
	return &Facade{strict: NewStrict(cache, opts...)}
}

// Open connects to the server described by config and returns a Facade that owns the
// connection. Close releases it.
func Open(ctx context.Context, config redis.Config, opts ...Option) *Facade {
	f := NewFacade(nil, opts...)

	var cacheOpts []redis.Option
	if f.strict.logger != nil {
		cacheOpts = append(cacheOpts, redis.WithLogger(f.strict.logger))
	}

	f.cache = redis.NewCache(ctx, config, cacheOpts...)
	f.strict.attach(f.cache)
	return f
}

// Strict returns the error-reporting variant sharing this Facade's connection.
func (f *Facade) Strict() *Strict {
	return f.strict
}

// Close closes the connection if this Facade opened it.
func (f *Facade) Close() error {
	if f.cache == nil {
		return nil
	}
	return f.cache.Close()
}

// Get decodes the value at key into into and reports whether it was found. Store and decoding
// failures are logged and reported as a miss.
func (f *Facade) Get(ctx context.Context, key string, into any) bool {
	found, err := f.strict.Get(ctx, key, into)
	if err != nil {
		f.fail(ctx, opGet, key, err)
		return false
	}
	return found
}

// GetAs is Get for callers that prefer a typed result.
func GetAs[T any](ctx context.Context, f *Facade, key string) (T, bool) {
	var it T
	found := f.Get(ctx, key, &it)
	return it, found
}

// Set caches value under key for DefaultSetTTL.
func (f *Facade) Set(ctx context.Context, key string, value any) {
	f.SetWithTTL(ctx, key, value, DefaultSetTTL)
}

// SetWithTTL caches value under key for ttl.
func (f *Facade) SetWithTTL(ctx context.Context, key string, value any, ttl time.Duration) {
	if err := f.strict.SetWithTTL(ctx, key, value, ttl); err != nil {
		f.fail(ctx, opSet, key, err)
	}
}

// Refresh overwrites key with value for DefaultRefreshTTL.
func (f *Facade) Refresh(ctx context.Context, key string, value any) {
	f.RefreshWithTTL(ctx, key, value, DefaultRefreshTTL)
}

// RefreshWithTTL overwrites key with value for ttl.
func (f *Facade) RefreshWithTTL(ctx context.Context, key string, value any, ttl time.Duration) {
	if err := f.strict.RefreshWithTTL(ctx, key, value, ttl); err != nil {
		f.fail(ctx, opRefresh, key, err)
	}
}

// Delete removes key.
func (f *Facade) Delete(ctx context.Context, key string) {
	if err := f.strict.Delete(ctx, key); err != nil {
		f.fail(ctx, opDelete, key, err)
	}
}

func (f *Facade) fail(ctx context.Context, op, key string, err error) {
	entry := f.strict.log(ctx).WithFields(logrus.Fields{"op": op, "key": key}).WithError(err)

	if isCallerError(err) {
		entry.Warn("cache request rejected")
		return
	}

	entry.Error("cache request failed")
	sentryutil.ReportCacheError(ctx, op, key, err)
}
