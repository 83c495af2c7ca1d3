package cache

import (
	"context"
	"math"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"

	"github.com/mikeydub/go-rediscache/service/logger"
	"github.com/mikeydub/go-rediscache/service/redis"
	"github.com/mikeydub/go-rediscache/util"
)

const (
	// DefaultSetTTL is used by Set when populating a fresh entry
	DefaultSetTTL = 5 * time.Minute
	// DefaultRefreshTTL is used by Refresh when overwriting an existing entry
	DefaultRefreshTTL = time.Hour
	// DefaultFillLockTTL bounds how long a Fetch may hold the fill lock for a key
	DefaultFillLockTTL = 10 * time.Second
	// MaxTTLSeconds is the largest ttl accepted from callers that express it in seconds. Larger
	// values would overflow a time.Duration.
	MaxTTLSeconds = math.MaxInt32
)

const (
	opGet     = "get"
	opSet     = "set"
	opRefresh = "refresh"
	opDelete  = "delete"
	opTTL     = "ttl"
	opFetch   = "fetch"
)

// Option configures a Facade and the Strict client it is built on.
type Option func(*Strict)

// WithLogger sends the cache's log lines to l instead of the context logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Strict) {
		s.logger = l
	}
}

// WithFillLock guards read-through fills with a distributed lock per key, held for at most ttl.
func WithFillLock(ttl time.Duration) Option {
	return func(s *Strict) {
		s.fillLock = true
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// Strict exposes the cache operations with their errors. Misses are not errors: Get reports
// them through its bool result.
type Strict struct {
	cache    *redis.Cache
	logger   logrus.FieldLogger
	fillLock bool
	locker   *redislock.Client
	lockTTL  time.Duration
}

// NewStrict returns a Strict client over cache.
func NewStrict(cache *redis.Cache, opts ...Option) *Strict {
	s := &Strict{lockTTL: DefaultFillLockTTL}
	for _, opt := range opts {
		opt(s)
	}
	s.attach(cache)
	return s
}

func (s *Strict) attach(cache *redis.Cache) {
	s.cache = cache
	if cache != nil && s.fillLock {
		s.locker = redis.NewLockClient(cache)
	}
}

func (s *Strict) log(ctx context.Context) logrus.FieldLogger {
	if s.logger != nil {
		return s.logger
	}
	return logger.For(ctx)
}

// Get decodes the value stored at key into into, which must be a non-nil pointer. It returns
// false with a nil error when the key is missing or expired.
func (s *Strict) Get(ctx context.Context, key string, into any) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	if err := checkTarget(into); err != nil {
		return false, err
	}

	payload, err := s.cache.Get(ctx, key)
	if err != nil {
		if util.ErrorAs[redis.ErrKeyNotFound](err) {
			return false, nil
		}
		return false, &TransportError{Op: opGet, Key: key, Err: err}
	}

	if err := decode(payload, into); err != nil {
		return false, &SerializationError{Op: opGet, Key: key, Err: err}
	}

	s.log(ctx).WithField("key", key).Debug("data fetched from cache")
	return true, nil
}

// Set stores value under key for DefaultSetTTL.
func (s *Strict) Set(ctx context.Context, key string, value any) error {
	return s.SetWithTTL(ctx, key, value, DefaultSetTTL)
}

// SetWithTTL stores value under key, replacing any previous value and TTL.
func (s *Strict) SetWithTTL(ctx context.Context, key string, value any, ttl time.Duration) error {
	if err := s.write(ctx, opSet, key, value, ttl); err != nil {
		return err
	}
	s.log(ctx).WithFields(logrus.Fields{"key": key, "ttl": ttl.String()}).Info("data cached")
	return nil
}

// Refresh overwrites key with value for DefaultRefreshTTL.
func (s *Strict) Refresh(ctx context.Context, key string, value any) error {
	return s.RefreshWithTTL(ctx, key, value, DefaultRefreshTTL)
}

// RefreshWithTTL overwrites key with value. It behaves exactly like SetWithTTL.
func (s *Strict) RefreshWithTTL(ctx context.Context, key string, value any, ttl time.Duration) error {
	if err := s.write(ctx, opRefresh, key, value, ttl); err != nil {
		return err
	}
	s.log(ctx).WithFields(logrus.Fields{"key": key, "ttl": ttl.String()}).Info("cache refreshed")
	return nil
}

// Delete removes key. Removing a missing key succeeds.
func (s *Strict) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		return &TransportError{Op: opDelete, Key: key, Err: err}
	}
	s.log(ctx).WithField("key", key).Info("cache deleted")
	return nil
}

// TTL returns the remaining lifetime of key. The bool is false when the key is missing.
func (s *Strict) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	if key == "" {
		return 0, false, ErrEmptyKey
	}
	ttl, err := s.cache.TTL(ctx, key)
	if err != nil {
		if util.ErrorAs[redis.ErrKeyNotFound](err) {
			return 0, false, nil
		}
		return 0, false, &TransportError{Op: opTTL, Key: key, Err: err}
	}
	return ttl, true, nil
}

// Ping checks that the store is reachable.
func (s *Strict) Ping(ctx context.Context) error {
	if err := s.cache.Ping(ctx); err != nil {
		return &TransportError{Op: "ping", Err: err}
	}
	return nil
}

func (s *Strict) write(ctx context.Context, op, key string, value any, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	// A zero expiration means "no expiry" to redis, so it must never reach the store.
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	payload, err := encode(value)
	if err != nil {
		return &SerializationError{Op: op, Key: key, Err: err}
	}

	if err := s.cache.Set(ctx, key, payload, ttl); err != nil {
		return &TransportError{Op: op, Key: key, Err: err}
	}
	return nil
}
