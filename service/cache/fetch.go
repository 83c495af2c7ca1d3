package cache

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
)

// Fetch returns the value cached at key. On a miss it calls load and caches the result for ttl.
// Errors from load are returned as is; cache failures only ever turn into misses or skipped
// writes.
//
// With WithFillLock, only the caller holding the key's fill lock writes the loaded value. Other
// callers that miss at the same time still load and return their own value but leave the cache
// alone.
func Fetch[T any](ctx context.Context, f *Facade, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	if it, ok := GetAs[T](ctx, f, key); ok {
		return it, nil
	}

	release, write := f.acquireFill(ctx, key)
	defer release()

	it, err := load(ctx)
	if err != nil {
		return it, err
	}

	if write {
		f.SetWithTTL(ctx, key, it, ttl)
	}
	return it, nil
}

func fillLockKey(key string) string {
	return "lock:fill:" + key
}

// acquireFill reports whether the caller should write the loaded value.
func (f *Facade) acquireFill(ctx context.Context, key string) (release func(), write bool) {
	s := f.strict
	if s.locker == nil {
		return func() {}, true
	}

	lock, err := s.locker.Obtain(ctx, fillLockKey(key), s.lockTTL, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		s.log(ctx).WithField("key", key).Debug("cache fill already in progress")
		return func() {}, false
	}
	if err != nil {
		f.fail(ctx, opFetch, key, &TransportError{Op: opFetch, Key: key, Err: err})
		return func() {}, false
	}

	return func() {
		if err := lock.Release(context.Background()); err != nil {
			s.log(ctx).WithField("key", key).WithError(err).Warn("failed to release cache fill lock")
		}
	}, true
}
