package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeydub/go-rediscache/util"
)

func newTestCache(t *testing.T, prefix string) (*Cache, *miniredis.Miniredis, *test.Hook) {
	t.Helper()
	mr := miniredis.RunT(t)
	log, hook := test.NewNullLogger()

	cfg, err := ParseConfig(mr.Addr(), "")
	require.NoError(t, err)
	cfg.KeyPrefix = prefix

	c := NewCache(context.Background(), cfg, WithLogger(log))
	t.Cleanup(func() { c.Close() })
	return c, mr, hook
}

func messages(hook *test.Hook) []string {
	var msgs []string
	for _, e := range hook.AllEntries() {
		msgs = append(msgs, e.Message)
	}
	return msgs
}

func TestCache(t *testing.T) {
	ctx := context.Background()

	t.Run("get of a missing key is ErrKeyNotFound", func(t *testing.T) {
		c, _, _ := newTestCache(t, "")

		_, err := c.Get(ctx, "missing")
		assert.True(t, util.ErrorAs[ErrKeyNotFound](err))
	})

	t.Run("set then get", func(t *testing.T) {
		c, mr, _ := newTestCache(t, "")

		require.NoError(t, c.Set(ctx, "k", []byte(`{"a":1}`), time.Minute))

		got, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, string(got))
		assert.Equal(t, time.Minute, mr.TTL("k"))
	})

	t.Run("ttl of a missing key is ErrKeyNotFound", func(t *testing.T) {
		c, _, _ := newTestCache(t, "")

		_, err := c.TTL(ctx, "missing")
		assert.True(t, util.ErrorAs[ErrKeyNotFound](err))
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		c, _, _ := newTestCache(t, "")
		require.NoError(t, c.Set(ctx, "k", []byte("1"), time.Minute))

		assert.NoError(t, c.Delete(ctx, "k"))
		assert.NoError(t, c.Delete(ctx, "k"))
	})

	t.Run("keys are prefixed", func(t *testing.T) {
		c, mr, _ := newTestCache(t, "svc")

		require.NoError(t, c.Set(ctx, "k", []byte("1"), time.Minute))

		assert.True(t, mr.Exists("svc:k"))
		assert.False(t, mr.Exists("k"))
	})

	t.Run("operations stop when the caller's context is done", func(t *testing.T) {
		c, _, _ := newTestCache(t, "")

		ctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := c.Get(ctx, "k")
		assert.Error(t, err)
	})

	t.Run("lock client namespaces its keys", func(t *testing.T) {
		c, mr, _ := newTestCache(t, "svc")
		locker := NewLockClient(c)

		lock, err := locker.Obtain(ctx, "job", time.Second, nil)
		require.NoError(t, err)
		assert.True(t, mr.Exists("svc:job"))

		_, err = locker.Obtain(ctx, "job", time.Second, nil)
		assert.ErrorIs(t, err, redislock.ErrNotObtained)

		require.NoError(t, lock.Release(ctx))
		assert.False(t, mr.Exists("svc:job"))
	})
}

func TestEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("logs the selected target and the connection", func(t *testing.T) {
		_, _, hook := newTestCache(t, "")

		msgs := messages(hook)
		assert.Contains(t, msgs, "using redis from environment URL")
		assert.Contains(t, msgs, "connected to redis")
	})

	t.Run("logs when the local default is selected", func(t *testing.T) {
		log, hook := test.NewNullLogger()
		cfg := DefaultConfig()
		cfg.OpTimeout = 100 * time.Millisecond

		c := NewCache(ctx, cfg, WithLogger(log))
		defer c.Close()

		assert.Contains(t, messages(hook), "using local redis instance")
	})

	t.Run("logs command errors without changing them", func(t *testing.T) {
		c, mr, hook := newTestCache(t, "")
		mr.SetError("ERR simulated failure")

		err := c.Set(ctx, "k", []byte("1"), time.Minute)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "simulated failure")

		var found bool
		for _, e := range hook.AllEntries() {
			if e.Message == "redis error" {
				found = true
				assert.Equal(t, logrus.ErrorLevel, e.Level)
				assert.Contains(t, e.Data["cmd"], "[scrubbed payload")
			}
		}
		assert.True(t, found)
	})

	t.Run("misses are not logged as errors", func(t *testing.T) {
		c, _, hook := newTestCache(t, "")

		_, err := c.Get(ctx, "missing")
		require.Error(t, err)

		assert.NotContains(t, messages(hook), "redis error")
	})

	t.Run("an unreachable server is not fatal", func(t *testing.T) {
		log, hook := test.NewNullLogger()
		cfg, err := ParseConfig("127.0.0.1:1", "")
		require.NoError(t, err)
		cfg.OpTimeout = 200 * time.Millisecond

		var c *Cache
		assert.NotPanics(t, func() { c = NewCache(ctx, cfg, WithLogger(log)) })
		defer c.Close()

		assert.Contains(t, messages(hook), "redis is not reachable yet")
	})
}
