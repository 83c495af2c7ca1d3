package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeydub/go-rediscache/service/cache"
	"github.com/mikeydub/go-rediscache/service/logger"
)

// run executes the CLI against the redis at REDIS_URL and returns the exit code and stdout.
func run(t *testing.T, args ...string) (int, string) {
	t.Helper()
	setTTL = uint64(cache.DefaultSetTTL / time.Second)
	refreshTTL = uint64(cache.DefaultRefreshTTL / time.Second)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	code := execute(context.Background(), args)
	return code, strings.TrimSpace(stdout.String())
}

func TestCommands(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_URL", mr.Addr())

	t.Run("set, get and del", func(t *testing.T) {
		code, _ := run(t, "set", "user:42", `{"name":"Ann"}`, "--ttl", "60")
		require.Equal(t, 0, code)
		assert.Equal(t, time.Minute, mr.TTL("user:42"))

		code, out := run(t, "get", "user:42")
		require.Equal(t, 0, code)
		assert.JSONEq(t, `{"name":"Ann"}`, out)

		code, _ = run(t, "del", "user:42")
		require.Equal(t, 0, code)
		assert.False(t, mr.Exists("user:42"))
	})

	t.Run("get exits non-zero on a miss", func(t *testing.T) {
		code, out := run(t, "get", "missing")
		assert.Equal(t, 1, code)
		assert.Empty(t, out)
	})

	t.Run("set and refresh use their default ttls", func(t *testing.T) {
		code, _ := run(t, "set", "k", "1")
		require.Equal(t, 0, code)
		assert.Equal(t, cache.DefaultSetTTL, mr.TTL("k"))

		code, _ = run(t, "refresh", "k", "[1,2]")
		require.Equal(t, 0, code)
		assert.Equal(t, cache.DefaultRefreshTTL, mr.TTL("k"))

		_, out := run(t, "get", "k")
		assert.JSONEq(t, `[1,2]`, out)
	})

	t.Run("rejects invalid values and ttls", func(t *testing.T) {
		code, _ := run(t, "set", "bad", "not json")
		assert.Equal(t, 1, code)

		code, _ = run(t, "set", "bad", "1", "--ttl", "18446744074")
		assert.Equal(t, 1, code)

		code, _ = run(t, "refresh", "bad", "1", "--ttl", "2147483648")
		assert.Equal(t, 1, code)

		assert.False(t, mr.Exists("bad"))
	})

	t.Run("store failures exit non-zero", func(t *testing.T) {
		mr.SetError("ERR simulated failure")
		t.Cleanup(func() { mr.SetError("") })

		code, _ := run(t, "set", "k", "1")
		assert.Equal(t, 1, code)

		code, _ = run(t, "ping")
		assert.Equal(t, 1, code)
	})

	t.Run("ping", func(t *testing.T) {
		code, out := run(t, "ping")
		assert.Equal(t, 0, code)
		assert.Equal(t, "PONG", out)
	})
}

func TestQuietHidesStartupLogs(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_URL", mr.Addr())

	var hook *test.Hook
	logger.SetLoggerOptions(func(l *logrus.Logger) { hook = test.NewLocal(l) })
	t.Cleanup(func() {
		quietLogs = false
		viper.Set("LOG_LEVEL", logrus.InfoLevel.String())
		logger.SetLoggerOptions(func(l *logrus.Logger) {
			l.ReplaceHooks(logrus.LevelHooks{})
			l.SetLevel(logrus.InfoLevel)
		})
	})

	code, out := run(t, "--quiet", "ping")
	require.Equal(t, 0, code)
	assert.Equal(t, "PONG", out)

	for _, e := range hook.AllEntries() {
		assert.NotEqual(t, logrus.InfoLevel, e.Level, e.Message)
	}
}

func TestMalformedRedisURL(t *testing.T) {
	t.Setenv("REDIS_URL", "localhost")

	code, _ := run(t, "ping")
	assert.Equal(t, 1, code)
}

func TestSeconds(t *testing.T) {
	ttl, err := seconds(300)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, ttl)

	ttl, err = seconds(cache.MaxTTLSeconds)
	require.NoError(t, err)
	assert.Equal(t, cache.MaxTTLSeconds*time.Second, ttl)

	_, err = seconds(cache.MaxTTLSeconds + 1)
	assert.Error(t, err)
}
