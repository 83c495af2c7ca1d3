package server

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeydub/go-rediscache/service/redis"
)

func TestInit(t *testing.T) {
	ctx := context.Background()

	t.Run("a malformed REDIS_URL aborts startup", func(t *testing.T) {
		viper.Reset()
		t.Cleanup(viper.Reset)

		for _, url := range []string{"localhost", "redis://localhost:notaport", "localhost:99999"} {
			viper.Set("REDIS_URL", url)

			facade, err := Init(ctx)

			assert.Nil(t, facade, url)
			assert.ErrorIs(t, err, redis.ErrInvalidConfig, url)
			var configErr redis.ConfigurationError
			assert.ErrorAs(t, err, &configErr, url)
		}
	})

	t.Run("connects to the configured server", func(t *testing.T) {
		viper.Reset()
		t.Cleanup(viper.Reset)
		mr := miniredis.RunT(t)
		viper.Set("REDIS_URL", mr.Addr())
		viper.Set("CACHE_KEY_PREFIX", "svc")

		facade, err := Init(ctx)
		require.NoError(t, err)
		t.Cleanup(func() { facade.Close() })

		require.NoError(t, facade.Strict().Ping(ctx))
		facade.Set(ctx, "k", 1)
		assert.True(t, mr.Exists("svc:k"))
	})

	t.Run("an unreachable server does not abort startup", func(t *testing.T) {
		viper.Reset()
		t.Cleanup(viper.Reset)
		viper.Set("REDIS_URL", "127.0.0.1:1")
		viper.Set("REDIS_TIMEOUT", "0.2")

		facade, err := Init(ctx)
		require.NoError(t, err)
		t.Cleanup(func() { facade.Close() })

		var got int
		assert.False(t, facade.Get(ctx, "k", &got))
	})
}
