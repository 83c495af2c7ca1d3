package server

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"

	"github.com/mikeydub/go-rediscache/env"
	"github.com/mikeydub/go-rediscache/middleware"
	"github.com/mikeydub/go-rediscache/service/cache"
	"github.com/mikeydub/go-rediscache/service/logger"
	"github.com/mikeydub/go-rediscache/service/redis"
	sentryutil "github.com/mikeydub/go-rediscache/service/sentry"
)

// Init configures the environment and opens the cache connection. Only a malformed connection
// string is fatal; an unreachable server is logged and the cache runs fail-open.
func Init(ctx context.Context) (*cache.Facade, error) {
	SetDefaults()
	logger.SetLevel(env.GetString(ctx, "LOG_LEVEL"))
	sentryutil.Init(ctx)

	config, err := redis.ConfigFromEnv(ctx)
	if err != nil {
		return nil, err
	}

	return cache.Open(ctx, config, cache.WithFillLock(cache.DefaultFillLockTTL)), nil
}

// CoreInit builds the router serving facade.
func CoreInit(facade *cache.Facade) *gin.Engine {
	logger.For(nil).Info("initializing server...")

	if viper.GetString("ENV") != "production" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if sentryutil.Enabled() {
		router.Use(middleware.Sentry(true), middleware.Tracing())
	}
	router.Use(middleware.ErrLogger())

	return handlersInit(router, facade)
}

func SetDefaults() {
	viper.SetDefault("ENV", "local")
	viper.SetDefault("PORT", 4000)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("REDIS_PASS", "")
	viper.SetDefault("REDIS_TIMEOUT", 3)
	viper.SetDefault("CACHE_KEY_PREFIX", "")
	viper.SetDefault("SENTRY_DSN", "")
	viper.SetDefault("SENTRY_TRACES_SAMPLE_RATE", 0.2)
	viper.AutomaticEnv()
}
