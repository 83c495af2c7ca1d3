package redis

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/mikeydub/go-rediscache/service/tracing"
)

// onConnect runs each time the pool dials a new connection.
func (c *Cache) onConnect(ctx context.Context, cn *redis.Conn) error {
	c.log(ctx).WithFields(logrus.Fields{
		"addr": c.config.Addr,
		"db":   c.config.DB,
	}).Info("connected to redis")
	return nil
}

// eventsHook logs failed commands. It never changes a command's result.
type eventsHook struct {
	cache *Cache
}

var _ redis.Hook = eventsHook{}

func (h eventsHook) BeforeProcess(ctx context.Context, cmd redis.Cmder) (context.Context, error) {
	return ctx, nil
}

func (h eventsHook) AfterProcess(ctx context.Context, cmd redis.Cmder) error {
	h.logFailure(ctx, cmd)
	return nil
}

func (h eventsHook) BeforeProcessPipeline(ctx context.Context, cmds []redis.Cmder) (context.Context, error) {
	return ctx, nil
}

func (h eventsHook) AfterProcessPipeline(ctx context.Context, cmds []redis.Cmder) error {
	for _, cmd := range cmds {
		h.logFailure(ctx, cmd)
	}
	return nil
}

func (h eventsHook) logFailure(ctx context.Context, cmd redis.Cmder) {
	err := cmd.Err()
	if err == nil || errors.Is(err, redis.Nil) {
		return
	}
	h.cache.log(ctx).WithFields(logrus.Fields{
		"addr": h.cache.config.Addr,
		"db":   h.cache.config.DB,
		"cmd":  tracing.FormatCmd(cmd),
	}).WithError(err).Error("redis error")
}
