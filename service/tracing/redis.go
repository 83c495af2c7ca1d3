package tracing

import (
	"context"
	"fmt"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"

	"github.com/mikeydub/go-rediscache/util"
)

const maxArgLength = 64

// NewRedisHook returns a go-redis hook that records each command as a sentry span. When
// continueOnly is true, spans are only created for commands issued inside an existing
// transaction.
func NewRedisHook(db int, name string, continueOnly bool) redis.Hook {
	return redisHook{
		db:           db,
		name:         name,
		continueOnly: continueOnly,
	}
}

type redisHook struct {
	db           int
	name         string
	continueOnly bool
}

var _ redis.Hook = redisHook{}

type spanContextKey struct{}

func (r redisHook) skip(ctx context.Context) bool {
	return r.continueOnly && sentry.TransactionFromContext(ctx) == nil
}

func (r redisHook) BeforeProcess(ctx context.Context, cmd redis.Cmder) (context.Context, error) {
	if r.skip(ctx) {
		return ctx, nil
	}

	span, ctx := StartSpan(ctx, "redis."+strings.ToLower(cmd.FullName()), r.name)
	AddEventDataToSpan(span, map[string]interface{}{
		"Redis Cmd": FormatCmd(cmd),
		"Redis DB":  r.db,
	})

	return context.WithValue(ctx, spanContextKey{}, span), nil
}

func (redisHook) AfterProcess(ctx context.Context, cmd redis.Cmder) error {
	span, ok := ctx.Value(spanContextKey{}).(*sentry.Span)
	if !ok {
		return nil
	}

	if err := cmd.Err(); err != nil && err != redis.Nil {
		AddEventDataToSpan(span, map[string]interface{}{
			"Redis Error": err.Error(),
		})
	}

	FinishSpan(span)
	return nil
}

func (r redisHook) BeforeProcessPipeline(ctx context.Context, cmds []redis.Cmder) (context.Context, error) {
	if r.skip(ctx) {
		return ctx, nil
	}

	span, ctx := StartSpan(ctx, "redis.pipeline", r.name)
	AddEventDataToSpan(span, map[string]interface{}{
		"Redis Pipeline Num Cmds": len(cmds),
		"Redis DB":                r.db,
	})

	return context.WithValue(ctx, spanContextKey{}, span), nil
}

func (redisHook) AfterProcessPipeline(ctx context.Context, cmds []redis.Cmder) error {
	if span, ok := ctx.Value(spanContextKey{}).(*sentry.Span); ok {
		FinishSpan(span)
	}
	return nil
}

// FormatCmd renders a command for diagnostics. The payload of a SET is replaced by its size
// and long arguments are truncated.
func FormatCmd(cmd redis.Cmder) string {
	isSet := cmd.Name() == "set"
	args := cmd.Args()
	parts := make([]string, len(args))

	for i, arg := range args {
		s := formatArg(arg)
		switch {
		case isSet && i == 2:
			s = fmt.Sprintf("[scrubbed payload: %d bytes]", len(s))
		default:
			s = util.TruncateWithEllipsis(s, maxArgLength)
		}
		parts[i] = s
	}

	return strings.Join(parts, " ")
}

func formatArg(arg interface{}) string {
	switch v := arg.(type) {
	case nil:
		return "<nil>"
	case string:
		return escapeNewlines(v)
	case []byte:
		return escapeNewlines(string(v))
	default:
		return fmt.Sprint(v)
	}
}

func escapeNewlines(s string) string {
	return strings.NewReplacer("\n", `\n`, "\r", `\r`).Replace(s)
}
