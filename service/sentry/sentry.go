package sentryutil

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/mikeydub/go-rediscache/env"
	"github.com/mikeydub/go-rediscache/service/logger"
)

const errorContextName = "cache context"

func init() {
	env.RegisterValidation("SENTRY_DSN", "required_for_env=production")
}

// Init configures the global sentry client. Local environments skip it entirely.
func Init(ctx context.Context) {
	if env.GetString(ctx, "ENV") == "local" {
		logger.For(ctx).Info("skipping sentry init")
		return
	}

	logger.For(ctx).Info("initializing sentry...")

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              env.GetString(ctx, "SENTRY_DSN"),
		Environment:      env.GetString(ctx, "ENV"),
		TracesSampleRate: env.GetFloat64(ctx, "SENTRY_TRACES_SAMPLE_RATE"),
		AttachStacktrace: true,
		BeforeSend:       UpdateErrorFingerprints,
	})

	if err != nil {
		logger.For(ctx).WithError(err).Error("failed to start sentry, continuing without error reporting")
	}
}

// Enabled reports whether a sentry client has been configured.
func Enabled() bool {
	return sentry.CurrentHub().Client() != nil
}

// Flush waits for buffered events to be sent.
func Flush() {
	sentry.Flush(2 * time.Second)
}

func hubFor(ctx context.Context) *sentry.Hub {
	if ctx != nil {
		if hub := sentry.GetHubFromContext(ctx); hub != nil {
			return hub
		}
	}
	return sentry.CurrentHub()
}

// ReportError sends err to sentry. It is a no-op when sentry isn't configured.
func ReportError(ctx context.Context, err error) {
	hubFor(ctx).CaptureException(err)
}

// ReportCacheError sends err to sentry tagged with the cache operation and key that produced it.
func ReportCacheError(ctx context.Context, op, key string, err error) {
	hub := hubFor(ctx)
	if hub.Client() == nil {
		return
	}

	// Use a new scope so the cache context doesn't persist beyond this error
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("cacheOp", op)
		scope.SetContext(errorContextName, map[string]interface{}{
			"op":  op,
			"key": key,
		})
		hub.CaptureException(err)
	})
}

// UpdateErrorFingerprints groups events created by errors.New by message rather than type.
func UpdateErrorFingerprints(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	if event == nil || hint == nil || hint.OriginalException == nil {
		return event
	}

	exceptionType := fmt.Sprintf("%T", hint.OriginalException)
	if exceptionType == "*errors.errorString" {
		event.Fingerprint = []string{"{{ default }}", hint.OriginalException.Error()}
	}

	return event
}

// RecoverAndRaise reports a panic to sentry and then re-panics.
func RecoverAndRaise(ctx context.Context) {
	if err := recover(); err != nil {
		hubFor(ctx).Recover(err)
		Flush()
		panic(err)
	}
}
