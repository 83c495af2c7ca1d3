package middleware

import (
	"fmt"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mikeydub/go-rediscache/service/logger"
	sentryutil "github.com/mikeydub/go-rediscache/service/sentry"
	"github.com/mikeydub/go-rediscache/service/tracing"
)

// ErrLogger logs any errors attached to the gin context once the request has been handled.
func ErrLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			logger.For(c).WithError(logger.GinErrorLoggerErr{Context: c}).Error("request failed")
		}
	}
}

// CacheKeyToContext tags the request logger with the cache key in the route, if any.
func CacheKeyToContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := c.Param("key"); key != "" {
			ctx := logger.NewContextWithFields(c.Request.Context(), logrus.Fields{"cacheKey": key})
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

func Sentry(reportGinErrors bool) gin.HandlerFunc {
	handler := sentrygin.New(sentrygin.Options{Repanic: true})

	return func(c *gin.Context) {
		// Clone a new hub for each request
		hub := sentry.CurrentHub().Clone()

		// Add the cloned hub to the request context so sentrygin will find it
		c.Request = c.Request.WithContext(sentry.SetHubOnContext(c.Request.Context(), hub))

		// Invoke the sentrygin handler. We don't call c.Next() here because sentrygin does it for us.
		handler(c)

		if reportGinErrors {
			for _, err := range c.Errors {
				sentryutil.ReportError(c.Request.Context(), err)
			}
		}
	}
}

func Tracing() gin.HandlerFunc {
	return func(c *gin.Context) {
		description := fmt.Sprintf("%s %s", c.Request.Method, c.FullPath())
		span, ctx := tracing.StartSpan(c.Request.Context(), "gin.server", description,
			sentry.WithTransactionName(description),
			sentry.ContinueFromRequest(c.Request),
		)
		defer tracing.FinishSpan(span)

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
