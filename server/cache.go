package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mikeydub/go-rediscache/service/cache"
	"github.com/mikeydub/go-rediscache/util"
)

type writeCacheEntryInput struct {
	Value json.RawMessage `json:"value" binding:"required"`

	// max is cache.MaxTTLSeconds
	TTL *int `json:"ttl" binding:"omitempty,min=1,max=2147483647"`
}

type errCacheMiss struct {
	key string
}

func (e errCacheMiss) Error() string {
	return fmt.Sprintf("no cache entry for key %s", e.key)
}

// strictMode reports whether the caller asked to see cache errors instead of the fail-open result.
func strictMode(c *gin.Context) bool {
	strict, _ := strconv.ParseBool(c.Query("strict"))
	return strict
}

func statusFor(err error) int {
	var transportErr *cache.TransportError
	var serializationErr *cache.SerializationError

	switch {
	case errors.Is(err, cache.ErrEmptyKey), errors.Is(err, cache.ErrInvalidTTL):
		return http.StatusBadRequest
	case errors.As(err, &transportErr):
		return http.StatusBadGateway
	case errors.As(err, &serializationErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func getCacheEntry(facade *cache.Facade) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")

		var value json.RawMessage
		var found bool

		if strictMode(c) {
			var err error
			found, err = facade.Strict().Get(c.Request.Context(), key, &value)
			if err != nil {
				util.ErrResponse(c, statusFor(err), err)
				return
			}
		} else {
			found = facade.Get(c.Request.Context(), key, &value)
		}

		if !found {
			c.JSON(http.StatusNotFound, util.ErrorResponse{Error: errCacheMiss{key: key}.Error()})
			return
		}

		c.Data(http.StatusOK, "application/json; charset=utf-8", value)
	}
}

func setCacheEntry(facade *cache.Facade) gin.HandlerFunc {
	return writeCacheEntry(cache.DefaultSetTTL, facade.SetWithTTL, facade.Strict().SetWithTTL)
}

func refreshCacheEntry(facade *cache.Facade) gin.HandlerFunc {
	return writeCacheEntry(cache.DefaultRefreshTTL, facade.RefreshWithTTL, facade.Strict().RefreshWithTTL)
}

type failOpenWrite func(ctx context.Context, key string, value any, ttl time.Duration)
type strictWrite func(ctx context.Context, key string, value any, ttl time.Duration) error

func writeCacheEntry(defaultTTL time.Duration, write failOpenWrite, writeStrict strictWrite) gin.HandlerFunc {
	return func(c *gin.Context) {
		input := writeCacheEntryInput{}
		if err := c.ShouldBindJSON(&input); err != nil {
			util.ErrResponse(c, http.StatusBadRequest, util.ErrInvalidInput{Reason: err.Error()})
			return
		}

		ttl := defaultTTL
		if input.TTL != nil {
			ttl = time.Duration(*input.TTL) * time.Second
		}

		key := c.Param("key")
		if strictMode(c) {
			if err := writeStrict(c.Request.Context(), key, input.Value, ttl); err != nil {
				util.ErrResponse(c, statusFor(err), err)
				return
			}
		} else {
			write(c.Request.Context(), key, input.Value, ttl)
		}

		c.Status(http.StatusNoContent)
	}
}

func deleteCacheEntry(facade *cache.Facade) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")

		if strictMode(c) {
			if err := facade.Strict().Delete(c.Request.Context(), key); err != nil {
				util.ErrResponse(c, statusFor(err), err)
				return
			}
		} else {
			facade.Delete(c.Request.Context(), key)
		}

		c.Status(http.StatusNoContent)
	}
}
