package server

import (
	"github.com/gin-gonic/gin"

	"github.com/mikeydub/go-rediscache/middleware"
	"github.com/mikeydub/go-rediscache/service/cache"
)

func handlersInit(router *gin.Engine, facade *cache.Facade) *gin.Engine {
	router.GET("/health", healthcheck(facade))

	cacheGroup := router.Group("/cache", middleware.CacheKeyToContext())

	// [GET] /cache/:key
	cacheGroup.GET("/:key", getCacheEntry(facade))

	// [PUT] /cache/:key?strict=true
	cacheGroup.PUT("/:key", setCacheEntry(facade))

	// [POST] /cache/:key/refresh?strict=true
	cacheGroup.POST("/:key/refresh", refreshCacheEntry(facade))

	// [DELETE] /cache/:key?strict=true
	cacheGroup.DELETE("/:key", deleteCacheEntry(facade))

	return router
}
