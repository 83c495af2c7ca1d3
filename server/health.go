package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"

	"github.com/mikeydub/go-rediscache/service/cache"
)

type HealthcheckResponse struct {
	Message string `json:"msg"`
	Env     string `json:"env"`
	Redis   string `json:"redis"`
}

// healthcheck always answers 200: the cache is fail-open, so an unavailable store degrades
// the service rather than taking it down.
func healthcheck(facade *cache.Facade) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ok"
		if err := facade.Strict().Ping(c.Request.Context()); err != nil {
			status = "unavailable"
		}

		c.JSON(http.StatusOK, HealthcheckResponse{
			Message: "rediscache operational",
			Env:     viper.GetString("ENV"),
			Redis:   status,
		})
	}
}
