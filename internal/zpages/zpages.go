// Package zpages wires the operational endpoints onto a router.
package zpages

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wayfind/wayfind/internal/healthcheck"
)

// Configure configures router with wayfind specific z-page endpoints.
func Configure(router gin.IRouter, provider healthcheck.Client) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", healthcheck.NewHandler(provider, time.Now()))
}
