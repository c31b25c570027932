package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all API routes.
func SetupRoutes(router *gin.Engine, handler *Handler, registry *prometheus.Registry) {
	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handler.HealthCheck)

		v1.POST("/normalize", handler.Normalize)
		v1.POST("/clusters", handler.Clusters)
		v1.POST("/categorize", handler.Categorize)
		v1.POST("/sweep", handler.Sweep)
	}
}
