package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"basement-monitor/internal/config"
	"basement-monitor/internal/logging"
	"basement-monitor/internal/store"
)

// NewRouter wires the HTTP surface. ws may be nil when the live feed is off.
func NewRouter(st store.Store, svc Ingester, ws http.Handler, logger *logging.Logger, cfg config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	h := NewHandler(st, svc, logger)
	api := r.Group(cfg.API.BasePath)
	{
		// Readings
		api.POST("/readings/", h.CreateReading)
		api.GET("/readings/", h.ListReadings)
		api.GET("/readings/counts/", h.CountReadings)
		api.DELETE("/readings/", h.DeleteReadings)

		// Active alerts
		api.GET("/active-alerts/counts/", h.CountActiveAlerts)
		api.DELETE("/active-alerts/", h.DeleteActiveAlerts)

		// Alert history
		api.GET("/alert-history/counts/", h.CountAlertHistory)
		api.DELETE("/alert-history/", h.DeleteAlertHistory)
	}

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if ws != nil {
		r.GET("/ws", gin.WrapH(ws))
	}
	return r
}
