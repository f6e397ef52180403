package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"basement-monitor/internal/ingest"
	"basement-monitor/internal/logging"
	"basement-monitor/internal/models"
	"basement-monitor/internal/store"
)

const (
	defaultListLimit = 100
	healthTimeout    = 2 * time.Second
)

// Ingester is satisfied by *ingest.Service.
type Ingester interface {
	Ingest(ctx context.Context, source string, r models.Reading) (ingest.Result, error)
}

type Handler struct {
	store  store.Store
	svc    Ingester
	logger *logging.Logger
}

func NewHandler(st store.Store, svc Ingester, logger *logging.Logger) *Handler {
	return &Handler{store: st, svc: svc, logger: logger}
}

// CreateReading stores a reading and runs alert evaluation for it. Alert
// processing failures are logged; the reading itself was accepted.
func (h *Handler) CreateReading(c *gin.Context) {
	var payload models.ReadingPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.Errorf("Invalid request body for reading: %v", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	r, err := payload.Reading()
	if err != nil {
		h.logger.Errorf("Invalid reading: %v", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	res, err := h.svc.Ingest(c.Request.Context(), "http", r)
	if err != nil {
		if errors.Is(err, models.ErrInvalidReading) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		h.logger.Errorf("Failed to store reading from %s: %v", r.DeviceID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store reading"})
		return
	}
	if err := res.Err(); err != nil {
		h.logger.Warnf("Reading from %s stored with alert errors: %v", r.DeviceID, err)
	}
	c.JSON(http.StatusOK, "OK")
}

func (h *Handler) ListReadings(c *gin.Context) {
	deviceID := c.Query("dev-id")
	if deviceID == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "dev-id is required"})
		return
	}
	limit := defaultListLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	readings, err := h.store.RecentReadings(c.Request.Context(), deviceID, limit)
	if err != nil {
		h.logger.Errorf("Failed to get readings for %s: %v", deviceID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get readings"})
		return
	}
	if readings == nil {
		readings = []models.Reading{}
	}
	c.JSON(http.StatusOK, readings)
}

func (h *Handler) CountReadings(c *gin.Context) {
	h.respondCount(c, "readings", h.store.CountReadings)
}

func (h *Handler) DeleteReadings(c *gin.Context) {
	h.respondDelete(c, "readings", h.store.DeleteReadings)
}

func (h *Handler) CountActiveAlerts(c *gin.Context) {
	h.respondCount(c, "active alerts", h.store.CountActive)
}

func (h *Handler) DeleteActiveAlerts(c *gin.Context) {
	h.respondDelete(c, "active alerts", h.store.DeleteActive)
}

func (h *Handler) CountAlertHistory(c *gin.Context) {
	h.respondCount(c, "alert history", h.store.CountHistory)
}

func (h *Handler) DeleteAlertHistory(c *gin.Context) {
	h.respondDelete(c, "alert history", h.store.DeleteHistory)
}

func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		h.logger.Errorf("Health check failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type filterFunc func(ctx context.Context, f models.Filter) (int64, error)

func (h *Handler) respondCount(c *gin.Context, what string, count filterFunc) {
	f, err := parseFilter(c, true)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	n, err := count(c.Request.Context(), f)
	if err != nil {
		h.logger.Errorf("Failed to count %s: %v", what, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count " + what})
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h *Handler) respondDelete(c *gin.Context, what string, del filterFunc) {
	f, err := parseFilter(c, false)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	n, err := del(c.Request.Context(), f)
	if err != nil {
		h.logger.Errorf("Failed to delete %s: %v", what, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete " + what})
		return
	}
	h.logger.Infof("Deleted %d %s (dev-id=%q)", n, what, f.DeviceID)
	c.JSON(http.StatusOK, n)
}

// parseFilter reads dev-id and, for counts, reading-type (or its older name
// alert-type).
func parseFilter(c *gin.Context, withType bool) (models.Filter, error) {
	f := models.Filter{DeviceID: c.Query("dev-id")}
	if !withType {
		return f, nil
	}
	raw := c.Query("reading-type")
	if raw == "" {
		raw = c.Query("alert-type")
	}
	if raw == "" {
		return f, nil
	}
	rt, err := models.ParseReadingType(raw)
	if err != nil {
		return models.Filter{}, err
	}
	f.ReadingType = rt
	return f, nil
}
