package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"notification-engine/internal/engine"
	"notification-engine/internal/models"
	"notification-engine/internal/monitor"
	"notification-engine/internal/util"
)

// Engine is the registry surface exposed over HTTP
type Engine interface {
	Running() bool
	Status() []engine.MonitorStatus
	RunOnce(ctx context.Context, name string) (monitor.Result, error)
}

// StatePublisher accepts lifecycle transitions from the host
type StatePublisher interface {
	Publish(ctx context.Context, state models.AppState)
}

// SessionStore holds the session token the monitors authenticate with
type SessionStore interface {
	SetToken(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	engine    Engine
	lifecycle StatePublisher
	session   SessionStore
	ready     func(ctx context.Context) error
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler. ready may be nil.
func NewHandler(eng Engine, lifecycle StatePublisher, session SessionStore, ready func(ctx context.Context) error, logger *zap.Logger) *Handler {
	return &Handler{
		engine:    eng,
		lifecycle: lifecycle,
		session:   session,
		ready:     ready,
		logger:    logger,
	}
}

type lifecycleRequest struct {
	State models.AppState `json:"state" binding:"required"`
}

type sessionRequest struct {
	Token string `json:"token" binding:"required"`
}

type tickResponse struct {
	Monitor  string `json:"monitor"`
	Outcome  string `json:"outcome"`
	Notified int    `json:"notified"`
	Reason   string `json:"reason,omitempty"`
	Error    string `json:"error,omitempty"`
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/lifecycle", h.publishLifecycle)
		v1.PUT("/session", h.setSession)
		v1.DELETE("/session", h.clearSession)
		v1.GET("/monitors", h.listMonitors)
		v1.POST("/monitors/:name/tick", h.tickMonitor)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready once the engine is running and the store answers
func (h *Handler) readinessCheck(c *gin.Context) {
	if !h.engine.Running() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  "engine not running",
		})
		return
	}
	if h.ready != nil {
		if err := h.ready(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// publishLifecycle handles app state transitions reported by the host
func (h *Handler) publishLifecycle(c *gin.Context) {
	var req lifecycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	if !req.State.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Unknown state",
		})
		return
	}

	h.lifecycle.Publish(c.Request.Context(), req.State)
	c.JSON(http.StatusAccepted, gin.H{"state": req.State})
}

func (h *Handler) setSession(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.session.SetToken(c.Request.Context(), req.Token); err != nil {
		h.logger.Error("Failed to store session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to store session",
		})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) clearSession(c *gin.Context) {
	if err := h.session.Clear(c.Request.Context()); err != nil {
		h.logger.Error("Failed to clear session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to clear session",
		})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listMonitors(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"running":  h.engine.Running(),
		"monitors": h.engine.Status(),
	})
}

// tickMonitor runs one tick of a monitor now
func (h *Handler) tickMonitor(c *gin.Context) {
	res, err := h.engine.RunOnce(c.Request.Context(), c.Param("name"))
	if errors.Is(err, engine.ErrUnknownMonitor) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Monitor not found",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to run monitor",
			"details": err.Error(),
		})
		return
	}

	resp := tickResponse{
		Monitor:  res.Monitor,
		Outcome:  string(res.Outcome),
		Notified: res.Notified,
		Reason:   res.Reason,
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
