// Package httpapi exposes the order saga service over HTTP.
package httpapi

import (
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"orderflow/internal/observability"
	"orderflow/internal/orders"
	"orderflow/internal/realtime"
	"orderflow/internal/saga"
)

// Handler carries the dependencies behind the HTTP endpoints.
type Handler struct {
	svc      *orders.Service
	hub      *realtime.Hub
	metrics  *observability.Metrics
	limiter  *orders.RateLimiter
	upgrader websocket.Upgrader
	logf     func(format string, args ...any)
}

// Config wires a Handler. Service is required; the rest are optional.
type Config struct {
	Service *orders.Service
	Hub     *realtime.Hub
	Metrics *observability.Metrics
	Limiter *orders.RateLimiter
	Logf    func(format string, args ...any)
}

// NewHandler constructs a Handler.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Service == nil {
		return nil, errors.New("service is required")
	}
	logf := cfg.Logf
	if logf == nil {
		logf = log.Printf
	}
	return &Handler{
		svc:     cfg.Service,
		hub:     cfg.Hub,
		metrics: cfg.Metrics,
		limiter: cfg.Limiter,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logf: logf,
	}, nil
}

// Router builds the gin engine with all routes mounted.
func (h *Handler) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", h.healthz)

	v1 := router.Group("/v1")
	v1.POST("/orders", h.rateLimit, h.submitOrder)
	v1.GET("/sagas/:handle", h.getRun)
	v1.DELETE("/sagas/:handle", h.cancelRun)

	if h.hub != nil {
		router.GET("/ws", h.serveWS)
	}
	return router
}

type errorResponse struct {
	Error string `json:"error"`
}

type submitResponse struct {
	Handle  string        `json:"handle,omitempty"`
	Outcome *saga.Outcome `json:"outcome,omitempty"`
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// submitOrder handles POST /v1/orders. With ?mode=async the saga runs in the
// background and the response carries a handle for polling; otherwise the
// request blocks until the saga reaches a terminal outcome.
func (h *Handler) submitOrder(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "read body: " + err.Error()})
		return
	}
	payload, err := orders.ParsePayload(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if c.Query("mode") == "async" {
		handle, err := h.svc.SubmitAsync(c.Request.Context(), payload)
		if err != nil {
			h.submitError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, submitResponse{Handle: handle})
		return
	}

	outcome, err := h.svc.Submit(c.Request.Context(), payload)
	if err != nil {
		h.submitError(c, err)
		return
	}
	c.JSON(outcomeStatusCode(outcome.Status), submitResponse{Outcome: &outcome})
}

func (h *Handler) submitError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, orders.ErrInput):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, orders.ErrRunInFlight):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

// outcomeStatusCode maps a terminal saga status onto an HTTP status. The
// request itself succeeded in every case; the code reflects the business
// result.
func outcomeStatusCode(status saga.Status) int {
	switch status {
	case saga.StatusSucceeded:
		return http.StatusOK
	case saga.StatusRejected:
		return http.StatusUnprocessableEntity
	case saga.StatusFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) getRun(c *gin.Context) {
	status, err := h.svc.Status(c.Param("handle"))
	if err != nil {
		if errors.Is(err, orders.ErrUnknownRun) {
			c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) cancelRun(c *gin.Context) {
	if err := h.svc.Cancel(c.Param("handle")); err != nil {
		if errors.Is(err, orders.ErrUnknownRun) {
			c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
}

// rateLimit queues submissions behind the ingress token bucket, recording
// the time spent waiting.
func (h *Handler) rateLimit(c *gin.Context) {
	if h.limiter == nil {
		c.Next()
		return
	}
	started := time.Now()
	if err := h.limiter.Wait(c.Request.Context()); err != nil {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Error: "rate limited"})
		return
	}
	h.metrics.AddRateLimitWait(time.Since(started))
	c.Next()
}

func (h *Handler) serveWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logf("websocket upgrade: %v", err)
		return
	}
	h.hub.Register <- conn

	// Drain reads so close frames are processed; the hub owns writes.
	go func() {
		defer func() { h.hub.Unregister <- conn }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
