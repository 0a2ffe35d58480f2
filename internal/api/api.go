// Package api exposes the HTTP interface: telemetry ingestion, log queries,
// aggregate reports, settings management, and the live event stream.
package api

import (
	"crypto/rand"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sentinelfs/ransomwatch/internal/datastore"
	"github.com/sentinelfs/ransomwatch/internal/events"
	"github.com/sentinelfs/ransomwatch/internal/ingest"
	"github.com/sentinelfs/ransomwatch/internal/logging"
	"github.com/sentinelfs/ransomwatch/internal/observability"
	"github.com/sentinelfs/ransomwatch/internal/simulator"
)

// Controller manages the API routes and handlers.
type Controller struct {
	Echo        *echo.Echo
	Group       *echo.Group
	DS          datastore.Interface
	Pipeline    *ingest.Pipeline
	Broadcaster *events.Broadcaster

	// DisableSaveSettings keeps settings changes in memory only. Used in
	// tests and for read-only deployments.
	DisableSaveSettings bool

	generator *simulator.Generator
	metrics   *observability.Metrics
	apiLogger *slog.Logger

	startTime time.Time
}

// New creates the API controller and registers all routes on e.
func New(e *echo.Echo, ds datastore.Interface, pipeline *ingest.Pipeline, broadcaster *events.Broadcaster, metrics *observability.Metrics) *Controller {
	c := &Controller{
		Echo:        e,
		DS:          ds,
		Pipeline:    pipeline,
		Broadcaster: broadcaster,
		generator:   simulator.New(),
		metrics:     metrics,
		apiLogger:   logging.ForService("api"),
		startTime:   time.Now(),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
	}))
	e.Use(middleware.BodyLimit("1M"))
	e.Use(c.LoggingMiddleware())

	c.Group = e.Group("/api/v2")
	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)

	c.Group.POST("/telemetry", c.IngestTelemetry)
	c.Group.POST("/telemetry/simulate", c.SimulateTelemetry)

	c.Group.GET("/logs", c.GetLogs)
	c.Group.GET("/logs/:id", c.GetLog)
	c.Group.GET("/report", c.GetReport)

	c.Group.GET("/settings", c.GetSettings)
	c.Group.PATCH("/settings", c.UpdateSettings)

	// Rate limit stream connection attempts per IP
	rateLimiter := middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      10,
				ExpiresIn: 1 * time.Minute,
			},
		),
		IdentifierExtractor: middleware.DefaultRateLimiterConfig.IdentifierExtractor,
		ErrorHandler: func(ctx echo.Context, err error) error {
			return ctx.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded for stream connections",
			})
		},
		DenyHandler: func(ctx echo.Context, identifier string, err error) error {
			return ctx.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Too many stream connection attempts, please wait before trying again",
			})
		},
	})
	c.Group.GET("/events/stream", c.StreamEvents, rateLimiter)

	if c.metrics != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}
}

// LoggingMiddleware logs every API request with latency and status.
func (c *Controller) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)

			if c.apiLogger == nil {
				return err
			}

			req := ctx.Request()
			res := ctx.Response()
			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.String("query", req.URL.RawQuery),
				slog.Int("status", res.Status),
				slog.String("ip", ctx.RealIP()),
				slog.Int64("latency_ms", time.Since(start).Milliseconds()),
			}
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}
			c.apiLogger.LogAttrs(req.Context(), slog.LevelInfo, "API Request", attrs...)
			return err
		}
	}
}

// ErrorResponse is the JSON body returned for any failed request.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse builds an error body with a fresh correlation ID.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID creates a short random identifier for error tracking.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError logs err and replies with a structured error body.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	errorResp := NewErrorResponse(err, message, code)

	if c.apiLogger != nil {
		errorStr := message
		if err != nil {
			errorStr = err.Error()
		}
		c.apiLogger.Error("API Error",
			"correlation_id", errorResp.CorrelationID,
			"message", message,
			"error", errorStr,
			"code", code,
			"path", ctx.Request().URL.Path,
			"method", ctx.Request().Method,
			"ip", ctx.RealIP(),
		)
	}

	return ctx.JSON(code, errorResp)
}

// HealthCheck returns liveness information.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"uptime_seconds": int64(time.Since(c.startTime).Seconds()),
		"stream_clients": c.streamClientCount(),
	})
}

func (c *Controller) streamClientCount() int {
	if c.Broadcaster == nil {
		return 0
	}
	return c.Broadcaster.SubscriberCount()
}
