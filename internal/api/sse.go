package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// heartbeatInterval keeps idle SSE connections alive through proxies.
const heartbeatInterval = 30 * time.Second

// StreamEvents pushes classified events to the client over Server-Sent
// Events. A subscriber that falls behind loses its oldest buffered events
// rather than stalling the pipeline.
func (c *Controller) StreamEvents(ctx echo.Context) error {
	ctx.Response().Header().Set("Content-Type", "text/event-stream")
	ctx.Response().Header().Set("Cache-Control", "no-cache")
	ctx.Response().Header().Set("Connection", "keep-alive")
	ctx.Response().Header().Set("Access-Control-Allow-Origin", "*")

	sub := c.Broadcaster.Subscribe()
	defer c.Broadcaster.Unsubscribe(sub.ID)

	if c.metrics != nil {
		c.metrics.StreamClientsActive.Inc()
		defer c.metrics.StreamClientsActive.Dec()
	}

	clientID := generateCorrelationID()
	if err := c.sendSSEMessage(ctx, "connected", map[string]string{
		"clientId": clientID,
		"message":  "Connected to event stream",
	}); err != nil {
		return err
	}

	if c.apiLogger != nil {
		c.apiLogger.Info("SSE client connected",
			"client_id", clientID,
			"ip", ctx.RealIP(),
			"user_agent", ctx.Request().UserAgent(),
		)
		defer c.apiLogger.Info("SSE client disconnected",
			"client_id", clientID,
			"ip", ctx.RealIP(),
		)
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	var lastDropped uint64
	for {
		select {
		case event, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := c.sendSSEMessage(ctx, "telemetry", event); err != nil {
				return err
			}
			if c.metrics != nil {
				if d := sub.Dropped(); d > lastDropped {
					c.metrics.StreamEventsDropped.Add(float64(d - lastDropped))
					lastDropped = d
				}
			}

		case <-ticker.C:
			if err := c.sendSSEMessage(ctx, "heartbeat", map[string]any{
				"timestamp": time.Now().Unix(),
				"clients":   c.Broadcaster.SubscriberCount(),
			}); err != nil {
				return err
			}

		case <-ctx.Request().Context().Done():
			return nil
		}
	}
}

// sendSSEMessage writes one event in SSE wire format and flushes it.
func (c *Controller) sendSSEMessage(ctx echo.Context, event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE data: %w", err)
	}

	message := fmt.Sprintf("event: %s\ndata: %s\n\n", event, jsonData)

	if conn, ok := ctx.Response().Writer.(interface{ SetWriteDeadline(time.Time) error }); ok {
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	}

	if _, err := ctx.Response().Write([]byte(message)); err != nil {
		return fmt.Errorf("failed to write SSE message: %w", err)
	}
	if flusher, ok := ctx.Response().Writer.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}
