package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sentinelfs/ransomwatch/internal/datastore"
	"github.com/sentinelfs/ransomwatch/internal/detection"
	"github.com/sentinelfs/ransomwatch/internal/errors"
	"github.com/sentinelfs/ransomwatch/internal/ingest"
)

// maxSimulatedEvents caps one simulation request.
const maxSimulatedEvents = 500

type monitoringDisabledResponse struct {
	Message string `json:"message"`
}

// IngestTelemetry accepts one raw telemetry event, classifies it, and
// returns the stored record. While monitoring is disabled the event is
// acknowledged but not processed, unless demo=true bypasses the gate.
func (c *Controller) IngestTelemetry(ctx echo.Context) error {
	var raw detection.RawEvent
	if err := ctx.Bind(&raw); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	opts := ingest.Options{BypassMonitoringGate: ctx.QueryParam("demo") == "true"}
	event, err := c.Pipeline.Ingest(ctx.Request().Context(), &raw, opts)
	switch {
	case err == nil:
		return ctx.JSON(http.StatusCreated, event)
	case errors.Is(err, ingest.ErrMonitoringDisabled):
		return ctx.JSON(http.StatusOK, monitoringDisabledResponse{Message: "Monitoring is disabled"})
	case errors.IsValidation(err):
		return c.HandleError(ctx, err, "Invalid telemetry event", http.StatusBadRequest)
	default:
		return c.HandleError(ctx, err, "Failed to process telemetry event", http.StatusInternalServerError)
	}
}

type simulateResponse struct {
	Success bool                        `json:"success"`
	Count   int                         `json:"count"`
	Events  []*datastore.TelemetryEvent `json:"events"`
}

// SimulateTelemetry generates synthetic events and runs them through the
// regular pipeline. With demo=true the monitoring gate is bypassed so demos
// work regardless of the current settings.
func (c *Controller) SimulateTelemetry(ctx echo.Context) error {
	count := 1
	if v := ctx.QueryParam("count"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return c.HandleError(ctx, err, "Invalid count parameter", http.StatusBadRequest)
		}
		count = parsed
	}
	if count > maxSimulatedEvents {
		count = maxSimulatedEvents
	}
	demo := ctx.QueryParam("demo") == "true"

	opts := ingest.Options{BypassMonitoringGate: demo}
	stored := make([]*datastore.TelemetryEvent, 0, count)
	for _, sample := range c.generator.GenerateBatch(count) {
		raw := &detection.RawEvent{
			ProcessName:  sample.ProcessName,
			FilePath:     sample.FilePath,
			EventType:    sample.EventType,
			EntropyScore: sample.EntropyScore,
			RenameCount:  sample.RenameCount,
		}
		event, err := c.Pipeline.Ingest(ctx.Request().Context(), raw, opts)
		if err != nil {
			if errors.Is(err, ingest.ErrMonitoringDisabled) {
				return ctx.JSON(http.StatusOK, monitoringDisabledResponse{Message: "Monitoring is disabled"})
			}
			return c.HandleError(ctx, err, "Failed to generate telemetry events", http.StatusInternalServerError)
		}
		stored = append(stored, event)
	}

	return ctx.JSON(http.StatusOK, simulateResponse{
		Success: true,
		Count:   len(stored),
		Events:  stored,
	})
}
