package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sentinelfs/ransomwatch/internal/datastore"
	"github.com/sentinelfs/ransomwatch/internal/detection"
	"github.com/sentinelfs/ransomwatch/internal/errors"
)

type logsResponse struct {
	Logs       []datastore.TelemetryEvent `json:"logs"`
	Total      int64                      `json:"total"`
	Page       int                        `json:"page"`
	Limit      int                        `json:"limit"`
	TotalPages int                        `json:"totalPages"`
}

// GetLogs returns a page of stored events, newest first. Supports free-text
// filtering on process name and file path, and an exact severity filter.
func (c *Controller) GetLogs(ctx echo.Context) error {
	filters := &datastore.QueryFilters{
		Search:   ctx.QueryParam("filter"),
		Severity: ctx.QueryParam("severity"),
	}
	if filters.Search == "" {
		// "search" is accepted as an alias for "filter"
		filters.Search = ctx.QueryParam("search")
	}

	if filters.Severity != "" && !detection.ValidSeverity(filters.Severity) {
		return c.HandleError(ctx,
			errors.ValidationError("severity must be one of safe, warning, threat"),
			"Invalid severity filter", http.StatusBadRequest)
	}

	var err error
	if filters.Page, err = parsePositiveInt(ctx.QueryParam("page"), 1); err != nil {
		return c.HandleError(ctx, err, "Invalid page parameter", http.StatusBadRequest)
	}
	if filters.Limit, err = parsePositiveInt(ctx.QueryParam("limit"), 0); err != nil {
		return c.HandleError(ctx, err, "Invalid limit parameter", http.StatusBadRequest)
	}

	filters.Normalize()
	logs, total, err := c.DS.Query(filters)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to query logs", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, logsResponse{
		Logs:       logs,
		Total:      total,
		Page:       filters.Page,
		Limit:      filters.Limit,
		TotalPages: totalPages(total, filters.Limit),
	})
}

// GetLog returns a single event by its public identifier.
func (c *Controller) GetLog(ctx echo.Context) error {
	event, err := c.DS.Get(ctx.Param("id"))
	if err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, err, "Event not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get event", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, event)
}

// parsePositiveInt parses s as a positive integer, returning fallback when
// s is empty.
func parsePositiveInt(s string, fallback int) (int, error) {
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.ValidationError("value must be an integer")
	}
	if v < 1 {
		return 0, errors.ValidationError("value must be positive")
	}
	return v, nil
}

// totalPages is the page count for a result set, never below 1 so clients
// can always render a pager.
func totalPages(total int64, limit int) int {
	if limit < 1 {
		limit = datastore.DefaultQueryLimit
	}
	pages := int((total + int64(limit) - 1) / int64(limit))
	if pages < 1 {
		return 1
	}
	return pages
}
