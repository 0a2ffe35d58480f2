package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// GetReport returns aggregate statistics over all stored events. The report
// is computed fresh on every request so it always reflects the latest data.
func (c *Controller) GetReport(ctx echo.Context) error {
	report, err := c.DS.GetReportData()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to generate report", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, report)
}
