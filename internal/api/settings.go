package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sentinelfs/ransomwatch/internal/conf"
	"github.com/sentinelfs/ransomwatch/internal/errors"
)

// detectionSettingsDTO is the wire form of the single settings record.
type detectionSettingsDTO struct {
	EntropyThreshold float64 `json:"entropy_threshold"`
	RenameThreshold  int     `json:"rename_threshold"`
	AutoBlock        bool    `json:"auto_block_enabled"`
	Monitoring       bool    `json:"monitoring_enabled"`
	WebhookURL       string  `json:"webhook_url"`
}

func detectionDTO(s *conf.Settings) detectionSettingsDTO {
	return detectionSettingsDTO{
		EntropyThreshold: s.Detection.EntropyThreshold,
		RenameThreshold:  s.Detection.RenameThreshold,
		AutoBlock:        s.Detection.AutoBlock,
		Monitoring:       s.Detection.Monitoring,
		WebhookURL:       s.Detection.WebhookURL,
	}
}

// GetSettings returns the current detection settings.
func (c *Controller) GetSettings(ctx echo.Context) error {
	settings, err := conf.Current()
	if err != nil {
		return c.HandleError(ctx, err, "Settings not available", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, detectionDTO(settings))
}

// UpdateSettings applies a partial update to the detection settings. Fields
// omitted from the request body keep their current values. Already stored
// events are never reclassified.
func (c *Controller) UpdateSettings(ctx echo.Context) error {
	var patch conf.DetectionPatch
	if err := ctx.Bind(&patch); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	updated, err := conf.UpdateDetection(&patch)
	if err != nil {
		if errors.IsValidation(err) || isConfValidation(err) {
			return c.HandleError(ctx, err, "Invalid settings", http.StatusBadRequest)
		}
		return c.HandleError(ctx, err, "Failed to update settings", http.StatusInternalServerError)
	}

	if !c.DisableSaveSettings {
		if err := conf.SaveSettings(); err != nil {
			return c.HandleError(ctx, err, "Settings updated but could not be persisted", http.StatusInternalServerError)
		}
	}

	return ctx.JSON(http.StatusOK, detectionDTO(updated))
}

func isConfValidation(err error) bool {
	var verr conf.ValidationError
	return errors.As(err, &verr)
}
