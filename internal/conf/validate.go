// conf/validate.go

package conf

import (
	"fmt"
	"math"
	"net"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	// Validate Detection settings
	if err := validateDetectionSettings(&settings.Detection); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate Output settings
	if err := validateOutputSettings(&settings.Output); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate WebServer settings
	if err := validateWebServerSettings(&settings.WebServer); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// If there are any errors, return the ValidationError
	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// validateDetectionSettings validates the decision-policy settings
func validateDetectionSettings(settings *DetectionSettings) error {
	var errs []string

	// Entropy threshold shares the 0-100 scale with event entropy scores
	if settings.EntropyThreshold < 0 || settings.EntropyThreshold > 100 ||
		math.IsNaN(settings.EntropyThreshold) {
		errs = append(errs, "detection entropy threshold must be between 0 and 100")
	}

	if settings.RenameThreshold < 0 {
		errs = append(errs, "detection rename threshold must not be negative")
	}

	if settings.WebhookURL != "" &&
		!strings.Contains(settings.WebhookURL, "://") {
		errs = append(errs, "detection webhook URL must include a scheme")
	}

	if len(errs) > 0 {
		return fmt.Errorf("detection settings errors: %v", errs)
	}
	return nil
}

// validateOutputSettings validates the event persistence settings
func validateOutputSettings(settings *OutputSettings) error {
	var errs []string

	if !settings.SQLite.Enabled && !settings.MySQL.Enabled {
		errs = append(errs, "at least one output database must be enabled")
	}
	if settings.SQLite.Enabled && settings.SQLite.Path == "" {
		errs = append(errs, "SQLite database path must not be empty")
	}
	if settings.MySQL.Enabled {
		if settings.MySQL.Host == "" || settings.MySQL.Database == "" {
			errs = append(errs, "MySQL host and database must not be empty")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("output settings errors: %v", errs)
	}
	return nil
}

// validateWebServerSettings validates the web server settings
func validateWebServerSettings(settings *WebServerSettings) error {
	if settings.Enabled {
		if _, err := net.LookupPort("tcp", settings.Port); err != nil {
			return fmt.Errorf("invalid web server port: %s", settings.Port)
		}
	}
	return nil
}
