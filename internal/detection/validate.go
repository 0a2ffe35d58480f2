package detection

import (
	"math"

	"github.com/sentinelfs/ransomwatch/internal/errors"
)

// ValidateRaw checks that a raw telemetry event carries everything the
// classifier needs. Returns a validation-category error describing the first
// problem found, nil when the event is acceptable.
func ValidateRaw(raw *RawEvent) error {
	if raw.ProcessName == "" {
		return errors.ValidationError("process_name is required")
	}
	if raw.FilePath == "" {
		return errors.ValidationError("file_path is required")
	}
	if raw.EventType == "" {
		return errors.ValidationError("event_type is required")
	}
	if math.IsNaN(raw.EntropyScore) || math.IsInf(raw.EntropyScore, 0) {
		return errors.ValidationError("entropy_score must be a finite number")
	}
	return nil
}
