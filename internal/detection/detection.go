// Package detection provides the core domain model for telemetry
// classification. It defines the severity tiers and response actions assigned
// to file/process telemetry events, and the pure decision function that maps
// raw measurements to them. External serialization (API, database) is handled
// by boundary-specific DTOs and entities.
package detection

import (
	"time"
)

// Severity is the derived threat tier of a telemetry event.
type Severity string

const (
	SeveritySafe    Severity = "safe"
	SeverityWarning Severity = "warning"
	SeverityThreat  Severity = "threat"
)

// Action is the response decision tied to a severity.
type Action string

const (
	ActionIgnored Action = "ignored"
	ActionFlagged Action = "flagged"
	ActionBlocked Action = "blocked"
)

// Known event types for file/process telemetry.
const (
	EventWrite  = "write"
	EventRename = "rename"
	EventDelete = "delete"
	EventAccess = "access"
)

// RawEvent is one unclassified telemetry observation as reported by a sensor.
// EntropyScore uses the same 0-100 scale as the configured entropy threshold.
type RawEvent struct {
	ProcessName  string    `json:"process_name"`
	FilePath     string    `json:"file_path"`
	EventType    string    `json:"event_type"`
	EntropyScore float64   `json:"entropy_score"`
	RenameCount  int       `json:"rename_count"`
	Timestamp    time.Time `json:"timestamp,omitzero"` // trusted when supplied, else stamped at ingestion
}

// Thresholds is the decision-policy snapshot a single classification uses.
// Capturing it per event keeps every decision reproducible even while the
// live settings record changes underneath.
type Thresholds struct {
	Entropy   float64
	Rename    int
	AutoBlock bool
}

// ValidSeverity reports whether s is one of the known severity tiers.
func ValidSeverity(s string) bool {
	switch Severity(s) {
	case SeveritySafe, SeverityWarning, SeverityThreat:
		return true
	default:
		return false
	}
}
