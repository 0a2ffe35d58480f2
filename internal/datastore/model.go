// model.go this code defines the data model for the application
package datastore

import "time"

// TelemetryEvent represents a single classified telemetry observation.
// Events are append-only: once created they are never mutated or deleted by
// the engine, and their severity/action reflect the settings in force at
// ingestion time.
type TelemetryEvent struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	UUID         string    `gorm:"uniqueIndex;type:varchar(36)" json:"id"`
	Timestamp    time.Time `gorm:"index:idx_events_timestamp" json:"timestamp"`
	ProcessName  string    `gorm:"index:idx_events_process" json:"process_name"`
	FilePath     string    `json:"file_path"`
	EventType    string    `gorm:"index:idx_events_type;type:varchar(20)" json:"event_type"`
	EntropyScore float64   `json:"entropy_score"`
	RenameCount  int       `json:"rename_count"`
	Severity     string    `gorm:"index:idx_events_severity;type:varchar(20)" json:"severity"`
	ActionTaken  string    `gorm:"type:varchar(20)" json:"action_taken"`
}
