// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sentinelfs/ransomwatch/internal/conf"
	"github.com/sentinelfs/ransomwatch/internal/errors"
	"github.com/sentinelfs/ransomwatch/internal/logging"
)

const (
	DefaultQueryLimit = 20
	MaxQueryLimit     = 1000
)

// Interface abstracts the underlying database implementation and defines the
// operations the engine performs against the event log.
type Interface interface {
	Open() error
	Close() error
	Save(event *TelemetryEvent) error
	Get(uuid string) (TelemetryEvent, error)
	Query(filters *QueryFilters) ([]TelemetryEvent, int64, error)
	CountEvents() (int64, error)
	CountBySeverity(severity string) (int64, error)
	CountByAction(action string) (int64, error)
	GetRecentThreats(limit int) ([]TelemetryEvent, error)
	EventTypeCounts() (map[string]int64, error)
	GetReportData() (*ReportData, error)
}

// QueryFilters narrows and paginates an event log query. Zero values mean
// "no filter" / defaults.
type QueryFilters struct {
	Search   string // case-insensitive substring match on process name or file path
	Severity string // exact severity match
	Page     int    // 1-indexed
	Limit    int    // page size
}

// Normalize clamps pagination parameters to sane values.
func (f *QueryFilters) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultQueryLimit
	}
	if f.Limit > MaxQueryLimit {
		f.Limit = MaxQueryLimit
	}
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new datastore instance based on the provided configuration.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		return nil
	}
}

// Save inserts a new classified event into the event log. The insert is a
// single atomic row create; it either fully lands or fails as a unit.
func (ds *DataStore) Save(event *TelemetryEvent) error {
	if ds.DB == nil {
		return errors.Newf("database connection is not initialized").
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}

	if err := ds.DB.Create(event).Error; err != nil {
		return errors.New(err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Context("operation", "save").
			Build()
	}
	return nil
}

// Get retrieves an event by its public UUID.
func (ds *DataStore) Get(uuid string) (TelemetryEvent, error) {
	var event TelemetryEvent
	if err := ds.DB.Where("uuid = ?", uuid).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return TelemetryEvent{}, errors.Newf("event %s not found", uuid).
				Category(errors.CategoryNotFound).
				Component("datastore").
				Build()
		}
		return TelemetryEvent{}, fmt.Errorf("getting event %s: %w", uuid, err)
	}
	return event, nil
}

// Query returns the filtered page of events plus the total filtered count.
// Ordering is newest first: timestamp descending, insertion order breaking
// ties. Pages past the end of the result set yield an empty slice, not an
// error.
func (ds *DataStore) Query(filters *QueryFilters) ([]TelemetryEvent, int64, error) {
	if filters == nil {
		filters = &QueryFilters{}
	}
	filters.Normalize()

	query := ds.DB.Model(&TelemetryEvent{})

	if filters.Search != "" {
		pattern := "%" + strings.ToLower(filters.Search) + "%"
		query = query.Where("LOWER(process_name) LIKE ? OR LOWER(file_path) LIKE ?", pattern, pattern)
	}
	if filters.Severity != "" {
		query = query.Where("severity = ?", filters.Severity)
	}

	// Count the filtered set before pagination
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("error counting events: %w", err)
	}

	var events []TelemetryEvent
	offset := (filters.Page - 1) * filters.Limit
	err := query.
		Order("timestamp DESC, id DESC").
		Limit(filters.Limit).
		Offset(offset).
		Find(&events).Error
	if err != nil {
		return nil, 0, fmt.Errorf("error querying events: %w", err)
	}
	if events == nil {
		events = []TelemetryEvent{}
	}

	return events, total, nil
}

// performAutoMigration automates database migrations with error handling.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&TelemetryEvent{}); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		logging.Debug("database connection initialized", "type", dbType, "connection", connectionInfo)
	}

	return nil
}

// slogWriter adapts the structured logger to gorm's logger.Writer interface.
type slogWriter struct{}

func (slogWriter) Printf(format string, args ...any) {
	logging.Info(fmt.Sprintf(format, args...))
}

// createGormLogger returns a GORM logger that routes slow-query and error
// output through the application logger.
func createGormLogger() logger.Interface {
	return logger.New(slogWriter{}, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}
