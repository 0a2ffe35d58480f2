// internal/datastore/analytics.go
package datastore

import (
	"fmt"

	"github.com/sentinelfs/ransomwatch/internal/detection"
)

// recentThreatsLimit is how many of the newest threat events a report carries.
const recentThreatsLimit = 10

// ReportData contains aggregate statistics over the whole event log.
type ReportData struct {
	TotalLogs       int64            `json:"totalLogs"`
	ThreatsBlocked  int64            `json:"threatsBlocked"`
	Warnings        int64            `json:"warnings"`
	Threats         int64            `json:"threats"`
	RecentThreats   []TelemetryEvent `json:"recentThreats"`
	EventTypeCounts map[string]int64 `json:"eventTypeCounts"`
}

// CountEvents returns the total number of events in the log.
func (ds *DataStore) CountEvents() (int64, error) {
	var count int64
	if err := ds.DB.Model(&TelemetryEvent{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("error counting events: %w", err)
	}
	return count, nil
}

// CountBySeverity returns the number of events with the given severity.
func (ds *DataStore) CountBySeverity(severity string) (int64, error) {
	var count int64
	err := ds.DB.Model(&TelemetryEvent{}).
		Where("severity = ?", severity).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("error counting events by severity: %w", err)
	}
	return count, nil
}

// CountByAction returns the number of events with the given action.
func (ds *DataStore) CountByAction(action string) (int64, error) {
	var count int64
	err := ds.DB.Model(&TelemetryEvent{}).
		Where("action_taken = ?", action).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("error counting events by action: %w", err)
	}
	return count, nil
}

// GetRecentThreats returns the newest threat-severity events, ordered the
// same way as Query.
func (ds *DataStore) GetRecentThreats(limit int) ([]TelemetryEvent, error) {
	var events []TelemetryEvent
	err := ds.DB.
		Where("severity = ?", string(detection.SeverityThreat)).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("error getting recent threats: %w", err)
	}
	if events == nil {
		events = []TelemetryEvent{}
	}
	return events, nil
}

// EventTypeCounts returns the number of events per distinct event type.
func (ds *DataStore) EventTypeCounts() (map[string]int64, error) {
	rows, err := ds.DB.Model(&TelemetryEvent{}).
		Select("event_type, COUNT(*) as count").
		Group("event_type").
		Rows()
	if err != nil {
		return nil, fmt.Errorf("error counting events by type: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var eventType string
		var count int64
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, fmt.Errorf("error scanning event type counts: %w", err)
		}
		counts[eventType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event type counts: %w", err)
	}

	return counts, nil
}

// GetReportData assembles the full aggregate report, computed freshly from
// the event log. An empty log yields zero counts and empty collections.
func (ds *DataStore) GetReportData() (*ReportData, error) {
	report := &ReportData{
		RecentThreats:   []TelemetryEvent{},
		EventTypeCounts: map[string]int64{},
	}

	var err error
	if report.TotalLogs, err = ds.CountEvents(); err != nil {
		return nil, err
	}
	if report.ThreatsBlocked, err = ds.CountByAction(string(detection.ActionBlocked)); err != nil {
		return nil, err
	}
	if report.Warnings, err = ds.CountBySeverity(string(detection.SeverityWarning)); err != nil {
		return nil, err
	}
	if report.Threats, err = ds.CountBySeverity(string(detection.SeverityThreat)); err != nil {
		return nil, err
	}
	if report.RecentThreats, err = ds.GetRecentThreats(recentThreatsLimit); err != nil {
		return nil, err
	}
	if report.EventTypeCounts, err = ds.EventTypeCounts(); err != nil {
		return nil, err
	}

	return report, nil
}
