package datastore

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sentinelfs/ransomwatch/internal/detection"
)

func newTestStore(t *testing.T) *DataStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&TelemetryEvent{}))
	return &DataStore{DB: db}
}

func seedEvent(t *testing.T, ds *DataStore, ev TelemetryEvent) TelemetryEvent {
	t.Helper()
	if ev.UUID == "" {
		ev.UUID = fmt.Sprintf("test-%d-%d", time.Now().UnixNano(), ev.RenameCount)
	}
	require.NoError(t, ds.Save(&ev))
	return ev
}

func TestSaveAndGet(t *testing.T) {
	ds := newTestStore(t)

	saved := seedEvent(t, ds, TelemetryEvent{
		UUID:         "e1",
		Timestamp:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		ProcessName:  "chrome.exe",
		FilePath:     `C:\Users\Documents\file_1.txt`,
		EventType:    detection.EventWrite,
		EntropyScore: 42.5,
		RenameCount:  3,
		Severity:     string(detection.SeveritySafe),
		ActionTaken:  string(detection.ActionIgnored),
	})

	got, err := ds.Get("e1")
	require.NoError(t, err)
	assert.Equal(t, saved.ProcessName, got.ProcessName)
	assert.Equal(t, saved.Severity, got.Severity)
	assert.NotZero(t, got.ID)
}

func TestGetUnknownUUID(t *testing.T) {
	ds := newTestStore(t)
	_, err := ds.Get("missing")
	assert.Error(t, err)
}

func TestQueryOrderingNewestFirst(t *testing.T) {
	ds := newTestStore(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	seedEvent(t, ds, TelemetryEvent{UUID: "a", Timestamp: base.Add(1 * time.Minute), ProcessName: "p", FilePath: "f", EventType: "write", Severity: "safe", ActionTaken: "ignored"})
	seedEvent(t, ds, TelemetryEvent{UUID: "b", Timestamp: base.Add(3 * time.Minute), ProcessName: "p", FilePath: "f", EventType: "write", Severity: "safe", ActionTaken: "ignored"})
	// Same timestamp as "b": most recently inserted wins the tie
	seedEvent(t, ds, TelemetryEvent{UUID: "c", Timestamp: base.Add(3 * time.Minute), ProcessName: "p", FilePath: "f", EventType: "write", Severity: "safe", ActionTaken: "ignored"})
	seedEvent(t, ds, TelemetryEvent{UUID: "d", Timestamp: base.Add(2 * time.Minute), ProcessName: "p", FilePath: "f", EventType: "write", Severity: "safe", ActionTaken: "ignored"})

	events, total, err := ds.Query(&QueryFilters{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)

	gotOrder := make([]string, 0, len(events))
	for i := range events {
		gotOrder = append(gotOrder, events[i].UUID)
	}
	assert.Equal(t, []string{"c", "b", "d", "a"}, gotOrder)
}

func TestQueryTextFilterCaseInsensitive(t *testing.T) {
	ds := newTestStore(t)
	now := time.Now()

	seedEvent(t, ds, TelemetryEvent{UUID: "1", Timestamp: now, ProcessName: "Chrome.exe", FilePath: `C:\Users\doc.txt`, EventType: "write", Severity: "safe", ActionTaken: "ignored"})
	seedEvent(t, ds, TelemetryEvent{UUID: "2", Timestamp: now, ProcessName: "svchost.exe", FilePath: `D:\Projects\CHROME_cache.bin`, EventType: "access", Severity: "safe", ActionTaken: "ignored"})
	seedEvent(t, ds, TelemetryEvent{UUID: "3", Timestamp: now, ProcessName: "explorer.exe", FilePath: `C:\Windows\notes.txt`, EventType: "write", Severity: "safe", ActionTaken: "ignored"})

	// Matches process name on one event and file path on another
	events, total, err := ds.Query(&QueryFilters{Search: "chrome"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, events, 2)

	events, total, err = ds.Query(&QueryFilters{Search: "no-such-thing"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, events)
}

func TestQuerySeverityFilter(t *testing.T) {
	ds := newTestStore(t)
	now := time.Now()

	for i := 0; i < 5; i++ {
		seedEvent(t, ds, TelemetryEvent{UUID: fmt.Sprintf("t%d", i), Timestamp: now, ProcessName: "p", FilePath: "f", EventType: "rename", Severity: "threat", ActionTaken: "blocked"})
	}
	for i := 0; i < 15; i++ {
		seedEvent(t, ds, TelemetryEvent{UUID: fmt.Sprintf("s%d", i), Timestamp: now, ProcessName: "p", FilePath: "f", EventType: "write", Severity: "safe", ActionTaken: "ignored"})
	}

	events, total, err := ds.Query(&QueryFilters{Page: 1, Limit: 20, Severity: "threat"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, events, 5)
	for i := range events {
		assert.Equal(t, "threat", events[i].Severity)
	}
}

func TestQueryPaginationRoundTrip(t *testing.T) {
	ds := newTestStore(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	const totalEvents = 47
	for i := 0; i < totalEvents; i++ {
		seedEvent(t, ds, TelemetryEvent{
			UUID:        fmt.Sprintf("ev-%02d", i),
			Timestamp:   base.Add(time.Duration(i) * time.Second),
			ProcessName: "p", FilePath: "f", EventType: "write",
			Severity: "safe", ActionTaken: "ignored",
		})
	}

	const limit = 10
	seen := make(map[string]bool)
	var concatenated []string
	for page := 1; ; page++ {
		events, total, err := ds.Query(&QueryFilters{Page: page, Limit: limit})
		require.NoError(t, err)
		assert.Equal(t, int64(totalEvents), total)
		if len(events) == 0 {
			break
		}
		for i := range events {
			assert.False(t, seen[events[i].UUID], "duplicate event %s on page %d", events[i].UUID, page)
			seen[events[i].UUID] = true
			concatenated = append(concatenated, events[i].UUID)
		}
	}

	// No omissions, and full ordering preserved across page boundaries
	require.Len(t, concatenated, totalEvents)
	for i := 0; i < totalEvents; i++ {
		assert.Equal(t, fmt.Sprintf("ev-%02d", totalEvents-1-i), concatenated[i])
	}
}

func TestQueryPageBeyondRange(t *testing.T) {
	ds := newTestStore(t)
	seedEvent(t, ds, TelemetryEvent{UUID: "only", Timestamp: time.Now(), ProcessName: "p", FilePath: "f", EventType: "write", Severity: "safe", ActionTaken: "ignored"})

	events, total, err := ds.Query(&QueryFilters{Page: 99, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Empty(t, events)
}

func TestQueryEmptyStore(t *testing.T) {
	ds := newTestStore(t)
	events, total, err := ds.Query(&QueryFilters{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, events)
}

func TestReportDataConsistency(t *testing.T) {
	ds := newTestStore(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// 12 threats (7 blocked, 5 flagged), 4 warnings, 3 safe
	for i := 0; i < 12; i++ {
		action := "blocked"
		if i >= 7 {
			action = "flagged"
		}
		seedEvent(t, ds, TelemetryEvent{
			UUID: fmt.Sprintf("threat-%02d", i), Timestamp: base.Add(time.Duration(i) * time.Minute),
			ProcessName: "evil.exe", FilePath: "f", EventType: "rename",
			Severity: "threat", ActionTaken: action,
		})
	}
	for i := 0; i < 4; i++ {
		seedEvent(t, ds, TelemetryEvent{
			UUID: fmt.Sprintf("warn-%d", i), Timestamp: base,
			ProcessName: "odd.exe", FilePath: "f", EventType: "write",
			Severity: "warning", ActionTaken: "flagged",
		})
	}
	for i := 0; i < 3; i++ {
		seedEvent(t, ds, TelemetryEvent{
			UUID: fmt.Sprintf("safe-%d", i), Timestamp: base,
			ProcessName: "fine.exe", FilePath: "f", EventType: "access",
			Severity: "safe", ActionTaken: "ignored",
		})
	}

	report, err := ds.GetReportData()
	require.NoError(t, err)

	assert.Equal(t, int64(19), report.TotalLogs)
	assert.Equal(t, int64(12), report.Threats)
	assert.Equal(t, int64(7), report.ThreatsBlocked)
	assert.Equal(t, int64(4), report.Warnings)

	// Only the 10 newest threats, newest first
	require.Len(t, report.RecentThreats, 10)
	assert.Equal(t, "threat-11", report.RecentThreats[0].UUID)
	assert.Equal(t, "threat-02", report.RecentThreats[9].UUID)

	assert.Equal(t, map[string]int64{
		"rename": 12,
		"write":  4,
		"access": 3,
	}, report.EventTypeCounts)
}

func TestReportDataEmptyStore(t *testing.T) {
	ds := newTestStore(t)

	report, err := ds.GetReportData()
	require.NoError(t, err)
	assert.Zero(t, report.TotalLogs)
	assert.Zero(t, report.Threats)
	assert.NotNil(t, report.RecentThreats)
	assert.Empty(t, report.RecentThreats)
	assert.NotNil(t, report.EventTypeCounts)
	assert.Empty(t, report.EventTypeCounts)
}
