package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelfs/ransomwatch/internal/conf"
	"github.com/sentinelfs/ransomwatch/internal/datastore"
	"github.com/sentinelfs/ransomwatch/internal/detection"
	"github.com/sentinelfs/ransomwatch/internal/events"
	"github.com/sentinelfs/ransomwatch/internal/notification"
)

// mockStore records saved events and can be forced to fail.
type mockStore struct {
	saved   []*datastore.TelemetryEvent
	saveErr error
}

func (m *mockStore) Open() error  { return nil }
func (m *mockStore) Close() error { return nil }
func (m *mockStore) Save(event *datastore.TelemetryEvent) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, event)
	return nil
}
func (m *mockStore) Get(string) (datastore.TelemetryEvent, error) {
	return datastore.TelemetryEvent{}, nil
}
func (m *mockStore) Query(*datastore.QueryFilters) ([]datastore.TelemetryEvent, int64, error) {
	return nil, 0, nil
}
func (m *mockStore) CountEvents() (int64, error)               { return 0, nil }
func (m *mockStore) CountBySeverity(string) (int64, error)     { return 0, nil }
func (m *mockStore) CountByAction(string) (int64, error)       { return 0, nil }
func (m *mockStore) GetRecentThreats(int) ([]datastore.TelemetryEvent, error) {
	return nil, nil
}
func (m *mockStore) EventTypeCounts() (map[string]int64, error) { return nil, nil }
func (m *mockStore) GetReportData() (*datastore.ReportData, error) {
	return &datastore.ReportData{}, nil
}

func testSettings() *conf.Settings {
	s := &conf.Settings{}
	s.Detection.EntropyThreshold = 75.0
	s.Detection.RenameThreshold = 50
	s.Detection.AutoBlock = true
	s.Detection.Monitoring = true
	return s
}

func rawEvent(entropy float64, renames int) *detection.RawEvent {
	return &detection.RawEvent{
		ProcessName:  "system32.exe",
		FilePath:     `C:\Users\Documents\report.docx`,
		EventType:    detection.EventRename,
		EntropyScore: entropy,
		RenameCount:  renames,
	}
}

func TestIngestClassifiesAndStores(t *testing.T) {
	conf.SetTestSettings(testSettings())
	store := &mockStore{}
	p := NewPipeline(store, nil, nil, nil)

	event, err := p.Ingest(context.Background(), rawEvent(91.0, 72), Options{})
	require.NoError(t, err)

	require.Len(t, store.saved, 1)
	assert.Same(t, event, store.saved[0])
	assert.Equal(t, "threat", event.Severity)
	assert.Equal(t, "blocked", event.ActionTaken)
	assert.NotEmpty(t, event.UUID)
	assert.False(t, event.Timestamp.IsZero())
}

func TestIngestWarningOnSingleIndicator(t *testing.T) {
	conf.SetTestSettings(testSettings())
	store := &mockStore{}
	p := NewPipeline(store, nil, nil, nil)

	event, err := p.Ingest(context.Background(), rawEvent(91.0, 3), Options{})
	require.NoError(t, err)
	assert.Equal(t, "warning", event.Severity)
	assert.Equal(t, "flagged", event.ActionTaken)
}

func TestIngestAutoBlockDisabled(t *testing.T) {
	s := testSettings()
	s.Detection.AutoBlock = false
	conf.SetTestSettings(s)
	p := NewPipeline(&mockStore{}, nil, nil, nil)

	event, err := p.Ingest(context.Background(), rawEvent(91.0, 72), Options{})
	require.NoError(t, err)
	assert.Equal(t, "threat", event.Severity)
	assert.Equal(t, "flagged", event.ActionTaken)
}

func TestIngestMonitoringDisabled(t *testing.T) {
	s := testSettings()
	s.Detection.Monitoring = false
	conf.SetTestSettings(s)
	store := &mockStore{}
	p := NewPipeline(store, nil, nil, nil)

	_, err := p.Ingest(context.Background(), rawEvent(91.0, 72), Options{})
	assert.ErrorIs(t, err, ErrMonitoringDisabled)
	assert.Empty(t, store.saved)
}

func TestIngestBypassesMonitoringGate(t *testing.T) {
	s := testSettings()
	s.Detection.Monitoring = false
	conf.SetTestSettings(s)
	store := &mockStore{}
	p := NewPipeline(store, nil, nil, nil)

	event, err := p.Ingest(context.Background(), rawEvent(40.0, 2), Options{BypassMonitoringGate: true})
	require.NoError(t, err)
	assert.Equal(t, "safe", event.Severity)
	assert.Len(t, store.saved, 1)
}

func TestIngestRejectsInvalidEvent(t *testing.T) {
	conf.SetTestSettings(testSettings())
	store := &mockStore{}
	p := NewPipeline(store, nil, nil, nil)

	raw := rawEvent(50.0, 1)
	raw.ProcessName = ""
	_, err := p.Ingest(context.Background(), raw, Options{})
	assert.Error(t, err)
	assert.Empty(t, store.saved)
}

func TestIngestStoreFailure(t *testing.T) {
	conf.SetTestSettings(testSettings())
	store := &mockStore{saveErr: assert.AnError}
	p := NewPipeline(store, nil, nil, nil)

	_, err := p.Ingest(context.Background(), rawEvent(50.0, 1), Options{})
	assert.Error(t, err)
}

func TestIngestPreservesSuppliedTimestamp(t *testing.T) {
	conf.SetTestSettings(testSettings())
	p := NewPipeline(&mockStore{}, nil, nil, nil)

	raw := rawEvent(50.0, 1)
	raw.Timestamp = time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC)
	event, err := p.Ingest(context.Background(), raw, Options{})
	require.NoError(t, err)
	assert.True(t, raw.Timestamp.Equal(event.Timestamp))
}

func TestIngestBroadcastsStoredEvent(t *testing.T) {
	conf.SetTestSettings(testSettings())
	store := &mockStore{}
	b := events.NewBroadcaster()
	defer b.Shutdown()
	sub := b.Subscribe()

	p := NewPipeline(store, b, nil, nil)
	event, err := p.Ingest(context.Background(), rawEvent(91.0, 72), Options{})
	require.NoError(t, err)

	select {
	case got := <-sub.C:
		assert.Equal(t, event.UUID, got.UUID)
		// The event was already persisted when the subscriber saw it
		require.Len(t, store.saved, 1)
	case <-time.After(time.Second):
		t.Fatal("event not broadcast")
	}
}

func TestIngestNotifiesOnThreat(t *testing.T) {
	s := testSettings()
	s.Detection.WebhookURL = "https://alerts.example.com/hook"
	conf.SetTestSettings(s)

	notifier := notification.NewNotifier(nil)
	httpmock.ActivateNonDefault(notifier.HTTPClient())
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder("POST", "https://alerts.example.com/hook",
		httpmock.NewStringResponder(200, "ok"))

	p := NewPipeline(&mockStore{}, nil, notifier, nil)

	_, err := p.Ingest(context.Background(), rawEvent(91.0, 72), Options{})
	require.NoError(t, err)
	notifier.Wait()
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestIngestNoAlertForSafeEvent(t *testing.T) {
	s := testSettings()
	s.Detection.WebhookURL = "https://alerts.example.com/hook"
	conf.SetTestSettings(s)

	notifier := notification.NewNotifier(nil)
	httpmock.ActivateNonDefault(notifier.HTTPClient())
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder("POST", "https://alerts.example.com/hook",
		httpmock.NewStringResponder(200, "ok"))

	p := NewPipeline(&mockStore{}, nil, notifier, nil)

	_, err := p.Ingest(context.Background(), rawEvent(40.0, 2), Options{})
	require.NoError(t, err)
	notifier.Wait()
	assert.Zero(t, httpmock.GetTotalCallCount())
}
