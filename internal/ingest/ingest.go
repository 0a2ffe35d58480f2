// Package ingest runs the telemetry pipeline: validate the raw event,
// classify it against the current thresholds, persist it, fan it out to
// live subscribers, and raise an alert when a threat was detected.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelfs/ransomwatch/internal/conf"
	"github.com/sentinelfs/ransomwatch/internal/datastore"
	"github.com/sentinelfs/ransomwatch/internal/detection"
	"github.com/sentinelfs/ransomwatch/internal/errors"
	"github.com/sentinelfs/ransomwatch/internal/events"
	"github.com/sentinelfs/ransomwatch/internal/logging"
	"github.com/sentinelfs/ransomwatch/internal/notification"
	"github.com/sentinelfs/ransomwatch/internal/observability"
)

// ErrMonitoringDisabled reports that an event was accepted but not
// processed because monitoring is switched off. It is not a failure.
var ErrMonitoringDisabled = errors.NewStd("monitoring is disabled")

// Options adjust pipeline behavior for a single event.
type Options struct {
	// BypassMonitoringGate processes the event even while monitoring is
	// disabled. Used by the demo traffic generator.
	BypassMonitoringGate bool
}

// Pipeline coordinates a single event's path from raw telemetry to stored,
// broadcast, and alerted record.
type Pipeline struct {
	store       datastore.Interface
	broadcaster *events.Broadcaster
	notifier    *notification.Notifier
	metrics     *observability.Metrics
	logger      *slog.Logger
}

func NewPipeline(store datastore.Interface, broadcaster *events.Broadcaster, notifier *notification.Notifier, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		store:       store,
		broadcaster: broadcaster,
		notifier:    notifier,
		metrics:     metrics,
		logger:      logging.ForService("ingest"),
	}
}

// Ingest classifies and stores one raw event. The returned record has been
// persisted before any live subscriber or webhook sees it. When monitoring
// is disabled and the gate is not bypassed, Ingest returns
// ErrMonitoringDisabled and the event leaves no trace.
func (p *Pipeline) Ingest(ctx context.Context, raw *detection.RawEvent, opts Options) (*datastore.TelemetryEvent, error) {
	start := time.Now()

	if err := detection.ValidateRaw(raw); err != nil {
		p.countRejected("validation")
		return nil, err
	}

	settings, err := conf.Current()
	if err != nil {
		return nil, err
	}

	if !settings.Detection.Monitoring && !opts.BypassMonitoringGate {
		p.countRejected("monitoring_disabled")
		return nil, ErrMonitoringDisabled
	}

	th := detection.Thresholds{
		Entropy:   settings.Detection.EntropyThreshold,
		Rename:    settings.Detection.RenameThreshold,
		AutoBlock: settings.Detection.AutoBlock,
	}
	severity, action := detection.Classify(raw.EntropyScore, raw.RenameCount, th)

	ts := raw.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	event := &datastore.TelemetryEvent{
		UUID:         uuid.NewString(),
		Timestamp:    ts,
		ProcessName:  raw.ProcessName,
		FilePath:     raw.FilePath,
		EventType:    raw.EventType,
		EntropyScore: raw.EntropyScore,
		RenameCount:  raw.RenameCount,
		Severity:     string(severity),
		ActionTaken:  string(action),
	}

	if err := p.store.Save(event); err != nil {
		p.countRejected("storage")
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		// The event is stored; report the cancellation but skip fan-out.
		return event, err
	}

	if p.broadcaster != nil {
		p.broadcaster.Publish(event)
	}

	if severity == detection.SeverityThreat && p.notifier != nil {
		p.notifier.NotifyAsync(settings.Detection.WebhookURL, &notification.Intent{
			ProcessName:  event.ProcessName,
			FilePath:     event.FilePath,
			EntropyScore: event.EntropyScore,
			RenameCount:  event.RenameCount,
			Severity:     event.Severity,
			ActionTaken:  event.ActionTaken,
			Timestamp:    event.Timestamp,
		})
	}

	p.recordMetrics(severity, action, time.Since(start))
	p.logger.Info("event classified",
		"id", event.UUID,
		"process_name", event.ProcessName,
		"event_type", event.EventType,
		"severity", event.Severity,
		"action_taken", event.ActionTaken)

	return event, nil
}

func (p *Pipeline) countRejected(reason string) {
	if p.metrics != nil {
		p.metrics.EventsRejectedTotal.WithLabelValues(reason).Inc()
	}
}

func (p *Pipeline) recordMetrics(severity detection.Severity, action detection.Action, elapsed time.Duration) {
	if p.metrics == nil {
		return
	}
	p.metrics.EventsIngestedTotal.WithLabelValues(string(severity), string(action)).Inc()
	p.metrics.ClassificationTime.Observe(elapsed.Seconds())
	if action == detection.ActionBlocked {
		p.metrics.ThreatsBlockedTotal.Inc()
	}
}
