// Package notification delivers threat alerts to an external webhook. A
// webhook URL with an http or https scheme receives a JSON payload; any
// other scheme is treated as a shoutrrr service URL (discord://, slack://,
// telegram://, and so on). Delivery is best effort and never blocks or
// fails the ingestion path.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	gocache "github.com/patrickmn/go-cache"

	"github.com/sentinelfs/ransomwatch/internal/errors"
	"github.com/sentinelfs/ransomwatch/internal/logging"
	"github.com/sentinelfs/ransomwatch/internal/observability"
)

const (
	// deliveryTimeout bounds a single webhook HTTP request.
	deliveryTimeout = 10 * time.Second

	// dedupWindow suppresses repeat alerts for the same process and file
	// within this interval.
	dedupWindow = 30 * time.Second
)

// Intent is the alert payload delivered for a blocked or flagged threat.
type Intent struct {
	ProcessName  string    `json:"process_name"`
	FilePath     string    `json:"file_path"`
	EntropyScore float64   `json:"entropy_score"`
	RenameCount  int       `json:"rename_count"`
	Severity     string    `json:"severity"`
	ActionTaken  string    `json:"action_taken"`
	Timestamp    time.Time `json:"timestamp"`
}

// Notifier sends threat alerts to a configured webhook URL.
type Notifier struct {
	client  *http.Client
	dedup   *gocache.Cache
	metrics *observability.Metrics
	logger  *slog.Logger

	mu      sync.Mutex
	senders map[string]*router.ServiceRouter

	wg sync.WaitGroup
}

func NewNotifier(metrics *observability.Metrics) *Notifier {
	return &Notifier{
		client:  &http.Client{Timeout: deliveryTimeout},
		dedup:   gocache.New(dedupWindow, 2*dedupWindow),
		metrics: metrics,
		logger:  logging.ForService("notification"),
		senders: make(map[string]*router.ServiceRouter),
	}
}

// NotifyAsync dispatches the alert in the background. Errors are logged and
// counted, never returned to the caller.
func (n *Notifier) NotifyAsync(webhookURL string, intent *Intent) {
	if webhookURL == "" {
		return
	}

	dedupKey := intent.ProcessName + "|" + intent.FilePath + "|" + intent.Severity
	if _, found := n.dedup.Get(dedupKey); found {
		n.logger.Debug("suppressing duplicate alert", "process_name", intent.ProcessName, "file_path", intent.FilePath)
		return
	}
	n.dedup.Set(dedupKey, struct{}{}, gocache.DefaultExpiration)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()

		if err := n.deliver(ctx, webhookURL, intent); err != nil {
			if n.metrics != nil {
				n.metrics.WebhookDeliveriesTotal.WithLabelValues("error").Inc()
			}
			n.logger.Error("alert delivery failed",
				"process_name", intent.ProcessName,
				"severity", intent.Severity,
				"error", err)
			return
		}
		if n.metrics != nil {
			n.metrics.WebhookDeliveriesTotal.WithLabelValues("success").Inc()
		}
		n.logger.Info("alert delivered",
			"process_name", intent.ProcessName,
			"severity", intent.Severity,
			"action_taken", intent.ActionTaken)
	}()
}

// Notify delivers the alert synchronously. Exposed for tests and for callers
// that need the delivery result.
func (n *Notifier) Notify(ctx context.Context, webhookURL string, intent *Intent) error {
	return n.deliver(ctx, webhookURL, intent)
}

// Wait blocks until all in-flight deliveries finish.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// HTTPClient exposes the delivery client so tests can install a mock
// transport.
func (n *Notifier) HTTPClient() *http.Client {
	return n.client
}

func (n *Notifier) deliver(ctx context.Context, webhookURL string, intent *Intent) error {
	if strings.HasPrefix(webhookURL, "http://") || strings.HasPrefix(webhookURL, "https://") {
		return n.deliverHTTP(ctx, webhookURL, intent)
	}
	return n.deliverShoutrrr(webhookURL, intent)
}

func (n *Notifier) deliverHTTP(ctx context.Context, url string, intent *Intent) error {
	payload, err := json.Marshal(intent)
	if err != nil {
		return errors.New(err).
			Component("notification").
			Category(errors.CategoryNotification).
			Build()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return errors.New(err).
			Component("notification").
			Category(errors.CategoryNotification).
			Build()
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return errors.New(err).
			Component("notification").
			Category(errors.CategoryNetwork).
			Build()
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Newf("webhook returned status %d", resp.StatusCode).
			Component("notification").
			Category(errors.CategoryNotification).
			Context("status_code", resp.StatusCode).
			Build()
	}
	return nil
}

func (n *Notifier) deliverShoutrrr(serviceURL string, intent *Intent) error {
	sender, err := n.senderFor(serviceURL)
	if err != nil {
		return err
	}

	body := fmt.Sprintf("%s on %s (entropy %.1f, renames %d): %s, %s",
		intent.ProcessName, intent.FilePath,
		intent.EntropyScore, intent.RenameCount,
		intent.Severity, intent.ActionTaken)
	params := stypes.Params{}
	params.SetTitle("Ransomware threat detected")

	for _, sendErr := range sender.Send(body, &params) {
		if sendErr != nil {
			return errors.New(sendErr).
				Component("notification").
				Category(errors.CategoryNotification).
				Build()
		}
	}
	return nil
}

// senderFor caches one service router per URL so repeated alerts do not
// re-parse the service configuration.
func (n *Notifier) senderFor(serviceURL string) (*router.ServiceRouter, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if sender, ok := n.senders[serviceURL]; ok {
		return sender, nil
	}
	sender, err := shoutrrr.CreateSender(serviceURL)
	if err != nil {
		return nil, errors.New(err).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	sender.Timeout = deliveryTimeout
	sender.SetLogger(log.New(io.Discard, "", 0))
	n.senders[serviceURL] = sender
	return sender, nil
}
