package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/ws"
)

var baseBackoff = time.Second

type Config struct {
	URLs        []string
	Secret      string
	Events      []string
	MaxAttempts int
	QueueSize   int
	Timeout     time.Duration
}

func DefaultConfig() Config {
	return Config{
		Events:      []string{string(ws.EventIdentityMatched)},
		MaxAttempts: 4,
		QueueSize:   256,
		Timeout:     10 * time.Second,
	}
}

// Dispatcher posts selected events to external HTTP endpoints. Publish never
// blocks; deliveries run on the Run goroutine with exponential backoff.
type Dispatcher struct {
	config Config
	events map[string]bool
	client *http.Client
	queue  chan delivery
	logger *slog.Logger

	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

func NewDispatcher(config Config, logger *slog.Logger) *Dispatcher {
	defaults := DefaultConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if len(config.Events) == 0 {
		config.Events = defaults.Events
	}

	events := make(map[string]bool, len(config.Events))
	for _, e := range config.Events {
		events[e] = true
	}

	return &Dispatcher{
		config: config,
		events: events,
		client: &http.Client{Timeout: config.Timeout},
		queue:  make(chan delivery, config.QueueSize),
		logger: logger.With("component", "webhook"),
	}
}

// Enabled reports whether any target is configured
func (d *Dispatcher) Enabled() bool {
	return len(d.config.URLs) > 0
}

func (d *Dispatcher) Publish(eventType ws.EventType, data interface{}) {
	if !d.Enabled() || !d.events[string(eventType)] {
		return
	}

	event := EventPayload{
		ID:        uuid.New(),
		Type:      string(eventType),
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("failed to marshal webhook event", "event_type", eventType, "error", err)
		return
	}

	select {
	case d.queue <- delivery{id: event.ID, eventType: event.Type, body: body, createdAt: event.Timestamp}:
	default:
		d.dropped.Add(1)
		d.logger.Warn("webhook queue full, event dropped", "event_type", eventType)
	}
}

// Run delivers queued events until ctx is cancelled
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("webhook dispatcher started", "targets", len(d.config.URLs))

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("webhook dispatcher stopped", "pending", len(d.queue))
			return
		case job := <-d.queue:
			for _, url := range d.config.URLs {
				d.deliver(ctx, url, job)
			}
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, url string, job delivery) {
	var lastErr error

	for attempt := 0; attempt < d.config.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(baseBackoff << (attempt - 1)):
			}
		}

		if lastErr = d.send(ctx, url, job); lastErr == nil {
			d.delivered.Add(1)
			return
		}

		d.logger.Info("webhook delivery failed, retrying",
			"delivery_id", job.id,
			"url", url,
			"attempt", attempt+1,
			"error", lastErr,
		)
	}

	d.failed.Add(1)
	d.logger.Warn("webhook delivery abandoned",
		"delivery_id", job.id,
		"url", url,
		"event_type", job.eventType,
		"error", lastErr,
	)
}

func (d *Dispatcher) send(ctx context.Context, url string, job delivery) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(job.body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	ts := time.Now().Unix()

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, job.eventType)
	req.Header.Set(HeaderDelivery, job.id.String())
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	if d.config.Secret != "" {
		req.Header.Set(HeaderSignature, Sign(d.config.Secret, ts, job.body))
	}
	req.Header.Set("User-Agent", "Facewatch-Webhook/1.0")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return nil
}

type Stats struct {
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
	Pending   int   `json:"pending"`
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
		Pending:   len(d.queue),
	}
}
