package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/ws"
)

// Event is one entry of the gallery audit trail
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	EventType string          `json:"event_type"`
	Label     string          `json:"label,omitempty"`
	Score     *float64        `json:"score,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Logger defines the interface for audit logging
type Logger interface {
	Log(ctx context.Context, event Event) error
}

// SlogLogger implements Logger using slog
type SlogLogger struct {
	logger *slog.Logger
}

func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	return &SlogLogger{
		logger: logger.With("component", "audit"),
	}
}

// Log records an audit event
func (l *SlogLogger) Log(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		l.logger.ErrorContext(ctx, "failed to marshal audit event",
			slog.String("error", err.Error()),
			slog.String("event_type", event.EventType),
		)
		return err
	}

	l.logger.InfoContext(ctx, "audit_event",
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", event.EventType),
		slog.String("label", event.Label),
		slog.String("event_data", string(eventJSON)),
	)

	return nil
}

// NoOpLogger is a logger that does nothing (for testing or when audit is disabled)
type NoOpLogger struct{}

func (l *NoOpLogger) Log(_ context.Context, _ Event) error {
	return nil
}

// DefaultEvents are the gallery changes and positive matches worth keeping.
// Per-frame results and skips are left out.
var DefaultEvents = []ws.EventType{
	ws.EventIdentityMatched,
	ws.EventIdentityRegistered,
	ws.EventIdentityDeleted,
	ws.EventGallerySynced,
}

// Recorder turns published events into audit entries
type Recorder struct {
	logger Logger
	events map[ws.EventType]bool
}

func NewRecorder(logger Logger, events ...ws.EventType) *Recorder {
	if len(events) == 0 {
		events = DefaultEvents
	}
	set := make(map[ws.EventType]bool, len(events))
	for _, e := range events {
		set[e] = true
	}
	return &Recorder{logger: logger, events: set}
}

func (r *Recorder) Publish(eventType ws.EventType, data interface{}) {
	if !r.events[eventType] {
		return
	}

	event := Event{EventType: string(eventType)}

	if data != nil {
		raw, err := json.Marshal(data)
		if err == nil {
			event.Data = raw
			event.Label, event.Score = subject(raw)
		}
	}

	_ = r.logger.Log(context.Background(), event)
}

// subject pulls the identity label and score out of either a flat payload
// or one wrapping a match result.
func subject(raw json.RawMessage) (string, *float64) {
	var payload struct {
		Label  string   `json:"label"`
		Score  *float64 `json:"score"`
		Result *struct {
			Label string   `json:"label"`
			Score *float64 `json:"score"`
		} `json:"result"`
		Identity *struct {
			Label string `json:"label"`
		} `json:"identity"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", nil
	}

	switch {
	case payload.Result != nil:
		return payload.Result.Label, payload.Result.Score
	case payload.Identity != nil:
		return payload.Identity.Label, nil
	default:
		return payload.Label, payload.Score
	}
}
