package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/ws"
)

type recordingLogger struct {
	events []Event
}

func (l *recordingLogger) Log(_ context.Context, event Event) error {
	l.events = append(l.events, event)
	return nil
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()

	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestSlogLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	auditLogger := NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := auditLogger.Log(context.Background(), Event{
		EventType: string(ws.EventIdentityRegistered),
		Label:     "alice",
		Data:      json.RawMessage(`{"photos_used":3}`),
	})
	require.NoError(t, err)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, "audit_event", entry["msg"])
	assert.Equal(t, "audit", entry["component"])
	assert.Equal(t, "identity.registered", entry["event_type"])
	assert.Equal(t, "alice", entry["label"])
	assert.Contains(t, entry["event_data"], "photos_used")

	_, err = uuid.Parse(entry["event_id"].(string))
	assert.NoError(t, err, "missing ID must be generated")
}

func TestSlogLogger_Log_UsesProvidedIDAndTimestamp(t *testing.T) {
	var buf bytes.Buffer
	auditLogger := NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	expectedID := uuid.New()
	err := auditLogger.Log(context.Background(), Event{
		ID:        expectedID,
		Timestamp: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		EventType: string(ws.EventIdentityDeleted),
	})
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, expectedID.String())
	assert.Contains(t, output, "2024-01-15T10:30:00Z")
}

func TestNoOpLogger_Log(t *testing.T) {
	logger := &NoOpLogger{}

	assert.NoError(t, logger.Log(context.Background(), Event{EventType: "x"}))
}

func TestLoggerInterface_Compliance(t *testing.T) {
	var _ Logger = (*SlogLogger)(nil)
	var _ Logger = (*NoOpLogger)(nil)
	var _ ws.Publisher = (*Recorder)(nil)
}

func TestRecorder_Publish(t *testing.T) {
	tests := []struct {
		name      string
		eventType ws.EventType
		data      interface{}
		wantLabel string
		wantScore *float64
	}{
		{
			name:      "match wraps result",
			eventType: ws.EventIdentityMatched,
			data: struct {
				Result domain.MatchResult `json:"result"`
			}{Result: domain.MatchResult{Status: domain.MatchStatusMatched, Label: "alice", Score: 0.82}},
			wantLabel: "alice",
			wantScore: ptr(0.82),
		},
		{
			name:      "flat label payload",
			eventType: ws.EventIdentityDeleted,
			data:      map[string]string{"label": "bob"},
			wantLabel: "bob",
		},
		{
			name:      "registration with identity",
			eventType: ws.EventIdentityRegistered,
			data:      map[string]interface{}{"identity": map[string]string{"label": "carol"}},
			wantLabel: "carol",
		},
		{
			name:      "sync report has no subject",
			eventType: ws.EventGallerySynced,
			data:      map[string]int{"loaded": 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &recordingLogger{}
			NewRecorder(logger).Publish(tt.eventType, tt.data)

			require.Len(t, logger.events, 1)
			event := logger.events[0]
			assert.Equal(t, string(tt.eventType), event.EventType)
			assert.Equal(t, tt.wantLabel, event.Label)
			assert.Equal(t, tt.wantScore, event.Score)
			assert.NotEmpty(t, event.Data)
		})
	}
}

func TestRecorder_IgnoresUnselectedEvents(t *testing.T) {
	logger := &recordingLogger{}
	recorder := NewRecorder(logger)

	recorder.Publish(ws.EventFrameSkipped, map[string]string{"reason": "busy"})
	recorder.Publish(ws.EventMatchResult, nil)

	assert.Empty(t, logger.events)
}

func TestRecorder_CustomEvents(t *testing.T) {
	logger := &recordingLogger{}
	recorder := NewRecorder(logger, ws.EventMatchResult)

	recorder.Publish(ws.EventMatchResult, nil)
	recorder.Publish(ws.EventIdentityMatched, nil)

	require.Len(t, logger.events, 1)
	assert.Equal(t, "match.result", logger.events[0].EventType)
	assert.Nil(t, logger.events[0].Data)
}

func ptr(v float64) *float64 {
	return &v
}
