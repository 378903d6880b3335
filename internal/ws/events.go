package ws

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventMatchResult        EventType = "match.result"
	EventIdentityMatched    EventType = "identity.matched"
	EventFrameSkipped       EventType = "frame.skipped"
	EventIdentityRegistered EventType = "identity.registered"
	EventIdentityDeleted    EventType = "identity.deleted"
	EventGallerySynced      EventType = "gallery.synced"
)

type Event struct {
	ID        uuid.UUID   `json:"id"`
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Publisher accepts events for delivery; implementations must not block
type Publisher interface {
	Publish(eventType EventType, data interface{})
}

type fanout []Publisher

func (f fanout) Publish(eventType EventType, data interface{}) {
	for _, p := range f {
		p.Publish(eventType, data)
	}
}

// Fanout delivers every event to each non-nil publisher in order
func Fanout(publishers ...Publisher) Publisher {
	out := make(fanout, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}
