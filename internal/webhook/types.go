package webhook

import (
	"time"

	"github.com/google/uuid"
)

const (
	HeaderSignature = "X-Facewatch-Signature"
	HeaderTimestamp = "X-Facewatch-Timestamp"
	HeaderEvent     = "X-Facewatch-Event"
	HeaderDelivery  = "X-Facewatch-Delivery"
)

// EventPayload is the JSON body posted to every target
type EventPayload struct {
	ID        uuid.UUID   `json:"id"`
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

type delivery struct {
	id        uuid.UUID
	eventType string
	body      []byte
	createdAt time.Time
}
