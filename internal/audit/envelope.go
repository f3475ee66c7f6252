package audit

import (
	"encoding/json"
	"time"
)

const envelopeVersion = 1

// Event types published to the audit topic.
const (
	EventOrderTransitioned = "order.transitioned"
	EventOrderSynced       = "order.hrsync"
)

// ActorRef identifies who caused the event.
type ActorRef struct {
	UserID string `json:"userId"`
	Role   string `json:"role,omitempty"`
}

// Envelope is the stable message body on the audit topic.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	EventType  string          `json:"eventType"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
