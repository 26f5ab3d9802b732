package models

import (
	"encoding/json"
	"time"
)

// Well-known event kinds forwarded to the callback endpoint.
const (
	EventInboundMessage = "inbound-message"
	EventReaction       = "reaction"
	EventGroupChange    = "group-change"
	EventMessageSent    = "message-sent"
	EventTest           = "test"
)

// Event is a domain occurrence eligible for external notification.
type Event struct {
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}
