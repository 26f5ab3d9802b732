package provider

import (
	"context"
	"time"

	"github.com/msadik/chatrelay/internal/models"
)

// Status is the provider's connection readiness. It is passed around as an
// explicit value rather than read from ambient state so that "not ready"
// behavior stays testable.
type Status string

const (
	StatusReady        Status = "ready"
	StatusConnecting   Status = "connecting"
	StatusDisconnected Status = "disconnected"
)

type OutboundMessage struct {
	Target   string `json:"target"`
	Body     string `json:"body"`
	MediaURL string `json:"media_url,omitempty"`
}

type SendReceipt struct {
	MessageID  string    `json:"message_id"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// Provider is the messaging channel used for outbound sends. Inbound
// activity surfaces on Events and is forwarded to the webhook dispatcher.
type Provider interface {
	Send(ctx context.Context, msg OutboundMessage) (*SendReceipt, error)
	Status() Status
	Events() <-chan models.Event
}
