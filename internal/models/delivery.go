package models

import (
	"encoding/json"
	"time"
)

type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryRetrying  DeliveryStatus = "retrying"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

func (s DeliveryStatus) Terminal() bool {
	return s == DeliveryDelivered || s == DeliveryFailed
}

// DeliveryRecord tracks one event's webhook notification attempts. Payload is
// a snapshot taken at creation time and is never mutated afterwards.
type DeliveryRecord struct {
	ID             string          `json:"id"`
	EventKind      string          `json:"event_kind"`
	Payload        json.RawMessage `json:"payload"`
	TargetURL      string          `json:"target_url"`
	Status         DeliveryStatus  `json:"status"`
	AttemptCount   int             `json:"attempt_count"`
	LastHTTPStatus *int            `json:"last_http_status,omitempty"`
	LastError      string          `json:"last_error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	LastAttemptAt  *time.Time      `json:"last_attempt_at,omitempty"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}
