package provider

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/msadik/chatrelay/internal/models"
)

// Mock simulates a messaging channel with configurable latency and failure
// rate. Every successful send emits a "message-sent" event.
type Mock struct {
	log      zerolog.Logger
	failRate float64
	latency  time.Duration

	mu     sync.RWMutex
	status Status

	events chan models.Event
}

func NewMock(failRate float64, latency time.Duration, log zerolog.Logger) *Mock {
	return &Mock{
		log:      log,
		failRate: failRate,
		latency:  latency,
		status:   StatusReady,
		events:   make(chan models.Event, 64),
	}
}

func (m *Mock) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Mock) SetStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

func (m *Mock) Events() <-chan models.Event {
	return m.events
}

func (m *Mock) Send(ctx context.Context, msg OutboundMessage) (*SendReceipt, error) {
	if m.Status() != StatusReady {
		return nil, models.ErrProviderNotReady
	}

	if m.latency > 0 {
		select {
		case <-time.After(m.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.failRate > 0 && rand.Float64() < m.failRate {
		return nil, &models.ProviderError{Code: 503, Msg: "simulated send failure"}
	}

	receipt := &SendReceipt{
		MessageID:  models.NewID("msg"),
		AcceptedAt: time.Now().UTC(),
	}

	m.emit(receipt, msg)

	m.log.Debug().Str("message_id", receipt.MessageID).Str("target", msg.Target).Msg("mock send accepted")
	return receipt, nil
}

func (m *Mock) emit(receipt *SendReceipt, msg OutboundMessage) {
	payload, _ := json.Marshal(map[string]string{
		"message_id": receipt.MessageID,
		"target":     msg.Target,
	})
	ev := models.Event{
		Kind:       models.EventMessageSent,
		Payload:    payload,
		OccurredAt: receipt.AcceptedAt,
	}
	select {
	case m.events <- ev:
	default:
		m.log.Warn().Str("kind", ev.Kind).Msg("event channel full, dropping event")
	}
}

func (m *Mock) Close() {
	close(m.events)
}
