package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/msadik/chatrelay/internal/backoff"
	"github.com/msadik/chatrelay/internal/metrics"
	"github.com/msadik/chatrelay/internal/models"
)

// envelope is the wire format posted to the callback endpoint.
type envelope struct {
	EventKind string          `json:"event_kind"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// Dispatcher forwards domain events to the configured callback URL with
// retries. Each record's attempts run strictly in order: the next retry is
// scheduled only after the previous outcome has been recorded.
type Dispatcher struct {
	url    string
	sender *Sender
	ledger *Ledger
	policy backoff.Policy
	sched  Scheduler
	log    zerolog.Logger

	stopOnce sync.Once
	stop     chan struct{}
}

func NewDispatcher(url string, sender *Sender, ledger *Ledger, policy backoff.Policy, sched Scheduler, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		url:    url,
		sender: sender,
		ledger: ledger,
		policy: policy,
		sched:  sched,
		log:    log,
		stop:   make(chan struct{}),
	}
}

// Dispatch records the event and starts delivery without blocking the
// caller. It returns the new record's ID, or "" when no callback URL is
// configured (notifications disabled, documented no-op).
func (d *Dispatcher) Dispatch(ctx context.Context, kind string, payload json.RawMessage) string {
	if d.url == "" {
		return ""
	}

	now := time.Now().UTC()
	rec := &models.DeliveryRecord{
		ID:        models.NewID("dlv"),
		EventKind: kind,
		Payload:   append(json.RawMessage(nil), payload...),
		TargetURL: d.url,
		Status:    models.DeliveryPending,
		CreatedAt: now,
	}

	body, err := json.Marshal(envelope{EventKind: kind, Payload: rec.Payload, Timestamp: now})
	if err != nil {
		d.log.Error().Err(err).Str("kind", kind).Msg("failed to encode event payload")
		return ""
	}

	d.ledger.Create(ctx, rec)
	d.sched.Schedule(0, func() { d.attempt(rec, body) })

	return rec.ID
}

// Stop prevents any further attempts. Timers already armed will fire and
// observe the stop; in-flight state is not required to survive a restart.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stop) })
}

func (d *Dispatcher) stopped() bool {
	select {
	case <-d.stop:
		return true
	default:
		return false
	}
}

func (d *Dispatcher) attempt(rec *models.DeliveryRecord, body []byte) {
	if d.stopped() {
		return
	}

	ctx := context.Background()
	result := d.sender.Post(ctx, rec.TargetURL, rec.ID, body)

	now := time.Now().UTC()
	rec.AttemptCount++
	rec.LastAttemptAt = &now
	if result.StatusCode != 0 {
		status := result.StatusCode
		rec.LastHTTPStatus = &status
	}

	if result.OK() {
		rec.Status = models.DeliveryDelivered
		rec.LastError = ""
		rec.CompletedAt = &now
		d.ledger.Update(ctx, rec)
		metrics.WebhookAttempts.WithLabelValues("delivered").Inc()
		metrics.DeliveriesTerminal.WithLabelValues(string(rec.Status)).Inc()
		d.log.Info().
			Str("record_id", rec.ID).
			Str("kind", rec.EventKind).
			Int("status_code", result.StatusCode).
			Int64("latency_ms", result.LatencyMs).
			Msg("webhook delivered")
		return
	}

	if result.Error != "" {
		rec.LastError = result.Error
	} else {
		rec.LastError = fmt.Sprintf("unexpected status %d", result.StatusCode)
	}

	if d.policy.Exhausted(rec.AttemptCount) {
		rec.Status = models.DeliveryFailed
		rec.CompletedAt = &now
		d.ledger.Update(ctx, rec)
		metrics.WebhookAttempts.WithLabelValues("failed").Inc()
		metrics.DeliveriesTerminal.WithLabelValues(string(rec.Status)).Inc()
		d.log.Warn().
			Str("record_id", rec.ID).
			Str("kind", rec.EventKind).
			Int("attempts", rec.AttemptCount).
			Str("error", rec.LastError).
			Msg("webhook permanently failed")
		return
	}

	rec.Status = models.DeliveryRetrying
	d.ledger.Update(ctx, rec)
	metrics.WebhookAttempts.WithLabelValues("retry").Inc()

	delay := d.policy.Delay(rec.AttemptCount)
	d.log.Info().
		Str("record_id", rec.ID).
		Int("attempt", rec.AttemptCount).
		Dur("next_retry_in", delay).
		Str("error", rec.LastError).
		Msg("webhook scheduled for retry")

	d.sched.Schedule(delay, func() { d.attempt(rec, body) })
}
