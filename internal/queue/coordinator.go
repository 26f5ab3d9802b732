package queue

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/msadik/chatrelay/internal/models"
)

type BatchItem struct {
	Target   string `json:"target" validate:"required"`
	Body     string `json:"body" validate:"required"`
	MediaURL string `json:"media_url,omitempty" validate:"omitempty,url"`
	DelayMS  int64  `json:"delay_ms,omitempty" validate:"min=0"`
	Priority int    `json:"priority,omitempty"`
}

type Receipt struct {
	Target string `json:"target"`
	JobID  string `json:"job_id"`
}

// Coordinator fans a batch submission out into individual queue jobs. It
// returns as soon as everything is enqueued; the receipts are handles for
// status polling, not delivery guarantees.
type Coordinator struct {
	queue        *Queue
	validate     *validator.Validate
	maxBatch     int
	delayCeiling time.Duration
	log          zerolog.Logger
}

func NewCoordinator(queue *Queue, maxBatch int, delayCeiling time.Duration, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		queue:        queue,
		validate:     validator.New(),
		maxBatch:     maxBatch,
		delayCeiling: delayCeiling,
		log:          log,
	}
}

// SubmitBatch validates the whole batch up front; a single bad item rejects
// the call and nothing is enqueued.
func (c *Coordinator) SubmitBatch(ctx context.Context, items []BatchItem) ([]Receipt, error) {
	if len(items) == 0 {
		return nil, models.Validationf("batch must contain at least 1 item")
	}
	if len(items) > c.maxBatch {
		return nil, models.Validationf("batch size %d exceeds limit of %d", len(items), c.maxBatch)
	}

	for i, item := range items {
		if err := c.validate.Struct(item); err != nil {
			return nil, models.Validationf("item %d: %v", i, err)
		}
		if delay := time.Duration(item.DelayMS) * time.Millisecond; delay > c.delayCeiling {
			return nil, models.Validationf("item %d: delay %s exceeds ceiling of %s", i, delay, c.delayCeiling)
		}
	}

	now := time.Now().UTC()
	receipts := make([]Receipt, 0, len(items))
	for _, item := range items {
		job := &models.SendJob{
			Target:    item.Target,
			Body:      item.Body,
			Options:   models.SendOptions{MediaURL: item.MediaURL},
			Priority:  item.Priority,
			NotBefore: now.Add(time.Duration(item.DelayMS) * time.Millisecond),
		}
		id := c.queue.Submit(ctx, job)
		receipts = append(receipts, Receipt{Target: item.Target, JobID: id})
	}

	c.log.Info().Int("items", len(receipts)).Msg("batch enqueued")
	return receipts, nil
}
