package storage

import (
	"context"

	"github.com/msadik/chatrelay/internal/models"
)

// Storage is the durable record store behind the delivery ledger and the
// job queue. Implementations return (nil, nil) for records that don't exist.
type Storage interface {
	// Delivery records
	CreateDeliveryRecord(ctx context.Context, rec *models.DeliveryRecord) error
	UpdateDeliveryRecord(ctx context.Context, rec *models.DeliveryRecord) error
	GetDeliveryRecord(ctx context.Context, id string) (*models.DeliveryRecord, error)

	// Send jobs
	CreateJob(ctx context.Context, job *models.SendJob) error
	UpdateJob(ctx context.Context, job *models.SendJob) error
	GetJob(ctx context.Context, id string) (*models.SendJob, error)
	DeleteJob(ctx context.Context, id string) error
	ListUnfinishedJobs(ctx context.Context) ([]models.SendJob, error)

	// Stats
	GetStats(ctx context.Context) (*Stats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

type Stats struct {
	TotalDeliveries   int64   `json:"total_deliveries"`
	DeliveredCount    int64   `json:"delivered_count"`
	FailedDeliveries  int64   `json:"failed_deliveries"`
	PendingDeliveries int64   `json:"pending_deliveries"`
	DeliveryRate      float64 `json:"delivery_rate"`
	TotalJobs         int64   `json:"total_jobs"`
	CompletedJobs     int64   `json:"completed_jobs"`
	FailedJobs        int64   `json:"failed_jobs"`
	QueuedJobs        int64   `json:"queued_jobs"`
}
