package storage

import (
	"context"
	"sync"

	"github.com/msadik/chatrelay/internal/models"
)

// MemoryStorage keeps all records in process memory. It backs the degraded
// "continue without database" mode and is also handy in tests.
type MemoryStorage struct {
	mu         sync.RWMutex
	deliveries map[string]models.DeliveryRecord
	jobs       map[string]models.SendJob
}

func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		deliveries: make(map[string]models.DeliveryRecord),
		jobs:       make(map[string]models.SendJob),
	}
}

func (s *MemoryStorage) Migrate(ctx context.Context) error { return nil }
func (s *MemoryStorage) Close() error                      { return nil }

// --- Delivery records ---

func (s *MemoryStorage) CreateDeliveryRecord(ctx context.Context, rec *models.DeliveryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveries[rec.ID] = *rec
	return nil
}

func (s *MemoryStorage) UpdateDeliveryRecord(ctx context.Context, rec *models.DeliveryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveries[rec.ID] = *rec
	return nil
}

func (s *MemoryStorage) GetDeliveryRecord(ctx context.Context, id string) (*models.DeliveryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.deliveries[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// --- Send jobs ---

func (s *MemoryStorage) CreateJob(ctx context.Context, job *models.SendJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

func (s *MemoryStorage) UpdateJob(ctx context.Context, job *models.SendJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

func (s *MemoryStorage) GetJob(ctx context.Context, id string) (*models.SendJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	return &job, nil
}

func (s *MemoryStorage) DeleteJob(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

func (s *MemoryStorage) ListUnfinishedJobs(ctx context.Context) ([]models.SendJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var jobs []models.SendJob
	for _, job := range s.jobs {
		if !job.Status.Terminal() {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

// --- Stats ---

func (s *MemoryStorage) GetStats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{}
	for _, rec := range s.deliveries {
		stats.TotalDeliveries++
		switch rec.Status {
		case models.DeliveryDelivered:
			stats.DeliveredCount++
		case models.DeliveryFailed:
			stats.FailedDeliveries++
		default:
			stats.PendingDeliveries++
		}
	}
	for _, job := range s.jobs {
		stats.TotalJobs++
		switch job.Status {
		case models.JobCompleted:
			stats.CompletedJobs++
		case models.JobFailed:
			stats.FailedJobs++
		default:
			stats.QueuedJobs++
		}
	}
	if stats.TotalDeliveries > 0 {
		stats.DeliveryRate = float64(stats.DeliveredCount) / float64(stats.TotalDeliveries) * 100
	}
	return stats, nil
}
