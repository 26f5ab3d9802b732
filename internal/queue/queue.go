package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/msadik/chatrelay/internal/backoff"
	"github.com/msadik/chatrelay/internal/models"
	"github.com/msadik/chatrelay/internal/storage"
)

// Queue is the durable send-job queue. The in-memory table is authoritative
// and guarded by a single mutex, which makes Claim atomic with respect to
// concurrent workers; every transition is written through to the store on a
// best-effort basis.
type Queue struct {
	mu   sync.Mutex
	jobs map[string]*models.SendJob
	seq  int64

	policy backoff.Policy
	store  storage.Storage
	log    zerolog.Logger

	completed     []string
	failed        []string
	keepCompleted int
	keepFailed    int
}

func New(policy backoff.Policy, store storage.Storage, keepCompleted, keepFailed int, log zerolog.Logger) *Queue {
	return &Queue{
		jobs:          make(map[string]*models.SendJob),
		policy:        policy,
		store:         store,
		log:           log,
		keepCompleted: keepCompleted,
		keepFailed:    keepFailed,
	}
}

// Load restores non-terminal jobs from the store after a restart. Jobs left
// active by a crash go back to waiting so a worker can claim them again.
func (q *Queue) Load(ctx context.Context) error {
	jobs, err := q.store.ListUnfinishedJobs(ctx)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range jobs {
		job := jobs[i]
		if job.Status == models.JobActive {
			job.Status = models.JobWaiting
		}
		q.jobs[job.ID] = &job
		if job.Seq > q.seq {
			q.seq = job.Seq
		}
	}
	q.log.Info().Int("jobs", len(jobs)).Msg("restored unfinished jobs from store")
	return nil
}

// Submit inserts a new waiting job and returns its ID.
func (q *Queue) Submit(ctx context.Context, job *models.SendJob) string {
	now := time.Now().UTC()
	if job.ID == "" {
		job.ID = models.NewID("job")
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = q.policy.MaxAttempts
	}
	if job.NotBefore.IsZero() {
		job.NotBefore = now
	}
	job.Status = models.JobWaiting
	job.AttemptCount = 0
	job.CreatedAt = now
	job.UpdatedAt = now

	q.mu.Lock()
	q.seq++
	job.Seq = q.seq
	q.jobs[job.ID] = job
	q.mu.Unlock()

	q.persist(ctx, job, true)
	return job.ID
}

// Claim atomically hands the single best eligible job to the caller: lowest
// priority value first, ties broken by submission order. Returns nil when
// nothing is ready. The returned copy is the worker's to process; no other
// Claim can return the same job until it is failed back to waiting.
func (q *Queue) Claim(ctx context.Context) *models.SendJob {
	now := time.Now().UTC()

	q.mu.Lock()
	var best *models.SendJob
	for _, job := range q.jobs {
		if !job.Claimable(now) {
			continue
		}
		if best == nil || job.Priority < best.Priority ||
			(job.Priority == best.Priority && job.Seq < best.Seq) {
			best = job
		}
	}
	if best == nil {
		q.mu.Unlock()
		return nil
	}
	best.Status = models.JobActive
	best.UpdatedAt = now
	claimed := *best
	q.mu.Unlock()

	q.persist(ctx, &claimed, false)
	return &claimed
}

// Ack marks an active job completed.
func (q *Queue) Ack(ctx context.Context, id string) error {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || job.Status != models.JobActive {
		q.mu.Unlock()
		return fmt.Errorf("ack: job %s is not active", id)
	}
	job.Status = models.JobCompleted
	job.LastError = ""
	job.UpdatedAt = time.Now().UTC()
	updated := *job
	evicted := q.retain(job)
	q.mu.Unlock()

	q.persist(ctx, &updated, false)
	q.evict(ctx, evicted)
	return nil
}

// Fail records a failed attempt on an active job. The job goes back to
// waiting with a backoff delay, or terminal failed once the attempt budget
// is spent.
func (q *Queue) Fail(ctx context.Context, id string, sendErr error) error {
	now := time.Now().UTC()

	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || job.Status != models.JobActive {
		q.mu.Unlock()
		return fmt.Errorf("fail: job %s is not active", id)
	}
	job.AttemptCount++
	job.LastError = sendErr.Error()
	job.UpdatedAt = now

	var evicted []string
	if job.AttemptCount >= job.MaxAttempts {
		job.Status = models.JobFailed
		evicted = q.retain(job)
	} else {
		job.Status = models.JobWaiting
		job.NotBefore = now.Add(q.policy.Delay(job.AttemptCount))
	}
	updated := *job
	q.mu.Unlock()

	q.persist(ctx, &updated, false)
	q.evict(ctx, evicted)
	return nil
}

// Get returns a copy of the job for status inspection.
func (q *Queue) Get(id string) (*models.SendJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return nil, false
	}
	copied := *job
	return &copied, true
}

// Counts reports the number of jobs per state; "delayed" is the subset of
// waiting jobs whose not-before time has not yet elapsed.
func (q *Queue) Counts() map[string]int {
	now := time.Now().UTC()
	counts := map[string]int{
		"waiting":   0,
		"delayed":   0,
		"active":    0,
		"completed": 0,
		"failed":    0,
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for _, job := range q.jobs {
		if job.Delayed(now) {
			counts["delayed"]++
			continue
		}
		counts[string(job.Status)]++
	}
	return counts
}

// retain appends a terminal job to its retention ring and returns the IDs
// that fell off the end. Caller holds the mutex.
func (q *Queue) retain(job *models.SendJob) []string {
	var ring *[]string
	var keep int
	switch job.Status {
	case models.JobCompleted:
		ring, keep = &q.completed, q.keepCompleted
	case models.JobFailed:
		ring, keep = &q.failed, q.keepFailed
	default:
		return nil
	}

	*ring = append(*ring, job.ID)
	var evicted []string
	for keep > 0 && len(*ring) > keep {
		old := (*ring)[0]
		*ring = (*ring)[1:]
		delete(q.jobs, old)
		evicted = append(evicted, old)
	}
	return evicted
}

func (q *Queue) evict(ctx context.Context, ids []string) {
	for _, id := range ids {
		if err := q.store.DeleteJob(ctx, id); err != nil {
			q.log.Warn().Err(err).Str("job_id", id).Msg("failed to delete evicted job from store")
		}
	}
}

func (q *Queue) persist(ctx context.Context, job *models.SendJob, create bool) {
	var err error
	if create {
		err = q.store.CreateJob(ctx, job)
	} else {
		err = q.store.UpdateJob(ctx, job)
	}
	if err != nil {
		q.log.Warn().Err(err).Str("job_id", job.ID).Msg("store unavailable, continuing without persistence")
	}
}
