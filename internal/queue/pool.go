package queue

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/msadik/chatrelay/internal/metrics"
	"github.com/msadik/chatrelay/internal/models"
	"github.com/msadik/chatrelay/internal/provider"
)

// Pool runs N interchangeable workers against the shared queue. Workers are
// stateless between jobs; the claim operation's atomicity is what prevents
// double-sends.
type Pool struct {
	queue        *Queue
	prov         provider.Provider
	workers      int
	pollInterval time.Duration
	sendTimeout  time.Duration
	log          zerolog.Logger
	stop         chan struct{}
	wg           sync.WaitGroup
}

func NewPool(queue *Queue, prov provider.Provider, workers int, pollInterval, sendTimeout time.Duration, log zerolog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		queue:        queue,
		prov:         prov,
		workers:      workers,
		pollInterval: pollInterval,
		sendTimeout:  sendTimeout,
		log:          log,
		stop:         make(chan struct{}),
	}
}

func (p *Pool) Start(ctx context.Context) {
	p.log.Info().Int("workers", p.workers).Msg("starting send worker pool")
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.run(ctx, id)
		}(i)
	}
}

func (p *Pool) Stop() {
	p.log.Info().Msg("stopping send worker pool")
	close(p.stop)
	p.wg.Wait()
	p.log.Info().Msg("send worker pool stopped")
}

func (p *Pool) run(ctx context.Context, id int) {
	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		job := p.queue.Claim(ctx)
		if job == nil {
			select {
			case <-p.stop:
				return
			case <-ctx.Done():
				return
			case <-time.After(p.pollInterval):
			}
			continue
		}

		p.process(ctx, id, job)
	}
}

func (p *Pool) process(ctx context.Context, workerID int, job *models.SendJob) {
	if status := p.prov.Status(); status != provider.StatusReady {
		metrics.JobsProcessed.WithLabelValues("not_ready").Inc()
		p.log.Warn().
			Int("worker", workerID).
			Str("job_id", job.ID).
			Str("provider_status", string(status)).
			Msg("provider not ready, job will retry")
		p.queue.Fail(ctx, job.ID, models.ErrProviderNotReady)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.sendTimeout)
	start := time.Now()
	receipt, err := p.prov.Send(sendCtx, provider.OutboundMessage{
		Target:   job.Target,
		Body:     job.Body,
		MediaURL: job.Options.MediaURL,
	})
	cancel()
	metrics.SendDuration.WithLabelValues("provider").Observe(time.Since(start).Seconds())

	if err != nil {
		p.log.Warn().
			Int("worker", workerID).
			Str("job_id", job.ID).
			Int("attempt", job.AttemptCount+1).
			Err(err).
			Msg("send attempt failed")
		if ferr := p.queue.Fail(ctx, job.ID, err); ferr != nil {
			p.log.Error().Err(ferr).Str("job_id", job.ID).Msg("failed to record job failure")
		}
		if done, ok := p.queue.Get(job.ID); ok && done.Status == models.JobFailed {
			metrics.JobsProcessed.WithLabelValues("failed").Inc()
		} else {
			metrics.JobsProcessed.WithLabelValues("retry").Inc()
		}
		return
	}

	if err := p.queue.Ack(ctx, job.ID); err != nil {
		p.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to ack job")
		return
	}
	metrics.JobsProcessed.WithLabelValues("completed").Inc()
	p.log.Info().
		Int("worker", workerID).
		Str("job_id", job.ID).
		Str("message_id", receipt.MessageID).
		Str("target", job.Target).
		Msg("job completed")
}
