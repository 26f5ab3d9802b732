package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msadik/chatrelay/internal/backoff"
	"github.com/msadik/chatrelay/internal/models"
	"github.com/msadik/chatrelay/internal/provider"
)

type errBox struct{ err error }

// stubProvider is a controllable messaging channel for pool tests.
type stubProvider struct {
	status  atomic.Value // provider.Status
	sendErr atomic.Value // errBox
	sends   atomic.Int32
}

func newStubProvider() *stubProvider {
	p := &stubProvider{}
	p.status.Store(provider.StatusReady)
	p.sendErr.Store(errBox{})
	return p
}

func (p *stubProvider) Send(ctx context.Context, msg provider.OutboundMessage) (*provider.SendReceipt, error) {
	p.sends.Add(1)
	if box := p.sendErr.Load().(errBox); box.err != nil {
		return nil, box.err
	}
	return &provider.SendReceipt{MessageID: models.NewID("msg"), AcceptedAt: time.Now().UTC()}, nil
}

func (p *stubProvider) Status() provider.Status {
	return p.status.Load().(provider.Status)
}

func (p *stubProvider) Events() <-chan models.Event {
	return nil
}

func startTestPool(t *testing.T, q *Queue, prov provider.Provider, workers int) *Pool {
	t.Helper()
	pool := NewPool(q, prov, workers, 10*time.Millisecond, time.Second, zerolog.Nop())
	pool.Start(context.Background())
	t.Cleanup(pool.Stop)
	return pool
}

func TestPoolCompletesBatch(t *testing.T) {
	q, _ := newTestQueue(backoff.Policy{Base: 10 * time.Millisecond, MaxAttempts: 3})
	prov := newStubProvider()
	startTestPool(t, q, prov, 2)

	c := NewCoordinator(q, 100, 60*time.Second, zerolog.Nop())
	receipts, err := c.SubmitBatch(context.Background(), []BatchItem{
		{Target: "+15550001", Body: "one"},
		{Target: "+15550002", Body: "two"},
		{Target: "+15550003", Body: "three"},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, r := range receipts {
			job, ok := q.Get(r.JobID)
			if !ok || job.Status != models.JobCompleted {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, int32(3), prov.sends.Load())
}

func TestPoolRetriesThenFails(t *testing.T) {
	q, _ := newTestQueue(backoff.Policy{Base: 10 * time.Millisecond, MaxAttempts: 2})
	prov := newStubProvider()
	prov.sendErr.Store(errBox{err: &models.ProviderError{Code: 503, Msg: "rate limited"}})
	startTestPool(t, q, prov, 1)

	id := q.Submit(context.Background(), &models.SendJob{Target: "+15550001", Body: "x"})

	require.Eventually(t, func() bool {
		job, ok := q.Get(id)
		return ok && job.Status == models.JobFailed
	}, 2*time.Second, 10*time.Millisecond)

	job, _ := q.Get(id)
	assert.Equal(t, 2, job.AttemptCount)
	assert.Contains(t, job.LastError, "rate limited")
	assert.GreaterOrEqual(t, prov.sends.Load(), int32(2))
}

func TestPoolRecoversAfterTransientFailure(t *testing.T) {
	q, _ := newTestQueue(backoff.Policy{Base: 10 * time.Millisecond, MaxAttempts: 5})
	prov := newStubProvider()
	prov.sendErr.Store(errBox{err: &models.ProviderError{Msg: "flaky"}})
	startTestPool(t, q, prov, 1)

	id := q.Submit(context.Background(), &models.SendJob{Target: "+15550001", Body: "x"})

	require.Eventually(t, func() bool {
		job, ok := q.Get(id)
		return ok && job.AttemptCount >= 1
	}, 2*time.Second, 5*time.Millisecond)

	prov.sendErr.Store(errBox{})

	require.Eventually(t, func() bool {
		job, ok := q.Get(id)
		return ok && job.Status == models.JobCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPoolProviderNotReady(t *testing.T) {
	q, _ := newTestQueue(backoff.Policy{Base: 10 * time.Millisecond, MaxAttempts: 2})
	prov := newStubProvider()
	prov.status.Store(provider.StatusDisconnected)
	startTestPool(t, q, prov, 1)

	id := q.Submit(context.Background(), &models.SendJob{Target: "+15550001", Body: "x"})

	require.Eventually(t, func() bool {
		job, ok := q.Get(id)
		return ok && job.Status == models.JobFailed
	}, 2*time.Second, 10*time.Millisecond)

	job, _ := q.Get(id)
	assert.Contains(t, job.LastError, "provider not ready")
	assert.Equal(t, int32(0), prov.sends.Load(), "no send may reach a provider that is not ready")
}
