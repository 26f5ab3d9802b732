package webhook

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msadik/chatrelay/internal/backoff"
	"github.com/msadik/chatrelay/internal/models"
	"github.com/msadik/chatrelay/internal/storage"
)

// syncScheduler records delays and runs tasks inline, so a whole retry chain
// finishes before Dispatch returns.
type syncScheduler struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *syncScheduler) Schedule(d time.Duration, fn func()) {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	fn()
}

func (s *syncScheduler) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func newTestDispatcher(t *testing.T, url string, policy backoff.Policy, store storage.Storage) (*Dispatcher, *syncScheduler, *Ledger) {
	t.Helper()
	log := zerolog.Nop()
	ledger := NewLedger(store, log)
	sched := &syncScheduler{}
	d := NewDispatcher(url, NewSender(2*time.Second, ""), ledger, policy, sched, log)
	return d, sched, ledger
}

func TestDispatchDeliveredFirstAttempt(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := storage.NewMemory()
	policy := backoff.Policy{Base: 100 * time.Millisecond, MaxAttempts: 3}
	d, sched, ledger := newTestDispatcher(t, srv.URL, policy, store)

	id := d.Dispatch(context.Background(), models.EventInboundMessage, []byte(`{"text":"hi"}`))
	require.NotEmpty(t, id)

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, []time.Duration{0}, sched.recorded())

	rec, err := ledger.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, models.DeliveryDelivered, rec.Status)
	assert.Equal(t, 1, rec.AttemptCount)
	require.NotNil(t, rec.LastHTTPStatus)
	assert.Equal(t, http.StatusOK, *rec.LastHTTPStatus)
	require.NotNil(t, rec.CompletedAt)
}

func TestDispatchRetriesUntilExhausted(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := storage.NewMemory()
	policy := backoff.Policy{Base: 100 * time.Millisecond, MaxAttempts: 3}
	d, sched, ledger := newTestDispatcher(t, srv.URL, policy, store)

	id := d.Dispatch(context.Background(), models.EventReaction, []byte(`{}`))
	require.NotEmpty(t, id)

	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, []time.Duration{0, 100 * time.Millisecond, 200 * time.Millisecond}, sched.recorded())

	rec, err := ledger.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, models.DeliveryFailed, rec.Status)
	assert.Equal(t, 3, rec.AttemptCount)
	require.NotNil(t, rec.LastHTTPStatus)
	assert.Equal(t, http.StatusInternalServerError, *rec.LastHTTPStatus)
	assert.Equal(t, "unexpected status 500", rec.LastError)
	require.NotNil(t, rec.CompletedAt)
}

func TestDispatchRecoversMidway(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	store := storage.NewMemory()
	policy := backoff.Policy{Base: 50 * time.Millisecond, MaxAttempts: 5}
	d, _, ledger := newTestDispatcher(t, srv.URL, policy, store)

	id := d.Dispatch(context.Background(), models.EventGroupChange, []byte(`{}`))

	rec, err := ledger.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, models.DeliveryDelivered, rec.Status)
	assert.Equal(t, 3, rec.AttemptCount)
	assert.Empty(t, rec.LastError)
}

func TestDispatchDisabledIsNoOp(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	store := storage.NewMemory()
	policy := backoff.Policy{Base: time.Second, MaxAttempts: 3}
	d, sched, _ := newTestDispatcher(t, "", policy, store)

	id := d.Dispatch(context.Background(), models.EventInboundMessage, []byte(`{}`))
	assert.Empty(t, id)
	assert.Empty(t, sched.recorded())
	assert.Equal(t, int32(0), hits.Load())
}

func TestDispatchTransportErrorRetries(t *testing.T) {
	// Nothing listens on this address; every attempt is a transport error.
	store := storage.NewMemory()
	policy := backoff.Policy{Base: 10 * time.Millisecond, MaxAttempts: 2}
	d, _, ledger := newTestDispatcher(t, "http://127.0.0.1:1/hook", policy, store)

	id := d.Dispatch(context.Background(), models.EventTest, []byte(`{}`))

	rec, err := ledger.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, models.DeliveryFailed, rec.Status)
	assert.Equal(t, 2, rec.AttemptCount)
	assert.Nil(t, rec.LastHTTPStatus)
	assert.Contains(t, rec.LastError, "request failed")
}

// brokenStorage refuses every operation, simulating an unreachable store.
type brokenStorage struct{}

var errStoreDown = errors.New("store unavailable")

func (brokenStorage) CreateDeliveryRecord(context.Context, *models.DeliveryRecord) error { return errStoreDown }
func (brokenStorage) UpdateDeliveryRecord(context.Context, *models.DeliveryRecord) error { return errStoreDown }
func (brokenStorage) GetDeliveryRecord(context.Context, string) (*models.DeliveryRecord, error) {
	return nil, errStoreDown
}
func (brokenStorage) CreateJob(context.Context, *models.SendJob) error { return errStoreDown }
func (brokenStorage) UpdateJob(context.Context, *models.SendJob) error { return errStoreDown }
func (brokenStorage) GetJob(context.Context, string) (*models.SendJob, error) {
	return nil, errStoreDown
}
func (brokenStorage) DeleteJob(context.Context, string) error { return errStoreDown }
func (brokenStorage) ListUnfinishedJobs(context.Context) ([]models.SendJob, error) {
	return nil, errStoreDown
}
func (brokenStorage) GetStats(context.Context) (*storage.Stats, error) { return nil, errStoreDown }
func (brokenStorage) Migrate(context.Context) error                    { return errStoreDown }
func (brokenStorage) Close() error                                     { return nil }

func TestDispatchContinuesWhenStoreDown(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	policy := backoff.Policy{Base: 10 * time.Millisecond, MaxAttempts: 3}
	d, _, _ := newTestDispatcher(t, srv.URL, policy, brokenStorage{})

	id := d.Dispatch(context.Background(), models.EventInboundMessage, []byte(`{"text":"hi"}`))
	require.NotEmpty(t, id)
	assert.Equal(t, int32(1), hits.Load())
}

func TestDispatchStop(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := storage.NewMemory()
	policy := backoff.Policy{Base: 10 * time.Millisecond, MaxAttempts: 3}
	d, _, _ := newTestDispatcher(t, srv.URL, policy, store)

	d.Stop()
	id := d.Dispatch(context.Background(), models.EventTest, []byte(`{}`))
	require.NotEmpty(t, id)
	assert.Equal(t, int32(0), hits.Load())
}
