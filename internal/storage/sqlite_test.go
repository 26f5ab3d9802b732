package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msadik/chatrelay/internal/models"
)

func newTestSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteDeliveryRecordLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	now := time.Now().UTC()
	rec := &models.DeliveryRecord{
		ID:        models.NewID("dlv"),
		EventKind: models.EventReaction,
		Payload:   []byte(`{"emoji":"+1"}`),
		TargetURL: "http://example.com/hook",
		Status:    models.DeliveryPending,
		CreatedAt: now,
	}
	require.NoError(t, s.CreateDeliveryRecord(ctx, rec))

	status := 500
	rec.Status = models.DeliveryRetrying
	rec.AttemptCount = 1
	rec.LastHTTPStatus = &status
	rec.LastError = "unexpected status 500"
	rec.LastAttemptAt = &now
	require.NoError(t, s.UpdateDeliveryRecord(ctx, rec))

	got, err := s.GetDeliveryRecord(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.DeliveryRetrying, got.Status)
	assert.Equal(t, 1, got.AttemptCount)
	require.NotNil(t, got.LastHTTPStatus)
	assert.Equal(t, 500, *got.LastHTTPStatus)
	assert.JSONEq(t, `{"emoji":"+1"}`, string(got.Payload))
}

func TestSQLiteJobLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	now := time.Now().UTC()
	job := &models.SendJob{
		ID:          models.NewID("job"),
		Target:      "+15550001",
		Body:        "hello",
		Options:     models.SendOptions{MediaURL: "http://example.com/pic.png"},
		Priority:    2,
		NotBefore:   now,
		Status:      models.JobWaiting,
		MaxAttempts: 3,
		Seq:         7,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, s.CreateJob(ctx, job))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(7), got.Seq)
	assert.Equal(t, "http://example.com/pic.png", got.Options.MediaURL)

	job.Status = models.JobFailed
	job.AttemptCount = 3
	job.LastError = "provider: boom"
	require.NoError(t, s.UpdateJob(ctx, job))

	unfinished, err := s.ListUnfinishedJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, unfinished)

	require.NoError(t, s.DeleteJob(ctx, job.ID))
	got, err = s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteGetMissingReturnsNil(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	rec, err := s.GetDeliveryRecord(ctx, "dlv_missing")
	require.NoError(t, err)
	assert.Nil(t, rec)

	job, err := s.GetJob(ctx, "job_missing")
	require.NoError(t, err)
	assert.Nil(t, job)
}
