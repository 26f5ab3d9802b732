package storage

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/msadik/chatrelay/internal/models"
)

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS delivery_records (
			id TEXT PRIMARY KEY,
			event_kind TEXT NOT NULL,
			payload TEXT NOT NULL,
			target_url TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			attempt_count INTEGER NOT NULL DEFAULT 0,
			last_http_status INTEGER,
			last_error TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			last_attempt_at DATETIME,
			completed_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS send_jobs (
			id TEXT PRIMARY KEY,
			target TEXT NOT NULL,
			body TEXT NOT NULL,
			media_url TEXT NOT NULL DEFAULT '',
			priority INTEGER NOT NULL DEFAULT 0,
			not_before DATETIME NOT NULL,
			status TEXT NOT NULL DEFAULT 'waiting',
			attempt_count INTEGER NOT NULL DEFAULT 0,
			max_attempts INTEGER NOT NULL,
			last_error TEXT NOT NULL DEFAULT '',
			seq INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_delivery_records_status ON delivery_records(status)`,
		`CREATE INDEX IF NOT EXISTS idx_send_jobs_status ON send_jobs(status, not_before)`,
		`CREATE INDEX IF NOT EXISTS idx_send_jobs_order ON send_jobs(priority, seq)`,
	}

	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- Delivery records ---

func (s *SQLiteStorage) CreateDeliveryRecord(ctx context.Context, rec *models.DeliveryRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO delivery_records (id, event_kind, payload, target_url, status, attempt_count, last_http_status, last_error, created_at, last_attempt_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.EventKind, string(rec.Payload), rec.TargetURL, rec.Status, rec.AttemptCount,
		rec.LastHTTPStatus, rec.LastError, rec.CreatedAt, rec.LastAttemptAt, rec.CompletedAt,
	)
	return err
}

func (s *SQLiteStorage) UpdateDeliveryRecord(ctx context.Context, rec *models.DeliveryRecord) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE delivery_records SET status = ?, attempt_count = ?, last_http_status = ?, last_error = ?, last_attempt_at = ?, completed_at = ? WHERE id = ?`,
		rec.Status, rec.AttemptCount, rec.LastHTTPStatus, rec.LastError, rec.LastAttemptAt, rec.CompletedAt, rec.ID,
	)
	return err
}

func (s *SQLiteStorage) GetDeliveryRecord(ctx context.Context, id string) (*models.DeliveryRecord, error) {
	var rec models.DeliveryRecord
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, event_kind, payload, target_url, status, attempt_count, last_http_status, last_error, created_at, last_attempt_at, completed_at
		 FROM delivery_records WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.EventKind, &payload, &rec.TargetURL, &rec.Status, &rec.AttemptCount,
		&rec.LastHTTPStatus, &rec.LastError, &rec.CreatedAt, &rec.LastAttemptAt, &rec.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Payload = []byte(payload)
	return &rec, nil
}

// --- Send jobs ---

func (s *SQLiteStorage) CreateJob(ctx context.Context, job *models.SendJob) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO send_jobs (id, target, body, media_url, priority, not_before, status, attempt_count, max_attempts, last_error, seq, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Target, job.Body, job.Options.MediaURL, job.Priority, job.NotBefore, job.Status,
		job.AttemptCount, job.MaxAttempts, job.LastError, job.Seq, job.CreatedAt, job.UpdatedAt,
	)
	return err
}

func (s *SQLiteStorage) UpdateJob(ctx context.Context, job *models.SendJob) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE send_jobs SET status = ?, attempt_count = ?, not_before = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		job.Status, job.AttemptCount, job.NotBefore, job.LastError, time.Now().UTC(), job.ID,
	)
	return err
}

func (s *SQLiteStorage) scanJob(row interface{ Scan(...interface{}) error }) (*models.SendJob, error) {
	var job models.SendJob
	err := row.Scan(&job.ID, &job.Target, &job.Body, &job.Options.MediaURL, &job.Priority, &job.NotBefore,
		&job.Status, &job.AttemptCount, &job.MaxAttempts, &job.LastError, &job.Seq, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *SQLiteStorage) GetJob(ctx context.Context, id string) (*models.SendJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, target, body, media_url, priority, not_before, status, attempt_count, max_attempts, last_error, seq, created_at, updated_at
		 FROM send_jobs WHERE id = ?`, id)
	job, err := s.scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return job, err
}

func (s *SQLiteStorage) DeleteJob(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM send_jobs WHERE id = ?`, id)
	return err
}

func (s *SQLiteStorage) ListUnfinishedJobs(ctx context.Context) ([]models.SendJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, target, body, media_url, priority, not_before, status, attempt_count, max_attempts, last_error, seq, created_at, updated_at
		 FROM send_jobs WHERE status IN ('waiting', 'active') ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []models.SendJob
	for rows.Next() {
		job, err := s.scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// --- Stats ---

func (s *SQLiteStorage) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM delivery_records`).Scan(&stats.TotalDeliveries)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM delivery_records WHERE status = 'delivered'`).Scan(&stats.DeliveredCount)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM delivery_records WHERE status = 'failed'`).Scan(&stats.FailedDeliveries)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM delivery_records WHERE status IN ('pending', 'retrying')`).Scan(&stats.PendingDeliveries)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM send_jobs`).Scan(&stats.TotalJobs)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM send_jobs WHERE status = 'completed'`).Scan(&stats.CompletedJobs)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM send_jobs WHERE status = 'failed'`).Scan(&stats.FailedJobs)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM send_jobs WHERE status IN ('waiting', 'active')`).Scan(&stats.QueuedJobs)

	if stats.TotalDeliveries > 0 {
		stats.DeliveryRate = float64(stats.DeliveredCount) / float64(stats.TotalDeliveries) * 100
	}

	return stats, nil
}
