package models

import "time"

type JobStatus string

const (
	JobWaiting   JobStatus = "waiting"
	JobActive    JobStatus = "active"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

type SendOptions struct {
	MediaURL string `json:"media_url,omitempty"`
}

// SendJob is one unit of outbound send work. A job with NotBefore in the
// future is still "waiting", it just isn't claimable yet.
type SendJob struct {
	ID           string      `json:"id"`
	Target       string      `json:"target"`
	Body         string      `json:"body"`
	Options      SendOptions `json:"options,omitempty"`
	Priority     int         `json:"priority"`
	NotBefore    time.Time   `json:"not_before"`
	Status       JobStatus   `json:"status"`
	AttemptCount int         `json:"attempt_count"`
	MaxAttempts  int         `json:"max_attempts"`
	LastError    string      `json:"last_error,omitempty"`
	Seq          int64       `json:"seq"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Claimable reports whether the job is eligible for a worker to take.
func (j *SendJob) Claimable(now time.Time) bool {
	return j.Status == JobWaiting && !j.NotBefore.After(now)
}

// Delayed reports whether the job is waiting on a future NotBefore.
func (j *SendJob) Delayed(now time.Time) bool {
	return j.Status == JobWaiting && j.NotBefore.After(now)
}
