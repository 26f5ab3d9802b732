package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/msadik/chatrelay/internal/signing"
)

type SendResult struct {
	StatusCode int
	LatencyMs  int64
	Error      string
}

// OK reports a successful delivery: a 2xx response with no transport error.
func (r *SendResult) OK() bool {
	return r.Error == "" && r.StatusCode >= 200 && r.StatusCode < 300
}

type Sender struct {
	client *http.Client
	secret string
}

func NewSender(timeout time.Duration, secret string) *Sender {
	return &Sender{
		client: &http.Client{Timeout: timeout},
		secret: secret,
	}
}

// Post delivers the payload to url. Timeouts and transport errors come back
// as a SendResult with Error set, never as a Go error; the caller feeds the
// result into the retry state machine either way.
func (s *Sender) Post(ctx context.Context, url, recordID string, payload []byte) *SendResult {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &SendResult{
			Error:     fmt.Sprintf("failed to create request: %v", err),
			LatencyMs: time.Since(start).Milliseconds(),
		}
	}

	timestamp := start.Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "chatrelay/1.0")
	req.Header.Set("X-Chatrelay-ID", recordID)
	req.Header.Set("X-Chatrelay-Timestamp", fmt.Sprintf("%d", timestamp))
	if s.secret != "" {
		req.Header.Set("X-Chatrelay-Signature", signing.Signature(s.secret, timestamp, payload))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return &SendResult{
			Error:     fmt.Sprintf("request failed: %v", err),
			LatencyMs: time.Since(start).Milliseconds(),
		}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	return &SendResult{
		StatusCode: resp.StatusCode,
		LatencyMs:  time.Since(start).Milliseconds(),
	}
}
