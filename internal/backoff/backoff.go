package backoff

import "time"

// Policy computes retry delays and holds the attempt budget. It carries no
// hidden state: the same inputs always produce the same delay.
type Policy struct {
	Base        time.Duration
	Ceiling     time.Duration // 0 disables the cap
	MaxAttempts int
}

// Delay returns the wait before retry number attempt. Numbering starts at 1
// for the first retry; the initial attempt is not counted.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.Base << uint(attempt-1)
	if d < p.Base {
		// shift overflowed
		d = p.Ceiling
	}
	if p.Ceiling > 0 && d > p.Ceiling {
		d = p.Ceiling
	}
	return d
}

// Exhausted reports whether attemptCount has consumed the full budget.
func (p Policy) Exhausted(attemptCount int) bool {
	return attemptCount >= p.MaxAttempts
}
