package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelayDoublesPerAttempt(t *testing.T) {
	p := Policy{Base: 100 * time.Millisecond, MaxAttempts: 5}

	assert.Equal(t, 100*time.Millisecond, p.Delay(1))
	assert.Equal(t, 200*time.Millisecond, p.Delay(2))
	assert.Equal(t, 400*time.Millisecond, p.Delay(3))
	assert.Equal(t, 800*time.Millisecond, p.Delay(4))
}

func TestDelayIsDeterministic(t *testing.T) {
	p := Policy{Base: 5 * time.Second, MaxAttempts: 3}

	for i := 1; i <= 10; i++ {
		assert.Equal(t, p.Delay(i), p.Delay(i))
	}
}

func TestDelayNonDecreasing(t *testing.T) {
	p := Policy{Base: 250 * time.Millisecond, Ceiling: 30 * time.Second, MaxAttempts: 10}

	prev := time.Duration(0)
	for i := 1; i <= 20; i++ {
		d := p.Delay(i)
		assert.GreaterOrEqual(t, d, prev, "delay shrank at attempt %d", i)
		prev = d
	}
}

func TestDelayCeiling(t *testing.T) {
	p := Policy{Base: 1 * time.Second, Ceiling: 5 * time.Second, MaxAttempts: 10}

	assert.Equal(t, 1*time.Second, p.Delay(1))
	assert.Equal(t, 4*time.Second, p.Delay(3))
	assert.Equal(t, 5*time.Second, p.Delay(4))
	assert.Equal(t, 5*time.Second, p.Delay(9))
}

func TestDelayClampsInvalidAttempt(t *testing.T) {
	p := Policy{Base: 100 * time.Millisecond, MaxAttempts: 3}

	assert.Equal(t, p.Delay(1), p.Delay(0))
	assert.Equal(t, p.Delay(1), p.Delay(-5))
}

func TestExhausted(t *testing.T) {
	p := Policy{Base: time.Second, MaxAttempts: 3}

	assert.False(t, p.Exhausted(0))
	assert.False(t, p.Exhausted(2))
	assert.True(t, p.Exhausted(3))
	assert.True(t, p.Exhausted(4))
}
