package upstream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := newBreaker("https://rubygems.org")

	for i := 0; i < b.failureThreshold-1; i++ {
		b.RecordFailure()
		assert.True(t, b.Allow(), "breaker must stay closed below the failure threshold")
	}
	b.RecordFailure()
	assert.False(t, b.Allow(), "breaker must open once the threshold is reached")
}

func TestBreaker_RecordSuccessResetsFailures(t *testing.T) {
	b := newBreaker("https://rubygems.org")

	for i := 0; i < b.failureThreshold-1; i++ {
		b.RecordFailure()
	}
	b.RecordSuccess()
	assert.Equal(t, 0, b.consecutiveFails)
	assert.True(t, b.Allow())
}

func TestBreaker_HalfOpenAfterCooldown(t *testing.T) {
	b := newBreaker("https://rubygems.org")
	b.openDuration = time.Millisecond

	for i := 0; i < b.failureThreshold; i++ {
		b.RecordFailure()
	}
	assert.False(t, b.Allow())

	time.Sleep(5 * time.Millisecond)
	assert.True(t, b.Allow(), "cooldown elapsed, breaker should allow a probe request")
	assert.Equal(t, stateHalfOpen, b.state)
}

func TestBreaker_HalfOpenAdmitsOnlyOneProbe(t *testing.T) {
	b := newBreaker("https://rubygems.org")
	b.openDuration = time.Millisecond

	for i := 0; i < b.failureThreshold; i++ {
		b.RecordFailure()
	}
	time.Sleep(5 * time.Millisecond)

	assert.True(t, b.Allow(), "the transitioning call gets the single probe")
	assert.False(t, b.Allow(), "a concurrent caller must not get a second probe while one is in flight")

	b.RecordSuccess()
	assert.True(t, b.Allow(), "a resolved probe allows further requests through the now-closed breaker")
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := newBreaker("https://rubygems.org")
	b.state = stateHalfOpen

	b.RecordFailure()
	assert.Equal(t, stateOpen, b.state)
}

func TestBreakerRegistry_OnePerOrigin(t *testing.T) {
	r := newBreakerRegistry()
	a := r.get("https://rubygems.org")
	b := r.get("https://rubygems.org")
	c := r.get("https://mirror.example.com")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}
