package upstream

import (
	"sync"
	"time"

	"github.com/cuemby/vein/pkg/metrics"
)

// breakerState mirrors the textbook three-state circuit breaker: closed
// (normal), open (failing fast), half-open (probing for recovery).
type breakerState int

const (
	stateClosed breakerState = iota
	stateHalfOpen
	stateOpen
)

// breaker is a small per-origin circuit breaker. No dedicated breaker
// library is used here (none of the retrieved example repos imports
// one for real use — only as an unused transitive/lint dependency), so
// this mirrors the shape the upstream client's retry loop already
// needs: a mutex-guarded state machine driven by consecutive failures.
type breaker struct {
	mu               sync.Mutex
	state            breakerState
	consecutiveFails int
	openedAt         time.Time
	origin           string
	probeInFlight    bool

	failureThreshold int
	openDuration     time.Duration
}

func newBreaker(origin string) *breaker {
	return &breaker{
		origin:           origin,
		failureThreshold: 5,
		openDuration:     30 * time.Second,
	}
}

// Allow reports whether a request may proceed. When the breaker is open
// but the cooldown has elapsed, it transitions to half-open and allows
// exactly one probe through; concurrent callers during that single
// probe are denied until RecordSuccess or RecordFailure resolves it.
func (b *breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateHalfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	case stateOpen:
		if time.Since(b.openedAt) >= b.openDuration {
			b.state = stateHalfOpen
			b.probeInFlight = true
			metrics.CircuitBreakerState.WithLabelValues(b.origin).Set(1)
			return true
		}
		return false
	}
	return true
}

// RecordSuccess closes the breaker and resets its failure count.
func (b *breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFails = 0
	b.state = stateClosed
	b.probeInFlight = false
	metrics.CircuitBreakerState.WithLabelValues(b.origin).Set(0)
}

// RecordFailure counts a failure, opening the breaker once the
// threshold is reached (or immediately, if the failure happened during
// a half-open probe).
func (b *breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFails++
	if b.state == stateHalfOpen || b.consecutiveFails >= b.failureThreshold {
		b.state = stateOpen
		b.openedAt = time.Now()
		b.probeInFlight = false
		metrics.CircuitBreakerState.WithLabelValues(b.origin).Set(2)
	}
}

// breakerRegistry lazily creates one breaker per origin host.
type breakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*breaker
}

func newBreakerRegistry() *breakerRegistry {
	return &breakerRegistry{breakers: make(map[string]*breaker)}
}

func (r *breakerRegistry) get(origin string) *breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[origin]
	if !ok {
		b = newBreaker(origin)
		r.breakers[origin] = b
	}
	return b
}
