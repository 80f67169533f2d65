package upstream

import (
	"math/rand"
	"time"

	"github.com/cuemby/vein/pkg/config"
)

// backoffWait computes the wait before retry attempt n (1-indexed),
// honoring the configured strategy, capped at MaxBackoff and then
// jittered by JitterFactor: the wait is spread uniformly over
// base ± base*JitterFactor/2 (1.0 gives 0.5x to 1.5x the base; 0.0
// disables jitter entirely).
func backoffWait(cfg config.RetryConfig, attempt int) time.Duration {
	var base time.Duration
	switch cfg.BackoffStrategy {
	case config.BackoffConstant:
		base = cfg.InitialBackoff()
	case config.BackoffFibonacci:
		base = cfg.InitialBackoff() * time.Duration(fibonacci(attempt))
	default: // exponential
		base = cfg.InitialBackoff() * time.Duration(1<<uint(attempt-1))
	}

	if max := cfg.MaxBackoff(); base > max {
		base = max
	}
	if cfg.JitterFactor <= 0 {
		return base
	}
	jitterRange := float64(base) * cfg.JitterFactor
	jitter := time.Duration(rand.Float64() * jitterRange)
	return base - time.Duration(jitterRange/2) + jitter
}

// fibonacci returns the n-th (1-indexed) Fibonacci number, with
// fibonacci(1) == fibonacci(2) == 1.
func fibonacci(n int) int {
	if n <= 2 {
		return 1
	}
	a, b := 1, 1
	for i := 3; i <= n; i++ {
		a, b = b, a+b
	}
	return b
}
