package upstream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/vein/pkg/config"
)

func TestBackoffWait_ExponentialNoJitter(t *testing.T) {
	cfg := config.RetryConfig{
		BackoffStrategy:  config.BackoffExponential,
		InitialBackoffMs: 100,
		MaxBackoffSecs:   10,
		JitterFactor:     0,
	}
	assert.Equal(t, 100*time.Millisecond, backoffWait(cfg, 1))
	assert.Equal(t, 200*time.Millisecond, backoffWait(cfg, 2))
	assert.Equal(t, 400*time.Millisecond, backoffWait(cfg, 3))
}

func TestBackoffWait_ConstantStrategy(t *testing.T) {
	cfg := config.RetryConfig{
		BackoffStrategy:  config.BackoffConstant,
		InitialBackoffMs: 250,
		MaxBackoffSecs:   10,
		JitterFactor:     0,
	}
	assert.Equal(t, 250*time.Millisecond, backoffWait(cfg, 1))
	assert.Equal(t, 250*time.Millisecond, backoffWait(cfg, 5))
}

func TestBackoffWait_FibonacciStrategy(t *testing.T) {
	cfg := config.RetryConfig{
		BackoffStrategy:  config.BackoffFibonacci,
		InitialBackoffMs: 100,
		MaxBackoffSecs:   10,
		JitterFactor:     0,
	}
	assert.Equal(t, 100*time.Millisecond, backoffWait(cfg, 1))
	assert.Equal(t, 100*time.Millisecond, backoffWait(cfg, 2))
	assert.Equal(t, 200*time.Millisecond, backoffWait(cfg, 3))
	assert.Equal(t, 300*time.Millisecond, backoffWait(cfg, 4))
	assert.Equal(t, 500*time.Millisecond, backoffWait(cfg, 5))
}

func TestBackoffWait_CappedAtMax(t *testing.T) {
	cfg := config.RetryConfig{
		BackoffStrategy:  config.BackoffExponential,
		InitialBackoffMs: 1000,
		MaxBackoffSecs:   2,
		JitterFactor:     0,
	}
	assert.Equal(t, 2*time.Second, backoffWait(cfg, 10))
}

func TestBackoffWait_JitterStaysWithinRange(t *testing.T) {
	cfg := config.RetryConfig{
		BackoffStrategy:  config.BackoffConstant,
		InitialBackoffMs: 1000,
		MaxBackoffSecs:   10,
		JitterFactor:     1.0,
	}
	for i := 0; i < 50; i++ {
		wait := backoffWait(cfg, 1)
		assert.True(t, wait >= 500*time.Millisecond && wait <= 1500*time.Millisecond, "wait %v out of expected jitter range", wait)
	}
}
