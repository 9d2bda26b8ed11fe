package client

import (
	"context"
	"math/rand/v2"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultMaxJitter   = time.Second
)

type RetryPolicy struct {
	MaxAttempts int           `json:"maxAttempts" yaml:"maxAttempts"` // total attempts including the first one (default: 3)
	BaseDelay   time.Duration `json:"baseDelay" yaml:"baseDelay"`     // delay unit doubled on every retry (default and when <= 0: 1s)
	MaxJitter   time.Duration `json:"maxJitter" yaml:"maxJitter"`     // upper bound (exclusive) of the random delay added to every retry (default and when <= 0: 1s)

	// OnRetry is invoked before waiting for the next attempt.
	OnRetry func(attempt int, delay time.Duration, err error) `json:"-" yaml:"-"`
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxJitter:   DefaultMaxJitter,
	}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Backoff returns the delay to wait after the failed attempt with the given 0-based index:
// BaseDelay * 2^attempt plus a uniform jitter in [0, MaxJitter).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	return p.backoff(attempt, jitter)
}

// baseDelay and maxJitter treat zero or negative values as the defaults, so every retry waits
// and every wait carries a random component.
func (p RetryPolicy) baseDelay() time.Duration {
	if p.BaseDelay <= 0 {
		return DefaultBaseDelay
	}
	return p.BaseDelay
}

func (p RetryPolicy) maxJitter() time.Duration {
	if p.MaxJitter <= 0 {
		return DefaultMaxJitter
	}
	return p.MaxJitter
}

func (p RetryPolicy) backoff(attempt int, rnd func(time.Duration) time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return p.baseDelay()<<attempt + rnd(p.maxJitter())
}

func jitter(limit time.Duration) time.Duration {
	return rand.N(limit)
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeRetry
	outcomeTerminal
)

func (o outcome) String() string {
	switch o {
	case outcomeSuccess:
		return "success"
	case outcomeRetry:
		return "retry"
	default:
		return "terminal"
	}
}

// attemptResult is what a single round trip decided; the loop in Send acts on it.
type attemptResult struct {
	outcome  outcome
	response *Response
	err      error
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
