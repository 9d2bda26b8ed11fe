package client

import (
	"testing"
	"time"

	. "github.com/onsi/gomega"
)

func TestBackoffBounds(t *testing.T) {
	RegisterTestingT(t)

	policy := DefaultRetryPolicy()
	for attempt := 0; attempt < 5; attempt++ {
		low := time.Duration(1<<attempt) * time.Second
		for i := 0; i < 200; i++ {
			delay := policy.Backoff(attempt)
			Expect(delay).To(BeNumerically(">=", low))
			Expect(delay).To(BeNumerically("<", low+time.Second))
		}
	}
}

func TestBackoffAlwaysAddsJitter(t *testing.T) {
	RegisterTestingT(t)

	var limits []time.Duration
	delay := DefaultRetryPolicy().backoff(1, func(limit time.Duration) time.Duration {
		limits = append(limits, limit)
		return 10 * time.Millisecond
	})
	Expect(delay).To(Equal(2010 * time.Millisecond))
	Expect(limits).To(Equal([]time.Duration{time.Second}))
}

func TestAttemptsDefaultsToSingleAttempt(t *testing.T) {
	RegisterTestingT(t)

	Expect(RetryPolicy{}.attempts()).To(Equal(1))
	Expect(RetryPolicy{MaxAttempts: -2}.attempts()).To(Equal(1))
	Expect(DefaultRetryPolicy().attempts()).To(Equal(3))
}

func TestBackoffNormalizesUnsetAndNegativeDelays(t *testing.T) {
	RegisterTestingT(t)

	var limits []time.Duration
	rnd := func(limit time.Duration) time.Duration {
		limits = append(limits, limit)
		return 0
	}
	Expect(RetryPolicy{}.backoff(0, rnd)).To(Equal(time.Second))
	Expect(RetryPolicy{BaseDelay: -time.Second, MaxJitter: -time.Second}.backoff(2, rnd)).To(Equal(4 * time.Second))
	Expect(RetryPolicy{BaseDelay: 10 * time.Millisecond, MaxJitter: 5 * time.Millisecond}.backoff(1, rnd)).To(Equal(20 * time.Millisecond))
	Expect(limits).To(Equal([]time.Duration{time.Second, time.Second, 5 * time.Millisecond}))
}
