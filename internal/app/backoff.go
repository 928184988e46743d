package app

import "time"

// Backoff is the retry delay policy. Attempts are numbered from 1; attempts
// past the end of the schedule reuse its last entry, and the ceiling bounds
// how many automatic attempts happen at all.
type Backoff struct {
	schedule []time.Duration
	ceiling  int
}

// NewBackoff builds a policy from the configured schedule and retry ceiling.
// An empty schedule falls back to a single 5s step.
func NewBackoff(schedule []time.Duration, ceiling int) *Backoff {
	if len(schedule) == 0 {
		schedule = []time.Duration{5 * time.Second}
	}
	if ceiling < 0 {
		ceiling = 0
	}
	return &Backoff{schedule: schedule, ceiling: ceiling}
}

// Delay returns the wait before the given attempt (1-based).
func (b *Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > len(b.schedule) {
		attempt = len(b.schedule)
	}
	return b.schedule[attempt-1]
}

// Ceiling returns the maximum number of automatic attempts.
func (b *Backoff) Ceiling() int { return b.ceiling }
