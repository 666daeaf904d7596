package worker

import "time"

// RetryPolicy spaces out attempts of a failing Sheets task:
// InitialDelay, then multiplied by BackoffFactor per attempt, capped at MaxDelay.
// Zero fields take the DefaultRetryPolicy values.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    5,
		InitialDelay:  2 * time.Second,
		MaxDelay:      time.Minute,
		BackoffFactor: 2,
	}
}

func (r RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if r.MaxRetries <= 0 {
		r.MaxRetries = def.MaxRetries
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = def.InitialDelay
	}
	if r.MaxDelay <= 0 {
		r.MaxDelay = def.MaxDelay
	}
	if r.BackoffFactor < 1 {
		r.BackoffFactor = def.BackoffFactor
	}
	return r
}

// Exhausted reports whether the 1-based attempt was the last one allowed.
func (r RetryPolicy) Exhausted(attempt int) bool {
	return attempt >= r.normalized().MaxRetries
}

// NextDelay is the wait after the 1-based attempt failed.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	r = r.normalized()
	delay := r.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * r.BackoffFactor)
		if delay >= r.MaxDelay {
			return r.MaxDelay
		}
	}
	if delay > r.MaxDelay {
		return r.MaxDelay
	}
	return delay
}
