package pipeline

import "time"

// RetryPolicy decides what happens to a failed job. Delays are sized for job
// retries (seconds to minutes), not connection retries: re-invoking the
// analysis capability immediately after a failure rarely helps.
type RetryPolicy struct {
	BaseDelay    time.Duration
	DelayCeiling time.Duration
	MaxAttempts  int
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseDelay:    15 * time.Second,
		DelayCeiling: 10 * time.Minute,
		MaxAttempts:  5,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.BaseDelay <= 0 {
		p.BaseDelay = 15 * time.Second
	}
	if p.DelayCeiling <= 0 {
		p.DelayCeiling = 10 * time.Minute
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 5
	}
	return p
}

// Delay computes the linear backoff min(attempt*base, ceiling) for the given
// attempt count (1-based: the first retry after the first failed attempt
// waits one base unit).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	p = p.normalized()
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(attempt) * p.BaseDelay
	if d > p.DelayCeiling {
		return p.DelayCeiling
	}
	return d
}

type Decision struct {
	Dead  bool
	Delay time.Duration
}

// Decide returns the fate of a job whose attempt-th delivery just failed:
// requeue after Delay, or dead once the attempt budget is spent. A job
// reaches dead after exactly MaxAttempts deliveries, never fewer.
func (p RetryPolicy) Decide(attempt int) Decision {
	p = p.normalized()
	if attempt >= p.MaxAttempts {
		return Decision{Dead: true}
	}
	return Decision{Delay: p.Delay(attempt)}
}
