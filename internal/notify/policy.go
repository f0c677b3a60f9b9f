package notify

import (
	"time"

	"github.com/hibiken/asynq"
)

// RetryPolicy is the delivery backoff: Base doubled per attempt, capped at
// Max. The number of retries travels with each job (QueueConfig.MaxRetry).
type RetryPolicy struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns the wait before retry number n+1 (n retries already done).
func (p RetryPolicy) Delay(n int, _ error, _ *asynq.Task) time.Duration {
	delay := p.Base
	for i := 0; i < n; i++ {
		delay *= 2
		if delay > p.Max {
			return p.Max
		}
	}
	if delay > p.Max {
		return p.Max
	}
	return delay
}
