// Package notify is the asynchronous notification queue: the request path
// enqueues jobs and a separate worker process delivers them.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"meetapp/pkg/tasks"
)

// QueueName is the asynq queue that carries notification jobs.
const QueueName = "notifications"

// JobHandle identifies an accepted job.
type JobHandle struct {
	ID    string
	Queue string
}

// QueueConfig controls how hard Enqueue tries to get a job accepted by the
// backend, and the delivery policy stamped on each job.
type QueueConfig struct {
	Attempts uint
	Delay    time.Duration
	MaxRetry int
	Timeout  time.Duration
}

type Queue struct {
	client    tasks.TaskEnqueuer
	cfg       QueueConfig
	logger    *zap.Logger
	onFailure func()
}

// NewQueue wraps client. onFailure is optional and runs when a job could not
// be handed to the backend after all attempts.
func NewQueue(client tasks.TaskEnqueuer, cfg QueueConfig, logger *zap.Logger, onFailure func()) *Queue {
	if cfg.Attempts == 0 {
		cfg.Attempts = 1
	}
	if onFailure == nil {
		onFailure = func() {}
	}
	return &Queue{client: client, cfg: cfg, logger: logger, onFailure: onFailure}
}

// Enqueue hands a subscription mail job to the backend. It returns once the
// backend has accepted the job and never waits on delivery. The job id is
// derived from the subscription, so a retried acceptance cannot queue the
// same notification twice.
func (q *Queue) Enqueue(ctx context.Context, p tasks.SubscriptionMailPayload) (*JobHandle, error) {
	task, err := tasks.NewSubscriptionMailTask(p)
	if err != nil {
		return nil, fmt.Errorf("build subscription mail task: %w", err)
	}

	taskID := tasks.SubscriptionMailTaskID(p.SubscriptionID)
	opts := []asynq.Option{
		asynq.TaskID(taskID),
		asynq.Queue(QueueName),
		asynq.MaxRetry(q.cfg.MaxRetry),
	}
	if q.cfg.Timeout > 0 {
		opts = append(opts, asynq.Timeout(q.cfg.Timeout))
	}

	handle := &JobHandle{ID: taskID, Queue: QueueName}
	var lastErr error
	err = retry.Do(
		func() error {
			info, err := q.client.EnqueueContext(ctx, task, opts...)
			if errors.Is(err, asynq.ErrTaskIDConflict) {
				return nil
			}
			if err != nil {
				lastErr = err
				return err
			}
			handle = &JobHandle{ID: info.ID, Queue: info.Queue}
			return nil
		},
		retry.Attempts(q.cfg.Attempts),
		retry.Delay(q.cfg.Delay),
		retry.MaxDelay(5*q.cfg.Delay+time.Millisecond),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			q.logger.Warn("retrying enqueue",
				zap.String("task_id", taskID), zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		if lastErr != nil {
			err = lastErr
		}
		q.onFailure()
		return nil, fmt.Errorf("enqueue %s: %w", taskID, err)
	}
	return handle, nil
}
