package notify

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"meetapp/internal/models"
)

// DeadLetterRecorder persists jobs that will not be attempted again.
type DeadLetterRecorder interface {
	InsertDeadLetter(ctx context.Context, dl *models.DeadLetter) error
}

type WorkerConfig struct {
	Concurrency int
	Retry       RetryPolicy
}

// FailureHooks are optional metric callbacks for failed attempts.
type FailureHooks struct {
	OnRetry      func()
	OnDeadLetter func()
}

// Worker consumes notification jobs. Handler failures are retried per the
// policy; jobs that exhaust retries or fail permanently are dead-lettered.
// A failing or panicking job never stops the loop.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	router *FailureRouter
	logger *zap.Logger
}

func NewWorker(redis asynq.RedisConnOpt, cfg WorkerConfig, deadLetters DeadLetterRecorder, hooks FailureHooks, logger *zap.Logger) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	router := NewFailureRouter(deadLetters, hooks, logger)

	server := asynq.NewServer(redis, asynq.Config{
		Concurrency:    cfg.Concurrency,
		Queues:         map[string]int{QueueName: 1},
		RetryDelayFunc: cfg.Retry.Delay,
		ErrorHandler:   asynq.ErrorHandlerFunc(router.HandleError),
		Logger:         logger.Sugar(),
	})

	return &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
		router: router,
		logger: logger,
	}
}

func (w *Worker) HandleFunc(taskType string, handler func(context.Context, *asynq.Task) error) {
	w.mux.HandleFunc(taskType, handler)
}

// Run blocks, processing jobs until the process receives SIGTERM or SIGINT.
func (w *Worker) Run() error {
	w.logger.Info("notification worker starting")
	return w.server.Run(w.mux)
}

// FailureRouter decides what happens to a failed job: logged for retry, or
// recorded as a dead letter.
type FailureRouter struct {
	deadLetters DeadLetterRecorder
	hooks       FailureHooks
	logger      *zap.Logger
}

func NewFailureRouter(deadLetters DeadLetterRecorder, hooks FailureHooks, logger *zap.Logger) *FailureRouter {
	if hooks.OnRetry == nil {
		hooks.OnRetry = func() {}
	}
	if hooks.OnDeadLetter == nil {
		hooks.OnDeadLetter = func() {}
	}
	return &FailureRouter{deadLetters: deadLetters, hooks: hooks, logger: logger}
}

// HandleError is the asynq error handler. It runs before asynq schedules the
// retry or archives the task.
func (r *FailureRouter) HandleError(ctx context.Context, task *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	taskID, _ := asynq.GetTaskID(ctx)
	r.Route(ctx, taskID, task, err, retried, maxRetry)
}

// Route reports whether the job was dead-lettered.
func (r *FailureRouter) Route(ctx context.Context, taskID string, task *asynq.Task, err error, retried, maxRetry int) bool {
	log := r.logger.With(
		zap.String("task_id", taskID),
		zap.String("task_type", task.Type()),
		zap.Int("retried", retried),
		zap.Int("max_retry", maxRetry),
	)

	if !errors.Is(err, asynq.SkipRetry) && retried < maxRetry {
		r.hooks.OnRetry()
		log.Warn("notification attempt failed, will retry", zap.Error(err))
		return false
	}

	r.hooks.OnDeadLetter()
	log.Error("notification dead-lettered", zap.Error(err))

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	dl := &models.DeadLetter{
		TaskID:   taskID,
		TaskType: task.Type(),
		Payload:  task.Payload(),
		Error:    err.Error(),
		Retried:  retried,
	}
	if recErr := r.deadLetters.InsertDeadLetter(recordCtx, dl); recErr != nil {
		log.Error("failed to record dead letter", zap.Error(recErr))
	}
	return true
}
