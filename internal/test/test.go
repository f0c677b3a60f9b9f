package test

import (
	"context"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"
)

// MockTaskEnqueuer is a mock implementation of tasks.TaskEnqueuer for testing.
// Errs, when set, are returned by successive calls before any call succeeds.
type MockTaskEnqueuer struct {
	mu            sync.Mutex
	EnqueuedTasks []*asynq.Task
	EnqueuedOpts  [][]asynq.Option
	Errs          []error
	Calls         int
}

func (m *MockTaskEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return m.EnqueueContext(context.Background(), task, opts...)
}

func (m *MockTaskEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++
	if len(m.Errs) > 0 {
		err := m.Errs[0]
		m.Errs = m.Errs[1:]
		return nil, err
	}
	m.EnqueuedTasks = append(m.EnqueuedTasks, task)
	m.EnqueuedOpts = append(m.EnqueuedOpts, opts)
	return &asynq.TaskInfo{ID: "test-task-id", Queue: "notifications"}, nil
}

func (m *MockTaskEnqueuer) Tasks() []*asynq.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*asynq.Task(nil), m.EnqueuedTasks...)
}

func NewMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	mockDb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	sqlxDB := sqlx.NewDb(mockDb, "sqlmock")

	t.Cleanup(func() {
		mockDb.Close()
	})

	return sqlxDB, mock
}
