package db

import (
	"context"
	"fmt"

	"meetapp/internal/models"
)

// InsertDeadLetter records a notification job that will not be retried.
func (s *Store) InsertDeadLetter(ctx context.Context, dl *models.DeadLetter) error {
	query := `
		INSERT INTO notification_dead_letters (task_id, task_type, payload, error, retried)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	row := s.db.QueryRowxContext(ctx, query, dl.TaskID, dl.TaskType, dl.Payload, dl.Error, dl.Retried)
	if err := row.Scan(&dl.ID, &dl.CreatedAt); err != nil {
		return fmt.Errorf("insert dead letter for task %s: %w", dl.TaskID, err)
	}
	return nil
}

// ListDeadLetters returns the most recent dead letters first.
func (s *Store) ListDeadLetters(ctx context.Context, limit int) ([]models.DeadLetter, error) {
	deadLetters := []models.DeadLetter{}
	err := s.db.SelectContext(ctx, &deadLetters, `
		SELECT id, task_id, task_type, payload, error, retried, created_at
		FROM notification_dead_letters
		ORDER BY created_at DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	return deadLetters, nil
}
