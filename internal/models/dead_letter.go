package models

import "time"

// DeadLetter is a notification job that will not be attempted again.
type DeadLetter struct {
	ID        int64     `db:"id"`
	TaskID    string    `db:"task_id"`
	TaskType  string    `db:"task_type"`
	Payload   []byte    `db:"payload"`
	Error     string    `db:"error"`
	Retried   int       `db:"retried"`
	CreatedAt time.Time `db:"created_at"`
}
