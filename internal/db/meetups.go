package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"meetapp/internal/models"
)

// GetMeetup returns the meetup with its organizer, or ErrNotFound.
func (s *Store) GetMeetup(ctx context.Context, id int64) (*models.Meetup, error) {
	query := `
		SELECT m.id, m.user_id, m.title, m.description, m.location, m.date, m.created_at, m.updated_at,
		       u.name AS organizer_name, u.email AS organizer_email, u.locale AS organizer_locale
		FROM meetups m
		JOIN users u ON u.id = m.user_id
		WHERE m.id = $1
	`
	meetup := &models.Meetup{}
	err := s.db.GetContext(ctx, meetup, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get meetup %d: %w", id, err)
	}
	return meetup, nil
}
