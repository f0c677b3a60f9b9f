package models

import "time"

// Meetup is a time-boxed event published by an organizer. The organizer
// columns are filled by joins and are empty when the row is read alone.
type Meetup struct {
	ID              int64     `db:"id"`
	OrganizerID     int64     `db:"user_id"`
	Title           string    `db:"title"`
	Description     string    `db:"description"`
	Location        string    `db:"location"`
	Date            time.Time `db:"date"`
	OrganizerName   string    `db:"organizer_name"`
	OrganizerEmail  string    `db:"organizer_email"`
	OrganizerLocale string    `db:"organizer_locale"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// IsPast reports whether the meetup started before now. It is never stored.
func (m *Meetup) IsPast(now time.Time) bool {
	return m.Date.Before(now)
}
