package models

import "time"

// Subscription represents a user's registration to attend a meetup.
type Subscription struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	MeetupID  int64     `db:"meetup_id"`
	CreatedAt time.Time `db:"created_at"`
}

// UpcomingSubscription is a subscription joined with its meetup and organizer,
// as listed to the subscriber.
type UpcomingSubscription struct {
	MeetupID       int64     `db:"meetup_id" json:"meetup_id"`
	Title          string    `db:"title" json:"title"`
	Description    string    `db:"description" json:"description"`
	Location       string    `db:"location" json:"location"`
	Date           time.Time `db:"date" json:"date"`
	OrganizerName  string    `db:"organizer_name" json:"organizer_name"`
	OrganizerEmail string    `db:"organizer_email" json:"organizer_email"`
}
