package db

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"meetapp/internal/admission"
	"meetapp/internal/models"
)

const uniqueViolation = pq.ErrorCode("23505")

// subscriptionLockClass namespaces per-user locks in the two-key advisory lock
// space, apart from single-key locks such as the migration lock.
const subscriptionLockClass int32 = 0x53554253

// userLockKey folds a user id into the int4 second key. Ids that collide only
// share a lock.
func userLockKey(userID int64) int32 {
	return int32(userID % math.MaxInt32)
}

// WithUserLock runs fn inside a transaction that holds a transaction-scoped
// advisory lock keyed by (subscriptionLockClass, userID). Concurrent callers for the same user are
// serialized until the transaction ends. The transaction commits when fn
// returns nil and rolls back otherwise.
func (s *Store) WithUserLock(ctx context.Context, userID int64, fn func(admission.SubscriptionTx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1, $2)", subscriptionLockClass, userLockKey(userID)); err != nil {
		return fmt.Errorf("lock user %d: %w", userID, err)
	}

	if err := fn(&subscriptionTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type subscriptionTx struct {
	tx *sqlx.Tx
}

func (t *subscriptionTx) Exists(ctx context.Context, userID, meetupID int64) (bool, error) {
	var exists bool
	err := t.tx.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM subscriptions WHERE user_id = $1 AND meetup_id = $2)",
		userID, meetupID)
	if err != nil {
		return false, fmt.Errorf("check subscription: %w", err)
	}
	return exists, nil
}

func (t *subscriptionTx) ExistsAt(ctx context.Context, userID int64, date time.Time) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1
			FROM subscriptions s
			JOIN meetups m ON m.id = s.meetup_id
			WHERE s.user_id = $1 AND m.date = $2
		)
	`
	var exists bool
	if err := t.tx.GetContext(ctx, &exists, query, userID, date); err != nil {
		return false, fmt.Errorf("check schedule: %w", err)
	}
	return exists, nil
}

func (t *subscriptionTx) Insert(ctx context.Context, userID, meetupID int64) (*models.Subscription, error) {
	query := `
		INSERT INTO subscriptions (user_id, meetup_id)
		VALUES ($1, $2)
		RETURNING id, user_id, meetup_id, created_at
	`
	sub := &models.Subscription{}
	err := t.tx.GetContext(ctx, sub, query, userID, meetupID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, ErrDuplicateSubscription
		}
		return nil, fmt.Errorf("insert subscription: %w", err)
	}
	return sub, nil
}

// ListUpcomingSubscriptions returns the user's subscriptions to meetups that
// start after now, soonest first.
func (s *Store) ListUpcomingSubscriptions(ctx context.Context, userID int64, now time.Time) ([]models.UpcomingSubscription, error) {
	query := `
		SELECT s.meetup_id, m.title, m.description, m.location, m.date,
		       u.name AS organizer_name, u.email AS organizer_email
		FROM subscriptions s
		JOIN meetups m ON m.id = s.meetup_id
		JOIN users u ON u.id = m.user_id
		WHERE s.user_id = $1 AND m.date > $2
		ORDER BY m.date
	`
	subscriptions := []models.UpcomingSubscription{}
	if err := s.db.SelectContext(ctx, &subscriptions, query, userID, now); err != nil {
		return nil, fmt.Errorf("list subscriptions for user %d: %w", userID, err)
	}
	return subscriptions, nil
}
