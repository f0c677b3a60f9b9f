// Package admission decides whether a user may subscribe to a meetup and,
// when admitted, records the subscription and hands a notification job to the
// queue.
package admission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"meetapp/internal/models"
	"meetapp/internal/notify"
	"meetapp/pkg/tasks"
)

// MeetupAccessor looks up meetups. It returns models.ErrNotFound for unknown ids.
type MeetupAccessor interface {
	GetMeetup(ctx context.Context, id int64) (*models.Meetup, error)
}

// UserDirectory resolves the subscriber's profile.
type UserDirectory interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// SubscriptionTx is the view of the subscription store available while the
// per-user exclusive section is held.
type SubscriptionTx interface {
	Exists(ctx context.Context, userID, meetupID int64) (bool, error)
	ExistsAt(ctx context.Context, userID int64, date time.Time) (bool, error)
	// Insert returns models.ErrDuplicateSubscription when the (user, meetup)
	// unique key rejects the row.
	Insert(ctx context.Context, userID, meetupID int64) (*models.Subscription, error)
}

// SubscriptionStore serializes all admission work for one user. Writes made
// through the tx are committed only when fn returns nil.
type SubscriptionStore interface {
	WithUserLock(ctx context.Context, userID int64, fn func(SubscriptionTx) error) error
}

// NotificationQueue accepts notification jobs without waiting for delivery.
type NotificationQueue interface {
	Enqueue(ctx context.Context, p tasks.SubscriptionMailPayload) (*notify.JobHandle, error)
}

// Confirmation is returned to the caller once a subscription is admitted.
type Confirmation struct {
	SubscriptionID int64     `json:"-"`
	MeetupID       int64     `json:"meetup_id"`
	Date           time.Time `json:"date"`
}

type Engine struct {
	meetups MeetupAccessor
	users   UserDirectory
	store   SubscriptionStore
	queue   NotificationQueue
	logger  *zap.Logger

	now       func() time.Time
	onOutcome func(outcome string)
}

type Option func(*Engine)

// WithClock replaces time.Now as the source of the current instant.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithOutcomeHook registers a callback invoked once per Subscribe call with
// "accepted", the rejection kind, or "error".
func WithOutcomeHook(fn func(outcome string)) Option {
	return func(e *Engine) { e.onOutcome = fn }
}

func NewEngine(meetups MeetupAccessor, users UserDirectory, store SubscriptionStore, queue NotificationQueue, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		meetups:   meetups,
		users:     users,
		store:     store,
		queue:     queue,
		logger:    logger,
		now:       time.Now,
		onOutcome: func(string) {},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Subscribe admits userID to meetupID. Checks run in a fixed order and the
// first failure is returned as an *Error. Any other error is an
// infrastructure fault and nothing was written.
func (e *Engine) Subscribe(ctx context.Context, userID, meetupID int64) (*Confirmation, error) {
	log := e.logger.With(zap.Int64("user_id", userID), zap.Int64("meetup_id", meetupID))

	meetup, err := e.meetups.GetMeetup(ctx, meetupID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, e.reject(log, ErrNotFound)
	}
	if err != nil {
		return nil, e.fail(log, fmt.Errorf("load meetup: %w", err))
	}

	if meetup.OrganizerID == userID {
		return nil, e.reject(log, ErrSelfSubscription)
	}

	if meetup.IsPast(e.now()) {
		return nil, e.reject(log, ErrPastMeetup)
	}

	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, e.fail(log, fmt.Errorf("load user: %w", err))
	}

	var sub *models.Subscription
	err = e.store.WithUserLock(ctx, userID, func(tx SubscriptionTx) error {
		exists, err := tx.Exists(ctx, userID, meetupID)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadySubscribed
		}

		conflict, err := tx.ExistsAt(ctx, userID, meetup.Date)
		if err != nil {
			return err
		}
		if conflict {
			return ErrScheduleConflict
		}

		sub, err = tx.Insert(ctx, userID, meetupID)
		if errors.Is(err, models.ErrDuplicateSubscription) {
			return ErrAlreadySubscribed
		}
		return err
	})

	var rejection *Error
	if errors.As(err, &rejection) {
		return nil, e.reject(log, rejection)
	}
	if err != nil {
		return nil, e.fail(log, fmt.Errorf("store subscription: %w", err))
	}

	// The subscription is committed: the caller going away must not stop the
	// notification from being queued.
	e.enqueue(context.WithoutCancel(ctx), log, sub, meetup, user)

	e.onOutcome("accepted")
	log.Info("subscription admitted", zap.Int64("subscription_id", sub.ID))

	return &Confirmation{
		SubscriptionID: sub.ID,
		MeetupID:       meetup.ID,
		Date:           meetup.Date,
	}, nil
}

func (e *Engine) enqueue(ctx context.Context, log *zap.Logger, sub *models.Subscription, meetup *models.Meetup, user *models.User) {
	payload := tasks.SubscriptionMailPayload{
		SubscriptionID: sub.ID,
		Meetup: tasks.MeetupSnapshot{
			ID:              meetup.ID,
			Title:           meetup.Title,
			Date:            meetup.Date,
			OrganizerName:   meetup.OrganizerName,
			OrganizerEmail:  meetup.OrganizerEmail,
			OrganizerLocale: meetup.OrganizerLocale,
		},
		UserName: user.Name,
	}

	handle, err := e.queue.Enqueue(ctx, payload)
	if err != nil {
		log.Error("failed to enqueue subscription mail",
			zap.Int64("subscription_id", sub.ID), zap.Error(err))
		return
	}
	log.Debug("subscription mail enqueued", zap.String("task_id", handle.ID))
}

func (e *Engine) reject(log *zap.Logger, rejection *Error) error {
	e.onOutcome(string(rejection.Kind))
	log.Info("subscription rejected", zap.String("reason", string(rejection.Kind)))
	return rejection
}

func (e *Engine) fail(log *zap.Logger, err error) error {
	e.onOutcome("error")
	log.Error("subscription failed", zap.Error(err))
	return err
}
