package admission_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"meetapp/internal/admission"
	"meetapp/internal/models"
	"meetapp/internal/notify"
	"meetapp/internal/test"
	"meetapp/pkg/tasks"
)

const (
	organizerID = int64(1)
	userID      = int64(2)

	tomorrowMeetup = int64(10)
	sameTimeMeetup = int64(11)
	pastMeetup     = int64(12)
	laterMeetup    = int64(13)
)

var now = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store    *test.MemoryStore
	enqueuer *test.MockTaskEnqueuer
	engine   *admission.Engine
	outcomes []string
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    test.NewMemoryStore(),
		enqueuer: &test.MockTaskEnqueuer{},
		clock:    now,
	}
	f.store.AddUser(models.User{ID: organizerID, Name: "Ana", Email: "ana@example.com", Locale: "pt-BR"})
	f.store.AddUser(models.User{ID: userID, Name: "Bruno", Email: "bruno@example.com", Locale: "en-US"})

	tomorrow := now.Add(24 * time.Hour)
	f.store.AddMeetup(models.Meetup{ID: tomorrowMeetup, OrganizerID: organizerID, Title: "Go Meetup", Location: "Centro", Date: tomorrow})
	f.store.AddMeetup(models.Meetup{ID: sameTimeMeetup, OrganizerID: organizerID, Title: "Rust Meetup", Location: "Centro", Date: tomorrow})
	f.store.AddMeetup(models.Meetup{ID: pastMeetup, OrganizerID: organizerID, Title: "Old Meetup", Location: "Centro", Date: now.Add(-24 * time.Hour)})
	f.store.AddMeetup(models.Meetup{ID: laterMeetup, OrganizerID: organizerID, Title: "Later Meetup", Location: "Centro", Date: tomorrow.Add(time.Hour)})

	queue := notify.NewQueue(f.enqueuer, notify.QueueConfig{Attempts: 1, MaxRetry: 5}, zap.NewNop(), nil)
	f.engine = f.newEngine(queue)
	return f
}

func (f *fixture) newEngine(queue admission.NotificationQueue) *admission.Engine {
	var mu sync.Mutex
	return admission.NewEngine(f.store, f.store, f.store, queue, zap.NewNop(),
		admission.WithClock(func() time.Time { return f.clock }),
		admission.WithOutcomeHook(func(outcome string) {
			mu.Lock()
			defer mu.Unlock()
			f.outcomes = append(f.outcomes, outcome)
		}),
	)
}

func TestSubscribe_Admitted(t *testing.T) {
	f := newFixture(t)

	conf, err := f.engine.Subscribe(context.Background(), userID, tomorrowMeetup)
	require.NoError(t, err)

	assert.Equal(t, tomorrowMeetup, conf.MeetupID)
	assert.True(t, now.Add(24*time.Hour).Equal(conf.Date))
	assert.Len(t, f.store.Subscriptions(userID), 1)

	enqueued := f.enqueuer.Tasks()
	require.Len(t, enqueued, 1)
	assert.Equal(t, tasks.TypeSubscriptionMail, enqueued[0].Type())

	var p tasks.SubscriptionMailPayload
	require.NoError(t, json.Unmarshal(enqueued[0].Payload(), &p))
	assert.Equal(t, conf.SubscriptionID, p.SubscriptionID)
	assert.Equal(t, "Go Meetup", p.Meetup.Title)
	assert.Equal(t, "Ana", p.Meetup.OrganizerName)
	assert.Equal(t, "ana@example.com", p.Meetup.OrganizerEmail)
	assert.Equal(t, "pt-BR", p.Meetup.OrganizerLocale)
	assert.True(t, conf.Date.Equal(p.Meetup.Date))
	assert.Equal(t, "Bruno", p.UserName)

	assert.Equal(t, []string{"accepted"}, f.outcomes)
}

func TestSubscribe_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		userID   int64
		meetupID int64
		want     *admission.Error
	}{
		{"unknown meetup", userID, 999, admission.ErrNotFound},
		{"organizer subscribing to own meetup", organizerID, tomorrowMeetup, admission.ErrSelfSubscription},
		{"organizer check runs before past check", organizerID, pastMeetup, admission.ErrSelfSubscription},
		{"meetup in the past", userID, pastMeetup, admission.ErrPastMeetup},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			conf, err := f.engine.Subscribe(context.Background(), tt.userID, tt.meetupID)
			assert.Nil(t, conf)
			assert.ErrorIs(t, err, tt.want)

			assert.Empty(t, f.store.Subscriptions(tt.userID))
			assert.Empty(t, f.enqueuer.Tasks())
			assert.Equal(t, []string{string(tt.want.Kind)}, f.outcomes)
		})
	}
}

func TestSubscribe_AlreadySubscribed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Subscribe(ctx, userID, tomorrowMeetup)
	require.NoError(t, err)

	_, err = f.engine.Subscribe(ctx, userID, tomorrowMeetup)
	assert.ErrorIs(t, err, admission.ErrAlreadySubscribed)

	assert.Len(t, f.store.Subscriptions(userID), 1)
	assert.Len(t, f.enqueuer.Tasks(), 1)
}

func TestSubscribe_ScheduleConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Subscribe(ctx, userID, tomorrowMeetup)
	require.NoError(t, err)

	_, err = f.engine.Subscribe(ctx, userID, sameTimeMeetup)
	assert.ErrorIs(t, err, admission.ErrScheduleConflict)

	// Only exact start instants conflict.
	_, err = f.engine.Subscribe(ctx, userID, laterMeetup)
	assert.NoError(t, err)

	assert.Len(t, f.store.Subscriptions(userID), 2)
	assert.Len(t, f.enqueuer.Tasks(), 2)
}

func TestSubscribe_PastCheckRunsBeforeDuplicateCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Subscribe(ctx, userID, tomorrowMeetup)
	require.NoError(t, err)

	// The meetup has started since; being past is reported first.
	f.clock = now.Add(48 * time.Hour)
	_, err = f.engine.Subscribe(ctx, userID, tomorrowMeetup)
	assert.ErrorIs(t, err, admission.ErrPastMeetup)
}

func TestSubscribe_ConcurrentIdenticalRequests(t *testing.T) {
	f := newFixture(t)
	const n = 25

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		successes  int
		duplicates int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.Subscribe(context.Background(), userID, tomorrowMeetup)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, admission.ErrAlreadySubscribed):
				duplicates++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, duplicates)
	assert.Len(t, f.store.Subscriptions(userID), 1)
	assert.Len(t, f.enqueuer.Tasks(), 1)
}

func TestSubscribe_ConcurrentSameInstant(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, meetupID := range []int64{tomorrowMeetup, sameTimeMeetup} {
		wg.Add(1)
		go func(i int, meetupID int64) {
			defer wg.Done()
			_, errs[i] = f.engine.Subscribe(context.Background(), userID, meetupID)
		}(i, meetupID)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, admission.ErrScheduleConflict)
			failures++
		}
	}
	assert.Equal(t, 1, failures)
	assert.Len(t, f.store.Subscriptions(userID), 1)
}

func TestSubscribe_EnqueueFailureDoesNotFailAdmission(t *testing.T) {
	f := newFixture(t)
	f.enqueuer.Errs = []error{errors.New("redis unavailable")}

	conf, err := f.engine.Subscribe(context.Background(), userID, tomorrowMeetup)
	require.NoError(t, err)
	assert.Equal(t, tomorrowMeetup, conf.MeetupID)
	assert.Len(t, f.store.Subscriptions(userID), 1)
	assert.Empty(t, f.enqueuer.Tasks())
}

func TestSubscribe_StorageFaultIsNotARejection(t *testing.T) {
	f := newFixture(t)
	f.store.Err = errors.New("connection refused")

	_, err := f.engine.Subscribe(context.Background(), userID, tomorrowMeetup)
	require.Error(t, err)

	var rejection *admission.Error
	assert.False(t, errors.As(err, &rejection))
	assert.Equal(t, []string{"error"}, f.outcomes)
}

// cancellingStore cancels the request context right after the subscription
// commits, as a client disconnect would.
type cancellingStore struct {
	*test.MemoryStore
	cancel context.CancelFunc
}

func (s *cancellingStore) WithUserLock(ctx context.Context, userID int64, fn func(admission.SubscriptionTx) error) error {
	err := s.MemoryStore.WithUserLock(ctx, userID, fn)
	s.cancel()
	return err
}

type ctxRecordingQueue struct {
	ctxErr error
	calls  int
}

func (q *ctxRecordingQueue) Enqueue(ctx context.Context, p tasks.SubscriptionMailPayload) (*notify.JobHandle, error) {
	q.calls++
	q.ctxErr = ctx.Err()
	return &notify.JobHandle{ID: tasks.SubscriptionMailTaskID(p.SubscriptionID)}, nil
}

func TestSubscribe_EnqueueSurvivesCancellationAfterCommit(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := &ctxRecordingQueue{}
	store := &cancellingStore{MemoryStore: f.store, cancel: cancel}
	engine := admission.NewEngine(f.store, f.store, store, queue, zap.NewNop(),
		admission.WithClock(func() time.Time { return now }))

	_, err := engine.Subscribe(ctx, userID, tomorrowMeetup)
	require.NoError(t, err)
	assert.Equal(t, 1, queue.calls)
	assert.NoError(t, queue.ctxErr)
}

func TestSubscribe_CancelledBeforeCommitWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.Subscribe(ctx, userID, tomorrowMeetup)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.store.Subscriptions(userID))
	assert.Empty(t, f.enqueuer.Tasks())
}

// duplicateOnInsertStore simulates losing a race to the storage unique key.
type duplicateOnInsertStore struct{}

func (duplicateOnInsertStore) WithUserLock(ctx context.Context, userID int64, fn func(admission.SubscriptionTx) error) error {
	return fn(duplicateTx{})
}

type duplicateTx struct{}

func (duplicateTx) Exists(context.Context, int64, int64) (bool, error)       { return false, nil }
func (duplicateTx) ExistsAt(context.Context, int64, time.Time) (bool, error) { return false, nil }
func (duplicateTx) Insert(context.Context, int64, int64) (*models.Subscription, error) {
	return nil, models.ErrDuplicateSubscription
}

func TestSubscribe_UniqueKeyViolationIsAlreadySubscribed(t *testing.T) {
	f := newFixture(t)
	engine := admission.NewEngine(f.store, f.store, duplicateOnInsertStore{}, &ctxRecordingQueue{}, zap.NewNop(),
		admission.WithClock(func() time.Time { return now }))

	_, err := engine.Subscribe(context.Background(), userID, tomorrowMeetup)
	assert.ErrorIs(t, err, admission.ErrAlreadySubscribed)
}
