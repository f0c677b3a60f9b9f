package test

import (
	"context"
	"sort"
	"sync"
	"time"

	"meetapp/internal/admission"
	"meetapp/internal/models"
)

// MemoryStore is an in-memory stand-in for db.Store. It keeps the same
// guarantees: a per-user lock around WithUserLock, a (user, meetup) unique
// key, and all-or-nothing writes.
type MemoryStore struct {
	mu            sync.Mutex
	users         map[int64]models.User
	meetups       map[int64]models.Meetup
	subscriptions []models.Subscription
	nextID        int64
	userLocks     map[int64]*sync.Mutex

	// Err, when set, is returned by every store call.
	Err error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     map[int64]models.User{},
		meetups:   map[int64]models.Meetup{},
		userLocks: map[int64]*sync.Mutex{},
	}
}

func (s *MemoryStore) AddUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *MemoryStore) AddMeetup(m models.Meetup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meetups[m.ID] = m
}

// Subscriptions returns the committed subscriptions of userID.
func (s *MemoryStore) Subscriptions(userID int64) []models.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Subscription
	for _, sub := range s.subscriptions {
		if sub.UserID == userID {
			out = append(out, sub)
		}
	}
	return out
}

func (s *MemoryStore) GetMeetup(ctx context.Context, id int64) (*models.Meetup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	m, ok := s.meetups[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if organizer, ok := s.users[m.OrganizerID]; ok {
		m.OrganizerName = organizer.Name
		m.OrganizerEmail = organizer.Email
		m.OrganizerLocale = organizer.Locale
	}
	return &m, nil
}

func (s *MemoryStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) WithUserLock(ctx context.Context, userID int64, fn func(admission.SubscriptionTx) error) error {
	s.mu.Lock()
	if s.Err != nil {
		s.mu.Unlock()
		return s.Err
	}
	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{store: s}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions = append(s.subscriptions, tx.pending...)
	return nil
}

func (s *MemoryStore) ListUpcomingSubscriptions(ctx context.Context, userID int64, now time.Time) ([]models.UpcomingSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := []models.UpcomingSubscription{}
	for _, sub := range s.subscriptions {
		m := s.meetups[sub.MeetupID]
		if sub.UserID != userID || !m.Date.After(now) {
			continue
		}
		organizer := s.users[m.OrganizerID]
		out = append(out, models.UpcomingSubscription{
			MeetupID:       m.ID,
			Title:          m.Title,
			Description:    m.Description,
			Location:       m.Location,
			Date:           m.Date,
			OrganizerName:  organizer.Name,
			OrganizerEmail: organizer.Email,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

type memoryTx struct {
	store   *MemoryStore
	pending []models.Subscription
}

func (t *memoryTx) all() []models.Subscription {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return append(append([]models.Subscription(nil), t.store.subscriptions...), t.pending...)
}

func (t *memoryTx) Exists(ctx context.Context, userID, meetupID int64) (bool, error) {
	for _, sub := range t.all() {
		if sub.UserID == userID && sub.MeetupID == meetupID {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) ExistsAt(ctx context.Context, userID int64, date time.Time) (bool, error) {
	subs := t.all()
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, sub := range subs {
		if sub.UserID == userID && t.store.meetups[sub.MeetupID].Date.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) Insert(ctx context.Context, userID, meetupID int64) (*models.Subscription, error) {
	exists, _ := t.Exists(ctx, userID, meetupID)
	if exists {
		return nil, models.ErrDuplicateSubscription
	}

	t.store.mu.Lock()
	t.store.nextID++
	sub := models.Subscription{
		ID:        t.store.nextID,
		UserID:    userID,
		MeetupID:  meetupID,
		CreatedAt: time.Now(),
	}
	t.store.mu.Unlock()

	t.pending = append(t.pending, sub)
	return &sub, nil
}
