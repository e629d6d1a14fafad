package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/baculator/internal/domain/model"
	"github.com/okian/baculator/pkg/metrics"
)

const memoryBackend = "memory"

// MemoryStore is a Store kept in process memory, guarded by a single RWMutex.
type MemoryStore struct {
	mu       sync.RWMutex
	opts     Options
	profiles map[string]model.UserProfile
	sessions map[uuid.UUID]model.Session
	byUser   map[string][]uuid.UUID // session ids in start order
	open     map[string]uuid.UUID   // user -> open session id
	drinks   map[uuid.UUID][]model.DrinkEntry
	drinkIDs map[uuid.UUID]struct{}
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		opts:     ApplyOptions(opts...),
		profiles: make(map[string]model.UserProfile),
		sessions: make(map[uuid.UUID]model.Session),
		byUser:   make(map[string][]uuid.UUID),
		open:     make(map[string]uuid.UUID),
		drinks:   make(map[uuid.UUID][]model.DrinkEntry),
		drinkIDs: make(map[uuid.UUID]struct{}),
	}
}

func observe(op string, start time.Time) {
	metrics.RecordRepositoryLatency(memoryBackend, op, float64(time.Since(start).Microseconds())/1000)
}

// SaveProfile implements Store.SaveProfile.
func (s *MemoryStore) SaveProfile(ctx context.Context, p model.UserProfile) error {
	defer observe("save_profile", time.Now())

	s.mu.Lock()
	s.profiles[p.UserID] = p
	s.mu.Unlock()
	return nil
}

// GetProfile implements Store.GetProfile.
func (s *MemoryStore) GetProfile(ctx context.Context, userID string) (model.UserProfile, error) {
	defer observe("get_profile", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return model.UserProfile{}, fmt.Errorf("profile %s: %w", userID, ErrNotFound)
	}
	return p, nil
}

// current returns the user's open session after applying the idle rule.
// Must be called with s.mu held for writing.
func (s *MemoryStore) current(userID string, now time.Time) (model.Session, bool) {
	id, ok := s.open[userID]
	if !ok {
		return model.Session{}, false
	}
	sess := s.sessions[id]
	if sess.Idle(now, s.opts.IdleTimeout) {
		s.finish(sess, s.opts.IdleClosedAt(sess.LastActivity()))
		return model.Session{}, false
	}
	return sess, true
}

func (s *MemoryStore) finish(sess model.Session, at time.Time) model.Session {
	sess.FinishedAt = &at
	s.sessions[sess.ID] = sess
	delete(s.open, sess.UserID)
	return sess
}

// OpenSession implements Store.OpenSession.
func (s *MemoryStore) OpenSession(ctx context.Context, userID, name string, now time.Time) (model.Session, bool, error) {
	defer observe("open_session", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.current(userID, now); ok {
		return sess, false, nil
	}
	sess := model.Session{ID: uuid.New(), UserID: userID, Name: name, StartedAt: now}
	s.sessions[sess.ID] = sess
	s.byUser[userID] = append(s.byUser[userID], sess.ID)
	s.open[userID] = sess.ID
	return sess, true, nil
}

// CloseSession implements Store.CloseSession.
func (s *MemoryStore) CloseSession(ctx context.Context, userID string, now time.Time) (model.Session, error) {
	defer observe("close_session", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.current(userID, now)
	if !ok {
		return model.Session{}, ErrNoOpenSession
	}
	return s.finish(sess, now), nil
}

// CurrentSession implements Store.CurrentSession.
func (s *MemoryStore) CurrentSession(ctx context.Context, userID string, now time.Time) (model.Session, error) {
	defer observe("current_session", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.current(userID, now)
	if !ok {
		return model.Session{}, ErrNoOpenSession
	}
	return sess, nil
}

// ListSessions implements Store.ListSessions.
func (s *MemoryStore) ListSessions(ctx context.Context, userID string) ([]model.Session, error) {
	defer observe("list_sessions", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byUser[userID]
	out := make([]model.Session, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		out = append(out, s.sessions[ids[i]])
	}
	return out, nil
}

// AddDrink implements Store.AddDrink.
func (s *MemoryStore) AddDrink(ctx context.Context, userID string, entry model.DrinkEntry, now time.Time) (model.DrinkEntry, error) {
	defer observe("add_drink", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.current(userID, now)
	if !ok {
		return model.DrinkEntry{}, ErrNoOpenSession
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if _, dup := s.drinkIDs[entry.ID]; dup {
		return model.DrinkEntry{}, fmt.Errorf("drink %s: %w", entry.ID, ErrConflict)
	}
	entry.SessionID = sess.ID
	entry.CreatedAt = now

	s.drinkIDs[entry.ID] = struct{}{}
	s.drinks[sess.ID] = append(s.drinks[sess.ID], entry)
	s.touch(sess)
	return entry, nil
}

// touch recomputes the session's last drink time from its drinks.
// Must be called with s.mu held for writing.
func (s *MemoryStore) touch(sess model.Session) {
	sess.LastDrinkAt = nil
	for _, d := range s.drinks[sess.ID] {
		if sess.LastDrinkAt == nil || d.FinishedAt.After(*sess.LastDrinkAt) {
			last := d.FinishedAt
			sess.LastDrinkAt = &last
		}
	}
	s.sessions[sess.ID] = sess
}

// drinkIndex locates a drink of the user's open session.
// Must be called with s.mu held for writing.
func (s *MemoryStore) drinkIndex(userID string, drinkID uuid.UUID, now time.Time) (model.Session, int, error) {
	sess, ok := s.current(userID, now)
	if !ok {
		return model.Session{}, 0, ErrNoOpenSession
	}
	for i, d := range s.drinks[sess.ID] {
		if d.ID == drinkID {
			return sess, i, nil
		}
	}
	return model.Session{}, 0, fmt.Errorf("drink %s: %w", drinkID, ErrNotFound)
}

// UpdateDrink implements Store.UpdateDrink.
func (s *MemoryStore) UpdateDrink(ctx context.Context, userID string, entry model.DrinkEntry, now time.Time) (model.DrinkEntry, error) {
	defer observe("update_drink", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, i, err := s.drinkIndex(userID, entry.ID, now)
	if err != nil {
		return model.DrinkEntry{}, err
	}
	stored := &s.drinks[sess.ID][i]
	stored.Standards = entry.Standards
	stored.FinishedAt = entry.FinishedAt
	out := *stored
	s.touch(sess)
	return out, nil
}

// DeleteDrink implements Store.DeleteDrink.
func (s *MemoryStore) DeleteDrink(ctx context.Context, userID string, drinkID uuid.UUID, now time.Time) error {
	defer observe("delete_drink", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, i, err := s.drinkIndex(userID, drinkID, now)
	if err != nil {
		return err
	}
	list := s.drinks[sess.ID]
	s.drinks[sess.ID] = append(list[:i:i], list[i+1:]...)
	delete(s.drinkIDs, drinkID)
	s.touch(sess)
	return nil
}

// ListDrinks implements Store.ListDrinks.
func (s *MemoryStore) ListDrinks(ctx context.Context, sessionID uuid.UUID) ([]model.DrinkEntry, error) {
	defer observe("list_drinks", time.Now())

	s.mu.RLock()
	out := append([]model.DrinkEntry(nil), s.drinks[sessionID]...)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].FinishedAt.Before(out[j].FinishedAt) })
	if out == nil {
		out = []model.DrinkEntry{}
	}
	return out, nil
}

// ActiveSessions implements Store.ActiveSessions.
func (s *MemoryStore) ActiveSessions(ctx context.Context, now time.Time) ([]model.Session, error) {
	defer observe("active_sessions", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Session, 0, len(s.open))
	for _, id := range s.open {
		if sess := s.sessions[id]; !sess.Idle(now, s.opts.IdleTimeout) {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

// CloseIdleSessions implements Store.CloseIdleSessions.
func (s *MemoryStore) CloseIdleSessions(ctx context.Context, now time.Time) (int, error) {
	defer observe("close_idle", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	closed := 0
	for _, id := range s.open {
		if sess := s.sessions[id]; sess.Idle(now, s.opts.IdleTimeout) {
			s.finish(sess, s.opts.IdleClosedAt(sess.LastActivity()))
			closed++
		}
	}
	return closed, nil
}

// Count implements Store.Count.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.open), nil
}
