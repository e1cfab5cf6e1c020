// Package session holds the signed-in user of one client and the profile
// derived from it.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"journal/api/internal/auth"
	"journal/api/internal/journal"
	"journal/api/internal/store"
)

type AuthBackend interface {
	GetSession(ctx context.Context) (*auth.Session, error)
	SetSession(ctx context.Context, accessToken, refreshToken string) (*auth.Session, error)
	SignOut(ctx context.Context) error
	OnAuthStateChange(fn auth.Listener) auth.Subscription
}

type ProfileSource interface {
	EnsureProfile(ctx context.Context, id journal.Identity) (*store.Profile, error)
}

// State is a snapshot of the store.
type State struct {
	Session     *auth.Session  `json:"session"`
	Profile     *store.Profile `json:"profile"`
	Initialized bool           `json:"initialized"`
}

func (s State) User() *auth.User {
	if s.Session == nil {
		return nil
	}
	u := s.Session.User
	return &u
}

func (s State) UserID() string {
	if s.Session == nil {
		return ""
	}
	return s.Session.User.ID
}

func (s State) IsAuthenticated() bool {
	return s.Session != nil && s.Session.User.ID != ""
}

const profileTimeout = 10 * time.Second

type Store struct {
	auth     AuthBackend
	profiles ProfileSource
	log      *zap.Logger

	mu         sync.RWMutex
	state      State
	generation uint64
	sub        *auth.Subscription
	watchers   map[int]func(State)
	nextWatch  int
}

func New(authBackend AuthBackend, profiles ProfileSource, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		auth:     authBackend,
		profiles: profiles,
		log:      log,
		watchers: map[int]func(State){},
	}
}

// Init loads the session once, subscribes to auth changes and derives the
// profile. Calling it again re-derives the profile only.
func (s *Store) Init(ctx context.Context) error {
	s.mu.RLock()
	initialized := s.state.Initialized
	s.mu.RUnlock()

	if !initialized {
		sess, err := s.auth.GetSession(ctx)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.state.Session = sess
		s.state.Initialized = true
		s.mu.Unlock()
	}

	s.mu.Lock()
	subscribe := s.sub == nil
	if subscribe {
		s.sub = &auth.Subscription{}
	}
	s.mu.Unlock()
	if subscribe {
		sub := s.auth.OnAuthStateChange(s.onAuthChange)
		s.mu.Lock()
		s.sub = &sub
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	sess := s.state.Session
	s.mu.Unlock()
	s.refreshProfile(ctx, gen, sess)

	s.notify()
	return nil
}

func (s *Store) onAuthChange(event auth.Event, sess *auth.Session) {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.state.Session = sess
	s.state.Initialized = true
	if sess == nil {
		s.state.Profile = nil
	}
	s.mu.Unlock()

	s.log.Debug("auth state changed", zap.String("event", string(event)))
	if sess != nil {
		ctx, cancel := context.WithTimeout(context.Background(), profileTimeout)
		s.refreshProfile(ctx, gen, sess)
		cancel()
	}
	s.notify()
}

// refreshProfile derives the profile for sess and stores it unless a newer
// session change happened meanwhile.
func (s *Store) refreshProfile(ctx context.Context, gen uint64, sess *auth.Session) {
	if sess == nil {
		return
	}
	profile, err := s.profiles.EnsureProfile(ctx, journal.Identity{
		ID:       sess.User.ID,
		Email:    sess.User.Email,
		Metadata: sess.User.Metadata,
	})
	if err != nil {
		s.log.Warn("ensure profile failed", zap.String("user_id", sess.User.ID), zap.Error(err))
		profile = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		s.log.Debug("discarding stale profile", zap.String("user_id", sess.User.ID))
		return
	}
	s.state.Profile = profile
}

// Revalidate asks the backend for the current session. A session the backend
// no longer reports, such as an expired one, is dropped along with its profile.
func (s *Store) Revalidate(ctx context.Context) error {
	sess, err := s.auth.GetSession(ctx)
	if err != nil {
		return err
	}
	if sess != nil {
		return nil
	}
	s.mu.Lock()
	cleared := s.state.Session != nil
	if cleared {
		s.generation++
		s.state.Session = nil
		s.state.Profile = nil
	}
	s.mu.Unlock()
	if cleared {
		s.log.Debug("session no longer valid")
		s.notify()
	}
	return nil
}

func (s *Store) SetSession(ctx context.Context, accessToken, refreshToken string) (State, error) {
	if _, err := s.auth.SetSession(ctx, accessToken, refreshToken); err != nil {
		return State{}, err
	}
	return s.Snapshot(), nil
}

// SignOut ends the backend session and clears the profile.
func (s *Store) SignOut(ctx context.Context) error {
	if err := s.auth.SignOut(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.generation++
	s.state.Profile = nil
	s.mu.Unlock()
	s.notify()
	return nil
}

// Close drops the auth subscription and all watchers.
func (s *Store) Close() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.watchers = map[int]func(State){}
	s.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) Session() *auth.Session { return s.Snapshot().Session }
func (s *Store) User() *auth.User       { return s.Snapshot().User() }
func (s *Store) Profile() *store.Profile {
	return s.Snapshot().Profile
}
func (s *Store) IsAuthenticated() bool { return s.Snapshot().IsAuthenticated() }
func (s *Store) IsInitialized() bool   { return s.Snapshot().Initialized }

// Watch calls fn with the current state and after every change until cancel.
func (s *Store) Watch(fn func(State)) (cancel func()) {
	s.mu.Lock()
	id := s.nextWatch
	s.nextWatch++
	s.watchers[id] = fn
	state := s.state
	s.mu.Unlock()

	fn(state)
	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	state := s.state
	watchers := make([]func(State), 0, len(s.watchers))
	for _, fn := range s.watchers {
		watchers = append(watchers, fn)
	}
	s.mu.RUnlock()

	for _, fn := range watchers {
		fn(state)
	}
}
