package auth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type Event string

const (
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
)

type User struct {
	ID       string         `json:"id"`
	Email    string         `json:"email,omitempty"`
	Metadata map[string]any `json:"user_metadata,omitempty"`
}

type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Persistence keeps the current session across restarts.
type Persistence interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

type Listener func(event Event, s *Session)

type Subscription struct {
	cancel func()
}

func (s Subscription) Unsubscribe() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Client holds one client's authenticated session.
type Client struct {
	secret  []byte
	persist Persistence
	now     func() time.Time

	mu        sync.Mutex
	loaded    bool
	current   *Session
	listeners map[int]Listener
	nextID    int
}

type ClientOption func(*Client)

// WithClientClock sets the clock used to decide whether a session expired.
func WithClientClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

func NewClient(secret []byte, persist Persistence, opts ...ClientOption) *Client {
	c := &Client{
		secret:    secret,
		persist:   persist,
		now:       time.Now,
		listeners: map[int]Listener{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetSession returns the current session, loading it from persistence on
// first use. An expired session is cleared and reported as absent.
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	if !c.loaded {
		s, err := c.persist.Load(ctx)
		if err != nil {
			c.mu.Unlock()
			return nil, fmt.Errorf("load session: %w", err)
		}
		c.current = s
		c.loaded = true
	}
	current := c.current
	expired := current != nil && !current.ExpiresAt.After(c.now())
	if expired {
		c.current = nil
	}
	c.mu.Unlock()

	if expired {
		if err := c.persist.Clear(ctx); err != nil {
			return nil, fmt.Errorf("clear expired session: %w", err)
		}
		c.emit(EventSignedOut, nil)
		return nil, nil
	}
	return copySession(current), nil
}

// SetSession verifies the access token and makes it the current session.
func (c *Client) SetSession(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	claims, err := ParseToken(c.secret, accessToken)
	if err != nil {
		return nil, err
	}
	next := Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    claims.ExpiresAt.Time,
		User: User{
			ID:       claims.Subject,
			Email:    claims.Email,
			Metadata: claims.UserMetadata,
		},
	}
	if err := c.persist.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	c.mu.Lock()
	event := EventSignedIn
	if c.current != nil && c.current.User.ID == next.User.ID {
		event = EventTokenRefreshed
	}
	c.current = &next
	c.loaded = true
	c.mu.Unlock()

	c.emit(event, copySession(&next))
	return copySession(&next), nil
}

func (c *Client) SignOut(ctx context.Context) error {
	if err := c.persist.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	c.mu.Lock()
	c.current = nil
	c.loaded = true
	c.mu.Unlock()

	c.emit(EventSignedOut, nil)
	return nil
}

// OnAuthStateChange registers fn for every later session change.
func (c *Client) OnAuthStateChange(fn Listener) Subscription {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return Subscription{cancel: func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}}
}

func (c *Client) emit(event Event, s *Session) {
	c.mu.Lock()
	listeners := make([]Listener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(event, copySession(s))
	}
}

func copySession(s *Session) *Session {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}
