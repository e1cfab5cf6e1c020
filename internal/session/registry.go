package session

import (
	"context"
	"sync"
	"time"
)

// Factory builds the store of one client.
type Factory func(clientKey string) *Store

type entry struct {
	once     sync.Once
	store    *Store
	err      error
	lastUsed time.Time
}

// Registry keeps one initialized Store per client key. Stores idle longer
// than the idle timeout are closed and forgotten; signed-out stores use the
// shorter anonymous timeout. A later Get rebuilds the store from persistence.
type Registry struct {
	factory       Factory
	idle          time.Duration
	anonymousIdle time.Duration
	now           func() time.Time

	mu      sync.Mutex
	entries map[string]*entry

	stopOnce sync.Once
	stopCh   chan struct{}
}

type RegistryOption func(*Registry)

func WithIdleTimeout(idle, anonymous time.Duration) RegistryOption {
	return func(r *Registry) {
		if idle > 0 {
			r.idle = idle
		}
		if anonymous > 0 {
			r.anonymousIdle = anonymous
		}
	}
}

func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRegistry(factory Factory, opts ...RegistryOption) *Registry {
	r := &Registry{
		factory:       factory,
		idle:          30 * time.Minute,
		anonymousIdle: 2 * time.Minute,
		now:           time.Now,
		entries:       map[string]*entry{},
		stopCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.cleanupLoop(time.Minute)
	return r
}

// Get returns the store for key, creating and initializing it on first use.
// A store that was already cached is revalidated against the backend so an
// expired session is not served from memory.
func (r *Registry) Get(ctx context.Context, key string) (*Store, error) {
	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		e = &entry{}
		r.entries[key] = e
	}
	e.lastUsed = r.now()
	r.mu.Unlock()

	created := false
	e.once.Do(func() {
		created = true
		s := r.factory(key)
		err := s.Init(ctx)
		if err != nil {
			s.Close()
			s = nil
		}
		r.mu.Lock()
		e.store, e.err = s, err
		r.mu.Unlock()
	})
	if e.err != nil {
		r.forget(key, e)
		return nil, e.err
	}
	if !created {
		if err := e.store.Revalidate(ctx); err != nil {
			return nil, err
		}
	}
	return e.store, nil
}

func (r *Registry) forget(key string, e *entry) {
	r.mu.Lock()
	if r.entries[key] == e {
		delete(r.entries, key)
	}
	r.mu.Unlock()
}

// Drop closes and forgets the store for key.
func (r *Registry) Drop(key string) {
	r.mu.Lock()
	e, ok := r.entries[key]
	delete(r.entries, key)
	r.mu.Unlock()
	if ok && e.store != nil {
		e.store.Close()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.evictIdle()
		case <-r.stopCh:
			return
		}
	}
}

func (r *Registry) evictIdle() {
	now := r.now()
	var closing []*Store
	r.mu.Lock()
	for key, e := range r.entries {
		if e.store == nil {
			continue
		}
		limit := r.idle
		if !e.store.IsAuthenticated() {
			limit = r.anonymousIdle
		}
		if now.Sub(e.lastUsed) >= limit {
			delete(r.entries, key)
			closing = append(closing, e.store)
		}
	}
	r.mu.Unlock()
	for _, s := range closing {
		s.Close()
	}
}

// Close stops the cleanup loop and closes every store.
func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.mu.Lock()
	entries := r.entries
	r.entries = map[string]*entry{}
	r.mu.Unlock()
	for _, e := range entries {
		if e.store != nil {
			e.store.Close()
		}
	}
}
