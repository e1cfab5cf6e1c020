package journal

import (
	"context"
	"strings"
	"sync"
	"time"

	"journal/api/internal/store"
)

type fakeBackend struct {
	mu        sync.Mutex
	selectFn  func(context.Context, *store.Query) (store.Result, error)
	mutateFn  func(context.Context, *store.Mutation) (int64, error)
	queries   []string
	mutations []*store.Mutation
}

func (f *fakeBackend) Select(ctx context.Context, q *store.Query) (store.Result, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q.String())
	f.mu.Unlock()
	if f.selectFn != nil {
		return f.selectFn(ctx, q)
	}
	return store.RowsResult([]any{}), nil
}

func (f *fakeBackend) Mutate(ctx context.Context, m *store.Mutation) (int64, error) {
	f.mu.Lock()
	f.mutations = append(f.mutations, m)
	f.mu.Unlock()
	if f.mutateFn != nil {
		return f.mutateFn(ctx, m)
	}
	return 1, nil
}

func (f *fakeBackend) queriesMatching(substr string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, q := range f.queries {
		if strings.Contains(q, substr) {
			out = append(out, q)
		}
	}
	return out
}

type recordingMetrics struct {
	mu          sync.Mutex
	fallbacks   []string
	decisions   []string
	transitions []string
}

func (r *recordingMetrics) RecordFallback(relation string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks = append(r.fallbacks, relation)
}

func (r *recordingMetrics) RecordDecision(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, status)
}

func (r *recordingMetrics) RecordSlotTransition(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, status)
}

func (r *recordingMetrics) RecordHTTPStatus(int) {}
func (r *recordingMetrics) RecordSearch(string) {}

var fixedNow = time.Date(2026, 2, 9, 10, 30, 0, 0, time.UTC)

func newTestClient(db store.Backend, opts ...Option) *Client {
	return New(db, append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)...)
}

var errForbidden = &store.QueryError{Message: "permission denied for table users", Code: store.CodeInsufficientPrivilege}
