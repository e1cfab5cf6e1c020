package journal

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"journal/api/internal/metrics"
	"journal/api/internal/store"
)

// Client is the query façade over the row store. Every method returns data
// and a *store.QueryError; none of them panic.
type Client struct {
	db               store.Backend
	log              *zap.Logger
	metrics          metrics.Recorder
	now              func() time.Time
	slotPrecondition bool
}

type Option func(*Client)

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

func WithMetrics(m metrics.Recorder) Option {
	return func(c *Client) { c.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithSlotPrecondition makes slot transitions conditional on the current
// state so that the first claim wins.
func WithSlotPrecondition(enabled bool) Option {
	return func(c *Client) { c.slotPrecondition = enabled }
}

func New(db store.Backend, opts ...Option) *Client {
	c := &Client{
		db:      db,
		log:     zap.NewNop(),
		metrics: metrics.Nop{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) timestamp() time.Time {
	return c.now().UTC()
}

// WithFallback runs enriched and, only if it fails, minimal. The outcome of
// minimal is returned as is; the first error is dropped.
func WithFallback[T any](ctx context.Context, enriched, minimal func(context.Context) (T, error)) (T, error) {
	v, err := enriched(ctx)
	if err == nil {
		return v, nil
	}
	return minimal(ctx)
}

func fallback[T any](c *Client, ctx context.Context, relation string, enriched, minimal func(context.Context) (T, error)) (T, error) {
	var cause error
	first := func(ctx context.Context) (T, error) {
		v, err := enriched(ctx)
		cause = err
		return v, err
	}
	retry := func(ctx context.Context) (T, error) {
		qe := store.AsQueryError(cause)
		c.log.Warn("enriched query failed, retrying without joins",
			zap.String("relation", relation),
			zap.String("code", qe.Code),
			zap.Error(cause),
		)
		c.metrics.RecordFallback(relation)
		return minimal(ctx)
	}
	v, err := WithFallback(ctx, first, retry)
	if err != nil {
		var zero T
		return zero, store.AsQueryError(err)
	}
	return v, nil
}

// selectInto runs q and decodes its rows into T.
func selectInto[T any](ctx context.Context, db store.Backend, q *store.Query) (T, error) {
	var out T
	res, err := db.Select(ctx, q)
	if err != nil {
		return out, store.AsQueryError(err)
	}
	if err := res.Decode(&out); err != nil {
		return out, store.AsQueryError(err)
	}
	return out, nil
}

func (c *Client) mutate(ctx context.Context, m *store.Mutation) (int64, error) {
	n, err := c.db.Mutate(ctx, m)
	if err != nil {
		qe := store.AsQueryError(err)
		c.log.Debug("mutation failed", zap.String("relation", m.Table()), zap.String("kind", m.Kind()), zap.String("code", qe.Code))
		return 0, qe
	}
	return n, nil
}

// NormalizeOne reduces a relational embed to a single value. Arrays yield
// their first element or nil, objects pass through, anything else is nil.
func NormalizeOne[T any](raw json.RawMessage) *T {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
			return nil
		}
		return &items[0]
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return &v
}

// SubmissionRef is the narrow row used for per-submission counts.
type SubmissionRef struct {
	SubmissionID string `json:"submission_id"`
}

func CountBySubmission(rows []SubmissionRef) map[string]int {
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.SubmissionID]++
	}
	return counts
}

// PageParams selects a 1-based page.
type PageParams struct {
	Page      int
	PageSize  int
	OrderBy   string
	Ascending bool
}

const DefaultPageSize = 10

func (p PageParams) bounds() (from, to int) {
	size := p.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	page := p.Page - 1
	if page < 0 {
		page = 0
	}
	from = page * size
	return from, from + size - 1
}

func (p PageParams) orderColumn(allowed ...string) (string, error) {
	if p.OrderBy == "" {
		return allowed[0], nil
	}
	for _, col := range allowed {
		if col == p.OrderBy {
			return col, nil
		}
	}
	return "", &store.QueryError{Message: "unsupported order column " + p.OrderBy, Code: store.CodeInvalidParameter}
}

type Page[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func selectPage[T any](ctx context.Context, db store.Backend, q *store.Query, p PageParams) (Page[T], error) {
	from, to := p.bounds()
	res, err := db.Select(ctx, q.CountExact().Range(from, to))
	if err != nil {
		return Page[T]{}, store.AsQueryError(err)
	}
	var items []T
	if err := res.Decode(&items); err != nil {
		return Page[T]{}, store.AsQueryError(err)
	}
	return Page[T]{Items: items, Count: res.CountOrZero()}, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
