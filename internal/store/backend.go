package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Backend is the row-store surface the journal client consumes.
type Backend interface {
	Select(ctx context.Context, q *Query) (Result, error)
	Mutate(ctx context.Context, m *Mutation) (int64, error)
}

// Result holds rows as the backend returned them: a JSON array, or for
// maybe-single reads a single object or null. Count is set when an exact count
// was requested.
type Result struct {
	Rows  json.RawMessage
	Count *int64
}

func (r Result) Decode(v any) error {
	if len(r.Rows) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Rows, v); err != nil {
		return fmt.Errorf("decode rows: %w", err)
	}
	return nil
}

// CountOrZero returns the exact count, or 0 when none was reported.
func (r Result) CountOrZero() int {
	if r.Count == nil {
		return 0
	}
	return int(*r.Count)
}

// RowsResult builds a Result from Go values. It is meant for fakes in tests.
func RowsResult(rows any) Result {
	raw, err := json.Marshal(rows)
	if err != nil {
		return Result{Rows: json.RawMessage("[]")}
	}
	return Result{Rows: raw}
}

// CountResult builds a head-only Result carrying an exact count.
func CountResult(n int64) Result {
	return Result{Rows: json.RawMessage("[]"), Count: &n}
}

// singleFromRows reduces an array result for a maybe-single read.
func singleFromRows(rows json.RawMessage) (json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(rows, &items); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	switch len(items) {
	case 0:
		return json.RawMessage("null"), nil
	case 1:
		return items[0], nil
	default:
		return nil, &QueryError{Message: "JSON object requested, multiple (or no) rows returned", Code: CodeMultipleRows}
	}
}
