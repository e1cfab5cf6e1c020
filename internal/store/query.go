package store

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

const (
	TableSubmissions          = "submissions"
	TableComments             = "comments"
	TableReviewOpinions       = "review_opinions"
	TableReviewOpinionReplies = "review_opinion_replies"
	TableReviewSlots          = "review_slots"
	TableAnnouncements        = "announcements"
	TableUsers                = "users"
	TableStatsIndexes         = "stats_indexes"
)

var allowedTables = map[string]bool{
	TableSubmissions:          true,
	TableComments:             true,
	TableReviewOpinions:       true,
	TableReviewOpinionReplies: true,
	TableReviewSlots:          true,
	TableAnnouncements:        true,
	TableUsers:                true,
	TableStatsIndexes:         true,
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

type filterOp string

const (
	opEq      filterOp = "eq"
	opIn      filterOp = "in"
	opGte     filterOp = "gte"
	opLt      filterOp = "lt"
	opNotNull filterOp = "not_null"
	opILike   filterOp = "ilike"
)

type filter struct {
	op     filterOp
	column string
	value  any
}

type order struct {
	column    string
	ascending bool
}

type embedSpec struct {
	alias   string
	table   string
	fk      string
	columns []string
}

// Query is a read against one relation. Builder methods return the receiver so
// calls chain the way the hosted backend's client does.
type Query struct {
	table       string
	columns     []string
	embeds      []embedSpec
	filters     []filter
	orders      []order
	offset      int
	limit       int
	count       bool
	head        bool
	maybeSingle bool
}

func From(table string) *Query {
	return &Query{table: table, limit: -1}
}

func (q *Query) Table() string { return q.table }

func (q *Query) Select(columns ...string) *Query {
	q.columns = append(q.columns, columns...)
	return q
}

// Embed joins rows of table whose id equals the fk column of this relation.
// The joined rows arrive under alias as a JSON array.
func (q *Query) Embed(alias, table, fk string, columns ...string) *Query {
	q.embeds = append(q.embeds, embedSpec{alias: alias, table: table, fk: fk, columns: columns})
	return q
}

func (q *Query) Eq(column string, value any) *Query {
	q.filters = append(q.filters, filter{op: opEq, column: column, value: value})
	return q
}

func (q *Query) In(column string, values ...string) *Query {
	q.filters = append(q.filters, filter{op: opIn, column: column, value: values})
	return q
}

func (q *Query) Gte(column string, value any) *Query {
	q.filters = append(q.filters, filter{op: opGte, column: column, value: value})
	return q
}

func (q *Query) Lt(column string, value any) *Query {
	q.filters = append(q.filters, filter{op: opLt, column: column, value: value})
	return q
}

func (q *Query) NotNull(column string) *Query {
	q.filters = append(q.filters, filter{op: opNotNull, column: column})
	return q
}

func (q *Query) ILike(column, pattern string) *Query {
	q.filters = append(q.filters, filter{op: opILike, column: column, value: pattern})
	return q
}

func (q *Query) Order(column string, ascending bool) *Query {
	q.orders = append(q.orders, order{column: column, ascending: ascending})
	return q
}

// Range selects rows from..to inclusive, zero based.
func (q *Query) Range(from, to int) *Query {
	if from < 0 {
		from = 0
	}
	q.offset = from
	q.limit = to - from + 1
	if q.limit < 0 {
		q.limit = 0
	}
	return q
}

func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

func (q *Query) CountExact() *Query {
	q.count = true
	return q
}

// Head asks for the count only; no rows are returned.
func (q *Query) Head() *Query {
	q.head = true
	q.count = true
	return q
}

// MaybeSingle expects zero or one row. The result holds the row object or null.
func (q *Query) MaybeSingle() *Query {
	q.maybeSingle = true
	return q
}

func (q *Query) IsMaybeSingle() bool { return q.maybeSingle }
func (q *Query) IsHead() bool        { return q.head }
func (q *Query) WantsCount() bool    { return q.count }

// HasEmbeds reports whether the query joins other relations.
func (q *Query) HasEmbeds() bool { return len(q.embeds) > 0 }

// String renders the query in the backend's URL vocabulary. It is used for
// logging and for matching in tests.
func (q *Query) String() string {
	var b strings.Builder
	b.WriteString(q.table)
	b.WriteString("?select=")
	parts := append([]string(nil), q.columns...)
	for _, e := range q.embeds {
		parts = append(parts, fmt.Sprintf("%s:%s(%s)", e.alias, e.table, strings.Join(e.columns, ",")))
	}
	b.WriteString(strings.Join(parts, ","))
	for _, f := range q.filters {
		b.WriteString("&")
		b.WriteString(f.column)
		b.WriteString("=")
		b.WriteString(string(f.op))
		if f.op != opNotNull {
			fmt.Fprintf(&b, ".%v", f.value)
		}
	}
	for _, o := range q.orders {
		dir := "desc"
		if o.ascending {
			dir = "asc"
		}
		fmt.Fprintf(&b, "&order=%s.%s", o.column, dir)
	}
	if q.offset > 0 {
		fmt.Fprintf(&b, "&offset=%d", q.offset)
	}
	if q.limit >= 0 {
		fmt.Fprintf(&b, "&limit=%d", q.limit)
	}
	return b.String()
}

func (q *Query) validate() error {
	if !allowedTables[q.table] {
		return fmt.Errorf("unknown relation %q", q.table)
	}
	for _, c := range q.columns {
		if c != "*" && !identPattern.MatchString(c) {
			return fmt.Errorf("invalid column %q", c)
		}
	}
	for _, e := range q.embeds {
		if !allowedTables[e.table] {
			return fmt.Errorf("unknown relation %q", e.table)
		}
		if !identPattern.MatchString(e.alias) || !identPattern.MatchString(e.fk) {
			return fmt.Errorf("invalid embed %s:%s", e.alias, e.table)
		}
		for _, c := range e.columns {
			if !identPattern.MatchString(c) {
				return fmt.Errorf("invalid column %q", c)
			}
		}
	}
	for _, f := range q.filters {
		if !identPattern.MatchString(f.column) {
			return fmt.Errorf("invalid filter column %q", f.column)
		}
	}
	for _, o := range q.orders {
		if !identPattern.MatchString(o.column) {
			return fmt.Errorf("invalid order column %q", o.column)
		}
	}
	return nil
}

type mutationKind int

const (
	mutationInsert mutationKind = iota
	mutationUpsert
	mutationUpdate
	mutationDelete
)

// Mutation writes to one relation. Values are JSON objects keyed by column.
type Mutation struct {
	kind       mutationKind
	table      string
	values     []map[string]json.RawMessage
	onConflict []string
	filters    []filter
	err        error
}

// Insert adds one row per value. Each value must marshal to a JSON object.
func Insert(table string, values ...any) *Mutation {
	m := &Mutation{kind: mutationInsert, table: table}
	m.setValues(values)
	return m
}

// Upsert inserts or, on conflict over the given columns, updates the row.
func Upsert(table string, onConflict []string, values ...any) *Mutation {
	m := &Mutation{kind: mutationUpsert, table: table, onConflict: onConflict}
	m.setValues(values)
	return m
}

func Update(table string, value any) *Mutation {
	m := &Mutation{kind: mutationUpdate, table: table}
	m.setValues([]any{value})
	return m
}

func Delete(table string) *Mutation {
	return &Mutation{kind: mutationDelete, table: table}
}

func (m *Mutation) setValues(values []any) {
	for _, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			m.err = fmt.Errorf("encode values: %w", err)
			return
		}
		var row map[string]json.RawMessage
		if err := json.Unmarshal(raw, &row); err != nil || row == nil {
			m.err = fmt.Errorf("values for %s must be an object", m.table)
			return
		}
		m.values = append(m.values, row)
	}
}

func (m *Mutation) Table() string { return m.table }

func (m *Mutation) Eq(column string, value any) *Mutation {
	m.filters = append(m.filters, filter{op: opEq, column: column, value: value})
	return m
}

func (m *Mutation) In(column string, values ...string) *Mutation {
	m.filters = append(m.filters, filter{op: opIn, column: column, value: values})
	return m
}

func (m *Mutation) Lt(column string, value any) *Mutation {
	m.filters = append(m.filters, filter{op: opLt, column: column, value: value})
	return m
}

// Values returns the decoded column values of row i, for inspection in tests.
func (m *Mutation) Values(i int) map[string]json.RawMessage {
	if i < 0 || i >= len(m.values) {
		return nil
	}
	return m.values[i]
}

func (m *Mutation) Kind() string {
	switch m.kind {
	case mutationInsert:
		return "insert"
	case mutationUpsert:
		return "upsert"
	case mutationUpdate:
		return "update"
	default:
		return "delete"
	}
}

// Filters renders the filter list in URL vocabulary.
func (m *Mutation) Filters() string {
	parts := make([]string, 0, len(m.filters))
	for _, f := range m.filters {
		if f.op == opNotNull {
			parts = append(parts, f.column+"="+string(f.op))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s.%v", f.column, f.op, f.value))
	}
	return strings.Join(parts, "&")
}

func (m *Mutation) validate() error {
	if m.err != nil {
		return m.err
	}
	if !allowedTables[m.table] {
		return fmt.Errorf("unknown relation %q", m.table)
	}
	switch m.kind {
	case mutationInsert, mutationUpsert, mutationUpdate:
		if len(m.values) == 0 {
			return fmt.Errorf("%s on %s without values", m.Kind(), m.table)
		}
	}
	if (m.kind == mutationUpdate || m.kind == mutationDelete) && len(m.filters) == 0 {
		return fmt.Errorf("%s on %s requires a filter", m.Kind(), m.table)
	}
	for _, row := range m.values {
		for col := range row {
			if !identPattern.MatchString(col) {
				return fmt.Errorf("invalid column %q", col)
			}
		}
	}
	for _, c := range m.onConflict {
		if !identPattern.MatchString(c) {
			return fmt.Errorf("invalid conflict column %q", c)
		}
	}
	for _, f := range m.filters {
		if !identPattern.MatchString(f.column) {
			return fmt.Errorf("invalid filter column %q", f.column)
		}
	}
	return nil
}
