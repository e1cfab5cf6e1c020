package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type sqlArgs struct {
	values []any
}

func (a *sqlArgs) add(v any) string {
	a.values = append(a.values, v)
	return fmt.Sprintf("$%d", len(a.values))
}

func whereClause(filters []filter, args *sqlArgs) string {
	if len(filters) == 0 {
		return ""
	}
	conds := make([]string, 0, len(filters))
	for _, f := range filters {
		col := "p." + f.column
		switch f.op {
		case opEq:
			conds = append(conds, col+" = "+args.add(f.value))
		case opIn:
			conds = append(conds, col+"::text = ANY("+args.add(f.value)+"::text[])")
		case opGte:
			conds = append(conds, col+" >= "+args.add(f.value))
		case opLt:
			conds = append(conds, col+" < "+args.add(f.value))
		case opNotNull:
			conds = append(conds, col+" IS NOT NULL")
		case opILike:
			conds = append(conds, col+" ILIKE "+args.add(f.value))
		}
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func orderClause(orders []order) string {
	if len(orders) == 0 {
		return ""
	}
	parts := make([]string, 0, len(orders))
	for _, o := range orders {
		dir := "DESC NULLS LAST"
		if o.ascending {
			dir = "ASC NULLS LAST"
		}
		parts = append(parts, "p."+o.column+" "+dir)
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

// compileSelect renders the row query. Rows come back as one JSON array in the
// requested order, embeds as nested arrays.
func compileSelect(q *Query) (string, []any) {
	args := &sqlArgs{}
	cols := make([]string, 0, len(q.columns)+len(q.embeds)+1)
	for _, c := range q.columns {
		cols = append(cols, "p."+c)
	}
	for i, e := range q.embeds {
		inner := make([]string, 0, len(e.columns))
		for _, c := range e.columns {
			inner = append(inner, fmt.Sprintf("e%d.%s", i, c))
		}
		cols = append(cols, fmt.Sprintf(
			"(SELECT coalesce(json_agg(j%[1]d), '[]'::json) FROM (SELECT %[2]s FROM %[3]s e%[1]d WHERE e%[1]d.id = p.%[4]s) j%[1]d) AS %[5]s",
			i, strings.Join(inner, ", "), e.table, e.fk, e.alias,
		))
	}
	orderBy := orderClause(q.orders)
	cols = append(cols, "row_number() OVER ("+strings.TrimPrefix(orderBy, " ")+") AS _rn")

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(" FROM ")
	b.WriteString(q.table)
	b.WriteString(" p")
	b.WriteString(whereClause(q.filters, args))
	b.WriteString(orderBy)
	limit := q.limit
	if q.maybeSingle && (limit < 0 || limit > 2) {
		limit = 2
	}
	if limit >= 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	}
	if q.offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", q.offset)
	}

	sql := "SELECT coalesce(jsonb_agg(to_jsonb(t) - '_rn' ORDER BY t._rn), '[]'::jsonb) FROM (" + b.String() + ") t"
	return sql, args.values
}

func compileCount(q *Query) (string, []any) {
	args := &sqlArgs{}
	return "SELECT count(*) FROM " + q.table + " p" + whereClause(q.filters, args), args.values
}

func mutationColumns(rows []map[string]json.RawMessage) []string {
	seen := map[string]bool{}
	var cols []string
	for _, row := range rows {
		for col := range row {
			if !seen[col] {
				seen[col] = true
				cols = append(cols, col)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

// compileMutation renders writes through json_populate_record so the database
// casts each JSON value to its column type.
func compileMutation(m *Mutation) (string, []any, error) {
	args := &sqlArgs{}
	switch m.kind {
	case mutationInsert, mutationUpsert:
		cols := mutationColumns(m.values)
		payload, err := json.Marshal(m.values)
		if err != nil {
			return "", nil, fmt.Errorf("encode rows: %w", err)
		}
		colList := strings.Join(cols, ", ")
		sql := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM json_populate_recordset(NULL::%s, %s::json)",
			m.table, colList, colList, m.table, args.add(string(payload)))
		if m.kind == mutationUpsert && len(m.onConflict) > 0 {
			conflict := map[string]bool{}
			for _, c := range m.onConflict {
				conflict[c] = true
			}
			var sets []string
			for _, c := range cols {
				if !conflict[c] {
					sets = append(sets, c+" = EXCLUDED."+c)
				}
			}
			sql += " ON CONFLICT (" + strings.Join(m.onConflict, ", ") + ")"
			if len(sets) == 0 {
				sql += " DO NOTHING"
			} else {
				sql += " DO UPDATE SET " + strings.Join(sets, ", ")
			}
		}
		return sql, args.values, nil
	case mutationUpdate:
		cols := mutationColumns(m.values[:1])
		payload, err := json.Marshal(m.values[0])
		if err != nil {
			return "", nil, fmt.Errorf("encode row: %w", err)
		}
		sets := make([]string, 0, len(cols))
		for _, c := range cols {
			sets = append(sets, c+" = r."+c)
		}
		sql := fmt.Sprintf("UPDATE %s AS p SET %s FROM json_populate_record(NULL::%s, %s::json) AS r",
			m.table, strings.Join(sets, ", "), m.table, args.add(string(payload)))
		return sql + whereClause(m.filters, args), args.values, nil
	case mutationDelete:
		return "DELETE FROM " + m.table + " AS p" + whereClause(m.filters, args), args.values, nil
	}
	return "", nil, fmt.Errorf("unknown mutation")
}
