package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres serves Backend from a PostgreSQL database.
type Postgres struct {
	db querier
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{db: pool}
}

func (p *Postgres) Select(ctx context.Context, q *Query) (Result, error) {
	if err := q.validate(); err != nil {
		return Result{}, &QueryError{Message: err.Error()}
	}

	var res Result
	if q.count {
		sql, args := compileCount(q)
		var n int64
		if err := p.db.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
			return Result{}, AsQueryError(fmt.Errorf("count %s: %w", q.table, err))
		}
		res.Count = &n
	}
	if q.head {
		res.Rows = json.RawMessage("[]")
		return res, nil
	}

	sql, args := compileSelect(q)
	var rows []byte
	if err := p.db.QueryRow(ctx, sql, args...).Scan(&rows); err != nil {
		return Result{}, AsQueryError(err)
	}
	res.Rows = rows
	if q.maybeSingle {
		one, err := singleFromRows(res.Rows)
		if err != nil {
			return Result{}, AsQueryError(err)
		}
		res.Rows = one
	}
	return res, nil
}

func (p *Postgres) Mutate(ctx context.Context, m *Mutation) (int64, error) {
	if err := m.validate(); err != nil {
		return 0, &QueryError{Message: err.Error()}
	}
	sql, args, err := compileMutation(m)
	if err != nil {
		return 0, AsQueryError(err)
	}
	tag, err := p.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, AsQueryError(err)
	}
	return tag.RowsAffected(), nil
}
