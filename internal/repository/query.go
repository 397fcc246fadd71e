package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// getOne scans a single row into a new T. sql.ErrNoRows is returned unwrapped so services
// can map it to a not-found error.
func getOne[T any](ctx context.Context, db sqlx.QueryerContext, op, query string, args ...interface{}) (*T, error) {
	var out T
	if err := sqlx.GetContext(ctx, db, &out, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmtErr(op, err)
	}
	return &out, nil
}

func selectAll[T any](ctx context.Context, db sqlx.QueryerContext, op, query string, args ...interface{}) ([]T, error) {
	var out []T
	if err := sqlx.SelectContext(ctx, db, &out, query, args...); err != nil {
		return nil, fmtErr(op, err)
	}
	return out, nil
}

func namedExec(ctx context.Context, db sqlx.ExtContext, op, query string, arg interface{}) (sql.Result, error) {
	res, err := sqlx.NamedExecContext(ctx, db, query, arg)
	if err != nil {
		return nil, fmtErr(op, err)
	}
	return res, nil
}

func fmtErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

func orDefault(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	return limit
}

// expectAffected maps an update or delete that matched nothing to sql.ErrNoRows.
func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// setClause collects "column = $n" assignments for partial updates.
type setClause struct {
	parts []string
	args  []interface{}
}

func (s *setClause) add(column string, value interface{}) {
	s.args = append(s.args, value)
	s.parts = append(s.parts, fmt.Sprintf("%s = $%d", column, len(s.args)))
}

func (s *setClause) empty() bool { return len(s.parts) == 0 }

// build returns "SET ... WHERE key = $n" with key bound after the assignments.
func (s *setClause) build(key string, keyValue interface{}) (string, []interface{}) {
	args := append(s.args, keyValue)
	return fmt.Sprintf("SET %s WHERE %s = $%d", strings.Join(s.parts, ", "), key, len(args)), args
}
