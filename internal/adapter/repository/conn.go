package repository

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/eslsoft/deeplisten/internal/infrastructure/database"
)

const columnImportRun = "import_run"

var errUniqueViolation = errors.New("unique constraint violation")

// Conn executes ent-built queries against a database/sql handle. When run is
// set every user-scoped insert is tagged with it.
type Conn struct {
	db      *stdsql.DB
	dialect string
	run     string
}

// NewConn wraps an open database.
func NewConn(db *database.DB) *Conn {
	return &Conn{db: db.DB, dialect: db.Dialect}
}

func (c *Conn) withRun(run string) *Conn {
	clone := *c
	clone.run = run
	return &clone
}

func (c *Conn) builder() *sql.DialectBuilder {
	return sql.Dialect(c.dialect)
}

func (c *Conn) selectFrom(table string, columns ...string) *sql.Selector {
	b := c.builder()
	return b.Select(columns...).From(b.Table(table))
}

func (c *Conn) exec(ctx context.Context, q sql.Querier) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	query, args := q.Query()
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, translateError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

// query runs q and calls scan for every row. Rows are closed before query
// returns so sqlite's single connection is free again.
func (c *Conn) query(ctx context.Context, q sql.Querier, scan func(rows *stdsql.Rows) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	query, args := q.Query()
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// first scans the first row of q into dest and reports false when there is none.
func (c *Conn) first(ctx context.Context, q sql.Querier, dest ...any) (bool, error) {
	found := false
	err := c.query(ctx, q, func(rows *stdsql.Rows) error {
		if found {
			return nil
		}
		found = true
		return rows.Scan(dest...)
	})
	return found, err
}

func (c *Conn) count(ctx context.Context, table string, where *sql.Predicate) (int, error) {
	var n int
	if _, err := c.first(ctx, c.selectFrom(table, sql.Count("*")).Where(where), &n); err != nil {
		return 0, err
	}
	return n, nil
}

// record accumulates column/value pairs for an insert.
type record struct {
	cols []string
	vals []any
}

func (r *record) set(col string, v any) *record {
	r.cols = append(r.cols, col)
	r.vals = append(r.vals, v)
	return r
}

func (c *Conn) insert(ctx context.Context, table string, r *record, tagged bool) error {
	if tagged && c.run != "" {
		r.set(columnImportRun, c.run)
	}
	_, err := c.exec(ctx, c.builder().Insert(table).Columns(r.cols...).Values(r.vals...))
	return err
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", errUniqueViolation, pgErr.ConstraintName)
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && (sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		return fmt.Errorf("%w: %s", errUniqueViolation, sqliteErr.Error())
	}
	return err
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, errUniqueViolation)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableRef(p *string) any {
	if p == nil || *p == "" {
		return nil
	}
	return *p
}

func nullableTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC()
}

func stringPtr(ns stdsql.NullString) *string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(nt stdsql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func limitOffset(s *sql.Selector, pageSize, offset int32) *sql.Selector {
	if pageSize > 0 {
		s.Limit(int(pageSize))
	}
	if offset > 0 {
		s.Offset(int(offset))
	}
	return s
}

func orderBy(desc bool, column string) string {
	if desc {
		return sql.Desc(column)
	}
	return sql.Asc(column)
}
