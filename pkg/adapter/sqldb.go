package adapter

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/askdb/pkg/model"
)

// SQLDB executes validated SQL over database/sql. It is the generic
// executor for any store with a registered driver; the pgx stdlib
// driver is registered by default. The connection should use a
// read-only credential, and Execute additionally refuses SQL that the
// validator did not mark valid-read-only.
type SQLDB struct {
	db      *sql.DB
	timeout time.Duration
}

type SQLDBOption func(*SQLDB)

// WithStatementTimeout bounds each query; past the bound Execute fails
// with ErrQueryTimeout instead of blocking.
func WithStatementTimeout(d time.Duration) SQLDBOption {
	return func(s *SQLDB) {
		s.timeout = d
	}
}

// NewSQLDB wraps an existing database handle
func NewSQLDB(db *sql.DB, opts ...SQLDBOption) *SQLDB {
	s := &SQLDB{
		db:      db,
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenSQLDB opens a connection with the given driver and DSN
func OpenSQLDB(ctx context.Context, driver, dsn string, opts ...SQLDBOption) (*SQLDB, error) {
	if dsn == "" {
		return nil, goerr.New("dsn is required")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open database", goerr.V("driver", driver))
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to ping database", goerr.V("driver", driver))
	}

	return NewSQLDB(db, opts...), nil
}

// Close closes the underlying handle
func (s *SQLDB) Close() error {
	return s.db.Close()
}

func (s *SQLDB) Execute(ctx context.Context, gen *model.GeneratedSQL) (*model.QueryResult, error) {
	if gen == nil || !gen.Valid {
		return nil, goerr.Wrap(model.ErrNotReadOnly, "executor refused unvalidated sql")
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(queryCtx, gen.SQL)
	if err != nil {
		return nil, translateQueryError(queryCtx, err, gen.SQL)
	}
	defer func() {
		_ = rows.Close()
	}()

	columns, err := rows.Columns()
	if err != nil {
		return nil, goerr.Wrap(model.ErrQueryError, "failed to read result columns", goerr.V("cause", err.Error()))
	}

	result := &model.QueryResult{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, goerr.Wrap(model.ErrQueryError, "failed to scan result row", goerr.V("cause", err.Error()))
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, translateQueryError(queryCtx, err, gen.SQL)
	}

	return result, nil
}

func translateQueryError(ctx context.Context, err error, query string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return goerr.Wrap(model.ErrQueryTimeout, "statement timeout exceeded", goerr.V("sql", query))
	}
	return goerr.Wrap(model.ErrQueryError, "database reported an error",
		goerr.V("sql", query), goerr.V("cause", err.Error()))
}
