package adapter_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/askdb/pkg/adapter"
	"github.com/m-mizutani/askdb/pkg/model"
)

func TestSQLDBExecute(t *testing.T) {
	db, mock, err := sqlmock.New()
	gt.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM batteries").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	executor := adapter.NewSQLDB(db)
	gen := &model.GeneratedSQL{SQL: "SELECT COUNT(*) FROM batteries", Valid: true}

	result, err := executor.Execute(context.Background(), gen)
	gt.NoError(t, err)

	gt.Equal(t, result.Columns, []string{"count"})
	gt.A(t, result.Rows).Length(1)
	gt.Equal(t, result.Rows[0][0], any(int64(5)))
	gt.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLDBRefusesUnvalidated(t *testing.T) {
	db, mock, err := sqlmock.New()
	gt.NoError(t, err)
	defer db.Close()

	executor := adapter.NewSQLDB(db)

	// No query expectation: an invalid statement must never reach the
	// database.
	gen := &model.GeneratedSQL{SQL: "DROP TABLE batteries", Valid: false, Reason: "contains mutating keyword DROP"}
	_, err = executor.Execute(context.Background(), gen)
	gt.True(t, errors.Is(err, model.ErrNotReadOnly))

	_, err = executor.Execute(context.Background(), nil)
	gt.True(t, errors.Is(err, model.ErrNotReadOnly))

	gt.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLDBQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	gt.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT broken").
		WillReturnError(errors.New("syntax error at or near broken"))

	executor := adapter.NewSQLDB(db)
	gen := &model.GeneratedSQL{SQL: "SELECT broken", Valid: true}

	_, err = executor.Execute(context.Background(), gen)
	gt.True(t, errors.Is(err, model.ErrQueryError))
	gt.False(t, errors.Is(err, model.ErrQueryTimeout))
}

func TestSQLDBQueryTimeout(t *testing.T) {
	db, mock, err := sqlmock.New()
	gt.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT pg_sleep").
		WillReturnError(context.DeadlineExceeded)

	executor := adapter.NewSQLDB(db)
	gen := &model.GeneratedSQL{SQL: "SELECT pg_sleep(60)", Valid: true}

	_, err = executor.Execute(context.Background(), gen)
	gt.True(t, errors.Is(err, model.ErrQueryTimeout))
}
