package sql

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesseradmin/tessera/dialect"
)

func TestDriverDialect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want string
	}{
		{dialect.Postgres, dialect.Postgres},
		{dialect.MySQL, dialect.MySQL},
		{dialect.SQLite, dialect.SQLite},
		// Instrumented driver names keep their base dialect.
		{"postgres-with-tracing", dialect.Postgres},
		{"oracle", "oracle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drv := NewDriver(tt.name, Conn{})
			assert.Equal(t, tt.want, drv.Dialect())
		})
	}
}

func TestConnExec(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.Postgres, db)

	t.Run("Discarded", func(t *testing.T) {
		mock.ExpectExec("UPDATE people SET name = ?").
			WithArgs("Ann").
			WillReturnResult(sqlmock.NewResult(0, 1))
		err := drv.Exec(context.Background(), "UPDATE people SET name = ?", []any{"Ann"}, nil)
		require.NoError(t, err)
	})

	t.Run("Result", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM people").
			WillReturnResult(sqlmock.NewResult(0, 2))
		var res sql.Result
		err := drv.Exec(context.Background(), "DELETE FROM people", []any{}, &res)
		require.NoError(t, err)
		affected, err := res.RowsAffected()
		require.NoError(t, err)
		assert.Equal(t, int64(2), affected)
	})

	t.Run("BadArgsType", func(t *testing.T) {
		err := drv.Exec(context.Background(), "DELETE FROM people", "not-a-slice", nil)
		require.Error(t, err)
	})

	t.Run("BadDestType", func(t *testing.T) {
		err := drv.Exec(context.Background(), "DELETE FROM people", []any{}, "bad")
		require.Error(t, err)
	})
}

func TestConnQuery(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.Postgres, db)

	t.Run("Rows", func(t *testing.T) {
		mock.ExpectQuery("SELECT name FROM people").
			WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Ann"))
		var rows Rows
		err := drv.Query(context.Background(), "SELECT name FROM people", []any{}, &rows)
		require.NoError(t, err)
		defer rows.Close()

		require.True(t, rows.Next())
		var name string
		require.NoError(t, rows.Scan(&name))
		assert.Equal(t, "Ann", name)
	})

	t.Run("BadDestType", func(t *testing.T) {
		err := drv.Query(context.Background(), "SELECT 1", []any{}, new(int))
		require.Error(t, err)
	})
}

func TestDriverTx(t *testing.T) {
	t.Parallel()

	t.Run("Commit", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
		require.NoError(t, err)
		defer db.Close()
		drv := OpenDB(dialect.Postgres, db)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO people (name) VALUES (?)").
			WithArgs("Ann").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		tx, err := drv.Tx(context.Background())
		require.NoError(t, err)
		require.NoError(t, tx.Exec(context.Background(), "INSERT INTO people (name) VALUES (?)", []any{"Ann"}, nil))
		require.NoError(t, tx.Commit())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rollback", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		drv := OpenDB(dialect.Postgres, db)

		mock.ExpectBegin()
		mock.ExpectRollback()

		tx, err := drv.Tx(context.Background())
		require.NoError(t, err)
		require.NoError(t, tx.Rollback())
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
