package db_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/mailinglist/internal/db"
)

func TestDSNFromFields(t *testing.T) {
	cfg := db.Config{User: "u", Password: "p", Host: "h", Port: "5432", Name: "list"}
	assert.Equal(t, "postgres://u:p@h:5432/list?sslmode=disable", cfg.DSN())
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()
	require.NoError(t, db.WithTx(context.Background(), conn, func(tx *sql.Tx) error { return nil }))

	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()
	assert.ErrorIs(t, db.WithTx(context.Background(), conn, func(tx *sql.Tx) error { return boom }), boom)

	assert.NoError(t, mock.ExpectationsWereMet())
}
