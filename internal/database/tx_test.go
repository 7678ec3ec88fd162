package database_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyxmakerx/briefly/internal/apperror"
	"github.com/keyxmakerx/briefly/internal/database"
	"github.com/keyxmakerx/briefly/internal/database/testdb"
)

func insertUser(ctx context.Context, q database.Querier, id, email string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO users (id, email, display_name, password_hash, role, created_at)
		 VALUES (?, ?, ?, 'x', 'client', ?)`,
		id, email, email, time.Now().UTC(),
	)
	return err
}

func userExists(t *testing.T, db *sql.DB, id string) bool {
	t.Helper()
	var exists bool
	require.NoError(t, db.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`, id).Scan(&exists))
	return exists
}

func TestRunInTx_Commit(t *testing.T) {
	db := testdb.Setup(t)
	tm := database.NewTxManager(db)
	id := uuid.NewString()

	err := tm.RunInTx(context.Background(), func(ctx context.Context) error {
		return insertUser(ctx, database.QuerierFromCtx(ctx, db), id, "commit@example.com")
	})
	require.NoError(t, err)

	assert.True(t, userExists(t, db, id))
}

func TestRunInTx_RollbackOnError(t *testing.T) {
	db := testdb.Setup(t)
	tm := database.NewTxManager(db)
	id := uuid.NewString()
	sentinel := errors.New("business rule failed")

	err := tm.RunInTx(context.Background(), func(ctx context.Context) error {
		require.NoError(t, insertUser(ctx, database.QuerierFromCtx(ctx, db), id, "rollback@example.com"))
		return sentinel
	})

	assert.ErrorIs(t, err, sentinel)
	assert.False(t, userExists(t, db, id))
}

func TestRunInTx_RollbackOnPanic(t *testing.T) {
	db := testdb.Setup(t)
	tm := database.NewTxManager(db)
	id := uuid.NewString()

	assert.Panics(t, func() {
		_ = tm.RunInTx(context.Background(), func(ctx context.Context) error {
			require.NoError(t, insertUser(ctx, database.QuerierFromCtx(ctx, db), id, "panic@example.com"))
			panic("boom")
		})
	})

	assert.False(t, userExists(t, db, id))
}

func TestRunInTx_NestedJoinsOuter(t *testing.T) {
	db := testdb.Setup(t)
	tm := database.NewTxManager(db)
	inner := uuid.NewString()
	sentinel := errors.New("outer failed")

	err := tm.RunInTx(context.Background(), func(ctx context.Context) error {
		err := tm.RunInTx(ctx, func(ctx context.Context) error {
			assert.True(t, database.InTx(ctx))
			return insertUser(ctx, database.QuerierFromCtx(ctx, db), inner, "nested@example.com")
		})
		require.NoError(t, err)
		return sentinel
	})

	assert.ErrorIs(t, err, sentinel)
	assert.False(t, userExists(t, db, inner), "inner write must roll back with the outer transaction")
}

func TestQuerierFromCtx_NoTx(t *testing.T) {
	db := &sql.DB{}
	assert.Same(t, db, database.QuerierFromCtx(context.Background(), db))
	assert.False(t, database.InTx(context.Background()))
}

func TestRunInTx_RollbackFailureKeepsDomainError(t *testing.T) {
	db := testdb.Setup(t)
	tm := database.NewTxManager(db)

	err := tm.RunInTx(context.Background(), func(ctx context.Context) error {
		// Ending the transaction early makes the manager's rollback fail.
		tx, ok := database.QuerierFromCtx(ctx, db).(*sql.Tx)
		require.True(t, ok)
		require.NoError(t, tx.Rollback())
		return apperror.NewInvalidTransition("draft", "accepted")
	})

	require.Error(t, err)
	assert.True(t, apperror.HasType(err, apperror.TypeInvalidTransition))
	assert.ErrorIs(t, err, sql.ErrTxDone)
}
