package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apllodb/apllodb-sub001/internal/apllodb/apperrors"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(t.TempDir(), storage.DefaultOptions())
}

func TestStateMachine_HappyPath(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	id := m.Open()
	assert.Equal(t, StateWithoutDb, m.State(id))

	require.NoError(t, m.CreateDatabase(ctx, id, "d"))
	require.NoError(t, m.UseDatabase(ctx, id, "d"))
	assert.Equal(t, StateWithDb, m.State(id))

	require.NoError(t, m.BeginTransaction(ctx, id))
	assert.Equal(t, StateWithTx, m.State(id))

	require.NoError(t, m.Commit(id))
	assert.Equal(t, StateWithDb, m.State(id))
}

func TestBeginTransaction_TwiceFails(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	id := m.Open()
	require.NoError(t, m.CreateDatabase(ctx, id, "d"))
	require.NoError(t, m.UseDatabase(ctx, id, "d"))
	require.NoError(t, m.BeginTransaction(ctx, id))

	err := m.BeginTransaction(ctx, id)
	require.Error(t, err)
	assert.Equal(t, apperrors.InvalidTransactionState, apperrors.KindOf(err))
}

func TestCommit_WithoutTransactionFails(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	id := m.Open()
	require.NoError(t, m.CreateDatabase(ctx, id, "d"))
	require.NoError(t, m.UseDatabase(ctx, id, "d"))

	err := m.Commit(id)
	require.Error(t, err)
	assert.Equal(t, apperrors.InvalidTransactionState, apperrors.KindOf(err))
}

func TestUseDatabase_UndefinedObject(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	id := m.Open()

	err := m.UseDatabase(ctx, id, "missing")
	require.Error(t, err)
	assert.Equal(t, apperrors.UndefinedObject, apperrors.KindOf(err))
}

func TestCreateDatabase_DuplicateFails(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	id := m.Open()
	require.NoError(t, m.CreateDatabase(ctx, id, "d"))

	err := m.CreateDatabase(ctx, id, "d")
	require.Error(t, err)
	assert.Equal(t, apperrors.DuplicateDatabase, apperrors.KindOf(err))
}

func TestHandle_TransactionFatalDropsToWithDb(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	id := m.Open()
	require.NoError(t, m.CreateDatabase(ctx, id, "d"))
	require.NoError(t, m.UseDatabase(ctx, id, "d"))
	require.NoError(t, m.BeginTransaction(ctx, id))

	fatal := apperrors.New(apperrors.IntegrityConstraintUniqueViolation, "boom")
	_ = m.Handle(id, fatal)

	assert.Equal(t, StateWithDb, m.State(id))
}

func TestVTables_RequiresOpenTransaction(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	id := m.Open()
	require.NoError(t, m.CreateDatabase(ctx, id, "d"))
	require.NoError(t, m.UseDatabase(ctx, id, "d"))

	_, err := m.VTables(id)
	require.Error(t, err)
	assert.Equal(t, apperrors.InvalidTransactionState, apperrors.KindOf(err))
}
