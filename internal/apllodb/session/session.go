// Package session implements the three-state session/transaction manager
// SessionWithoutDb -> SessionWithDb -> SessionWithTx.
package session

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/apllodb/apllodb-sub001/internal/apllodb/apperrors"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/storage"
)

// ID uniquely identifies a session for the server's lifetime.
type ID string

func newID() ID { return ID(uuid.NewString()) }

// State is the session's position in the three-state machine.
type State int

const (
	StateWithoutDb State = iota
	StateWithDb
	StateWithTx
)

type openDatabase struct {
	name string
	file *storage.File
}

type openTx struct {
	tx *storage.Tx
}

// Manager holds every live session behind a mutex-guarded struct: one pool
// for open databases, one for open transactions, keyed by session id.
type Manager struct {
	dataDir     string
	openOptions storage.Options

	mu        sync.Mutex
	states    map[ID]State
	databases map[ID]*openDatabase
	txs       map[ID]*openTx
}

func NewManager(dataDir string, opts storage.Options) *Manager {
	return &Manager{
		dataDir:     dataDir,
		openOptions: opts,
		states:      make(map[ID]State),
		databases:   make(map[ID]*openDatabase),
		txs:         make(map[ID]*openTx),
	}
}

// Open creates a brand-new SessionWithoutDb.
func (m *Manager) Open() ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := newID()
	m.states[id] = StateWithoutDb
	return id
}

// Close drops a session entirely, rolling back any open transaction and
// closing its database handle.
func (m *Manager) Close(id ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var err error
	if t, ok := m.txs[id]; ok {
		err = t.tx.Rollback()
		delete(m.txs, id)
	}
	if d, ok := m.databases[id]; ok {
		_ = d.file.Close()
		delete(m.databases, id)
	}
	delete(m.states, id)
	return err
}

func (m *Manager) stateOf(id ID) State {
	s, ok := m.states[id]
	if !ok {
		return StateWithoutDb
	}
	return s
}

// CreateDatabase creates a new database file. Valid only on
// SessionWithoutDb.
func (m *Manager) CreateDatabase(ctx context.Context, id ID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stateOf(id) != StateWithoutDb {
		return apperrors.New(apperrors.InvalidTransactionState, "CREATE DATABASE requires a session without an open database")
	}
	if storage.Exists(m.dataDir, name) {
		return apperrors.New(apperrors.DuplicateDatabase, name)
	}
	f, err := storage.Open(ctx, m.dataDir, name, m.openOptions)
	if err != nil {
		return err
	}
	return f.Close()
}

// UseDatabase opens name and attaches it to id, transitioning
// SessionWithoutDb -> SessionWithDb.
func (m *Manager) UseDatabase(ctx context.Context, id ID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.stateOf(id) {
	case StateWithDb, StateWithTx:
		return apperrors.New(apperrors.DuplicateDatabase, "session already has an open database")
	case StateWithoutDb:
	}
	if !storage.Exists(m.dataDir, name) {
		return apperrors.New(apperrors.UndefinedObject, name)
	}
	f, err := storage.Open(ctx, m.dataDir, name, m.openOptions)
	if err != nil {
		return err
	}
	m.databases[id] = &openDatabase{name: name, file: f}
	m.states[id] = StateWithDb
	return nil
}

// BeginTransaction opens a transaction on id's attached database,
// transitioning SessionWithDb -> SessionWithTx.
func (m *Manager) BeginTransaction(ctx context.Context, id ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.stateOf(id) {
	case StateWithoutDb:
		return apperrors.New(apperrors.InvalidTransactionState, "BEGIN requires an open database")
	case StateWithTx:
		return apperrors.New(apperrors.InvalidTransactionState, "session already has an open transaction")
	}
	d := m.databases[id]
	tx, err := storage.BeginTx(ctx, d.file, d.name)
	if err != nil {
		return err
	}
	m.txs[id] = &openTx{tx: tx}
	m.states[id] = StateWithTx
	return nil
}

// Commit commits id's open transaction, transitioning SessionWithTx ->
// SessionWithDb.
func (m *Manager) Commit(id ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txs[id]
	if !ok || m.stateOf(id) != StateWithTx {
		return apperrors.New(apperrors.InvalidTransactionState, "no open transaction to commit")
	}
	err := t.tx.Commit()
	delete(m.txs, id)
	m.states[id] = StateWithDb
	return err
}

// Abort rolls back id's open transaction, transitioning SessionWithTx ->
// SessionWithDb.
func (m *Manager) Abort(id ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txs[id]
	if !ok || m.stateOf(id) != StateWithTx {
		return apperrors.New(apperrors.InvalidTransactionState, "no open transaction to abort")
	}
	err := t.tx.Rollback()
	delete(m.txs, id)
	m.states[id] = StateWithDb
	return err
}

// VTables returns the VTableRepository bound to id's open transaction.
// Valid only on SessionWithTx.
func (m *Manager) VTables(id ID) (*storage.VTableRepository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txs[id]
	if !ok || m.stateOf(id) != StateWithTx {
		return nil, apperrors.New(apperrors.InvalidTransactionState, "no open transaction")
	}
	return t.tx.VTables(), nil
}

// Handle packages a fallible session operation's result and applies
// the propagation policy: transaction-fatal errors drop the
// session back to SessionWithDb, exactly like a manual Abort.
func (m *Manager) Handle(id ID, err error) error {
	if err == nil {
		return nil
	}
	if apperrors.IsTransactionFatal(apperrors.KindOf(err)) {
		m.mu.Lock()
		if t, ok := m.txs[id]; ok {
			_ = t.tx.Rollback()
			delete(m.txs, id)
			m.states[id] = StateWithDb
		}
		m.mu.Unlock()
	}
	return err
}

// State reports the current state of id, for tests and diagnostics.
func (m *Manager) State(id ID) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateOf(id)
}

// CloseAll rolls back every open transaction and closes every open
// database file, for use during server shutdown.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for id, t := range m.txs {
		if err := t.tx.Rollback(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.txs, id)
	}
	for id, d := range m.databases {
		if err := d.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.databases, id)
	}
	for id := range m.states {
		delete(m.states, id)
	}
	return firstErr
}
