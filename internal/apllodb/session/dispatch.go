package session

import (
	"context"

	"github.com/apllodb/apllodb-sub001/internal/apllodb/apperrors"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/ast"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/executor"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/plan"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/schema"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/sqltype"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/vtable"
)

// Execute is the single request-handler entry point:
// "the server receives (session, sql), dispatches to parser (external),
// wraps the AST in a plan, and invokes the executor": session/DDL
// statements are handled here directly against the session state machine
// and storage.VTableRepository, query/DML statements go through
// plan.Translate + executor.Executor, and every fallible path is funneled
// through Handle so a transaction-fatal error always drops the session back
// to SessionWithDb.
func (m *Manager) Execute(ctx context.Context, id ID, stmt ast.Statement) (executor.Result, error) {
	res, err := m.dispatch(ctx, id, stmt)
	return res, m.Handle(id, err)
}

func (m *Manager) dispatch(ctx context.Context, id ID, stmt ast.Statement) (executor.Result, error) {
	switch s := stmt.(type) {
	case ast.CreateDatabase:
		return executor.Result{}, m.CreateDatabase(ctx, id, s.Name)
	case ast.UseDatabase:
		return executor.Result{}, m.UseDatabase(ctx, id, s.Name)
	case ast.BeginTransaction:
		return executor.Result{}, m.BeginTransaction(ctx, id)
	case ast.Commit:
		return executor.Result{}, m.Commit(id)
	case ast.Abort:
		return executor.Result{}, m.Abort(id)
	case ast.CreateTable:
		return executor.Result{}, m.execCreateTable(ctx, id, s)
	case ast.AlterTable:
		return executor.Result{}, m.execAlterTable(ctx, id, s)
	case ast.DropTable:
		return executor.Result{}, m.execDropTable(ctx, id, s)
	default:
		node, err := plan.Translate(stmt)
		if err != nil {
			return executor.Result{}, err
		}
		repo, err := m.VTables(id)
		if err != nil {
			return executor.Result{}, err
		}
		return executor.New().Execute(ctx, repo, node)
	}
}

func (m *Manager) databaseName(id ID) schema.DatabaseName {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.databases[id]; ok {
		return schema.DatabaseName(d.name)
	}
	return ""
}

func (m *Manager) execCreateTable(ctx context.Context, id ID, s ast.CreateTable) error {
	if err := schema.ValidateName("table", s.Name); err != nil {
		return err
	}
	if len(s.PrimaryKey) == 0 {
		return apperrors.New(apperrors.InvalidTableDefinition, "CREATE TABLE requires a PRIMARY KEY")
	}
	repo, err := m.VTables(id)
	if err != nil {
		return err
	}
	pkSet := make(map[string]bool, len(s.PrimaryKey))
	pkCols := make([]schema.ColumnName, len(s.PrimaryKey))
	for i, c := range s.PrimaryKey {
		pkCols[i] = schema.ColumnName(c)
		pkSet[c] = true
	}

	var colNames []schema.ColumnName
	colTypes := map[schema.ColumnName]sqltype.DataType{}
	defined := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		if err := schema.ValidateName("column", c.Name); err != nil {
			return err
		}
		defined[c.Name] = true
		if pkSet[c.Name] {
			continue
		}
		cn := schema.ColumnName(c.Name)
		colNames = append(colNames, cn)
		colTypes[cn] = sqltype.DataType{Type: sqltype.Type(c.Type), Nullable: c.Nullable}
	}
	for _, c := range s.PrimaryKey {
		if !defined[c] {
			return apperrors.New(apperrors.InvalidTableDefinition, "PRIMARY KEY column "+c+" is not defined")
		}
	}

	vtID := vtable.ID{DatabaseName: m.databaseName(id), TableName: schema.TableName(s.Name)}
	vt := vtable.VTable{ID: vtID, Constraints: vtable.NewConstraintSet(vtable.PrimaryKey(pkCols...))}
	first := vtable.Version{
		ID:              vtable.VersionID{VTableID: vtID, VersionNumber: 1},
		ColumnNames:     colNames,
		ColumnDataTypes: colTypes,
		Active:          true,
	}
	return repo.Create(ctx, vt, first)
}

// execAlterTable implements AddColumn/DropColumn: both create
// a new successor Version whose non-PK column set is the newest existing
// Version's set plus/minus the named column, without touching any prior
// Version.
func (m *Manager) execAlterTable(ctx context.Context, id ID, s ast.AlterTable) error {
	repo, err := m.VTables(id)
	if err != nil {
		return err
	}
	tableName := schema.TableName(s.Name)
	vt, err := repo.Read(ctx, tableName)
	if err != nil {
		return err
	}
	versions, err := repo.AllVersions(ctx, tableName)
	if err != nil {
		return err
	}
	base, newNumber := newestVersion(versions)

	colNames := append([]schema.ColumnName(nil), base.ColumnNames...)
	colTypes := make(map[schema.ColumnName]sqltype.DataType, len(base.ColumnDataTypes))
	for c, dt := range base.ColumnDataTypes {
		colTypes[c] = dt
	}

	for _, action := range s.Actions {
		cn := schema.ColumnName(action.Column.Name)
		switch action.Kind {
		case ast.AddColumn:
			if err := schema.ValidateName("column", action.Column.Name); err != nil {
				return err
			}
			colNames = append(colNames, cn)
			colTypes[cn] = sqltype.DataType{Type: sqltype.Type(action.Column.Type), Nullable: action.Column.Nullable}
		case ast.DropColumn:
			colNames = removeColumn(colNames, cn)
			delete(colTypes, cn)
		default:
			return apperrors.New(apperrors.FeatureNotSupported, "unsupported ALTER TABLE action")
		}
	}

	next := vtable.Version{
		ID:              vtable.VersionID{VTableID: vt.ID, VersionNumber: newNumber},
		ColumnNames:     colNames,
		ColumnDataTypes: colTypes,
		Active:          true,
	}
	return repo.AddVersion(ctx, tableName, next)
}

func (m *Manager) execDropTable(ctx context.Context, id ID, s ast.DropTable) error {
	repo, err := m.VTables(id)
	if err != nil {
		return err
	}
	return repo.DeleteAll(ctx, schema.TableName(s.Name))
}

func newestVersion(versions []vtable.Version) (vtable.Version, vtable.VersionNumber) {
	var newest vtable.Version
	for _, v := range versions {
		if v.ID.VersionNumber > newest.ID.VersionNumber {
			newest = v
		}
	}
	return newest, newest.ID.VersionNumber + 1
}

func removeColumn(cols []schema.ColumnName, target schema.ColumnName) []schema.ColumnName {
	out := make([]schema.ColumnName, 0, len(cols))
	for _, c := range cols {
		if c != target {
			out = append(out, c)
		}
	}
	return out
}
