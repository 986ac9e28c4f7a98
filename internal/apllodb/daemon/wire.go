// Package daemon exposes apllodbd's client protocol: a JSON-over-Unix-
// domain-socket HTTP API, served by an http.Server
// (net.Listen("unix", ...) + http.Server + http.ServeMux). The wire shapes
// here are the JSON encoding of the ast.Statement sum type, since no SQL
// parser is in scope — a client (or a future parser) builds one of
// these envelopes and POSTs it; apllodbd decodes it back into ast.Statement
// and hands it to session.Manager.Execute.
package daemon

import (
	"github.com/apllodb/apllodb-sub001/internal/apllodb/apperrors"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/ast"
)

// ExprDTO is the wire encoding of ast.Expression, tagged by Kind.
type ExprDTO struct {
	Kind    string   `json:"kind"`
	Value   any      `json:"value,omitempty"`
	Name    string   `json:"name,omitempty"`
	Operand *ExprDTO `json:"operand,omitempty"`
	Left    *ExprDTO `json:"left,omitempty"`
	Right   *ExprDTO `json:"right,omitempty"`
}

func (d *ExprDTO) toAST() (ast.Expression, error) {
	if d == nil {
		return nil, nil
	}
	switch d.Kind {
	case "literal":
		return ast.Literal{Value: d.Value}, nil
	case "column":
		return ast.ColumnRef{Name: d.Name}, nil
	case "not":
		operand, err := d.Operand.toAST()
		if err != nil {
			return nil, err
		}
		return ast.NotExpr{Operand: operand}, nil
	case "and":
		l, err := d.Left.toAST()
		if err != nil {
			return nil, err
		}
		r, err := d.Right.toAST()
		if err != nil {
			return nil, err
		}
		return ast.AndExpr{Left: l, Right: r}, nil
	case "eq":
		l, err := d.Left.toAST()
		if err != nil {
			return nil, err
		}
		r, err := d.Right.toAST()
		if err != nil {
			return nil, err
		}
		return ast.EqExpr{Left: l, Right: r}, nil
	default:
		return nil, apperrors.New(apperrors.SyntaxError, "unknown expression kind: "+d.Kind)
	}
}

type ColumnDefDTO struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

func (c ColumnDefDTO) toAST() ast.ColumnDef {
	return ast.ColumnDef{Name: c.Name, Type: c.Type, Nullable: c.Nullable}
}

type AlterActionDTO struct {
	Kind   string       `json:"kind"` // "add_column" | "drop_column"
	Column ColumnDefDTO `json:"column"`
}

func (a AlterActionDTO) toAST() (ast.AlterAction, error) {
	switch a.Kind {
	case "add_column":
		return ast.AlterAction{Kind: ast.AddColumn, Column: a.Column.toAST()}, nil
	case "drop_column":
		return ast.AlterAction{Kind: ast.DropColumn, Column: a.Column.toAST()}, nil
	default:
		return ast.AlterAction{}, apperrors.New(apperrors.SyntaxError, "unknown alter action kind: "+a.Kind)
	}
}

type AssignmentDTO struct {
	Column string  `json:"column"`
	Value  ExprDTO `json:"value"`
}

type SelectFieldDTO struct {
	Expr  ExprDTO `json:"expr"`
	Alias string  `json:"alias,omitempty"`
}

type TableRefDTO struct {
	Table string `json:"table"`
	Alias string `json:"alias,omitempty"`
}

type OrderKeyDTO struct {
	Column string `json:"column"`
	Desc   bool   `json:"desc,omitempty"`
}

// StatementDTO is the tagged-union wire envelope for ast.Statement.
type StatementDTO struct {
	Kind string `json:"kind"`

	Name string `json:"name,omitempty"` // CreateDatabase/UseDatabase/CreateTable/AlterTable/DropTable

	Columns    []ColumnDefDTO `json:"columns,omitempty"`    // CreateTable
	PrimaryKey []string       `json:"primary_key,omitempty"` // CreateTable

	Actions []AlterActionDTO `json:"actions,omitempty"` // AlterTable

	Table       string            `json:"table,omitempty"`       // Insert/Update/Delete
	Alias       string            `json:"alias,omitempty"`       // Insert/Update/Delete
	InsertCols  []string          `json:"insert_columns,omitempty"`
	Rows        [][]ExprDTO       `json:"rows,omitempty"`        // Insert
	Assignments []AssignmentDTO   `json:"assignments,omitempty"` // Update
	Where       *ExprDTO          `json:"where,omitempty"`       // Update/Delete/Select

	Fields  []SelectFieldDTO `json:"fields,omitempty"` // Select
	From    []TableRefDTO    `json:"from,omitempty"`   // Select
	OrderBy []OrderKeyDTO    `json:"order_by,omitempty"`
}

// ToStatement decodes the envelope into the ast.Statement it names.
func (s StatementDTO) ToStatement() (ast.Statement, error) {
	switch s.Kind {
	case "create_database":
		return ast.CreateDatabase{Name: s.Name}, nil
	case "use_database":
		return ast.UseDatabase{Name: s.Name}, nil
	case "begin_transaction":
		return ast.BeginTransaction{}, nil
	case "commit":
		return ast.Commit{}, nil
	case "abort":
		return ast.Abort{}, nil
	case "create_table":
		cols := make([]ast.ColumnDef, len(s.Columns))
		for i, c := range s.Columns {
			cols[i] = c.toAST()
		}
		return ast.CreateTable{Name: s.Name, Columns: cols, PrimaryKey: s.PrimaryKey}, nil
	case "alter_table":
		actions := make([]ast.AlterAction, len(s.Actions))
		for i, a := range s.Actions {
			action, err := a.toAST()
			if err != nil {
				return nil, err
			}
			actions[i] = action
		}
		return ast.AlterTable{Name: s.Name, Actions: actions}, nil
	case "drop_table":
		return ast.DropTable{Name: s.Name}, nil
	case "insert":
		rows := make([][]ast.Expression, len(s.Rows))
		for i, r := range s.Rows {
			row := make([]ast.Expression, len(r))
			for j, e := range r {
				ex, err := e.toAST()
				if err != nil {
					return nil, err
				}
				row[j] = ex
			}
			rows[i] = row
		}
		return ast.Insert{Table: s.Table, Alias: s.Alias, Columns: s.InsertCols, Rows: rows}, nil
	case "update":
		assignments := make([]ast.Assignment, len(s.Assignments))
		for i, a := range s.Assignments {
			v, err := a.Value.toAST()
			if err != nil {
				return nil, err
			}
			assignments[i] = ast.Assignment{Column: a.Column, Value: v}
		}
		where, err := s.Where.toAST()
		if err != nil {
			return nil, err
		}
		return ast.Update{Table: s.Table, Alias: s.Alias, Assignments: assignments, Where: where}, nil
	case "delete":
		where, err := s.Where.toAST()
		if err != nil {
			return nil, err
		}
		return ast.Delete{Table: s.Table, Alias: s.Alias, Where: where}, nil
	case "select":
		fields := make([]ast.SelectField, len(s.Fields))
		for i, f := range s.Fields {
			expr, err := f.Expr.toAST()
			if err != nil {
				return nil, err
			}
			fields[i] = ast.SelectField{Expr: expr, Alias: f.Alias}
		}
		from := make([]ast.TableRef, len(s.From))
		for i, t := range s.From {
			from[i] = ast.TableRef{Table: t.Table, Alias: t.Alias}
		}
		where, err := s.Where.toAST()
		if err != nil {
			return nil, err
		}
		orderBy := make([]ast.OrderKey, len(s.OrderBy))
		for i, k := range s.OrderBy {
			orderBy[i] = ast.OrderKey{Column: k.Column, Desc: k.Desc}
		}
		return ast.Select{Fields: fields, From: from, Where: where, OrderBy: orderBy}, nil
	default:
		return nil, apperrors.New(apperrors.SyntaxError, "unknown statement kind: "+s.Kind)
	}
}
