package plan

import (
	"strings"

	"github.com/apllodb/apllodb-sub001/internal/apllodb/apperrors"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/ast"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/record"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/sqltype"
)

// Translate converts a query/modification ast.Statement into a plan tree.
// DDL and session statements (CreateDatabase, UseDatabase, BeginTransaction,
// Commit, Abort, CreateTable, AlterTable, DropTable) are handled directly
// by session.Manager/storage.VTableRepository and never reach here.
func Translate(stmt ast.Statement) (Node, error) {
	switch s := stmt.(type) {
	case ast.Select:
		return translateSelect(s)
	case ast.Insert:
		return translateInsert(s)
	case ast.Update:
		return translateUpdate(s)
	case ast.Delete:
		return translateDelete(s)
	default:
		return nil, apperrors.New(apperrors.FeatureNotSupported, "statement is not a plannable query or modification")
	}
}

func translateSelect(s ast.Select) (Node, error) {
	if len(s.From) == 0 {
		return nil, apperrors.New(apperrors.FeatureNotSupported, "SELECT with no FROM clause is not supported")
	}

	conjuncts := flattenConjuncts(s.Where)

	var root Node = SeqScan{Table: s.From[0].Table, Alias: s.From[0].Alias}
	joined := map[string]bool{tableQualifier(s.From[0]): true}

	for _, t := range s.From[1:] {
		rightQual := tableQualifier(t)
		idx, leftKey, rightKey := findEquiJoinKey(conjuncts, joined, rightQual)
		if idx < 0 {
			return nil, apperrors.New(apperrors.FeatureNotSupported,
				"multi-table FROM requires an equality predicate joining each table by qualified column, e.g. t1.id = t2.t1_id")
		}
		conjuncts = append(append([]ast.Expression(nil), conjuncts[:idx]...), conjuncts[idx+1:]...)
		root = HashJoin{Left: root, Right: SeqScan{Table: t.Table, Alias: t.Alias}, LeftKey: leftKey, RightKey: rightKey}
		joined[rightQual] = true
	}

	if len(conjuncts) > 0 {
		pred, err := translateExpr(andConjuncts(conjuncts))
		if err != nil {
			return nil, err
		}
		root = Selection{Child: root, Pred: pred}
	}
	if len(s.OrderBy) > 0 {
		keys := make([]record.OrderKey, len(s.OrderBy))
		for i, k := range s.OrderBy {
			keys[i] = record.OrderKey{Name: k.Column, Desc: k.Desc}
		}
		root = Sort{Child: root, Keys: keys}
	}
	if len(s.Fields) > 0 {
		cols := make([]string, len(s.Fields))
		for i, f := range s.Fields {
			cr, ok := f.Expr.(ast.ColumnRef)
			if !ok {
				return nil, apperrors.New(apperrors.FeatureNotSupported, "only column-reference select fields are supported")
			}
			cols[i] = cr.Name
		}
		root = Projection{Child: root, Columns: cols}
	}
	return root, nil
}

// tableQualifier returns the name a column reference would use to address
// t: its alias if the FROM clause declared one, else its table name.
func tableQualifier(t ast.TableRef) string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Table
}

// flattenConjuncts splits a WHERE expression into its top-level AND
// operands, so join-key extraction and residual-predicate reassembly can
// each work over a flat list instead of walking the AND tree twice.
func flattenConjuncts(e ast.Expression) []ast.Expression {
	if e == nil {
		return nil
	}
	and, ok := e.(ast.AndExpr)
	if !ok {
		return []ast.Expression{e}
	}
	return append(flattenConjuncts(and.Left), flattenConjuncts(and.Right)...)
}

func andConjuncts(cs []ast.Expression) ast.Expression {
	out := cs[0]
	for _, c := range cs[1:] {
		out = ast.AndExpr{Left: out, Right: c}
	}
	return out
}

func columnQualifier(name string) string {
	if dot := strings.IndexByte(name, '.'); dot >= 0 {
		return name[:dot]
	}
	return ""
}

// findEquiJoinKey looks for a top-level conjunct of the form
// "joined.col = rightQual.col" (in either order) — the only shape
// Translate can resolve a join key from without database/schema access,
// since it works purely on the qualifiers already present in the query
// text. Returns idx -1 if no conjunct qualifies.
func findEquiJoinKey(conjuncts []ast.Expression, joined map[string]bool, rightQual string) (idx int, leftKey, rightKey string) {
	for i, c := range conjuncts {
		eq, ok := c.(ast.EqExpr)
		if !ok {
			continue
		}
		lc, lok := eq.Left.(ast.ColumnRef)
		rc, rok := eq.Right.(ast.ColumnRef)
		if !lok || !rok {
			continue
		}
		lq, rq := columnQualifier(lc.Name), columnQualifier(rc.Name)
		if joined[lq] && rq == rightQual {
			return i, lc.Name, rc.Name
		}
		if joined[rq] && lq == rightQual {
			return i, rc.Name, lc.Name
		}
	}
	return -1, "", ""
}

func translateInsert(s ast.Insert) (Node, error) {
	rows := make([][]record.Expression, len(s.Rows))
	for i, r := range s.Rows {
		row := make([]record.Expression, len(r))
		for j, e := range r {
			ex, err := translateExpr(e)
			if err != nil {
				return nil, err
			}
			row[j] = ex
		}
		rows[i] = row
	}
	return Insert{Table: s.Table, Child: Values{Columns: s.Columns, Rows: rows}}, nil
}

func translateUpdate(s ast.Update) (Node, error) {
	assignments := make(map[string]record.Expression, len(s.Assignments))
	for _, a := range s.Assignments {
		ex, err := translateExpr(a.Value)
		if err != nil {
			return nil, err
		}
		assignments[a.Column] = ex
	}
	var where record.Expression
	if s.Where != nil {
		var err error
		where, err = translateExpr(s.Where)
		if err != nil {
			return nil, err
		}
	}
	return Update{Table: s.Table, Assignments: assignments, Where: where}, nil
}

func translateDelete(s ast.Delete) (Node, error) {
	if s.Where != nil {
		return nil, apperrors.New(apperrors.FeatureNotSupported, "DELETE with WHERE is not supported; only DELETE FROM t with no predicate")
	}
	return DeleteAll{Table: s.Table}, nil
}

func translateExpr(e ast.Expression) (record.Expression, error) {
	switch v := e.(type) {
	case ast.Literal:
		val, err := literalValue(v.Value)
		if err != nil {
			return nil, err
		}
		return record.Const{Value: val}, nil
	case ast.ColumnRef:
		return record.ColumnRef{Name: v.Name}, nil
	case ast.NotExpr:
		operand, err := translateExpr(v.Operand)
		if err != nil {
			return nil, err
		}
		return record.Not{Expr: operand}, nil
	case ast.AndExpr:
		l, err := translateExpr(v.Left)
		if err != nil {
			return nil, err
		}
		r, err := translateExpr(v.Right)
		if err != nil {
			return nil, err
		}
		return record.And{Left: l, Right: r}, nil
	case ast.EqExpr:
		l, err := translateExpr(v.Left)
		if err != nil {
			return nil, err
		}
		r, err := translateExpr(v.Right)
		if err != nil {
			return nil, err
		}
		return record.Eq{Left: l, Right: r}, nil
	default:
		return nil, apperrors.New(apperrors.FeatureNotSupported, "unsupported expression form")
	}
}

func literalValue(v any) (sqltype.Value, error) {
	switch n := v.(type) {
	case nil:
		return sqltype.NullValue(sqltype.Text), nil
	case int:
		return sqltype.NewInteger(int32(n)), nil
	case int32:
		return sqltype.NewInteger(n), nil
	case int64:
		return sqltype.NewBigInt(n), nil
	case string:
		return sqltype.NewText(n), nil
	case bool:
		return sqltype.NewBoolean(n), nil
	default:
		return sqltype.Value{}, apperrors.New(apperrors.DatatypeMismatch, "unsupported literal type")
	}
}
