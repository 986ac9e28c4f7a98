// Package sqltype defines the typed SQL value and data-type primitives
// every higher layer builds on: the column type universe
// (SMALLINT | INTEGER | BIGINT | TEXT | BOOLEAN) plus NOT NULL nullability,
// and a typed Value carrying one of them (or SQL NULL).
package sqltype

import (
	"fmt"
	"strconv"
	"strings"
)

// Type enumerates the column type universe accepted by CREATE/ALTER TABLE.
type Type string

const (
	SmallInt Type = "SMALLINT"
	Integer  Type = "INTEGER"
	BigInt   Type = "BIGINT"
	Text     Type = "TEXT"
	Boolean  Type = "BOOLEAN"
)

func (t Type) Valid() bool {
	switch t {
	case SmallInt, Integer, BigInt, Text, Boolean:
		return true
	default:
		return false
	}
}

// DataType pairs a Type with its per-version nullability: NOT NULL on each
// non-PK column is a version-scoped constraint held as part of the
// column's data type.
type DataType struct {
	Type     Type
	Nullable bool
}

func (dt DataType) String() string {
	if dt.Nullable {
		return string(dt.Type)
	}
	return string(dt.Type) + " NOT NULL"
}

// Value is a typed SQL value, possibly NULL.
type Value struct {
	typ    Type
	isNull bool
	i64    int64
	text   string
	b      bool
}

func NullValue(typ Type) Value { return Value{typ: typ, isNull: true} }

func NewSmallInt(v int16) Value { return Value{typ: SmallInt, i64: int64(v)} }
func NewInteger(v int32) Value  { return Value{typ: Integer, i64: int64(v)} }
func NewBigInt(v int64) Value   { return Value{typ: BigInt, i64: v} }
func NewText(v string) Value    { return Value{typ: Text, text: v} }
func NewBoolean(v bool) Value   { return Value{typ: Boolean, b: v} }

func (v Value) Type() Type    { return v.typ }
func (v Value) IsNull() bool  { return v.isNull }

// Int64 returns the value as int64 for any of the integer types.
func (v Value) Int64() (int64, bool) {
	if v.isNull {
		return 0, false
	}
	switch v.typ {
	case SmallInt, Integer, BigInt:
		return v.i64, true
	}
	return 0, false
}

func (v Value) Text() (string, bool) {
	if v.isNull || v.typ != Text {
		return "", false
	}
	return v.text, true
}

func (v Value) Bool() (bool, bool) {
	if v.isNull || v.typ != Boolean {
		return false, false
	}
	return v.b, true
}

// Equal implements the SQL value equality used by Selection/HashJoin (NULL
// is never equal to anything, including NULL).
func (a Value) Equal(b Value) bool {
	if a.isNull || b.isNull {
		return false
	}
	if a.typ != b.typ {
		// cross-integer-width comparisons compare numerically.
		ai, aok := a.Int64()
		bi, bok := b.Int64()
		if aok && bok {
			return ai == bi
		}
		return false
	}
	switch a.typ {
	case SmallInt, Integer, BigInt:
		return a.i64 == b.i64
	case Text:
		return a.text == b.text
	case Boolean:
		return a.b == b.b
	}
	return false
}

// HashKey renders a value to a comparable Go value usable as a map key,
// used by HashJoin's build side.
func (v Value) HashKey() any {
	if v.isNull {
		return nil
	}
	switch v.typ {
	case SmallInt, Integer, BigInt:
		return v.i64
	case Text:
		return v.text
	case Boolean:
		return v.b
	}
	return nil
}

// ToSQLString renders the value as a SQL literal, as apllodb's original
// to_sql_string.rs centralizes identifier/value rendering for generated
// DDL/DML.
func (v Value) ToSQLString() string {
	if v.isNull {
		return "NULL"
	}
	switch v.typ {
	case SmallInt, Integer, BigInt:
		return strconv.FormatInt(v.i64, 10)
	case Text:
		return "'" + strings.ReplaceAll(v.text, "'", "''") + "'"
	case Boolean:
		if v.b {
			return "TRUE"
		}
		return "FALSE"
	}
	return "NULL"
}

// ToDriverValue renders the value into a database/sql-compatible driver
// value for parameterized queries.
func (v Value) ToDriverValue() any {
	if v.isNull {
		return nil
	}
	switch v.typ {
	case SmallInt, Integer, BigInt:
		return v.i64
	case Text:
		return v.text
	case Boolean:
		return v.b
	}
	return nil
}

// FromDriverValue reconstructs a Value of the given Type from whatever
// database/sql handed back for a SQLite column.
func FromDriverValue(typ Type, raw any) (Value, error) {
	if raw == nil {
		return NullValue(typ), nil
	}
	switch typ {
	case SmallInt, Integer, BigInt:
		switch n := raw.(type) {
		case int64:
			return Value{typ: typ, i64: n}, nil
		case int:
			return Value{typ: typ, i64: int64(n)}, nil
		}
		return Value{}, fmt.Errorf("sqltype: expected integer driver value for %s, got %T", typ, raw)
	case Text:
		switch s := raw.(type) {
		case string:
			return NewText(s), nil
		case []byte:
			return NewText(string(s)), nil
		}
		return Value{}, fmt.Errorf("sqltype: expected text driver value for %s, got %T", typ, raw)
	case Boolean:
		switch b := raw.(type) {
		case int64:
			return NewBoolean(b != 0), nil
		case bool:
			return NewBoolean(b), nil
		}
		return Value{}, fmt.Errorf("sqltype: expected boolean driver value for %s, got %T", typ, raw)
	}
	return Value{}, fmt.Errorf("sqltype: unknown type %s", typ)
}
