// Package vtable models the logical table ("vtable") and its ordered,
// immutable chain of Versions. A VTable holds only identifiers — never a
// materialized slice of Version structs — so that the storage engine's
// repositories, not the domain struct, own the VTable/Version relationship.
package vtable

import (
	"encoding/json"
	"sort"

	"github.com/apllodb/apllodb-sub001/internal/apllodb/apperrors"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/schema"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/sqltype"
)

// VersionNumber is a strictly-increasing-with-no-gaps Version identifier
//, starting at 1.
type VersionNumber int64

// ID identifies a VTable by (database_name, table_name)
type ID struct {
	DatabaseName schema.DatabaseName
	TableName    schema.TableName
}

// VersionID identifies one Version of one VTable.
type VersionID struct {
	VTableID      ID
	VersionNumber VersionNumber
}

// ConstraintKind discriminates the table-wide constraint sum type.
type ConstraintKind string

const (
	ConstraintPrimaryKey ConstraintKind = "PrimaryKey"
	ConstraintUnique     ConstraintKind = "Unique"
)

// Constraint is a table-wide constraint: PrimaryKey{columns} or
// Unique{columns}. PrimaryKey uniqueness is enforced across the union of
// all Versions through the navi table; Unique constraints are stored and
// serialized with the VTable but are not checked on insert or update.
type Constraint struct {
	Kind    ConstraintKind
	Columns []schema.ColumnName
}

func PrimaryKey(cols ...schema.ColumnName) Constraint {
	return Constraint{Kind: ConstraintPrimaryKey, Columns: cols}
}

func Unique(cols ...schema.ColumnName) Constraint {
	return Constraint{Kind: ConstraintUnique, Columns: cols}
}

// constraintJSON is the stable wire shape used for serialization
// round-tripping.
type constraintJSON struct {
	Kind    ConstraintKind `json:"kind"`
	Columns []string       `json:"columns"`
}

// ConstraintSet is the ordered collection of a VTable's table-wide
// constraints, independently (de)serializable so it round-trips through
// the storage engine's metadata region.
type ConstraintSet struct {
	Constraints []Constraint
}

func NewConstraintSet(cs ...Constraint) ConstraintSet {
	return ConstraintSet{Constraints: append([]Constraint(nil), cs...)}
}

// PrimaryKeyColumns returns the PK column list, or nil if no PrimaryKey
// constraint is present. A CreateTable without a PRIMARY KEY is rejected
// by code upstream; this is a pure accessor that assumes that validation
// already ran.
func (cs ConstraintSet) PrimaryKeyColumns() []schema.ColumnName {
	for _, c := range cs.Constraints {
		if c.Kind == ConstraintPrimaryKey {
			return c.Columns
		}
	}
	return nil
}

// MarshalJSON implements the stable serialization format this set is
// persisted under, round-tripping each Constraint's kind and columns.
func (cs ConstraintSet) MarshalJSON() ([]byte, error) {
	out := make([]constraintJSON, 0, len(cs.Constraints))
	for _, c := range cs.Constraints {
		cols := make([]string, len(c.Columns))
		for i, col := range c.Columns {
			cols[i] = string(col)
		}
		out = append(out, constraintJSON{Kind: c.Kind, Columns: cols})
	}
	return json.Marshal(out)
}

func (cs *ConstraintSet) UnmarshalJSON(data []byte) error {
	var in []constraintJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return apperrors.Wrap(apperrors.DeserializationError, err, "decode constraint set")
	}
	out := make([]Constraint, 0, len(in))
	for _, c := range in {
		cols := make([]schema.ColumnName, len(c.Columns))
		for i, col := range c.Columns {
			cols[i] = schema.ColumnName(col)
		}
		out = append(out, Constraint{Kind: c.Kind, Columns: cols})
	}
	cs.Constraints = out
	return nil
}

// VTable is the logical, user-visible table identity plus its table-wide
// constraints. It does not carry Version structs (see package doc).
type VTable struct {
	ID          ID
	Constraints ConstraintSet
}

// ColumnDef is one column definition as accepted by CREATE TABLE / ADD
// COLUMN.
type ColumnDef struct {
	Name     schema.ColumnName
	DataType sqltype.DataType
}

// Version is an immutable physical schema revision of its VTable.
// ColumnDataTypes maps each non-PK column to its type and
// nullability as fixed at creation time; never mutated afterward.
type Version struct {
	ID              VersionID
	ColumnNames     []schema.ColumnName // declared order, non-PK columns only
	ColumnDataTypes map[schema.ColumnName]sqltype.DataType
	Active          bool
}

// NonNullColumns returns, in declared order, the non-PK columns of this
// Version that are NOT NULL.
func (v Version) NonNullColumns() []schema.ColumnName {
	var out []schema.ColumnName
	for _, c := range v.ColumnNames {
		if dt, ok := v.ColumnDataTypes[c]; ok && !dt.Nullable {
			out = append(out, c)
		}
	}
	return out
}

// HasColumn reports whether name is one of this Version's non-PK columns.
func (v Version) HasColumn(name schema.ColumnName) bool {
	_, ok := v.ColumnDataTypes[name]
	return ok
}

// ActiveVersions is the newest-first sorted snapshot of a VTable's
// currently-active Versions.
type ActiveVersions struct {
	Versions []Version // sorted newest (highest VersionNumber) first
}

func NewActiveVersions(vs []Version) ActiveVersions {
	sorted := append([]Version(nil), vs...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ID.VersionNumber > sorted[j].ID.VersionNumber
	})
	return ActiveVersions{Versions: sorted}
}

func (a ActiveVersions) Newest() (Version, bool) {
	if len(a.Versions) == 0 {
		return Version{}, false
	}
	return a.Versions[0], true
}
