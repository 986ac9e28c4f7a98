package vtable

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/apllodb/apllodb-sub001/internal/apllodb/apperrors"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/row"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/schema"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/sqltype"
)

func vID(table string, n VersionNumber) VersionID {
	return VersionID{VTableID: ID{DatabaseName: "d", TableName: schema.TableName(table)}, VersionNumber: n}
}

func TestSelectInsertTarget_NewestQualifyingWins(t *testing.T) {
	v1 := Version{
		ID:          vID("people", 1),
		ColumnNames: []schema.ColumnName{"age"},
		ColumnDataTypes: map[schema.ColumnName]sqltype.DataType{
			"age": {Type: sqltype.Integer, Nullable: true},
		},
		Active: true,
	}
	v2 := Version{
		ID:          vID("people", 2),
		ColumnNames: []schema.ColumnName{},
		ColumnDataTypes: map[schema.ColumnName]sqltype.DataType{},
		Active:      true,
	}
	active := NewActiveVersions([]Version{v1, v2})

	supplied := row.NewNonPKValues(nil, nil) // only PK supplied, id=2 case from scenario 1
	got, err := SelectInsertTarget(active, []schema.ColumnName{"id"}, supplied)
	require.NoError(t, err)
	require.Equal(t, VersionNumber(2), got.ID.VersionNumber)
}

func TestSelectInsertTarget_UndefinedColumn(t *testing.T) {
	v1 := Version{
		ID:              vID("t", 1),
		ColumnDataTypes: map[schema.ColumnName]sqltype.DataType{},
	}
	active := NewActiveVersions([]Version{v1})
	supplied := row.NewNonPKValues([]schema.ColumnName{"ghost"}, []sqltype.Value{sqltype.NewInteger(1)})
	_, err := SelectInsertTarget(active, []schema.ColumnName{"id"}, supplied)
	require.Error(t, err)
	require.Equal(t, apperrors.UndefinedColumn, apperrors.KindOf(err))
}

func TestSelectInsertTarget_NotNullViolation(t *testing.T) {
	v1 := Version{
		ID:          vID("t", 1),
		ColumnNames: []schema.ColumnName{"c"},
		ColumnDataTypes: map[schema.ColumnName]sqltype.DataType{
			"c": {Type: sqltype.Integer, Nullable: false},
		},
	}
	active := NewActiveVersions([]Version{v1})
	supplied := row.NewNonPKValues(nil, nil)
	_, err := SelectInsertTarget(active, []schema.ColumnName{"id"}, supplied)
	require.Error(t, err)
	require.Equal(t, apperrors.IntegrityConstraintViolation, apperrors.KindOf(err))
}

func TestConstraintSetRoundTrip(t *testing.T) {
	cs := NewConstraintSet(PrimaryKey("cc", "pc"), Unique("name"))
	data, err := cs.MarshalJSON()
	require.NoError(t, err)

	var got ConstraintSet
	require.NoError(t, got.UnmarshalJSON(data))
	require.Equal(t, cs, got)
}
