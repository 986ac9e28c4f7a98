package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apllodb/apllodb-sub001/internal/apllodb/row"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/schema"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/sqltype"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/vtable"
)

func openTestFile(t *testing.T) *File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.apllodb")
	f, err := OpenPath(context.Background(), path, DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func peopleVersion1(active bool) vtable.Version {
	return vtable.Version{
		ID:          vtable.VersionID{VTableID: vtable.ID{DatabaseName: "d", TableName: "people"}, VersionNumber: 1},
		ColumnNames: []schema.ColumnName{"name"},
		ColumnDataTypes: map[schema.ColumnName]sqltype.DataType{
			"name": {Type: sqltype.Text, Nullable: false},
		},
		Active: active,
	}
}

func TestVTableRepository_CreateAndReadRoundTrip(t *testing.T) {
	f := openTestFile(t)
	repo := NewVTableRepository(f.DB(), "d")
	ctx := context.Background()

	vt := vtable.VTable{
		ID:          vtable.ID{DatabaseName: "d", TableName: "people"},
		Constraints: vtable.NewConstraintSet(vtable.PrimaryKey("id")),
	}
	first := peopleVersion1(true)
	first.ColumnNames = []schema.ColumnName{"name"}

	require.NoError(t, repo.Create(ctx, vt, first))

	got, err := repo.Read(ctx, "people")
	require.NoError(t, err)
	assert.Equal(t, []schema.ColumnName{"id"}, got.Constraints.PrimaryKeyColumns())

	active, err := repo.ActiveVersions(ctx, "people")
	require.NoError(t, err)
	require.Len(t, active.Versions, 1)
	assert.Equal(t, vtable.VersionNumber(1), active.Versions[0].ID.VersionNumber)
}

func TestVTableRepository_CreateDuplicate(t *testing.T) {
	f := openTestFile(t)
	repo := NewVTableRepository(f.DB(), "d")
	ctx := context.Background()

	vt := vtable.VTable{ID: vtable.ID{DatabaseName: "d", TableName: "people"}, Constraints: vtable.NewConstraintSet(vtable.PrimaryKey("id"))}
	require.NoError(t, repo.Create(ctx, vt, peopleVersion1(true)))

	err := repo.Create(ctx, vt, peopleVersion1(true))
	require.Error(t, err)
}

func TestResolver_RegisterProbeAndFullScan(t *testing.T) {
	f := openTestFile(t)
	ctx := context.Background()
	repo := NewVTableRepository(f.DB(), "d")

	vt := vtable.VTable{ID: vtable.ID{DatabaseName: "d", TableName: "people"}, Constraints: vtable.NewConstraintSet(vtable.PrimaryKey("id"))}
	v1 := peopleVersion1(true)
	require.NoError(t, repo.Create(ctx, vt, v1))

	resolver, err := repo.Resolver(ctx, "people")
	require.NoError(t, err)

	pk := row.NewPKValues([]schema.ColumnName{"id"}, []sqltype.Value{sqltype.NewInteger(1)})
	nonPK := row.NewNonPKValues([]schema.ColumnName{"name"}, []sqltype.Value{sqltype.NewText("ada")})

	rev, err := resolver.Register(ctx, v1.ID, pk, nonPK)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rev)

	_, err = resolver.Register(ctx, v1.ID, pk, nonPK)
	assert.Error(t, err, "duplicate primary key must be rejected")

	entries, err := resolver.Probe(ctx, []row.PKValues{pk})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsLive())

	rows, err := repo.FullScan(ctx, "people")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	v, ok := rows[0].NonPKValues.Get("name")
	require.True(t, ok)
	text, _ := v.Text()
	assert.Equal(t, "ada", text)
}

func TestResolver_DeregisterAllTombstones(t *testing.T) {
	f := openTestFile(t)
	ctx := context.Background()
	repo := NewVTableRepository(f.DB(), "d")

	vt := vtable.VTable{ID: vtable.ID{DatabaseName: "d", TableName: "people"}, Constraints: vtable.NewConstraintSet(vtable.PrimaryKey("id"))}
	v1 := peopleVersion1(true)
	require.NoError(t, repo.Create(ctx, vt, v1))

	resolver, err := repo.Resolver(ctx, "people")
	require.NoError(t, err)

	pk := row.NewPKValues([]schema.ColumnName{"id"}, []sqltype.Value{sqltype.NewInteger(1)})
	nonPK := row.NewNonPKValues([]schema.ColumnName{"name"}, []sqltype.Value{sqltype.NewText("ada")})
	_, err = resolver.Register(ctx, v1.ID, pk, nonPK)
	require.NoError(t, err)

	require.NoError(t, resolver.DeregisterAll(ctx))

	entries, err := resolver.Probe(ctx, []row.PKValues{pk})
	require.NoError(t, err)
	assert.Empty(t, entries, "tombstoned row must not be probed as live")

	// re-registering the same PK after deletion must succeed with a fresh
	// revision: the tombstone took revision 2, so the new row gets 3.
	rev, err := resolver.Register(ctx, v1.ID, pk, nonPK)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rev)
}

func TestVTableRepository_DeactivateVersionPreservesRows(t *testing.T) {
	f := openTestFile(t)
	ctx := context.Background()
	repo := NewVTableRepository(f.DB(), "d")

	vt := vtable.VTable{ID: vtable.ID{DatabaseName: "d", TableName: "people"}, Constraints: vtable.NewConstraintSet(vtable.PrimaryKey("id"))}
	v1 := peopleVersion1(true)
	require.NoError(t, repo.Create(ctx, vt, v1))

	resolver, err := repo.Resolver(ctx, "people")
	require.NoError(t, err)
	pk := row.NewPKValues([]schema.ColumnName{"id"}, []sqltype.Value{sqltype.NewInteger(1)})
	nonPK := row.NewNonPKValues([]schema.ColumnName{"name"}, []sqltype.Value{sqltype.NewText("ada")})
	_, err = resolver.Register(ctx, v1.ID, pk, nonPK)
	require.NoError(t, err)

	require.NoError(t, repo.DeactivateVersion(ctx, "people", 1))

	active, err := repo.ActiveVersions(ctx, "people")
	require.NoError(t, err)
	assert.Empty(t, active.Versions)

	rows, err := repo.FullScan(ctx, "people")
	require.NoError(t, err)
	require.Len(t, rows, 1, "rows of a deactivated version must remain readable")
}

func TestVTableRepository_DeleteAllDropsEverything(t *testing.T) {
	f := openTestFile(t)
	ctx := context.Background()
	repo := NewVTableRepository(f.DB(), "d")

	vt := vtable.VTable{ID: vtable.ID{DatabaseName: "d", TableName: "people"}, Constraints: vtable.NewConstraintSet(vtable.PrimaryKey("id"))}
	require.NoError(t, repo.Create(ctx, vt, peopleVersion1(true)))

	require.NoError(t, repo.DeleteAll(ctx, "people"))

	_, err := repo.Read(ctx, "people")
	assert.Error(t, err)
}
