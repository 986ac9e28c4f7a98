package storage

import (
	"context"
	"database/sql"

	"golang.org/x/sync/singleflight"

	"github.com/apllodb/apllodb-sub001/internal/apllodb/apperrors"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/row"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/schema"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/sqltype"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/vtable"
)

// VTableRepository is the storage-engine boundary: every
// VTable-level operation (create / read / update / delete_all / full_scan /
// active_versions) a transaction needs, backed by one *sql.DB per database
// file.
type VTableRepository struct {
	db     dbExecutor
	dbName string

	// versionsGroup coalesces concurrent ActiveVersions loads (used by
	// insert-target selection) for the same table made through this
	// repository instance. Tx.VTables builds a new repository on every
	// call, so loads from different sessions or statements are not
	// coalesced.
	versionsGroup singleflight.Group
}

func NewVTableRepository(db dbExecutor, dbName string) *VTableRepository {
	return &VTableRepository{db: db, dbName: dbName}
}

// Create registers a brand-new VTable with its first Version, creating the
// physical Version table and the navi table.
func (repo *VTableRepository) Create(ctx context.Context, vt vtable.VTable, first vtable.Version) error {
	tableName := string(vt.ID.TableName)
	if _, err := getVTableMeta(ctx, repo.db, tableName); err == nil {
		return apperrors.New(apperrors.DuplicateTable, tableName)
	} else if apperrors.KindOf(err) != apperrors.UndefinedTable {
		return err
	}

	pkCols := vt.Constraints.PrimaryKeyColumns()
	pkTypes := map[schema.ColumnName]sqltype.DataType{}
	for _, c := range pkCols {
		// PK columns are typed the same across all Versions of a VTable;
		// the first Version's declared types are authoritative.
		if dt, ok := first.ColumnDataTypes[c]; ok {
			pkTypes[c] = dt
		}
	}

	if err := putVTableMeta(ctx, repo.db, tableName, vt.Constraints); err != nil {
		return err
	}
	if err := putVersionMeta(ctx, repo.db, tableName, first); err != nil {
		return err
	}
	if err := createVersionPhysicalTable(ctx, repo.db, tableName, first, pkCols, pkTypes); err != nil {
		return err
	}
	if err := createNaviTable(ctx, repo.db, tableName, pkCols, pkTypes); err != nil {
		return err
	}
	return nil
}

// Read returns the VTable identity and constraints for tableName.
func (repo *VTableRepository) Read(ctx context.Context, tableName schema.TableName) (vtable.VTable, error) {
	cs, err := getVTableMeta(ctx, repo.db, string(tableName))
	if err != nil {
		return vtable.VTable{}, err
	}
	return vtable.VTable{
		ID:          vtable.ID{DatabaseName: schema.DatabaseName(repo.dbName), TableName: tableName},
		Constraints: cs,
	}, nil
}

// AllVersions returns every Version (active and inactive) of tableName.
func (repo *VTableRepository) AllVersions(ctx context.Context, tableName schema.TableName) ([]vtable.Version, error) {
	return listVersionMeta(ctx, repo.db, repo.dbName, string(tableName))
}

// ActiveVersions returns the newest-first snapshot of currently-active
// Versions, the input to the insert-target selection algorithm. Concurrent
// callers on this repository instance for the same table coalesce onto a
// single metadata read.
func (repo *VTableRepository) ActiveVersions(ctx context.Context, tableName schema.TableName) (vtable.ActiveVersions, error) {
	key := repo.dbName + "." + string(tableName)
	v, err, _ := repo.versionsGroup.Do(key, func() (any, error) {
		all, err := listVersionMeta(ctx, repo.db, repo.dbName, string(tableName))
		if err != nil {
			return nil, err
		}
		var active []vtable.Version
		for _, v := range all {
			if v.Active {
				active = append(active, v)
			}
		}
		return vtable.NewActiveVersions(active), nil
	})
	if err != nil {
		return vtable.ActiveVersions{}, err
	}
	return v.(vtable.ActiveVersions), nil
}

func (repo *VTableRepository) pkColsAndTypes(ctx context.Context, tableName schema.TableName) ([]schema.ColumnName, map[schema.ColumnName]sqltype.DataType, error) {
	vt, err := repo.Read(ctx, tableName)
	if err != nil {
		return nil, nil, err
	}
	pkCols := vt.Constraints.PrimaryKeyColumns()
	all, err := listVersionMeta(ctx, repo.db, repo.dbName, string(tableName))
	if err != nil {
		return nil, nil, err
	}
	pkTypes := map[schema.ColumnName]sqltype.DataType{}
	for _, v := range all {
		for _, c := range pkCols {
			if dt, ok := v.ColumnDataTypes[c]; ok {
				pkTypes[c] = dt
			}
		}
	}
	return pkCols, pkTypes, nil
}

// AddVersion appends a new active Version; ALTER TABLE ADD COLUMN and DROP
// COLUMN both use it to create the successor Version.
func (repo *VTableRepository) AddVersion(ctx context.Context, tableName schema.TableName, v vtable.Version) error {
	pkCols, pkTypes, err := repo.pkColsAndTypes(ctx, tableName)
	if err != nil {
		return err
	}
	if err := putVersionMeta(ctx, repo.db, string(tableName), v); err != nil {
		return err
	}
	return createVersionPhysicalTable(ctx, repo.db, string(tableName), v, pkCols, pkTypes)
}

// DeactivateVersion removes a Version from the active set: existing rows of
// that Version are untouched, only its eligibility for new inserts is
// revoked. DROP COLUMN does not call it; it adds a successor Version
// through AddVersion.
func (repo *VTableRepository) DeactivateVersion(ctx context.Context, tableName schema.TableName, versionNumber vtable.VersionNumber) error {
	all, err := listVersionMeta(ctx, repo.db, repo.dbName, string(tableName))
	if err != nil {
		return err
	}
	var target *vtable.Version
	for i := range all {
		if all[i].ID.VersionNumber == versionNumber {
			target = &all[i]
			break
		}
	}
	if target == nil {
		return apperrors.New(apperrors.UndefinedObject, "version not found")
	}
	if !target.Active {
		return nil
	}
	if err := deactivateVersionPhysicalTable(ctx, repo.db, string(tableName), versionNumber); err != nil {
		return err
	}
	target.Active = false
	return putVersionMeta(ctx, repo.db, string(tableName), *target)
}

// FullScan reads the current, live contents of tableName: every row whose
// navi entry is still live, resolved to its latest physical values.
func (repo *VTableRepository) FullScan(ctx context.Context, tableName schema.TableName) ([]row.PhysicalRow, error) {
	resolver, err := repo.Resolver(ctx, tableName)
	if err != nil {
		return nil, err
	}
	entries, err := resolver.Scan(ctx)
	if err != nil {
		return nil, err
	}
	versions, err := listVersionMeta(ctx, repo.db, repo.dbName, string(tableName))
	if err != nil {
		return nil, err
	}
	byNumber := make(map[vtable.VersionNumber]vtable.Version, len(versions))
	for _, v := range versions {
		byNumber[v.ID.VersionNumber] = v
	}

	out := make([]row.PhysicalRow, 0, len(entries))
	for _, e := range entries {
		v, ok := byNumber[*e.VersionNumber]
		if !ok {
			return nil, apperrors.New(apperrors.IoError, "navi entry references unknown version")
		}
		nonPK, err := fetchNonPKByRowID(ctx, repo.db, string(tableName), v, e.PhysicalRowID)
		if err != nil {
			return nil, err
		}
		out = append(out, row.PhysicalRow{PK: e.PK, Revision: e.Revision, NonPKValues: nonPK})
	}
	return out, nil
}

// DeleteAll drops every physical table (all Versions plus navi) and the
// VTable's metadata rows — the implementation of DROP TABLE.
func (repo *VTableRepository) DeleteAll(ctx context.Context, tableName schema.TableName) error {
	versions, err := listVersionMeta(ctx, repo.db, repo.dbName, string(tableName))
	if err != nil {
		return err
	}
	for _, v := range versions {
		if err := dropVersionPhysicalTable(ctx, repo.db, string(tableName), v); err != nil {
			return err
		}
	}
	if err := dropNaviTable(ctx, repo.db, string(tableName)); err != nil {
		return err
	}
	if err := deleteVersionMeta(ctx, repo.db, string(tableName)); err != nil {
		return err
	}
	return deleteVTableMeta(ctx, repo.db, string(tableName))
}

// Resolver returns the navi resolver for tableName, constructed on demand
// since it only needs the PK column/type shape, not persistent state.
func (repo *VTableRepository) Resolver(ctx context.Context, tableName schema.TableName) (*SQLiteResolver, error) {
	pkCols, pkTypes, err := repo.pkColsAndTypes(ctx, tableName)
	if err != nil {
		return nil, err
	}
	return NewSQLiteResolver(repo.db, repo.dbName, string(tableName), pkCols, pkTypes), nil
}
