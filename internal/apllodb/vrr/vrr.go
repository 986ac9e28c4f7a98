// Package vrr defines the Version-Revision Resolver ("navi") contract:
// the per-VTable secondary structure mapping apparent PK to its latest
// (physical_row_id, version_number_or_null, revision).
// This package holds only the interface and the entry type; the concrete
// SQLite-backed implementation lives in package storage, which also owns
// inserting the physical row first so the navi entry never references a
// nonexistent row.
package vrr

import (
	"context"

	"github.com/apllodb/apllodb-sub001/internal/apllodb/row"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/vtable"
)

// NaviEntry is `(physical_row_id, apparent_pk, version_number, revision)`,
// VersionNumber is nil for a tombstone.
type NaviEntry struct {
	PK            row.PKValues
	PhysicalRowID string
	VersionNumber *vtable.VersionNumber
	Revision      int64
}

func (e NaviEntry) IsLive() bool { return e.VersionNumber != nil }

// Resolver is the Version-Revision Resolver contract.
type Resolver interface {
	// Probe returns, for each requested PK, its navi entry if present and
	// live (skipping tombstones and missing PKs). Result order matches
	// the input order; PKs with no live entry are simply omitted.
	Probe(ctx context.Context, pks []row.PKValues) ([]NaviEntry, error)

	// Scan returns all live navi entries, ordered by apparent PK
	// ascending.
	Scan(ctx context.Context) ([]NaviEntry, error)

	// Register allocates the next revision for pk and inserts the
	// physical row into versionID's physical table, then upserts the
	// navi entry. Fails with IntegrityConstraintUniqueViolation if pk
	// already has a live entry.
	Register(ctx context.Context, versionID vtable.VersionID, pk row.PKValues, nonPK row.NonPKValues) (revision int64, err error)

	// ReviseLive advances the revision of a currently-live PK in place
	// (the Immutable-Schema UPDATE semantics: "append a
	// new revision under the row's current version"), inserting the new
	// physical row and repointing the navi entry at it.
	ReviseLive(ctx context.Context, pk row.PKValues, nonPK row.NonPKValues) (revision int64, err error)

	// DeregisterAll tombstones every currently-live PK (implements
	// DELETE FROM t with no WHERE).
	DeregisterAll(ctx context.Context) error
}
