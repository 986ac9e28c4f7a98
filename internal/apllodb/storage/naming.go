package storage

import (
	"fmt"

	"github.com/apllodb/apllodb-sub001/internal/apllodb/vtable"
)

// Deterministic physical names: "one physical table
// per Version, named deterministically from (table_name, version_number,
// active_flag)" and "one navi physical table per VTable, named by
// appending a reserved suffix to the table name".

func versionTableName(tableName string, versionNumber vtable.VersionNumber, active bool) string {
	flag := "inactive"
	if active {
		flag = "active"
	}
	return fmt.Sprintf("apllodb_v_%s_%d_%s", tableName, versionNumber, flag)
}

func naviTableName(tableName string) string {
	return "apllodb_navi_" + tableName
}

const vtableMetaTable = "apllodb_vtable_meta"
const versionMetaTable = "apllodb_version_meta"
