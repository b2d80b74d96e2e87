//go:build !cgo_sqlite

package store

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

// DriverName is the database/sql driver OpenSQLite uses.
const DriverName = "sqlite"

func openDB(dataSource string) (*sql.DB, error) {
	return sql.Open(DriverName, dataSource)
}
