// Package sqlite registers the pure-Go SQLite driver under the canonical
// "sqlite3" name so database/sql callers keep the familiar driver string
// without the cgo dependency.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"

	"modernc.org/sqlite"
)

type sqliteDriver struct {
	*sqlite.Driver
}

func (d sqliteDriver) Open(name string) (driver.Conn, error) {
	conn, err := d.Driver.Open(name)
	if err != nil {
		return nil, err
	}

	// database/sql pools connections, so foreign key enforcement has to be
	// enabled on every physical connection, not once per database.
	execer, ok := conn.(driver.ExecerContext)
	if !ok {
		return conn, nil
	}

	if _, err := execer.ExecContext(context.Background(), "PRAGMA foreign_keys = ON;", nil); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return conn, nil
}

func init() {
	sql.Register("sqlite3", sqliteDriver{Driver: &sqlite.Driver{}})
}
