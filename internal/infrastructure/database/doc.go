// Package database provides SQLite connectivity for the Insteon bridge.
//
// The bridge keeps its device registry in a SQLite file inside the
// configured working directory. This package manages:
//   - Opening the file with WAL mode and a busy timeout
//   - Applying embedded schema migrations
//   - Lifecycle and health checks
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS, "."); err != nil {
//	    return err
//	}
//
// All queries use parameterised statements. The database file is created
// with 0600 permissions.
package database
