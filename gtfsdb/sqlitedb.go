package gtfsdb

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"banksia.lava.moe/internal/appconf"
)

// createDB opens the SQLite database and creates the snapshot tables.
// Test databases must be in-memory so test runs never leave files behind.
func createDB(config Config) (*sql.DB, error) {
	if config.Env == appconf.Test && config.DBPath != ":memory:" {
		return nil, fmt.Errorf("test databases must use :memory:, got %s", config.DBPath)
	}

	db, err := sql.Open("sqlite", config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if config.Env == appconf.Test {
		// An in-memory database exists per connection; a single pooled
		// connection keeps every caller on the same one.
		db.SetMaxOpenConns(1)
	}

	if _, err = db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return nil, fmt.Errorf("error enabling foreign keys: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}

	if err := createTables(tx); err != nil {
		tx.Rollback() // nolint:errcheck
		return nil, err
	}

	_, err = tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_trips_route_id ON trips(route_id);
		CREATE INDEX IF NOT EXISTS idx_trips_service_id ON trips(service_id);
		CREATE INDEX IF NOT EXISTS idx_stop_times_trip_id ON stop_times(trip_id);
		CREATE INDEX IF NOT EXISTS idx_stop_times_stop_id ON stop_times(stop_id);
	`)
	if err != nil {
		tx.Rollback() // nolint:errcheck
		return nil, fmt.Errorf("error creating indexes: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing transaction: %w", err)
	}

	return db, nil
}

func createTables(tx *sql.Tx) error {
	creators := []func(*sql.Tx) error{
		createRoutesTable,
		createStopsTable,
		createShapesTable,
		createTripsTable,
		createStopTimesTable,
		createVersionMetadataTable,
	}
	for _, create := range creators {
		if err := create(tx); err != nil {
			return err
		}
	}
	return nil
}

// createTable creates a table in the database
func createTable(tx *sql.Tx, tableName string, createStmt string) error {
	if _, err := tx.Exec(createStmt); err != nil {
		return fmt.Errorf("error creating table %s: %w", tableName, err)
	}
	return nil
}
