package gtfsdb

import (
	"context"
	"database/sql"
	"fmt"

	"banksia.lava.moe/internal/models"
)

// UpsertStops deletes all stops, then insert-or-replaces the given set in
// order. Duplicate ids across per-mode table files are expected; the last
// write wins.
func (c *Client) UpsertStops(ctx context.Context, stops []models.Stop) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM stops;`); err != nil {
		tx.Rollback() // nolint:errcheck
		return fmt.Errorf("error deleting stops: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO stops (
			stop_id, stop_name, stop_lat, stop_lon,
			parent_station, wheelchair_boarding, level_id, platform_code
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?);
	`)
	if err != nil {
		tx.Rollback() // nolint:errcheck
		return fmt.Errorf("error preparing statement: %w", err)
	}
	defer stmt.Close() // nolint:errcheck

	for _, stop := range stops {
		_, err := stmt.ExecContext(ctx,
			stop.ID, stop.Name, stop.Position.Lat, stop.Position.Lon,
			stop.ParentStation, stop.WheelchairBoarding, stop.LevelID, stop.PlatformCode,
		)
		if err != nil {
			tx.Rollback() // nolint:errcheck
			return fmt.Errorf("error inserting stop: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

// GetStop returns one stop by id.
func (c *Client) GetStop(ctx context.Context, id string) (models.Stop, error) {
	var stop models.Stop

	err := c.DB.QueryRowContext(ctx, `
		SELECT stop_id, stop_name, stop_lat, stop_lon,
			parent_station, wheelchair_boarding, level_id, platform_code
		FROM stops WHERE stop_id = ?`, id).
		Scan(&stop.ID, &stop.Name, &stop.Position.Lat, &stop.Position.Lon,
			&stop.ParentStation, &stop.WheelchairBoarding, &stop.LevelID, &stop.PlatformCode)
	if err == sql.ErrNoRows {
		return models.Stop{}, fmt.Errorf("stop %q not found", id)
	}
	if err != nil {
		return models.Stop{}, fmt.Errorf("error reading stop: %w", err)
	}
	return stop, nil
}

// CountStops returns the number of stops in the snapshot.
func (c *Client) CountStops(ctx context.Context) (int, error) {
	var count int
	if err := c.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM stops`).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting stops: %w", err)
	}
	return count, nil
}

func createStopsTable(tx *sql.Tx) error {
	return createTable(tx, "stops", `
		CREATE TABLE IF NOT EXISTS stops (
			stop_id TEXT PRIMARY KEY,
			stop_name TEXT,
			stop_lat REAL NOT NULL,
			stop_lon REAL NOT NULL,
			parent_station TEXT,
			wheelchair_boarding INTEGER DEFAULT 0,
			level_id TEXT,
			platform_code TEXT
		);
	`)
}
