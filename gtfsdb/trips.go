package gtfsdb

import (
	"context"
	"database/sql"
	"fmt"

	"banksia.lava.moe/internal/models"
)

// UpsertTrips deletes all trips and insert-or-replaces the given set.
func (c *Client) UpsertTrips(ctx context.Context, trips []models.Trip) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM trips;`); err != nil {
		tx.Rollback() // nolint:errcheck
		return fmt.Errorf("error deleting trips: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO trips (
			trip_id, route_id, service_id, shape_id, headsign,
			direction_id, block_id, wheelchair_accessible
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?);
	`)
	if err != nil {
		tx.Rollback() // nolint:errcheck
		return fmt.Errorf("error preparing statement: %w", err)
	}
	defer stmt.Close() // nolint:errcheck

	for _, trip := range trips {
		_, err := stmt.ExecContext(ctx,
			trip.ID, trip.RouteID, trip.ServiceID, trip.ShapeID, trip.Headsign,
			trip.DirectionID, trip.BlockID, trip.WheelchairAccessible,
		)
		if err != nil {
			tx.Rollback() // nolint:errcheck
			return fmt.Errorf("error inserting trip: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

// GetTrip returns one trip by id.
func (c *Client) GetTrip(ctx context.Context, id string) (models.Trip, error) {
	var trip models.Trip

	err := c.DB.QueryRowContext(ctx, `
		SELECT trip_id, route_id, service_id, shape_id, headsign,
			direction_id, block_id, wheelchair_accessible
		FROM trips WHERE trip_id = ?`, id).
		Scan(&trip.ID, &trip.RouteID, &trip.ServiceID, &trip.ShapeID, &trip.Headsign,
			&trip.DirectionID, &trip.BlockID, &trip.WheelchairAccessible)
	if err == sql.ErrNoRows {
		return models.Trip{}, fmt.Errorf("trip %q not found", id)
	}
	if err != nil {
		return models.Trip{}, fmt.Errorf("error reading trip: %w", err)
	}
	return trip, nil
}

func createTripsTable(tx *sql.Tx) error {
	return createTable(tx, "trips", `
		CREATE TABLE IF NOT EXISTS trips (
			trip_id TEXT PRIMARY KEY,
			route_id TEXT NOT NULL,
			service_id TEXT NOT NULL,
			shape_id TEXT,
			headsign TEXT,
			direction_id INTEGER DEFAULT 0,
			block_id TEXT,
			wheelchair_accessible INTEGER DEFAULT 0
		);
	`)
}
