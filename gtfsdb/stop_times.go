package gtfsdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"banksia.lava.moe/internal/models"
)

// DeleteStopTimes clears the stop_times table ahead of batched loads.
// The table can run to tens of millions of rows, so it is loaded in
// bounded batches rather than one transaction per ingest.
func (c *Client) DeleteStopTimes(ctx context.Context) error {
	if _, err := c.DB.ExecContext(ctx, `DELETE FROM stop_times;`); err != nil {
		return fmt.Errorf("error deleting stop times: %w", err)
	}
	return nil
}

// UpsertStopTimes insert-or-replaces one batch of stop times in a single
// transaction. Arrival and departure are stored as seconds past midnight
// of the service day and may exceed 24h.
func (c *Client) UpsertStopTimes(ctx context.Context, stopTimes []models.StopTime) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO stop_times (
			trip_id, stop_id, arrival_secs, departure_secs,
			headsign, pickup_type, drop_off_type
		) VALUES (?, ?, ?, ?, ?, ?, ?);
	`)
	if err != nil {
		tx.Rollback() // nolint:errcheck
		return fmt.Errorf("error preparing statement: %w", err)
	}
	defer stmt.Close() // nolint:errcheck

	for _, st := range stopTimes {
		_, err := stmt.ExecContext(ctx,
			st.TripID, st.StopID,
			int64(st.Arrival/time.Second), int64(st.Departure/time.Second),
			st.Headsign, st.PickupType, st.DropOffType,
		)
		if err != nil {
			tx.Rollback() // nolint:errcheck
			return fmt.Errorf("error inserting stop_time: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

// StopTimesForTrip returns a trip's stop times in insertion order.
func (c *Client) StopTimesForTrip(ctx context.Context, tripID string) ([]models.StopTime, error) {
	rows, err := c.DB.QueryContext(ctx, `
		SELECT trip_id, stop_id, arrival_secs, departure_secs,
			headsign, pickup_type, drop_off_type
		FROM stop_times WHERE trip_id = ?`, tripID)
	if err != nil {
		return nil, fmt.Errorf("error reading stop times: %w", err)
	}
	defer rows.Close() // nolint:errcheck

	var stopTimes []models.StopTime
	for rows.Next() {
		var st models.StopTime
		var arrivalSecs, departureSecs int64
		err := rows.Scan(&st.TripID, &st.StopID, &arrivalSecs, &departureSecs,
			&st.Headsign, &st.PickupType, &st.DropOffType)
		if err != nil {
			return nil, fmt.Errorf("error scanning stop_time: %w", err)
		}
		st.Arrival = time.Duration(arrivalSecs) * time.Second
		st.Departure = time.Duration(departureSecs) * time.Second
		stopTimes = append(stopTimes, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading stop times: %w", err)
	}
	return stopTimes, nil
}

// CountStopTimes returns the number of stop_times rows in the snapshot.
func (c *Client) CountStopTimes(ctx context.Context) (int, error) {
	var count int
	if err := c.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM stop_times`).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting stop times: %w", err)
	}
	return count, nil
}

func createStopTimesTable(tx *sql.Tx) error {
	return createTable(tx, "stop_times", `
		CREATE TABLE IF NOT EXISTS stop_times (
			trip_id TEXT NOT NULL,
			stop_id TEXT NOT NULL,
			arrival_secs INTEGER NOT NULL,
			departure_secs INTEGER NOT NULL,
			headsign TEXT,
			pickup_type INTEGER DEFAULT 0,
			drop_off_type INTEGER DEFAULT 0
		);
	`)
}
