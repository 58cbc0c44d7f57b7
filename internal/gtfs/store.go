package gtfs

import (
	"context"
	"time"

	"banksia.lava.moe/internal/models"
)

// Store is the transactional table store the ingestor writes snapshots
// into. Implementations must make each call atomic: a batch either
// commits fully or not at all.
type Store interface {
	// ReplaceRoutes deletes all routes and inserts the given set.
	ReplaceRoutes(ctx context.Context, routes []models.Route) error
	// UpsertStops deletes all stops and insert-or-replaces the given set
	// in order, so the last write for a duplicate id wins.
	UpsertStops(ctx context.Context, stops []models.Stop) error
	// ReplaceShapes deletes all shapes and inserts the given set.
	ReplaceShapes(ctx context.Context, shapes []models.Shape) error
	// UpsertTrips deletes all trips and insert-or-replaces the given set.
	UpsertTrips(ctx context.Context, trips []models.Trip) error
	// DeleteStopTimes clears the stop_times table ahead of batched loads.
	DeleteStopTimes(ctx context.Context) error
	// UpsertStopTimes insert-or-replaces one bounded batch of stop times.
	UpsertStopTimes(ctx context.Context, stopTimes []models.StopTime) error
	// UpdateMetadata records the ingest timestamp for the given table
	// groups in a single transaction.
	UpdateMetadata(ctx context.Context, updated time.Time, groups []string) error
}
