package gtfsdb

import (
	"context"
	"database/sql"
	"fmt"

	"banksia.lava.moe/internal/models"
)

// ReplaceRoutes deletes all routes and inserts the given set in one
// transaction.
func (c *Client) ReplaceRoutes(ctx context.Context, routes []models.Route) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM routes;`); err != nil {
		tx.Rollback() // nolint:errcheck
		return fmt.Errorf("error deleting routes: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO routes (
			route_id, route_type, route_number, route_name
		) VALUES (?, ?, ?, ?);
	`)
	if err != nil {
		tx.Rollback() // nolint:errcheck
		return fmt.Errorf("error preparing statement: %w", err)
	}
	defer stmt.Close() // nolint:errcheck

	for _, route := range routes {
		_, err := stmt.ExecContext(ctx, route.ID, int(route.Type), route.Number, route.Name)
		if err != nil {
			tx.Rollback() // nolint:errcheck
			return fmt.Errorf("error inserting route: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

// GetRoute returns one route by id.
func (c *Client) GetRoute(ctx context.Context, id string) (models.Route, error) {
	var route models.Route
	var routeType int

	err := c.DB.QueryRowContext(ctx, `
		SELECT route_id, route_type, route_number, route_name
		FROM routes WHERE route_id = ?`, id).
		Scan(&route.ID, &routeType, &route.Number, &route.Name)
	if err == sql.ErrNoRows {
		return models.Route{}, fmt.Errorf("route %q not found", id)
	}
	if err != nil {
		return models.Route{}, fmt.Errorf("error reading route: %w", err)
	}

	route.Type = models.RouteType(routeType)
	return route, nil
}

// CountRoutes returns the number of routes in the snapshot.
func (c *Client) CountRoutes(ctx context.Context) (int, error) {
	var count int
	if err := c.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM routes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting routes: %w", err)
	}
	return count, nil
}

func createRoutesTable(tx *sql.Tx) error {
	return createTable(tx, "routes", `
		CREATE TABLE IF NOT EXISTS routes (
			route_id TEXT PRIMARY KEY,
			route_type INTEGER NOT NULL,
			route_number TEXT,
			route_name TEXT
		);
	`)
}
