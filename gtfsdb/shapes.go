package gtfsdb

import (
	"context"
	"database/sql"
	"fmt"

	"banksia.lava.moe/internal/models"
)

// ReplaceShapes deletes all shape points and inserts the given shapes,
// one row per polyline point.
func (c *Client) ReplaceShapes(ctx context.Context, shapes []models.Shape) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM shapes;`); err != nil {
		tx.Rollback() // nolint:errcheck
		return fmt.Errorf("error deleting shapes: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO shapes (
			shape_id, lat, lon, pt_sequence
		) VALUES (?, ?, ?, ?);
	`)
	if err != nil {
		tx.Rollback() // nolint:errcheck
		return fmt.Errorf("error preparing statement: %w", err)
	}
	defer stmt.Close() // nolint:errcheck

	for _, shape := range shapes {
		for i, pt := range shape.Points {
			if _, err := stmt.ExecContext(ctx, shape.ID, pt.Lat, pt.Lon, i); err != nil {
				tx.Rollback() // nolint:errcheck
				return fmt.Errorf("error inserting shape point: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

// GetShape reassembles one shape's polyline in point order.
func (c *Client) GetShape(ctx context.Context, id string) (models.Shape, error) {
	rows, err := c.DB.QueryContext(ctx, `
		SELECT lat, lon FROM shapes WHERE shape_id = ? ORDER BY pt_sequence`, id)
	if err != nil {
		return models.Shape{}, fmt.Errorf("error reading shape: %w", err)
	}
	defer rows.Close() // nolint:errcheck

	shape := models.Shape{ID: id}
	for rows.Next() {
		var pt models.Point
		if err := rows.Scan(&pt.Lat, &pt.Lon); err != nil {
			return models.Shape{}, fmt.Errorf("error scanning shape point: %w", err)
		}
		shape.Points = append(shape.Points, pt)
	}
	if err := rows.Err(); err != nil {
		return models.Shape{}, fmt.Errorf("error reading shape: %w", err)
	}
	if len(shape.Points) == 0 {
		return models.Shape{}, fmt.Errorf("shape %q not found", id)
	}
	return shape, nil
}

func createShapesTable(tx *sql.Tx) error {
	return createTable(tx, "shapes", `
		CREATE TABLE IF NOT EXISTS shapes (
			shape_id TEXT NOT NULL,
			lat REAL NOT NULL,
			lon REAL NOT NULL,
			pt_sequence INTEGER NOT NULL,
			PRIMARY KEY (shape_id, pt_sequence)
		);
	`)
}
