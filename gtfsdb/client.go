package gtfsdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Client is a SQLite-backed snapshot store for static schedule data. It
// satisfies the ingestor's Store interface.
type Client struct {
	config Config
	DB     *sql.DB
}

// NewClient opens the database and creates the snapshot tables.
func NewClient(config Config) (*Client, error) {
	db, err := createDB(config)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	return &Client{config: config, DB: db}, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

// UpdateMetadata records the ingest timestamp for every table group of one
// successful ingest cycle in a single transaction.
func (c *Client) UpdateMetadata(ctx context.Context, updated time.Time, groups []string) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO version_metadata (table_group, updated) VALUES (?, ?);
	`)
	if err != nil {
		tx.Rollback() // nolint:errcheck
		return fmt.Errorf("error preparing statement: %w", err)
	}
	defer stmt.Close() // nolint:errcheck

	for _, group := range groups {
		if _, err := stmt.ExecContext(ctx, group, updated.Unix()); err != nil {
			tx.Rollback() // nolint:errcheck
			return fmt.Errorf("error updating metadata: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

// Metadata returns the last-updated epoch timestamp recorded for a table
// group, or zero if the group has never been ingested.
func (c *Client) Metadata(ctx context.Context, group string) (int64, error) {
	var updated int64
	err := c.DB.QueryRowContext(ctx,
		`SELECT updated FROM version_metadata WHERE table_group = ?`, group).Scan(&updated)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("error reading metadata: %w", err)
	}
	return updated, nil
}

func createVersionMetadataTable(tx *sql.Tx) error {
	return createTable(tx, "version_metadata", `
		CREATE TABLE IF NOT EXISTS version_metadata (
			table_group TEXT PRIMARY KEY,
			updated INTEGER NOT NULL
		);
	`)
}
