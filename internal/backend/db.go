// Package backend is the data-access layer over the ticketing database.
// Every error it returns is a *models.FetchError tagged with its kind.
package backend

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/analyticket/analyticket/internal/classify"
)

//go:embed schema.sql
var schemaSQL string

// Client runs read queries for the client core's fetchers.
type Client struct {
	db *sql.DB
}

// Open connects to databaseURL and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*Client, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, classify.Wrap("open", "database", fmt.Errorf("open db: %w", err))
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(8)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, classify.Wrap("ping", "database", fmt.Errorf("ping db: %w", err))
	}
	return &Client{db: db}, nil
}

// NewClient wraps an existing handle.
func NewClient(db *sql.DB) *Client {
	return &Client{db: db}
}

// DB returns the underlying handle.
func (c *Client) DB() *sql.DB { return c.db }

// Close closes the handle.
func (c *Client) Close() error { return c.db.Close() }

// Ping checks the database is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return classify.Wrap("ping", "database", c.db.PingContext(ctx))
}

// EnsureSchema creates the tables and change-notification triggers used by
// the client when they are missing. It is meant for development databases.
func (c *Client) EnsureSchema(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, schemaSQL)
	return classify.Wrap("migrate", "schema", err)
}
