// Package database owns the PostgreSQL connection pool, schema migrations
// and health reporting.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = 5 * time.Minute
	connMaxIdleTime = 1 * time.Minute
)

// Client wraps the pooled database handle.
type Client struct {
	db *sql.DB
}

// NewClient opens a pooled connection, verifies it with a ping and applies
// pending migrations.
func NewClient(ctx context.Context, databaseURL string) (*Client, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying migrations: %w", err)
	}

	slog.Info("database ready",
		"max_open_conns", maxOpenConns,
		"max_idle_conns", maxIdleConns)

	return &Client{db: db}, nil
}

// DB exposes the underlying handle for the store.
func (c *Client) DB() *sql.DB { return c.db }

// Close releases the pool.
func (c *Client) Close() error { return c.db.Close() }
