// Package db provides the shared Postgres connection pool and schema
// bootstrap used by every storage-backed package (wallet, auth, table
// registry).
package db

import (
	"context"
	"embed"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaFS embed.FS

// DB wraps a pgx connection pool. Domain packages embed or hold a *DB and
// issue their own queries against Pool directly.
type DB struct {
	*pgxpool.Pool
}

// Open connects to dsn and returns a ready pool. It does not run migrations;
// call Migrate explicitly during bootstrap.
func Open(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &DB{pool}, nil
}

func (db *DB) Close() {
	db.Pool.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Migrate applies the embedded schema. It is idempotent: every statement in
// schema.sql is a CREATE TABLE / CREATE INDEX ... IF NOT EXISTS so it can
// run on every server start.
func Migrate(ctx context.Context, db *DB) error {
	sqlBytes, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, string(sqlBytes))
	return err
}
