// Package postgres opens the database pool and applies the schema.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Schema is the persisted layout: a reference table of valid GEOIDs plus the
// three version-chain relations. The partial unique index on is_current is
// what turns a concurrent double-write of "current" into a constraint
// violation instead of two coexisting current rows.
const Schema = `
CREATE TABLE IF NOT EXISTS geo_regions (
    geoid      TEXT PRIMARY KEY,
    name       TEXT NOT NULL DEFAULT '',
    state_fips TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS geo_set_versions (
    set_name           TEXT NOT NULL,
    version            INTEGER NOT NULL CHECK (version > 0),
    description        TEXT NOT NULL DEFAULT '',
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
    is_current         BOOLEAN NOT NULL DEFAULT false,
    parent_version     INTEGER,
    change_description TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (set_name, version)
);

CREATE UNIQUE INDEX IF NOT EXISTS geo_set_versions_one_current
    ON geo_set_versions (set_name) WHERE is_current;

CREATE TABLE IF NOT EXISTS geo_set_members (
    set_name TEXT NOT NULL,
    version  INTEGER NOT NULL,
    geoid    TEXT NOT NULL,
    PRIMARY KEY (set_name, version, geoid),
    FOREIGN KEY (set_name, version)
        REFERENCES geo_set_versions (set_name, version)
);

CREATE INDEX IF NOT EXISTS geo_set_members_geoid
    ON geo_set_members (geoid);

CREATE TABLE IF NOT EXISTS geo_set_changes (
    set_name    TEXT NOT NULL,
    version     INTEGER NOT NULL,
    change_type TEXT NOT NULL CHECK (change_type IN ('ADD', 'REMOVE')),
    geoid       TEXT NOT NULL,
    changed_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (set_name, version, geoid),
    FOREIGN KEY (set_name, version)
        REFERENCES geo_set_versions (set_name, version)
);
`

// Migrate applies the schema. Safe to run on every startup.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
