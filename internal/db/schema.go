package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema holds the tables the timetable is loaded from
var schema = []string{
	`CREATE TABLE IF NOT EXISTS stop (
		id        TEXT PRIMARY KEY,
		name      TEXT,
		lat       DOUBLE PRECISION NOT NULL,
		lon       DOUBLE PRECISION NOT NULL,
		agency_id TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS route (
		id         TEXT PRIMARY KEY,
		agency_id  TEXT,
		short_name TEXT,
		long_name  TEXT,
		mode       TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS trip (
		trip_id    TEXT NOT NULL,
		agency_id  TEXT NOT NULL,
		route_id   TEXT NOT NULL,
		service_id TEXT,
		headsign   TEXT,
		PRIMARY KEY (agency_id, trip_id)
	)`,
	`CREATE TABLE IF NOT EXISTS stop_time (
		trip_id           TEXT NOT NULL,
		agency_id         TEXT NOT NULL,
		stop_id           TEXT NOT NULL,
		stop_sequence     INTEGER NOT NULL,
		arrival_seconds   INTEGER NOT NULL,
		departure_seconds INTEGER NOT NULL,
		PRIMARY KEY (agency_id, trip_id, stop_sequence)
	)`,
	`CREATE TABLE IF NOT EXISTS transfer (
		id                BIGSERIAL PRIMARY KEY,
		agency_id         TEXT NOT NULL,
		from_stop_id      TEXT NOT NULL,
		to_stop_id        TEXT NOT NULL,
		from_trip_id      TEXT,
		to_trip_id        TEXT,
		transfer_type     INTEGER NOT NULL DEFAULT 0,
		min_transfer_time INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stop_time_trip ON stop_time (trip_id, stop_sequence)`,
	`CREATE INDEX IF NOT EXISTS idx_transfer_agency ON transfer (agency_id)`,
}

// EnsureSchema creates the timetable tables if they are missing
func EnsureSchema(ctx context.Context, p *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := p.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}
