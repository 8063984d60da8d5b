// Package postgres implements the persistence interfaces on PostgreSQL
// using sqlx.
package postgres

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Config holds the database connection settings.
type Config struct {
	URL string `json:"url"`
}

// Validate checks required fields.
func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("postgres: url is required")
	}
	return nil
}

// Connect opens and pings the database.
func Connect(cfg Config) (*sqlx.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := sqlx.Connect("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return db, nil
}

// Migrate creates the schema. Every statement is idempotent so the service
// can run it unconditionally at startup.
func Migrate(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS collection_points (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			lon DOUBLE PRECISION NOT NULL,
			lat DOUBLE PRECISION NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE
		)`,

		`CREATE TABLE IF NOT EXISTS bins (
			id TEXT PRIMARY KEY,
			collection_point_id TEXT NOT NULL REFERENCES collection_points(id) ON DELETE CASCADE,
			category TEXT NOT NULL CHECK(category IN ('PLASTIC', 'ORGANIC', 'GLASS', 'PAPER')),
			capacity_l DOUBLE PRECISION NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			last_collected_at TIMESTAMPTZ
		)`,

		`CREATE TABLE IF NOT EXISTS bin_readings (
			id BIGSERIAL PRIMARY KEY,
			bin_id TEXT NOT NULL REFERENCES bins(id) ON DELETE CASCADE,
			fill_pct DOUBLE PRECISION NOT NULL,
			battery_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
			temp_c DOUBLE PRECISION NOT NULL DEFAULT 0,
			ts TIMESTAMPTZ NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS depots (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			lon DOUBLE PRECISION NOT NULL,
			lat DOUBLE PRECISION NOT NULL,
			main BOOLEAN NOT NULL DEFAULT FALSE
		)`,

		`CREATE TABLE IF NOT EXISTS vehicles (
			id TEXT PRIMARY KEY,
			plate TEXT NOT NULL,
			status TEXT NOT NULL CHECK(status IN ('AVAILABLE', 'IN_SERVICE', 'MAINTENANCE')),
			capacity_volume_l DOUBLE PRECISION NOT NULL,
			fuel TEXT NOT NULL CHECK(fuel IN ('DIESEL', 'GASOLINE', 'HYBRID', 'ELECTRIC')),
			busy BOOLEAN NOT NULL DEFAULT FALSE
		)`,

		`CREATE TABLE IF NOT EXISTS employees (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'FREE' CHECK(status IN ('FREE', 'BUSY'))
		)`,

		`CREATE TABLE IF NOT EXISTS tournees (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			status TEXT NOT NULL CHECK(status IN ('PLANNED', 'IN_PROGRESS', 'COMPLETED', 'CANCELLED')),
			planned_km DOUBLE PRECISION NOT NULL DEFAULT 0,
			planned_co2_g DOUBLE PRECISION NOT NULL DEFAULT 0,
			planned_vehicle_id TEXT,
			started_at TIMESTAMPTZ,
			finished_at TIMESTAMPTZ,
			geometry TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS tournee_steps (
			tournee_id TEXT NOT NULL REFERENCES tournees(id) ON DELETE CASCADE,
			step_order INT NOT NULL,
			status TEXT NOT NULL DEFAULT 'PENDING' CHECK(status IN ('PENDING', 'SERVICED', 'SKIPPED')),
			collection_point_id TEXT NOT NULL,
			predicted_fill_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
			note TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (tournee_id, step_order)
		)`,

		`CREATE TABLE IF NOT EXISTS tournee_assignments (
			id TEXT PRIMARY KEY,
			tournee_id TEXT NOT NULL REFERENCES tournees(id) ON DELETE CASCADE,
			employee_id TEXT NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
			vehicle_id TEXT NOT NULL,
			shift_start TIMESTAMPTZ NOT NULL,
			shift_end TIMESTAMPTZ NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS automation_config (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL CHECK(mode IN ('OFF', 'EMERGENCIES_ONLY', 'FULL')),
			emergency_scan_interval_min INT NOT NULL DEFAULT 15
		)`,

		`CREATE INDEX IF NOT EXISTS idx_bins_point ON bins(collection_point_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bin_readings_bin_ts ON bin_readings(bin_id, ts DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_tournees_status ON tournees(status)`,
		`CREATE INDEX IF NOT EXISTS idx_tournees_category_status ON tournees(category, status)`,
		`CREATE INDEX IF NOT EXISTS idx_tournees_finished_at ON tournees(finished_at)`,
		`CREATE INDEX IF NOT EXISTS idx_assignments_tournee ON tournee_assignments(tournee_id)`,
		`CREATE INDEX IF NOT EXISTS idx_assignments_employee ON tournee_assignments(employee_id)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("postgres: migration failed: %w", err)
		}
	}
	return nil
}
