// internal/repository/postgres/schema.go
package postgres

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS trips (
		id               BIGSERIAL PRIMARY KEY,
		tenant_id        BIGINT NOT NULL,
		vehicle_id       BIGINT NOT NULL,
		driver_id        BIGINT,
		trip_start_date  TIMESTAMPTZ NOT NULL,
		trip_end_date    TIMESTAMPTZ NOT NULL,
		start_km         DOUBLE PRECISION NOT NULL,
		end_km           DOUBLE PRECISION NOT NULL,
		refueling_done   BOOLEAN NOT NULL DEFAULT FALSE,
		fuel_quantity    DOUBLE PRECISION,
		calculated_kmpl  DOUBLE PRECISION,
		purpose          TEXT NOT NULL DEFAULT '',
		notes            TEXT NOT NULL DEFAULT '',
		deleted_at       TIMESTAMPTZ,
		deletion_reason  TEXT,
		deleted_by       BIGINT,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trips_chain
		ON trips (tenant_id, vehicle_id, trip_start_date, trip_end_date, id)
		WHERE deleted_at IS NULL`,
	`CREATE TABLE IF NOT EXISTS trip_audit_logs (
		id               TEXT PRIMARY KEY,
		tenant_id        BIGINT NOT NULL,
		actor_id         BIGINT NOT NULL,
		operation        TEXT NOT NULL,
		trip_id          BIGINT,
		vehicle_id       BIGINT,
		classification   TEXT NOT NULL DEFAULT '',
		message          TEXT NOT NULL DEFAULT '',
		warnings         TEXT[] NOT NULL DEFAULT '{}',
		flagged          BOOLEAN NOT NULL DEFAULT FALSE,
		before_snapshot  JSONB,
		after_snapshot   JSONB,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trip_audit_logs_trip
		ON trip_audit_logs (tenant_id, trip_id, created_at DESC)`,
}

// EnsureSchema creates the tables the service owns if they are missing.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
