// internal/repository/postgres/audit_log_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"mileage-service/internal/domain/audit"
	"mileage-service/internal/domain/trip"

	"github.com/lib/pq"
)

// AuditLogRepository persists audit entries to trip_audit_logs. It is an
// audit.Sink.
type AuditLogRepository struct {
	db *DB
}

func NewAuditLogRepository(db *DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func (r *AuditLogRepository) Record(ctx context.Context, e *audit.Entry) error {
	query := `
		INSERT INTO trip_audit_logs (
			id, tenant_id, actor_id, operation, trip_id, vehicle_id, classification,
			message, warnings, flagged, before_snapshot, after_snapshot, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	before, err := marshalSnapshot(e.Before)
	if err != nil {
		return err
	}
	after, err := marshalSnapshot(e.After)
	if err != nil {
		return err
	}

	warnings := e.Warnings
	if warnings == nil {
		warnings = []string{}
	}

	_, err = r.db.pool.Exec(
		ctx, query,
		e.ID, e.TenantID, e.ActorID, string(e.Operation), e.TripID, e.VehicleID, e.Classification,
		e.Message, pq.Array(warnings), e.Flagged, before, after, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// ListByTrip returns the newest entries for one trip first.
func (r *AuditLogRepository) ListByTrip(ctx context.Context, tenantID, tripID int64, limit int) ([]audit.Entry, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, tenant_id, actor_id, operation, trip_id, vehicle_id, classification,
		       message, warnings, flagged, before_snapshot, after_snapshot, created_at
		FROM trip_audit_logs
		WHERE tenant_id = $1 AND trip_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := r.db.pool.Query(ctx, query, tenantID, tripID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			e        audit.Entry
			op       string
			warnings []string
			before   []byte
			after    []byte
		)
		if err := rows.Scan(
			&e.ID, &e.TenantID, &e.ActorID, &op, &e.TripID, &e.VehicleID, &e.Classification,
			&e.Message, pq.Array(&warnings), &e.Flagged, &before, &after, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		e.Operation = audit.Operation(op)
		e.Warnings = warnings

		if e.Before, err = unmarshalSnapshot(before); err != nil {
			return nil, err
		}
		if e.After, err = unmarshalSnapshot(after); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func marshalSnapshot(t *trip.Trip) ([]byte, error) {
	if t == nil {
		return nil, nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return b, nil
}

func unmarshalSnapshot(b []byte) (*trip.Trip, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var t trip.Trip
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &t, nil
}
