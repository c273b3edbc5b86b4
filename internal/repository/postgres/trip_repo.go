// internal/repository/postgres/trip_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mileage-service/internal/domain/trip"
	xerrors "mileage-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
)

const tripColumns = `
	id, tenant_id, vehicle_id, driver_id, trip_start_date, trip_end_date,
	start_km, end_km, refueling_done, fuel_quantity, calculated_kmpl,
	purpose, notes, deleted_at, deletion_reason, deleted_by, created_at, updated_at`

type TripRepository struct {
	db *DB
	q  querier
	tx pgx.Tx
}

func NewTripRepository(db *DB) *TripRepository {
	return &TripRepository{db: db, q: db.pool}
}

// WithinTx runs fn in one transaction. Nested calls reuse the outer one.
func (r *TripRepository) WithinTx(ctx context.Context, fn func(tx trip.Repository) error) error {
	if r.tx != nil {
		return fn(r)
	}

	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		return fn(&TripRepository{db: r.db, q: tx, tx: tx})
	})
}

// LockChain takes a transaction-scoped advisory lock on the chain key. It is
// released automatically on commit or rollback.
func (r *TripRepository) LockChain(ctx context.Context, tenantID, vehicleID int64) error {
	if r.tx == nil {
		return fmt.Errorf("%w: chain lock requires a transaction", xerrors.ErrInternal)
	}
	_, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, trip.ChainKey(tenantID, vehicleID))
	if err != nil {
		return fmt.Errorf("failed to lock chain: %w", err)
	}
	return nil
}

// FindByID returns the trip, soft-deleted or not.
func (r *TripRepository) FindByID(ctx context.Context, tenantID, id int64) (*trip.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE tenant_id = $1 AND id = $2`

	t, err := scanTrip(r.q.QueryRow(ctx, query, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find trip: %w", err)
	}
	return t, nil
}

// ListActive returns a vehicle's active trips in chain order.
func (r *TripRepository) ListActive(ctx context.Context, tenantID, vehicleID int64) ([]trip.Trip, error) {
	query := `
		SELECT ` + tripColumns + `
		FROM trips
		WHERE tenant_id = $1 AND vehicle_id = $2 AND deleted_at IS NULL
		ORDER BY trip_start_date, trip_end_date, id
	`

	rows, err := r.q.Query(ctx, query, tenantID, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	defer rows.Close()

	var trips []trip.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		trips = append(trips, *t)
	}
	return trips, rows.Err()
}

func (r *TripRepository) ListVehicleIDs(ctx context.Context, tenantID int64) ([]int64, error) {
	query := `
		SELECT DISTINCT vehicle_id
		FROM trips
		WHERE tenant_id = $1 AND deleted_at IS NULL
		ORDER BY vehicle_id
	`

	rows, err := r.q.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *TripRepository) Create(ctx context.Context, t *trip.Trip) error {
	query := `
		INSERT INTO trips (
			tenant_id, vehicle_id, driver_id, trip_start_date, trip_end_date,
			start_km, end_km, refueling_done, fuel_quantity, calculated_kmpl,
			purpose, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(
		ctx, query,
		t.TenantID, t.VehicleID, t.DriverID, t.StartDate, t.EndDate,
		t.StartKm, t.EndKm, t.RefuelingDone, t.FuelQuantity, t.CalculatedKmpl,
		t.Purpose, t.Notes,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create trip: %w", err)
	}
	return nil
}

func (r *TripRepository) Update(ctx context.Context, t *trip.Trip) error {
	query := `
		UPDATE trips SET
			vehicle_id = $3, driver_id = $4, trip_start_date = $5, trip_end_date = $6,
			start_km = $7, end_km = $8, refueling_done = $9, fuel_quantity = $10,
			calculated_kmpl = $11, purpose = $12, notes = $13, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING updated_at
	`

	err := r.q.QueryRow(
		ctx, query,
		t.TenantID, t.ID,
		t.VehicleID, t.DriverID, t.StartDate, t.EndDate,
		t.StartKm, t.EndKm, t.RefuelingDone, t.FuelQuantity,
		t.CalculatedKmpl, t.Purpose, t.Notes,
	).Scan(&t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return xerrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update trip: %w", err)
	}
	return nil
}

func (r *TripRepository) UpdateOdometer(ctx context.Context, tenantID, id int64, startKm, endKm float64) error {
	return r.execOne(ctx, "update odometer",
		`UPDATE trips SET start_km = $3, end_km = $4, updated_at = NOW() WHERE tenant_id = $1 AND id = $2`,
		tenantID, id, startKm, endKm,
	)
}

func (r *TripRepository) UpdateCalculatedKmpl(ctx context.Context, tenantID, id int64, kmpl float64) error {
	return r.execOne(ctx, "update calculated kmpl",
		`UPDATE trips SET calculated_kmpl = $3, updated_at = NOW() WHERE tenant_id = $1 AND id = $2`,
		tenantID, id, kmpl,
	)
}

func (r *TripRepository) Delete(ctx context.Context, tenantID, id int64) error {
	return r.execOne(ctx, "delete trip",
		`DELETE FROM trips WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
}

func (r *TripRepository) SoftDelete(ctx context.Context, tenantID, id int64, d trip.SoftDeletion) error {
	return r.execOne(ctx, "soft delete trip",
		`UPDATE trips
		 SET deleted_at = $3, deletion_reason = $4, deleted_by = $5, updated_at = NOW()
		 WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`,
		tenantID, id, d.At, d.Reason, d.By,
	)
}

func (r *TripRepository) Restore(ctx context.Context, tenantID, id int64) error {
	return r.execOne(ctx, "restore trip",
		`UPDATE trips
		 SET deleted_at = NULL, deletion_reason = NULL, deleted_by = NULL, updated_at = NOW()
		 WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NOT NULL`,
		tenantID, id,
	)
}

// execOne runs a statement that must touch exactly one row.
func (r *TripRepository) execOne(ctx context.Context, op, query string, args ...any) error {
	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

func scanTrip(row pgx.Row) (*trip.Trip, error) {
	var (
		t         trip.Trip
		deletedAt *time.Time
		reason    *string
		deletedBy *int64
	)

	err := row.Scan(
		&t.ID, &t.TenantID, &t.VehicleID, &t.DriverID, &t.StartDate, &t.EndDate,
		&t.StartKm, &t.EndKm, &t.RefuelingDone, &t.FuelQuantity, &t.CalculatedKmpl,
		&t.Purpose, &t.Notes, &deletedAt, &reason, &deletedBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if deletedAt != nil {
		t.Deletion = &trip.SoftDeletion{At: *deletedAt}
		if reason != nil {
			t.Deletion.Reason = *reason
		}
		if deletedBy != nil {
			t.Deletion.By = *deletedBy
		}
	}
	return &t, nil
}
