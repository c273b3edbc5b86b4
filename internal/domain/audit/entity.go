// internal/domain/audit/entity.go
package audit

import (
	"context"
	"time"

	"mileage-service/internal/domain/trip"

	"github.com/oklog/ulid/v2"
)

type Operation string

const (
	OpInsertTrip         Operation = "insert_trip"
	OpUpdateTrip         Operation = "update_trip"
	OpDeleteTrip         Operation = "delete_trip"
	OpRecalculateMileage Operation = "recalculate_mileage"
	OpValidateChain      Operation = "validate_chain"
	OpRecoverTrip        Operation = "recover_trip"
	OpAnalyzeContinuity  Operation = "analyze_continuity"
	OpDetectChainBreaks  Operation = "detect_chain_breaks"
	OpCorrectOdometer    Operation = "correct_odometer"
)

// Entry is one structured audit record. Every exposed chain operation
// produces exactly one, whether it succeeded or was rejected.
type Entry struct {
	ID             string     `json:"id" db:"id"`
	TenantID       int64      `json:"tenant_id" db:"tenant_id"`
	ActorID        int64      `json:"actor_id" db:"actor_id"`
	Operation      Operation  `json:"operation" db:"operation"`
	TripID         *int64     `json:"trip_id,omitempty" db:"trip_id"`
	VehicleID      *int64     `json:"vehicle_id,omitempty" db:"vehicle_id"`
	Classification string     `json:"classification" db:"classification"`
	Message        string     `json:"message" db:"message"`
	Warnings       []string   `json:"warnings,omitempty" db:"warnings"`
	Flagged        bool       `json:"flagged" db:"flagged"`
	Before         *trip.Trip `json:"before,omitempty" db:"before_snapshot"`
	After          *trip.Trip `json:"after,omitempty" db:"after_snapshot"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

func NewEntry(tc trip.TenantContext, op Operation) *Entry {
	return &Entry{
		ID:        ulid.Make().String(),
		TenantID:  tc.TenantID,
		ActorID:   tc.ActorID,
		Operation: op,
		CreatedAt: time.Now().UTC(),
	}
}

func (e *Entry) ForTrip(t *trip.Trip) *Entry {
	if t == nil {
		return e
	}
	if t.ID != 0 {
		id := t.ID
		e.TripID = &id
	}
	vid := t.VehicleID
	e.VehicleID = &vid
	return e
}

func (e *Entry) ForVehicle(vehicleID int64) *Entry {
	e.VehicleID = &vehicleID
	return e
}

// Sink receives audit entries. Implementations must be safe for concurrent use.
type Sink interface {
	Record(ctx context.Context, e *Entry) error
}

// Reader serves the audit history of a trip.
type Reader interface {
	ListByTrip(ctx context.Context, tenantID, tripID int64, limit int) ([]Entry, error)
}
