// internal/domain/trip/entity.go
package trip

import (
	"fmt"
	"time"

	xerrors "mileage-service/internal/pkg/errors"
)

type State string

const (
	StateActive      State = "active"
	StateSoftDeleted State = "soft_deleted"
)

// SoftDeletion marks a trip that was retained because downstream trips still
// depend on it as their fuel-efficiency anchor.
type SoftDeletion struct {
	At     time.Time `json:"deleted_at" db:"deleted_at"`
	Reason string    `json:"deletion_reason" db:"deletion_reason"`
	By     int64     `json:"deleted_by" db:"deleted_by"`
}

type Trip struct {
	ID        int64  `json:"id" db:"id"`
	TenantID  int64  `json:"tenant_id" db:"tenant_id"`
	VehicleID int64  `json:"vehicle_id" db:"vehicle_id"`
	DriverID  *int64 `json:"driver_id,omitempty" db:"driver_id"`

	StartDate time.Time `json:"trip_start_date" db:"trip_start_date"`
	EndDate   time.Time `json:"trip_end_date" db:"trip_end_date"`

	// Odometer readings (km)
	StartKm float64 `json:"start_km" db:"start_km"`
	EndKm   float64 `json:"end_km" db:"end_km"`

	// Refueling
	RefuelingDone  bool     `json:"refueling_done" db:"refueling_done"`
	FuelQuantity   *float64 `json:"fuel_quantity,omitempty" db:"fuel_quantity"`
	CalculatedKmpl *float64 `json:"calculated_kmpl,omitempty" db:"calculated_kmpl"`

	Purpose string `json:"purpose,omitempty" db:"purpose"`
	Notes   string `json:"notes,omitempty" db:"notes"`

	// Nil while the trip is active
	Deletion *SoftDeletion `json:"deletion,omitempty"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TenantContext identifies who is operating on which tenant's chains.
type TenantContext struct {
	TenantID int64 `json:"tenant_id"`
	ActorID  int64 `json:"actor_id"`
}

func (t *Trip) State() State {
	if t.Deletion != nil {
		return StateSoftDeleted
	}
	return StateActive
}

func (t *Trip) IsActive() bool {
	return t.Deletion == nil
}

// Distance returns the odometer distance covered by the trip.
func (t *Trip) Distance() float64 {
	return t.EndKm - t.StartKm
}

// Clone returns a deep copy, so pointer fields can be mutated independently.
func (t *Trip) Clone() *Trip {
	if t == nil {
		return nil
	}
	c := *t
	if t.DriverID != nil {
		v := *t.DriverID
		c.DriverID = &v
	}
	if t.FuelQuantity != nil {
		v := *t.FuelQuantity
		c.FuelQuantity = &v
	}
	if t.CalculatedKmpl != nil {
		v := *t.CalculatedKmpl
		c.CalculatedKmpl = &v
	}
	if t.Deletion != nil {
		d := *t.Deletion
		c.Deletion = &d
	}
	return &c
}

// ChainKey is the exclusivity key of one vehicle's chain.
func ChainKey(tenantID, vehicleID int64) string {
	return fmt.Sprintf("chain:%d:%d", tenantID, vehicleID)
}

// DateRange bounds reports by trip_start_date. Nil ends are open.
type DateRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

func (r *DateRange) Contains(t time.Time) bool {
	if r == nil {
		return true
	}
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && t.After(*r.To) {
		return false
	}
	return true
}

// ParseDateRange reads optional bounds given as RFC3339 timestamps or plain
// dates. A plain "to" date includes the whole day.
func ParseDateRange(from, to string) (*DateRange, error) {
	f, err := parseBound(from, false)
	if err != nil {
		return nil, err
	}
	t, err := parseBound(to, true)
	if err != nil {
		return nil, err
	}
	if f == nil && t == nil {
		return nil, nil
	}
	if f != nil && t != nil && t.Before(*f) {
		return nil, fmt.Errorf("%w: to is before from", xerrors.ErrInvalidInput)
	}
	return &DateRange{From: f, To: t}, nil
}

func parseBound(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %q", xerrors.ErrInvalidInput, raw)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func Float(v float64) *float64 {
	return &v
}
