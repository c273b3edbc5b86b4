package trip

import (
	"fmt"
	"time"

	xerrors "mileage-service/internal/pkg/errors"
)

// CreateTripRequest is used by handlers/services when recording a new trip
type CreateTripRequest struct {
	VehicleID     int64     `json:"vehicle_id" yaml:"vehicle_id" binding:"required"`
	DriverID      *int64    `json:"driver_id,omitempty" yaml:"driver_id"`
	StartDate     time.Time `json:"trip_start_date" yaml:"trip_start_date" binding:"required"`
	EndDate       time.Time `json:"trip_end_date" yaml:"trip_end_date" binding:"required"`
	StartKm       float64   `json:"start_km" yaml:"start_km"`
	EndKm         float64   `json:"end_km" yaml:"end_km"`
	RefuelingDone bool      `json:"refueling_done" yaml:"refueling_done"`
	FuelQuantity  *float64  `json:"fuel_quantity,omitempty" yaml:"fuel_quantity"`
	Purpose       string    `json:"purpose,omitempty" yaml:"purpose"`
	Notes         string    `json:"notes,omitempty" yaml:"notes"`
}

func (r *CreateTripRequest) Validate() error {
	return r.ToTrip(TenantContext{}).CheckFields()
}

// CheckFields validates a trip in isolation, before any chain checks.
func (t *Trip) CheckFields() error {
	if t.VehicleID <= 0 {
		return fmt.Errorf("%w: vehicle_id is required", xerrors.ErrInvalidInput)
	}
	if t.StartDate.IsZero() || t.EndDate.IsZero() {
		return fmt.Errorf("%w: trip_start_date and trip_end_date are required", xerrors.ErrInvalidInput)
	}
	if t.EndDate.Before(t.StartDate) {
		return fmt.Errorf("%w: trip_end_date is before trip_start_date", xerrors.ErrInvalidInput)
	}
	if t.StartKm < 0 || t.EndKm < 0 {
		return fmt.Errorf("%w: odometer readings cannot be negative", xerrors.ErrInvalidInput)
	}
	if t.FuelQuantity != nil && *t.FuelQuantity < 0 {
		return fmt.Errorf("%w: fuel_quantity cannot be negative", xerrors.ErrInvalidInput)
	}
	return nil
}

func (r *CreateTripRequest) ToTrip(tc TenantContext) *Trip {
	t := &Trip{
		TenantID:      tc.TenantID,
		VehicleID:     r.VehicleID,
		DriverID:      r.DriverID,
		StartDate:     r.StartDate,
		EndDate:       r.EndDate,
		StartKm:       r.StartKm,
		EndKm:         r.EndKm,
		RefuelingDone: r.RefuelingDone,
		Purpose:       r.Purpose,
		Notes:         r.Notes,
	}
	if r.FuelQuantity != nil {
		t.FuelQuantity = Float(*r.FuelQuantity)
	}
	return t
}

// UpdateTripRequest is used to edit an existing trip. Nil fields are left unchanged.
type UpdateTripRequest struct {
	VehicleID     *int64     `json:"vehicle_id,omitempty"`
	DriverID      *int64     `json:"driver_id,omitempty"`
	StartDate     *time.Time `json:"trip_start_date,omitempty"`
	EndDate       *time.Time `json:"trip_end_date,omitempty"`
	StartKm       *float64   `json:"start_km,omitempty"`
	EndKm         *float64   `json:"end_km,omitempty"`
	RefuelingDone *bool      `json:"refueling_done,omitempty"`
	FuelQuantity  *float64   `json:"fuel_quantity,omitempty"`
	Purpose       *string    `json:"purpose,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
}

// ApplyTo copies the set fields onto t.
func (r *UpdateTripRequest) ApplyTo(t *Trip) {
	if r.VehicleID != nil {
		t.VehicleID = *r.VehicleID
	}
	if r.DriverID != nil {
		t.DriverID = r.DriverID
	}
	if r.StartDate != nil {
		t.StartDate = *r.StartDate
	}
	if r.EndDate != nil {
		t.EndDate = *r.EndDate
	}
	if r.StartKm != nil {
		t.StartKm = *r.StartKm
	}
	if r.EndKm != nil {
		t.EndKm = *r.EndKm
	}
	if r.RefuelingDone != nil {
		t.RefuelingDone = *r.RefuelingDone
		if !t.RefuelingDone {
			t.CalculatedKmpl = nil
		}
	}
	if r.FuelQuantity != nil {
		t.FuelQuantity = Float(*r.FuelQuantity)
	}
	if r.Purpose != nil {
		t.Purpose = *r.Purpose
	}
	if r.Notes != nil {
		t.Notes = *r.Notes
	}
}

// TouchesChain reports whether the update changes any field that positions
// the trip in its chain.
func TouchesChain(before, after *Trip) bool {
	return before.VehicleID != after.VehicleID ||
		before.StartKm != after.StartKm ||
		before.EndKm != after.EndKm ||
		!before.StartDate.Equal(after.StartDate) ||
		!before.EndDate.Equal(after.EndDate)
}

// WriteResult is returned for accepted inserts and updates.
type WriteResult struct {
	Trip           *Trip                  `json:"trip"`
	Classification GapClass               `json:"gap_classification"`
	GapKm          *float64               `json:"gap_km,omitempty"`
	PredecessorID  *int64                 `json:"predecessor_id,omitempty"`
	Warnings       []string               `json:"warnings,omitempty"`
	Recalculations []*RecalculationResult `json:"recalculations,omitempty"`
}

type RecoverTripRequest struct {
	Reason string `json:"reason"`
}

type CorrectOdometerRequest struct {
	EndKm float64 `json:"end_km" binding:"required"`
}
