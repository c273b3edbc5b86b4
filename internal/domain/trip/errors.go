package trip

import (
	"fmt"

	xerrors "mileage-service/internal/pkg/errors"
)

type ViolationKind string

const (
	ViolationNegativeGap         ViolationKind = "negative_gap"
	ViolationNonPositiveDistance ViolationKind = "non_positive_distance"
	ViolationCascadeRequired     ViolationKind = "cascade_required"
	ViolationSuccessorOverlap    ViolationKind = "successor_overlap"
)

// ContinuityError is a rejected write. It carries enough context for the
// caller to find and fix the conflicting record.
type ContinuityError struct {
	Kind    ViolationKind
	TripID  int64
	StartKm float64
	EndKm   float64

	// The neighbouring trip the write conflicts with, if any
	ConflictingTripID int64
	ConflictingKm     float64
	Gap               float64
}

func (e *ContinuityError) Error() string {
	switch e.Kind {
	case ViolationNonPositiveDistance:
		return fmt.Sprintf("end_km (%.2f) must be greater than start_km (%.2f)", e.EndKm, e.StartKm)
	case ViolationNegativeGap:
		return fmt.Sprintf(
			"odometer regression: start_km %.2f is below end_km %.2f of preceding trip %d (gap %.2f km)",
			e.StartKm, e.ConflictingKm, e.ConflictingTripID, e.Gap,
		)
	case ViolationCascadeRequired:
		return fmt.Sprintf(
			"end_km %.2f overlaps trip %d which starts at %.2f km; use the cascading odometer correction",
			e.EndKm, e.ConflictingTripID, e.ConflictingKm,
		)
	case ViolationSuccessorOverlap:
		return fmt.Sprintf(
			"end_km %.2f exceeds start_km %.2f of following trip %d",
			e.EndKm, e.ConflictingKm, e.ConflictingTripID,
		)
	default:
		return "odometer chain invariant violation"
	}
}

func (e *ContinuityError) Unwrap() error {
	return xerrors.ErrInvariantViolation
}

func (e *ContinuityError) Is(target error) bool {
	return target == xerrors.ErrCascadeRequired && e.Kind == ViolationCascadeRequired
}

// Context is the remediation payload returned to API callers.
func (e *ContinuityError) Context() map[string]interface{} {
	ctx := map[string]interface{}{
		"violation": e.Kind,
		"start_km":  e.StartKm,
		"end_km":    e.EndKm,
	}
	if e.TripID != 0 {
		ctx["trip_id"] = e.TripID
	}
	if e.ConflictingTripID != 0 {
		ctx["conflicting_trip_id"] = e.ConflictingTripID
		ctx["conflicting_km"] = e.ConflictingKm
	}
	if e.Kind == ViolationNegativeGap {
		ctx["gap_km"] = e.Gap
	}
	return ctx
}
