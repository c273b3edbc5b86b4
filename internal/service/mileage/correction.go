// internal/service/mileage/correction.go
package mileage

import (
	"context"
	"fmt"

	"mileage-service/internal/domain/audit"
	"mileage-service/internal/domain/trip"
	xerrors "mileage-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// CorrectOdometer sets a trip's end_km and shifts every following trip that
// would otherwise overlap it. Shifted trips keep their distance.
func (s *Service) CorrectOdometer(ctx context.Context, tc trip.TenantContext, id int64, endKm float64) (*trip.CorrectionResult, error) {
	defer s.metrics.Time(string(audit.OpCorrectOdometer))()

	entry := audit.NewEntry(tc, audit.OpCorrectOdometer)
	id64 := id
	entry.TripID = &id64

	fail := func(err error) (*trip.CorrectionResult, error) {
		s.rejected(entry, err)
		s.record(ctx, entry)
		return nil, err
	}

	if endKm < 0 {
		return fail(fmt.Errorf("%w: end_km cannot be negative", xerrors.ErrInvalidInput))
	}

	current, err := s.repo.FindByID(ctx, tc.TenantID, id)
	if err != nil {
		return fail(err)
	}
	entry.ForTrip(current)

	var result *trip.CorrectionResult

	err = s.withChains(ctx, tc.TenantID, []int64{current.VehicleID}, func(tx trip.Repository) error {
		t, err := reloadLocked(ctx, tx, tc.TenantID, id, current.VehicleID)
		if err != nil {
			return err
		}
		if !t.IsActive() {
			return xerrors.ErrAlreadyDeleted
		}

		chain, err := loadChain(ctx, tx, tc.TenantID, current.VehicleID)
		if err != nil {
			return err
		}
		ct := chain.Get(id)
		if ct == nil {
			return xerrors.ErrNotFound
		}
		entry.Before = ct.Clone()

		if endKm <= ct.StartKm {
			return &trip.ContinuityError{
				Kind:    trip.ViolationNonPositiveDistance,
				TripID:  id,
				StartKm: ct.StartKm,
				EndKm:   endKm,
			}
		}

		if err := tx.UpdateOdometer(ctx, tc.TenantID, id, ct.StartKm, endKm); err != nil {
			return err
		}
		ct.EndKm = endKm

		result = &trip.CorrectionResult{ShiftedTripIDs: []int64{}}
		touched := []*trip.Trip{ct}
		running := endKm

		for _, next := range chain.After(ct) {
			if next.StartKm >= running {
				break
			}
			shift := running - next.StartKm
			if err := tx.UpdateOdometer(ctx, tc.TenantID, next.ID, next.StartKm+shift, next.EndKm+shift); err != nil {
				return err
			}
			next.StartKm += shift
			next.EndKm += shift
			running = next.EndKm

			touched = append(touched, next)
			result.ShiftedTripIDs = append(result.ShiftedTripIDs, next.ID)
		}

		// Refueling trips among the touched ones, then the first refueling
		// trip after them whose anchor moved.
		for _, t := range touched {
			if !t.RefuelingDone {
				continue
			}
			res, err := s.recalcInChain(ctx, tx, chain, t, false)
			if err != nil {
				return err
			}
			result.Recalculations = append(result.Recalculations, res)
		}
		if next := chain.NextRefueling(touched[len(touched)-1]); next != nil {
			res, err := s.recalcInChain(ctx, tx, chain, next, false)
			if err != nil {
				return err
			}
			result.Recalculations = append(result.Recalculations, res)
		}

		result.Trip = ct.Clone()
		return nil
	})
	if err != nil {
		s.logger.Warn("odometer correction rejected", zap.Int64("trip_id", id), zap.Error(err))
		return fail(err)
	}

	entry.After = result.Trip
	entry.Classification = "corrected"
	entry.Message = fmt.Sprintf(
		"end_km corrected from %.2f to %.2f; %d following trip(s) shifted",
		entry.Before.EndKm, endKm, len(result.ShiftedTripIDs),
	)
	if len(result.ShiftedTripIDs) > 0 {
		entry.Warnings = []string{fmt.Sprintf("shifted trips %v", result.ShiftedTripIDs)}
	}
	s.record(ctx, entry)
	return result, nil
}
