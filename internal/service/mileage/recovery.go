// internal/service/mileage/recovery.go
package mileage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mileage-service/internal/domain/audit"
	"mileage-service/internal/domain/trip"
	xerrors "mileage-service/internal/pkg/errors"
)

// RecoverTrip returns a soft-deleted trip to the chain. Recovery is refused
// when the trip no longer fits the chain's odometer sequence.
func (s *Service) RecoverTrip(ctx context.Context, tc trip.TenantContext, id int64, reason string) (*trip.RecoveryResult, error) {
	defer s.metrics.Time(string(audit.OpRecoverTrip))()

	entry := audit.NewEntry(tc, audit.OpRecoverTrip)
	id64 := id
	entry.TripID = &id64

	finish := func(res *trip.RecoveryResult) (*trip.RecoveryResult, error) {
		entry.Classification = "refused"
		if res.Success {
			entry.Classification = "recovered"
		}
		entry.Message = res.Message
		s.record(ctx, entry)
		return res, nil
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return finish(&trip.RecoveryResult{Message: "A recovery reason is required"})
	}

	current, err := s.repo.FindByID(ctx, tc.TenantID, id)
	if errors.Is(err, xerrors.ErrNotFound) {
		return finish(&trip.RecoveryResult{Message: fmt.Sprintf("Trip %d not found", id)})
	}
	if err != nil {
		s.rejected(entry, err)
		s.record(ctx, entry)
		return nil, err
	}
	entry.ForTrip(current)

	if current.IsActive() {
		return finish(&trip.RecoveryResult{
			Message: fmt.Sprintf("Trip %d is not soft-deleted; nothing to recover", id),
			Trip:    current,
		})
	}

	var res *trip.RecoveryResult
	err = s.withChains(ctx, tc.TenantID, []int64{current.VehicleID}, func(tx trip.Repository) error {
		t, err := reloadLocked(ctx, tx, tc.TenantID, id, current.VehicleID)
		if err != nil {
			return err
		}
		if t.IsActive() {
			res = &trip.RecoveryResult{Message: fmt.Sprintf("Trip %d is not soft-deleted; nothing to recover", id), Trip: t}
			return nil
		}
		entry.Before = t.Clone()

		chain, err := loadChain(ctx, tx, tc.TenantID, t.VehicleID)
		if err != nil {
			return err
		}

		restored := t.Clone()
		restored.Deletion = nil
		if _, err := checkContinuity(chain, restored, trip.ViolationSuccessorOverlap); err != nil {
			var cerr *trip.ContinuityError
			if errors.As(err, &cerr) {
				entry.Flagged = true
				res = &trip.RecoveryResult{Message: "Cannot recover: " + cerr.Error(), Trip: t}
				return nil
			}
			return err
		}

		if err := tx.Restore(ctx, tc.TenantID, id); err != nil {
			return err
		}
		chain.Upsert(restored)

		stored := chain.Get(id)
		if _, err := s.recalculateAround(ctx, tx, chain, stored); err != nil {
			return err
		}

		entry.After = stored.Clone()
		res = &trip.RecoveryResult{
			Success: true,
			Message: fmt.Sprintf("Trip %d recovered: %s", id, reason),
			Trip:    stored.Clone(),
		}
		return nil
	})
	if err != nil {
		s.rejected(entry, err)
		s.record(ctx, entry)
		return nil, err
	}
	return finish(res)
}
