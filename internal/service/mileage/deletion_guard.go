// internal/service/mileage/deletion_guard.go
package mileage

import (
	"context"
	"fmt"
	"time"

	"mileage-service/internal/domain/audit"
	"mileage-service/internal/domain/trip"
	xerrors "mileage-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// DeleteTrip removes a trip, unless it is the only fuel baseline left for
// downstream trips, in which case it is soft-deleted instead.
func (s *Service) DeleteTrip(ctx context.Context, tc trip.TenantContext, id int64) (*trip.DeleteResult, error) {
	defer s.metrics.Time(string(audit.OpDeleteTrip))()

	entry := audit.NewEntry(tc, audit.OpDeleteTrip)
	id64 := id
	entry.TripID = &id64

	current, err := s.repo.FindByID(ctx, tc.TenantID, id)
	if err != nil {
		s.rejected(entry, err)
		s.record(ctx, entry)
		return nil, err
	}
	entry.ForTrip(current)

	var result *trip.DeleteResult

	err = s.withChains(ctx, tc.TenantID, []int64{current.VehicleID}, func(tx trip.Repository) error {
		t, err := reloadLocked(ctx, tx, tc.TenantID, id, current.VehicleID)
		if err != nil {
			return err
		}
		if !t.IsActive() {
			return xerrors.ErrAlreadyDeleted
		}
		entry.Before = t.Clone()

		chain, err := loadChain(ctx, tx, tc.TenantID, t.VehicleID)
		if err != nil {
			return err
		}
		ct := chain.Get(id)
		if ct == nil {
			return xerrors.ErrNotFound
		}

		result = &trip.DeleteResult{TripID: id, Impact: assessImpact(chain, ct)}

		if result.Impact.NextRefuelingTripID == nil && ct.RefuelingDone && result.Impact.DownstreamTrips > 0 {
			d := trip.SoftDeletion{
				At: time.Now().UTC(),
				Reason: fmt.Sprintf(
					"refueling anchor for %d downstream trip(s) with no later refueling trip",
					result.Impact.DownstreamTrips,
				),
				By: tc.ActorID,
			}
			if err := tx.SoftDelete(ctx, tc.TenantID, id, d); err != nil {
				return err
			}
			result.Outcome = trip.OutcomeSoftDeleted

			after := t.Clone()
			after.Deletion = &d
			entry.After = after
			return nil
		}

		if err := tx.Delete(ctx, tc.TenantID, id); err != nil {
			return err
		}
		result.Outcome = trip.OutcomeHardDeleted
		return nil
	})
	if err != nil {
		s.rejected(entry, err)
		s.record(ctx, entry)
		return nil, err
	}

	s.metrics.TripDeleted(string(result.Outcome))
	entry.Classification = string(result.Outcome)
	entry.Message = result.Impact.Message
	entry.Flagged = result.Outcome == trip.OutcomeSoftDeleted

	if result.Impact.DownstreamTrips > 0 {
		s.logger.Info("deleted trip had downstream trips",
			zap.Int64("trip_id", id),
			zap.String("outcome", string(result.Outcome)),
			zap.Int("downstream_trips", result.Impact.DownstreamTrips),
		)
	}

	s.record(ctx, entry)
	return result, nil
}

// assessImpact describes what deleting t would do to the rest of its chain.
func assessImpact(chain *trip.Chain, t *trip.Trip) trip.DeletionImpact {
	var impact trip.DeletionImpact

	if !t.RefuelingDone {
		impact.DownstreamTrips = len(chain.After(t))
		impact.Message = fmt.Sprintf("Non-refueling trip %d deleted; %d later trip(s) unaffected", t.ID, impact.DownstreamTrips)
		return impact
	}

	deps := chain.Dependents(t)
	impact.DownstreamTrips = len(deps)
	for _, d := range deps {
		impact.DownstreamTripIDs = append(impact.DownstreamTripIDs, d.ID)
	}

	next := chain.NextRefueling(t)
	switch {
	case next != nil:
		nid := next.ID
		impact.NextRefuelingTripID = &nid
		impact.Message = fmt.Sprintf(
			"Refueling trip %d deleted; trip %d becomes the anchor for %d downstream trip(s) on next recalculation",
			t.ID, next.ID, len(deps),
		)
	case len(deps) > 0:
		impact.Message = fmt.Sprintf(
			"Refueling trip %d is the only anchor for %d downstream trip(s); soft-deleted and recoverable",
			t.ID, len(deps),
		)
	default:
		impact.Message = fmt.Sprintf("Refueling trip %d deleted; no downstream trips depended on it", t.ID)
	}
	return impact
}
