// internal/service/mileage/validator.go
package mileage

import (
	"context"
	"fmt"

	"mileage-service/internal/domain/audit"
	"mileage-service/internal/domain/trip"
	xerrors "mileage-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// continuity is the accepted outcome of checking a trip against its chain.
type continuity struct {
	class       trip.GapClass
	gap         *float64
	predecessor *trip.Trip
	warnings    []string
}

// checkContinuity validates t against the chain it is about to join. The
// chain may still contain an older version of t; it is ignored by id.
// successorKind selects the violation reported when t overlaps the trip
// after it; an empty kind skips the successor check.
func checkContinuity(chain *trip.Chain, t *trip.Trip, successorKind trip.ViolationKind) (*continuity, error) {
	if t.EndKm <= t.StartKm {
		return nil, &trip.ContinuityError{
			Kind:    trip.ViolationNonPositiveDistance,
			TripID:  t.ID,
			StartKm: t.StartKm,
			EndKm:   t.EndKm,
		}
	}

	c := &continuity{class: trip.GapFirstTrip}

	if pred := chain.Predecessor(t.StartDate, t.ID); pred != nil {
		gap := t.StartKm - pred.EndKm
		c.gap = trip.Float(gap)
		c.predecessor = pred
		c.class = trip.ClassifyGap(gap)

		switch c.class {
		case trip.GapNegative:
			return nil, &trip.ContinuityError{
				Kind:              trip.ViolationNegativeGap,
				TripID:            t.ID,
				StartKm:           t.StartKm,
				EndKm:             t.EndKm,
				ConflictingTripID: pred.ID,
				ConflictingKm:     pred.EndKm,
				Gap:               gap,
			}
		case trip.GapModerate:
			c.warnings = append(c.warnings, fmt.Sprintf(
				"moderate odometer gap of %.2f km since trip %d", gap, pred.ID))
		case trip.GapLarge:
			c.warnings = append(c.warnings, fmt.Sprintf(
				"large odometer gap of %.2f km since trip %d; flagged for investigation", gap, pred.ID))
		}
	}

	if successorKind != "" {
		if succ := chain.Successor(t.EndDate, t.ID); succ != nil && succ.StartKm < t.EndKm {
			return nil, &trip.ContinuityError{
				Kind:              successorKind,
				TripID:            t.ID,
				StartKm:           t.StartKm,
				EndKm:             t.EndKm,
				ConflictingTripID: succ.ID,
				ConflictingKm:     succ.StartKm,
			}
		}
	}

	return c, nil
}

func (c *continuity) result(t *trip.Trip) *trip.WriteResult {
	res := &trip.WriteResult{
		Trip:           t,
		Classification: c.class,
		GapKm:          c.gap,
		Warnings:       c.warnings,
	}
	if c.predecessor != nil {
		id := c.predecessor.ID
		res.PredecessorID = &id
	}
	return res
}

// InsertTrip validates and stores a new trip, then refreshes the mileage of
// the refueling trips it affects.
func (s *Service) InsertTrip(ctx context.Context, tc trip.TenantContext, req *trip.CreateTripRequest) (*trip.WriteResult, error) {
	defer s.metrics.Time(string(audit.OpInsertTrip))()

	entry := audit.NewEntry(tc, audit.OpInsertTrip).ForVehicle(req.VehicleID)
	if err := req.Validate(); err != nil {
		s.rejected(entry, err)
		s.record(ctx, entry)
		return nil, err
	}

	t := req.ToTrip(tc)
	var result *trip.WriteResult

	err := s.withChains(ctx, tc.TenantID, []int64{t.VehicleID}, func(tx trip.Repository) error {
		chain, err := loadChain(ctx, tx, tc.TenantID, t.VehicleID)
		if err != nil {
			return err
		}

		cont, err := checkContinuity(chain, t, trip.ViolationSuccessorOverlap)
		if err != nil {
			return err
		}

		if err := tx.Create(ctx, t); err != nil {
			return err
		}
		chain.Upsert(t)

		stored := chain.Get(t.ID)
		recalcs, err := s.recalculateAround(ctx, tx, chain, stored)
		if err != nil {
			return err
		}

		result = cont.result(stored.Clone())
		result.Recalculations = recalcs
		return nil
	})

	s.finishWrite(ctx, entry, result, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateTrip applies a partial edit. Edits that move the trip within its
// chain are re-validated; an end_km edit that would overlap the next trip
// must go through CorrectOdometer instead.
func (s *Service) UpdateTrip(ctx context.Context, tc trip.TenantContext, id int64, req *trip.UpdateTripRequest) (*trip.WriteResult, error) {
	defer s.metrics.Time(string(audit.OpUpdateTrip))()

	entry := audit.NewEntry(tc, audit.OpUpdateTrip)
	id64 := id
	entry.TripID = &id64

	current, err := s.repo.FindByID(ctx, tc.TenantID, id)
	if err != nil {
		s.rejected(entry, err)
		s.record(ctx, entry)
		return nil, err
	}
	entry.ForTrip(current)

	vehicles := []int64{current.VehicleID}
	if req.VehicleID != nil {
		vehicles = append(vehicles, *req.VehicleID)
	}

	var result *trip.WriteResult

	err = s.withChains(ctx, tc.TenantID, vehicles, func(tx trip.Repository) error {
		before, err := reloadLocked(ctx, tx, tc.TenantID, id, current.VehicleID)
		if err != nil {
			return err
		}
		if !before.IsActive() {
			return xerrors.ErrAlreadyDeleted
		}
		entry.Before = before.Clone()

		after := before.Clone()
		req.ApplyTo(after)
		if err := after.CheckFields(); err != nil {
			return err
		}

		chain, err := loadChain(ctx, tx, tc.TenantID, after.VehicleID)
		if err != nil {
			return err
		}
		oldChain := chain
		if after.VehicleID != before.VehicleID {
			if oldChain, err = loadChain(ctx, tx, tc.TenantID, before.VehicleID); err != nil {
				return err
			}
		}

		cont := &continuity{class: trip.GapNotEvaluated}
		if trip.TouchesChain(before, after) {
			kind := trip.ViolationSuccessorOverlap
			if after.EndKm != before.EndKm {
				kind = trip.ViolationCascadeRequired
			}
			if cont, err = checkContinuity(chain, after, kind); err != nil {
				return err
			}
		}

		// The refueling trip that followed the old position may lose or
		// change its anchor.
		var oldNextID int64
		if old := oldChain.Get(id); old != nil {
			if n := oldChain.NextRefueling(old); n != nil {
				oldNextID = n.ID
			}
		}

		if err := tx.Update(ctx, after); err != nil {
			return err
		}
		if oldChain != chain {
			oldChain.Remove(id)
		}
		chain.Upsert(after)

		stored := chain.Get(id)
		recalcs, err := s.recalculateAround(ctx, tx, chain, stored)
		if err != nil {
			return err
		}

		if oldNextID != 0 && !recalculated(recalcs, oldNextID) {
			if n := oldChain.Get(oldNextID); n != nil {
				res, err := s.recalcInChain(ctx, tx, oldChain, n, false)
				if err != nil {
					return err
				}
				recalcs = append(recalcs, res)
			}
		}

		result = cont.result(stored.Clone())
		result.Recalculations = recalcs
		return nil
	})

	s.finishWrite(ctx, entry, result, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) finishWrite(ctx context.Context, entry *audit.Entry, result *trip.WriteResult, err error) {
	if err != nil {
		s.rejected(entry, err)
		s.logger.Warn("trip write rejected",
			zap.String("operation", string(entry.Operation)),
			zap.Int64("tenant_id", entry.TenantID),
			zap.Error(err),
		)
		s.record(ctx, entry)
		return
	}

	entry.ForTrip(result.Trip)
	entry.After = result.Trip
	entry.Classification = string(result.Classification)
	entry.Warnings = result.Warnings
	entry.Flagged = result.Classification == trip.GapLarge
	entry.Message = fmt.Sprintf("trip %d accepted (%s)", result.Trip.ID, result.Classification)

	if result.Classification != trip.GapNotEvaluated {
		s.metrics.GapClassified(string(result.Classification))
	}
	if result.Classification.NeedsReview() {
		s.logger.Warn("odometer gap needs review",
			zap.Int64("trip_id", result.Trip.ID),
			zap.Int64("vehicle_id", result.Trip.VehicleID),
			zap.String("classification", string(result.Classification)),
			zap.Strings("warnings", result.Warnings),
		)
	}

	s.record(ctx, entry)
}

func recalculated(results []*trip.RecalculationResult, id int64) bool {
	for _, r := range results {
		if r.TripID == id {
			return true
		}
	}
	return false
}
