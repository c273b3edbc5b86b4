// internal/service/mileage/recalculator.go
package mileage

import (
	"context"
	"errors"
	"fmt"
	"math"

	"mileage-service/internal/domain/audit"
	"mileage-service/internal/domain/trip"
	xerrors "mileage-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// kmplTolerance is the smallest change worth writing back.
const kmplTolerance = 0.01

// RecalculateMileage recomputes the fuel efficiency of one refueling trip.
// Bad input is reported in the result, never as an error.
func (s *Service) RecalculateMileage(ctx context.Context, tc trip.TenantContext, id int64, force bool) (*trip.RecalculationResult, error) {
	defer s.metrics.Time(string(audit.OpRecalculateMileage))()

	entry := audit.NewEntry(tc, audit.OpRecalculateMileage)
	id64 := id
	entry.TripID = &id64

	current, err := s.repo.FindByID(ctx, tc.TenantID, id)
	if errors.Is(err, xerrors.ErrNotFound) {
		res := &trip.RecalculationResult{TripID: id, Method: trip.MethodError, Message: "Trip not found"}
		s.finishRecalc(ctx, entry, res)
		return res, nil
	}
	if err != nil {
		s.rejected(entry, err)
		s.record(ctx, entry)
		return nil, err
	}
	entry.ForTrip(current)

	var res *trip.RecalculationResult
	err = s.withChains(ctx, tc.TenantID, []int64{current.VehicleID}, func(tx trip.Repository) error {
		t, err := reloadLocked(ctx, tx, tc.TenantID, id, current.VehicleID)
		if err != nil {
			return err
		}
		entry.Before = t.Clone()

		if !t.IsActive() {
			res = &trip.RecalculationResult{
				TripID:  id,
				OldKmpl: t.CalculatedKmpl,
				Method:  trip.MethodError,
				Message: "Trip is soft-deleted; recover it before recalculating",
			}
			return nil
		}

		chain, err := loadChain(ctx, tx, tc.TenantID, t.VehicleID)
		if err != nil {
			return err
		}
		ct := chain.Get(id)
		if ct == nil {
			return xerrors.ErrNotFound
		}

		if res, err = s.recalcInChain(ctx, tx, chain, ct, force); err != nil {
			return err
		}
		entry.After = ct.Clone()
		return nil
	})
	if err != nil {
		s.logger.Error("mileage recalculation failed", zap.Int64("trip_id", id), zap.Error(err))
		res = &trip.RecalculationResult{TripID: id, Method: trip.MethodError, Message: err.Error()}
		s.finishRecalc(ctx, entry, res)
		return nil, err
	}

	s.finishRecalc(ctx, entry, res)
	return res, nil
}

func (s *Service) finishRecalc(ctx context.Context, entry *audit.Entry, res *trip.RecalculationResult) {
	entry.Classification = string(res.Method)
	entry.Message = res.Message
	s.record(ctx, entry)
}

// recalcInChain recomputes t, which must be the chain's own copy, and writes
// the new value through tx when it changed. The returned error is reserved
// for store failures.
func (s *Service) recalcInChain(ctx context.Context, tx trip.Repository, chain *trip.Chain, t *trip.Trip, force bool) (*trip.RecalculationResult, error) {
	res := &trip.RecalculationResult{TripID: t.ID}
	if t.CalculatedKmpl != nil {
		res.OldKmpl = trip.Float(*t.CalculatedKmpl)
	}
	defer func() { s.metrics.Recalculated(string(res.Method), res.Updated) }()

	if !t.RefuelingDone {
		res.Method = trip.MethodNotApplicable
		res.Message = "Not a refueling trip; mileage is not applicable"
		return res, nil
	}
	if t.FuelQuantity == nil || *t.FuelQuantity <= 0 {
		res.Method = trip.MethodError
		res.Message = "Fuel quantity is missing or not positive; stored value preserved"
		return res, nil
	}

	var distance float64
	if anchor := chain.PrevRefueling(t); anchor != nil {
		res.Method = trip.MethodTankToTank
		distance = t.EndKm - anchor.EndKm
	} else {
		res.Method = trip.MethodSimple
		distance = t.EndKm - t.StartKm
	}

	if distance <= 0 {
		res.Message = fmt.Sprintf("Distance since anchor is %.2f km; stored value preserved", distance)
		return res, nil
	}

	kmpl := round2(distance / *t.FuelQuantity)
	res.NewKmpl = trip.Float(kmpl)

	if !force && t.CalculatedKmpl != nil && math.Abs(kmpl-*t.CalculatedKmpl) <= kmplTolerance {
		res.Success = true
		res.Message = "No recalculation needed"
		return res, nil
	}

	if err := tx.UpdateCalculatedKmpl(ctx, t.TenantID, t.ID, kmpl); err != nil {
		return nil, fmt.Errorf("failed to store calculated kmpl: %w", err)
	}
	t.CalculatedKmpl = trip.Float(kmpl)

	res.Success = true
	res.Updated = true
	res.Message = fmt.Sprintf("Mileage updated to %.2f km/l (%s)", kmpl, res.Method)
	return res, nil
}

// recalculateAround refreshes t and the next refueling trip after it, the two
// values a write to t can change.
func (s *Service) recalculateAround(ctx context.Context, tx trip.Repository, chain *trip.Chain, t *trip.Trip) ([]*trip.RecalculationResult, error) {
	var results []*trip.RecalculationResult

	if t.RefuelingDone {
		res, err := s.recalcInChain(ctx, tx, chain, t, false)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	if next := chain.NextRefueling(t); next != nil {
		res, err := s.recalcInChain(ctx, tx, chain, next, false)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
