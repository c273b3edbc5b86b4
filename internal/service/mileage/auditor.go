// internal/service/mileage/auditor.go
package mileage

import (
	"context"
	"fmt"

	"mileage-service/internal/domain/audit"
	"mileage-service/internal/domain/trip"

	"go.uber.org/zap"
)

// ValidateChain collects the issues of one vehicle's chain.
func (s *Service) ValidateChain(ctx context.Context, tc trip.TenantContext, vehicleID int64, opts trip.ValidateOptions) ([]trip.ChainIssue, error) {
	var issues []trip.ChainIssue
	err := s.StreamChainIssues(ctx, tc, vehicleID, opts, func(issue trip.ChainIssue) error {
		issues = append(issues, issue)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return issues, nil
}

// StreamChainIssues walks the chain in order and hands each issue to yield
// as it is found. When nothing is found a single no_issues record is
// yielded. Without AutoFix the scan runs lock-free on a snapshot.
func (s *Service) StreamChainIssues(
	ctx context.Context,
	tc trip.TenantContext,
	vehicleID int64,
	opts trip.ValidateOptions,
	yield func(trip.ChainIssue) error,
) error {
	defer s.metrics.Time(string(audit.OpValidateChain))()

	entry := audit.NewEntry(tc, audit.OpValidateChain).ForVehicle(vehicleID)
	var stats scanStats

	var err error
	if opts.AutoFix {
		err = s.withChains(ctx, tc.TenantID, []int64{vehicleID}, func(tx trip.Repository) error {
			chain, err := loadChain(ctx, tx, tc.TenantID, vehicleID)
			if err != nil {
				return err
			}
			return s.scan(ctx, tx, chain, opts, yield, &stats)
		})
	} else {
		var chain *trip.Chain
		if chain, err = loadChain(ctx, s.repo, tc.TenantID, vehicleID); err == nil {
			err = s.scan(ctx, nil, chain, opts, yield, &stats)
		}
	}

	if err != nil {
		entry.Classification = "error"
		entry.Message = err.Error()
		s.logger.Error("chain validation failed", zap.Int64("vehicle_id", vehicleID), zap.Error(err))
		s.record(ctx, entry)
		return err
	}

	entry.Classification = string(trip.IssueNone)
	entry.Message = "chain validated: no issues"
	if stats.issues > 0 {
		entry.Classification = fmt.Sprintf("%d_issues", stats.issues)
		entry.Message = fmt.Sprintf("chain validated: %d issue(s), %d fixed", stats.issues, stats.fixed)
	}
	entry.Flagged = stats.critical > 0
	s.record(ctx, entry)
	return nil
}

type scanStats struct {
	issues   int
	fixed    int
	critical int
}

func (s *Service) scan(
	ctx context.Context,
	tx trip.Repository,
	chain *trip.Chain,
	opts trip.ValidateOptions,
	yield func(trip.ChainIssue) error,
	stats *scanStats,
) error {
	var prev *trip.Trip
	for _, t := range chain.Trips() {
		if err := ctx.Err(); err != nil {
			return err
		}

		if opts.Range.Contains(t.StartDate) {
			issues, err := s.inspect(ctx, tx, chain, prev, t, opts.AutoFix)
			if err != nil {
				return err
			}
			for _, issue := range issues {
				stats.issues++
				if issue.Fixed {
					stats.fixed++
				}
				if issue.Severity == trip.SeverityCritical {
					stats.critical++
				}
				s.metrics.IssueReported(string(issue.IssueType), issue.Fixed)
				if err := yield(issue); err != nil {
					return err
				}
			}
		}
		prev = t
	}

	if stats.issues == 0 {
		return yield(trip.ChainIssue{
			IssueType:   trip.IssueNone,
			Severity:    trip.SeverityInfo,
			Description: "No issues found in the odometer chain",
		})
	}
	return nil
}

// inspect returns the issues of t given the trip before it in the chain.
// Fixes are applied through tx, which is nil for read-only scans.
func (s *Service) inspect(ctx context.Context, tx trip.Repository, chain *trip.Chain, prev, t *trip.Trip, autoFix bool) ([]trip.ChainIssue, error) {
	var issues []trip.ChainIssue
	start := t.StartDate

	newIssue := func(typ trip.IssueType, sev trip.Severity, desc string) trip.ChainIssue {
		return trip.ChainIssue{
			IssueType:     typ,
			Severity:      sev,
			TripID:        t.ID,
			TripStartDate: &start,
			Description:   desc,
		}
	}

	if t.EndKm <= t.StartKm {
		issue := newIssue(trip.IssueNegativeDistance, trip.SeverityCritical,
			fmt.Sprintf("end_km %.2f is not greater than start_km %.2f", t.EndKm, t.StartKm))
		issue.CurrentValue = trip.Float(t.Distance())
		issues = append(issues, issue)
	}

	if prev != nil {
		gap := t.StartKm - prev.EndKm
		switch {
		case gap < 0:
			issue := newIssue(trip.IssueOdometerRegression, trip.SeverityHigh,
				fmt.Sprintf("start_km %.2f is below end_km %.2f of trip %d", t.StartKm, prev.EndKm, prev.ID))
			issue.CurrentValue = trip.Float(t.StartKm)
			issue.ExpectedValue = trip.Float(prev.EndKm)
			issue.AutoFixable = t.EndKm > prev.EndKm

			if autoFix && issue.AutoFixable {
				if err := tx.UpdateOdometer(ctx, t.TenantID, t.ID, prev.EndKm, t.EndKm); err != nil {
					return nil, err
				}
				issue.Fixed = true
				issue.FixAction = fmt.Sprintf("start_km raised from %.2f to %.2f", t.StartKm, prev.EndKm)
				t.StartKm = prev.EndKm

				// A first-fill value depends on start_km
				if t.RefuelingDone && t.CalculatedKmpl != nil {
					if _, err := s.recalcInChain(ctx, tx, chain, t, false); err != nil {
						return nil, err
					}
				}
			}
			issues = append(issues, issue)

		case gap > trip.AuditLargeGapKm:
			issue := newIssue(trip.IssueLargeOdometerGap, trip.SeverityMedium,
				fmt.Sprintf("gap of %.2f km since trip %d needs manual review", gap, prev.ID))
			issue.CurrentValue = trip.Float(gap)
			issues = append(issues, issue)
		}
	}

	if t.RefuelingDone && t.CalculatedKmpl == nil {
		issue := newIssue(trip.IssueMissingMileage, trip.SeverityLow, "refueling trip has no calculated mileage")
		issue.AutoFixable = true

		if autoFix {
			res, err := s.recalcInChain(ctx, tx, chain, t, true)
			if err != nil {
				return nil, err
			}
			issue.Fixed = res.Success && res.Updated
			issue.FixAction = res.Message
			if res.NewKmpl != nil {
				issue.ExpectedValue = trip.Float(*res.NewKmpl)
			}
		}
		issues = append(issues, issue)
	}

	if k := t.CalculatedKmpl; k != nil && (*k < trip.MinRealisticKmpl || *k > trip.MaxRealisticKmpl) {
		issue := newIssue(trip.IssueUnrealisticMileage, trip.SeverityMedium,
			fmt.Sprintf("mileage %.2f km/l is outside [%.0f, %.0f]", *k, trip.MinRealisticKmpl, trip.MaxRealisticKmpl))
		issue.CurrentValue = trip.Float(*k)
		issues = append(issues, issue)
	}

	return issues, nil
}
