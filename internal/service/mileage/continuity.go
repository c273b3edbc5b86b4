// internal/service/mileage/continuity.go
package mileage

import (
	"context"
	"fmt"

	"mileage-service/internal/domain/audit"
	"mileage-service/internal/domain/trip"
)

// Score penalties per gap.
const (
	largeGapCap     = 50
	largeGapPenalty = 10
	moderatePenalty = 5
	smallPenalty    = 1
)

// pair is two adjacent trips of a chain.
type pair struct {
	prev, cur *trip.Trip
	gap       float64
}

// pairs returns the adjacent pairs whose later trip starts inside rng, and
// how many trips lie inside rng.
func pairs(chain *trip.Chain, rng *trip.DateRange) ([]pair, int) {
	var (
		out   []pair
		total int
		prev  *trip.Trip
	)
	for _, t := range chain.Trips() {
		if rng.Contains(t.StartDate) {
			total++
			if prev != nil {
				out = append(out, pair{prev: prev, cur: t, gap: t.StartKm - prev.EndKm})
			}
		}
		prev = t
	}
	return out, total
}

// AnalyzeContinuity scores the odometer continuity of a chain from 0 to 100.
// A vehicle with no trips in range has no score.
func (s *Service) AnalyzeContinuity(ctx context.Context, tc trip.TenantContext, vehicleID int64, rng *trip.DateRange) (*trip.ContinuityReport, error) {
	defer s.metrics.Time(string(audit.OpAnalyzeContinuity))()

	entry := audit.NewEntry(tc, audit.OpAnalyzeContinuity).ForVehicle(vehicleID)

	chain, err := loadChain(ctx, s.repo, tc.TenantID, vehicleID)
	if err != nil {
		entry.Classification = "error"
		entry.Message = err.Error()
		s.record(ctx, entry)
		return nil, err
	}

	ps, total := pairs(chain, rng)
	report := &trip.ContinuityReport{VehicleID: vehicleID}
	report.Counts.TotalTrips = total
	report.Counts.Pairs = len(ps)

	for _, p := range ps {
		switch trip.ClassifyGap(p.gap) {
		case trip.GapNegative:
			report.Counts.Negative++
		case trip.GapPerfect:
			report.Counts.Perfect++
		case trip.GapAcceptable:
			report.Counts.Small++
		case trip.GapModerate:
			report.Counts.Moderate++
		case trip.GapLarge:
			report.Counts.Large++
		}
	}

	if total > 0 {
		score := continuityScore(report.Counts)
		report.Score = &score
	}
	report.Recommendations = recommendations(report.Counts)

	entry.Classification = "no_score"
	if report.Score != nil {
		entry.Classification = fmt.Sprintf("score_%d", *report.Score)
	}
	entry.Message = fmt.Sprintf("continuity analyzed over %d trip(s), %d pair(s)", total, len(ps))
	entry.Flagged = report.Counts.Negative > 0
	s.record(ctx, entry)

	return report, nil
}

func continuityScore(c trip.GapCounts) int {
	switch {
	case c.Negative > 0:
		return 0
	case c.Large > 0:
		return max(0, largeGapCap-largeGapPenalty*c.Large)
	default:
		return max(0, 100-smallPenalty*c.Small-moderatePenalty*c.Moderate)
	}
}

func recommendations(c trip.GapCounts) []string {
	if c.TotalTrips == 0 {
		return []string{"No trips recorded for this vehicle in the selected range"}
	}

	var recs []string
	if c.Negative > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d odometer regression(s) found: run chain validation with auto-fix or correct the readings manually", c.Negative))
	}
	if c.Large > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d large gap(s) over %.0f km: investigate for unrecorded trips or an odometer replacement", c.Large, trip.ModerateGapKm))
	}
	if c.Moderate > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d moderate gap(s) between %.0f and %.0f km: review for missing trip records", c.Moderate, trip.AcceptableGapKm, trip.ModerateGapKm))
	}
	if c.Small > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d small gap(s) up to %.0f km: likely unlogged vehicle movement, no action required", c.Small, trip.AcceptableGapKm))
	}
	if len(recs) == 0 {
		recs = append(recs, "Odometer chain is continuous; no action required")
	}
	return recs
}

// DetectChainBreaks lists every adjacent pair whose gap is not zero, with a
// suggested remediation. It never writes.
func (s *Service) DetectChainBreaks(ctx context.Context, tc trip.TenantContext, vehicleID int64, rng *trip.DateRange) ([]trip.ChainBreak, error) {
	defer s.metrics.Time(string(audit.OpDetectChainBreaks))()

	entry := audit.NewEntry(tc, audit.OpDetectChainBreaks).ForVehicle(vehicleID)

	chain, err := loadChain(ctx, s.repo, tc.TenantID, vehicleID)
	if err != nil {
		entry.Classification = "error"
		entry.Message = err.Error()
		s.record(ctx, entry)
		return nil, err
	}

	ps, _ := pairs(chain, rng)
	breaks := []trip.ChainBreak{}
	for _, p := range ps {
		if p.gap == 0 {
			continue
		}
		class := trip.ClassifyGap(p.gap)
		breaks = append(breaks, trip.ChainBreak{
			FromTripID:     p.prev.ID,
			ToTripID:       p.cur.ID,
			FromEndDate:    p.prev.EndDate,
			ToStartDate:    p.cur.StartDate,
			FromEndKm:      p.prev.EndKm,
			ToStartKm:      p.cur.StartKm,
			GapKm:          p.gap,
			Classification: class,
			Remediation:    remediation(p, class),
		})
	}

	entry.Classification = fmt.Sprintf("%d_breaks", len(breaks))
	entry.Message = fmt.Sprintf("%d chain break(s) detected", len(breaks))
	s.record(ctx, entry)

	return breaks, nil
}

func remediation(p pair, class trip.GapClass) string {
	switch class {
	case trip.GapNegative:
		return fmt.Sprintf(
			"Odometer regression of %.2f km: raise start_km of trip %d to at least %.2f or correct end_km of trip %d",
			-p.gap, p.cur.ID, p.prev.EndKm, p.prev.ID)
	case trip.GapAcceptable:
		return fmt.Sprintf("Small gap of %.2f km, likely unlogged movement; no action required", p.gap)
	case trip.GapModerate:
		return fmt.Sprintf("Gap of %.2f km: check for a missing trip between %s and %s",
			p.gap, p.prev.EndDate.Format("2006-01-02"), p.cur.StartDate.Format("2006-01-02"))
	default:
		return fmt.Sprintf("Large gap of %.2f km: investigate for unrecorded trips or an odometer replacement", p.gap)
	}
}
