// internal/service/mileage/fleet.go
package mileage

import (
	"context"

	"mileage-service/internal/domain/trip"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ValidateFleet audits many vehicles concurrently. An empty vehicle list
// audits every vehicle of the tenant. A failing vehicle is reported in its
// own result and does not stop the others.
func (s *Service) ValidateFleet(ctx context.Context, tc trip.TenantContext, vehicleIDs []int64, autoFix bool) ([]trip.FleetAuditResult, error) {
	if len(vehicleIDs) == 0 {
		ids, err := s.repo.ListVehicleIDs(ctx, tc.TenantID)
		if err != nil {
			return nil, err
		}
		vehicleIDs = ids
	}
	vehicleIDs = uniqueSorted(vehicleIDs)

	results := make([]trip.FleetAuditResult, len(vehicleIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fleetWorkers)

	for i, vehicleID := range vehicleIDs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			results[i].VehicleID = vehicleID
			issues, err := s.ValidateChain(gctx, tc, vehicleID, trip.ValidateOptions{AutoFix: autoFix})
			if err != nil {
				s.logger.Warn("fleet audit failed for vehicle", zap.Int64("vehicle_id", vehicleID), zap.Error(err))
				results[i].Error = err.Error()
				return nil
			}
			results[i].Issues = issues
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
