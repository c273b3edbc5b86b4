package mileage

import (
	"context"
	"testing"
	"time"

	"mileage-service/internal/domain/trip"
	"mileage-service/internal/pkg/lock"
	"mileage-service/internal/pkg/metrics"
	"mileage-service/internal/repository/memory"
	auditsvc "mileage-service/internal/service/audit"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	ctx  = context.Background()
	tc   = trip.TenantContext{TenantID: 1, ActorID: 42}
	base = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
)

func newTestService(t *testing.T) (*Service, *memory.TripRepository, *auditsvc.MemorySink) {
	t.Helper()
	repo := memory.NewTripRepository()
	sink := auditsvc.NewMemorySink()
	svc := NewService(repo, lock.NewLocalLocker(), sink, metrics.New(prometheus.NewRegistry()), zap.NewNop())
	return svc, repo, sink
}

// day returns the start and end of a trip on day n.
func day(n int) (time.Time, time.Time) {
	d := base.AddDate(0, 0, n)
	return d.Add(8 * time.Hour), d.Add(18 * time.Hour)
}

func tripReq(vehicleID int64, n int, startKm, endKm float64) *trip.CreateTripRequest {
	start, end := day(n)
	return &trip.CreateTripRequest{
		VehicleID: vehicleID,
		StartDate: start,
		EndDate:   end,
		StartKm:   startKm,
		EndKm:     endKm,
	}
}

func refuelReq(vehicleID int64, n int, startKm, endKm, fuel float64) *trip.CreateTripRequest {
	r := tripReq(vehicleID, n, startKm, endKm)
	r.RefuelingDone = true
	r.FuelQuantity = trip.Float(fuel)
	return r
}

func mustInsert(t *testing.T, svc *Service, req *trip.CreateTripRequest) *trip.Trip {
	t.Helper()
	res, err := svc.InsertTrip(ctx, tc, req)
	require.NoError(t, err)
	return res.Trip
}

// stored builds a trip as it would sit in the store, bypassing validation.
func stored(id, vehicleID int64, n int, startKm, endKm float64) trip.Trip {
	start, end := day(n)
	return trip.Trip{
		ID:        id,
		TenantID:  tc.TenantID,
		VehicleID: vehicleID,
		StartDate: start,
		EndDate:   end,
		StartKm:   startKm,
		EndKm:     endKm,
	}
}

func storedRefuel(id, vehicleID int64, n int, startKm, endKm, fuel float64, kmpl *float64) trip.Trip {
	t := stored(id, vehicleID, n, startKm, endKm)
	t.RefuelingDone = true
	t.FuelQuantity = trip.Float(fuel)
	t.CalculatedKmpl = kmpl
	return t
}

func find(t *testing.T, repo *memory.TripRepository, id int64) *trip.Trip {
	t.Helper()
	got, err := repo.FindByID(ctx, tc.TenantID, id)
	require.NoError(t, err)
	return got
}
