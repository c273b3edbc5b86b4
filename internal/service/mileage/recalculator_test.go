package mileage

import (
	"testing"

	"mileage-service/internal/domain/trip"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecalculateMileage_TankToTank(t *testing.T) {
	svc, repo, sink := newTestService(t)
	repo.Import([]trip.Trip{
		storedRefuel(1, 1, 1, 600, 1000, 40, nil),
		stored(2, 1, 2, 1000, 1200),
		storedRefuel(3, 1, 3, 1200, 1400, 40, nil),
	})

	res, err := svc.RecalculateMileage(ctx, tc, 3, false)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.True(t, res.Updated)
	assert.Equal(t, trip.MethodTankToTank, res.Method)
	assert.Nil(t, res.OldKmpl)
	require.NotNil(t, res.NewKmpl)
	assert.Equal(t, 10.0, *res.NewKmpl)
	assert.Equal(t, 10.0, *find(t, repo, 3).CalculatedKmpl)

	entry := sink.Last()
	assert.Equal(t, string(trip.MethodTankToTank), entry.Classification)
	assert.Nil(t, entry.Before.CalculatedKmpl)
	assert.Equal(t, 10.0, *entry.After.CalculatedKmpl)
}

func TestRecalculateMileage_FirstRefueling(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.Import([]trip.Trip{storedRefuel(1, 1, 1, 0, 500, 50, nil)})

	res, err := svc.RecalculateMileage(ctx, tc, 1, false)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, trip.MethodSimple, res.Method)
	assert.Equal(t, 10.0, *res.NewKmpl)
	assert.Equal(t, 10.0, *find(t, repo, 1).CalculatedKmpl)
}

func TestRecalculateMileage_Idempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	created := mustInsert(t, svc, refuelReq(1, 1, 0, 500, 50))
	require.Equal(t, 10.0, *created.CalculatedKmpl)

	for i := 0; i < 2; i++ {
		res, err := svc.RecalculateMileage(ctx, tc, created.ID, false)
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.False(t, res.Updated)
		assert.Equal(t, "No recalculation needed", res.Message)
	}
}

func TestRecalculateMileage_ToleranceAndForce(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.Import([]trip.Trip{storedRefuel(1, 1, 1, 0, 500, 50, trip.Float(10.005))})

	res, err := svc.RecalculateMileage(ctx, tc, 1, false)
	require.NoError(t, err)
	assert.False(t, res.Updated)
	assert.Equal(t, 10.005, *find(t, repo, 1).CalculatedKmpl)

	res, err = svc.RecalculateMileage(ctx, tc, 1, true)
	require.NoError(t, err)
	assert.True(t, res.Updated)
	assert.Equal(t, 10.005, *res.OldKmpl)
	assert.Equal(t, 10.0, *find(t, repo, 1).CalculatedKmpl)
}

func TestRecalculateMileage_RoundsToTwoDecimals(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.Import([]trip.Trip{storedRefuel(1, 1, 1, 0, 100, 3, nil)})

	res, err := svc.RecalculateMileage(ctx, tc, 1, false)
	require.NoError(t, err)
	assert.Equal(t, 33.33, *res.NewKmpl)
}

func TestRecalculateMileage_StructuredFailures(t *testing.T) {
	svc, repo, _ := newTestService(t)
	missingFuel := storedRefuel(2, 1, 2, 100, 200, 0, trip.Float(7))
	missingFuel.FuelQuantity = nil
	repo.Import([]trip.Trip{
		stored(1, 1, 1, 0, 100),
		missingFuel,
		storedRefuel(3, 1, 3, 200, 300, 0, nil),
	})

	tests := []struct {
		name   string
		id     int64
		method trip.Method
	}{
		{"not refueling", 1, trip.MethodNotApplicable},
		{"missing fuel", 2, trip.MethodError},
		{"zero fuel", 3, trip.MethodError},
		{"unknown trip", 999, trip.MethodError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.RecalculateMileage(ctx, tc, tt.id, false)
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.False(t, res.Updated)
			assert.Equal(t, tt.method, res.Method)
			assert.NotEmpty(t, res.Message)
		})
	}

	assert.Equal(t, 7.0, *find(t, repo, 2).CalculatedKmpl)
}

func TestRecalculateMileage_OtherTenantIsNotFound(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.Import([]trip.Trip{storedRefuel(1, 1, 1, 0, 500, 50, nil)})

	other := trip.TenantContext{TenantID: 99, ActorID: 1}
	res, err := svc.RecalculateMileage(ctx, other, 1, true)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Nil(t, find(t, repo, 1).CalculatedKmpl)
}

func TestInsertTrip_RecalculatesInline(t *testing.T) {
	svc, repo, _ := newTestService(t)
	anchor := mustInsert(t, svc, refuelReq(1, 1, 0, 1000, 50))
	assert.Equal(t, 20.0, *anchor.CalculatedKmpl)

	res, err := svc.InsertTrip(ctx, tc, refuelReq(1, 5, 1200, 1400, 40))
	require.NoError(t, err)
	later := res.Trip
	require.NotNil(t, later.CalculatedKmpl)
	assert.Equal(t, 10.0, *later.CalculatedKmpl)
	require.Len(t, res.Recalculations, 1)
	assert.Equal(t, trip.MethodTankToTank, res.Recalculations[0].Method)

	// A backdated refueling trip becomes the anchor of the one after it
	res, err = svc.InsertTrip(ctx, tc, refuelReq(1, 3, 1000, 1200, 10))
	require.NoError(t, err)
	assert.Equal(t, 20.0, *res.Trip.CalculatedKmpl)
	require.Len(t, res.Recalculations, 2)
	assert.Equal(t, later.ID, res.Recalculations[1].TripID)
	assert.True(t, res.Recalculations[1].Updated)

	assert.Equal(t, 5.0, *find(t, repo, later.ID).CalculatedKmpl)
}
