package mileage

import (
	"errors"
	"testing"

	"mileage-service/internal/domain/audit"
	"mileage-service/internal/domain/trip"
	xerrors "mileage-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrectOdometer_ShiftsOverlappingTrips(t *testing.T) {
	svc, repo, sink := newTestService(t)
	repo.Import([]trip.Trip{
		stored(1, 1, 1, 0, 100),
		stored(2, 1, 2, 100, 200),
		stored(3, 1, 3, 200, 300),
		stored(4, 1, 4, 350, 400),
	})

	res, err := svc.CorrectOdometer(ctx, tc, 1, 150)
	require.NoError(t, err)

	assert.Equal(t, []int64{2, 3}, res.ShiftedTripIDs)
	assert.Equal(t, 150.0, res.Trip.EndKm)

	want := map[int64][2]float64{
		1: {0, 150},
		2: {150, 250},
		3: {250, 350},
		4: {350, 400},
	}
	for id, km := range want {
		got := find(t, repo, id)
		assert.Equal(t, km[0], got.StartKm, "trip %d start_km", id)
		assert.Equal(t, km[1], got.EndKm, "trip %d end_km", id)
	}

	entry := sink.Last()
	assert.Equal(t, audit.OpCorrectOdometer, entry.Operation)
	assert.Equal(t, "corrected", entry.Classification)
	require.NotNil(t, entry.Before)
	assert.Equal(t, 100.0, entry.Before.EndKm)

	issues, err := svc.ValidateChain(ctx, tc, 1, trip.ValidateOptions{})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, trip.IssueNone, issues[0].IssueType)
}

func TestCorrectOdometer_RecalculatesShiftedRefuels(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.Import([]trip.Trip{
		storedRefuel(1, 1, 1, 0, 500, 50, trip.Float(10)),
		storedRefuel(2, 1, 2, 500, 900, 40, trip.Float(10)),
		storedRefuel(3, 1, 3, 1000, 1300, 30, trip.Float(10)),
	})

	res, err := svc.CorrectOdometer(ctx, tc, 1, 600)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, res.ShiftedTripIDs)

	assert.Equal(t, 12.0, *find(t, repo, 1).CalculatedKmpl)
	// 2 keeps its tank distance: 1000 - 600
	assert.Equal(t, 10.0, *find(t, repo, 2).CalculatedKmpl)
	// 3 now follows an anchor ending at 1000
	assert.Equal(t, 10.0, *find(t, repo, 3).CalculatedKmpl)
}

func TestCorrectOdometer_Rejections(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.Import([]trip.Trip{stored(1, 1, 1, 100, 200)})

	_, err := svc.CorrectOdometer(ctx, tc, 1, 100)
	var cerr *trip.ContinuityError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, trip.ViolationNonPositiveDistance, cerr.Kind)

	_, err = svc.CorrectOdometer(ctx, tc, 1, -5)
	assert.True(t, xerrors.Is(err, xerrors.ErrInvalidInput))

	_, err = svc.CorrectOdometer(ctx, tc, 2, 300)
	assert.True(t, xerrors.Is(err, xerrors.ErrNotFound))

	assert.Equal(t, 200.0, find(t, repo, 1).EndKm)
}
