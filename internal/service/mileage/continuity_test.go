package mileage

import (
	"testing"

	"mileage-service/internal/domain/trip"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chainWithGaps builds a chain whose consecutive gaps are the given values.
func chainWithGaps(gaps ...float64) []trip.Trip {
	trips := []trip.Trip{stored(1, 1, 1, 0, 100)}
	end := 100.0
	for i, g := range gaps {
		start := end + g
		trips = append(trips, stored(int64(i+2), 1, i+2, start, start+100))
		end = start + 100
	}
	return trips
}

func TestAnalyzeContinuity_NoTrips(t *testing.T) {
	svc, _, sink := newTestService(t)

	report, err := svc.AnalyzeContinuity(ctx, tc, 1, nil)
	require.NoError(t, err)
	assert.Nil(t, report.Score)
	assert.Zero(t, report.Counts.TotalTrips)
	assert.NotEmpty(t, report.Recommendations)
	assert.Equal(t, "no_score", sink.Last().Classification)
}

func TestAnalyzeContinuity_Scores(t *testing.T) {
	tests := []struct {
		name  string
		gaps  []float64
		score int
	}{
		{"single trip", nil, 100},
		{"perfect", []float64{0, 0, 0}, 100},
		{"small and moderate", []float64{5, 8, 30}, 93},
		{"one large", []float64{0, 120}, 40},
		{"large beats moderate", []float64{30, 60, 70}, 30},
		{"negative forces zero", []float64{0, -5, 200}, 0},
		{"floor at zero", []float64{51, 51, 51, 51, 51, 51}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _ := newTestService(t)
			repo.Import(chainWithGaps(tt.gaps...))

			report, err := svc.AnalyzeContinuity(ctx, tc, 1, nil)
			require.NoError(t, err)
			require.NotNil(t, report.Score)
			assert.Equal(t, tt.score, *report.Score)
			assert.Equal(t, len(tt.gaps)+1, report.Counts.TotalTrips)
			assert.Equal(t, len(tt.gaps), report.Counts.Pairs)
			assert.NotEmpty(t, report.Recommendations)
		})
	}
}

func TestAnalyzeContinuity_Counts(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.Import(chainWithGaps(0, 3, 10, 11, 50, 51, -1))

	report, err := svc.AnalyzeContinuity(ctx, tc, 1, nil)
	require.NoError(t, err)

	assert.Equal(t, trip.GapCounts{
		TotalTrips: 8,
		Pairs:      7,
		Perfect:    1,
		Small:      2,
		Moderate:   2,
		Large:      1,
		Negative:   1,
	}, report.Counts)
	assert.Len(t, report.Recommendations, 4)
}

func TestDetectChainBreaks(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.Import(chainWithGaps(0, 5, -10, 0, 75))

	breaks, err := svc.DetectChainBreaks(ctx, tc, 1, nil)
	require.NoError(t, err)
	require.Len(t, breaks, 3)

	assert.Equal(t, trip.GapAcceptable, breaks[0].Classification)
	assert.Equal(t, int64(2), breaks[0].FromTripID)
	assert.Equal(t, int64(3), breaks[0].ToTripID)
	assert.Equal(t, 5.0, breaks[0].GapKm)

	assert.Equal(t, trip.GapNegative, breaks[1].Classification)
	assert.Equal(t, -10.0, breaks[1].GapKm)
	assert.Contains(t, breaks[1].Remediation, "regression")

	assert.Equal(t, trip.GapLarge, breaks[2].Classification)
	assert.Contains(t, breaks[2].Remediation, "investigate")

	// Nothing was written
	assert.Equal(t, 295.0, find(t, repo, 4).StartKm)
}

func TestDetectChainBreaks_ContinuousChain(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.Import(chainWithGaps(0, 0))

	breaks, err := svc.DetectChainBreaks(ctx, tc, 1, nil)
	require.NoError(t, err)
	assert.Empty(t, breaks)
}
