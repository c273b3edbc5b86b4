package mileage

import (
	"errors"
	"testing"
	"time"

	"mileage-service/internal/domain/trip"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issueTypes(issues []trip.ChainIssue) map[int64][]trip.IssueType {
	out := make(map[int64][]trip.IssueType)
	for _, i := range issues {
		out[i.TripID] = append(out[i.TripID], i.IssueType)
	}
	return out
}

// brokenChain has one instance of every issue the auditor reports.
func brokenChain() []trip.Trip {
	return []trip.Trip{
		stored(1, 1, 1, 0, 100),
		stored(2, 1, 2, 90, 200),                           // regression
		storedRefuel(3, 1, 3, 200, 300, 10, nil),           // missing mileage
		stored(4, 1, 4, 450, 500),                          // large gap
		storedRefuel(5, 1, 5, 500, 520, 4, trip.Float(80)), // unrealistic
		stored(6, 1, 6, 520, 520),                          // negative distance
	}
}

func TestValidateChain_PerfectChainYieldsOnlySentinel(t *testing.T) {
	svc, repo, sink := newTestService(t)
	repo.Import([]trip.Trip{
		stored(1, 1, 1, 0, 100),
		stored(2, 1, 2, 100, 200),
		storedRefuel(3, 1, 3, 200, 300, 10, trip.Float(10)),
	})

	issues, err := svc.ValidateChain(ctx, tc, 1, trip.ValidateOptions{})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, trip.IssueNone, issues[0].IssueType)
	assert.Equal(t, trip.SeverityInfo, issues[0].Severity)

	assert.Equal(t, "no_issues", sink.Last().Classification)
}

func TestValidateChain_ReportsEveryIssueType(t *testing.T) {
	svc, repo, sink := newTestService(t)
	repo.Import(brokenChain())

	issues, err := svc.ValidateChain(ctx, tc, 1, trip.ValidateOptions{})
	require.NoError(t, err)

	byTrip := issueTypes(issues)
	assert.Equal(t, []trip.IssueType{trip.IssueOdometerRegression}, byTrip[2])
	assert.Equal(t, []trip.IssueType{trip.IssueMissingMileage}, byTrip[3])
	assert.Equal(t, []trip.IssueType{trip.IssueLargeOdometerGap}, byTrip[4])
	assert.Equal(t, []trip.IssueType{trip.IssueUnrealisticMileage}, byTrip[5])
	assert.Equal(t, []trip.IssueType{trip.IssueNegativeDistance}, byTrip[6])
	assert.NotContains(t, byTrip, int64(1))

	for _, issue := range issues {
		assert.False(t, issue.Fixed)
		require.NotNil(t, issue.TripStartDate)
		switch issue.IssueType {
		case trip.IssueNegativeDistance:
			assert.Equal(t, trip.SeverityCritical, issue.Severity)
			assert.False(t, issue.AutoFixable)
		case trip.IssueOdometerRegression:
			assert.Equal(t, trip.SeverityHigh, issue.Severity)
			assert.True(t, issue.AutoFixable)
			assert.Equal(t, 100.0, *issue.ExpectedValue)
		case trip.IssueLargeOdometerGap:
			assert.Equal(t, trip.SeverityMedium, issue.Severity)
			assert.False(t, issue.AutoFixable)
		case trip.IssueMissingMileage:
			assert.Equal(t, trip.SeverityLow, issue.Severity)
			assert.True(t, issue.AutoFixable)
		case trip.IssueUnrealisticMileage:
			assert.Equal(t, trip.SeverityMedium, issue.Severity)
		}
	}

	// Read-only scan
	assert.Equal(t, 90.0, find(t, repo, 2).StartKm)
	assert.Nil(t, find(t, repo, 3).CalculatedKmpl)
	assert.True(t, sink.Last().Flagged)
}

func TestValidateChain_AutoFix(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.Import(brokenChain())

	issues, err := svc.ValidateChain(ctx, tc, 1, trip.ValidateOptions{AutoFix: true})
	require.NoError(t, err)

	fixed := map[trip.IssueType]bool{}
	for _, i := range issues {
		if i.Fixed {
			fixed[i.IssueType] = true
			assert.NotEmpty(t, i.FixAction)
		}
	}
	assert.True(t, fixed[trip.IssueOdometerRegression])
	assert.True(t, fixed[trip.IssueMissingMileage])
	assert.False(t, fixed[trip.IssueLargeOdometerGap])
	assert.False(t, fixed[trip.IssueNegativeDistance])

	assert.Equal(t, 100.0, find(t, repo, 2).StartKm)
	assert.Equal(t, 200.0, find(t, repo, 2).EndKm)
	assert.Equal(t, 10.0, *find(t, repo, 3).CalculatedKmpl)

	// The second pass only sees what cannot be fixed automatically
	issues, err = svc.ValidateChain(ctx, tc, 1, trip.ValidateOptions{})
	require.NoError(t, err)
	byTrip := issueTypes(issues)
	assert.NotContains(t, byTrip, int64(2))
	assert.NotContains(t, byTrip, int64(3))
	assert.Contains(t, byTrip, int64(4))
}

func TestValidateChain_RegressionNotFixableWhenDistanceWouldVanish(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.Import([]trip.Trip{
		stored(1, 1, 1, 0, 300),
		stored(2, 1, 2, 100, 200),
	})

	issues, err := svc.ValidateChain(ctx, tc, 1, trip.ValidateOptions{AutoFix: true})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, trip.IssueOdometerRegression, issues[0].IssueType)
	assert.False(t, issues[0].AutoFixable)
	assert.False(t, issues[0].Fixed)
	assert.Equal(t, 100.0, find(t, repo, 2).StartKm)
}

func TestValidateChain_DateRange(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.Import(brokenChain())

	from, _ := day(4)
	to := from.Add(12 * time.Hour)
	issues, err := svc.ValidateChain(ctx, tc, 1, trip.ValidateOptions{Range: &trip.DateRange{From: &from, To: &to}})
	require.NoError(t, err)

	// Trip 4's predecessor lies outside the range but still counts
	require.Len(t, issues, 1)
	assert.Equal(t, trip.IssueLargeOdometerGap, issues[0].IssueType)
	assert.Equal(t, int64(4), issues[0].TripID)
}

func TestStreamChainIssues_StopsOnYieldError(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.Import(brokenChain())

	stop := errors.New("enough")
	seen := 0
	err := svc.StreamChainIssues(ctx, tc, 1, trip.ValidateOptions{}, func(trip.ChainIssue) error {
		seen++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, seen)
}

func TestValidateChain_WritesKeepEveryPairContinuous(t *testing.T) {
	svc, _, _ := newTestService(t)

	// A mix of accepted and rejected writes in arbitrary order
	reqs := []*trip.CreateTripRequest{
		tripReq(1, 5, 400, 450),
		tripReq(1, 1, 0, 100),
		refuelReq(1, 3, 200, 300, 20),
		tripReq(1, 2, 150, 250),
		tripReq(1, 4, 290, 420),
		tripReq(1, 2, 100, 180),
		refuelReq(1, 6, 450, 700, 25),
		tripReq(1, 7, 650, 800),
	}
	for _, r := range reqs {
		_, _ = svc.InsertTrip(ctx, tc, r)
	}

	chain, err := svc.ListChain(ctx, tc, 1)
	require.NoError(t, err)
	for i := 1; i < len(chain); i++ {
		assert.GreaterOrEqual(t, chain[i].StartKm, chain[i-1].EndKm)
	}

	issues, err := svc.ValidateChain(ctx, tc, 1, trip.ValidateOptions{})
	require.NoError(t, err)
	for _, i := range issues {
		assert.NotEqual(t, trip.IssueOdometerRegression, i.IssueType)
		assert.NotEqual(t, trip.IssueNegativeDistance, i.IssueType)
	}
}

func TestValidateFleet(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.Import([]trip.Trip{
		stored(1, 1, 1, 0, 100),
		stored(2, 1, 2, 100, 200),
		stored(3, 2, 1, 0, 100),
		stored(4, 2, 2, 50, 200),
		stored(5, 3, 1, 0, 100),
	})

	results, err := svc.ValidateFleet(ctx, tc, nil, false)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, int64(1), results[0].VehicleID)
	assert.Equal(t, trip.IssueNone, results[0].Issues[0].IssueType)

	assert.Equal(t, int64(2), results[1].VehicleID)
	require.Len(t, results[1].Issues, 1)
	assert.Equal(t, trip.IssueOdometerRegression, results[1].Issues[0].IssueType)

	assert.Empty(t, results[2].Error)

	results, err = svc.ValidateFleet(ctx, tc, []int64{2, 2}, true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Issues[0].Fixed)
	assert.Equal(t, 100.0, find(t, repo, 4).StartKm)
}
