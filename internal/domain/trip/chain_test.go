package trip

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func at(dayN, hour int) time.Time {
	return epoch.AddDate(0, 0, dayN).Add(time.Duration(hour) * time.Hour)
}

func mk(id int64, dayN int, startKm, endKm float64, refuel bool) Trip {
	return Trip{
		ID:            id,
		VehicleID:     1,
		StartDate:     at(dayN, 8),
		EndDate:       at(dayN, 18),
		StartKm:       startKm,
		EndKm:         endKm,
		RefuelingDone: refuel,
	}
}

func ids(trips []*Trip) []int64 {
	out := make([]int64, 0, len(trips))
	for _, t := range trips {
		out = append(out, t.ID)
	}
	return out
}

func TestNewChain_OrdersAndExcludesSoftDeleted(t *testing.T) {
	deleted := mk(9, 2, 100, 150, true)
	deleted.Deletion = &SoftDeletion{At: epoch, Reason: "anchor", By: 1}

	// Same dates tie-break on id
	twin := mk(7, 3, 200, 250, false)

	c := NewChain([]Trip{
		mk(4, 3, 200, 250, false),
		mk(1, 1, 0, 100, true),
		deleted,
		twin,
		mk(2, 5, 300, 400, true),
	})

	assert.Equal(t, 4, c.Len())
	assert.Equal(t, []int64{1, 4, 7, 2}, ids(c.Trips()))
	assert.Nil(t, c.Get(9))
	require.NotNil(t, c.Get(4))
}

func TestChain_PredecessorAndSuccessor(t *testing.T) {
	c := NewChain([]Trip{
		mk(1, 1, 0, 100, false),
		mk(2, 3, 100, 200, false),
		mk(3, 5, 200, 300, false),
	})

	tests := []struct {
		name     string
		start    time.Time
		exclude  int64
		expected int64
	}{
		{"before everything", at(0, 8), 0, 0},
		{"still running at start", at(1, 17), 0, 0},
		{"ending exactly at start is adjacent", at(1, 18), 0, 1},
		{"after first", at(2, 8), 0, 1},
		{"after second", at(4, 8), 0, 2},
		{"excluding self", at(5, 8), 0, 2},
		{"skips excluded", at(4, 8), 2, 1},
		{"after all", at(9, 8), 0, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := c.Predecessor(tt.start, tt.exclude)
			if tt.expected == 0 {
				assert.Nil(t, p)
				return
			}
			require.NotNil(t, p)
			assert.Equal(t, tt.expected, p.ID)
		})
	}

	s := c.Successor(at(1, 18), 0)
	require.NotNil(t, s)
	assert.Equal(t, int64(2), s.ID)

	s = c.Successor(at(1, 18), 2)
	require.NotNil(t, s)
	assert.Equal(t, int64(3), s.ID)

	// Starting at the very instant the written trip ends counts
	s = c.Successor(at(3, 8), 0)
	require.NotNil(t, s)
	assert.Equal(t, int64(2), s.ID)

	assert.Nil(t, c.Successor(at(5, 18), 0))
}

func TestChain_RefuelingAnchors(t *testing.T) {
	c := NewChain([]Trip{
		mk(1, 1, 0, 100, true),
		mk(2, 2, 100, 200, false),
		mk(3, 3, 200, 300, false),
		mk(4, 4, 300, 400, true),
		mk(5, 5, 400, 500, false),
	})

	first, second := c.Get(1), c.Get(4)

	assert.Nil(t, c.PrevRefueling(first))
	assert.Equal(t, int64(1), c.PrevRefueling(second).ID)
	assert.Equal(t, int64(1), c.PrevRefueling(c.Get(3)).ID)

	assert.Equal(t, int64(4), c.NextRefueling(first).ID)
	assert.Equal(t, int64(4), c.NextRefueling(c.Get(2)).ID)
	assert.Nil(t, c.NextRefueling(second))

	assert.Equal(t, []int64{2, 3}, ids(c.Dependents(first)))
	assert.Equal(t, []int64{5}, ids(c.Dependents(second)))
	assert.Equal(t, []int64{2, 3, 4, 5}, ids(c.After(first)))
	assert.Empty(t, c.After(c.Get(5)))
}

func TestChain_UpsertAndRemove(t *testing.T) {
	c := NewChain([]Trip{
		mk(1, 1, 0, 100, true),
		mk(2, 3, 100, 200, false),
	})

	inserted := mk(3, 2, 100, 150, true)
	c.Upsert(&inserted)
	assert.Equal(t, []int64{1, 3, 2}, ids(c.Trips()))
	assert.Equal(t, int64(3), c.NextRefueling(c.Get(1)).ID)

	// The chain keeps its own copy
	inserted.EndKm = 999
	assert.Equal(t, 150.0, c.Get(3).EndKm)

	moved := mk(3, 4, 200, 250, true)
	c.Upsert(&moved)
	assert.Equal(t, []int64{1, 2, 3}, ids(c.Trips()))

	moved.Deletion = &SoftDeletion{At: epoch}
	c.Upsert(&moved)
	assert.Equal(t, []int64{1, 2}, ids(c.Trips()))
	assert.Nil(t, c.NextRefueling(c.Get(1)))

	c.Remove(1)
	c.Remove(42)
	assert.Equal(t, []int64{2}, ids(c.Trips()))
	assert.Nil(t, c.Get(1))
}

func TestChain_IncrementalIndexMatchesRebuild(t *testing.T) {
	c := NewChain([]Trip{
		mk(1, 1, 0, 100, true),
		mk(2, 2, 100, 200, false),
		mk(3, 4, 300, 400, true),
	})

	ops := []Trip{
		mk(4, 3, 200, 300, true),
		mk(2, 6, 500, 600, true),  // moved and now refueling
		mk(3, 4, 300, 400, false), // no longer refueling
		mk(5, 5, 400, 500, true),
	}
	for i := range ops {
		c.Upsert(&ops[i])
	}
	c.Remove(1)

	want := NewChain([]Trip{ops[0], ops[1], ops[2], ops[3]})
	assert.Equal(t, ids(want.Trips()), ids(c.Trips()))
	assert.Equal(t, ids(want.refuel), ids(c.refuel))
	assert.Equal(t, []int64{4, 5, 2}, ids(c.refuel))
	assert.Len(t, c.byID, 4)

	assert.Equal(t, int64(5), c.NextRefueling(c.Get(3)).ID)
	assert.Equal(t, int64(4), c.PrevRefueling(c.Get(3)).ID)
	assert.Nil(t, c.Get(1))
}

func TestUpdateTripRequest_ClearsKmplWhenRefuelingDropped(t *testing.T) {
	tr := mk(1, 1, 0, 100, true)
	tr.CalculatedKmpl = Float(10)

	stillRefuel := true
	(&UpdateTripRequest{RefuelingDone: &stillRefuel}).ApplyTo(&tr)
	require.NotNil(t, tr.CalculatedKmpl)

	notRefuel := false
	(&UpdateTripRequest{RefuelingDone: &notRefuel}).ApplyTo(&tr)
	assert.False(t, tr.RefuelingDone)
	assert.Nil(t, tr.CalculatedKmpl)
}

func TestClassifyGap(t *testing.T) {
	tests := []struct {
		gap    float64
		class  GapClass
		review bool
	}{
		{-0.5, GapNegative, false},
		{0, GapPerfect, false},
		{0.1, GapAcceptable, false},
		{10, GapAcceptable, false},
		{10.01, GapModerate, true},
		{50, GapModerate, true},
		{50.5, GapLarge, true},
	}
	for _, tt := range tests {
		class := ClassifyGap(tt.gap)
		assert.Equal(t, tt.class, class, "gap %v", tt.gap)
		assert.Equal(t, tt.review, class.NeedsReview(), "gap %v", tt.gap)
	}
}

func TestDateRange_Contains(t *testing.T) {
	var open *DateRange
	assert.True(t, open.Contains(at(3, 0)))

	from, to := at(2, 0), at(4, 0)
	r := &DateRange{From: &from, To: &to}
	assert.False(t, r.Contains(at(1, 23)))
	assert.True(t, r.Contains(at(2, 0)))
	assert.True(t, r.Contains(at(4, 0)))
	assert.False(t, r.Contains(at(4, 1)))
}

func TestTrip_CloneIsDeep(t *testing.T) {
	orig := mk(1, 1, 0, 100, true)
	orig.FuelQuantity = Float(40)
	orig.Deletion = &SoftDeletion{Reason: "x"}

	c := orig.Clone()
	*c.FuelQuantity = 10
	c.Deletion.Reason = "y"

	assert.Equal(t, 40.0, *orig.FuelQuantity)
	assert.Equal(t, "x", orig.Deletion.Reason)
	assert.Equal(t, StateSoftDeleted, orig.State())
}

func TestContinuityError(t *testing.T) {
	err := &ContinuityError{
		Kind:              ViolationNegativeGap,
		TripID:            5,
		StartKm:           90,
		EndKm:             150,
		ConflictingTripID: 4,
		ConflictingKm:     100,
		Gap:               -10,
	}
	assert.Contains(t, err.Error(), "trip 4")

	ctx := err.Context()
	assert.Equal(t, int64(4), ctx["conflicting_trip_id"])
	assert.Equal(t, -10.0, ctx["gap_km"])
}

func TestParseDateRange(t *testing.T) {
	r, err := ParseDateRange("", "")
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = ParseDateRange("2024-05-02", "2024-05-04")
	require.NoError(t, err)
	assert.True(t, r.Contains(at(1, 0)))
	assert.True(t, r.Contains(at(3, 23)))
	assert.False(t, r.Contains(at(4, 0)))

	r, err = ParseDateRange("2024-05-02T12:00:00Z", "")
	require.NoError(t, err)
	assert.Nil(t, r.To)
	assert.False(t, r.Contains(at(1, 11)))

	_, err = ParseDateRange("yesterday", "")
	assert.Error(t, err)

	_, err = ParseDateRange("2024-05-04", "2024-05-02")
	assert.Error(t, err)
}
