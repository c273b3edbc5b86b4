// internal/domain/trip/chain.go
package trip

import (
	"sort"
	"time"
)

// Chain is an ordered index over one vehicle's active trips.
//
// Trips are kept sorted by (trip_start_date, trip_end_date, id). Refueling
// trips are additionally indexed on their own so anchor lookups are a binary
// search instead of a walk. Soft-deleted trips are never admitted.
type Chain struct {
	trips  []*Trip
	refuel []*Trip
	byID   map[int64]*Trip
}

func NewChain(trips []Trip) *Chain {
	c := &Chain{}
	for i := range trips {
		if !trips[i].IsActive() {
			continue
		}
		c.trips = append(c.trips, trips[i].Clone())
	}
	sort.SliceStable(c.trips, func(i, j int) bool { return less(c.trips[i], c.trips[j]) })
	c.reindex()
	return c
}

func less(a, b *Trip) bool {
	if !a.StartDate.Equal(b.StartDate) {
		return a.StartDate.Before(b.StartDate)
	}
	if !a.EndDate.Equal(b.EndDate) {
		return a.EndDate.Before(b.EndDate)
	}
	return a.ID < b.ID
}

func (c *Chain) reindex() {
	c.refuel = c.refuel[:0]
	c.byID = make(map[int64]*Trip, len(c.trips))
	for _, t := range c.trips {
		c.byID[t.ID] = t
		if t.RefuelingDone {
			c.refuel = append(c.refuel, t)
		}
	}
}

func insertAt(list []*Trip, i int, t *Trip) []*Trip {
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = t
	return list
}

// removeFrom drops t from a list sorted by less. t must be the listed copy.
func (c *Chain) removeFrom(list []*Trip, t *Trip) []*Trip {
	i := c.position(list, t)
	if i >= len(list) || list[i] != t {
		return list
	}
	return append(list[:i], list[i+1:]...)
}

func (c *Chain) Len() int { return len(c.trips) }

// Trips returns the chain in chronological order. Callers must not reorder it.
func (c *Chain) Trips() []*Trip { return c.trips }

// Get returns the trip with the given id, or nil.
func (c *Chain) Get(id int64) *Trip {
	return c.byID[id]
}

// position returns the index of the first trip ordered at or after t.
func (c *Chain) position(list []*Trip, t *Trip) int {
	return sort.Search(len(list), func(i int) bool { return !less(list[i], t) })
}

// Predecessor returns the latest trip in chain order that ended at or before
// start, ignoring excludeID. A trip ending at the instant start begins is
// adjacent, so its end_km still bounds the new start_km.
func (c *Chain) Predecessor(start time.Time, excludeID int64) *Trip {
	idx := sort.Search(len(c.trips), func(i int) bool { return !c.trips[i].StartDate.Before(start) })
	for i := idx - 1; i >= 0; i-- {
		t := c.trips[i]
		if t.ID == excludeID {
			continue
		}
		if !t.EndDate.After(start) {
			return t
		}
	}
	return nil
}

// Successor returns the earliest trip that starts at or after end, ignoring
// excludeID.
func (c *Chain) Successor(end time.Time, excludeID int64) *Trip {
	idx := sort.Search(len(c.trips), func(i int) bool { return !c.trips[i].StartDate.Before(end) })
	for i := idx; i < len(c.trips); i++ {
		if c.trips[i].ID != excludeID {
			return c.trips[i]
		}
	}
	return nil
}

// PrevRefueling returns the nearest refueling trip ordered before t.
func (c *Chain) PrevRefueling(t *Trip) *Trip {
	for i := c.position(c.refuel, t) - 1; i >= 0; i-- {
		if c.refuel[i].ID != t.ID {
			return c.refuel[i]
		}
	}
	return nil
}

// NextRefueling returns the nearest refueling trip ordered after t.
func (c *Chain) NextRefueling(t *Trip) *Trip {
	for i := c.position(c.refuel, t); i < len(c.refuel); i++ {
		r := c.refuel[i]
		if r.ID != t.ID && less(t, r) {
			return r
		}
	}
	return nil
}

// After returns the trips ordered after t.
func (c *Chain) After(t *Trip) []*Trip {
	i := c.position(c.trips, t)
	for i < len(c.trips) && !less(t, c.trips[i]) {
		i++
	}
	return c.trips[i:]
}

// Dependents returns the non-refueling trips after t that have no
// intervening refueling trip, i.e. the trips anchored on t.
func (c *Chain) Dependents(t *Trip) []*Trip {
	var deps []*Trip
	for _, next := range c.After(t) {
		if next.RefuelingDone {
			break
		}
		deps = append(deps, next)
	}
	return deps
}

// Upsert inserts or replaces a trip, keeping chain order. A soft-deleted
// trip is removed instead.
func (c *Chain) Upsert(t *Trip) {
	c.Remove(t.ID)
	if !t.IsActive() {
		return
	}
	cp := t.Clone()
	c.trips = insertAt(c.trips, c.position(c.trips, cp), cp)
	if cp.RefuelingDone {
		c.refuel = insertAt(c.refuel, c.position(c.refuel, cp), cp)
	}
	c.byID[cp.ID] = cp
}

func (c *Chain) Remove(id int64) {
	old, ok := c.byID[id]
	if !ok {
		return
	}
	c.trips = c.removeFrom(c.trips, old)
	if old.RefuelingDone {
		c.refuel = c.removeFrom(c.refuel, old)
	}
	delete(c.byID, id)
}
