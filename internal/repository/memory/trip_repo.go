// internal/repository/memory/trip_repo.go
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"mileage-service/internal/domain/trip"
	xerrors "mileage-service/internal/pkg/errors"
)

type state struct {
	trips  map[int64]*trip.Trip
	nextID int64
}

func (s *state) clone() *state {
	c := &state{trips: make(map[int64]*trip.Trip, len(s.trips)), nextID: s.nextID}
	for id, t := range s.trips {
		c.trips[id] = t.Clone()
	}
	return c
}

// TripRepository is an in-process Trip Store. A transaction works on a copy
// of the committed state and swaps it in on success; transactions are
// serialized by a single mutex.
type TripRepository struct {
	mu        *sync.Mutex
	committed *state
	tx        *state
}

func NewTripRepository() *TripRepository {
	return &TripRepository{
		mu:        &sync.Mutex{},
		committed: &state{trips: make(map[int64]*trip.Trip)},
	}
}

// Import loads trips as-is, keeping their ids. Trips with a zero id get a new one.
func (r *TripRepository) Import(trips []trip.Trip) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range trips {
		t := trips[i].Clone()
		if t.ID == 0 {
			r.committed.nextID++
			t.ID = r.committed.nextID
		} else if t.ID > r.committed.nextID {
			r.committed.nextID = t.ID
		}
		r.committed.trips[t.ID] = t
	}
}

func (r *TripRepository) WithinTx(ctx context.Context, fn func(tx trip.Repository) error) error {
	if r.tx != nil {
		return fn(r)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := r.committed.clone()
	if err := fn(&TripRepository{mu: r.mu, committed: r.committed, tx: work}); err != nil {
		return err
	}

	r.committed.trips = work.trips
	r.committed.nextID = work.nextID
	return nil
}

// LockChain is a no-op: transactions are already serialized.
func (r *TripRepository) LockChain(ctx context.Context, tenantID, vehicleID int64) error {
	return nil
}

func (r *TripRepository) view(fn func(s *state) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r.committed)
}

func (r *TripRepository) FindByID(ctx context.Context, tenantID, id int64) (*trip.Trip, error) {
	var out *trip.Trip
	err := r.view(func(s *state) error {
		t, ok := s.trips[id]
		if !ok || t.TenantID != tenantID {
			return xerrors.ErrNotFound
		}
		out = t.Clone()
		return nil
	})
	return out, err
}

func (r *TripRepository) ListActive(ctx context.Context, tenantID, vehicleID int64) ([]trip.Trip, error) {
	var out []trip.Trip
	err := r.view(func(s *state) error {
		for _, t := range s.trips {
			if t.TenantID == tenantID && t.VehicleID == vehicleID && t.IsActive() {
				out = append(out, *t.Clone())
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.StartDate.Equal(b.StartDate) {
			return a.StartDate.Before(b.StartDate)
		}
		if !a.EndDate.Equal(b.EndDate) {
			return a.EndDate.Before(b.EndDate)
		}
		return a.ID < b.ID
	})
	return out, err
}

func (r *TripRepository) ListVehicleIDs(ctx context.Context, tenantID int64) ([]int64, error) {
	var ids []int64
	err := r.view(func(s *state) error {
		seen := make(map[int64]bool)
		for _, t := range s.trips {
			if t.TenantID == tenantID && t.IsActive() && !seen[t.VehicleID] {
				seen[t.VehicleID] = true
				ids = append(ids, t.VehicleID)
			}
		}
		return nil
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, err
}

func (r *TripRepository) Create(ctx context.Context, t *trip.Trip) error {
	return r.view(func(s *state) error {
		s.nextID++
		now := time.Now().UTC()
		t.ID = s.nextID
		t.CreatedAt = now
		t.UpdatedAt = now
		s.trips[t.ID] = t.Clone()
		return nil
	})
}

func (r *TripRepository) Update(ctx context.Context, t *trip.Trip) error {
	return r.mutate(t.TenantID, t.ID, func(stored *trip.Trip) error {
		t.UpdatedAt = time.Now().UTC()
		cp := t.Clone()
		cp.CreatedAt = stored.CreatedAt
		cp.Deletion = stored.Deletion
		*stored = *cp
		return nil
	})
}

func (r *TripRepository) UpdateOdometer(ctx context.Context, tenantID, id int64, startKm, endKm float64) error {
	return r.mutate(tenantID, id, func(t *trip.Trip) error {
		t.StartKm = startKm
		t.EndKm = endKm
		t.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (r *TripRepository) UpdateCalculatedKmpl(ctx context.Context, tenantID, id int64, kmpl float64) error {
	return r.mutate(tenantID, id, func(t *trip.Trip) error {
		t.CalculatedKmpl = trip.Float(kmpl)
		t.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (r *TripRepository) Delete(ctx context.Context, tenantID, id int64) error {
	return r.view(func(s *state) error {
		t, ok := s.trips[id]
		if !ok || t.TenantID != tenantID {
			return xerrors.ErrNotFound
		}
		delete(s.trips, id)
		return nil
	})
}

func (r *TripRepository) SoftDelete(ctx context.Context, tenantID, id int64, d trip.SoftDeletion) error {
	return r.mutate(tenantID, id, func(t *trip.Trip) error {
		if !t.IsActive() {
			return xerrors.ErrNotFound
		}
		del := d
		t.Deletion = &del
		t.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (r *TripRepository) Restore(ctx context.Context, tenantID, id int64) error {
	return r.mutate(tenantID, id, func(t *trip.Trip) error {
		if t.IsActive() {
			return xerrors.ErrNotFound
		}
		t.Deletion = nil
		t.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (r *TripRepository) mutate(tenantID, id int64, fn func(t *trip.Trip) error) error {
	return r.view(func(s *state) error {
		t, ok := s.trips[id]
		if !ok || t.TenantID != tenantID {
			return xerrors.ErrNotFound
		}
		return fn(t)
	})
}
