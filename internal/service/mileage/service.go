// internal/service/mileage/service.go
package mileage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"mileage-service/internal/domain/audit"
	"mileage-service/internal/domain/trip"
	xerrors "mileage-service/internal/pkg/errors"
	"mileage-service/internal/pkg/lock"
	"mileage-service/internal/pkg/metrics"

	"go.uber.org/zap"
)

// Service is the mileage chain integrity engine. Every write runs under the
// vehicle chain lock inside one store transaction.
type Service struct {
	repo    trip.Repository
	locker  lock.Locker
	sink    audit.Sink
	metrics *metrics.Metrics
	logger  *zap.Logger

	lockTimeout  time.Duration
	fleetWorkers int
}

type Option func(*Service)

// WithLockTimeout bounds how long a write waits for its chain lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Service) { s.lockTimeout = d }
}

// WithFleetWorkers sets how many vehicles a fleet audit scans at once.
func WithFleetWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.fleetWorkers = n
		}
	}
}

func NewService(
	repo trip.Repository,
	locker lock.Locker,
	sink audit.Sink,
	m *metrics.Metrics,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		repo:         repo,
		locker:       locker,
		sink:         sink,
		metrics:      m,
		logger:       logger,
		lockTimeout:  10 * time.Second,
		fleetWorkers: 4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetTrip returns a trip, including a soft-deleted one.
func (s *Service) GetTrip(ctx context.Context, tc trip.TenantContext, id int64) (*trip.Trip, error) {
	return s.repo.FindByID(ctx, tc.TenantID, id)
}

// ListChain returns a vehicle's active trips in chain order.
func (s *Service) ListChain(ctx context.Context, tc trip.TenantContext, vehicleID int64) ([]trip.Trip, error) {
	return s.repo.ListActive(ctx, tc.TenantID, vehicleID)
}

// withChains locks the chains of the given vehicles and runs fn in one
// transaction holding them.
func (s *Service) withChains(ctx context.Context, tenantID int64, vehicleIDs []int64, fn func(tx trip.Repository) error) error {
	vehicleIDs = uniqueSorted(vehicleIDs)

	keys := make([]string, len(vehicleIDs))
	for i, id := range vehicleIDs {
		keys[i] = trip.ChainKey(tenantID, id)
	}

	lctx := ctx
	if s.lockTimeout > 0 {
		var cancel context.CancelFunc
		lctx, cancel = context.WithTimeout(ctx, s.lockTimeout)
		defer cancel()
	}

	start := time.Now()
	release, err := s.locker.Acquire(lctx, keys...)
	s.metrics.LockWaited(time.Since(start))
	if err != nil {
		return err
	}
	defer release()

	return s.repo.WithinTx(ctx, func(tx trip.Repository) error {
		for _, id := range vehicleIDs {
			if err := tx.LockChain(ctx, tenantID, id); err != nil {
				return err
			}
		}
		return fn(tx)
	})
}

var errMovedConcurrently = fmt.Errorf("%w: trip was moved to another vehicle concurrently", xerrors.ErrConflict)

// reloadLocked re-reads a trip inside withChains. The lock covers vehicleID
// only, so a trip that now belongs to another vehicle is a conflict.
func reloadLocked(ctx context.Context, tx trip.Repository, tenantID, id, vehicleID int64) (*trip.Trip, error) {
	t, err := tx.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if t.VehicleID != vehicleID {
		return nil, errMovedConcurrently
	}
	return t, nil
}

// record delivers an audit entry. Sink failures are logged and swallowed.
func (s *Service) record(ctx context.Context, e *audit.Entry) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Record(context.WithoutCancel(ctx), e); err != nil {
		s.metrics.SinkFailed()
		s.logger.Warn("audit sink unavailable, entry dropped",
			zap.String("audit_id", e.ID),
			zap.String("operation", string(e.Operation)),
			zap.Error(err),
		)
	}
}

// rejected fills a rejection into the entry and the metrics.
func (s *Service) rejected(e *audit.Entry, err error) {
	kind := "rejected"
	var cerr *trip.ContinuityError
	if errors.As(err, &cerr) {
		kind = string(cerr.Kind)
		e.Flagged = true
	}
	e.Classification = kind
	e.Message = err.Error()
	s.metrics.WriteRejected(kind)
}

func loadChain(ctx context.Context, repo trip.Repository, tenantID, vehicleID int64) (*trip.Chain, error) {
	trips, err := repo.ListActive(ctx, tenantID, vehicleID)
	if err != nil {
		return nil, err
	}
	return trip.NewChain(trips), nil
}

func uniqueSorted(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
