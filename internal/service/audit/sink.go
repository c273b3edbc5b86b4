// internal/service/audit/sink.go
package audit

import (
	"context"
	"errors"
	"sync"

	"mileage-service/internal/domain/audit"

	"go.uber.org/zap"
)

// LogSink writes entries to the structured log.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Record(ctx context.Context, e *audit.Entry) error {
	fields := []zap.Field{
		zap.String("audit_id", e.ID),
		zap.String("operation", string(e.Operation)),
		zap.Int64("tenant_id", e.TenantID),
		zap.Int64("actor_id", e.ActorID),
		zap.String("classification", e.Classification),
		zap.Bool("flagged", e.Flagged),
	}
	if e.TripID != nil {
		fields = append(fields, zap.Int64("trip_id", *e.TripID))
	}
	if e.VehicleID != nil {
		fields = append(fields, zap.Int64("vehicle_id", *e.VehicleID))
	}
	if len(e.Warnings) > 0 {
		fields = append(fields, zap.Strings("warnings", e.Warnings))
	}

	if e.Flagged {
		s.logger.Warn(e.Message, fields...)
	} else {
		s.logger.Info(e.Message, fields...)
	}
	return nil
}

// MultiSink fans an entry out to every sink and joins their errors.
type MultiSink []audit.Sink

func (m MultiSink) Record(ctx context.Context, e *audit.Entry) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MemorySink keeps entries in memory. Used by the CLI and tests.
type MemorySink struct {
	mu      sync.Mutex
	entries []*audit.Entry
	Err     error
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Record(ctx context.Context, e *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.entries = append(s.entries, e)
	return nil
}

func (s *MemorySink) Entries() []*audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*audit.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Last returns the most recent entry, or nil.
func (s *MemorySink) Last() *audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return nil
	}
	return s.entries[len(s.entries)-1]
}

func (s *MemorySink) ListByTrip(ctx context.Context, tenantID, tripID int64, limit int) ([]audit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []audit.Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if e.TenantID != tenantID || e.TripID == nil || *e.TripID != tripID {
			continue
		}
		out = append(out, *e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
