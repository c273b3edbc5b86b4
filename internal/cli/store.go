package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mileage-service/internal/db"
	"mileage-service/internal/domain/audit"
	"mileage-service/internal/domain/trip"
	"mileage-service/internal/pkg/lock"
	"mileage-service/internal/repository/memory"
	"mileage-service/internal/repository/postgres"
	auditsvc "mileage-service/internal/service/audit"
	"mileage-service/internal/service/mileage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Fixture is the on-disk form of a set of trips. Every trip is loaded into
// the --tenant tenant.
type Fixture struct {
	Trips []FixtureTrip `yaml:"trips" json:"trips"`
}

type FixtureTrip struct {
	ID             int64     `yaml:"id" json:"id"`
	VehicleID      int64     `yaml:"vehicle_id" json:"vehicle_id"`
	DriverID       *int64    `yaml:"driver_id" json:"driver_id,omitempty"`
	StartDate      time.Time `yaml:"trip_start_date" json:"trip_start_date"`
	EndDate        time.Time `yaml:"trip_end_date" json:"trip_end_date"`
	StartKm        float64   `yaml:"start_km" json:"start_km"`
	EndKm          float64   `yaml:"end_km" json:"end_km"`
	RefuelingDone  bool      `yaml:"refueling_done" json:"refueling_done"`
	FuelQuantity   *float64  `yaml:"fuel_quantity" json:"fuel_quantity,omitempty"`
	CalculatedKmpl *float64  `yaml:"calculated_kmpl" json:"calculated_kmpl,omitempty"`
	Purpose        string    `yaml:"purpose" json:"purpose,omitempty"`
	Deleted        bool      `yaml:"deleted" json:"deleted,omitempty"`
	DeletionReason string    `yaml:"deletion_reason" json:"deletion_reason,omitempty"`
}

func (f FixtureTrip) toTrip(tenantID int64) (trip.Trip, error) {
	t := trip.Trip{
		ID:             f.ID,
		TenantID:       tenantID,
		VehicleID:      f.VehicleID,
		DriverID:       f.DriverID,
		StartDate:      f.StartDate,
		EndDate:        f.EndDate,
		StartKm:        f.StartKm,
		EndKm:          f.EndKm,
		RefuelingDone:  f.RefuelingDone,
		FuelQuantity:   f.FuelQuantity,
		CalculatedKmpl: f.CalculatedKmpl,
		Purpose:        f.Purpose,
		CreatedAt:      f.StartDate,
		UpdatedAt:      f.EndDate,
	}
	if f.Deleted {
		t.Deletion = &trip.SoftDeletion{At: f.EndDate, Reason: f.DeletionReason}
	}
	if err := t.CheckFields(); err != nil {
		return trip.Trip{}, fmt.Errorf("trip %d: %w", f.ID, err)
	}
	return t, nil
}

// LoadFixture reads a .json file with encoding/json and anything else as YAML.
func LoadFixture(path string, tenantID int64) ([]trip.Trip, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var fx Fixture
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(raw, &fx)
	} else {
		err = yaml.Unmarshal(raw, &fx)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	trips := make([]trip.Trip, 0, len(fx.Trips))
	seen := make(map[int64]bool, len(fx.Trips))
	for _, ft := range fx.Trips {
		if ft.ID != 0 && seen[ft.ID] {
			return nil, fmt.Errorf("duplicate trip id %d", ft.ID)
		}
		seen[ft.ID] = true

		t, err := ft.toTrip(tenantID)
		if err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	return trips, nil
}

// engine is a mileage service bound to the store chosen on the command line.
type engine struct {
	svc   *mileage.Service
	tc    trip.TenantContext
	out   *OutputFormatter
	close func()
}

func openEngine(cmd *cobra.Command, opts *RootOptions) (*engine, error) {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	logger := newLogger(cmd, opts.Verbose)

	var (
		repo    trip.Repository
		sink    audit.Sink = auditsvc.NewLogSink(logger)
		closeFn            = func() { _ = logger.Sync() }
	)

	switch {
	case opts.DSN != "" && opts.File != "":
		return nil, out.Fail("invalid store", NewExitError(ExitCommandError, "--dsn and --file are mutually exclusive"))

	case opts.DSN != "":
		pool, err := db.ConnectDB(commandContext(cmd), db.PostgresConfig{URL: opts.DSN, MaxConns: 4})
		if err != nil {
			return nil, out.Fail("connect", WrapExitError(ExitCommandError, "failed to connect to PostgreSQL", err))
		}
		dbWrapper := postgres.NewDB(pool)
		repo = postgres.NewTripRepository(dbWrapper)
		sink = auditsvc.MultiSink{postgres.NewAuditLogRepository(dbWrapper), sink}
		closeFn = func() {
			pool.Close()
			_ = logger.Sync()
		}

	case opts.File != "":
		trips, err := LoadFixture(opts.File, opts.Tenant)
		if err != nil {
			return nil, out.Fail("fixture", WrapExitError(ExitCommandError, "failed to load fixture", err))
		}
		mem := memory.NewTripRepository()
		mem.Import(trips)
		repo = mem
		logger.Debug("fixture loaded", zap.String("file", opts.File), zap.Int("trips", len(trips)))

	default:
		return nil, out.Fail("invalid store", NewExitError(ExitCommandError, "one of --dsn or --file is required"))
	}

	return &engine{
		svc:   mileage.NewService(repo, lock.NewLocalLocker(), sink, nil, logger),
		tc:    trip.TenantContext{TenantID: opts.Tenant, ActorID: opts.Actor},
		out:   out,
		close: closeFn,
	}, nil
}

// newLogger logs to stderr so that JSON on stdout stays parseable.
func newLogger(cmd *cobra.Command, verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(cmd.ErrOrStderr()),
		level,
	)
	return zap.New(core)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
