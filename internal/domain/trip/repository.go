// internal/domain/trip/repository.go
package trip

import "context"

// Repository is the Trip Store. All reads and writes are scoped to a tenant.
type Repository interface {
	// WithinTx runs fn against a repository bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx Repository) error) error

	// LockChain serializes writers of one vehicle chain for the rest of the
	// transaction.
	LockChain(ctx context.Context, tenantID, vehicleID int64) error

	// Reads
	FindByID(ctx context.Context, tenantID, id int64) (*Trip, error)
	ListActive(ctx context.Context, tenantID, vehicleID int64) ([]Trip, error)
	ListVehicleIDs(ctx context.Context, tenantID int64) ([]int64, error)

	// Writes
	Create(ctx context.Context, t *Trip) error
	Update(ctx context.Context, t *Trip) error
	UpdateOdometer(ctx context.Context, tenantID, id int64, startKm, endKm float64) error
	UpdateCalculatedKmpl(ctx context.Context, tenantID, id int64, kmpl float64) error
	Delete(ctx context.Context, tenantID, id int64) error
	SoftDelete(ctx context.Context, tenantID, id int64, d SoftDeletion) error
	Restore(ctx context.Context, tenantID, id int64) error
}
