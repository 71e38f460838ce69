package repository

import "context"

// Repositories holds all repository instances for one storage driver.
type Repositories struct {
	Users        UserRepository
	UserQuery    UserQuerier
	Products     ProductRepository
	ProductQuery ProductQuerier

	// Database is nil for the in-memory driver.
	Database DatabaseHealth
}

// DatabaseHealth is an interface for database health checks.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error
}

// Close releases the underlying database, if any.
func (r *Repositories) Close() error {
	if r == nil || r.Database == nil {
		return nil
	}
	return r.Database.Close()
}
