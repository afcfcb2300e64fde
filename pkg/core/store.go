package core

import (
	"context"
)

// Store defines the persistence layer for jobs.
//
// Update and Delete are guarded: they succeed only when the stored version
// equals expectedVersion, and the check happens in the same atomic unit as
// the write.
type Store interface {
	// Migrate brings the database schema up to date.
	Migrate(ctx context.Context) error

	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, jobID string) (*Job, error)
	List(ctx context.Context, filter JobFilter) ([]*Job, error)

	// Update applies mutation and bumps the version to expectedVersion+1.
	Update(ctx context.Context, jobID string, expectedVersion int64, mutation Mutation) (*Job, error)
	Delete(ctx context.Context, jobID string, expectedVersion int64) error
}
