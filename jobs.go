// Package jobs stores job records whose updates are guarded by a version
// number.
//
// This is the main package users should import. It re-exports the public
// types from the pkg/ packages for a clean API surface.
//
// Basic usage:
//
//	db, _ := gorm.Open(sqlite.Open("jobs.db"), &gorm.Config{})
//	store, _ := jobs.NewGormStorageWithPool(db)
//	store.Migrate(ctx)
//	svc := jobs.NewService(store)
//
//	job, _ := svc.Create(ctx, &jobs.Job{Type: "report.build"})
//
//	// Save only if nobody else saved since we read version 0.
//	job, err := svc.Update(ctx, job.ID, job.Version, func(j *jobs.Job) error {
//	    j.Status = jobs.StatusRunning
//	    return nil
//	})
//	if jobs.IsConcurrentModification(err) {
//	    // reload and decide again
//	}
package jobs

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	"github.com/jdziat/versioned-jobs/pkg/core"
	"github.com/jdziat/versioned-jobs/pkg/retry"
	"github.com/jdziat/versioned-jobs/pkg/security"
	"github.com/jdziat/versioned-jobs/pkg/service"
	"github.com/jdziat/versioned-jobs/pkg/storage"
)

type (
	// Job is a persisted job record.
	Job = core.Job

	// JobStatus represents the current state of a job.
	JobStatus = core.JobStatus

	// JobFilter narrows List results.
	JobFilter = core.JobFilter

	// Mutation changes a job inside a guarded update.
	Mutation = core.Mutation

	// Store defines the persistence layer for jobs.
	Store = core.Store

	// ConcurrentModificationError reports a stale expected version.
	ConcurrentModificationError = core.ConcurrentModificationError

	// Event is the interface for all service events.
	Event = core.Event

	// JobCreated is emitted when a job is stored.
	JobCreated = core.JobCreated

	// JobUpdated is emitted after a guarded update succeeds.
	JobUpdated = core.JobUpdated

	// JobDeleted is emitted after a guarded delete succeeds.
	JobDeleted = core.JobDeleted

	// UpdateConflict is emitted when a guarded write is rejected.
	UpdateConflict = core.UpdateConflict

	// GormStorage implements Store using GORM.
	GormStorage = storage.GormStorage

	// PoolConfig holds database connection pool settings.
	PoolConfig = storage.PoolConfig

	// PoolOption configures the connection pool.
	PoolOption = storage.PoolOption

	// Service manages job records on top of a Store.
	Service = service.Service

	// ServiceOption configures a Service.
	ServiceOption = service.Option

	// RetryConfig controls UpdateWithRetry backoff.
	RetryConfig = retry.Config
)

// Status constants
const (
	StatusPending   = core.StatusPending
	StatusRunning   = core.StatusRunning
	StatusCompleted = core.StatusCompleted
	StatusFailed    = core.StatusFailed
	StatusCancelled = core.StatusCancelled
)

// Security limits
const (
	MaxJobTypeNameLength  = security.MaxJobTypeNameLength
	MaxQueueNameLength    = security.MaxQueueNameLength
	MaxTitleLength        = security.MaxTitleLength
	MaxJobArgsSize        = security.MaxJobArgsSize
	MaxErrorMessageLength = security.MaxErrorMessageLength
	MaxLogsLength         = security.MaxLogsLength
)

// Error variables
var (
	ErrNotFound               = core.ErrNotFound
	ErrConcurrentModification = core.ErrConcurrentModification
	ErrTooMuchContention      = retry.ErrTooMuchContention

	ErrInvalidJobTypeName = core.ErrInvalidJobTypeName
	ErrJobTypeNameTooLong = core.ErrJobTypeNameTooLong
	ErrInvalidQueueName   = core.ErrInvalidQueueName
	ErrQueueNameTooLong   = core.ErrQueueNameTooLong
	ErrTitleTooLong       = core.ErrTitleTooLong
	ErrJobArgsTooLarge    = core.ErrJobArgsTooLarge
	ErrInvalidStatus      = core.ErrInvalidStatus
	ErrInvalidVersion     = core.ErrInvalidVersion
)

// NewGormStorage creates a new GORM-backed storage.
func NewGormStorage(db *gorm.DB) *GormStorage {
	return storage.NewGormStorage(db)
}

// NewGormStorageWithPool creates GORM-backed storage and configures its
// connection pool. SQLite databases are limited to a single connection.
func NewGormStorageWithPool(db *gorm.DB, opts ...PoolOption) (*GormStorage, error) {
	return storage.NewGormStorageWithPool(db, opts...)
}

// NewService creates a Service on top of store.
func NewService(store Store, opts ...ServiceOption) *Service {
	return service.New(store, opts...)
}

// WithLogger sets the Service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return service.WithLogger(l)
}

// WithRetryConfig sets the backoff Service.UpdateLatest uses.
func WithRetryConfig(cfg RetryConfig) ServiceOption {
	return service.WithRetryConfig(cfg)
}

// DefaultRetryConfig returns the default UpdateWithRetry backoff.
func DefaultRetryConfig() RetryConfig {
	return retry.DefaultConfig()
}

// UpdateWithRetry reloads the job and reapplies mutation until it wins a
// version race or cfg.MaxAttempts is exhausted.
func UpdateWithRetry(ctx context.Context, store Store, jobID string, mutation Mutation, cfg RetryConfig) (*Job, error) {
	return retry.UpdateWithRetry(ctx, store, jobID, mutation, cfg)
}

// IsConcurrentModification reports whether err signals a version conflict.
func IsConcurrentModification(err error) bool {
	return core.IsConcurrentModification(err)
}

// IsNotFound reports whether err signals a missing job.
func IsNotFound(err error) bool {
	return core.IsNotFound(err)
}

// ValidateJob checks a job against the security limits.
func ValidateJob(job *Job) error {
	return security.ValidateJob(job)
}
