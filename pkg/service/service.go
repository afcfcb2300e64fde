package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jdziat/versioned-jobs/pkg/core"
	"github.com/jdziat/versioned-jobs/pkg/retry"
	"github.com/jdziat/versioned-jobs/pkg/security"
)

// Service manages job records on top of a store.
type Service struct {
	store  core.Store
	logger *slog.Logger
	retry  retry.Config
	mu     sync.RWMutex

	// Hooks
	onUpdate   []func(context.Context, *core.Job)
	onConflict []func(context.Context, *core.ConcurrentModificationError)

	// Event stream
	eventSubs []chan core.Event
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRetryConfig sets the backoff UpdateLatest uses.
func WithRetryConfig(cfg retry.Config) Option {
	return func(s *Service) {
		s.retry = cfg
	}
}

// New creates a new Service with the given store.
func New(store core.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		retry:  retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying store.
func (s *Service) Store() core.Store {
	return s.store
}

// Create validates and stores a new job at version 0.
func (s *Service) Create(ctx context.Context, job *core.Job) (*core.Job, error) {
	if err := security.ValidateJob(job); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, job); err != nil {
		return nil, err
	}

	s.logger.Debug("job created", "job_id", job.ID, "type", job.Type)
	s.Emit(&core.JobCreated{Job: job.Clone(), Timestamp: time.Now()})
	return job, nil
}

// Get returns a job by ID, or core.ErrNotFound.
func (s *Service) Get(ctx context.Context, jobID string) (*core.Job, error) {
	return s.store.Get(ctx, jobID)
}

// List returns jobs matching filter.
func (s *Service) List(ctx context.Context, filter core.JobFilter) ([]*core.Job, error) {
	if filter.Status != "" {
		if err := security.ValidateStatus(filter.Status); err != nil {
			return nil, err
		}
	}
	return s.store.List(ctx, filter)
}

// Update applies mutation if the job is still at expectedVersion.
// Conflicts and missing jobs are returned to the caller unchanged.
func (s *Service) Update(ctx context.Context, jobID string, expectedVersion int64, mutation core.Mutation) (*core.Job, error) {
	job, err := s.store.Update(ctx, jobID, expectedVersion, mutation)
	if err != nil {
		s.observeFailure(ctx, "update", jobID, expectedVersion, err)
		return nil, err
	}

	s.logger.Debug("job updated", "job_id", jobID, "version", job.Version)
	s.Emit(&core.JobUpdated{Job: job.Clone(), PreviousVersion: expectedVersion, Timestamp: time.Now()})
	s.callUpdateHooks(ctx, job)
	return job, nil
}

// UpdateLatest reloads the job and reapplies mutation until it wins a version
// race or the retry budget runs out. Use it only for mutations that are
// correct against whatever the current record is.
func (s *Service) UpdateLatest(ctx context.Context, jobID string, mutation core.Mutation) (*core.Job, error) {
	return retry.UpdateWithRetry(ctx, s, jobID, mutation, s.retry)
}

// Delete removes the job if it is still at expectedVersion.
func (s *Service) Delete(ctx context.Context, jobID string, expectedVersion int64) error {
	if err := s.store.Delete(ctx, jobID, expectedVersion); err != nil {
		s.observeFailure(ctx, "delete", jobID, expectedVersion, err)
		return err
	}

	s.logger.Debug("job deleted", "job_id", jobID, "version", expectedVersion)
	s.Emit(&core.JobDeleted{JobID: jobID, Version: expectedVersion, Timestamp: time.Now()})
	return nil
}

func (s *Service) observeFailure(ctx context.Context, op, jobID string, expectedVersion int64, err error) {
	var cm *core.ConcurrentModificationError
	switch {
	case errors.As(err, &cm):
		s.logger.Info("version conflict",
			"op", op,
			"job_id", jobID,
			"expected_version", cm.Expected,
			"stored_version", cm.Actual,
		)
		s.Emit(&core.UpdateConflict{
			JobID:     jobID,
			Expected:  cm.Expected,
			Actual:    cm.Actual,
			Timestamp: time.Now(),
		})
		s.callConflictHooks(ctx, cm)
	case core.IsNotFound(err):
		s.logger.Debug("job not found", "op", op, "job_id", jobID)
	default:
		s.logger.Warn("job write failed",
			"op", op,
			"job_id", jobID,
			"expected_version", expectedVersion,
			"error", err,
		)
	}
}
