package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jdziat/versioned-jobs/pkg/core"
	"github.com/jdziat/versioned-jobs/pkg/security"
)

// defaultListLimit is used when a JobFilter carries no limit.
const defaultListLimit = 100

// GormStorage implements core.Store using GORM.
type GormStorage struct {
	db *gorm.DB
}

// NewGormStorage creates a new GORM-backed storage.
func NewGormStorage(db *gorm.DB) *GormStorage {
	return &GormStorage{db: db}
}

// DB returns the underlying GORM handle.
func (s *GormStorage) DB() *gorm.DB {
	return s.db
}

// IsSQLite reports whether the storage is backed by SQLite.
func (s *GormStorage) IsSQLite() bool {
	return s.db != nil && s.db.Dialector != nil && s.db.Dialector.Name() == "sqlite"
}

// Create inserts a new job. The ID is generated when empty, queue and status
// fall back to their defaults, and the version always starts at 0.
func (s *GormStorage) Create(ctx context.Context, job *core.Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = core.StatusPending
	}
	if job.Queue == "" {
		job.Queue = "default"
	}
	job.Version = 0
	job.Logs = security.SanitizeLogs(job.Logs)
	job.LastError = security.SanitizeErrorMessage(job.LastError)

	if err := security.ValidateJob(job); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(job).Error
}

// Get retrieves a job by ID.
func (s *GormStorage) Get(ctx context.Context, jobID string) (*core.Job, error) {
	var job core.Job
	err := s.db.WithContext(ctx).First(&job, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// List returns jobs matching the filter, oldest first.
func (s *GormStorage) List(ctx context.Context, filter core.JobFilter) ([]*core.Job, error) {
	q := s.db.WithContext(ctx).Model(&core.Job{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Queue != "" {
		q = q.Where("queue = ?", filter.Queue)
	}

	var jobList []*core.Job
	err := q.
		Order("created_at ASC, id ASC").
		Limit(security.ClampListLimit(filter.Limit, defaultListLimit)).
		Find(&jobList).Error
	return jobList, err
}

// Update applies mutation to the job and sets its version to
// expectedVersion+1, provided the stored version still equals
// expectedVersion. On mismatch nothing is written and a
// *core.ConcurrentModificationError is returned. The guard never retries.
func (s *GormStorage) Update(ctx context.Context, jobID string, expectedVersion int64, mutation core.Mutation) (*core.Job, error) {
	var updated *core.Job

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := loadForWrite(tx, jobID, expectedVersion)
		if err != nil {
			return err
		}

		next := current.Clone()
		if mutation != nil {
			if err := mutation(next); err != nil {
				return err
			}
		}

		// Identity and revision are owned by storage.
		next.ID = current.ID
		next.CreatedAt = current.CreatedAt
		next.Version = expectedVersion + 1
		next.UpdatedAt = time.Now()
		if next.Queue == "" {
			next.Queue = "default"
		}
		if next.Status == "" {
			next.Status = current.Status
		}
		next.Logs = security.SanitizeLogs(next.Logs)
		next.LastError = security.SanitizeErrorMessage(next.LastError)

		if err := security.ValidateJob(next); err != nil {
			return err
		}

		// The WHERE on version makes the write conditional even when the
		// isolation level lets another writer slip in after our read.
		result := tx.
			Model(&core.Job{}).
			Where("id = ? AND version = ?", jobID, expectedVersion).
			Updates(updateColumns(next))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return core.NewConcurrentModification(jobID, expectedVersion, -1)
		}

		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the job, provided the stored version still equals
// expectedVersion.
func (s *GormStorage) Delete(ctx context.Context, jobID string, expectedVersion int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadForWrite(tx, jobID, expectedVersion); err != nil {
			return err
		}

		result := tx.
			Where("id = ? AND version = ?", jobID, expectedVersion).
			Delete(&core.Job{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return core.NewConcurrentModification(jobID, expectedVersion, -1)
		}
		return nil
	})
}

// loadForWrite reads the job inside tx and checks its version.
func loadForWrite(tx *gorm.DB, jobID string, expectedVersion int64) (*core.Job, error) {
	var current core.Job
	err := tx.First(&current, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if current.Version != expectedVersion {
		return nil, core.NewConcurrentModification(jobID, expectedVersion, current.Version)
	}
	return &current, nil
}

// updateColumns lists every column a guarded update writes.
// id and created_at are never written.
func updateColumns(j *core.Job) map[string]any {
	return map[string]any{
		"type":       j.Type,
		"title":      j.Title,
		"queue":      j.Queue,
		"priority":   j.Priority,
		"status":     j.Status,
		"args":       j.Args,
		"result":     j.Result,
		"logs":       j.Logs,
		"last_error": j.LastError,
		"version":    j.Version,
		"updated_at": j.UpdatedAt,
	}
}
