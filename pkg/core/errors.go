package core

import (
	"errors"
	"fmt"
)

// Guard errors
var (
	ErrNotFound               = errors.New("jobs: job not found")
	ErrConcurrentModification = errors.New("jobs: job was modified concurrently")
)

// Validation errors
var (
	ErrInvalidJobTypeName = errors.New("jobs: invalid job type name (must be alphanumeric, start with letter)")
	ErrJobTypeNameTooLong = errors.New("jobs: job type name too long")
	ErrInvalidQueueName   = errors.New("jobs: invalid queue name")
	ErrQueueNameTooLong   = errors.New("jobs: queue name too long")
	ErrTitleTooLong       = errors.New("jobs: title too long")
	ErrJobArgsTooLarge    = errors.New("jobs: job arguments exceed size limit")
	ErrInvalidStatus      = errors.New("jobs: invalid job status")
	ErrInvalidVersion     = errors.New("jobs: version must be a non-negative integer")
)

// ConcurrentModificationError reports that the stored version of a job no
// longer matches the version the caller last read. Actual is -1 when the
// stored version could not be determined.
type ConcurrentModificationError struct {
	JobID    string
	Expected int64
	Actual   int64
}

func (e *ConcurrentModificationError) Error() string {
	if e.Actual < 0 {
		return fmt.Sprintf("jobs: job %s was modified concurrently (expected version %d)", e.JobID, e.Expected)
	}
	return fmt.Sprintf("jobs: job %s was modified concurrently (expected version %d, stored version %d)",
		e.JobID, e.Expected, e.Actual)
}

// Is makes errors.Is(err, ErrConcurrentModification) match.
func (e *ConcurrentModificationError) Is(target error) bool {
	return target == ErrConcurrentModification
}

// NewConcurrentModification builds a ConcurrentModificationError.
func NewConcurrentModification(jobID string, expected, actual int64) error {
	return &ConcurrentModificationError{JobID: jobID, Expected: expected, Actual: actual}
}

// IsConcurrentModification reports whether err signals a version conflict.
func IsConcurrentModification(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsNotFound reports whether err signals a missing job.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
