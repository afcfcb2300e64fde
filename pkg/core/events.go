package core

import "time"

// Event is the interface for all job events.
type Event interface {
	eventMarker()
}

// JobCreated is emitted when a job record is created.
type JobCreated struct {
	Job       *Job
	Timestamp time.Time
}

func (*JobCreated) eventMarker() {}

// JobUpdated is emitted after a guarded update commits.
type JobUpdated struct {
	Job             *Job
	PreviousVersion int64
	Timestamp       time.Time
}

func (*JobUpdated) eventMarker() {}

// JobDeleted is emitted after a guarded delete commits.
type JobDeleted struct {
	JobID     string
	Version   int64
	Timestamp time.Time
}

func (*JobDeleted) eventMarker() {}

// UpdateConflict is emitted when a writer loses a version race.
type UpdateConflict struct {
	JobID     string
	Expected  int64
	Actual    int64
	Timestamp time.Time
}

func (*UpdateConflict) eventMarker() {}
