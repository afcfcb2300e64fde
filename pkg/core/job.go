package core

import (
	"time"
)

// JobStatus represents the current state of a job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled" // Terminated before completion
)

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Job is a mutable job record. Version is the record revision number used for
// optimistic concurrency: it starts at 0 and is bumped by exactly one on every
// successful guarded update.
type Job struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Type      string    `gorm:"index;size:255;not null" json:"type"`
	Title     string    `gorm:"size:255" json:"title"`
	Queue     string    `gorm:"index;size:255;default:'default'" json:"queue"`
	Priority  int       `gorm:"index;default:0" json:"priority"`
	Status    JobStatus `gorm:"index;size:20;default:'pending'" json:"status"`
	Args      []byte    `gorm:"type:bytes" json:"args,omitempty"`
	Result    []byte    `gorm:"type:bytes" json:"result,omitempty"`
	Logs      string    `gorm:"type:text" json:"logs,omitempty"`
	LastError string    `gorm:"type:text" json:"last_error,omitempty"`
	Version   int64     `gorm:"not null;default:0" json:"version"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Clone returns a deep copy of the job so mutations never alias stored data.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	if j.Args != nil {
		c.Args = append([]byte(nil), j.Args...)
	}
	if j.Result != nil {
		c.Result = append([]byte(nil), j.Result...)
	}
	return &c
}

// Mutation describes the changes an update applies to a job. It receives a
// copy of the stored record; changes to ID, Version and CreatedAt are ignored.
// Returning an error aborts the update without side effects.
type Mutation func(job *Job) error

// JobFilter narrows List results.
type JobFilter struct {
	Status JobStatus
	Queue  string
	Limit  int
}
