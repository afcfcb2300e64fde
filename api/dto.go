package api

import (
	"encoding/json"
	"time"

	"github.com/jdziat/versioned-jobs/pkg/core"
)

type createJobRequest struct {
	Type     string          `json:"type" validate:"required,max=255"`
	Title    string          `json:"title" validate:"max=255"`
	Queue    string          `json:"queue" validate:"omitempty,max=255"`
	Priority int             `json:"priority"`
	Args     json.RawMessage `json:"args,omitempty"`
}

func (r *createJobRequest) job() *core.Job {
	job := &core.Job{
		Type:     r.Type,
		Title:    r.Title,
		Queue:    r.Queue,
		Priority: r.Priority,
	}
	if len(r.Args) > 0 {
		job.Args = []byte(r.Args)
	}
	return job
}

// updateJobRequest carries the fields a PATCH may change. Absent fields are
// left as stored. Version may instead arrive in an If-Match header.
type updateJobRequest struct {
	Version   *int64          `json:"version" validate:"omitempty,min=0"`
	Title     *string         `json:"title" validate:"omitempty,max=255"`
	Status    *core.JobStatus `json:"status" validate:"omitempty,oneof=pending running completed failed cancelled"`
	Priority  *int            `json:"priority"`
	Logs      *string         `json:"logs"`
	Result    *string         `json:"result"`
	LastError *string         `json:"last_error"`
}

func (r *updateJobRequest) mutation() core.Mutation {
	return func(j *core.Job) error {
		if r.Title != nil {
			j.Title = *r.Title
		}
		if r.Status != nil {
			j.Status = *r.Status
		}
		if r.Priority != nil {
			j.Priority = *r.Priority
		}
		if r.Logs != nil {
			j.Logs = *r.Logs
		}
		if r.Result != nil {
			j.Result = []byte(*r.Result)
		}
		if r.LastError != nil {
			j.LastError = *r.LastError
		}
		return nil
	}
}

type jobResponse struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Queue     string          `json:"queue"`
	Priority  int             `json:"priority"`
	Status    core.JobStatus  `json:"status"`
	Args      json.RawMessage `json:"args,omitempty"`
	Result    string          `json:"result,omitempty"`
	Logs      string          `json:"logs,omitempty"`
	LastError string          `json:"last_error,omitempty"`
	Version   int64           `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func toJobResponse(j *core.Job) *jobResponse {
	resp := &jobResponse{
		ID:        j.ID,
		Type:      j.Type,
		Title:     j.Title,
		Queue:     j.Queue,
		Priority:  j.Priority,
		Status:    j.Status,
		Result:    string(j.Result),
		Logs:      j.Logs,
		LastError: j.LastError,
		Version:   j.Version,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	if len(j.Args) > 0 && json.Valid(j.Args) {
		resp.Args = json.RawMessage(j.Args)
	}
	return resp
}

type listJobsResponse struct {
	Jobs []*jobResponse `json:"jobs"`
}

type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}
