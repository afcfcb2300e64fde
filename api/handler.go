package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/jdziat/versioned-jobs/pkg/core"
	"github.com/jdziat/versioned-jobs/pkg/service"
)

// Handler creates an http.Handler serving the jobs API:
//
//	POST   /jobs        create a job at version 0
//	GET    /jobs        list jobs (?status=&queue=&limit=)
//	GET    /jobs/{id}   fetch a job; ETag carries its version
//	PATCH  /jobs/{id}   update; version in the body or If-Match
//	DELETE /jobs/{id}   delete; version in If-Match or ?version=
//
// Stale versions get 409 with the current record, missing jobs 404.
//
// Usage:
//
//	mux.Handle("/api/", http.StripPrefix("/api", api.Handler(svc)))
func Handler(svc *service.Service, opts ...Option) http.Handler {
	cfg := &config{
		logger:    slog.Default(),
		listLimit: 100,
	}
	for _, opt := range opts {
		opt.apply(cfg)
	}

	h := &handler{
		svc:       svc,
		validate:  validator.New(),
		logger:    cfg.logger,
		listLimit: cfg.listLimit,
	}

	r := mux.NewRouter()
	r.HandleFunc("/jobs", h.createJob).Methods(http.MethodPost)
	r.HandleFunc("/jobs", h.listJobs).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}", h.getJob).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}", h.updateJob).Methods(http.MethodPatch)
	r.HandleFunc("/jobs/{id}", h.deleteJob).Methods(http.MethodDelete)

	// HTTP/2 over cleartext for clients behind TLS-terminating proxies.
	var out http.Handler = h2c.NewHandler(r, &http2.Server{})

	if cfg.middleware != nil {
		return cfg.middleware(out)
	}
	return out
}

type handler struct {
	svc       *service.Service
	validate  *validator.Validate
	logger    *slog.Logger
	listLimit int
}

func (h *handler) createJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, ErrCodeInvalidPayload, "Invalid JSON body", nil, err)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "Validation failed", fieldErrors(err), err)
		return
	}

	job, err := h.svc.Create(r.Context(), req.job())
	if err != nil {
		h.writeServiceError(w, r, "", err)
		return
	}

	w.Header().Set("ETag", etag(job.Version))
	w.Header().Set("Location", "/jobs/"+job.ID)
	respondJSON(w, http.StatusCreated, toJobResponse(job))
}

func (h *handler) listJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.JobFilter{
		Status: core.JobStatus(q.Get("status")),
		Queue:  q.Get("queue"),
		Limit:  h.listLimit,
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "limit must be a positive integer", nil, err)
			return
		}
		filter.Limit = n
	}

	jobList, err := h.svc.List(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, "", err)
		return
	}

	resp := listJobsResponse{Jobs: make([]*jobResponse, 0, len(jobList))}
	for _, j := range jobList {
		resp.Jobs = append(resp.Jobs, toJobResponse(j))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *handler) getJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	job, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, id, err)
		return
	}

	w.Header().Set("ETag", etag(job.Version))
	respondJSON(w, http.StatusOK, toJobResponse(job))
}

func (h *handler) updateJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req updateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, ErrCodeInvalidPayload, "Invalid JSON body", nil, err)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "Validation failed", fieldErrors(err), err)
		return
	}

	version, ok := h.expectedVersion(w, r, req.Version)
	if !ok {
		return
	}

	job, err := h.svc.Update(r.Context(), id, version, req.mutation())
	if err != nil {
		h.writeServiceError(w, r, id, err)
		return
	}

	w.Header().Set("ETag", etag(job.Version))
	respondJSON(w, http.StatusOK, toJobResponse(job))
}

func (h *handler) deleteJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var fromQuery *int64
	if raw := r.URL.Query().Get("version"); raw != "" {
		v, err := parseVersion(raw)
		if err != nil {
			h.respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "version must be a non-negative integer", nil, err)
			return
		}
		fromQuery = &v
	}

	version, ok := h.expectedVersion(w, r, fromQuery)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id, version); err != nil {
		h.writeServiceError(w, r, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// expectedVersion resolves the caller's version from the request and the
// If-Match header. When both are present they must agree.
func (h *handler) expectedVersion(w http.ResponseWriter, r *http.Request, fromRequest *int64) (int64, bool) {
	var fromHeader *int64
	if raw := r.Header.Get("If-Match"); raw != "" {
		v, err := parseVersion(raw)
		if err != nil {
			h.respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "If-Match must carry a job version", nil, err)
			return 0, false
		}
		fromHeader = &v
	}

	switch {
	case fromRequest != nil && fromHeader != nil && *fromRequest != *fromHeader:
		h.respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "If-Match and version disagree", nil, nil)
		return 0, false
	case fromRequest != nil:
		return *fromRequest, true
	case fromHeader != nil:
		return *fromHeader, true
	}

	h.respondError(w, r, http.StatusPreconditionRequired, ErrCodeVersionRequired,
		"The job version you last read is required", nil, nil)
	return 0, false
}

// writeServiceError maps service errors onto HTTP responses. A conflict
// includes the current record so the caller can reload and reapply.
func (h *handler) writeServiceError(w http.ResponseWriter, r *http.Request, id string, err error) {
	switch {
	case core.IsNotFound(err):
		h.respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Job not found", nil, err)
	case core.IsConcurrentModification(err):
		var details any
		if current, getErr := h.svc.Get(r.Context(), id); getErr == nil {
			w.Header().Set("ETag", etag(current.Version))
			details = toJobResponse(current)
		}
		h.respondError(w, r, http.StatusConflict, ErrCodeVersionConflict,
			"The job was modified by another writer; reload and retry", details, err)
	case isValidationError(err):
		h.respondError(w, r, http.StatusBadRequest, ErrCodeValidation, err.Error(), nil, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.respondError(w, r, http.StatusServiceUnavailable, ErrCodeInternal, "Request cancelled", nil, err)
	default:
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "An unexpected error occurred", nil, err)
	}
}
