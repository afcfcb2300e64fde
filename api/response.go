package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jdziat/versioned-jobs/pkg/core"
)

// Error codes returned in the "code" field of error bodies.
const (
	ErrCodeInvalidPayload  = "invalid_payload"
	ErrCodeValidation      = "validation_error"
	ErrCodeNotFound        = "not_found"
	ErrCodeVersionConflict = "version_conflict"
	ErrCodeVersionRequired = "version_required"
	ErrCodeInternal        = "internal_server_error"
)

// ErrorResponse is the body of every non-2xx response. Details carries the
// current record on a version conflict.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *handler) respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any, devErr error) {
	if status >= http.StatusInternalServerError {
		h.logger.Error(message, "method", r.Method, "path", r.URL.Path, "status", status, "error", devErr)
	}
	respondJSON(w, status, ErrorResponse{Code: code, Message: message, Details: details})
}

// isValidationError reports whether err came from input validation.
func isValidationError(err error) bool {
	for _, target := range []error{
		core.ErrInvalidJobTypeName,
		core.ErrJobTypeNameTooLong,
		core.ErrInvalidQueueName,
		core.ErrQueueNameTooLong,
		core.ErrTitleTooLong,
		core.ErrJobArgsTooLarge,
		core.ErrInvalidStatus,
		core.ErrInvalidVersion,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func fieldErrors(err error) []fieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	return out
}

// etag renders a version as a strong entity tag.
func etag(version int64) string {
	return strconv.Quote(strconv.FormatInt(version, 10))
}

// parseVersion accepts 3, "3" and W/"3".
func parseVersion(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "W/")
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %q", core.ErrInvalidVersion, raw)
	}
	return v, nil
}
