// Package security provides validation, sanitization, and limits for job records.
package security

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jdziat/versioned-jobs/pkg/core"
)

// Security limits and configuration
const (
	// MaxJobTypeNameLength is the maximum length for job type names
	MaxJobTypeNameLength = 255

	// MaxQueueNameLength is the maximum length for queue names
	MaxQueueNameLength = 255

	// MaxTitleLength is the maximum length for job titles, in runes
	MaxTitleLength = 255

	// MaxJobArgsSize is the maximum size in bytes for job arguments (1MB)
	MaxJobArgsSize = 1 << 20

	// MaxErrorMessageLength is the maximum length for stored error messages
	MaxErrorMessageLength = 4096

	// MaxLogsLength is the maximum length for stored job logs (64K runes)
	MaxLogsLength = 64 << 10

	// MaxListLimit caps how many records a single List call returns
	MaxListLimit = 1000
)

// validName matches alphanumeric, hyphens, underscores, and dots
var validName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_\-\.]*$`)

// ValidateJobTypeName validates a job type name
func ValidateJobTypeName(name string) error {
	if name == "" {
		return core.ErrInvalidJobTypeName
	}
	if len(name) > MaxJobTypeNameLength {
		return core.ErrJobTypeNameTooLong
	}
	if !validName.MatchString(name) {
		return core.ErrInvalidJobTypeName
	}
	return nil
}

// ValidateQueueName validates a queue name
func ValidateQueueName(name string) error {
	if name == "" {
		return core.ErrInvalidQueueName
	}
	if len(name) > MaxQueueNameLength {
		return core.ErrQueueNameTooLong
	}
	if !validName.MatchString(name) {
		return core.ErrInvalidQueueName
	}
	return nil
}

// ValidateTitle validates a job title length
func ValidateTitle(title string) error {
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return core.ErrTitleTooLong
	}
	return nil
}

// ValidateArgs validates the size of serialized job arguments
func ValidateArgs(args []byte) error {
	if len(args) > MaxJobArgsSize {
		return core.ErrJobArgsTooLarge
	}
	return nil
}

// ValidateStatus validates a job status
func ValidateStatus(s core.JobStatus) error {
	if !s.Valid() {
		return core.ErrInvalidStatus
	}
	return nil
}

// ValidateJob checks every user-controlled field of a job record.
// An empty queue or status is accepted; storage fills in defaults.
func ValidateJob(job *core.Job) error {
	if err := ValidateJobTypeName(job.Type); err != nil {
		return err
	}
	if job.Queue != "" {
		if err := ValidateQueueName(job.Queue); err != nil {
			return err
		}
	}
	if job.Status != "" {
		if err := ValidateStatus(job.Status); err != nil {
			return err
		}
	}
	if err := ValidateTitle(job.Title); err != nil {
		return err
	}
	return ValidateArgs(job.Args)
}

// SanitizeErrorMessage truncates and sanitizes error messages for storage
func SanitizeErrorMessage(msg string) string {
	return sanitize(msg, MaxErrorMessageLength)
}

// SanitizeLogs truncates and sanitizes job logs for storage.
// When logs exceed the limit the oldest output is dropped.
func SanitizeLogs(logs string) string {
	cleaned := sanitize(logs, -1)
	if utf8.RuneCountInString(cleaned) > MaxLogsLength {
		runes := []rune(cleaned)
		cleaned = "..." + string(runes[len(runes)-(MaxLogsLength-3):])
	}
	return cleaned
}

// sanitize strips control characters (except newlines and tabs) and truncates
// to max runes when max is positive.
func sanitize(msg string, max int) string {
	if msg == "" {
		return ""
	}

	var sanitized strings.Builder
	sanitized.Grow(len(msg))

	for _, r := range msg {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			sanitized.WriteRune(r)
		}
	}

	result := sanitized.String()

	if max > 0 && utf8.RuneCountInString(result) > max {
		runes := []rune(result)
		result = string(runes[:max-3]) + "..."
	}

	return result
}

// ClampListLimit ensures a list limit is within [1, MaxListLimit].
// Non-positive values fall back to def.
func ClampListLimit(n, def int) int {
	if n <= 0 {
		n = def
	}
	if n > MaxListLimit {
		return MaxListLimit
	}
	if n < 1 {
		return 1
	}
	return n
}
