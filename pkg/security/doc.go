// Package security provides validation, sanitization, and limits for job records.
//
// This package includes:
//   - Input validation for job type names, queue names, titles and statuses
//   - Error message and log sanitization to keep control characters out of storage
//   - Clamping for list limits
//
// Most users should import the root package github.com/jdziat/versioned-jobs
// which re-exports these functions.
package security
