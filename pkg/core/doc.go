// Package core provides the fundamental types and interfaces for the jobs package.
//
// This package contains:
//   - The Job data model with GORM annotations, including its Version counter
//   - The Store interface defining the persistence contract for guarded updates
//   - Event types emitted when jobs are created, updated, deleted or conflict
//   - Error types for missing records and concurrent modification
//
// Most users should import the root package github.com/jdziat/versioned-jobs
// instead of this package directly.
package core
