// Package retry provides an opt-in reload-and-reapply loop for callers of the
// version guard.
//
// The guard itself never retries: a stale write fails with
// core.ErrConcurrentModification. UpdateWithRetry is for callers whose
// mutation is safe to re-run against a freshly loaded record, such as
// appending to logs or setting a status.
package retry
