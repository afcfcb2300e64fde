// Package service is the job-management layer over a core.Store.
//
// It validates input, forwards guarded updates to the store unchanged,
// broadcasts events to subscribers and logs version conflicts. A conflict is
// always returned to the caller; retrying is opt-in through UpdateLatest.
package service
