// Package runner is the generic stage engine: given a catalog and a
// stage-specific process-one-item function, it iterates items in catalog
// order, skips completed work, retries transient failures with exponential
// backoff, isolates per-item errors, guards free disk space, and persists
// progress after every item so an interrupted run resumes with zero
// reprocessing.
package runner
