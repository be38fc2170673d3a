// Package services provides the shared error taxonomy and context plumbing
// used across pipeline stages.
//
// Stage code tags failures with one of the sentinel errors (ErrTransient,
// ErrContent, ErrFatal, ErrNotFound) via Wrap; the stage runner uses the
// Is* classifiers to decide between retry, per-item failure, and batch abort.
package services
