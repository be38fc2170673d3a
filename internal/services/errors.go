package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

var (
	// ErrTransient marks retryable failures such as network timeouts,
	// rate limits, and temporary upstream unavailability.
	ErrTransient = errors.New("transient failure")
	// ErrContent marks per-item failures that retrying cannot fix, such as
	// unsupported encodings or malformed source documents.
	ErrContent = errors.New("content error")
	// ErrFatal marks batch-aborting failures such as disk exhaustion or
	// unrecoverable state.
	ErrFatal = errors.New("fatal error")
	// ErrNotFound marks source documents that do not exist upstream.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsTransient reports whether the stage runner should retry the operation.
// Network timeouts qualify even when the error was not tagged explicitly.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrFatal) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsFatal reports whether the error must abort the whole batch.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal) || errors.Is(err, syscall.ENOSPC)
}

// IsContent reports whether the error is confined to the current item.
func IsContent(err error) bool {
	return errors.Is(err, ErrContent) || errors.Is(err, ErrNotFound)
}

// IsCanceled reports whether the error stems from cooperative cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// Details extracts the human-readable portion of a wrapped stage error,
// stripping the sentinel prefix so operators see the meaningful part.
func Details(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, marker := range []error{ErrTransient, ErrContent, ErrFatal, ErrNotFound} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
