// Package fault defines the error taxonomy shared by every layer.
//
// Errors are plain sentinel values wrapped with context via fmt.Errorf("%w").
// Callers classify an error with errors.Is against the sentinels, or with Kind
// when they need a single label (for example to pick an HTTP status).
package fault

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors. Every error returned across a package boundary wraps one of these.
var (
	// ErrNotFound is returned when an organization, policy, session or gateway is absent.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned for a missing or unknown tenant credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when a valid caller addresses another tenant.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation error")
	// ErrStoreUnavailable is returned for transient store or cache failures, including timeouts.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInternal is returned for unexpected failures.
	ErrInternal = errors.New("internal error")
)

// NotFound returns an ErrNotFound with a formatted message.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Validation returns an ErrValidation with a formatted message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Unauthorized returns an ErrUnauthorized with a formatted message.
func Unauthorized(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, fmt.Sprintf(format, args...))
}

// Forbidden returns an ErrForbidden with a formatted message.
func Forbidden(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

// Unavailable marks err as a store failure for operation op.
// Errors that already carry a taxonomy kind are wrapped without being reclassified.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != ErrInternal {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// Kind returns the taxonomy sentinel err belongs to.
// Context deadline and cancellation errors count as ErrStoreUnavailable;
// anything unclassified is ErrInternal.
func Kind(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrUnauthorized):
		return ErrUnauthorized
	case errors.Is(err, ErrForbidden):
		return ErrForbidden
	case errors.Is(err, ErrValidation):
		return ErrValidation
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return ErrStoreUnavailable
	default:
		return ErrInternal
	}
}

// Code returns the wire code for err's kind.
func Code(err error) string {
	switch Kind(err) {
	case ErrNotFound:
		return "NOT_FOUND"
	case ErrUnauthorized:
		return "UNAUTHORIZED"
	case ErrForbidden:
		return "FORBIDDEN"
	case ErrValidation:
		return "VALIDATION_ERROR"
	case ErrStoreUnavailable:
		return "STORE_UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}
