package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("resource not found")
	ErrConflict           = errors.New("conflict")
	ErrAlreadyAnalyzed    = fmt.Errorf("%w: analysis already committed for video", ErrConflict)
	ErrQueueUnavailable   = errors.New("queue unavailable")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrCapability         = errors.New("analysis capability failure")
	ErrJobNotLeased       = errors.New("job is not leased")
)

// ValidationError names the first structural invariant a raw analysis
// violated. MomentIndex is -1 for payload-level violations (moment count).
type ValidationError struct {
	Field       string
	MomentIndex int
	Reason      string
}

func (e *ValidationError) Error() string {
	if e.MomentIndex < 0 {
		return fmt.Sprintf("analysis validation failed: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("analysis validation failed: keyMoments[%d].%s: %s", e.MomentIndex, e.Field, e.Reason)
}

// CapabilityError wraps a failure of the external analysis capability so the
// retry policy can recognize it without inspecting error strings.
type CapabilityError struct {
	Err error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("analysis capability failure: %v", e.Err)
}

func (e *CapabilityError) Unwrap() error { return ErrCapability }

// FailureKind partitions job execution failures for the retry policy.
type FailureKind string

const (
	FailureTransient  FailureKind = "transient"
	FailureCapability FailureKind = "capability"
	FailureValidation FailureKind = "validation"
)

// ClassifyFailure maps a job execution error onto a failure kind. Every kind
// is retriable up to the attempt ceiling: the capability is a black box whose
// transient misbehavior cannot be cheaply told apart from permanent
// misbehavior, so validation failures on its output are retried too.
func ClassifyFailure(err error) FailureKind {
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		return FailureValidation
	case errors.Is(err, ErrCapability):
		return FailureCapability
	default:
		return FailureTransient
	}
}
