package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSubscriptionFailed is returned when subscription to chain events fails
	ErrSubscriptionFailed = errors.New("subscription failed")

	// ErrListingNotFound is returned when no listing matches a lookup
	ErrListingNotFound = errors.New("listing not found")

	// ErrPositionNotFound is returned when a position is not found
	ErrPositionNotFound = errors.New("position not found")

	// ErrNoPriceSample is returned by pricing lookups when no sample
	// exists; consumers degrade to "no USD value", this is not a failure
	ErrNoPriceSample = errors.New("no price sample")
)

// ValidationError reports malformed or out-of-range input to a
// state-machine operation. Rejected before any side effect.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s", e.Reason)
}

// NewValidationError creates a ValidationError with a formatted reason
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// PreconditionError reports an operation attempted against a listing
// that is not in the required state (wrong status, past deadline,
// self-purchase). Rejected with no side effect and never retried.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition: %s", e.Reason)
}

// NewPreconditionError creates a PreconditionError with a formatted reason
func NewPreconditionError(format string, args ...any) *PreconditionError {
	return &PreconditionError{Reason: fmt.Sprintf(format, args...)}
}

// DecodeError reports a chain log that could not be parsed into a known
// marketplace event. The pipeline logs and skips these.
type DecodeError struct {
	TxHash   string
	LogIndex uint
	Cause    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s:%d: %v", e.TxHash, e.LogIndex, e.Cause)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// NewDecodeError creates a DecodeError for a specific log
func NewDecodeError(txHash string, logIndex uint, format string, args ...any) *DecodeError {
	return &DecodeError{
		TxHash:   txHash,
		LogIndex: logIndex,
		Cause:    fmt.Errorf(format, args...),
	}
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsPrecondition reports whether err is a PreconditionError
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// IsDecode reports whether err is a DecodeError
func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
