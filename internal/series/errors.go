package series

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnauthorized is returned when the acting principal may not mutate the
	// reservation.
	ErrUnauthorized = errors.New("series: unauthorized")
	// ErrNotFound is returned when the requested reservation does not exist.
	ErrNotFound = errors.New("series: not found")
	// ErrLocked is returned when another caller holds the series lock.
	ErrLocked = errors.New("series: series is locked by another operation")
)

// ValidationError captures field level validation issues that callers can
// surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed on %d field(s)", len(v.FieldErrors))
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// ConsistencyError reports a mutation that would corrupt series state: a date
// shift crossing an adjacent occurrence, or cancelling a record that is
// already terminal. The operation aborts with no partial mutation.
type ConsistencyError struct {
	ReservationID string
	Reason        string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("series: reservation %s: %s", e.ReservationID, e.Reason)
}

// OccurrenceFailure records one occurrence that could not be created,
// updated or cancelled during a batch operation.
type OccurrenceFailure struct {
	ReservationID string
	Date          time.Time
	Err           error
}

// Result is the partial-batch outcome of a series mutation. Failures are
// expected outcomes, not errors: the caller decides what to do with them.
// Warnings carry non-fatal collaborator trouble, typically calendar sync
// failures after the reservation state is already durable.
type Result struct {
	Anchor       string
	Succeeded    []string
	Disconnected []string
	Failures     []OccurrenceFailure
	Warnings     []string
}
