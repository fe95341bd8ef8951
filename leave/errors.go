/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All error kinds in one place. Callers branch on kind via errors.Is /
  errors.As, never on message text. Each structured error unwraps to a
  sentinel so both styles of branching work.

ERROR CATEGORIES:
  1. Input errors - malformed dates/fields, policy rule violations
  2. State errors - illegal transitions, conflicting date ranges
  3. Store errors - missing records, stale optimistic versions

RECOVERY:
  Nothing here is retried internally except ErrConcurrencyConflict,
  which the ledger retries with a fresh read. Everything else propagates
  to the boundary for user-facing display.
*/
package leave

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed dates or fields.
	ErrValidation = errors.New("validation failed")

	// ErrOverlap is returned when a request's date range conflicts with an
	// existing pending or approved request for the same employee.
	ErrOverlap = errors.New("overlapping leave request")

	// ErrInsufficientBalance is returned when a request exceeds the
	// remaining balance and the governing policy disallows going negative.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrPolicyViolation is returned for policy rule breaches: advance
	// notice, half-day not permitted, max days per request exceeded.
	ErrPolicyViolation = errors.New("policy violation")

	// ErrDuplicatePolicy is returned when an active policy already exists
	// for a leave type.
	ErrDuplicatePolicy = errors.New("active policy already exists for leave type")

	// ErrReferenced is returned when deleting a policy that balances or
	// requests still reference. Deactivate instead.
	ErrReferenced = errors.New("entity is referenced and cannot be deleted")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned for illegal request state transitions.
	ErrInvalidState = errors.New("invalid state transition")

	// ErrConcurrencyConflict is returned when an optimistic balance write
	// detects a stale version. Safe to retry with a fresh read.
	ErrConcurrencyConflict = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a malformed field.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Detail)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// OverlapError describes a date-range conflict with an existing request.
type OverlapError struct {
	EmployeeID EmployeeID
	ConflictID RequestID
	Start, End Date
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("request overlaps existing request %s (%s to %s)",
		e.ConflictID, e.Start, e.End)
}

func (e *OverlapError) Unwrap() error { return ErrOverlap }

// InsufficientBalanceError carries the shortfall so callers can show
// exactly how many days are missing.
type InsufficientBalanceError struct {
	EmployeeID EmployeeID
	LeaveType  LeaveType
	Year       int
	Requested  Days
	Remaining  Days
	Shortfall  Days
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: requested %v, remaining %v, shortfall %v",
		e.Requested, e.Remaining, e.Shortfall)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// PolicyViolationError names the specific rule that was breached.
type PolicyViolationError struct {
	PolicyID PolicyID
	Reason   string
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("policy violation: %s", e.Reason)
}

func (e *PolicyViolationError) Unwrap() error { return ErrPolicyViolation }

// DuplicatePolicyError identifies the leave type that already has an
// active policy.
type DuplicatePolicyError struct {
	LeaveType  LeaveType
	ExistingID PolicyID
}

func (e *DuplicatePolicyError) Error() string {
	return fmt.Sprintf("active policy %s already exists for leave type %q",
		e.ExistingID, e.LeaveType)
}

func (e *DuplicatePolicyError) Unwrap() error { return ErrDuplicatePolicy }

// ReferencedEntityError blocks deletion of a policy still in use.
type ReferencedEntityError struct {
	PolicyID  PolicyID
	LeaveType LeaveType
}

func (e *ReferencedEntityError) Error() string {
	return fmt.Sprintf("policy %s is referenced by balances or requests; deactivate instead", e.PolicyID)
}

func (e *ReferencedEntityError) Unwrap() error { return ErrReferenced }

// InvalidStateError describes an illegal request transition.
type InvalidStateError struct {
	RequestID RequestID
	Status    RequestStatus
	Action    string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s request %s in status %q", e.Action, e.RequestID, e.Status)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrOverlap) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrPolicyViolation) ||
		errors.Is(err, ErrDuplicatePolicy) ||
		errors.Is(err, ErrReferenced) ||
		errors.Is(err, ErrInvalidState)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
