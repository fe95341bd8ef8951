/*
repository.go - Persistence and collaborator contracts

PURPOSE:
  The engine is written against these interfaces, never a concrete store.
  Different implementations can back them with SQLite, PostgreSQL, or
  in-memory maps.

CONTRACTS:
  PolicyRepository:  Leave policy records
  BalanceRepository: Per-(employee, leave type, year) balances with
                     optimistic versioning
  RequestRepository: Leave request records and lifecycle queries
  EmployeeDirectory: Name/department lookups for aggregation grouping
  ReferenceChecker:  "Is this leave type still in use?" for delete guards

OPTIMISTIC VERSIONING:
  SaveBalance must reject a write whose Version does not match the stored
  row, returning an error that wraps ErrConcurrencyConflict. On success
  the stored version is incremented. The ledger retries conflicted
  commits with a fresh read.

NOT FOUND:
  Get* methods return (nil, nil) for missing records; the engine decides
  whether absence is an error (requests) or a lazy-create trigger
  (balances).

IMPLEMENTATIONS:
  - leave/store/memory.go: In-memory, for tests and dev
  - store/sqlite/sqlite.go: SQLite, the production shape
*/
package leave

import "context"

// =============================================================================
// POLICY REPOSITORY
// =============================================================================

type PolicyRepository interface {
	// SavePolicy inserts or replaces a policy record.
	SavePolicy(ctx context.Context, p LeavePolicy) error

	// GetPolicy returns the policy or (nil, nil) if absent.
	GetPolicy(ctx context.Context, id PolicyID) (*LeavePolicy, error)

	// ListPolicies returns all policies, active and inactive.
	ListPolicies(ctx context.Context) ([]*LeavePolicy, error)

	// ActivePolicy returns the single active policy for a leave type,
	// or (nil, nil) if none is active.
	ActivePolicy(ctx context.Context, lt LeaveType) (*LeavePolicy, error)

	// DeletePolicy removes the record. Reference checks happen above.
	DeletePolicy(ctx context.Context, id PolicyID) error
}

// ReferenceChecker answers whether any balance or request still references
// a leave type. Implemented by stores that see both tables.
type ReferenceChecker interface {
	LeaveTypeReferenced(ctx context.Context, lt LeaveType) (bool, error)
}

// =============================================================================
// BALANCE REPOSITORY
// =============================================================================

type BalanceRepository interface {
	// GetBalance returns the balance or (nil, nil) if not yet materialized.
	GetBalance(ctx context.Context, emp EmployeeID, lt LeaveType, year int) (*LeaveBalance, error)

	// SaveBalance inserts (Version 0) or updates (Version must match the
	// stored row) a balance, incrementing Version on success. A stale
	// version fails with an error wrapping ErrConcurrencyConflict.
	SaveBalance(ctx context.Context, b *LeaveBalance) error

	// ListBalances returns every balance for a calendar year, across all
	// employees and leave types. Used by bulk rollover.
	ListBalances(ctx context.Context, year int) ([]*LeaveBalance, error)
}

// =============================================================================
// REQUEST REPOSITORY
// =============================================================================

type RequestRepository interface {
	// SaveRequest inserts or replaces a request record.
	SaveRequest(ctx context.Context, r *LeaveRequest) error

	// GetRequest returns the request or (nil, nil) if absent.
	GetRequest(ctx context.Context, id RequestID) (*LeaveRequest, error)

	// ListByEmployee returns all requests for an employee, newest first.
	ListByEmployee(ctx context.Context, emp EmployeeID) ([]*LeaveRequest, error)

	// ListActiveByEmployee returns the employee's pending and approved
	// requests. The overlap invariant is checked against this set.
	ListActiveByEmployee(ctx context.Context, emp EmployeeID) ([]*LeaveRequest, error)

	// ListPending returns all pending requests, oldest first.
	ListPending(ctx context.Context) ([]*LeaveRequest, error)
}

// =============================================================================
// EMPLOYEE DIRECTORY
// =============================================================================

// EmployeeDirectory resolves employees for aggregation scoping. The engine
// consumes it; maintaining the records is the surrounding system's concern.
type EmployeeDirectory interface {
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)
	ListEmployees(ctx context.Context) ([]*Employee, error)
	ListByDepartment(ctx context.Context, department string) ([]*Employee, error)
}
