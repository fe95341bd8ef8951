/*
ledger.go - The balance ledger

PURPOSE:
  The single source of truth for "how much leave is left". One entry per
  (employee, leave type, year): entitlement (base allowance plus any
  carry-forward), used, and the derived remaining.

LAZY MATERIALIZATION:
  Entries are created on first access from the active policy for the
  leave type (entitlement = policy.totalDaysPerYear, used = 0). Nothing
  is pre-provisioned when policies or employees are created.

SERIALIZATION:
  The correctness-critical concern is the validate-then-commit sequence
  at approval: two concurrent approvals for the same key must not both
  read a pre-decrement balance and together overdraw it. The ledger
  provides a per-key mutex for that sequence, and balance writes carry an
  optimistic version as a second line of defense: a stale write fails
  with ErrConcurrencyConflict and is retried with a fresh read.

  Submission-time CheckAvailability is advisory only and takes no lock;
  the balance is re-read under the key lock at approval.

MUTATIONS:
  Only approval, reversal, manual adjustment, and year rollover mutate a
  balance. Aggregation reads are snapshot views and never write.

SEE ALSO:
  - lifecycle.go: Acquires the key lock around approve
  - allocator.go: Splits a request into paid/unpaid before commit
*/
package leave

import (
	"context"
	"fmt"
	"sync"
)

// =============================================================================
// LEAVE BALANCE
// =============================================================================

type LeaveBalance struct {
	EmployeeID EmployeeID
	LeaveType  LeaveType
	Year       int

	// Entitlement is the base allowance plus carried-forward days.
	Entitlement Days

	// Used counts committed paid days from approved requests.
	Used Days

	// Version is the optimistic-concurrency token maintained by the store.
	Version int
}

// Remaining is always derived, never stored.
func (b LeaveBalance) Remaining() Days {
	return b.Entitlement.Sub(b.Used)
}

// =============================================================================
// BALANCE LEDGER
// =============================================================================

// maxCommitRetries bounds optimistic-conflict retries on a single commit.
const maxCommitRetries = 3

type BalanceLedger struct {
	Balances BalanceRepository
	Registry *PolicyRegistry

	mu    sync.Mutex
	locks map[balanceKey]*sync.Mutex
}

type balanceKey struct {
	Employee EmployeeID
	Type     LeaveType
	Year     int
}

func NewBalanceLedger(balances BalanceRepository, registry *PolicyRegistry) *BalanceLedger {
	return &BalanceLedger{
		Balances: balances,
		Registry: registry,
		locks:    make(map[balanceKey]*sync.Mutex),
	}
}

// Lock acquires the serialization mutex for one ledger key and returns the
// release function. Callers hold it across the validate-then-commit
// sequence in approval.
func (l *BalanceLedger) Lock(emp EmployeeID, lt LeaveType, year int) func() {
	key := balanceKey{Employee: emp, Type: lt, Year: year}

	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Balance returns the entry for (employee, leave type, year), materializing
// it from the active policy on first access.
func (l *BalanceLedger) Balance(ctx context.Context, emp EmployeeID, lt LeaveType, year int) (*LeaveBalance, error) {
	existing, err := l.Balances.GetBalance(ctx, emp, lt, year)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	policy, err := l.Registry.ActiveFor(ctx, lt)
	if err != nil {
		return nil, err
	}

	balance := &LeaveBalance{
		EmployeeID:  emp,
		LeaveType:   lt,
		Year:        year,
		Entitlement: policy.TotalDaysPerYear,
		Used:        ZeroDays(),
	}
	if err := l.Balances.SaveBalance(ctx, balance); err != nil {
		if IsRetryable(err) {
			// Lost the materialization race; the other writer's row wins.
			return l.Balances.GetBalance(ctx, emp, lt, year)
		}
		return nil, err
	}
	return balance, nil
}

// CheckAvailability returns the shortfall for a prospective consumption:
// zero when the remaining balance covers it. Non-mutating and advisory:
// pending requests do not pre-reserve balance, and the final check happens
// at approval under the key lock.
func (l *BalanceLedger) CheckAvailability(ctx context.Context, emp EmployeeID, lt LeaveType, year int, days Days) (Days, error) {
	balance, err := l.Balance(ctx, emp, lt, year)
	if err != nil {
		return ZeroDays(), err
	}

	shortfall := days.Sub(balance.Remaining())
	if shortfall.IsNegative() {
		shortfall = ZeroDays()
	}
	return shortfall, nil
}

// ApplyApproval commits consumed days: increments used and returns the
// resulting balance. Must run under the key lock (see Lock).
func (l *BalanceLedger) ApplyApproval(ctx context.Context, emp EmployeeID, lt LeaveType, year int, days Days) (*LeaveBalance, error) {
	return l.commit(ctx, emp, lt, year, func(b *LeaveBalance) {
		b.Used = b.Used.Add(days)
	})
}

// Reverse undoes a previously committed approval: decrements used, never
// below zero. Calling it for an approval that was never committed (or has
// already been reversed past zero) is a harmless no-op, which makes
// correction flows idempotent.
func (l *BalanceLedger) Reverse(ctx context.Context, emp EmployeeID, lt LeaveType, year int, days Days) (*LeaveBalance, error) {
	return l.commit(ctx, emp, lt, year, func(b *LeaveBalance) {
		b.Used = b.Used.Sub(days).Max(ZeroDays())
	})
}

// Adjust applies a manual entitlement correction (admin operation).
// A positive delta grants days, a negative delta revokes them.
func (l *BalanceLedger) Adjust(ctx context.Context, emp EmployeeID, lt LeaveType, year int, delta Days) (*LeaveBalance, error) {
	return l.commit(ctx, emp, lt, year, func(b *LeaveBalance) {
		b.Entitlement = b.Entitlement.Add(delta)
	})
}

// commit runs a read-modify-write with bounded retry on optimistic
// conflicts. mutate sees the freshest balance on every attempt.
func (l *BalanceLedger) commit(ctx context.Context, emp EmployeeID, lt LeaveType, year int, mutate func(*LeaveBalance)) (*LeaveBalance, error) {
	var lastErr error
	for attempt := 0; attempt < maxCommitRetries; attempt++ {
		balance, err := l.Balance(ctx, emp, lt, year)
		if err != nil {
			return nil, err
		}

		mutate(balance)

		if err := l.Balances.SaveBalance(ctx, balance); err != nil {
			if IsRetryable(err) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return balance, nil
	}
	return nil, fmt.Errorf("balance commit for %s/%s/%d gave up after %d attempts: %w",
		emp, lt, year, maxCommitRetries, lastErr)
}

// =============================================================================
// YEAR ROLLOVER
// =============================================================================

// RolloverYear closes fromYear for one key and opens toYear with
//
//	entitlement = policy.totalDaysPerYear + carryForward
//	carryForward = canCarryForward ? min(remaining(fromYear), maxCarryForwardDays) : 0
//
// Negative remainders never carry. Fails if the toYear balance already
// exists, so a rollover cannot be applied twice.
func (l *BalanceLedger) RolloverYear(ctx context.Context, emp EmployeeID, lt LeaveType, fromYear, toYear int) (*LeaveBalance, error) {
	if toYear <= fromYear {
		return nil, &ValidationError{Field: "toYear", Detail: "must be after fromYear"}
	}

	unlock := l.Lock(emp, lt, toYear)
	defer unlock()

	existing, err := l.Balances.GetBalance(ctx, emp, lt, toYear)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &ValidationError{Field: "toYear", Detail: fmt.Sprintf("balance for %d already exists", toYear)}
	}

	from, err := l.Balance(ctx, emp, lt, fromYear)
	if err != nil {
		return nil, err
	}
	policy, err := l.Registry.ActiveFor(ctx, lt)
	if err != nil {
		return nil, err
	}

	carry := ZeroDays()
	if policy.CanCarryForward {
		carry = from.Remaining().Min(policy.MaxCarryForwardDays).Max(ZeroDays())
	}

	balance := &LeaveBalance{
		EmployeeID:  emp,
		LeaveType:   lt,
		Year:        toYear,
		Entitlement: policy.TotalDaysPerYear.Add(carry),
		Used:        ZeroDays(),
	}
	if err := l.Balances.SaveBalance(ctx, balance); err != nil {
		return nil, err
	}
	return balance, nil
}

// RolloverResult reports one key's outcome from a bulk rollover.
type RolloverResult struct {
	EmployeeID  EmployeeID
	LeaveType   LeaveType
	CarriedOver Days
	NewBalance  *LeaveBalance
	Err         error
}

// RolloverAll rolls every balance of fromYear into the next year. Keys
// that already have a toYear balance are reported as errors but do not
// stop the run.
func (l *BalanceLedger) RolloverAll(ctx context.Context, fromYear int) ([]RolloverResult, error) {
	balances, err := l.Balances.ListBalances(ctx, fromYear)
	if err != nil {
		return nil, err
	}

	results := make([]RolloverResult, 0, len(balances))
	for _, b := range balances {
		result := RolloverResult{EmployeeID: b.EmployeeID, LeaveType: b.LeaveType}

		newBalance, err := l.RolloverYear(ctx, b.EmployeeID, b.LeaveType, fromYear, fromYear+1)
		if err != nil {
			result.Err = err
		} else {
			result.NewBalance = newBalance
			if policy, perr := l.Registry.ActiveFor(ctx, b.LeaveType); perr == nil {
				result.CarriedOver = newBalance.Entitlement.Sub(policy.TotalDaysPerYear)
			}
		}
		results = append(results, result)
	}
	return results, nil
}
