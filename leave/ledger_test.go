package leave_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/leave/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestLedger(t *testing.T) (*leave.BalanceLedger, *leave.PolicyRegistry, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	registry := leave.NewPolicyRegistry(mem, mem)
	ledger := leave.NewBalanceLedger(mem, registry)

	_, err := registry.Create(context.Background(), annualPolicyInput())
	require.NoError(t, err)
	return ledger, registry, mem
}

// =============================================================================
// LAZY MATERIALIZATION TESTS
// =============================================================================

func TestBalance_MaterializedFromActivePolicy(t *testing.T) {
	// GIVEN: No balance entry for (emp-1, annual, 2025)
	// WHEN: Reading the balance
	// THEN: An entry is created from the active policy

	ledger, _, _ := newTestLedger(t)
	ctx := context.Background()

	balance, err := ledger.Balance(ctx, "emp-1", leave.LeaveAnnual, 2025)
	require.NoError(t, err)

	assert.True(t, balance.Entitlement.Equal(days("25")))
	assert.True(t, balance.Used.IsZero())
	assert.True(t, balance.Remaining().Equal(days("25")))
}

func TestBalance_NoActivePolicy_NotFound(t *testing.T) {
	ledger, _, _ := newTestLedger(t)

	_, err := ledger.Balance(context.Background(), "emp-1", leave.LeaveSick, 2025)
	assert.True(t, leave.IsNotFound(err))
}

func TestBalance_SecondReadReturnsSameEntry(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.ApplyApproval(ctx, "emp-1", leave.LeaveAnnual, 2025, days("3"))
	require.NoError(t, err)

	balance, err := ledger.Balance(ctx, "emp-1", leave.LeaveAnnual, 2025)
	require.NoError(t, err)
	assert.True(t, balance.Used.Equal(days("3")), "materialization must not reset an existing entry")
}

// =============================================================================
// AVAILABILITY TESTS
// =============================================================================

func TestCheckAvailability_Sufficient_ZeroShortfall(t *testing.T) {
	ledger, _, _ := newTestLedger(t)

	shortfall, err := ledger.CheckAvailability(context.Background(), "emp-1", leave.LeaveAnnual, 2025, days("5"))
	require.NoError(t, err)
	assert.True(t, shortfall.IsZero())
}

func TestCheckAvailability_Insufficient_ReportsShortfall(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.ApplyApproval(ctx, "emp-1", leave.LeaveAnnual, 2025, days("23"))
	require.NoError(t, err)

	shortfall, err := ledger.CheckAvailability(ctx, "emp-1", leave.LeaveAnnual, 2025, days("5"))
	require.NoError(t, err)
	assert.True(t, shortfall.Equal(days("3")), "requested 5 with 2 remaining: shortfall = %s", shortfall)
}

func TestCheckAvailability_DoesNotMutate(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.CheckAvailability(ctx, "emp-1", leave.LeaveAnnual, 2025, days("5"))
	require.NoError(t, err)

	balance, err := ledger.Balance(ctx, "emp-1", leave.LeaveAnnual, 2025)
	require.NoError(t, err)
	assert.True(t, balance.Used.IsZero())
}

// =============================================================================
// COMMIT / REVERSE TESTS
// =============================================================================

func TestApplyApproval_IncrementsUsed(t *testing.T) {
	ledger, _, _ := newTestLedger(t)

	balance, err := ledger.ApplyApproval(context.Background(), "emp-1", leave.LeaveAnnual, 2025, days("5"))
	require.NoError(t, err)

	assert.True(t, balance.Used.Equal(days("5")))
	assert.True(t, balance.Remaining().Equal(days("20")))
}

func TestReverse_UndoesApproval(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.ApplyApproval(ctx, "emp-1", leave.LeaveAnnual, 2025, days("5"))
	require.NoError(t, err)

	balance, err := ledger.Reverse(ctx, "emp-1", leave.LeaveAnnual, 2025, days("5"))
	require.NoError(t, err)
	assert.True(t, balance.Used.IsZero())
	assert.True(t, balance.Remaining().Equal(days("25")))
}

func TestReverse_NeverBelowZero(t *testing.T) {
	// Reversing an approval that was never committed is a harmless no-op;
	// used floors at zero.
	ledger, _, _ := newTestLedger(t)

	balance, err := ledger.Reverse(context.Background(), "emp-1", leave.LeaveAnnual, 2025, days("5"))
	require.NoError(t, err)
	assert.True(t, balance.Used.IsZero())
}

func TestAdjust_MovesEntitlement(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	ctx := context.Background()

	balance, err := ledger.Adjust(ctx, "emp-1", leave.LeaveAnnual, 2025, days("3"))
	require.NoError(t, err)
	assert.True(t, balance.Entitlement.Equal(days("28")))

	balance, err = ledger.Adjust(ctx, "emp-1", leave.LeaveAnnual, 2025, days("-10"))
	require.NoError(t, err)
	assert.True(t, balance.Entitlement.Equal(days("18")))
}

// =============================================================================
// OPTIMISTIC CONCURRENCY TESTS
// =============================================================================

func TestSaveBalance_StaleVersion_Conflict(t *testing.T) {
	ledger, _, mem := newTestLedger(t)
	ctx := context.Background()

	first, err := ledger.Balance(ctx, "emp-1", leave.LeaveAnnual, 2025)
	require.NoError(t, err)

	stale := *first
	// Another writer bumps the row
	fresh := *first
	fresh.Used = days("2")
	require.NoError(t, mem.SaveBalance(ctx, &fresh))

	stale.Used = days("3")
	err = mem.SaveBalance(ctx, &stale)
	require.Error(t, err)
	assert.ErrorIs(t, err, leave.ErrConcurrencyConflict)
	assert.True(t, leave.IsRetryable(err))
}

func TestConcurrentApprovals_SerializedByKeyLock(t *testing.T) {
	// Ten goroutines committing under the per-key lock, the way approval
	// does: every decrement lands, none is lost to a stale write.
	ledger, _, _ := newTestLedger(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := ledger.Lock("emp-1", leave.LeaveAnnual, 2025)
			defer unlock()
			_, err := ledger.ApplyApproval(ctx, "emp-1", leave.LeaveAnnual, 2025, days("1"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	balance, err := ledger.Balance(ctx, "emp-1", leave.LeaveAnnual, 2025)
	require.NoError(t, err)
	assert.True(t, balance.Used.Equal(days("10")), "used = %s after 10 serialized approvals", balance.Used)
}

// =============================================================================
// ROLLOVER TESTS
// =============================================================================

func TestRolloverYear_CarriesCappedRemainder(t *testing.T) {
	// GIVEN: remaining=10, maxCarryForwardDays=5, totalDaysPerYear=25
	// WHEN: Rolling 2025 into 2026
	// THEN: 2026 entitlement = 25 + 5 = 30

	ledger, _, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.ApplyApproval(ctx, "emp-1", leave.LeaveAnnual, 2025, days("15"))
	require.NoError(t, err)

	balance, err := ledger.RolloverYear(ctx, "emp-1", leave.LeaveAnnual, 2025, 2026)
	require.NoError(t, err)

	assert.True(t, balance.Entitlement.Equal(days("30")), "entitlement = %s", balance.Entitlement)
	assert.True(t, balance.Used.IsZero())
}

func TestRolloverYear_NoCarryPolicy_BaseOnly(t *testing.T) {
	mem := store.NewMemory()
	registry := leave.NewPolicyRegistry(mem, mem)
	ledger := leave.NewBalanceLedger(mem, registry)
	ctx := context.Background()

	input := annualPolicyInput()
	input.CanCarryForward = false
	input.MaxCarryForwardDays = leave.ZeroDays()
	_, err := registry.Create(ctx, input)
	require.NoError(t, err)

	_, err = ledger.Balance(ctx, "emp-1", leave.LeaveAnnual, 2025)
	require.NoError(t, err)

	balance, err := ledger.RolloverYear(ctx, "emp-1", leave.LeaveAnnual, 2025, 2026)
	require.NoError(t, err)
	assert.True(t, balance.Entitlement.Equal(days("25")), "unused days expire without carry-forward")
}

func TestRolloverYear_NegativeRemainder_NeverCarries(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	ctx := context.Background()

	// entitlement 25, used 27 -> remaining -2
	_, err := ledger.ApplyApproval(ctx, "emp-1", leave.LeaveAnnual, 2025, days("27"))
	require.NoError(t, err)

	balance, err := ledger.RolloverYear(ctx, "emp-1", leave.LeaveAnnual, 2025, 2026)
	require.NoError(t, err)
	assert.True(t, balance.Entitlement.Equal(days("25")), "negative remainder carries nothing")
}

func TestRolloverYear_AlreadyRolled_Rejected(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Balance(ctx, "emp-1", leave.LeaveAnnual, 2025)
	require.NoError(t, err)

	_, err = ledger.RolloverYear(ctx, "emp-1", leave.LeaveAnnual, 2025, 2026)
	require.NoError(t, err)

	_, err = ledger.RolloverYear(ctx, "emp-1", leave.LeaveAnnual, 2025, 2026)
	require.Error(t, err, "a rollover cannot be applied twice")
	assert.ErrorIs(t, err, leave.ErrValidation)
}

func TestRolloverAll_ProcessesEveryBalance(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	ctx := context.Background()

	for _, emp := range []leave.EmployeeID{"emp-1", "emp-2", "emp-3"} {
		_, err := ledger.Balance(ctx, emp, leave.LeaveAnnual, 2025)
		require.NoError(t, err)
	}

	results, err := ledger.RolloverAll(ctx, 2025)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, res := range results {
		assert.NoError(t, res.Err)
		assert.True(t, res.NewBalance.Entitlement.Equal(days("30")), "full 5-day carry for untouched balances")
		assert.True(t, res.CarriedOver.Equal(days("5")))
	}
}
