package leave_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func days(s string) leave.Days {
	return leave.MustParseDays(s)
}

func date(year int, month time.Month, day int) leave.Date {
	return leave.NewDate(year, month, day)
}

// =============================================================================
// PAID/UNPAID SPLIT TESTS
// =============================================================================

func TestSplitPaidUnpaid_FullyCovered(t *testing.T) {
	paid, unpaid := leave.SplitPaidUnpaid(days("5"), days("25"))
	assert.True(t, paid.Equal(days("5")))
	assert.True(t, unpaid.IsZero())
}

func TestSplitPaidUnpaid_PartialCoverage(t *testing.T) {
	// GIVEN: 2 days remaining
	// WHEN: Splitting a 5-day request
	// THEN: 2 paid, 3 unpaid
	paid, unpaid := leave.SplitPaidUnpaid(days("5"), days("2"))
	assert.True(t, paid.Equal(days("2")))
	assert.True(t, unpaid.Equal(days("3")))
}

func TestSplitPaidUnpaid_ExhaustedBalance(t *testing.T) {
	paid, unpaid := leave.SplitPaidUnpaid(days("3"), days("0"))
	assert.True(t, paid.IsZero())
	assert.True(t, unpaid.Equal(days("3")))
}

func TestSplitPaidUnpaid_NegativeBalance_NeverNegativePaid(t *testing.T) {
	// An already-overdrawn balance must not produce a negative paid portion.
	paid, unpaid := leave.SplitPaidUnpaid(days("2"), days("-4"))
	assert.True(t, paid.IsZero())
	assert.True(t, unpaid.Equal(days("2")))
}

func TestSplitPaidUnpaid_HalfDay(t *testing.T) {
	paid, unpaid := leave.SplitPaidUnpaid(days("0.5"), days("10"))
	assert.True(t, paid.Equal(days("0.5")))
	assert.True(t, unpaid.IsZero())
}

func TestSplitPaidUnpaid_SumAlwaysEqualsTotal(t *testing.T) {
	cases := []struct{ total, remaining string }{
		{"5", "25"}, {"5", "2"}, {"5", "0"}, {"5", "-3"},
		{"0.5", "0.25"}, {"10", "2.5"}, {"1", "1"},
	}
	for _, tc := range cases {
		paid, unpaid := leave.SplitPaidUnpaid(days(tc.total), days(tc.remaining))
		assert.True(t, paid.Add(unpaid).Equal(days(tc.total)),
			"total=%s remaining=%s: paid %s + unpaid %s", tc.total, tc.remaining, paid, unpaid)
		assert.False(t, paid.IsNegative())
		assert.False(t, unpaid.IsNegative())
	}
}

// =============================================================================
// MONTH APPORTIONMENT TESTS
// =============================================================================

func TestApportion_SingleMonth(t *testing.T) {
	allocs := leave.Apportion(date(2025, time.March, 3), date(2025, time.March, 7), days("5"), days("5"))

	assert.Len(t, allocs, 1)
	assert.Equal(t, 2025, allocs[0].Year)
	assert.Equal(t, time.March, allocs[0].Month)
	assert.True(t, allocs[0].TotalDays.Equal(days("5")))
	assert.True(t, allocs[0].PaidDays.Equal(days("5")))
	assert.True(t, allocs[0].UnpaidDays.IsZero())
}

func TestApportion_SpansMonthBoundary(t *testing.T) {
	// GIVEN: A request Jan 28 - Feb 1 (5 days: 4 in January, 1 in February)
	// WHEN: Apportioning with all days paid
	// THEN: January gets 4, February gets 1
	allocs := leave.Apportion(date(2025, time.January, 28), date(2025, time.February, 1), days("5"), days("5"))

	assert.Len(t, allocs, 2)
	assert.Equal(t, time.January, allocs[0].Month)
	assert.True(t, allocs[0].TotalDays.Equal(days("4")), "january total = %s", allocs[0].TotalDays)
	assert.True(t, allocs[0].PaidDays.Equal(days("4")))
	assert.Equal(t, time.February, allocs[1].Month)
	assert.True(t, allocs[1].TotalDays.Equal(days("1")))
	assert.True(t, allocs[1].PaidDays.Equal(days("1")))
}

func TestApportion_PartiallyPaid_SumsReconcile(t *testing.T) {
	// 5-day span over a month boundary with only 2 days paid: the per-month
	// paid shares are fractional, but the sums must come back exact.
	allocs := leave.Apportion(date(2025, time.January, 28), date(2025, time.February, 1), days("5"), days("2"))

	sumTotal, sumPaid, sumUnpaid := leave.ZeroDays(), leave.ZeroDays(), leave.ZeroDays()
	for _, a := range allocs {
		sumTotal = sumTotal.Add(a.TotalDays)
		sumPaid = sumPaid.Add(a.PaidDays)
		sumUnpaid = sumUnpaid.Add(a.UnpaidDays)
		assert.True(t, a.TotalDays.Equal(a.PaidDays.Add(a.UnpaidDays)),
			"%s %d: total != paid + unpaid", a.Month, a.Year)
	}
	assert.True(t, sumTotal.Equal(days("5")), "sum of month totals = %s", sumTotal)
	assert.True(t, sumPaid.Equal(days("2")), "sum of month paid = %s", sumPaid)
	assert.True(t, sumUnpaid.Equal(days("3")), "sum of month unpaid = %s", sumUnpaid)
}

func TestApportion_ThreeMonths_NoDrift(t *testing.T) {
	// Jan 15 - Mar 10: 17 + 28 + 10 = 55 calendar days, 7 paid. The
	// prorated shares are repeating decimals; the last month absorbs the
	// remainder so the totals still reconcile exactly.
	allocs := leave.Apportion(date(2025, time.January, 15), date(2025, time.March, 10), days("55"), days("7"))

	assert.Len(t, allocs, 3)
	sumTotal, sumPaid := leave.ZeroDays(), leave.ZeroDays()
	for _, a := range allocs {
		sumTotal = sumTotal.Add(a.TotalDays)
		sumPaid = sumPaid.Add(a.PaidDays)
	}
	assert.True(t, sumTotal.Equal(days("55")), "sum of totals = %s", sumTotal)
	assert.True(t, sumPaid.Equal(days("7")), "sum of paid = %s", sumPaid)
}

func TestApportion_HalfDay(t *testing.T) {
	allocs := leave.Apportion(date(2025, time.June, 12), date(2025, time.June, 12), days("0.5"), days("0.5"))

	assert.Len(t, allocs, 1)
	assert.Equal(t, time.June, allocs[0].Month)
	assert.True(t, allocs[0].TotalDays.Equal(days("0.5")))
	assert.True(t, allocs[0].PaidDays.Equal(days("0.5")))
}

func TestApportion_SpansYearBoundary(t *testing.T) {
	allocs := leave.Apportion(date(2025, time.December, 30), date(2026, time.January, 2), days("4"), days("4"))

	assert.Len(t, allocs, 2)
	assert.Equal(t, 2025, allocs[0].Year)
	assert.Equal(t, time.December, allocs[0].Month)
	assert.True(t, allocs[0].TotalDays.Equal(days("2")))
	assert.Equal(t, 2026, allocs[1].Year)
	assert.Equal(t, time.January, allocs[1].Month)
	assert.True(t, allocs[1].TotalDays.Equal(days("2")))
}

// =============================================================================
// DATE ARITHMETIC TESTS
// =============================================================================

func TestSpanDays_Inclusive(t *testing.T) {
	assert.Equal(t, 1, leave.SpanDays(date(2025, time.March, 10), date(2025, time.March, 10)))
	assert.Equal(t, 5, leave.SpanDays(date(2025, time.January, 28), date(2025, time.February, 1)))
	assert.Equal(t, 365, leave.SpanDays(date(2025, time.January, 1), date(2025, time.December, 31)))
}

func TestOverlaps_ClosedIntervals(t *testing.T) {
	// Sharing a single boundary date counts as overlap.
	assert.True(t, leave.Overlaps(
		date(2025, time.March, 1), date(2025, time.March, 5),
		date(2025, time.March, 5), date(2025, time.March, 10)))

	assert.False(t, leave.Overlaps(
		date(2025, time.March, 1), date(2025, time.March, 5),
		date(2025, time.March, 6), date(2025, time.March, 10)))

	// Containment
	assert.True(t, leave.Overlaps(
		date(2025, time.March, 1), date(2025, time.March, 31),
		date(2025, time.March, 10), date(2025, time.March, 12)))
}
