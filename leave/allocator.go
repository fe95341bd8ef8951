/*
allocator.go - Paid/unpaid split and monthly apportionment

PURPOSE:
  Pure calendar arithmetic on a request's date span. Two jobs:

  1. Split a requested total into paid vs unpaid against the remaining
     balance: paid = min(total, max(0, remaining)). A request approved
     into an exhausted or negative balance becomes fully unpaid rather
     than overdrawing the ledger.

  2. Apportion a span (and its paid/unpaid split) across the calendar
     months it touches, proportional to the calendar days falling in
     each month. Half-day requests apportion their 0.5 into the single
     month containing the date.

EXACTNESS:
  Proportional division cannot represent every share exactly, so the
  last intersected month takes the exact remainder instead of its own
  quotient. The sums then reconcile by construction:

    sum(month.total) == request.total
    sum(month.paid)  == request.paid
    month.unpaid     == month.total - month.paid   (per month)

  Aggregation sums these allocations, so its monthly breakdown can
  never drift from the yearly totals.

SEE ALSO:
  - lifecycle.go: Calls the split at approval time
  - aggregate.go: Sums allocations into reports
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PAID / UNPAID SPLIT
// =============================================================================

// SplitPaidUnpaid divides a requested total against the remaining balance.
// The paid portion never exceeds what the balance can cover and never goes
// negative when the balance is already overdrawn.
func SplitPaidUnpaid(total, remaining Days) (paid, unpaid Days) {
	paid = total.Min(remaining.Max(ZeroDays()))
	unpaid = total.Sub(paid)
	return paid, unpaid
}

// =============================================================================
// MONTHLY APPORTIONMENT
// =============================================================================

// MonthAllocation is one calendar month's share of a request.
type MonthAllocation struct {
	Year       int
	Month      time.Month
	TotalDays  Days
	PaidDays   Days
	UnpaidDays Days
}

// monthSpan is the intersection of a request with one calendar month.
type monthSpan struct {
	year    int
	month   time.Month
	calDays int
}

// intersectMonths walks the months a closed date span touches and counts
// the calendar days of the span falling in each.
func intersectMonths(start, end Date) []monthSpan {
	var spans []monthSpan
	cursor := StartOfMonth(start.Year(), start.Month())
	for cursor.BeforeOrEqual(end) {
		monthEnd := EndOfMonth(cursor.Year(), cursor.Month())

		from := cursor
		if start.After(from) {
			from = start
		}
		to := monthEnd
		if end.Before(to) {
			to = end
		}

		spans = append(spans, monthSpan{
			year:    cursor.Year(),
			month:   cursor.Month(),
			calDays: SpanDays(from, to),
		})
		cursor = StartOfMonth(cursor.Year(), cursor.Month()).AddMonths(1)
	}
	return spans
}

// Apportion distributes a request's total and paid days across the months
// its span touches, proportional to calendar days in each month. The final
// month takes the exact remainder so the per-month figures sum back to the
// request's totals with no residue.
//
// A half-day request (total 0.5 on a single date) naturally lands entirely
// in that date's month.
func Apportion(start, end Date, total, paid Days) []MonthAllocation {
	spans := intersectMonths(start, end)
	if len(spans) == 0 {
		return nil
	}

	calTotal := 0
	for _, s := range spans {
		calTotal += s.calDays
	}

	allocations := make([]MonthAllocation, 0, len(spans))
	sumTotal, sumPaid := ZeroDays(), ZeroDays()
	for i, s := range spans {
		var monthTotal, monthPaid Days
		if i == len(spans)-1 {
			monthTotal = total.Sub(sumTotal)
			monthPaid = paid.Sub(sumPaid)
		} else {
			ratio := decimal.NewFromInt(int64(s.calDays)).Div(decimal.NewFromInt(int64(calTotal)))
			monthTotal = total.Mul(ratio)
			monthPaid = paid.Mul(ratio)
		}
		sumTotal = sumTotal.Add(monthTotal)
		sumPaid = sumPaid.Add(monthPaid)

		allocations = append(allocations, MonthAllocation{
			Year:       s.year,
			Month:      s.month,
			TotalDays:  monthTotal,
			PaidDays:   monthPaid,
			UnpaidDays: monthTotal.Sub(monthPaid),
		})
	}
	return allocations
}
