/*
aggregate.go - Reporting over approved requests

PURPOSE:
  Read-side statistics per employee and department: yearly totals by
  leave type, twelve-month breakdowns, and a current-month view. Pure
  reporting: it reads requests and the employee directory, never the
  other way around, and never writes.

RECONCILIATION:
  Yearly and monthly figures are both derived from the same monthly
  apportionment of each approved request, so a year's total always
  equals the sum of its twelve months, with no rounding drift, even for
  requests spanning a month or year boundary. Only the within-year
  portion of a boundary-spanning request counts toward that year.

CONSISTENCY:
  Reads are snapshot views: no locking against concurrent approvals.
  A report observes either all or none of any single approval because
  the split is persisted on the request in one write.
*/
package leave

import (
	"context"
	"time"
)

// =============================================================================
// FILTER AND RESULT SHAPES
// =============================================================================

// StatsFilter narrows a report's scope. Empty means the whole organization;
// explicit EmployeeIDs win over Department.
type StatsFilter struct {
	Department  string
	EmployeeIDs []EmployeeID
}

// TypeTotals is one leave type's share of an employee's year.
type TypeTotals struct {
	LeaveType  LeaveType
	PaidDays   Days
	UnpaidDays Days
	TotalDays  Days
}

// MonthTotals is one calendar month's figures.
type MonthTotals struct {
	Month      time.Month
	PaidDays   Days
	UnpaidDays Days
	TotalDays  Days
}

// EmployeeYearlyStats sums an employee's approved leave for one year,
// grouped by leave type, with the contributing requests for drill-down.
type EmployeeYearlyStats struct {
	Employee   Employee
	Year       int
	PaidDays   Days
	UnpaidDays Days
	TotalDays  Days
	ByType     []TypeTotals
	Requests   []*LeaveRequest
}

// EmployeeMonthlyStats breaks an employee's year into twelve months.
// YearlyTotal is the sum of the twelve entries.
type EmployeeMonthlyStats struct {
	Employee    Employee
	Year        int
	Months      [12]MonthTotals
	YearlyTotal MonthTotals
}

// =============================================================================
// AGGREGATION ENGINE
// =============================================================================

type AggregationEngine struct {
	Requests  RequestRepository
	Directory EmployeeDirectory
}

func NewAggregationEngine(requests RequestRepository, directory EmployeeDirectory) *AggregationEngine {
	return &AggregationEngine{Requests: requests, Directory: directory}
}

// scope resolves a filter into the employees it covers.
func (a *AggregationEngine) scope(ctx context.Context, filter StatsFilter) ([]*Employee, error) {
	if len(filter.EmployeeIDs) > 0 {
		employees := make([]*Employee, 0, len(filter.EmployeeIDs))
		for _, id := range filter.EmployeeIDs {
			emp, err := a.Directory.GetEmployee(ctx, id)
			if err != nil {
				return nil, err
			}
			if emp != nil {
				employees = append(employees, emp)
			}
		}
		return employees, nil
	}
	if filter.Department != "" {
		return a.Directory.ListByDepartment(ctx, filter.Department)
	}
	return a.Directory.ListEmployees(ctx)
}

// approvedInYear returns an employee's approved requests whose spans touch
// the year, together with the apportioned allocations restricted to it.
func (a *AggregationEngine) approvedInYear(ctx context.Context, emp EmployeeID, year int) ([]*LeaveRequest, map[RequestID][]MonthAllocation, error) {
	all, err := a.Requests.ListByEmployee(ctx, emp)
	if err != nil {
		return nil, nil, err
	}

	yearStart, yearEnd := StartOfYear(year), EndOfYear(year)
	var touched []*LeaveRequest
	allocations := make(map[RequestID][]MonthAllocation)
	for _, r := range all {
		if r.Status != StatusApproved {
			continue
		}
		if !Overlaps(r.StartDate, r.EndDate, yearStart, yearEnd) {
			continue
		}
		touched = append(touched, r)

		var inYear []MonthAllocation
		for _, alloc := range Apportion(r.StartDate, r.EndDate, r.TotalDays, r.PaidDays) {
			if alloc.Year == year {
				inYear = append(inYear, alloc)
			}
		}
		allocations[r.ID] = inYear
	}
	return touched, allocations, nil
}

// YearlyStats reports each in-scope employee's approved leave for the year,
// totalled and grouped by leave type.
func (a *AggregationEngine) YearlyStats(ctx context.Context, filter StatsFilter, year int) ([]EmployeeYearlyStats, error) {
	employees, err := a.scope(ctx, filter)
	if err != nil {
		return nil, err
	}

	stats := make([]EmployeeYearlyStats, 0, len(employees))
	for _, emp := range employees {
		requests, allocations, err := a.approvedInYear(ctx, emp.ID, year)
		if err != nil {
			return nil, err
		}

		entry := EmployeeYearlyStats{
			Employee:   *emp,
			Year:       year,
			PaidDays:   ZeroDays(),
			UnpaidDays: ZeroDays(),
			TotalDays:  ZeroDays(),
			Requests:   requests,
		}
		byType := make(map[LeaveType]*TypeTotals)
		for _, r := range requests {
			for _, alloc := range allocations[r.ID] {
				entry.PaidDays = entry.PaidDays.Add(alloc.PaidDays)
				entry.UnpaidDays = entry.UnpaidDays.Add(alloc.UnpaidDays)
				entry.TotalDays = entry.TotalDays.Add(alloc.TotalDays)

				t, ok := byType[r.LeaveType]
				if !ok {
					t = &TypeTotals{
						LeaveType:  r.LeaveType,
						PaidDays:   ZeroDays(),
						UnpaidDays: ZeroDays(),
						TotalDays:  ZeroDays(),
					}
					byType[r.LeaveType] = t
				}
				t.PaidDays = t.PaidDays.Add(alloc.PaidDays)
				t.UnpaidDays = t.UnpaidDays.Add(alloc.UnpaidDays)
				t.TotalDays = t.TotalDays.Add(alloc.TotalDays)
			}
		}
		for _, lt := range LeaveTypes() {
			if t, ok := byType[lt]; ok {
				entry.ByType = append(entry.ByType, *t)
			}
		}
		stats = append(stats, entry)
	}
	return stats, nil
}

// MonthlyStats reports each in-scope employee's year as twelve months whose
// sum is the yearly total.
func (a *AggregationEngine) MonthlyStats(ctx context.Context, filter StatsFilter, year int) ([]EmployeeMonthlyStats, error) {
	employees, err := a.scope(ctx, filter)
	if err != nil {
		return nil, err
	}

	stats := make([]EmployeeMonthlyStats, 0, len(employees))
	for _, emp := range employees {
		requests, allocations, err := a.approvedInYear(ctx, emp.ID, year)
		if err != nil {
			return nil, err
		}

		entry := EmployeeMonthlyStats{Employee: *emp, Year: year}
		for m := range entry.Months {
			entry.Months[m] = MonthTotals{
				Month:      time.Month(m + 1),
				PaidDays:   ZeroDays(),
				UnpaidDays: ZeroDays(),
				TotalDays:  ZeroDays(),
			}
		}
		entry.YearlyTotal = MonthTotals{PaidDays: ZeroDays(), UnpaidDays: ZeroDays(), TotalDays: ZeroDays()}

		for _, r := range requests {
			for _, alloc := range allocations[r.ID] {
				m := &entry.Months[int(alloc.Month)-1]
				m.PaidDays = m.PaidDays.Add(alloc.PaidDays)
				m.UnpaidDays = m.UnpaidDays.Add(alloc.UnpaidDays)
				m.TotalDays = m.TotalDays.Add(alloc.TotalDays)

				entry.YearlyTotal.PaidDays = entry.YearlyTotal.PaidDays.Add(alloc.PaidDays)
				entry.YearlyTotal.UnpaidDays = entry.YearlyTotal.UnpaidDays.Add(alloc.UnpaidDays)
				entry.YearlyTotal.TotalDays = entry.YearlyTotal.TotalDays.Add(alloc.TotalDays)
			}
		}
		stats = append(stats, entry)
	}
	return stats, nil
}

// CurrentMonthStats restricts the monthly view to the month containing
// asOf, keeping only employees with nonzero days in that window.
func (a *AggregationEngine) CurrentMonthStats(ctx context.Context, filter StatsFilter, asOf Date) ([]EmployeeMonthlyStats, error) {
	monthly, err := a.MonthlyStats(ctx, filter, asOf.Year())
	if err != nil {
		return nil, err
	}

	idx := int(asOf.Month()) - 1
	var current []EmployeeMonthlyStats
	for _, entry := range monthly {
		month := entry.Months[idx]
		if month.TotalDays.IsZero() {
			continue
		}
		trimmed := EmployeeMonthlyStats{
			Employee:    entry.Employee,
			Year:        entry.Year,
			YearlyTotal: month,
		}
		trimmed.Months[idx] = month
		for m := range trimmed.Months {
			if m == idx {
				continue
			}
			trimmed.Months[m] = MonthTotals{
				Month:      time.Month(m + 1),
				PaidDays:   ZeroDays(),
				UnpaidDays: ZeroDays(),
				TotalDays:  ZeroDays(),
			}
		}
		current = append(current, trimmed)
	}
	return current, nil
}
