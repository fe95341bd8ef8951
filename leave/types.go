/*
Package leave implements the leave accounting engine.

PURPOSE:
  This package contains the rules that turn a set of approved leave
  requests into an authoritative per-employee balance and accurate
  paid/unpaid day statistics by year, month, and leave type. It enforces
  entitlement, overlap, and carry-forward invariants.

KEY CONCEPTS IN THIS FILE (types.go):
  - Days: A day quantity (supports fractional half-days)
  - Date: A calendar day (the engine counts raw calendar days)
  - LeaveType/RequestStatus/HalfDayPeriod: Domain enumerations
  - Employee/Request/Policy IDs: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal so half-days and month proration
     never accumulate floating-point drift
  2. Type Safety: Strong typing for IDs prevents mixing employee/policy IDs
  3. Purity: Calculation components (allocator, aggregation) have no
     persistence side effects

SEE ALSO:
  - policy.go: Leave policies and the registry invariants
  - ledger.go: Per-(employee, leave type, year) balances
  - allocator.go: Paid/unpaid splitting and month apportionment
  - lifecycle.go: The request state machine
*/
package leave

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DAYS - Day quantity (fractional for half-day requests)
// =============================================================================

type Days struct {
	Value decimal.Decimal
}

func NewDays(value float64) Days     { return Days{Value: decimal.NewFromFloat(value)} }
func DaysFromInt(value int) Days     { return Days{Value: decimal.NewFromInt(int64(value))} }
func ZeroDays() Days                 { return Days{Value: decimal.Zero} }
func HalfDay() Days                  { return Days{Value: decimal.NewFromFloat(0.5)} }

func ParseDays(s string) (Days, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ZeroDays(), fmt.Errorf("invalid day quantity %q: %w", s, err)
	}
	return Days{Value: d}, nil
}

func MustParseDays(s string) Days {
	d, err := ParseDays(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Days) Add(o Days) Days            { return Days{Value: d.Value.Add(o.Value)} }
func (d Days) Sub(o Days) Days            { return Days{Value: d.Value.Sub(o.Value)} }
func (d Days) Mul(s decimal.Decimal) Days { return Days{Value: d.Value.Mul(s)} }
func (d Days) Div(s decimal.Decimal) Days { return Days{Value: d.Value.Div(s)} }
func (d Days) Neg() Days                  { return Days{Value: d.Value.Neg()} }
func (d Days) IsNegative() bool           { return d.Value.IsNegative() }
func (d Days) IsZero() bool               { return d.Value.IsZero() }
func (d Days) IsPositive() bool           { return d.Value.IsPositive() }
func (d Days) GreaterThan(o Days) bool    { return d.Value.GreaterThan(o.Value) }
func (d Days) LessThan(o Days) bool       { return d.Value.LessThan(o.Value) }
func (d Days) Equal(o Days) bool          { return d.Value.Equal(o.Value) }

func (d Days) Min(o Days) Days {
	if d.LessThan(o) {
		return d
	}
	return o
}

func (d Days) Max(o Days) Days {
	if d.GreaterThan(o) {
		return d
	}
	return o
}

func (d Days) Float64() float64 {
	f, _ := d.Value.Float64()
	return f
}

func (d Days) String() string { return d.Value.String() }

// =============================================================================
// DATE - Calendar day (the engine's time granularity)
// =============================================================================

// Date is a calendar day, normalized to midnight UTC. Request spans are
// closed intervals of Dates; the engine counts raw calendar days and leaves
// business-day/holiday exclusion to an external calendar service.
type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to its UTC calendar day.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

func Today() Date { return DateOf(time.Now()) }

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// Comparison
func (d Date) Before(o Date) bool        { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool         { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool         { return d.Time.Equal(o.Time) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }
func (d Date) AfterOrEqual(o Date) bool  { return !d.Before(o) }

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{Time: d.Time.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{Time: d.Time.AddDate(0, n, 0)} }
func (d Date) AddYears(n int) Date  { return Date{Time: d.Time.AddDate(n, 0, 0)} }

// Properties
func (d Date) Year() int         { return d.Time.Year() }
func (d Date) Month() time.Month { return d.Time.Month() }
func (d Date) Day() int          { return d.Time.Day() }
func (d Date) IsZero() bool      { return d.Time.IsZero() }
func (d Date) String() string    { return d.Time.Format("2006-01-02") }

// SpanDays returns the inclusive calendar-day count of [from, to].
// SpanDays(Jan 28, Feb 1) == 5.
func SpanDays(from, to Date) int {
	return int(to.Time.Sub(from.Time).Hours()/24) + 1
}

// Overlaps reports whether two closed date intervals intersect:
// startA <= endB AND startB <= endA.
func Overlaps(startA, endA, startB, endB Date) bool {
	return startA.BeforeOrEqual(endB) && startB.BeforeOrEqual(endA)
}

func StartOfMonth(year int, month time.Month) Date { return NewDate(year, month, 1) }

func EndOfMonth(year int, month time.Month) Date {
	t := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	return Date{Time: t}
}

func StartOfYear(year int) Date { return NewDate(year, time.January, 1) }
func EndOfYear(year int) Date   { return NewDate(year, time.December, 31) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type PolicyID string
type RequestID string

// =============================================================================
// LEAVE TYPES
// =============================================================================

// LeaveType names a category of leave. One active policy governs each
// leave type at a time; balances are tracked per (employee, type, year).
type LeaveType string

const (
	LeaveAnnual      LeaveType = "annual"
	LeaveSick        LeaveType = "sick"
	LeavePersonal    LeaveType = "personal"
	LeaveMaternity   LeaveType = "maternity"
	LeavePaternity   LeaveType = "paternity"
	LeaveBereavement LeaveType = "bereavement"
	LeaveUnpaid      LeaveType = "unpaid"
)

// LeaveTypes returns every known leave type in a stable order.
func LeaveTypes() []LeaveType {
	return []LeaveType{
		LeaveAnnual, LeaveSick, LeavePersonal, LeaveMaternity,
		LeavePaternity, LeaveBereavement, LeaveUnpaid,
	}
}

// =============================================================================
// REQUEST STATUS
// =============================================================================

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

// HalfDayPeriod says which half of the day a half-day request covers.
type HalfDayPeriod string

const (
	HalfDayNone      HalfDayPeriod = ""
	HalfDayMorning   HalfDayPeriod = "morning"
	HalfDayAfternoon HalfDayPeriod = "afternoon"
)

// =============================================================================
// EMPLOYEE - Directory record used for aggregation grouping
// =============================================================================

type Employee struct {
	ID         EmployeeID
	Name       string
	Email      string
	Department string
	HireDate   Date
}
