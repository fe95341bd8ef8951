/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DAY QUANTITIES:
  Day amounts cross the wire as decimal strings ("2.5", not 2.5) so
  half-days survive the round-trip without float artifacts.

VALIDATION:
  Validation is done in handlers and the engine, not in DTOs. DTOs are
  pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - leave/types.go: The domain model these project
*/
package api

import (
	"time"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// POLICY TYPES
// =============================================================================

// PolicyDTO represents a leave policy in API responses.
type PolicyDTO struct {
	ID                   string  `json:"id"`
	Name                 string  `json:"name"`
	LeaveType            string  `json:"leave_type"`
	TotalDaysPerYear     string  `json:"total_days_per_year"`
	CanCarryForward      bool    `json:"can_carry_forward"`
	MaxCarryForwardDays  string  `json:"max_carry_forward_days"`
	RequiresApproval     bool    `json:"requires_approval"`
	AllowHalfDay         bool    `json:"allow_half_day"`
	AdvanceNoticeDays    int     `json:"advance_notice_days"`
	MaxDaysPerRequest    *string `json:"max_days_per_request,omitempty"`
	AllowNegativeBalance bool    `json:"allow_negative_balance"`
	IsActive             bool    `json:"is_active"`
	CreatedAt            string  `json:"created_at,omitempty"`
	UpdatedAt            string  `json:"updated_at,omitempty"`
}

// CreatePolicyRequest is the request to create a policy.
type CreatePolicyRequest struct {
	Name                 string  `json:"name"`
	LeaveType            string  `json:"leave_type"`
	TotalDaysPerYear     string  `json:"total_days_per_year"`
	CanCarryForward      bool    `json:"can_carry_forward"`
	MaxCarryForwardDays  string  `json:"max_carry_forward_days"`
	RequiresApproval     bool    `json:"requires_approval"`
	AllowHalfDay         bool    `json:"allow_half_day"`
	AdvanceNoticeDays    int     `json:"advance_notice_days"`
	MaxDaysPerRequest    *string `json:"max_days_per_request,omitempty"`
	AllowNegativeBalance bool    `json:"allow_negative_balance"`
}

// UpdatePolicyRequest patches a policy; absent fields stay unchanged.
type UpdatePolicyRequest struct {
	Name                 *string `json:"name,omitempty"`
	TotalDaysPerYear     *string `json:"total_days_per_year,omitempty"`
	CanCarryForward      *bool   `json:"can_carry_forward,omitempty"`
	MaxCarryForwardDays  *string `json:"max_carry_forward_days,omitempty"`
	RequiresApproval     *bool   `json:"requires_approval,omitempty"`
	AllowHalfDay         *bool   `json:"allow_half_day,omitempty"`
	AdvanceNoticeDays    *int    `json:"advance_notice_days,omitempty"`
	MaxDaysPerRequest    *string `json:"max_days_per_request,omitempty"`
	ClearMaxPerRequest   bool    `json:"clear_max_days_per_request,omitempty"`
	AllowNegativeBalance *bool   `json:"allow_negative_balance,omitempty"`
}

// SetActiveRequest flips a policy's active flag.
type SetActiveRequest struct {
	Active bool `json:"active"`
}

// =============================================================================
// EMPLOYEE TYPES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"department"`
	HireDate   string `json:"hire_date"`
}

// CreateEmployeeRequest is the request to create or update an employee.
type CreateEmployeeRequest struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"department"`
	HireDate   string `json:"hire_date"`
}

// =============================================================================
// BALANCE TYPES
// =============================================================================

// BalanceDTO represents one ledger entry.
type BalanceDTO struct {
	EmployeeID  string `json:"employee_id"`
	LeaveType   string `json:"leave_type"`
	Year        int    `json:"year"`
	Entitlement string `json:"entitlement"`
	Used        string `json:"used"`
	Remaining   string `json:"remaining"`
}

// AdjustmentRequest is a manual entitlement correction.
type AdjustmentRequest struct {
	EmployeeID string `json:"employee_id"`
	LeaveType  string `json:"leave_type"`
	Year       int    `json:"year"`
	Delta      string `json:"delta"`
	Reason     string `json:"reason"`
}

// RolloverRequest triggers the year-end rollover.
type RolloverRequest struct {
	FromYear int `json:"from_year"`
}

// RolloverResultDTO reports one key's rollover outcome.
type RolloverResultDTO struct {
	EmployeeID  string      `json:"employee_id"`
	LeaveType   string      `json:"leave_type"`
	CarriedOver string      `json:"carried_over,omitempty"`
	NewBalance  *BalanceDTO `json:"new_balance,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// RequestDTO represents a leave request in API responses.
type RequestDTO struct {
	ID            string `json:"id"`
	EmployeeID    string `json:"employee_id"`
	LeaveType     string `json:"leave_type"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	TotalDays     string `json:"total_days"`
	IsHalfDay     bool   `json:"is_half_day"`
	HalfDayPeriod string `json:"half_day_period,omitempty"`
	Status        string `json:"status"`
	IsPaid        bool   `json:"is_paid"`
	PaidDays      string `json:"paid_days"`
	UnpaidDays    string `json:"unpaid_days"`
	Reason        string `json:"reason,omitempty"`
	SubmittedAt   string `json:"submitted_at"`
	ReviewedAt    string `json:"reviewed_at,omitempty"`
	ReviewedBy    string `json:"reviewed_by,omitempty"`
	ReviewNote    string `json:"review_note,omitempty"`
}

// SubmitRequestDTO is the request body for a leave submission.
type SubmitRequestDTO struct {
	LeaveType     string `json:"leave_type"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	IsHalfDay     bool   `json:"is_half_day"`
	HalfDayPeriod string `json:"half_day_period,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// ReviewRequestDTO carries the reviewer's decision context.
type ReviewRequestDTO struct {
	Reviewer string `json:"reviewer"`
	Note     string `json:"note,omitempty"`
}

// SetPaidRequest overrides an approved request's paid classification.
type SetPaidRequest struct {
	IsPaid bool   `json:"is_paid"`
	Actor  string `json:"actor"`
}

// =============================================================================
// STATS TYPES
// =============================================================================

// TypeTotalsDTO is one leave type's figures within a year.
type TypeTotalsDTO struct {
	LeaveType  string `json:"leave_type"`
	PaidDays   string `json:"paid_days"`
	UnpaidDays string `json:"unpaid_days"`
	TotalDays  string `json:"total_days"`
}

// MonthTotalsDTO is one calendar month's figures.
type MonthTotalsDTO struct {
	Month      int    `json:"month"`
	PaidDays   string `json:"paid_days"`
	UnpaidDays string `json:"unpaid_days"`
	TotalDays  string `json:"total_days"`
}

// YearlyStatsDTO is one employee's yearly report entry.
type YearlyStatsDTO struct {
	Employee   EmployeeDTO     `json:"employee"`
	Year       int             `json:"year"`
	PaidDays   string          `json:"paid_days"`
	UnpaidDays string          `json:"unpaid_days"`
	TotalDays  string          `json:"total_days"`
	ByType     []TypeTotalsDTO `json:"by_type"`
	Requests   []RequestDTO    `json:"requests"`
}

// MonthlyStatsDTO is one employee's twelve-month report entry.
type MonthlyStatsDTO struct {
	Employee    EmployeeDTO      `json:"employee"`
	Year        int              `json:"year"`
	Months      []MonthTotalsDTO `json:"months"`
	YearlyTotal MonthTotalsDTO   `json:"yearly_total"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toPolicyDTO(p *leave.LeavePolicy) PolicyDTO {
	dto := PolicyDTO{
		ID:                   string(p.ID),
		Name:                 p.Name,
		LeaveType:            string(p.LeaveType),
		TotalDaysPerYear:     p.TotalDaysPerYear.String(),
		CanCarryForward:      p.CanCarryForward,
		MaxCarryForwardDays:  p.MaxCarryForwardDays.String(),
		RequiresApproval:     p.RequiresApproval,
		AllowHalfDay:         p.AllowHalfDay,
		AdvanceNoticeDays:    p.AdvanceNoticeDays,
		AllowNegativeBalance: p.AllowNegativeBalance,
		IsActive:             p.IsActive,
		CreatedAt:            p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            p.UpdatedAt.Format(time.RFC3339),
	}
	if p.MaxDaysPerRequest != nil {
		s := p.MaxDaysPerRequest.String()
		dto.MaxDaysPerRequest = &s
	}
	return dto
}

func toEmployeeDTO(e leave.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:         string(e.ID),
		Name:       e.Name,
		Email:      e.Email,
		Department: e.Department,
		HireDate:   e.HireDate.String(),
	}
}

func toBalanceDTO(b *leave.LeaveBalance) BalanceDTO {
	return BalanceDTO{
		EmployeeID:  string(b.EmployeeID),
		LeaveType:   string(b.LeaveType),
		Year:        b.Year,
		Entitlement: b.Entitlement.String(),
		Used:        b.Used.String(),
		Remaining:   b.Remaining().String(),
	}
}

func toRequestDTO(r *leave.LeaveRequest) RequestDTO {
	dto := RequestDTO{
		ID:            string(r.ID),
		EmployeeID:    string(r.EmployeeID),
		LeaveType:     string(r.LeaveType),
		StartDate:     r.StartDate.String(),
		EndDate:       r.EndDate.String(),
		TotalDays:     r.TotalDays.String(),
		IsHalfDay:     r.IsHalfDay,
		HalfDayPeriod: string(r.HalfDayPeriod),
		Status:        string(r.Status),
		IsPaid:        r.IsPaid,
		PaidDays:      r.PaidDays.String(),
		UnpaidDays:    r.UnpaidDays.String(),
		Reason:        r.Reason,
		SubmittedAt:   r.SubmittedAt.Format(time.RFC3339),
		ReviewedBy:    r.ReviewedBy,
		ReviewNote:    r.ReviewNote,
	}
	if r.ReviewedAt != nil {
		dto.ReviewedAt = r.ReviewedAt.Format(time.RFC3339)
	}
	return dto
}

func toRequestDTOs(requests []*leave.LeaveRequest) []RequestDTO {
	dtos := make([]RequestDTO, 0, len(requests))
	for _, r := range requests {
		dtos = append(dtos, toRequestDTO(r))
	}
	return dtos
}

func toMonthTotalsDTO(m leave.MonthTotals) MonthTotalsDTO {
	return MonthTotalsDTO{
		Month:      int(m.Month),
		PaidDays:   m.PaidDays.String(),
		UnpaidDays: m.UnpaidDays.String(),
		TotalDays:  m.TotalDays.String(),
	}
}

func toYearlyStatsDTO(s leave.EmployeeYearlyStats) YearlyStatsDTO {
	dto := YearlyStatsDTO{
		Employee:   toEmployeeDTO(s.Employee),
		Year:       s.Year,
		PaidDays:   s.PaidDays.String(),
		UnpaidDays: s.UnpaidDays.String(),
		TotalDays:  s.TotalDays.String(),
		ByType:     make([]TypeTotalsDTO, 0, len(s.ByType)),
		Requests:   toRequestDTOs(s.Requests),
	}
	for _, t := range s.ByType {
		dto.ByType = append(dto.ByType, TypeTotalsDTO{
			LeaveType:  string(t.LeaveType),
			PaidDays:   t.PaidDays.String(),
			UnpaidDays: t.UnpaidDays.String(),
			TotalDays:  t.TotalDays.String(),
		})
	}
	return dto
}

func toMonthlyStatsDTO(s leave.EmployeeMonthlyStats) MonthlyStatsDTO {
	dto := MonthlyStatsDTO{
		Employee:    toEmployeeDTO(s.Employee),
		Year:        s.Year,
		Months:      make([]MonthTotalsDTO, 0, len(s.Months)),
		YearlyTotal: toMonthTotalsDTO(s.YearlyTotal),
	}
	for _, m := range s.Months {
		dto.Months = append(dto.Months, toMonthTotalsDTO(m))
	}
	return dto
}
