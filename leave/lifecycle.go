/*
lifecycle.go - The leave request state machine

PURPOSE:
  Governs a leave request from submission through review:

    Pending ──approve──▶ Approved   (isPaid may still be toggled)
        └────reject────▶ Rejected

  Status transitions exactly once. Cancellation of a pending request is
  a caller-initiated reject with no special-cased state.

SUBMISSION:
  Validates date ordering, half-day eligibility, advance notice, the
  per-request cap, and overlap against the employee's existing pending
  and approved requests (closed intervals at both ends). Availability
  is checked advisorily: a shortfall rejects the submission unless the
  policy tolerates negative balance, in which case the request is
  accepted and split into paid/unpaid at approval. Pending requests do
  not pre-reserve balance.

APPROVAL:
  Runs under the ledger's per-(employee, leave type, year) lock. The
  split uses the balance as of approval, not submission, and only the
  paid portion is committed; unpaid days are recorded on the request
  and never push the ledger below zero.

EVENTS:
  Every transition emits a typed event to the configured sink.
  Delivery is not this engine's concern.
*/
package leave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// LEAVE REQUEST
// =============================================================================

type LeaveRequest struct {
	ID         RequestID
	EmployeeID EmployeeID
	LeaveType  LeaveType

	// StartDate and EndDate are inclusive calendar dates.
	StartDate Date
	EndDate   Date

	// TotalDays is fractional for half-day requests.
	TotalDays     Days
	IsHalfDay     bool
	HalfDayPeriod HalfDayPeriod

	Status RequestStatus

	// IsPaid and the day-level split are set at approval. The split is
	// what reporting apportions; the boolean is the request-level summary
	// (true only when no day went unpaid) and may be overridden by a
	// reviewer afterwards without recalculating the split.
	IsPaid     bool
	PaidDays   Days
	UnpaidDays Days

	Reason      string
	SubmittedAt time.Time
	ReviewedAt  *time.Time
	ReviewedBy  string
	ReviewNote  string
}

// LedgerYear is the balance year a request consumes from: the year the
// leave starts in, even when the span crosses into January.
func (r *LeaveRequest) LedgerYear() int { return r.StartDate.Year() }

// SubmitInput carries everything a submission needs.
type SubmitInput struct {
	EmployeeID    EmployeeID
	LeaveType     LeaveType
	StartDate     Date
	EndDate       Date
	IsHalfDay     bool
	HalfDayPeriod HalfDayPeriod
	Reason        string
}

// =============================================================================
// REQUEST LIFECYCLE
// =============================================================================

type RequestLifecycle struct {
	Requests RequestRepository
	Ledger   *BalanceLedger
	Registry *PolicyRegistry
	Events   EventSink
	Now      func() time.Time
}

func NewRequestLifecycle(requests RequestRepository, ledger *BalanceLedger, registry *PolicyRegistry, events EventSink) *RequestLifecycle {
	if events == nil {
		events = NoopSink{}
	}
	return &RequestLifecycle{
		Requests: requests,
		Ledger:   ledger,
		Registry: registry,
		Events:   events,
		Now:      time.Now,
	}
}

// Submit validates a new request and persists it as pending. When the
// governing policy does not require approval, the request is approved
// immediately on behalf of the system.
func (lc *RequestLifecycle) Submit(ctx context.Context, input SubmitInput) (*LeaveRequest, error) {
	if input.EmployeeID == "" {
		return nil, &ValidationError{Field: "employeeId", Detail: "required"}
	}
	if input.StartDate.IsZero() || input.EndDate.IsZero() {
		return nil, &ValidationError{Field: "dates", Detail: "start and end dates are required"}
	}
	if input.EndDate.Before(input.StartDate) {
		return nil, &ValidationError{Field: "endDate", Detail: "must not precede startDate"}
	}

	policy, err := lc.Registry.ActiveFor(ctx, input.LeaveType)
	if err != nil {
		return nil, err
	}

	total := DaysFromInt(SpanDays(input.StartDate, input.EndDate))
	if input.IsHalfDay {
		if !policy.AllowHalfDay {
			return nil, &PolicyViolationError{PolicyID: policy.ID, Reason: "half-day requests are not permitted for " + string(input.LeaveType)}
		}
		if !input.StartDate.Equal(input.EndDate) {
			return nil, &ValidationError{Field: "endDate", Detail: "half-day requests must cover a single date"}
		}
		if input.HalfDayPeriod != HalfDayMorning && input.HalfDayPeriod != HalfDayAfternoon {
			return nil, &ValidationError{Field: "halfDayPeriod", Detail: "must be morning or afternoon"}
		}
		total = HalfDay()
	}

	if policy.AdvanceNoticeDays > 0 {
		earliest := DateOf(lc.Now()).AddDays(policy.AdvanceNoticeDays)
		if input.StartDate.Before(earliest) {
			return nil, &PolicyViolationError{
				PolicyID: policy.ID,
				Reason:   "requires advance notice; earliest permitted start is " + earliest.String(),
			}
		}
	}
	if policy.MaxDaysPerRequest != nil && total.GreaterThan(*policy.MaxDaysPerRequest) {
		return nil, &PolicyViolationError{
			PolicyID: policy.ID,
			Reason:   "exceeds the per-request limit of " + policy.MaxDaysPerRequest.String() + " days",
		}
	}

	if err := lc.checkOverlap(ctx, input.EmployeeID, input.StartDate, input.EndDate); err != nil {
		return nil, err
	}

	year := input.StartDate.Year()
	shortfall, err := lc.Ledger.CheckAvailability(ctx, input.EmployeeID, input.LeaveType, year, total)
	if err != nil {
		return nil, err
	}
	if shortfall.IsPositive() && !policy.AllowNegativeBalance {
		balance, berr := lc.Ledger.Balance(ctx, input.EmployeeID, input.LeaveType, year)
		if berr != nil {
			return nil, berr
		}
		return nil, &InsufficientBalanceError{
			EmployeeID: input.EmployeeID,
			LeaveType:  input.LeaveType,
			Year:       year,
			Requested:  total,
			Remaining:  balance.Remaining(),
			Shortfall:  shortfall,
		}
	}

	request := &LeaveRequest{
		ID:            RequestID(uuid.NewString()),
		EmployeeID:    input.EmployeeID,
		LeaveType:     input.LeaveType,
		StartDate:     input.StartDate,
		EndDate:       input.EndDate,
		TotalDays:     total,
		IsHalfDay:     input.IsHalfDay,
		HalfDayPeriod: input.HalfDayPeriod,
		Status:        StatusPending,
		Reason:        input.Reason,
		SubmittedAt:   lc.Now(),
	}
	if err := lc.Requests.SaveRequest(ctx, request); err != nil {
		return nil, err
	}
	lc.emit(EventSubmitted, request, string(input.EmployeeID))

	if !policy.RequiresApproval {
		return lc.Approve(ctx, request.ID, "system", "auto-approved by policy")
	}
	return request, nil
}

// checkOverlap rejects a span intersecting any of the employee's pending
// or approved requests. Intervals are closed at both ends, so sharing a
// single date counts as a conflict.
func (lc *RequestLifecycle) checkOverlap(ctx context.Context, emp EmployeeID, start, end Date) error {
	active, err := lc.Requests.ListActiveByEmployee(ctx, emp)
	if err != nil {
		return err
	}
	for _, existing := range active {
		if Overlaps(start, end, existing.StartDate, existing.EndDate) {
			return &OverlapError{
				EmployeeID: emp,
				ConflictID: existing.ID,
				Start:      existing.StartDate,
				End:        existing.EndDate,
			}
		}
	}
	return nil
}

// Approve transitions a pending request to approved and commits its paid
// portion to the ledger. The paid/unpaid split uses the balance at this
// moment, not at submission, and the whole validate-then-commit sequence
// is serialized per ledger key.
func (lc *RequestLifecycle) Approve(ctx context.Context, id RequestID, reviewer, note string) (*LeaveRequest, error) {
	request, err := lc.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}

	year := request.LedgerYear()
	unlock := lc.Ledger.Lock(request.EmployeeID, request.LeaveType, year)
	defer unlock()

	// Re-read under the lock: a concurrent reviewer may have transitioned
	// the request between the first read and lock acquisition.
	request, err = lc.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status != StatusPending {
		return nil, &InvalidStateError{RequestID: id, Status: request.Status, Action: "approve"}
	}

	balance, err := lc.Ledger.Balance(ctx, request.EmployeeID, request.LeaveType, year)
	if err != nil {
		return nil, err
	}
	paid, unpaid := SplitPaidUnpaid(request.TotalDays, balance.Remaining())

	if paid.IsPositive() {
		if _, err := lc.Ledger.ApplyApproval(ctx, request.EmployeeID, request.LeaveType, year, paid); err != nil {
			return nil, err
		}
	}

	now := lc.Now()
	request.Status = StatusApproved
	request.PaidDays = paid
	request.UnpaidDays = unpaid
	request.IsPaid = unpaid.IsZero()
	request.ReviewedAt = &now
	request.ReviewedBy = reviewer
	request.ReviewNote = note

	if err := lc.Requests.SaveRequest(ctx, request); err != nil {
		// The ledger decrement is already visible; undo it so a failed
		// persistence round-trip leaves no phantom consumption.
		if paid.IsPositive() {
			if _, rerr := lc.Ledger.Reverse(ctx, request.EmployeeID, request.LeaveType, year, paid); rerr != nil {
				return nil, errors.Join(err, fmt.Errorf("reversing %s committed days: %w", paid, rerr))
			}
		}
		return nil, err
	}
	lc.emit(EventApproved, request, reviewer)
	return request, nil
}

// Reject transitions a pending request to rejected. No balance effect,
// but the transition still serializes on the ledger key so a concurrent
// approval cannot slip in between the status check and the write.
func (lc *RequestLifecycle) Reject(ctx context.Context, id RequestID, reviewer, reason string) (*LeaveRequest, error) {
	request, err := lc.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := lc.Ledger.Lock(request.EmployeeID, request.LeaveType, request.LedgerYear())
	defer unlock()

	request, err = lc.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status != StatusPending {
		return nil, &InvalidStateError{RequestID: id, Status: request.Status, Action: "reject"}
	}

	now := lc.Now()
	request.Status = StatusRejected
	request.ReviewedAt = &now
	request.ReviewedBy = reviewer
	request.ReviewNote = reason

	if err := lc.Requests.SaveRequest(ctx, request); err != nil {
		return nil, err
	}
	lc.emit(EventRejected, request, reviewer)
	return request, nil
}

// Cancel withdraws a pending request before review. Modeled as a reject
// initiated by the employee rather than a distinct state.
func (lc *RequestLifecycle) Cancel(ctx context.Context, id RequestID, actor string) (*LeaveRequest, error) {
	return lc.Reject(ctx, id, actor, "cancelled by requester")
}

// SetPaidStatus overrides the paid classification of an approved request.
// A reviewer override for reporting, not a recalculation: the day-level
// split and the ledger decrement stay as committed at approval.
func (lc *RequestLifecycle) SetPaidStatus(ctx context.Context, id RequestID, isPaid bool, actor string) (*LeaveRequest, error) {
	request, err := lc.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := lc.Ledger.Lock(request.EmployeeID, request.LeaveType, request.LedgerYear())
	defer unlock()

	request, err = lc.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status != StatusApproved {
		return nil, &InvalidStateError{RequestID: id, Status: request.Status, Action: "set paid status"}
	}
	if request.IsPaid == isPaid {
		return request, nil
	}

	request.IsPaid = isPaid
	if err := lc.Requests.SaveRequest(ctx, request); err != nil {
		return nil, err
	}
	lc.emit(EventPaidStatusChanged, request, actor)
	return request, nil
}

// Get returns one request.
func (lc *RequestLifecycle) Get(ctx context.Context, id RequestID) (*LeaveRequest, error) {
	return lc.mustGet(ctx, id)
}

// History lists all of an employee's requests regardless of status.
func (lc *RequestLifecycle) History(ctx context.Context, emp EmployeeID) ([]*LeaveRequest, error) {
	return lc.Requests.ListByEmployee(ctx, emp)
}

// PendingQueue lists every request awaiting review.
func (lc *RequestLifecycle) PendingQueue(ctx context.Context) ([]*LeaveRequest, error) {
	return lc.Requests.ListPending(ctx)
}

func (lc *RequestLifecycle) mustGet(ctx context.Context, id RequestID) (*LeaveRequest, error) {
	request, err := lc.Requests.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	return request, nil
}

func (lc *RequestLifecycle) emit(kind EventKind, request *LeaveRequest, actor string) {
	lc.Events.Emit(Event{Kind: kind, Request: *request, Actor: actor, At: lc.Now()})
}
