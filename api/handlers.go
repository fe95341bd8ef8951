/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes the leave accounting engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Policies:
    GET    /api/policies                 List all policies
    POST   /api/policies                 Create policy
    GET    /api/policies/{id}            Get policy
    PUT    /api/policies/{id}            Update policy
    POST   /api/policies/{id}/active     Activate/deactivate
    DELETE /api/policies/{id}            Delete (guarded)

  Employees:
    GET    /api/employees                List (optional ?department=)
    POST   /api/employees                Create/update employee
    GET    /api/employees/{id}           Get employee
    GET    /api/employees/{id}/balance   Ledger entry (?type=&year=)
    GET    /api/employees/{id}/requests  Request history
    POST   /api/employees/{id}/requests  Submit leave request

  Requests:
    GET    /api/requests/pending         Review queue
    GET    /api/requests/{id}            Get request
    POST   /api/requests/{id}/approve    Approve
    POST   /api/requests/{id}/reject     Reject
    POST   /api/requests/{id}/cancel     Withdraw (requester)
    POST   /api/requests/{id}/paid       Override paid flag

  Stats:
    GET    /api/stats/yearly             ?year=&department=&employee=
    GET    /api/stats/monthly            ?year=&department=&employee=
    GET    /api/stats/current-month      ?as_of=&department=&employee=

  Admin:
    POST   /api/admin/adjustments        Manual entitlement correction
    POST   /api/admin/rollover           Bulk year-end rollover

ERROR HANDLING:
  Errors map from the engine's error kinds to HTTP statuses:
  - 400: Validation errors, malformed input
  - 404: Missing records
  - 409: Overlaps, duplicates, illegal transitions, stale writes
  - 422: Policy violations, insufficient balance
  - 500: Everything else
  Clients branch on the "kind" field, never on message text.

JSON:
  Uses goccy/go-json, a drop-in encoding/json replacement, for cheaper
  serialization of the stats payloads.

SECURITY NOTE:
  No authentication middleware currently. Reviewer identity arrives in
  the request body and is trusted as-is.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// EmployeeStore extends the read-only directory with writes. Both the
// in-memory and SQLite stores satisfy it.
type EmployeeStore interface {
	leave.EmployeeDirectory
	SaveEmployee(ctx context.Context, e leave.Employee) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Registry   *leave.PolicyRegistry
	Ledger     *leave.BalanceLedger
	Lifecycle  *leave.RequestLifecycle
	Aggregator *leave.AggregationEngine
	Employees  EmployeeStore
}

func NewHandler(registry *leave.PolicyRegistry, ledger *leave.BalanceLedger, lifecycle *leave.RequestLifecycle, aggregator *leave.AggregationEngine, employees EmployeeStore) *Handler {
	return &Handler{
		Registry:   registry,
		Ledger:     ledger,
		Lifecycle:  lifecycle,
		Aggregator: aggregator,
		Employees:  employees,
	}
}

// =============================================================================
// POLICY ENDPOINTS
// =============================================================================

func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.Registry.List(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	dtos := make([]PolicyDTO, 0, len(policies))
	for _, p := range policies {
		dtos = append(dtos, toPolicyDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var req CreatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	input := leave.PolicyInput{
		Name:                 req.Name,
		LeaveType:            leave.LeaveType(req.LeaveType),
		CanCarryForward:      req.CanCarryForward,
		RequiresApproval:     req.RequiresApproval,
		AllowHalfDay:         req.AllowHalfDay,
		AdvanceNoticeDays:    req.AdvanceNoticeDays,
		AllowNegativeBalance: req.AllowNegativeBalance,
	}
	var err error
	if input.TotalDaysPerYear, err = leave.ParseDays(req.TotalDaysPerYear); err != nil {
		writeError(w, http.StatusBadRequest, "invalid total_days_per_year", err)
		return
	}
	if input.MaxCarryForwardDays, err = leave.ParseDays(orZero(req.MaxCarryForwardDays)); err != nil {
		writeError(w, http.StatusBadRequest, "invalid max_carry_forward_days", err)
		return
	}
	if req.MaxDaysPerRequest != nil {
		d, err := leave.ParseDays(*req.MaxDaysPerRequest)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid max_days_per_request", err)
			return
		}
		input.MaxDaysPerRequest = &d
	}

	policy, err := h.Registry.Create(r.Context(), input)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPolicyDTO(policy))
}

func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	policy, err := h.Registry.Get(r.Context(), leave.PolicyID(chi.URLParam(r, "id")))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTO(policy))
}

func (h *Handler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	var req UpdatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	patch := leave.PolicyPatch{
		Name:                 req.Name,
		CanCarryForward:      req.CanCarryForward,
		RequiresApproval:     req.RequiresApproval,
		AllowHalfDay:         req.AllowHalfDay,
		AdvanceNoticeDays:    req.AdvanceNoticeDays,
		ClearMaxPerRequest:   req.ClearMaxPerRequest,
		AllowNegativeBalance: req.AllowNegativeBalance,
	}
	if req.TotalDaysPerYear != nil {
		d, err := leave.ParseDays(*req.TotalDaysPerYear)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid total_days_per_year", err)
			return
		}
		patch.TotalDaysPerYear = &d
	}
	if req.MaxCarryForwardDays != nil {
		d, err := leave.ParseDays(*req.MaxCarryForwardDays)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid max_carry_forward_days", err)
			return
		}
		patch.MaxCarryForwardDays = &d
	}
	if req.MaxDaysPerRequest != nil {
		d, err := leave.ParseDays(*req.MaxDaysPerRequest)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid max_days_per_request", err)
			return
		}
		patch.MaxDaysPerRequest = &d
	}

	policy, err := h.Registry.Update(r.Context(), leave.PolicyID(chi.URLParam(r, "id")), patch)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTO(policy))
}

func (h *Handler) SetPolicyActive(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	policy, err := h.Registry.SetActive(r.Context(), leave.PolicyID(chi.URLParam(r, "id")), req.Active)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTO(policy))
}

func (h *Handler) DeletePolicy(w http.ResponseWriter, r *http.Request) {
	if err := h.Registry.Delete(r.Context(), leave.PolicyID(chi.URLParam(r, "id"))); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// EMPLOYEE ENDPOINTS
// =============================================================================

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	var (
		employees []*leave.Employee
		err       error
	)
	if dept := r.URL.Query().Get("department"); dept != "" {
		employees, err = h.Employees.ListByDepartment(r.Context(), dept)
	} else {
		employees, err = h.Employees.ListEmployees(r.Context())
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}

	dtos := make([]EmployeeDTO, 0, len(employees))
	for _, e := range employees {
		dtos = append(dtos, toEmployeeDTO(*e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}
	hireDate, err := leave.ParseDate(req.HireDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid hire_date", err)
		return
	}

	employee := leave.Employee{
		ID:         leave.EmployeeID(req.ID),
		Name:       req.Name,
		Email:      req.Email,
		Department: req.Department,
		HireDate:   hireDate,
	}
	if err := h.Employees.SaveEmployee(r.Context(), employee); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(employee))
}

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	employee, err := h.Employees.GetEmployee(r.Context(), leave.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if employee == nil {
		writeError(w, http.StatusNotFound, "employee not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*employee))
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	emp := leave.EmployeeID(chi.URLParam(r, "id"))
	lt := leave.LeaveType(r.URL.Query().Get("type"))
	if lt == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'type' is required", nil)
		return
	}
	year, err := yearParam(r, "year")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year", err)
		return
	}

	balance, err := h.Ledger.Balance(r.Context(), emp, lt, year)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(balance))
}

func (h *Handler) ListEmployeeRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.Lifecycle.History(r.Context(), leave.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(requests))
}

func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	start, err := leave.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_date", err)
		return
	}
	end, err := leave.ParseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_date", err)
		return
	}

	request, err := h.Lifecycle.Submit(r.Context(), leave.SubmitInput{
		EmployeeID:    leave.EmployeeID(chi.URLParam(r, "id")),
		LeaveType:     leave.LeaveType(req.LeaveType),
		StartDate:     start,
		EndDate:       end,
		IsHalfDay:     req.IsHalfDay,
		HalfDayPeriod: leave.HalfDayPeriod(req.HalfDayPeriod),
		Reason:        req.Reason,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(request))
}

// =============================================================================
// REQUEST REVIEW ENDPOINTS
// =============================================================================

func (h *Handler) ListPendingRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.Lifecycle.PendingQueue(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(requests))
}

func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	request, err := h.Lifecycle.Get(r.Context(), leave.RequestID(chi.URLParam(r, "id")))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(request))
}

func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	if req.Reviewer == "" {
		writeError(w, http.StatusBadRequest, "reviewer is required", nil)
		return
	}

	request, err := h.Lifecycle.Approve(r.Context(), leave.RequestID(chi.URLParam(r, "id")), req.Reviewer, req.Note)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(request))
}

func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	if req.Reviewer == "" {
		writeError(w, http.StatusBadRequest, "reviewer is required", nil)
		return
	}

	request, err := h.Lifecycle.Reject(r.Context(), leave.RequestID(chi.URLParam(r, "id")), req.Reviewer, req.Note)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(request))
}

func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	request, err := h.Lifecycle.Cancel(r.Context(), leave.RequestID(chi.URLParam(r, "id")), req.Reviewer)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(request))
}

func (h *Handler) SetPaidStatus(w http.ResponseWriter, r *http.Request) {
	var req SetPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	request, err := h.Lifecycle.SetPaidStatus(r.Context(), leave.RequestID(chi.URLParam(r, "id")), req.IsPaid, req.Actor)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(request))
}

// =============================================================================
// STATS ENDPOINTS
// =============================================================================

func statsFilter(r *http.Request) leave.StatsFilter {
	filter := leave.StatsFilter{Department: r.URL.Query().Get("department")}
	for _, id := range r.URL.Query()["employee"] {
		filter.EmployeeIDs = append(filter.EmployeeIDs, leave.EmployeeID(id))
	}
	return filter
}

func (h *Handler) YearlyStats(w http.ResponseWriter, r *http.Request) {
	year, err := yearParam(r, "year")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year", err)
		return
	}

	stats, err := h.Aggregator.YearlyStats(r.Context(), statsFilter(r), year)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	dtos := make([]YearlyStatsDTO, 0, len(stats))
	for _, s := range stats {
		dtos = append(dtos, toYearlyStatsDTO(s))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) MonthlyStats(w http.ResponseWriter, r *http.Request) {
	year, err := yearParam(r, "year")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year", err)
		return
	}

	stats, err := h.Aggregator.MonthlyStats(r.Context(), statsFilter(r), year)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	dtos := make([]MonthlyStatsDTO, 0, len(stats))
	for _, s := range stats {
		dtos = append(dtos, toMonthlyStatsDTO(s))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CurrentMonthStats(w http.ResponseWriter, r *http.Request) {
	asOf := leave.Today()
	if s := r.URL.Query().Get("as_of"); s != "" {
		var err error
		if asOf, err = leave.ParseDate(s); err != nil {
			writeError(w, http.StatusBadRequest, "invalid as_of", err)
			return
		}
	}

	stats, err := h.Aggregator.CurrentMonthStats(r.Context(), statsFilter(r), asOf)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	dtos := make([]MonthlyStatsDTO, 0, len(stats))
	for _, s := range stats {
		dtos = append(dtos, toMonthlyStatsDTO(s))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN ENDPOINTS
// =============================================================================

func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req AdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	delta, err := leave.ParseDays(req.Delta)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid delta", err)
		return
	}

	balance, err := h.Ledger.Adjust(r.Context(),
		leave.EmployeeID(req.EmployeeID), leave.LeaveType(req.LeaveType), req.Year, delta)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(balance))
}

func (h *Handler) TriggerRollover(w http.ResponseWriter, r *http.Request) {
	var req RolloverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	if req.FromYear == 0 {
		writeError(w, http.StatusBadRequest, "from_year is required", nil)
		return
	}

	results, err := h.Ledger.RolloverAll(r.Context(), req.FromYear)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	dtos := make([]RolloverResultDTO, 0, len(results))
	for _, res := range results {
		dto := RolloverResultDTO{
			EmployeeID: string(res.EmployeeID),
			LeaveType:  string(res.LeaveType),
		}
		if res.Err != nil {
			dto.Error = res.Err.Error()
		} else {
			dto.CarriedOver = res.CarriedOver.String()
			b := toBalanceDTO(res.NewBalance)
			dto.NewBalance = &b
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func yearParam(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return leave.Today().Year(), nil
	}
	return strconv.Atoi(s)
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps the engine's error taxonomy to HTTP statuses and
// attaches a machine-readable kind.
func writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := "internal"

	switch {
	case errors.Is(err, leave.ErrValidation):
		status, kind = http.StatusBadRequest, "validation"
	case errors.Is(err, leave.ErrNotFound):
		status, kind = http.StatusNotFound, "not_found"
	case errors.Is(err, leave.ErrOverlap):
		status, kind = http.StatusConflict, "overlap"
	case errors.Is(err, leave.ErrDuplicatePolicy):
		status, kind = http.StatusConflict, "duplicate_policy"
	case errors.Is(err, leave.ErrReferenced):
		status, kind = http.StatusConflict, "referenced"
	case errors.Is(err, leave.ErrInvalidState):
		status, kind = http.StatusConflict, "invalid_state"
	case errors.Is(err, leave.ErrConcurrencyConflict):
		status, kind = http.StatusConflict, "concurrency_conflict"
	case errors.Is(err, leave.ErrInsufficientBalance):
		status, kind = http.StatusUnprocessableEntity, "insufficient_balance"
	case errors.Is(err, leave.ErrPolicyViolation):
		status, kind = http.StatusUnprocessableEntity, "policy_violation"
	}

	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: kind})
}
