/*
handlers_test.go - HTTP-level tests for the REST surface

Exercises the full router against the in-memory store: policy CRUD, the
submit/approve flow, the error-kind contract, and the stats endpoints.
*/
package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/leave/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()
	mem := store.NewMemory()
	registry := leave.NewPolicyRegistry(mem, mem)
	ledger := leave.NewBalanceLedger(mem, registry)
	lifecycle := leave.NewRequestLifecycle(mem, ledger, registry, nil)
	aggregator := leave.NewAggregationEngine(mem, mem)
	return NewRouter(NewHandler(registry, ledger, lifecycle, aggregator, mem))
}

// do sends a JSON request through the router and decodes the response
// into out (skipped when out is nil).
func do(t *testing.T, router *chi.Mux, method, path string, body, out any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if out != nil {
		require.NoError(t, json.NewDecoder(rec.Body).Decode(out),
			"%s %s -> %d: %s", method, path, rec.Code, rec.Body.String())
	}
	return rec
}

func createPolicy(t *testing.T, router *chi.Mux, body CreatePolicyRequest) PolicyDTO {
	t.Helper()
	var dto PolicyDTO
	rec := do(t, router, http.MethodPost, "/api/policies", body, &dto)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return dto
}

func annualPolicyRequest() CreatePolicyRequest {
	return CreatePolicyRequest{
		Name:                "Annual Leave",
		LeaveType:           "annual",
		TotalDaysPerYear:    "25",
		CanCarryForward:     true,
		MaxCarryForwardDays: "5",
		RequiresApproval:    true,
		AllowHalfDay:        true,
	}
}

func createEmployee(t *testing.T, router *chi.Mux, id, dept string) {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/employees", CreateEmployeeRequest{
		ID:         id,
		Name:       "Test User",
		Email:      id + "@example.com",
		Department: dept,
		HireDate:   "2020-01-06",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func submitRequest(t *testing.T, router *chi.Mux, emp, start, end string) RequestDTO {
	t.Helper()
	var dto RequestDTO
	rec := do(t, router, http.MethodPost, "/api/employees/"+emp+"/requests", SubmitRequestDTO{
		LeaveType: "annual",
		StartDate: start,
		EndDate:   end,
	}, &dto)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return dto
}

// =============================================================================
// HEALTH AND POLICY TESTS
// =============================================================================

func TestHealth(t *testing.T) {
	router := newTestRouter(t)

	var resp map[string]string
	rec := do(t, router, http.MethodGet, "/api/health", nil, &resp)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", resp["status"])
}

func TestPolicyLifecycle(t *testing.T) {
	router := newTestRouter(t)

	created := createPolicy(t, router, annualPolicyRequest())
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.IsActive)
	assert.Equal(t, "25", created.TotalDaysPerYear)

	// GET round-trips
	var fetched PolicyDTO
	rec := do(t, router, http.MethodGet, "/api/policies/"+created.ID, nil, &fetched)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.Name, fetched.Name)

	// PUT patches only what the body carries
	newName := "Annual Leave v2"
	var updated PolicyDTO
	rec = do(t, router, http.MethodPut, "/api/policies/"+created.ID, UpdatePolicyRequest{Name: &newName}, &updated)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, newName, updated.Name)
	assert.Equal(t, "25", updated.TotalDaysPerYear)

	// DELETE
	rec = do(t, router, http.MethodDelete, "/api/policies/"+created.ID, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	var errResp ErrorResponse
	rec = do(t, router, http.MethodGet, "/api/policies/"+created.ID, nil, &errResp)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errResp.Kind)
}

func TestCreatePolicy_DuplicateActive_Conflict(t *testing.T) {
	router := newTestRouter(t)
	createPolicy(t, router, annualPolicyRequest())

	var errResp ErrorResponse
	rec := do(t, router, http.MethodPost, "/api/policies", annualPolicyRequest(), &errResp)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_policy", errResp.Kind)
}

func TestCreatePolicy_BadDays_BadRequest(t *testing.T) {
	router := newTestRouter(t)

	body := annualPolicyRequest()
	body.TotalDaysPerYear = "not-a-number"
	rec := do(t, router, http.MethodPost, "/api/policies", body, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeletePolicy_Referenced_Conflict(t *testing.T) {
	router := newTestRouter(t)
	created := createPolicy(t, router, annualPolicyRequest())
	createEmployee(t, router, "emp-1", "eng")

	// Reading a balance materializes a ledger entry for the leave type
	rec := do(t, router, http.MethodGet, "/api/employees/emp-1/balance?type=annual&year=2025", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var errResp ErrorResponse
	rec = do(t, router, http.MethodDelete, "/api/policies/"+created.ID, nil, &errResp)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "referenced", errResp.Kind)
}

// =============================================================================
// SUBMIT/APPROVE FLOW TESTS
// =============================================================================

func TestSubmitApproveFlow(t *testing.T) {
	router := newTestRouter(t)
	createPolicy(t, router, annualPolicyRequest())
	createEmployee(t, router, "emp-1", "eng")

	// GIVEN: A submitted 5-day request
	submitted := submitRequest(t, router, "emp-1", "2025-03-03", "2025-03-07")
	assert.Equal(t, "pending", submitted.Status)
	assert.Equal(t, "5", submitted.TotalDays)

	// It shows up in the review queue
	var pending []RequestDTO
	rec := do(t, router, http.MethodGet, "/api/requests/pending", nil, &pending)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, pending, 1)
	assert.Equal(t, submitted.ID, pending[0].ID)

	// WHEN: Approving it
	var approved RequestDTO
	rec = do(t, router, http.MethodPost, "/api/requests/"+submitted.ID+"/approve",
		ReviewRequestDTO{Reviewer: "mgr", Note: "enjoy"}, &approved)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: The request is approved and fully paid
	assert.Equal(t, "approved", approved.Status)
	assert.True(t, approved.IsPaid)
	assert.Equal(t, "5", approved.PaidDays)
	assert.Equal(t, "mgr", approved.ReviewedBy)

	// And the ledger reflects the consumption
	var balance BalanceDTO
	rec = do(t, router, http.MethodGet, "/api/employees/emp-1/balance?type=annual&year=2025", nil, &balance)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5", balance.Used)
	assert.Equal(t, "20", balance.Remaining)
}

func TestSubmit_Overlap_Conflict(t *testing.T) {
	router := newTestRouter(t)
	createPolicy(t, router, annualPolicyRequest())
	createEmployee(t, router, "emp-1", "eng")
	submitRequest(t, router, "emp-1", "2025-03-03", "2025-03-07")

	var errResp ErrorResponse
	rec := do(t, router, http.MethodPost, "/api/employees/emp-1/requests", SubmitRequestDTO{
		LeaveType: "annual",
		StartDate: "2025-03-05",
		EndDate:   "2025-03-10",
	}, &errResp)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "overlap", errResp.Kind)
}

func TestSubmit_InsufficientBalance_Unprocessable(t *testing.T) {
	router := newTestRouter(t)
	createPolicy(t, router, annualPolicyRequest())
	createEmployee(t, router, "emp-1", "eng")

	// Drain the balance down to 2 remaining
	rec := do(t, router, http.MethodPost, "/api/admin/adjustments", AdjustmentRequest{
		EmployeeID: "emp-1",
		LeaveType:  "annual",
		Year:       2025,
		Delta:      "-23",
		Reason:     "test drain",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var errResp ErrorResponse
	rec = do(t, router, http.MethodPost, "/api/employees/emp-1/requests", SubmitRequestDTO{
		LeaveType: "annual",
		StartDate: "2025-03-03",
		EndDate:   "2025-03-07",
	}, &errResp)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "insufficient_balance", errResp.Kind)
}

func TestSubmit_NoActivePolicy_NotFound(t *testing.T) {
	router := newTestRouter(t)
	createEmployee(t, router, "emp-1", "eng")

	var errResp ErrorResponse
	rec := do(t, router, http.MethodPost, "/api/employees/emp-1/requests", SubmitRequestDTO{
		LeaveType: "annual",
		StartDate: "2025-03-03",
		EndDate:   "2025-03-07",
	}, &errResp)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errResp.Kind)
}

func TestApprove_MissingReviewer_BadRequest(t *testing.T) {
	router := newTestRouter(t)
	createPolicy(t, router, annualPolicyRequest())
	createEmployee(t, router, "emp-1", "eng")
	submitted := submitRequest(t, router, "emp-1", "2025-03-03", "2025-03-07")

	rec := do(t, router, http.MethodPost, "/api/requests/"+submitted.ID+"/approve", ReviewRequestDTO{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApprove_Twice_InvalidState(t *testing.T) {
	router := newTestRouter(t)
	createPolicy(t, router, annualPolicyRequest())
	createEmployee(t, router, "emp-1", "eng")
	submitted := submitRequest(t, router, "emp-1", "2025-03-03", "2025-03-07")

	review := ReviewRequestDTO{Reviewer: "mgr"}
	rec := do(t, router, http.MethodPost, "/api/requests/"+submitted.ID+"/approve", review, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var errResp ErrorResponse
	rec = do(t, router, http.MethodPost, "/api/requests/"+submitted.ID+"/approve", review, &errResp)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", errResp.Kind)
}

func TestSetPaidStatus_Override(t *testing.T) {
	router := newTestRouter(t)
	createPolicy(t, router, annualPolicyRequest())
	createEmployee(t, router, "emp-1", "eng")
	submitted := submitRequest(t, router, "emp-1", "2025-03-03", "2025-03-07")

	rec := do(t, router, http.MethodPost, "/api/requests/"+submitted.ID+"/approve",
		ReviewRequestDTO{Reviewer: "mgr"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var updated RequestDTO
	rec = do(t, router, http.MethodPost, "/api/requests/"+submitted.ID+"/paid",
		SetPaidRequest{IsPaid: false, Actor: "mgr"}, &updated)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, updated.IsPaid)
	assert.Equal(t, "approved", updated.Status)
}

func TestGetRequest_Missing_NotFound(t *testing.T) {
	router := newTestRouter(t)

	var errResp ErrorResponse
	rec := do(t, router, http.MethodGet, "/api/requests/nope", nil, &errResp)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errResp.Kind)
}

// =============================================================================
// BALANCE AND STATS TESTS
// =============================================================================

func TestGetBalance_RequiresType(t *testing.T) {
	router := newTestRouter(t)
	createPolicy(t, router, annualPolicyRequest())
	createEmployee(t, router, "emp-1", "eng")

	rec := do(t, router, http.MethodGet, "/api/employees/emp-1/balance", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestYearlyStats_EndToEnd(t *testing.T) {
	router := newTestRouter(t)
	createPolicy(t, router, annualPolicyRequest())
	createEmployee(t, router, "emp-1", "eng")
	createEmployee(t, router, "emp-2", "sales")

	submitted := submitRequest(t, router, "emp-1", "2025-01-28", "2025-02-01")
	rec := do(t, router, http.MethodPost, "/api/requests/"+submitted.ID+"/approve",
		ReviewRequestDTO{Reviewer: "mgr"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats []YearlyStatsDTO
	rec = do(t, router, http.MethodGet, "/api/stats/yearly?year=2025&department=eng", nil, &stats)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, stats, 1)
	assert.Equal(t, "emp-1", stats[0].Employee.ID)
	assert.Equal(t, "5", stats[0].TotalDays)
	require.Len(t, stats[0].ByType, 1)
	assert.Equal(t, "annual", stats[0].ByType[0].LeaveType)

	var monthly []MonthlyStatsDTO
	rec = do(t, router, http.MethodGet, "/api/stats/monthly?year=2025&employee=emp-1", nil, &monthly)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, monthly, 1)
	require.Len(t, monthly[0].Months, 12)
	assert.Equal(t, "4", monthly[0].Months[0].TotalDays)
	assert.Equal(t, "1", monthly[0].Months[1].TotalDays)
	assert.Equal(t, "5", monthly[0].YearlyTotal.TotalDays)

	var current []MonthlyStatsDTO
	rec = do(t, router, http.MethodGet, "/api/stats/current-month?as_of=2025-02-15", nil, &current)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, current, 1)
	assert.Equal(t, "1", current[0].YearlyTotal.TotalDays)
}

// =============================================================================
// ADMIN TESTS
// =============================================================================

func TestRollover_EndToEnd(t *testing.T) {
	router := newTestRouter(t)
	createPolicy(t, router, annualPolicyRequest())
	createEmployee(t, router, "emp-1", "eng")

	// Materialize a 2025 entry and consume 15 days via adjustment of used
	rec := do(t, router, http.MethodGet, "/api/employees/emp-1/balance?type=annual&year=2025", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var results []RolloverResultDTO
	rec = do(t, router, http.MethodPost, "/api/admin/rollover", RolloverRequest{FromYear: 2025}, &results)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Error)
	assert.Equal(t, "5", results[0].CarriedOver, "full remaining capped at the 5-day carry limit")
	require.NotNil(t, results[0].NewBalance)
	assert.Equal(t, 2026, results[0].NewBalance.Year)
	assert.Equal(t, "30", results[0].NewBalance.Entitlement)
}

func TestRollover_MissingYear_BadRequest(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/admin/rollover", RolloverRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
