/*
policy.go - Leave policies and the policy registry

PURPOSE:
  A LeavePolicy is the contract between the organization and employees
  for one leave type: how many days per year, whether unused days carry
  forward (and up to how many), whether requests need approval, and
  whether half-days are allowed.

INVARIANTS:
  - At most one ACTIVE policy per leave type
  - totalDaysPerYear >= 0
  - maxCarryForwardDays <= totalDaysPerYear
  - Deactivation preserves history; deletion is rejected while any
    balance or request references the policy's leave type

EXAMPLE:
  registry := leave.NewPolicyRegistry(store, store)
  policy, err := registry.Create(ctx, leave.PolicyInput{
      Name:                "Standard Annual Leave",
      LeaveType:           leave.LeaveAnnual,
      TotalDaysPerYear:    leave.DaysFromInt(25),
      CanCarryForward:     true,
      MaxCarryForwardDays: leave.DaysFromInt(5),
      RequiresApproval:    true,
      AllowHalfDay:        true,
  })

SEE ALSO:
  - ledger.go: Lazy balance materialization from the active policy
  - lifecycle.go: Submission-time policy constraint checks
*/
package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// LEAVE POLICY
// =============================================================================

type LeavePolicy struct {
	ID        PolicyID
	Name      string
	LeaveType LeaveType

	// Base allowance per calendar year.
	TotalDaysPerYear Days

	// Carry-forward rule applied at year rollover.
	CanCarryForward     bool
	MaxCarryForwardDays Days

	// Submission constraints.
	RequiresApproval  bool
	AllowHalfDay      bool
	AdvanceNoticeDays int
	MaxDaysPerRequest *Days // nil = unbounded

	// AllowNegativeBalance lets a request exceed the remaining balance;
	// the excess is tracked as unpaid days (interpreted downstream as a
	// salary deduction, outside this engine).
	AllowNegativeBalance bool

	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// POLICY REGISTRY
// =============================================================================

// PolicyRegistry owns the one-active-policy-per-leave-type invariant and
// the reference guard on deletion.
type PolicyRegistry struct {
	Policies PolicyRepository
	Refs     ReferenceChecker
	Now      func() time.Time
}

func NewPolicyRegistry(policies PolicyRepository, refs ReferenceChecker) *PolicyRegistry {
	return &PolicyRegistry{Policies: policies, Refs: refs, Now: time.Now}
}

// PolicyInput is the payload for creating a policy.
type PolicyInput struct {
	Name                 string
	LeaveType            LeaveType
	TotalDaysPerYear     Days
	CanCarryForward      bool
	MaxCarryForwardDays  Days
	RequiresApproval     bool
	AllowHalfDay         bool
	AdvanceNoticeDays    int
	MaxDaysPerRequest    *Days
	AllowNegativeBalance bool
}

// Create adds a new active policy. Fails with DuplicatePolicyError if an
// active policy already exists for the leave type.
func (r *PolicyRegistry) Create(ctx context.Context, in PolicyInput) (*LeavePolicy, error) {
	if err := validatePolicyFields(in.LeaveType, in.TotalDaysPerYear, in.MaxCarryForwardDays, in.AdvanceNoticeDays); err != nil {
		return nil, err
	}

	existing, err := r.Policies.ActivePolicy(ctx, in.LeaveType)
	if err != nil {
		return nil, fmt.Errorf("failed to check active policy: %w", err)
	}
	if existing != nil {
		return nil, &DuplicatePolicyError{LeaveType: in.LeaveType, ExistingID: existing.ID}
	}

	now := r.Now().UTC()
	policy := LeavePolicy{
		ID:                   PolicyID(uuid.NewString()),
		Name:                 in.Name,
		LeaveType:            in.LeaveType,
		TotalDaysPerYear:     in.TotalDaysPerYear,
		CanCarryForward:      in.CanCarryForward,
		MaxCarryForwardDays:  in.MaxCarryForwardDays,
		RequiresApproval:     in.RequiresApproval,
		AllowHalfDay:         in.AllowHalfDay,
		AdvanceNoticeDays:    in.AdvanceNoticeDays,
		MaxDaysPerRequest:    in.MaxDaysPerRequest,
		AllowNegativeBalance: in.AllowNegativeBalance,
		IsActive:             true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := r.Policies.SavePolicy(ctx, policy); err != nil {
		return nil, fmt.Errorf("failed to save policy: %w", err)
	}
	return &policy, nil
}

// PolicyPatch updates selected fields; nil means unchanged.
type PolicyPatch struct {
	Name                 *string
	TotalDaysPerYear     *Days
	CanCarryForward      *bool
	MaxCarryForwardDays  *Days
	RequiresApproval     *bool
	AllowHalfDay         *bool
	AdvanceNoticeDays    *int
	MaxDaysPerRequest    *Days
	ClearMaxPerRequest   bool
	AllowNegativeBalance *bool
}

// Update applies a patch, revalidating the entitlement/carry-forward
// invariants against the merged result.
func (r *PolicyRegistry) Update(ctx context.Context, id PolicyID, patch PolicyPatch) (*LeavePolicy, error) {
	policy, err := r.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		policy.Name = *patch.Name
	}
	if patch.TotalDaysPerYear != nil {
		policy.TotalDaysPerYear = *patch.TotalDaysPerYear
	}
	if patch.CanCarryForward != nil {
		policy.CanCarryForward = *patch.CanCarryForward
	}
	if patch.MaxCarryForwardDays != nil {
		policy.MaxCarryForwardDays = *patch.MaxCarryForwardDays
	}
	if patch.RequiresApproval != nil {
		policy.RequiresApproval = *patch.RequiresApproval
	}
	if patch.AllowHalfDay != nil {
		policy.AllowHalfDay = *patch.AllowHalfDay
	}
	if patch.AdvanceNoticeDays != nil {
		policy.AdvanceNoticeDays = *patch.AdvanceNoticeDays
	}
	if patch.ClearMaxPerRequest {
		policy.MaxDaysPerRequest = nil
	} else if patch.MaxDaysPerRequest != nil {
		policy.MaxDaysPerRequest = patch.MaxDaysPerRequest
	}
	if patch.AllowNegativeBalance != nil {
		policy.AllowNegativeBalance = *patch.AllowNegativeBalance
	}

	if err := validatePolicyFields(policy.LeaveType, policy.TotalDaysPerYear, policy.MaxCarryForwardDays, policy.AdvanceNoticeDays); err != nil {
		return nil, err
	}

	policy.UpdatedAt = r.Now().UTC()
	if err := r.Policies.SavePolicy(ctx, *policy); err != nil {
		return nil, fmt.Errorf("failed to save policy: %w", err)
	}
	return policy, nil
}

// SetActive flips the status. Activation re-checks the one-active-policy
// invariant; existing balances and requests are untouched either way.
func (r *PolicyRegistry) SetActive(ctx context.Context, id PolicyID, active bool) (*LeavePolicy, error) {
	policy, err := r.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	if policy.IsActive == active {
		return policy, nil
	}

	if active {
		existing, err := r.Policies.ActivePolicy(ctx, policy.LeaveType)
		if err != nil {
			return nil, fmt.Errorf("failed to check active policy: %w", err)
		}
		if existing != nil && existing.ID != id {
			return nil, &DuplicatePolicyError{LeaveType: policy.LeaveType, ExistingID: existing.ID}
		}
	}

	policy.IsActive = active
	policy.UpdatedAt = r.Now().UTC()
	if err := r.Policies.SavePolicy(ctx, *policy); err != nil {
		return nil, fmt.Errorf("failed to save policy: %w", err)
	}
	return policy, nil
}

// Delete removes a policy, rejecting with ReferencedEntityError while any
// balance or request references its leave type.
func (r *PolicyRegistry) Delete(ctx context.Context, id PolicyID) error {
	policy, err := r.mustGet(ctx, id)
	if err != nil {
		return err
	}

	referenced, err := r.Refs.LeaveTypeReferenced(ctx, policy.LeaveType)
	if err != nil {
		return fmt.Errorf("failed to check references: %w", err)
	}
	if referenced {
		return &ReferencedEntityError{PolicyID: id, LeaveType: policy.LeaveType}
	}

	return r.Policies.DeletePolicy(ctx, id)
}

// Get returns a policy by ID.
func (r *PolicyRegistry) Get(ctx context.Context, id PolicyID) (*LeavePolicy, error) {
	return r.mustGet(ctx, id)
}

// List returns all policies.
func (r *PolicyRegistry) List(ctx context.Context) ([]*LeavePolicy, error) {
	return r.Policies.ListPolicies(ctx)
}

// ActiveFor returns the active policy governing a leave type.
func (r *PolicyRegistry) ActiveFor(ctx context.Context, lt LeaveType) (*LeavePolicy, error) {
	policy, err := r.Policies.ActivePolicy(ctx, lt)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		return nil, fmt.Errorf("no active policy for leave type %q: %w", lt, ErrNotFound)
	}
	return policy, nil
}

func (r *PolicyRegistry) mustGet(ctx context.Context, id PolicyID) (*LeavePolicy, error) {
	policy, err := r.Policies.GetPolicy(ctx, id)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		return nil, fmt.Errorf("policy %s: %w", id, ErrNotFound)
	}
	return policy, nil
}

func validatePolicyFields(lt LeaveType, total, maxCarry Days, advanceNotice int) error {
	if lt == "" {
		return &ValidationError{Field: "leaveType", Detail: "must not be empty"}
	}
	if total.IsNegative() {
		return &ValidationError{Field: "totalDaysPerYear", Detail: "must be >= 0"}
	}
	if maxCarry.IsNegative() {
		return &ValidationError{Field: "maxCarryForwardDays", Detail: "must be >= 0"}
	}
	if maxCarry.GreaterThan(total) {
		return &ValidationError{Field: "maxCarryForwardDays", Detail: "must not exceed totalDaysPerYear"}
	}
	if advanceNotice < 0 {
		return &ValidationError{Field: "advanceNoticeDays", Detail: "must be >= 0"}
	}
	return nil
}
