// Package store provides repository implementations backed by in-memory maps.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements every repository contract plus the reference checker
// over plain maps. Reads hand out copies, never interior pointers.
type Memory struct {
	mu        sync.RWMutex
	policies  map[leave.PolicyID]leave.LeavePolicy
	balances  map[balanceKey]leave.LeaveBalance
	requests  map[leave.RequestID]leave.LeaveRequest
	employees map[leave.EmployeeID]leave.Employee
}

type balanceKey struct {
	Employee leave.EmployeeID
	Type     leave.LeaveType
	Year     int
}

func NewMemory() *Memory {
	return &Memory{
		policies:  make(map[leave.PolicyID]leave.LeavePolicy),
		balances:  make(map[balanceKey]leave.LeaveBalance),
		requests:  make(map[leave.RequestID]leave.LeaveRequest),
		employees: make(map[leave.EmployeeID]leave.Employee),
	}
}

// =============================================================================
// POLICIES
// =============================================================================

func (m *Memory) SavePolicy(_ context.Context, p leave.LeavePolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[p.ID] = p
	return nil
}

func (m *Memory) GetPolicy(_ context.Context, id leave.PolicyID) (*leave.LeavePolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.policies[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) ListPolicies(_ context.Context) ([]*leave.LeavePolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*leave.LeavePolicy, 0, len(m.policies))
	for _, p := range m.policies {
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) ActivePolicy(_ context.Context, lt leave.LeaveType) (*leave.LeavePolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.policies {
		if p.LeaveType == lt && p.IsActive {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (m *Memory) DeletePolicy(_ context.Context, id leave.PolicyID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.policies, id)
	return nil
}

// LeaveTypeReferenced reports whether any balance or request still uses
// the leave type. Backs the policy delete guard.
func (m *Memory) LeaveTypeReferenced(_ context.Context, lt leave.LeaveType) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for k := range m.balances {
		if k.Type == lt {
			return true, nil
		}
	}
	for _, r := range m.requests {
		if r.LeaveType == lt {
			return true, nil
		}
	}
	return false, nil
}

// =============================================================================
// BALANCES
// =============================================================================

func (m *Memory) GetBalance(_ context.Context, emp leave.EmployeeID, lt leave.LeaveType, year int) (*leave.LeaveBalance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.balances[balanceKey{Employee: emp, Type: lt, Year: year}]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

// SaveBalance applies optimistic versioning: the caller's Version must
// match the stored row (or the row must not exist for Version 0). The
// stored version is bumped and reflected back on the caller's struct.
func (m *Memory) SaveBalance(_ context.Context, b *leave.LeaveBalance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := balanceKey{Employee: b.EmployeeID, Type: b.LeaveType, Year: b.Year}
	current, exists := m.balances[k]
	if exists && current.Version != b.Version {
		return fmt.Errorf("balance %s/%s/%d at version %d, caller has %d: %w",
			b.EmployeeID, b.LeaveType, b.Year, current.Version, b.Version, leave.ErrConcurrencyConflict)
	}
	if !exists && b.Version != 0 {
		return fmt.Errorf("balance %s/%s/%d does not exist, caller has version %d: %w",
			b.EmployeeID, b.LeaveType, b.Year, b.Version, leave.ErrConcurrencyConflict)
	}

	b.Version++
	m.balances[k] = *b
	return nil
}

func (m *Memory) ListBalances(_ context.Context, year int) ([]*leave.LeaveBalance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*leave.LeaveBalance
	for k, b := range m.balances {
		if k.Year != year {
			continue
		}
		b := b
		out = append(out, &b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EmployeeID != out[j].EmployeeID {
			return out[i].EmployeeID < out[j].EmployeeID
		}
		return out[i].LeaveType < out[j].LeaveType
	})
	return out, nil
}

// =============================================================================
// REQUESTS
// =============================================================================

func (m *Memory) SaveRequest(_ context.Context, r *leave.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r.ID] = *r
	return nil
}

func (m *Memory) GetRequest(_ context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Memory) ListByEmployee(_ context.Context, emp leave.EmployeeID) ([]*leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*leave.LeaveRequest
	for _, r := range m.requests {
		if r.EmployeeID != emp {
			continue
		}
		r := r
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}

func (m *Memory) ListActiveByEmployee(_ context.Context, emp leave.EmployeeID) ([]*leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*leave.LeaveRequest
	for _, r := range m.requests {
		if r.EmployeeID != emp || r.Status == leave.StatusRejected {
			continue
		}
		r := r
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (m *Memory) ListPending(_ context.Context) ([]*leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*leave.LeaveRequest
	for _, r := range m.requests {
		if r.Status != leave.StatusPending {
			continue
		}
		r := r
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (m *Memory) SaveEmployee(_ context.Context, e leave.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[e.ID] = e
	return nil
}

func (m *Memory) GetEmployee(_ context.Context, id leave.EmployeeID) (*leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *Memory) ListEmployees(_ context.Context) ([]*leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*leave.Employee, 0, len(m.employees))
	for _, e := range m.employees {
		e := e
		out = append(out, &e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListByDepartment(_ context.Context, department string) ([]*leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*leave.Employee
	for _, e := range m.employees {
		if e.Department != department {
			continue
		}
		e := e
		out = append(out, &e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
