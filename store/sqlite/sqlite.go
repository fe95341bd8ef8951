/*
Package sqlite provides a SQLite-backed implementation of the repository interfaces.

PURPOSE:
  Implements all persistence interfaces using SQLite. In production, the
  same patterns apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  leave.PolicyRepository:  Policy records
  leave.BalanceRepository: Per-(employee, leave type, year) balances
  leave.RequestRepository: Leave request records
  leave.EmployeeDirectory: Employee records for aggregation grouping
  leave.ReferenceChecker:  Delete guard for policies

OPTIMISTIC VERSIONING:
  Balance rows carry a version column. An update executes
  UPDATE ... WHERE version = ? and treats zero affected rows as a stale
  write, surfacing leave.ErrConcurrencyConflict so the ledger can retry
  with a fresh read. Inserts only succeed for version 0; a lost insert
  race fails the primary-key constraint and surfaces the same conflict.

KEY TABLES:
  policies:  Policy definitions, one active row per leave type
  balances:  Entitlement/used per (employee_id, leave_type, year)
  requests:  Leave requests with their lifecycle fields
  employees: Directory records

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - leave/repository.go: Interface definitions
  - leave/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/leave-engine/leave"
)

// Store implements all repository interfaces using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// The sqlite3 driver serializes writes; more than one writer conn
	// just turns lock contention into SQLITE_BUSY errors.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Policies (one active row per leave type)
	CREATE TABLE IF NOT EXISTS policies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		total_days_per_year TEXT NOT NULL,
		can_carry_forward BOOLEAN NOT NULL DEFAULT FALSE,
		max_carry_forward_days TEXT NOT NULL,
		requires_approval BOOLEAN NOT NULL DEFAULT TRUE,
		allow_half_day BOOLEAN NOT NULL DEFAULT FALSE,
		advance_notice_days INTEGER NOT NULL DEFAULT 0,
		max_days_per_request TEXT,
		allow_negative_balance BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_policies_leave_type
		ON policies(leave_type);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_policies_one_active
		ON policies(leave_type) WHERE is_active;

	-- Balances (entitlement/used per employee, leave type, year)
	CREATE TABLE IF NOT EXISTS balances (
		employee_id TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		year INTEGER NOT NULL,
		entitlement TEXT NOT NULL,
		used TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, leave_type, year)
	);

	CREATE INDEX IF NOT EXISTS idx_balances_year
		ON balances(year);

	-- Requests
	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		total_days TEXT NOT NULL,
		is_half_day BOOLEAN NOT NULL DEFAULT FALSE,
		half_day_period TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		is_paid BOOLEAN NOT NULL DEFAULT FALSE,
		paid_days TEXT NOT NULL DEFAULT '0',
		unpaid_days TEXT NOT NULL DEFAULT '0',
		reason TEXT NOT NULL DEFAULT '',
		submitted_at TEXT NOT NULL,
		reviewed_at TEXT,
		reviewed_by TEXT NOT NULL DEFAULT '',
		review_note TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_requests_employee
		ON requests(employee_id);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON requests(status);
	CREATE INDEX IF NOT EXISTS idx_requests_employee_active
		ON requests(employee_id, status, start_date);

	-- Employees
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		department TEXT NOT NULL DEFAULT '',
		hire_date TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_department
		ON employees(department);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// POLICIES (leave.PolicyRepository)
// =============================================================================

func (s *Store) SavePolicy(ctx context.Context, p leave.LeavePolicy) error {
	query := `
		INSERT INTO policies
		(id, name, leave_type, total_days_per_year, can_carry_forward, max_carry_forward_days,
		 requires_approval, allow_half_day, advance_notice_days, max_days_per_request,
		 allow_negative_balance, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			leave_type = excluded.leave_type,
			total_days_per_year = excluded.total_days_per_year,
			can_carry_forward = excluded.can_carry_forward,
			max_carry_forward_days = excluded.max_carry_forward_days,
			requires_approval = excluded.requires_approval,
			allow_half_day = excluded.allow_half_day,
			advance_notice_days = excluded.advance_notice_days,
			max_days_per_request = excluded.max_days_per_request,
			allow_negative_balance = excluded.allow_negative_balance,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`

	var maxPerRequest sql.NullString
	if p.MaxDaysPerRequest != nil {
		maxPerRequest = sql.NullString{String: p.MaxDaysPerRequest.String(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		p.ID,
		p.Name,
		p.LeaveType,
		p.TotalDaysPerYear.String(),
		p.CanCarryForward,
		p.MaxCarryForwardDays.String(),
		p.RequiresApproval,
		p.AllowHalfDay,
		p.AdvanceNoticeDays,
		maxPerRequest,
		p.AllowNegativeBalance,
		p.IsActive,
		p.CreatedAt.UTC().Format(time.RFC3339),
		p.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save policy: %w", err)
	}
	return nil
}

func (s *Store) GetPolicy(ctx context.Context, id leave.PolicyID) (*leave.LeavePolicy, error) {
	policies, err := s.queryPolicies(ctx, policySelect+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(policies) == 0 {
		return nil, nil
	}
	return policies[0], nil
}

func (s *Store) ListPolicies(ctx context.Context) ([]*leave.LeavePolicy, error) {
	return s.queryPolicies(ctx, policySelect+" ORDER BY created_at ASC")
}

func (s *Store) ActivePolicy(ctx context.Context, lt leave.LeaveType) (*leave.LeavePolicy, error) {
	policies, err := s.queryPolicies(ctx, policySelect+" WHERE leave_type = ? AND is_active", lt)
	if err != nil {
		return nil, err
	}
	if len(policies) == 0 {
		return nil, nil
	}
	return policies[0], nil
}

func (s *Store) DeletePolicy(ctx context.Context, id leave.PolicyID) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM policies WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete policy: %w", err)
	}
	return nil
}

// LeaveTypeReferenced backs the policy delete guard: true when any balance
// or request row still carries the leave type.
func (s *Store) LeaveTypeReferenced(ctx context.Context, lt leave.LeaveType) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM balances WHERE leave_type = ?)
		     + (SELECT COUNT(*) FROM requests WHERE leave_type = ?)
	`, lt, lt).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check leave type references: %w", err)
	}
	return count > 0, nil
}

const policySelect = `
	SELECT id, name, leave_type, total_days_per_year, can_carry_forward, max_carry_forward_days,
	       requires_approval, allow_half_day, advance_notice_days, max_days_per_request,
	       allow_negative_balance, is_active, created_at, updated_at
	FROM policies`

func (s *Store) queryPolicies(ctx context.Context, query string, args ...any) ([]*leave.LeavePolicy, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query policies: %w", err)
	}
	defer rows.Close()

	var policies []*leave.LeavePolicy
	for rows.Next() {
		var (
			p                    leave.LeavePolicy
			totalDays, maxCarry  string
			maxPerRequest        sql.NullString
			createdAt, updatedAt string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.LeaveType, &totalDays, &p.CanCarryForward, &maxCarry,
			&p.RequiresApproval, &p.AllowHalfDay, &p.AdvanceNoticeDays, &maxPerRequest,
			&p.AllowNegativeBalance, &p.IsActive, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}

		if p.TotalDaysPerYear, err = leave.ParseDays(totalDays); err != nil {
			return nil, err
		}
		if p.MaxCarryForwardDays, err = leave.ParseDays(maxCarry); err != nil {
			return nil, err
		}
		if maxPerRequest.Valid {
			d, err := leave.ParseDays(maxPerRequest.String)
			if err != nil {
				return nil, err
			}
			p.MaxDaysPerRequest = &d
		}
		if p.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse policy timestamp: %w", err)
		}
		if p.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
			return nil, fmt.Errorf("failed to parse policy timestamp: %w", err)
		}
		policies = append(policies, &p)
	}
	return policies, rows.Err()
}

// =============================================================================
// BALANCES (leave.BalanceRepository)
// =============================================================================

func (s *Store) GetBalance(ctx context.Context, emp leave.EmployeeID, lt leave.LeaveType, year int) (*leave.LeaveBalance, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT employee_id, leave_type, year, entitlement, used, version
		FROM balances
		WHERE employee_id = ? AND leave_type = ? AND year = ?
	`, emp, lt, year)

	b, err := scanBalance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return b, err
}

// SaveBalance inserts a fresh row (Version 0) or updates an existing one
// guarded by its version. Stale writes surface ErrConcurrencyConflict.
func (s *Store) SaveBalance(ctx context.Context, b *leave.LeaveBalance) error {
	now := time.Now().UTC().Format(time.RFC3339)

	if b.Version == 0 {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO balances (employee_id, leave_type, year, entitlement, used, version, updated_at)
			VALUES (?, ?, ?, ?, ?, 1, ?)
		`, b.EmployeeID, b.LeaveType, b.Year, b.Entitlement.String(), b.Used.String(), now)
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("balance %s/%s/%d already exists: %w",
					b.EmployeeID, b.LeaveType, b.Year, leave.ErrConcurrencyConflict)
			}
			return fmt.Errorf("failed to insert balance: %w", err)
		}
		b.Version = 1
		return nil
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE balances
		SET entitlement = ?, used = ?, version = version + 1, updated_at = ?
		WHERE employee_id = ? AND leave_type = ? AND year = ? AND version = ?
	`, b.Entitlement.String(), b.Used.String(), now, b.EmployeeID, b.LeaveType, b.Year, b.Version)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("balance %s/%s/%d was modified concurrently (caller at version %d): %w",
			b.EmployeeID, b.LeaveType, b.Year, b.Version, leave.ErrConcurrencyConflict)
	}
	b.Version++
	return nil
}

func (s *Store) ListBalances(ctx context.Context, year int) ([]*leave.LeaveBalance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, leave_type, year, entitlement, used, version
		FROM balances
		WHERE year = ?
		ORDER BY employee_id ASC, leave_type ASC
	`, year)
	if err != nil {
		return nil, fmt.Errorf("failed to query balances: %w", err)
	}
	defer rows.Close()

	var balances []*leave.LeaveBalance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBalance(row rowScanner) (*leave.LeaveBalance, error) {
	var (
		b                 leave.LeaveBalance
		entitlement, used string
	)
	if err := row.Scan(&b.EmployeeID, &b.LeaveType, &b.Year, &entitlement, &used, &b.Version); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan balance: %w", err)
	}

	var err error
	if b.Entitlement, err = leave.ParseDays(entitlement); err != nil {
		return nil, err
	}
	if b.Used, err = leave.ParseDays(used); err != nil {
		return nil, err
	}
	return &b, nil
}

// =============================================================================
// REQUESTS (leave.RequestRepository)
// =============================================================================

func (s *Store) SaveRequest(ctx context.Context, r *leave.LeaveRequest) error {
	query := `
		INSERT INTO requests
		(id, employee_id, leave_type, start_date, end_date, total_days, is_half_day,
		 half_day_period, status, is_paid, paid_days, unpaid_days, reason,
		 submitted_at, reviewed_at, reviewed_by, review_note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			is_paid = excluded.is_paid,
			paid_days = excluded.paid_days,
			unpaid_days = excluded.unpaid_days,
			reviewed_at = excluded.reviewed_at,
			reviewed_by = excluded.reviewed_by,
			review_note = excluded.review_note
	`

	var reviewedAt sql.NullString
	if r.ReviewedAt != nil {
		reviewedAt = sql.NullString{String: r.ReviewedAt.UTC().Format(time.RFC3339), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		r.ID,
		r.EmployeeID,
		r.LeaveType,
		r.StartDate.String(),
		r.EndDate.String(),
		r.TotalDays.String(),
		r.IsHalfDay,
		r.HalfDayPeriod,
		r.Status,
		r.IsPaid,
		r.PaidDays.String(),
		r.UnpaidDays.String(),
		r.Reason,
		r.SubmittedAt.UTC().Format(time.RFC3339),
		reviewedAt,
		r.ReviewedBy,
		r.ReviewNote,
	)
	if err != nil {
		return fmt.Errorf("failed to save request: %w", err)
	}
	return nil
}

const requestSelect = `
	SELECT id, employee_id, leave_type, start_date, end_date, total_days, is_half_day,
	       half_day_period, status, is_paid, paid_days, unpaid_days, reason,
	       submitted_at, reviewed_at, reviewed_by, review_note
	FROM requests`

func (s *Store) GetRequest(ctx context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	requests, err := s.queryRequests(ctx, requestSelect+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return nil, nil
	}
	return requests[0], nil
}

func (s *Store) ListByEmployee(ctx context.Context, emp leave.EmployeeID) ([]*leave.LeaveRequest, error) {
	return s.queryRequests(ctx,
		requestSelect+" WHERE employee_id = ? ORDER BY submitted_at DESC", emp)
}

func (s *Store) ListActiveByEmployee(ctx context.Context, emp leave.EmployeeID) ([]*leave.LeaveRequest, error) {
	return s.queryRequests(ctx,
		requestSelect+" WHERE employee_id = ? AND status IN ('pending', 'approved') ORDER BY start_date ASC", emp)
}

func (s *Store) ListPending(ctx context.Context) ([]*leave.LeaveRequest, error) {
	return s.queryRequests(ctx,
		requestSelect+" WHERE status = 'pending' ORDER BY submitted_at ASC")
}

func (s *Store) queryRequests(ctx context.Context, query string, args ...any) ([]*leave.LeaveRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var requests []*leave.LeaveRequest
	for rows.Next() {
		var (
			r                           leave.LeaveRequest
			startDate, endDate          string
			totalDays, paidDays, unpaid string
			submittedAt                 string
			reviewedAt                  sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.EmployeeID, &r.LeaveType, &startDate, &endDate, &totalDays,
			&r.IsHalfDay, &r.HalfDayPeriod, &r.Status, &r.IsPaid, &paidDays, &unpaid, &r.Reason,
			&submittedAt, &reviewedAt, &r.ReviewedBy, &r.ReviewNote); err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}

		if r.StartDate, err = leave.ParseDate(startDate); err != nil {
			return nil, err
		}
		if r.EndDate, err = leave.ParseDate(endDate); err != nil {
			return nil, err
		}
		if r.TotalDays, err = leave.ParseDays(totalDays); err != nil {
			return nil, err
		}
		if r.PaidDays, err = leave.ParseDays(paidDays); err != nil {
			return nil, err
		}
		if r.UnpaidDays, err = leave.ParseDays(unpaid); err != nil {
			return nil, err
		}
		if r.SubmittedAt, err = time.Parse(time.RFC3339, submittedAt); err != nil {
			return nil, fmt.Errorf("failed to parse request timestamp: %w", err)
		}
		if reviewedAt.Valid {
			t, err := time.Parse(time.RFC3339, reviewedAt.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse request timestamp: %w", err)
			}
			r.ReviewedAt = &t
		}
		requests = append(requests, &r)
	}
	return requests, rows.Err()
}

// =============================================================================
// EMPLOYEES (leave.EmployeeDirectory)
// =============================================================================

func (s *Store) SaveEmployee(ctx context.Context, e leave.Employee) error {
	query := `
		INSERT INTO employees (id, name, email, department, hire_date)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			department = excluded.department,
			hire_date = excluded.hire_date
	`
	_, err := s.db.ExecContext(ctx, query, e.ID, e.Name, e.Email, e.Department, e.HireDate.String())
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

func (s *Store) GetEmployee(ctx context.Context, id leave.EmployeeID) (*leave.Employee, error) {
	employees, err := s.queryEmployees(ctx,
		"SELECT id, name, email, department, hire_date FROM employees WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(employees) == 0 {
		return nil, nil
	}
	return employees[0], nil
}

func (s *Store) ListEmployees(ctx context.Context) ([]*leave.Employee, error) {
	return s.queryEmployees(ctx,
		"SELECT id, name, email, department, hire_date FROM employees ORDER BY id ASC")
}

func (s *Store) ListByDepartment(ctx context.Context, department string) ([]*leave.Employee, error) {
	return s.queryEmployees(ctx,
		"SELECT id, name, email, department, hire_date FROM employees WHERE department = ? ORDER BY id ASC", department)
}

func (s *Store) queryEmployees(ctx context.Context, query string, args ...any) ([]*leave.Employee, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var employees []*leave.Employee
	for rows.Next() {
		var (
			e        leave.Employee
			hireDate string
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.Email, &e.Department, &hireDate); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		if e.HireDate, err = leave.ParseDate(hireDate); err != nil {
			return nil, err
		}
		employees = append(employees, &e)
	}
	return employees, rows.Err()
}

// Helper functions

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
