/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements leave.TxStore and leave.Directory using SQLite. In production
  the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

KEY TABLES:
  leave_requests:       The request aggregate (one row per request)
  leave_approvers:      Structured, ordered approver chain (child table,
                        never a serialized blob)
  leave_allocations:    Per employee/year/type ledger rows; balance is
                        derived, never stored
  employees:            Directory records
  customer_allocations: Active customer engagement per employee

INVARIANTS ENFORCED HERE:
  - UNIQUE(employee_id, year, leave_type) on leave_allocations
  - UNIQUE(request_number) on leave_requests
  - Approver identity: PRIMARY KEY(request_id, approver_id)

CONCURRENCY:
  WithTx wraps a SQL transaction and holds the write mutex for its
  duration, giving the engine the atomic read-modify-write it assumes for
  overlapping applications and concurrent approvals.

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block,
  single writer at a time, better crash recovery.

USAGE:
  st, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()
  svc := leave.NewService(st, st, notifier, policy)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - leave/store.go: Interface definitions
  - leave/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/vodichron/leave-engine/leave"
)

// Store implements leave.TxStore and leave.Directory using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

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
	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		request_number INTEGER NOT NULL UNIQUE,
		employee_id TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		reason TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		leave_days TEXT NOT NULL,
		is_half_day INTEGER NOT NULL,
		requested_date TEXT NOT NULL,
		overall_status TEXT NOT NULL,
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_by TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leave_requests_employee
		ON leave_requests(employee_id, overall_status, start_date);

	-- Ordered, identity-keyed approver chain
	CREATE TABLE IF NOT EXISTS leave_approvers (
		request_id TEXT NOT NULL REFERENCES leave_requests(id),
		position INTEGER NOT NULL,
		approver_id TEXT NOT NULL,
		approver_role TEXT NOT NULL,
		status TEXT NOT NULL,
		comment TEXT NOT NULL DEFAULT '',
		decided_at TEXT,
		PRIMARY KEY (request_id, approver_id)
	);

	CREATE INDEX IF NOT EXISTS idx_leave_approvers_request
		ON leave_approvers(request_id, position);

	-- At most one ledger row per (employee, year, leave type)
	CREATE TABLE IF NOT EXISTS leave_allocations (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		year INTEGER NOT NULL,
		leaves_allocated TEXT NOT NULL,
		leaves_carry_forwarded TEXT NOT NULL,
		leaves_applied TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_allocations_key
		ON leave_allocations(employee_id, year, leave_type);

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		reporting_manager_id TEXT NOT NULL DEFAULT '',
		joining_date TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS customer_allocations (
		employee_id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		customer_name TEXT NOT NULL,
		email TEXT NOT NULL,
		customer_approver INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so the same query code
// serves direct calls and transactional views.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a SQL transaction. The write mutex is held for
// the duration so the read-modify-write cycles the engine performs are
// serialized.
func (s *Store) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	view := &txView{q: tx}
	if err := fn(view); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// txView adapts a *sql.Tx to leave.Store.
type txView struct {
	q dbtx
}

func (v *txView) InsertRequest(ctx context.Context, req *leave.LeaveRequest) error {
	return insertRequest(ctx, v.q, req)
}

func (v *txView) Request(ctx context.Context, id string) (*leave.LeaveRequest, error) {
	return getRequest(ctx, v.q, id)
}

func (v *txView) UpdateRequest(ctx context.Context, req *leave.LeaveRequest) error {
	return updateRequest(ctx, v.q, req)
}

func (v *txView) HasOverlappingLeave(ctx context.Context, employeeID string, start, end leave.Date) (bool, error) {
	return hasOverlappingLeave(ctx, v.q, employeeID, start, end)
}

func (v *txView) RequestNumberExists(ctx context.Context, number int) (bool, error) {
	return requestNumberExists(ctx, v.q, number)
}

func (v *txView) Allocation(ctx context.Context, employeeID string, year int, leaveType string) (*leave.LeaveAllocation, error) {
	return getAllocation(ctx, v.q, employeeID, year, leaveType)
}

func (v *txView) Allocations(ctx context.Context, employeeID string, year int) ([]leave.LeaveAllocation, error) {
	return listAllocations(ctx, v.q, employeeID, year)
}

func (v *txView) InsertAllocations(ctx context.Context, rows []leave.LeaveAllocation) error {
	return insertAllocations(ctx, v.q, rows)
}

func (v *txView) UpdateApplied(ctx context.Context, id string, applied decimal.Decimal) error {
	return updateApplied(ctx, v.q, id, applied)
}

// =============================================================================
// STORE METHODS (non-transactional entry points)
// =============================================================================

func (s *Store) InsertRequest(ctx context.Context, req *leave.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertRequest(ctx, s.db, req)
}

func (s *Store) Request(ctx context.Context, id string) (*leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRequest(ctx, s.db, id)
}

func (s *Store) UpdateRequest(ctx context.Context, req *leave.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateRequest(ctx, s.db, req)
}

func (s *Store) HasOverlappingLeave(ctx context.Context, employeeID string, start, end leave.Date) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return hasOverlappingLeave(ctx, s.db, employeeID, start, end)
}

func (s *Store) RequestNumberExists(ctx context.Context, number int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return requestNumberExists(ctx, s.db, number)
}

func (s *Store) Allocation(ctx context.Context, employeeID string, year int, leaveType string) (*leave.LeaveAllocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAllocation(ctx, s.db, employeeID, year, leaveType)
}

func (s *Store) Allocations(ctx context.Context, employeeID string, year int) ([]leave.LeaveAllocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listAllocations(ctx, s.db, employeeID, year)
}

func (s *Store) InsertAllocations(ctx context.Context, rows []leave.LeaveAllocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertAllocations(ctx, s.db, rows)
}

func (s *Store) UpdateApplied(ctx context.Context, id string, applied decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateApplied(ctx, s.db, id, applied)
}

// =============================================================================
// LEAVE REQUEST QUERIES
// =============================================================================

func insertRequest(ctx context.Context, q dbtx, req *leave.LeaveRequest) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO leave_requests (
			id, request_number, employee_id, leave_type, reason,
			start_date, end_date, leave_days, is_half_day, requested_date,
			overall_status, created_by, created_at, updated_by, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		req.ID, req.RequestNumber, req.EmployeeID, req.LeaveType, req.Reason,
		req.StartDate.String(), req.EndDate.String(), req.LeaveDays.String(),
		boolToInt(req.IsHalfDay), req.RequestedDate.String(),
		string(req.OverallStatus), req.CreatedBy, formatTime(req.CreatedAt),
		req.UpdatedBy, formatTime(req.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert leave request: %w", err)
	}
	return insertApprovers(ctx, q, req.ID, req.Approvers)
}

func updateRequest(ctx context.Context, q dbtx, req *leave.LeaveRequest) error {
	res, err := q.ExecContext(ctx, `
		UPDATE leave_requests
		SET overall_status = ?, updated_by = ?, updated_at = ?
		WHERE id = ?`,
		string(req.OverallStatus), req.UpdatedBy, formatTime(req.UpdatedAt), req.ID)
	if err != nil {
		return fmt.Errorf("update leave request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("leave request %s not found", req.ID)
	}

	// Replace the chain wholesale: entries may be updated in place or
	// appended (HR/super user), and position must stay authoritative.
	if _, err := q.ExecContext(ctx, `DELETE FROM leave_approvers WHERE request_id = ?`, req.ID); err != nil {
		return fmt.Errorf("clear approver chain: %w", err)
	}
	return insertApprovers(ctx, q, req.ID, req.Approvers)
}

func insertApprovers(ctx context.Context, q dbtx, requestID string, chain *leave.ApproverChain) error {
	for position, a := range chain.Entries() {
		var decidedAt any
		if a.DecidedAt != nil {
			decidedAt = formatTime(*a.DecidedAt)
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO leave_approvers (
				request_id, position, approver_id, approver_role, status, comment, decided_at
			) VALUES (?,?,?,?,?,?,?)`,
			requestID, position, a.ApproverID, string(a.Role), string(a.Status), a.Comment, decidedAt)
		if err != nil {
			return fmt.Errorf("insert approver %s: %w", a.ApproverID, err)
		}
	}
	return nil
}

func getRequest(ctx context.Context, q dbtx, id string) (*leave.LeaveRequest, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, request_number, employee_id, leave_type, reason,
		       start_date, end_date, leave_days, is_half_day, requested_date,
		       overall_status, created_by, created_at, updated_by, updated_at
		FROM leave_requests WHERE id = ?`, id)

	var (
		req                                     leave.LeaveRequest
		startDate, endDate, requestedDate       string
		leaveDays, status, createdAt, updatedAt string
		isHalfDay                               int
	)
	err := row.Scan(&req.ID, &req.RequestNumber, &req.EmployeeID, &req.LeaveType, &req.Reason,
		&startDate, &endDate, &leaveDays, &isHalfDay, &requestedDate,
		&status, &req.CreatedBy, &createdAt, &req.UpdatedBy, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan leave request: %w", err)
	}

	if req.StartDate, err = leave.ParseDate(startDate); err != nil {
		return nil, err
	}
	if req.EndDate, err = leave.ParseDate(endDate); err != nil {
		return nil, err
	}
	if req.RequestedDate, err = leave.ParseDate(requestedDate); err != nil {
		return nil, err
	}
	if req.LeaveDays, err = decimal.NewFromString(leaveDays); err != nil {
		return nil, fmt.Errorf("parse leave days: %w", err)
	}
	req.IsHalfDay = isHalfDay != 0
	req.OverallStatus = leave.ApprovalStatus(status)
	if req.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if req.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	if req.Approvers, err = getApprovers(ctx, q, req.ID); err != nil {
		return nil, err
	}
	return &req, nil
}

func getApprovers(ctx context.Context, q dbtx, requestID string) (*leave.ApproverChain, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT approver_id, approver_role, status, comment, decided_at
		FROM leave_approvers
		WHERE request_id = ?
		ORDER BY position`, requestID)
	if err != nil {
		return nil, fmt.Errorf("load approver chain: %w", err)
	}
	defer rows.Close()

	chain := leave.NewApproverChain()
	for rows.Next() {
		var (
			a         leave.Approver
			role      string
			status    string
			decidedAt sql.NullString
		)
		if err := rows.Scan(&a.ApproverID, &role, &status, &a.Comment, &decidedAt); err != nil {
			return nil, fmt.Errorf("scan approver: %w", err)
		}
		a.Role = leave.Role(role)
		a.Status = leave.ApprovalStatus(status)
		if decidedAt.Valid {
			t, err := parseTime(decidedAt.String)
			if err != nil {
				return nil, err
			}
			a.DecidedAt = &t
		}
		if err := chain.Append(a); err != nil {
			return nil, err
		}
	}
	return chain, rows.Err()
}

func hasOverlappingLeave(ctx context.Context, q dbtx, employeeID string, start, end leave.Date) (bool, error) {
	var exists int
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM leave_requests
			WHERE employee_id = ?
			  AND overall_status != ?
			  AND end_date >= ?
			  AND start_date <= ?
		)`, employeeID, string(leave.StatusRejected), start.String(), end.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("overlap check: %w", err)
	}
	return exists != 0, nil
}

func requestNumberExists(ctx context.Context, q dbtx, number int) (bool, error) {
	var exists int
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM leave_requests WHERE request_number = ?)`,
		number).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("request number check: %w", err)
	}
	return exists != 0, nil
}

// =============================================================================
// ALLOCATION QUERIES
// =============================================================================

func getAllocation(ctx context.Context, q dbtx, employeeID string, year int, leaveType string) (*leave.LeaveAllocation, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, employee_id, leave_type, year,
		       leaves_allocated, leaves_carry_forwarded, leaves_applied
		FROM leave_allocations
		WHERE employee_id = ? AND year = ? AND leave_type = ?`,
		employeeID, year, leaveType)

	alloc, err := scanAllocation(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return alloc, nil
}

func listAllocations(ctx context.Context, q dbtx, employeeID string, year int) ([]leave.LeaveAllocation, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, employee_id, leave_type, year,
		       leaves_allocated, leaves_carry_forwarded, leaves_applied
		FROM leave_allocations
		WHERE employee_id = ? AND year = ?
		ORDER BY leave_type`, employeeID, year)
	if err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	defer rows.Close()

	var out []leave.LeaveAllocation
	for rows.Next() {
		alloc, err := scanAllocation(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *alloc)
	}
	return out, rows.Err()
}

func scanAllocation(scan func(...any) error) (*leave.LeaveAllocation, error) {
	var (
		alloc                       leave.LeaveAllocation
		allocated, carried, applied string
	)
	err := scan(&alloc.ID, &alloc.EmployeeID, &alloc.LeaveType, &alloc.Year,
		&allocated, &carried, &applied)
	if err != nil {
		return nil, err
	}
	if alloc.Allocated, err = decimal.NewFromString(allocated); err != nil {
		return nil, fmt.Errorf("parse allocated: %w", err)
	}
	if alloc.CarryForwarded, err = decimal.NewFromString(carried); err != nil {
		return nil, fmt.Errorf("parse carry-forwarded: %w", err)
	}
	if alloc.Applied, err = decimal.NewFromString(applied); err != nil {
		return nil, fmt.Errorf("parse applied: %w", err)
	}
	return &alloc, nil
}

func insertAllocations(ctx context.Context, q dbtx, rows []leave.LeaveAllocation) error {
	for _, row := range rows {
		_, err := q.ExecContext(ctx, `
			INSERT INTO leave_allocations (
				id, employee_id, leave_type, year,
				leaves_allocated, leaves_carry_forwarded, leaves_applied
			) VALUES (?,?,?,?,?,?,?)`,
			row.ID, row.EmployeeID, row.LeaveType, row.Year,
			row.Allocated.String(), row.CarryForwarded.String(), row.Applied.String())
		if err != nil {
			return fmt.Errorf("insert allocation %s/%d/%s: %w",
				row.EmployeeID, row.Year, row.LeaveType, err)
		}
	}
	return nil
}

func updateApplied(ctx context.Context, q dbtx, id string, applied decimal.Decimal) error {
	res, err := q.ExecContext(ctx,
		`UPDATE leave_allocations SET leaves_applied = ? WHERE id = ?`,
		applied.String(), id)
	if err != nil {
		return fmt.Errorf("update applied count: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("allocation row %s not found", id)
	}
	return nil
}

// =============================================================================
// DIRECTORY
// =============================================================================

// UpsertEmployee creates or replaces a directory record.
func (s *Store) UpsertEmployee(ctx context.Context, e leave.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, name, email, reporting_manager_id, joining_date)
		VALUES (?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			reporting_manager_id = excluded.reporting_manager_id,
			joining_date = excluded.joining_date`,
		e.ID, e.Name, e.Email, e.ReportingManagerID, e.JoiningDate.String())
	return err
}

// UpsertCustomerAllocation creates or replaces an employee's customer
// engagement.
func (s *Store) UpsertCustomerAllocation(ctx context.Context, employeeID string, c leave.CustomerAllocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customer_allocations (employee_id, customer_id, customer_name, email, customer_approver)
		VALUES (?,?,?,?,?)
		ON CONFLICT(employee_id) DO UPDATE SET
			customer_id = excluded.customer_id,
			customer_name = excluded.customer_name,
			email = excluded.email,
			customer_approver = excluded.customer_approver`,
		employeeID, c.CustomerID, c.CustomerName, c.Email, boolToInt(c.CustomerApprover))
	return err
}

func (s *Store) Employee(ctx context.Context, id string) (*leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		e           leave.Employee
		joiningDate string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, reporting_manager_id, joining_date
		FROM employees WHERE id = ?`, id).
		Scan(&e.ID, &e.Name, &e.Email, &e.ReportingManagerID, &joiningDate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan employee: %w", err)
	}
	if e.JoiningDate, err = leave.ParseDate(joiningDate); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) CustomerAllocation(ctx context.Context, employeeID string) (*leave.CustomerAllocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		c        leave.CustomerAllocation
		approver int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT customer_id, customer_name, email, customer_approver
		FROM customer_allocations WHERE employee_id = ?`, employeeID).
		Scan(&c.CustomerID, &c.CustomerName, &c.Email, &approver)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan customer allocation: %w", err)
	}
	c.CustomerApprover = approver != 0
	return &c, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
