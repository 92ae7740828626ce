/*
Package leave implements the leave workflow and balance engine.

PURPOSE:
  This package contains the domain types and algorithms for the leave
  back office: the multi-party approval state machine for a leave request,
  and the date-driven day-count, balance, allocation and carry-forward
  calculators that back it.

KEY CONCEPTS IN THIS FILE (types.go):
  - Date: A calendar day (the only time granularity this engine knows)
  - LeaveRequest: The aggregate owning the approver chain and overall status
  - ApproverChain: Ordered, identity-keyed collection of approvers
  - LeaveAllocation: Per employee/year/type ledger row; balance is derived

DESIGN PRINCIPLES:
  1. Precision: day amounts use decimal.Decimal (exact half days, no drift)
  2. Derivation: overall status and balances are computed, never stored apart
  3. Identity: approvers are keyed by id, insertion order preserved

SEE ALSO:
  - workflow.go: Status transitions on the approver chain
  - balance.go:  Balance calculation per leave type
  - allocation.go: Allocation, carry-forward and the applied-leave ledger
*/
package leave

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DATE - Calendar day
// =============================================================================

// Date is a calendar day in UTC. The engine never works at a finer
// granularity than a day (half days are amounts, not times).
type Date struct {
	t time.Time
}

const dateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date{t: t}, nil
}

func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), now.Month(), now.Day())
}

func (d Date) Before(other Date) bool { return d.t.Before(other.t) }
func (d Date) After(other Date) bool  { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool  { return d.t.Equal(other.t) }
func (d Date) IsZero() bool           { return d.t.IsZero() }

func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

func (d Date) Year() int         { return d.t.Year() }
func (d Date) Month() time.Month { return d.t.Month() }
func (d Date) Day() int          { return d.t.Day() }

func (d Date) String() string { return d.t.Format(dateLayout) }

// DaysBetween returns the number of whole days from one date to another
// (exclusive of the starting day). Negative when to precedes from.
func DaysBetween(from, to Date) int {
	return int(to.t.Sub(from.t).Hours() / 24)
}

// =============================================================================
// ROLES AND STATUSES
// =============================================================================

type Role string

const (
	RoleEmployee  Role = "employee"
	RoleManager   Role = "manager"
	RoleDirector  Role = "director"
	RoleHR        Role = "hr"
	RoleSuperUser Role = "super_user"
	RoleCustomer  Role = "customer"
)

// ApprovalStatus is shared by individual approver entries and the overall
// request. REQUESTED and PENDING never appear as a decision.
type ApprovalStatus string

const (
	StatusRequested ApprovalStatus = "REQUESTED"
	StatusPending   ApprovalStatus = "PENDING"
	StatusApproved  ApprovalStatus = "APPROVED"
	StatusRejected  ApprovalStatus = "REJECTED"
)

// IsTerminal reports whether the overall status admits no further action
// by ordinary actors.
func (s ApprovalStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Actor is the party performing an operation.
type Actor struct {
	ID   string
	Role Role
}

// =============================================================================
// APPROVER CHAIN - Ordered, identity-keyed
// =============================================================================

// Approver is a value embedded in a LeaveRequest. Identity key is ApproverID.
type Approver struct {
	ApproverID string
	Role       Role
	Status     ApprovalStatus
	Comment    string
	DecidedAt  *time.Time
}

// ApproverChain preserves insertion order (manager first, then optional
// secondary, then optional customer; HR/super user may be appended later)
// and supports O(1) lookup and in-place update by approver id.
type ApproverChain struct {
	entries []Approver
	index   map[string]int
}

func NewApproverChain(entries ...Approver) *ApproverChain {
	c := &ApproverChain{index: make(map[string]int, len(entries))}
	for _, a := range entries {
		_ = c.Append(a) // duplicate ids in a fresh chain are a caller bug
	}
	return c
}

// Append adds an approver at the end of the chain. Appending an id that is
// already present is an error; use Update instead.
func (c *ApproverChain) Append(a Approver) error {
	if _, ok := c.index[a.ApproverID]; ok {
		return fmt.Errorf("approver %s already in chain", a.ApproverID)
	}
	c.index[a.ApproverID] = len(c.entries)
	c.entries = append(c.entries, a)
	return nil
}

// Get returns the entry for the given approver id.
func (c *ApproverChain) Get(approverID string) (Approver, bool) {
	i, ok := c.index[approverID]
	if !ok {
		return Approver{}, false
	}
	return c.entries[i], true
}

// Update replaces the entry with the same approver id, keeping its position.
func (c *ApproverChain) Update(a Approver) bool {
	i, ok := c.index[a.ApproverID]
	if !ok {
		return false
	}
	c.entries[i] = a
	return true
}

// Entries returns the approvers in insertion order. The slice is a copy.
func (c *ApproverChain) Entries() []Approver {
	out := make([]Approver, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *ApproverChain) Len() int { return len(c.entries) }

// AllApproved reports whether every entry has decided APPROVED.
func (c *ApproverChain) AllApproved() bool {
	for _, a := range c.entries {
		if a.Status != StatusApproved {
			return false
		}
	}
	return len(c.entries) > 0
}

func (c *ApproverChain) Clone() *ApproverChain {
	return NewApproverChain(c.entries...)
}

// =============================================================================
// LEAVE REQUEST - Aggregate
// =============================================================================

// LeaveRequest is created once by Apply and mutated only by approval
// actions; it is never deleted by this engine.
//
// Invariants:
//   - IsHalfDay implies StartDate == EndDate and LeaveDays == 0.5
//   - OverallStatus is a pure function of the approver statuses plus the
//     acting role; it is never set independently (see workflow.go)
type LeaveRequest struct {
	ID            string
	RequestNumber int
	EmployeeID    string
	LeaveType     string
	Reason        string
	StartDate     Date
	EndDate       Date
	LeaveDays     decimal.Decimal
	IsHalfDay     bool
	RequestedDate Date
	Approvers     *ApproverChain
	OverallStatus ApprovalStatus

	// Audit fields
	CreatedBy string
	CreatedAt time.Time
	UpdatedBy string
	UpdatedAt time.Time
}

func (r *LeaveRequest) Clone() *LeaveRequest {
	cp := *r
	if r.Approvers != nil {
		cp.Approvers = r.Approvers.Clone()
	}
	return &cp
}

// =============================================================================
// LEAVE ALLOCATION - Ledger row
// =============================================================================

// LeaveAllocation is the per (employee, year, leave type) ledger row.
// At most one row exists per key. Balance is always derived, never stored.
type LeaveAllocation struct {
	ID             string
	EmployeeID     string
	LeaveType      string
	Year           int
	Allocated      decimal.Decimal
	CarryForwarded decimal.Decimal
	Applied        decimal.Decimal
}

// Balance derives the remaining balance: allocated + carry-forwarded - applied.
func (a LeaveAllocation) Balance() decimal.Decimal {
	return a.Allocated.Add(a.CarryForwarded).Sub(a.Applied)
}

// =============================================================================
// DIRECTORY RECORDS - External collaborator shapes
// =============================================================================

// Employee is the record the engine needs from the employee directory.
type Employee struct {
	ID                 string
	Name               string
	Email              string
	ReportingManagerID string
	JoiningDate        Date
}

// CustomerAllocation is an employee's active customer engagement. When
// CustomerApprover is set, the customer joins the approver chain.
type CustomerAllocation struct {
	CustomerID       string
	CustomerName     string
	Email            string
	CustomerApprover bool
}
