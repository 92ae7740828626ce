/*
store.go - Persistence and collaborator interfaces

PURPOSE:
  Defines what the engine needs from the outside world. Implementations:
  - leave/store: in-memory (tests, dev)
  - store/sqlite: SQLite

ATOMICITY CONTRACT:
  Two operations must be single atomic units (WithTx):
  1. Apply: the overlap check and the request insert, so two concurrent
     overlapping applications cannot both pass the check.
  2. Decision: reading the request, mutating the approver chain,
     recomputing the overall status and updating the applied-leave
     ledger, so concurrent approvers cannot lose an update or
     double-apply a ledger change.
*/
package leave

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DIRECTORY - Employee and customer lookups
// =============================================================================

// Directory resolves employees and customer allocations. Lookups return
// (nil, nil) when the record does not exist.
type Directory interface {
	Employee(ctx context.Context, id string) (*Employee, error)
	CustomerAllocation(ctx context.Context, employeeID string) (*CustomerAllocation, error)
}

// =============================================================================
// STORE - Requests and allocation ledger
// =============================================================================

// Store persists leave requests and allocation rows. Request and Allocation
// return (nil, nil) when the row does not exist.
type Store interface {
	// Leave requests
	InsertRequest(ctx context.Context, req *LeaveRequest) error
	Request(ctx context.Context, id string) (*LeaveRequest, error)
	// UpdateRequest persists the approver chain, overall status and audit
	// fields of an existing request.
	UpdateRequest(ctx context.Context, req *LeaveRequest) error
	// HasOverlappingLeave reports whether the employee has a non-rejected
	// request intersecting [start, end].
	HasOverlappingLeave(ctx context.Context, employeeID string, start, end Date) (bool, error)
	RequestNumberExists(ctx context.Context, number int) (bool, error)

	// Allocation ledger
	Allocation(ctx context.Context, employeeID string, year int, leaveType string) (*LeaveAllocation, error)
	Allocations(ctx context.Context, employeeID string, year int) ([]LeaveAllocation, error)
	InsertAllocations(ctx context.Context, rows []LeaveAllocation) error
	UpdateApplied(ctx context.Context, id string, applied decimal.Decimal) error
}

// TxStore wraps Store with transaction support. If fn returns an error the
// transaction is rolled back, otherwise it is committed.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// NOTIFIER - Best-effort outbound notification
// =============================================================================

type NotificationKind string

const (
	NotifyLeaveApproved NotificationKind = "leave_approved"
	NotifyLeaveRejected NotificationKind = "leave_rejected"
)

// Notifier delivers a notification to an employee. Errors are logged by the
// caller and never escalated; delivery failure must not undo a transition.
type Notifier interface {
	Notify(ctx context.Context, recipientEmail string, kind NotificationKind, params map[string]string) error
}
