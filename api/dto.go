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
  - *Response: Complex response wrappers

SENTINEL NOTE:
  Unbounded leave types (no annual cap, e.g. Maternity Leave) are reported
  with balance 999 on the wire. The domain carries an explicit Unbounded
  tag instead; the sentinel exists only here.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/vodichron/leave-engine/leave"
)

// unboundedBalance is the wire sentinel for leave types without an annual
// cap. Clients render it as "unlimited".
const unboundedBalance = 999

// =============================================================================
// REQUEST TYPES
// =============================================================================

// ApplyLeaveRequest is the payload for POST /api/leaves.
type ApplyLeaveRequest struct {
	EmployeeID          string `json:"employee_id"`
	LeaveType           string `json:"leave_type"`
	Reason              string `json:"reason"`
	StartDate           string `json:"start_date"` // YYYY-MM-DD
	EndDate             string `json:"end_date"`   // YYYY-MM-DD
	IsHalfDay           bool   `json:"is_half_day,omitempty"`
	SecondaryApproverID string `json:"secondary_approver_id,omitempty"`
}

// UpdateStatusRequest is the payload for POST /api/leaves/{id}/status.
type UpdateStatusRequest struct {
	Status  string `json:"status"` // APPROVED or REJECTED
	Comment string `json:"comment,omitempty"`
}

// ProcessAllocationsRequest is the payload for
// POST /api/admin/allocations/process.
type ProcessAllocationsRequest struct {
	EmployeeID string `json:"employee_id"`
	Year       int    `json:"year"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ApplyLeaveResponse confirms a created leave request.
type ApplyLeaveResponse struct {
	LeaveID       string `json:"leave_id"`
	RequestNumber int    `json:"request_number"`
	Message       string `json:"message"`
}

// MessageResponse carries a human-readable outcome.
type MessageResponse struct {
	Message string `json:"message"`
}

// ApproverDTO is one entry of the approver chain.
type ApproverDTO struct {
	ApproverID string `json:"approver_id"`
	Role       string `json:"role"`
	Status     string `json:"status"`
	Comment    string `json:"comment,omitempty"`
	DecidedAt  string `json:"decided_at,omitempty"`
}

// LeaveRequestDTO is the full request aggregate.
type LeaveRequestDTO struct {
	ID            string        `json:"id"`
	RequestNumber int           `json:"request_number"`
	EmployeeID    string        `json:"employee_id"`
	LeaveType     string        `json:"leave_type"`
	Reason        string        `json:"reason"`
	StartDate     string        `json:"start_date"`
	EndDate       string        `json:"end_date"`
	LeaveDays     float64       `json:"leave_days"`
	IsHalfDay     bool          `json:"is_half_day"`
	RequestedDate string        `json:"requested_date"`
	OverallStatus string        `json:"overall_status"`
	Approvers     []ApproverDTO `json:"approvers"`
}

// BalanceDTO is one leave type's balance for the year.
type BalanceDTO struct {
	LeaveType string  `json:"leave_type"`
	Balance   float64 `json:"balance"`
	Applied   float64 `json:"applied"`
}

// AllocationDTO is one allocation ledger row.
type AllocationDTO struct {
	LeaveType      string  `json:"leave_type"`
	Year           int     `json:"year"`
	Allocated      float64 `json:"allocated"`
	CarryForwarded float64 `json:"carry_forwarded"`
	Applied        float64 `json:"applied"`
	Balance        float64 `json:"balance"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toLeaveRequestDTO(req *leave.LeaveRequest) LeaveRequestDTO {
	days, _ := req.LeaveDays.Float64()
	dto := LeaveRequestDTO{
		ID:            req.ID,
		RequestNumber: req.RequestNumber,
		EmployeeID:    req.EmployeeID,
		LeaveType:     req.LeaveType,
		Reason:        req.Reason,
		StartDate:     req.StartDate.String(),
		EndDate:       req.EndDate.String(),
		LeaveDays:     days,
		IsHalfDay:     req.IsHalfDay,
		RequestedDate: req.RequestedDate.String(),
		OverallStatus: string(req.OverallStatus),
		Approvers:     make([]ApproverDTO, 0, req.Approvers.Len()),
	}
	for _, a := range req.Approvers.Entries() {
		adto := ApproverDTO{
			ApproverID: a.ApproverID,
			Role:       string(a.Role),
			Status:     string(a.Status),
			Comment:    a.Comment,
		}
		if a.DecidedAt != nil {
			adto.DecidedAt = a.DecidedAt.UTC().Format(time.RFC3339)
		}
		dto.Approvers = append(dto.Approvers, adto)
	}
	return dto
}

func toBalanceDTO(b leave.TypeBalance) BalanceDTO {
	applied, _ := b.Applied.Float64()
	dto := BalanceDTO{
		LeaveType: b.LeaveType,
		Applied:   applied,
	}
	if b.Unbounded {
		dto.Balance = unboundedBalance
	} else {
		dto.Balance, _ = b.Balance.Float64()
	}
	return dto
}

func toAllocationDTO(row leave.LeaveAllocation, capped bool) AllocationDTO {
	allocated, _ := row.Allocated.Float64()
	carried, _ := row.CarryForwarded.Float64()
	applied, _ := row.Applied.Float64()

	dto := AllocationDTO{
		LeaveType:      row.LeaveType,
		Year:           row.Year,
		Allocated:      allocated,
		CarryForwarded: carried,
		Applied:        applied,
	}
	if capped {
		dto.Balance, _ = row.Balance().Float64()
	} else {
		dto.Balance = unboundedBalance
	}
	return dto
}
