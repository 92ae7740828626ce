/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes the leave engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Leaves:
    POST   /api/leaves                            Apply for leave
    GET    /api/leaves/{id}                       Get a leave request
    POST   /api/leaves/{id}/status                Approve/reject

  Employees:
    GET    /api/employees/{id}/leave-balance      Per-type balance
    GET    /api/employees/{id}/leave-allocations  Ledger rows

  Admin:
    POST   /api/admin/allocations/process         Onboarding/year rollover

ACTOR IDENTITY:
  The caller's identity arrives in X-Actor-Id and X-Actor-Role headers.
  Authentication token mechanics live in front of this service; the
  handlers trust the headers and let the engine authorize.

ERROR HANDLING:
  Domain error kinds map to HTTP status:
  - validation     -> 400 with the domain message
  - authorization  -> 403 with the domain message
  - anything else  -> 500 with a generic message (internals never leak)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vodichron/leave-engine/leave"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *leave.Service
}

// NewHandler creates a new handler around the leave service.
func NewHandler(svc *leave.Service) *Handler {
	return &Handler{Service: svc}
}

// actor extracts the caller identity from the request headers.
func actor(r *http.Request) leave.Actor {
	return leave.Actor{
		ID:   r.Header.Get("X-Actor-Id"),
		Role: leave.Role(r.Header.Get("X-Actor-Role")),
	}
}

// =============================================================================
// LEAVE HANDLERS
// =============================================================================

// ApplyLeave creates a new leave request.
func (h *Handler) ApplyLeave(w http.ResponseWriter, r *http.Request) {
	var body ApplyLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	start, err := leave.ParseDate(body.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_date, expected YYYY-MM-DD")
		return
	}
	end, err := leave.ParseDate(body.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_date, expected YYYY-MM-DD")
		return
	}

	result, err := h.Service.ApplyLeave(r.Context(), leave.ApplyLeaveInput{
		EmployeeID:          body.EmployeeID,
		LeaveType:           body.LeaveType,
		Reason:              body.Reason,
		StartDate:           start,
		EndDate:             end,
		IsHalfDay:           body.IsHalfDay,
		SecondaryApproverID: body.SecondaryApproverID,
	}, actor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ApplyLeaveResponse{
		LeaveID:       result.LeaveID,
		RequestNumber: result.RequestNumber,
		Message:       "leave request created",
	})
}

// GetLeave returns a single leave request.
func (h *Handler) GetLeave(w http.ResponseWriter, r *http.Request) {
	leaveID := chi.URLParam(r, "id")

	req, err := h.Service.Request(r.Context(), leaveID, actor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(req))
}

// UpdateLeaveStatus applies an approval decision to a leave request.
func (h *Handler) UpdateLeaveStatus(w http.ResponseWriter, r *http.Request) {
	leaveID := chi.URLParam(r, "id")

	var body UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Service.UpdateLeaveStatus(r.Context(), leave.UpdateStatusInput{
		LeaveID:  leaveID,
		Decision: leave.ApprovalStatus(body.Status),
		Comment:  body.Comment,
	}, actor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: result.Message})
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// GetLeaveBalance returns the per-type balance for an employee and year.
func (h *Handler) GetLeaveBalance(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")
	year := yearParam(r)

	balances, err := h.Service.GetLeaveBalance(r.Context(), employeeID, year, actor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]BalanceDTO, len(balances))
	for i, b := range balances {
		dtos[i] = toBalanceDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetLeaveAllocations returns the employee's allocation ledger rows.
func (h *Handler) GetLeaveAllocations(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")
	year := yearParam(r)

	rows, err := h.Service.GetLeaveAllocation(r.Context(), employeeID, year, actor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	policy := h.Service.Policy()
	dtos := make([]AllocationDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toAllocationDTO(row, policy.IsCapped(row.LeaveType))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ProcessAllocations runs onboarding/year-rollover allocation for an
// employee.
func (h *Handler) ProcessAllocations(w http.ResponseWriter, r *http.Request) {
	var body ProcessAllocationsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.EmployeeID == "" {
		writeError(w, http.StatusBadRequest, "employee_id is required")
		return
	}
	year := body.Year
	if year == 0 {
		year = time.Now().Year()
	}

	if err := h.Service.ProcessAllocations(r.Context(), body.EmployeeID, year, actor(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "leave allocations processed"})
}

// =============================================================================
// HELPERS
// =============================================================================

// yearParam reads ?year=, defaulting to the current year.
func yearParam(r *http.Request) int {
	if s := r.URL.Query().Get("year"); s != "" {
		if year, err := strconv.Atoi(s); err == nil {
			return year
		}
	}
	return time.Now().Year()
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeDomainError maps domain error kinds to HTTP status codes. Internal
// errors are logged and returned as a generic message.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case leave.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case leave.IsAuthorization(err):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
