/*
service.go - Engine facade

PURPOSE:
  Wires the calculators, the chain builder, the state machine and the
  allocation processor into the four exposed operations:

    ApplyLeave         validate -> day count -> approver chain -> persist
    UpdateLeaveStatus  terminal lock -> authorize -> transition -> ledger
    GetLeaveBalance    applied totals -> per-type balance
    GetLeaveAllocation ledger rows (both-zero rows filtered)

  plus the year-rollover entry point ProcessAllocations.

CONCURRENCY:
  Every mutating operation runs inside Store.WithTx. The engine performs
  no I/O of its own beyond those store calls. Notification dispatch
  happens after commit and is fire-and-forget: failures are logged, never
  rolled back or retried.
*/
package leave

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// requestNumberAttempts bounds the search for an unused 6-digit number.
const requestNumberAttempts = 25

// Service exposes the leave engine operations.
type Service struct {
	store     TxStore
	directory Directory
	notifier  Notifier
	policy    *OrgLeavePolicy
	alloc     *AllocationProcessor
	logger    *log.Logger

	now     func() time.Time
	randInt func(n int) int
}

func NewService(store TxStore, directory Directory, notifier Notifier, policy *OrgLeavePolicy) *Service {
	return &Service{
		store:     store,
		directory: directory,
		notifier:  notifier,
		policy:    policy,
		alloc:     &AllocationProcessor{Policy: policy},
		logger:    log.Default(),
		now:       time.Now,
		randInt:   rand.Intn,
	}
}

// =============================================================================
// APPLY LEAVE
// =============================================================================

type ApplyLeaveInput struct {
	EmployeeID          string
	LeaveType           string
	Reason              string
	StartDate           Date
	EndDate             Date
	IsHalfDay           bool
	SecondaryApproverID string
}

type ApplyLeaveResult struct {
	LeaveID       string
	RequestNumber int
}

// ApplyLeave creates a new leave request in REQUESTED state with its
// approver chain attached. The overlap check and the insert are one
// atomic unit.
func (s *Service) ApplyLeave(ctx context.Context, in ApplyLeaveInput, actor Actor) (ApplyLeaveResult, error) {
	if in.EmployeeID == "" {
		return ApplyLeaveResult{}, Validationf("employee id is required")
	}
	if in.LeaveType == "" {
		return ApplyLeaveResult{}, Validationf("leave type is required")
	}
	if in.Reason == "" {
		return ApplyLeaveResult{}, Validationf("reason is required")
	}
	if actor.ID != in.EmployeeID && !CanOverride(actor.Role) {
		return ApplyLeaveResult{}, Authorizationf("%s cannot apply leave for employee %s", actor.ID, in.EmployeeID)
	}

	days, err := LeaveDays(in.StartDate, in.EndDate, in.IsHalfDay)
	if err != nil {
		return ApplyLeaveResult{}, err
	}

	employee, err := s.directory.Employee(ctx, in.EmployeeID)
	if err != nil {
		return ApplyLeaveResult{}, Internalf(err, "looking up employee %s", in.EmployeeID)
	}
	if employee == nil {
		return ApplyLeaveResult{}, Validationf("employee %s not found", in.EmployeeID)
	}

	builder := &ChainBuilder{Directory: s.directory}
	chain, err := builder.Build(ctx, employee, in.SecondaryApproverID)
	if err != nil {
		return ApplyLeaveResult{}, err
	}

	now := s.now()
	req := &LeaveRequest{
		ID:            uuid.NewString(),
		EmployeeID:    in.EmployeeID,
		LeaveType:     in.LeaveType,
		Reason:        in.Reason,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		LeaveDays:     days,
		IsHalfDay:     in.IsHalfDay,
		RequestedDate: NewDate(now.Year(), now.Month(), now.Day()),
		Approvers:     chain,
		OverallStatus: StatusRequested,
		CreatedBy:     actor.ID,
		CreatedAt:     now,
		UpdatedBy:     actor.ID,
		UpdatedAt:     now,
	}

	err = s.store.WithTx(ctx, func(tx Store) error {
		overlapping, err := tx.HasOverlappingLeave(ctx, in.EmployeeID, in.StartDate, in.EndDate)
		if err != nil {
			return Internalf(err, "checking overlapping leave for %s", in.EmployeeID)
		}
		if overlapping {
			return Validationf("employee %s already has leave overlapping %s to %s",
				in.EmployeeID, in.StartDate, in.EndDate)
		}

		number, err := s.uniqueRequestNumber(ctx, tx)
		if err != nil {
			return err
		}
		req.RequestNumber = number

		if err := tx.InsertRequest(ctx, req); err != nil {
			return Internalf(err, "inserting leave request")
		}
		return nil
	})
	if err != nil {
		return ApplyLeaveResult{}, err
	}

	return ApplyLeaveResult{LeaveID: req.ID, RequestNumber: req.RequestNumber}, nil
}

// uniqueRequestNumber draws 6-digit numbers until one is unused. Random but
// checked: collisions retry instead of silently colliding.
func (s *Service) uniqueRequestNumber(ctx context.Context, tx Store) (int, error) {
	for i := 0; i < requestNumberAttempts; i++ {
		number := 100000 + s.randInt(900000)
		exists, err := tx.RequestNumberExists(ctx, number)
		if err != nil {
			return 0, Internalf(err, "checking request number uniqueness")
		}
		if !exists {
			return number, nil
		}
	}
	return 0, Internalf(nil, "could not find an unused request number after %d attempts", requestNumberAttempts)
}

// =============================================================================
// UPDATE LEAVE STATUS
// =============================================================================

type UpdateStatusInput struct {
	LeaveID  string
	Decision ApprovalStatus
	Comment  string
}

type UpdateStatusResult struct {
	Message string
}

// UpdateLeaveStatus applies one approval action. Chain mutation, overall
// status recomputation and the ledger update are a single atomic unit; a
// ledger failure aborts the whole transition. Notification on reaching a
// terminal status is best-effort.
func (s *Service) UpdateLeaveStatus(ctx context.Context, in UpdateStatusInput, actor Actor) (UpdateStatusResult, error) {
	if in.LeaveID == "" {
		return UpdateStatusResult{}, Validationf("leave id is required")
	}

	var req *LeaveRequest
	err := s.store.WithTx(ctx, func(tx Store) error {
		var err error
		req, err = tx.Request(ctx, in.LeaveID)
		if err != nil {
			return Internalf(err, "reading leave request %s", in.LeaveID)
		}
		if req == nil {
			return Validationf("leave request %s not found", in.LeaveID)
		}

		tr, err := ApplyDecision(req, DecisionInput{
			ActorID:   actor.ID,
			ActorRole: actor.Role,
			Decision:  in.Decision,
			Comment:   in.Comment,
			At:        s.now(),
		})
		if err != nil {
			return err
		}

		if err := tx.UpdateRequest(ctx, req); err != nil {
			return Internalf(err, "persisting leave request %s", in.LeaveID)
		}

		return s.alloc.UpsertApplied(ctx, tx, req, tr)
	})
	if err != nil {
		return UpdateStatusResult{}, err
	}

	if req.OverallStatus.IsTerminal() {
		s.notifyOutcome(ctx, req)
	}

	return UpdateStatusResult{Message: StatusMessage(req.OverallStatus)}, nil
}

// notifyOutcome tells the employee about a terminal outcome. Failures are
// logged and never undo the transition.
func (s *Service) notifyOutcome(ctx context.Context, req *LeaveRequest) {
	employee, err := s.directory.Employee(ctx, req.EmployeeID)
	if err != nil || employee == nil {
		s.logger.Printf("notify skipped for request %s: employee %s unavailable", req.ID, req.EmployeeID)
		return
	}

	kind := NotifyLeaveApproved
	if req.OverallStatus == StatusRejected {
		kind = NotifyLeaveRejected
	}
	params := map[string]string{
		"employeeName": employee.Name,
		"leaveType":    req.LeaveType,
		"startDate":    req.StartDate.String(),
		"endDate":      req.EndDate.String(),
		"status":       string(req.OverallStatus),
	}
	if err := s.notifier.Notify(ctx, employee.Email, kind, params); err != nil {
		s.logger.Printf("notify failed for request %s: %v", req.ID, err)
	}
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

// Request returns a leave request visible to the actor.
func (s *Service) Request(ctx context.Context, leaveID string, actor Actor) (*LeaveRequest, error) {
	req, err := s.store.Request(ctx, leaveID)
	if err != nil {
		return nil, Internalf(err, "reading leave request %s", leaveID)
	}
	if req == nil {
		return nil, Validationf("leave request %s not found", leaveID)
	}
	if err := s.authorizeView(req.EmployeeID, actor); err != nil {
		// Approvers in the chain may also see the request.
		if _, inChain := req.Approvers.Get(actor.ID); !inChain {
			return nil, err
		}
	}
	return req, nil
}

// GetLeaveBalance computes the current-year balance per leave type.
func (s *Service) GetLeaveBalance(ctx context.Context, employeeID string, year int, actor Actor) ([]TypeBalance, error) {
	if err := s.authorizeView(employeeID, actor); err != nil {
		return nil, err
	}

	employee, err := s.directory.Employee(ctx, employeeID)
	if err != nil {
		return nil, Internalf(err, "looking up employee %s", employeeID)
	}
	if employee == nil {
		return nil, Validationf("employee %s not found", employeeID)
	}

	rows, err := s.store.Allocations(ctx, employeeID, year)
	if err != nil {
		return nil, Internalf(err, "reading allocations for %s/%d", employeeID, year)
	}

	applied := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		applied[row.LeaveType] = row.Applied
	}

	calc := &BalanceCalculator{Policy: s.policy}
	return calc.Calculate(applied, employee.JoiningDate, year), nil
}

// GetLeaveAllocation returns the employee's ledger rows for a year, with
// rows that have neither allocation nor usage filtered out.
func (s *Service) GetLeaveAllocation(ctx context.Context, employeeID string, year int, actor Actor) ([]LeaveAllocation, error) {
	if err := s.authorizeView(employeeID, actor); err != nil {
		return nil, err
	}

	rows, err := s.store.Allocations(ctx, employeeID, year)
	if err != nil {
		return nil, Internalf(err, "reading allocations for %s/%d", employeeID, year)
	}

	out := rows[:0]
	for _, row := range rows {
		if row.Allocated.IsZero() && row.Applied.IsZero() {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

// ProcessAllocations runs the year-rollover/onboarding allocation for one
// employee, including the combined CL/PL carry-forward.
func (s *Service) ProcessAllocations(ctx context.Context, employeeID string, year int, actor Actor) error {
	if !CanOverride(actor.Role) {
		return Authorizationf("%s cannot process allocations", actor.ID)
	}

	employee, err := s.directory.Employee(ctx, employeeID)
	if err != nil {
		return Internalf(err, "looking up employee %s", employeeID)
	}
	if employee == nil {
		return Validationf("employee %s not found", employeeID)
	}

	return s.store.WithTx(ctx, func(tx Store) error {
		return s.alloc.ProcessYear(ctx, tx, employeeID, employee.JoiningDate, year)
	})
}

// Policy exposes the org policy for presentation layers (sentinel tagging).
func (s *Service) Policy() *OrgLeavePolicy { return s.policy }

func (s *Service) authorizeView(employeeID string, actor Actor) error {
	if actor.ID == employeeID || CanViewOthers(actor.Role) {
		return nil
	}
	return Authorizationf("%s cannot view records of employee %s", actor.ID, employeeID)
}
