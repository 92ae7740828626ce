/*
allocation.go - Annual allocation, carry-forward and the applied-leave ledger

PURPOSE:
  Creates the per employee/year/type allocation rows at onboarding and
  year rollover, and keeps their applied counts consistent with approval
  outcomes.

ENTRY POINTS:
  CalculateAllocation: pro-rated allocated days for one capped type.
                       Unlike the balance pro-ration, BOTH joining-day
                       branches round the lapsed amount (see DESIGN.md).
  AllocateLeaves:      inserts one row per policy type with applied = 0
                       and carry-forward from the supplied overrides.
  ProcessYear:         year-rollover/onboarding entry point. Reads the
                       prior year's combined CL/PL row; a derived balance
                       above 1 carries half of itself forward.
  UpsertApplied:       invoked by the state machine on transitions into
                       APPROVED (add days) or out of APPROVED into
                       REJECTED (subtract). Failure here must abort the
                       whole status update, so callers run it inside the
                       same store transaction.
*/
package leave

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	carryForwardFactor    = decimal.New(5, -1) // half of the remaining balance
	carryForwardThreshold = decimal.NewFromInt(1)
)

// AllocationProcessor owns allocation-ledger mutations. Store access goes
// through the Store argument of each method so callers can pass a
// transactional view.
type AllocationProcessor struct {
	Policy *OrgLeavePolicy
}

// CalculateAllocation computes the allocated days for one capped type,
// pro-rated by joining date for employees who joined in the target year.
func CalculateAllocation(allocatedPerYear decimal.Decimal, joiningDate Date, year int) decimal.Decimal {
	if joiningDate.Year() < year {
		return allocatedPerYear
	}

	perMonth := allocatedPerYear.Div(monthsPerYear)
	month := int64(joiningDate.Month())

	var lapsed decimal.Decimal
	if joiningDate.Day() >= 15 {
		lapsed = perMonth.Mul(decimal.NewFromInt(month)).Round(0)
	} else {
		lapsed = perMonth.Mul(decimal.NewFromInt(month - 1)).Round(0)
	}
	return allocatedPerYear.Sub(lapsed)
}

// AllocateLeaves inserts one allocation row per org leave type for the
// employee and year. Carry-forward values come from matching overrides and
// default to zero; applied always starts at zero.
func (p *AllocationProcessor) AllocateLeaves(ctx context.Context, store Store, employeeID string, joiningDate Date, year int, carryOverrides map[string]decimal.Decimal) error {
	entries := p.Policy.Entries()
	rows := make([]LeaveAllocation, 0, len(entries))
	for _, entry := range entries {
		carry := decimal.Zero
		if override, ok := carryOverrides[entry.LeaveType]; ok {
			carry = override
		}
		rows = append(rows, LeaveAllocation{
			ID:             uuid.NewString(),
			EmployeeID:     employeeID,
			LeaveType:      entry.LeaveType,
			Year:           year,
			Allocated:      CalculateAllocation(entry.AllocatedPerYear, joiningDate, year),
			CarryForwarded: carry,
			Applied:        decimal.Zero,
		})
	}

	if err := store.InsertAllocations(ctx, rows); err != nil {
		return Internalf(err, "inserting leave allocations for %s/%d", employeeID, year)
	}
	return nil
}

// ProcessYear allocates the employee's leaves for a year, carrying forward
// half of the prior year's combined CL/PL balance when it exceeds 1.
func (p *AllocationProcessor) ProcessYear(ctx context.Context, store Store, employeeID string, joiningDate Date, year int) error {
	prior, err := store.Allocation(ctx, employeeID, year-1, TypeCombined)
	if err != nil {
		return Internalf(err, "reading prior-year allocation for %s", employeeID)
	}

	carry := decimal.Zero
	if prior != nil {
		if balance := prior.Balance(); balance.GreaterThan(carryForwardThreshold) {
			carry = balance.Mul(carryForwardFactor)
		}
	}

	return p.AllocateLeaves(ctx, store, employeeID, joiningDate, year, map[string]decimal.Decimal{
		TypeCombined: carry,
	})
}

// UpsertApplied reconciles the ledger with a status transition.
//
// REQUESTED/PENDING -> APPROVED adds the request's days to the row's
// applied count, inserting a zero-allocated tracking row when the type was
// never pre-allocated (unbounded types). APPROVED -> REJECTED subtracts
// the days back. Every other transition is a no-op.
func (p *AllocationProcessor) UpsertApplied(ctx context.Context, store Store, req *LeaveRequest, tr Transition) error {
	if !tr.NeedsLedgerUpdate() {
		return nil
	}

	ledgerType := LedgerType(req.LeaveType)
	year := req.RequestedDate.Year()

	row, err := store.Allocation(ctx, req.EmployeeID, year, ledgerType)
	if err != nil {
		return Internalf(err, "reading allocation row %s/%d/%s", req.EmployeeID, year, ledgerType)
	}

	if tr.To == StatusApproved {
		if row == nil {
			// Unbounded type never pre-allocated: track usage only.
			err := store.InsertAllocations(ctx, []LeaveAllocation{{
				ID:             uuid.NewString(),
				EmployeeID:     req.EmployeeID,
				LeaveType:      ledgerType,
				Year:           year,
				Allocated:      decimal.Zero,
				CarryForwarded: decimal.Zero,
				Applied:        req.LeaveDays,
			}})
			if err != nil {
				return Internalf(err, "inserting usage row %s/%d/%s", req.EmployeeID, year, ledgerType)
			}
			return nil
		}
		if err := store.UpdateApplied(ctx, row.ID, row.Applied.Add(req.LeaveDays)); err != nil {
			return Internalf(err, "adding %s applied days to row %s", req.LeaveDays, row.ID)
		}
		return nil
	}

	// APPROVED -> REJECTED: reverse a previously approved request.
	if row == nil {
		return Internalf(nil, "no allocation row to reverse for %s/%d/%s", req.EmployeeID, year, ledgerType)
	}
	if err := store.UpdateApplied(ctx, row.ID, row.Applied.Sub(req.LeaveDays)); err != nil {
		return Internalf(err, "subtracting %s applied days from row %s", req.LeaveDays, row.ID)
	}
	return nil
}
