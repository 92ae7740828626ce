/*
chain.go - Approver chain construction for new leave requests

PURPOSE:
  Assembles the ordered approver list attached to a request at creation:

  1. The employee's reporting manager (required; missing manager fails)
  2. An optional secondary approver
  3. The customer contact, when the employee's active customer allocation
     carries approval rights

  Every entry starts at REQUESTED. HR and super users are never part of
  the built chain; they join on first action (workflow.go).
*/
package leave

import "context"

// ChainBuilder resolves approvers through the employee directory.
type ChainBuilder struct {
	Directory Directory
}

// Build returns the ordered approver chain for a new request by the given
// employee. The chain has 1-3 entries.
func (b *ChainBuilder) Build(ctx context.Context, employee *Employee, secondaryApproverID string) (*ApproverChain, error) {
	if employee.ReportingManagerID == "" {
		return nil, Validationf("employee %s has no reporting manager", employee.ID)
	}

	manager, err := b.Directory.Employee(ctx, employee.ReportingManagerID)
	if err != nil {
		return nil, Internalf(err, "looking up reporting manager %s", employee.ReportingManagerID)
	}
	if manager == nil {
		return nil, Validationf("reporting manager %s not found", employee.ReportingManagerID)
	}

	chain := NewApproverChain(Approver{
		ApproverID: manager.ID,
		Role:       RoleManager,
		Status:     StatusRequested,
	})

	if secondaryApproverID != "" {
		secondary, err := b.Directory.Employee(ctx, secondaryApproverID)
		if err != nil {
			return nil, Internalf(err, "looking up secondary approver %s", secondaryApproverID)
		}
		if secondary == nil {
			return nil, Validationf("secondary approver %s not found", secondaryApproverID)
		}
		// A secondary approver equal to the manager adds nothing.
		if secondary.ID != manager.ID {
			_ = chain.Append(Approver{
				ApproverID: secondary.ID,
				Role:       RoleDirector,
				Status:     StatusRequested,
			})
		}
	}

	allocation, err := b.Directory.CustomerAllocation(ctx, employee.ID)
	if err != nil {
		return nil, Internalf(err, "looking up customer allocation for %s", employee.ID)
	}
	if allocation != nil && allocation.CustomerApprover {
		_ = chain.Append(Approver{
			ApproverID: allocation.CustomerID,
			Role:       RoleCustomer,
			Status:     StatusRequested,
		})
	}

	return chain, nil
}
