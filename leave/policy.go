/*
policy.go - Organization leave policy and role capabilities

PURPOSE:
  Two kinds of static policy live here:

  1. OrgLeavePolicy: the ordered list of capped leave types and their
     annual allocations. Leave types absent from the policy are
     "special/unlimited": no cap is enforced and balances are reported
     as unbounded, never as a computed number.

  2. Role capabilities: the single source of truth for what a role may
     do. Every workflow operation consults these queries instead of
     carrying its own role list.

COMBINED CL/PL:
  Casual Leave and Privileged Leave are pooled into one tracked balance.
  LedgerType resolves a request's leave type to the type the allocation
  ledger tracks.
*/
package leave

import "github.com/shopspring/decimal"

// =============================================================================
// LEAVE TYPES
// =============================================================================

const (
	TypeCasual     = "Casual Leave"
	TypePrivileged = "Privileged Leave"

	// TypeCombined is the pooled CL/PL balance the ledger tracks.
	TypeCombined = "Casual & Privileged Leave"

	TypeSick      = "Sick Leave"
	TypeMaternity = "Maternity Leave"
)

// LedgerType maps a request's leave type to the type tracked in the
// allocation ledger: CL and PL resolve to the combined type, everything
// else maps to itself.
func LedgerType(leaveType string) string {
	if leaveType == TypeCasual || leaveType == TypePrivileged {
		return TypeCombined
	}
	return leaveType
}

// =============================================================================
// ORG LEAVE POLICY
// =============================================================================

// PolicyEntry is one capped leave type with its full-year allocation.
type PolicyEntry struct {
	LeaveType        string
	AllocatedPerYear decimal.Decimal
}

// OrgLeavePolicy is the ordered list of capped leave types. Order matters
// only for stable reporting.
type OrgLeavePolicy struct {
	entries []PolicyEntry
	index   map[string]int
}

func NewOrgLeavePolicy(entries ...PolicyEntry) *OrgLeavePolicy {
	p := &OrgLeavePolicy{index: make(map[string]int, len(entries))}
	for _, e := range entries {
		if _, ok := p.index[e.LeaveType]; ok {
			continue
		}
		p.index[e.LeaveType] = len(p.entries)
		p.entries = append(p.entries, e)
	}
	return p
}

// DefaultOrgLeavePolicy is the compiled-in policy used when no policy file
// is supplied. See config for loading a policy from JSON.
func DefaultOrgLeavePolicy() *OrgLeavePolicy {
	return NewOrgLeavePolicy(
		PolicyEntry{LeaveType: TypeCombined, AllocatedPerYear: decimal.NewFromInt(18)},
		PolicyEntry{LeaveType: TypeSick, AllocatedPerYear: decimal.NewFromInt(8)},
	)
}

// Entries returns the policy entries in order. The slice is a copy.
func (p *OrgLeavePolicy) Entries() []PolicyEntry {
	out := make([]PolicyEntry, len(p.entries))
	copy(out, p.entries)
	return out
}

// Allocated returns the annual allocation for a capped leave type.
func (p *OrgLeavePolicy) Allocated(leaveType string) (decimal.Decimal, bool) {
	i, ok := p.index[leaveType]
	if !ok {
		return decimal.Zero, false
	}
	return p.entries[i].AllocatedPerYear, true
}

// IsCapped reports whether the leave type is governed by the policy.
// Uncapped types are "special/unlimited".
func (p *OrgLeavePolicy) IsCapped(leaveType string) bool {
	_, ok := p.index[leaveType]
	return ok
}

// =============================================================================
// ROLE CAPABILITIES
// =============================================================================

// CanOverride reports whether the role's approval bypasses the remaining
// approvers (administrative override).
func CanOverride(r Role) bool {
	return r == RoleHR || r == RoleSuperUser
}

// CanActUnassigned reports whether the role may decide on a request without
// appearing in its approver chain. Such actors are appended on first action.
func CanActUnassigned(r Role) bool {
	return r == RoleHR || r == RoleSuperUser
}

// CanActOnTerminal reports whether the role may act on a request that has
// already reached a terminal status.
func CanActOnTerminal(r Role) bool {
	return r == RoleSuperUser
}

// CanViewOthers reports whether the role may read another employee's
// balances, allocations and requests.
func CanViewOthers(r Role) bool {
	switch r {
	case RoleManager, RoleDirector, RoleHR, RoleSuperUser:
		return true
	default:
		return false
	}
}

// CanApprove reports whether the role can ever hold approval rights.
// The chain membership check in workflow.go still applies.
func CanApprove(r Role) bool {
	switch r {
	case RoleManager, RoleDirector, RoleHR, RoleSuperUser, RoleCustomer:
		return true
	default:
		return false
	}
}
