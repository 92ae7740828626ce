/*
balance.go - Current-year leave balance per leave type

PURPOSE:
  Answers "how many days does this employee have left this year?" from the
  applied-leave totals, the org policy and the joining date.

PRO-RATION:
  Employees who joined before the target year get the full allocation.
  Employees who joined during the target year lose the months before they
  joined:

    joining day >= 15: lapsed = allocated/12 * joiningMonth
                       (the joining month itself is lapsed)
    joining day <  15: lapsed = floor(allocated/12 * (joiningMonth-1))
                       (the joining month counts)

    balance = round(allocated - lapsed - applied)

  The rounding rules differ between the two branches and from the
  allocation calculator (allocation.go). That mismatch is inherited
  behavior, pinned by tests; see DESIGN.md before unifying.

UNBOUNDED TYPES:
  Leave types outside the org policy have no cap. Their balance is tagged
  Unbounded here; the 999 wire sentinel exists only at the API edge.
*/
package leave

import (
	"sort"

	"github.com/shopspring/decimal"
)

var monthsPerYear = decimal.NewFromInt(12)

// TypeBalance is the computed balance for one leave type.
// When Unbounded is set, Balance carries no meaning.
type TypeBalance struct {
	LeaveType string
	Balance   decimal.Decimal
	Applied   decimal.Decimal
	Unbounded bool
}

// BalanceCalculator computes per-type balances against an org policy.
type BalanceCalculator struct {
	Policy *OrgLeavePolicy
}

// MergeCombined folds Casual Leave and Privileged Leave applied totals
// into the combined type and drops the individual entries. It always runs
// before balance or allocation math. The input map is not modified.
func MergeCombined(applied map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(applied))
	for leaveType, total := range applied {
		merged := LedgerType(leaveType)
		if existing, ok := out[merged]; ok {
			out[merged] = existing.Add(total)
		} else {
			out[merged] = total
		}
	}
	return out
}

// Calculate returns a balance per capped policy type, in policy order,
// followed by any unbounded types with applied totals, sorted by name.
//
// Policy types without an applied entry report the full allocation.
func (c *BalanceCalculator) Calculate(applied map[string]decimal.Decimal, joiningDate Date, year int) []TypeBalance {
	applied = MergeCombined(applied)

	balances := make([]TypeBalance, 0, len(c.Policy.Entries()))
	for _, entry := range c.Policy.Entries() {
		used, hasUsage := applied[entry.LeaveType]
		if !hasUsage {
			balances = append(balances, TypeBalance{
				LeaveType: entry.LeaveType,
				Balance:   entry.AllocatedPerYear,
				Applied:   decimal.Zero,
			})
			continue
		}
		balances = append(balances, TypeBalance{
			LeaveType: entry.LeaveType,
			Balance:   cappedBalance(entry.AllocatedPerYear, used, joiningDate, year),
			Applied:   used,
		})
	}

	// Unbounded types: anything applied that the policy does not cap.
	var extra []string
	for leaveType := range applied {
		if !c.Policy.IsCapped(leaveType) {
			extra = append(extra, leaveType)
		}
	}
	sort.Strings(extra)
	for _, leaveType := range extra {
		balances = append(balances, TypeBalance{
			LeaveType: leaveType,
			Applied:   applied[leaveType],
			Unbounded: true,
		})
	}

	return balances
}

// cappedBalance applies the full-year or joining-year branch for one type.
func cappedBalance(allocated, applied decimal.Decimal, joiningDate Date, year int) decimal.Decimal {
	if joiningDate.Year() < year {
		return allocated.Sub(applied).Round(0)
	}

	lapsed := lapsedForBalance(allocated, joiningDate)
	return allocated.Sub(lapsed).Sub(applied).Round(0)
}

// lapsedForBalance computes the lapsed portion for an employee who joined
// during the target year. Rounding differs per branch (inherited behavior).
func lapsedForBalance(allocated decimal.Decimal, joiningDate Date) decimal.Decimal {
	perMonth := allocated.Div(monthsPerYear)
	month := int64(joiningDate.Month())

	if joiningDate.Day() >= 15 {
		// Month of joining itself is lapsed.
		return perMonth.Mul(decimal.NewFromInt(month))
	}
	// Month of joining counts.
	return perMonth.Mul(decimal.NewFromInt(month - 1)).Floor()
}
