package leave_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vodichron/leave-engine/leave"
	"github.com/vodichron/leave-engine/leave/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// recordingNotifier captures notifications and optionally fails.
type recordingNotifier struct {
	kinds []leave.NotificationKind
	fail  bool
}

func (n *recordingNotifier) Notify(_ context.Context, _ string, kind leave.NotificationKind, _ map[string]string) error {
	n.kinds = append(n.kinds, kind)
	if n.fail {
		return errors.New("smtp down")
	}
	return nil
}

func newTestService(t *testing.T) (*leave.Service, *store.Memory, *recordingNotifier) {
	t.Helper()
	mem := seedDirectory()
	notifier := &recordingNotifier{}
	svc := leave.NewService(mem, mem, notifier, leave.DefaultOrgLeavePolicy())
	return svc, mem, notifier
}

func applyInput() leave.ApplyLeaveInput {
	return leave.ApplyLeaveInput{
		EmployeeID: "emp-1",
		LeaveType:  leave.TypeCasual,
		Reason:     "family function",
		StartDate:  leave.NewDate(2025, time.June, 9),
		EndDate:    leave.NewDate(2025, time.June, 10),
	}
}

func asEmployee(id string) leave.Actor { return leave.Actor{ID: id, Role: leave.RoleEmployee} }

// =============================================================================
// APPLY LEAVE
// =============================================================================

func TestApplyLeave_HappyPath(t *testing.T) {
	// GIVEN: A seeded directory
	svc, mem, _ := newTestService(t)

	// WHEN: The employee applies for two days
	result, err := svc.ApplyLeave(context.Background(), applyInput(), asEmployee("emp-1"))

	// THEN: Request created in REQUESTED state with a 6-digit number
	require.NoError(t, err)
	assert.NotEmpty(t, result.LeaveID)
	assert.GreaterOrEqual(t, result.RequestNumber, 100000)
	assert.LessOrEqual(t, result.RequestNumber, 999999)

	stored, err := mem.Request(context.Background(), result.LeaveID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, leave.StatusRequested, stored.OverallStatus)
	assert.True(t, stored.LeaveDays.Equal(dec("2")))
	assert.Equal(t, 1, stored.Approvers.Len())

	entry, ok := stored.Approvers.Get("mgr-1")
	require.True(t, ok)
	assert.Equal(t, leave.RoleManager, entry.Role)
}

func TestApplyLeave_OverlappingLeave_Rejected(t *testing.T) {
	// GIVEN: An existing request for June 9-10
	svc, _, _ := newTestService(t)
	_, err := svc.ApplyLeave(context.Background(), applyInput(), asEmployee("emp-1"))
	require.NoError(t, err)

	// WHEN: Applying for June 10-11
	in := applyInput()
	in.StartDate = leave.NewDate(2025, time.June, 10)
	in.EndDate = leave.NewDate(2025, time.June, 11)
	_, err = svc.ApplyLeave(context.Background(), in, asEmployee("emp-1"))

	// THEN: The overlap is rejected
	require.Error(t, err)
	assert.True(t, leave.IsValidation(err))
	assert.Contains(t, err.Error(), "overlapping")
}

func TestApplyLeave_RejectedRequestDoesNotBlock(t *testing.T) {
	// GIVEN: A rejected request for June 9-10
	svc, _, _ := newTestService(t)
	result, err := svc.ApplyLeave(context.Background(), applyInput(), asEmployee("emp-1"))
	require.NoError(t, err)
	_, err = svc.UpdateLeaveStatus(context.Background(), leave.UpdateStatusInput{
		LeaveID:  result.LeaveID,
		Decision: leave.StatusRejected,
	}, leave.Actor{ID: "mgr-1", Role: leave.RoleManager})
	require.NoError(t, err)

	// WHEN: Applying for the same span again
	_, err = svc.ApplyLeave(context.Background(), applyInput(), asEmployee("emp-1"))

	// THEN: Rejected requests do not count as overlap
	assert.NoError(t, err)
}

func TestApplyLeave_ForAnotherEmployee_Unauthorized(t *testing.T) {
	// GIVEN: An ordinary employee
	svc, _, _ := newTestService(t)

	// WHEN: Applying on behalf of someone else
	_, err := svc.ApplyLeave(context.Background(), applyInput(), asEmployee("emp-2"))

	// THEN: Authorization error
	assert.True(t, leave.IsAuthorization(err))
}

func TestApplyLeave_HRForAnotherEmployee_Allowed(t *testing.T) {
	// GIVEN: An HR actor
	svc, _, _ := newTestService(t)

	// WHEN: Applying on behalf of emp-1
	_, err := svc.ApplyLeave(context.Background(), applyInput(), leave.Actor{ID: "hr-1", Role: leave.RoleHR})

	// THEN: Allowed
	assert.NoError(t, err)
}

func TestApplyLeave_UnknownEmployee_Rejected(t *testing.T) {
	// GIVEN: An employee id not in the directory
	svc, _, _ := newTestService(t)
	in := applyInput()
	in.EmployeeID = "ghost"

	// WHEN: Applying
	_, err := svc.ApplyLeave(context.Background(), in, asEmployee("ghost"))

	// THEN: Validation error
	assert.True(t, leave.IsValidation(err))
}

func TestApplyLeave_MissingFields_Rejected(t *testing.T) {
	// GIVEN: A payload without a reason
	svc, _, _ := newTestService(t)
	in := applyInput()
	in.Reason = ""

	// WHEN: Applying
	_, err := svc.ApplyLeave(context.Background(), in, asEmployee("emp-1"))

	// THEN: Validation error
	assert.True(t, leave.IsValidation(err))
}

// =============================================================================
// STATUS UPDATE AND LEDGER
// =============================================================================

func TestUpdateLeaveStatus_ApprovalUpdatesLedger(t *testing.T) {
	// GIVEN: A pre-allocated combined row and a pending 2-day request
	svc, mem, notifier := newTestService(t)
	seedAllocation(t, mem, "emp-1", time.Now().Year(), leave.TypeCombined, dec("18"), dec("0"), dec("0"))
	result, err := svc.ApplyLeave(context.Background(), applyInput(), asEmployee("emp-1"))
	require.NoError(t, err)

	// WHEN: The manager approves
	out, err := svc.UpdateLeaveStatus(context.Background(), leave.UpdateStatusInput{
		LeaveID:  result.LeaveID,
		Decision: leave.StatusApproved,
		Comment:  "enjoy",
	}, leave.Actor{ID: "mgr-1", Role: leave.RoleManager})

	// THEN: Approved, ledger charged, employee notified
	require.NoError(t, err)
	assert.Equal(t, "leave request approved", out.Message)

	row := findAllocation(t, mem, "emp-1", time.Now().Year(), leave.TypeCombined)
	assert.True(t, row.Applied.Equal(dec("2")), "applied = %s", row.Applied)
	assert.Equal(t, []leave.NotificationKind{leave.NotifyLeaveApproved}, notifier.kinds)
}

func TestUpdateLeaveStatus_SuperUserReversal_RestoresLedger(t *testing.T) {
	// GIVEN: An approved request already charged to the ledger
	svc, mem, notifier := newTestService(t)
	year := time.Now().Year()
	seedAllocation(t, mem, "emp-1", year, leave.TypeCombined, dec("18"), dec("0"), dec("0"))
	result, err := svc.ApplyLeave(context.Background(), applyInput(), asEmployee("emp-1"))
	require.NoError(t, err)
	_, err = svc.UpdateLeaveStatus(context.Background(), leave.UpdateStatusInput{
		LeaveID: result.LeaveID, Decision: leave.StatusApproved,
	}, leave.Actor{ID: "mgr-1", Role: leave.RoleManager})
	require.NoError(t, err)

	// WHEN: A super user rejects the approved request
	_, err = svc.UpdateLeaveStatus(context.Background(), leave.UpdateStatusInput{
		LeaveID: result.LeaveID, Decision: leave.StatusRejected, Comment: "project crunch",
	}, leave.Actor{ID: "su-1", Role: leave.RoleSuperUser})

	// THEN: The days return to the pool and a rejection notice goes out
	require.NoError(t, err)
	row := findAllocation(t, mem, "emp-1", year, leave.TypeCombined)
	assert.True(t, row.Applied.IsZero(), "applied = %s", row.Applied)
	assert.Equal(t, []leave.NotificationKind{leave.NotifyLeaveApproved, leave.NotifyLeaveRejected}, notifier.kinds)
}

func TestUpdateLeaveStatus_LedgerFailure_AbortsTransition(t *testing.T) {
	// GIVEN: An APPROVED request stored with no ledger row to reverse
	svc, mem, _ := newTestService(t)
	req := &leave.LeaveRequest{
		ID:            "req-broken",
		RequestNumber: 123456,
		EmployeeID:    "emp-1",
		LeaveType:     leave.TypeCasual,
		Reason:        "backfilled",
		StartDate:     leave.NewDate(2025, time.June, 9),
		EndDate:       leave.NewDate(2025, time.June, 10),
		LeaveDays:     dec("2"),
		RequestedDate: leave.NewDate(2025, time.June, 1),
		Approvers: leave.NewApproverChain(leave.Approver{
			ApproverID: "mgr-1", Role: leave.RoleManager, Status: leave.StatusApproved,
		}),
		OverallStatus: leave.StatusApproved,
	}
	require.NoError(t, mem.InsertRequest(context.Background(), req))

	// WHEN: A super user rejects and the ledger reversal fails
	_, err := svc.UpdateLeaveStatus(context.Background(), leave.UpdateStatusInput{
		LeaveID: "req-broken", Decision: leave.StatusRejected,
	}, leave.Actor{ID: "su-1", Role: leave.RoleSuperUser})

	// THEN: The whole transition rolls back; the request stays APPROVED
	require.Error(t, err)
	assert.True(t, leave.IsInternal(err))

	stored, readErr := mem.Request(context.Background(), "req-broken")
	require.NoError(t, readErr)
	assert.Equal(t, leave.StatusApproved, stored.OverallStatus)
}

func TestUpdateLeaveStatus_NotifierFailure_DoesNotUndoTransition(t *testing.T) {
	// GIVEN: A notifier that always fails
	svc, mem, notifier := newTestService(t)
	notifier.fail = true
	result, err := svc.ApplyLeave(context.Background(), applyInput(), asEmployee("emp-1"))
	require.NoError(t, err)

	// WHEN: The manager approves
	_, err = svc.UpdateLeaveStatus(context.Background(), leave.UpdateStatusInput{
		LeaveID: result.LeaveID, Decision: leave.StatusApproved,
	}, leave.Actor{ID: "mgr-1", Role: leave.RoleManager})

	// THEN: The approval stands
	require.NoError(t, err)
	stored, _ := mem.Request(context.Background(), result.LeaveID)
	assert.Equal(t, leave.StatusApproved, stored.OverallStatus)
}

func TestUpdateLeaveStatus_UnknownRequest_Rejected(t *testing.T) {
	// GIVEN: No such request
	svc, _, _ := newTestService(t)

	// WHEN: Acting on it
	_, err := svc.UpdateLeaveStatus(context.Background(), leave.UpdateStatusInput{
		LeaveID: "ghost", Decision: leave.StatusApproved,
	}, leave.Actor{ID: "mgr-1", Role: leave.RoleManager})

	// THEN: Validation error
	assert.True(t, leave.IsValidation(err))
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

func TestGetLeaveBalance_SelfView(t *testing.T) {
	// GIVEN: Allocation rows with usage
	svc, mem, _ := newTestService(t)
	seedAllocation(t, mem, "emp-1", 2025, leave.TypeCombined, dec("18"), dec("0"), dec("3"))

	// WHEN: The employee reads their own 2025 balance
	balances, err := svc.GetLeaveBalance(context.Background(), "emp-1", 2025, asEmployee("emp-1"))

	// THEN: Policy-order balances with the usage subtracted
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, leave.TypeCombined, balances[0].LeaveType)
	assert.True(t, balances[0].Balance.Equal(dec("15")), "balance = %s", balances[0].Balance)
}

func TestGetLeaveBalance_OtherEmployee_Unauthorized(t *testing.T) {
	// GIVEN: An ordinary employee
	svc, _, _ := newTestService(t)

	// WHEN: Reading a colleague's balance
	_, err := svc.GetLeaveBalance(context.Background(), "emp-1", 2025, asEmployee("emp-2"))

	// THEN: Authorization error
	assert.True(t, leave.IsAuthorization(err))
}

func TestGetLeaveBalance_ManagerViewsReport(t *testing.T) {
	// GIVEN: A manager actor
	svc, _, _ := newTestService(t)

	// WHEN: Reading emp-1's balance
	_, err := svc.GetLeaveBalance(context.Background(), "emp-1", 2025,
		leave.Actor{ID: "mgr-1", Role: leave.RoleManager})

	// THEN: Allowed
	assert.NoError(t, err)
}

func TestGetLeaveAllocation_BothZeroRowsFiltered(t *testing.T) {
	// GIVEN: One real row and one zero/zero row
	svc, mem, _ := newTestService(t)
	seedAllocation(t, mem, "emp-1", 2025, leave.TypeCombined, dec("18"), dec("0"), dec("3"))
	seedAllocation(t, mem, "emp-1", 2025, leave.TypeSick, dec("0"), dec("0"), dec("0"))

	// WHEN: Listing allocations
	rows, err := svc.GetLeaveAllocation(context.Background(), "emp-1", 2025, asEmployee("emp-1"))

	// THEN: The empty row is filtered out
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, leave.TypeCombined, rows[0].LeaveType)
}

func TestProcessAllocations_RequiresPrivilegedRole(t *testing.T) {
	// GIVEN: An ordinary employee
	svc, _, _ := newTestService(t)

	// WHEN: Triggering allocation processing
	err := svc.ProcessAllocations(context.Background(), "emp-1", 2025, asEmployee("emp-1"))

	// THEN: Authorization error
	assert.True(t, leave.IsAuthorization(err))
}

func TestProcessAllocations_HR_CreatesRows(t *testing.T) {
	// GIVEN: An HR actor
	svc, mem, _ := newTestService(t)

	// WHEN: Processing 2025 for emp-1
	err := svc.ProcessAllocations(context.Background(), "emp-1", 2025,
		leave.Actor{ID: "hr-1", Role: leave.RoleHR})

	// THEN: One row per policy type exists
	require.NoError(t, err)
	rows, _ := mem.Allocations(context.Background(), "emp-1", 2025)
	assert.Len(t, rows, 2)
}
