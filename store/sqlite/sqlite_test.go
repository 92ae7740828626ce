package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vodichron/leave-engine/leave"
	"github.com/vodichron/leave-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleRequest() *leave.LeaveRequest {
	decidedAt := time.Date(2025, time.June, 2, 9, 30, 0, 0, time.UTC)
	return &leave.LeaveRequest{
		ID:            "req-1",
		RequestNumber: 123456,
		EmployeeID:    "emp-1",
		LeaveType:     leave.TypeCasual,
		Reason:        "family function",
		StartDate:     leave.NewDate(2025, time.June, 9),
		EndDate:       leave.NewDate(2025, time.June, 10),
		LeaveDays:     dec("2"),
		RequestedDate: leave.NewDate(2025, time.June, 1),
		Approvers: leave.NewApproverChain(
			leave.Approver{ApproverID: "mgr-1", Role: leave.RoleManager, Status: leave.StatusApproved, Comment: "ok", DecidedAt: &decidedAt},
			leave.Approver{ApproverID: "dir-1", Role: leave.RoleDirector, Status: leave.StatusRequested},
		),
		OverallStatus: leave.StatusPending,
		CreatedBy:     "emp-1",
		CreatedAt:     time.Date(2025, time.June, 1, 8, 0, 0, 0, time.UTC),
		UpdatedBy:     "mgr-1",
		UpdatedAt:     time.Date(2025, time.June, 2, 9, 30, 0, 0, time.UTC),
	}
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

func TestSQLite_RequestRoundTrip(t *testing.T) {
	// GIVEN: A request with a two-entry chain, one decided
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.InsertRequest(ctx, sampleRequest()))

	// WHEN: Reading it back
	got, err := st.Request(ctx, "req-1")

	// THEN: Every field survives, chain order preserved
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 123456, got.RequestNumber)
	assert.True(t, got.LeaveDays.Equal(dec("2")))
	assert.Equal(t, "2025-06-09", got.StartDate.String())
	assert.Equal(t, leave.StatusPending, got.OverallStatus)

	entries := got.Approvers.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "mgr-1", entries[0].ApproverID)
	assert.Equal(t, leave.StatusApproved, entries[0].Status)
	require.NotNil(t, entries[0].DecidedAt)
	assert.Equal(t, "dir-1", entries[1].ApproverID)
	assert.Nil(t, entries[1].DecidedAt)
}

func TestSQLite_RequestNotFound_NilNil(t *testing.T) {
	st := newTestStore(t)

	got, err := st.Request(context.Background(), "ghost")

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_UpdateRequest_PersistsChainAppend(t *testing.T) {
	// GIVEN: A stored request
	st := newTestStore(t)
	ctx := context.Background()
	req := sampleRequest()
	require.NoError(t, st.InsertRequest(ctx, req))

	// WHEN: HR joins the chain and the request is approved
	decidedAt := time.Date(2025, time.June, 3, 11, 0, 0, 0, time.UTC)
	require.NoError(t, req.Approvers.Append(leave.Approver{
		ApproverID: "hr-1", Role: leave.RoleHR, Status: leave.StatusApproved, DecidedAt: &decidedAt,
	}))
	req.OverallStatus = leave.StatusApproved
	req.UpdatedBy = "hr-1"
	req.UpdatedAt = decidedAt
	require.NoError(t, st.UpdateRequest(ctx, req))

	// THEN: The appended entry comes back last
	got, err := st.Request(ctx, "req-1")
	require.NoError(t, err)
	entries := got.Approvers.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "hr-1", entries[2].ApproverID)
	assert.Equal(t, leave.StatusApproved, got.OverallStatus)
}

func TestSQLite_DuplicateRequestNumber_Rejected(t *testing.T) {
	// GIVEN: A stored request with number 123456
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.InsertRequest(ctx, sampleRequest()))

	// WHEN: Inserting another request with the same number
	dup := sampleRequest()
	dup.ID = "req-2"
	err := st.InsertRequest(ctx, dup)

	// THEN: The unique constraint fires
	require.Error(t, err)

	exists, err := st.RequestNumberExists(ctx, 123456)
	require.NoError(t, err)
	assert.True(t, exists)
}

// =============================================================================
// OVERLAP CHECK
// =============================================================================

func TestSQLite_OverlapCheck(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.InsertRequest(ctx, sampleRequest())) // June 9-10

	cases := []struct {
		name       string
		start, end leave.Date
		want       bool
	}{
		{"identical span", leave.NewDate(2025, time.June, 9), leave.NewDate(2025, time.June, 10), true},
		{"touching end", leave.NewDate(2025, time.June, 10), leave.NewDate(2025, time.June, 12), true},
		{"containing span", leave.NewDate(2025, time.June, 1), leave.NewDate(2025, time.June, 30), true},
		{"before", leave.NewDate(2025, time.June, 5), leave.NewDate(2025, time.June, 8), false},
		{"after", leave.NewDate(2025, time.June, 11), leave.NewDate(2025, time.June, 12), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := st.HasOverlappingLeave(ctx, "emp-1", tc.start, tc.end)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSQLite_OverlapCheck_IgnoresRejected(t *testing.T) {
	// GIVEN: A rejected request for June 9-10
	st := newTestStore(t)
	ctx := context.Background()
	req := sampleRequest()
	req.OverallStatus = leave.StatusRejected
	require.NoError(t, st.InsertRequest(ctx, req))

	// WHEN: Checking the same span
	got, err := st.HasOverlappingLeave(ctx, "emp-1",
		leave.NewDate(2025, time.June, 9), leave.NewDate(2025, time.June, 10))

	// THEN: Rejected requests do not block
	require.NoError(t, err)
	assert.False(t, got)
}

// =============================================================================
// ALLOCATION LEDGER
// =============================================================================

func TestSQLite_AllocationRoundTripAndUpdate(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	rows := []leave.LeaveAllocation{
		{ID: "a1", EmployeeID: "emp-1", LeaveType: leave.TypeCombined, Year: 2025,
			Allocated: dec("18"), CarryForwarded: dec("2.5"), Applied: dec("0")},
		{ID: "a2", EmployeeID: "emp-1", LeaveType: leave.TypeSick, Year: 2025,
			Allocated: dec("8"), CarryForwarded: dec("0"), Applied: dec("0")},
	}
	require.NoError(t, st.InsertAllocations(ctx, rows))

	// Half-day precision survives the TEXT column
	require.NoError(t, st.UpdateApplied(ctx, "a1", dec("2.5")))

	got, err := st.Allocation(ctx, "emp-1", 2025, leave.TypeCombined)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Applied.Equal(dec("2.5")))
	assert.True(t, got.CarryForwarded.Equal(dec("2.5")))
	assert.True(t, got.Balance().Equal(dec("18")))

	all, err := st.Allocations(ctx, "emp-1", 2025)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLite_AllocationUniqueKey_Enforced(t *testing.T) {
	// GIVEN: A combined row for emp-1/2025
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.InsertAllocations(ctx, []leave.LeaveAllocation{
		{ID: "a1", EmployeeID: "emp-1", LeaveType: leave.TypeCombined, Year: 2025,
			Allocated: dec("18"), CarryForwarded: dec("0"), Applied: dec("0")},
	}))

	// WHEN: Inserting a second row for the same key
	err := st.InsertAllocations(ctx, []leave.LeaveAllocation{
		{ID: "a2", EmployeeID: "emp-1", LeaveType: leave.TypeCombined, Year: 2025,
			Allocated: dec("18"), CarryForwarded: dec("0"), Applied: dec("0")},
	})

	// THEN: The unique index rejects it
	require.Error(t, err)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestSQLite_WithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: An empty store
	st := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	// WHEN: A transaction inserts then fails
	err := st.WithTx(ctx, func(tx leave.Store) error {
		if err := tx.InsertRequest(ctx, sampleRequest()); err != nil {
			return err
		}
		return boom
	})

	// THEN: Nothing persisted
	require.ErrorIs(t, err, boom)
	got, readErr := st.Request(ctx, "req-1")
	require.NoError(t, readErr)
	assert.Nil(t, got)
}

func TestSQLite_WithTx_CommitsOnSuccess(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	err := st.WithTx(ctx, func(tx leave.Store) error {
		return tx.InsertRequest(ctx, sampleRequest())
	})

	require.NoError(t, err)
	got, err := st.Request(ctx, "req-1")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

// =============================================================================
// DIRECTORY
// =============================================================================

func TestSQLite_Directory(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertEmployee(ctx, leave.Employee{
		ID: "emp-1", Name: "Asha", Email: "asha@example.com",
		ReportingManagerID: "mgr-1",
		JoiningDate:        leave.NewDate(2023, time.January, 9),
	}))
	require.NoError(t, st.UpsertCustomerAllocation(ctx, "emp-1", leave.CustomerAllocation{
		CustomerID: "cust-1", CustomerName: "Acme", Email: "pm@acme.example",
		CustomerApprover: true,
	}))

	emp, err := st.Employee(ctx, "emp-1")
	require.NoError(t, err)
	require.NotNil(t, emp)
	assert.Equal(t, "mgr-1", emp.ReportingManagerID)
	assert.Equal(t, "2023-01-09", emp.JoiningDate.String())

	alloc, err := st.CustomerAllocation(ctx, "emp-1")
	require.NoError(t, err)
	require.NotNil(t, alloc)
	assert.True(t, alloc.CustomerApprover)

	// Missing records come back (nil, nil)
	ghost, err := st.Employee(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, ghost)
}
