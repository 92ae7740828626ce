// Package store provides an in-memory Store implementation (for testing/dev).
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vodichron/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Memory implements leave.TxStore and leave.Directory in memory.
// WithTx is simulated with a snapshot + rollback on error.
type Memory struct {
	mu sync.RWMutex

	requests       map[string]*leave.LeaveRequest
	requestNumbers map[int]bool
	allocations    map[string]leave.LeaveAllocation
	allocationKeys map[allocationKey]string

	employees map[string]leave.Employee
	customers map[string]leave.CustomerAllocation
}

type allocationKey struct {
	EmployeeID string
	Year       int
	LeaveType  string
}

func NewMemory() *Memory {
	return &Memory{
		requests:       make(map[string]*leave.LeaveRequest),
		requestNumbers: make(map[int]bool),
		allocations:    make(map[string]leave.LeaveAllocation),
		allocationKeys: make(map[allocationKey]string),
		employees:      make(map[string]leave.Employee),
		customers:      make(map[string]leave.CustomerAllocation),
	}
}

// =============================================================================
// DIRECTORY
// =============================================================================

// AddEmployee seeds an employee record.
func (m *Memory) AddEmployee(e leave.Employee) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[e.ID] = e
}

// AddCustomerAllocation seeds a customer allocation for an employee.
func (m *Memory) AddCustomerAllocation(employeeID string, c leave.CustomerAllocation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[employeeID] = c
}

func (m *Memory) Employee(_ context.Context, id string) (*leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[id]
	if !ok {
		return nil, nil
	}
	cp := e
	return &cp, nil
}

func (m *Memory) CustomerAllocation(_ context.Context, employeeID string) (*leave.CustomerAllocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.customers[employeeID]
	if !ok {
		return nil, nil
	}
	cp := c
	return &cp, nil
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

func (m *Memory) InsertRequest(_ context.Context, req *leave.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertRequestLocked(req)
}

func (m *Memory) insertRequestLocked(req *leave.LeaveRequest) error {
	m.requests[req.ID] = req.Clone()
	m.requestNumbers[req.RequestNumber] = true
	return nil
}

func (m *Memory) Request(_ context.Context, id string) (*leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestLocked(id)
}

func (m *Memory) requestLocked(id string) (*leave.LeaveRequest, error) {
	req, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	return req.Clone(), nil
}

func (m *Memory) UpdateRequest(_ context.Context, req *leave.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateRequestLocked(req)
}

func (m *Memory) updateRequestLocked(req *leave.LeaveRequest) error {
	if _, ok := m.requests[req.ID]; !ok {
		return leave.Validationf("leave request %s not found", req.ID)
	}
	m.requests[req.ID] = req.Clone()
	return nil
}

func (m *Memory) HasOverlappingLeave(_ context.Context, employeeID string, start, end leave.Date) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hasOverlappingLocked(employeeID, start, end), nil
}

func (m *Memory) hasOverlappingLocked(employeeID string, start, end leave.Date) bool {
	for _, req := range m.requests {
		if req.EmployeeID != employeeID || req.OverallStatus == leave.StatusRejected {
			continue
		}
		if !req.EndDate.Before(start) && !req.StartDate.After(end) {
			return true
		}
	}
	return false
}

func (m *Memory) RequestNumberExists(_ context.Context, number int) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestNumbers[number], nil
}

// =============================================================================
// ALLOCATION LEDGER
// =============================================================================

func (m *Memory) Allocation(_ context.Context, employeeID string, year int, leaveType string) (*leave.LeaveAllocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.allocationLocked(employeeID, year, leaveType)
}

func (m *Memory) allocationLocked(employeeID string, year int, leaveType string) (*leave.LeaveAllocation, error) {
	id, ok := m.allocationKeys[allocationKey{employeeID, year, leaveType}]
	if !ok {
		return nil, nil
	}
	row := m.allocations[id]
	return &row, nil
}

func (m *Memory) Allocations(_ context.Context, employeeID string, year int) ([]leave.LeaveAllocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.allocationsLocked(employeeID, year), nil
}

func (m *Memory) allocationsLocked(employeeID string, year int) []leave.LeaveAllocation {
	var out []leave.LeaveAllocation
	for _, row := range m.allocations {
		if row.EmployeeID == employeeID && row.Year == year {
			out = append(out, row)
		}
	}
	// Same ordering as the SQLite store.
	sort.Slice(out, func(i, j int) bool {
		return out[i].LeaveType < out[j].LeaveType
	})
	return out
}

func (m *Memory) InsertAllocations(_ context.Context, rows []leave.LeaveAllocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertAllocationsLocked(rows)
}

func (m *Memory) insertAllocationsLocked(rows []leave.LeaveAllocation) error {
	// Check the uniqueness invariant first so the batch is all-or-nothing.
	for _, row := range rows {
		k := allocationKey{row.EmployeeID, row.Year, row.LeaveType}
		if _, exists := m.allocationKeys[k]; exists {
			return leave.Internalf(nil, "allocation row already exists for %s/%d/%s",
				row.EmployeeID, row.Year, row.LeaveType)
		}
	}
	for _, row := range rows {
		m.allocations[row.ID] = row
		m.allocationKeys[allocationKey{row.EmployeeID, row.Year, row.LeaveType}] = row.ID
	}
	return nil
}

func (m *Memory) UpdateApplied(_ context.Context, id string, applied decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateAppliedLocked(id, applied)
}

func (m *Memory) updateAppliedLocked(id string, applied decimal.Decimal) error {
	row, ok := m.allocations[id]
	if !ok {
		return leave.Internalf(nil, "allocation row %s not found", id)
	}
	row.Applied = applied
	m.allocations[id] = row
	return nil
}

// =============================================================================
// TRANSACTIONS - Snapshot + rollback
// =============================================================================

// WithTx executes fn within a simulated transaction: state is snapshotted
// up front and restored when fn fails.
func (m *Memory) WithTx(_ context.Context, fn func(leave.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	view := &txMemoryView{parent: m}

	if err := fn(view); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	requests       map[string]*leave.LeaveRequest
	requestNumbers map[int]bool
	allocations    map[string]leave.LeaveAllocation
	allocationKeys map[allocationKey]string
}

func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		requests:       make(map[string]*leave.LeaveRequest, len(m.requests)),
		requestNumbers: make(map[int]bool, len(m.requestNumbers)),
		allocations:    make(map[string]leave.LeaveAllocation, len(m.allocations)),
		allocationKeys: make(map[allocationKey]string, len(m.allocationKeys)),
	}
	for k, v := range m.requests {
		s.requests[k] = v.Clone()
	}
	for k, v := range m.requestNumbers {
		s.requestNumbers[k] = v
	}
	for k, v := range m.allocations {
		s.allocations[k] = v
	}
	for k, v := range m.allocationKeys {
		s.allocationKeys[k] = v
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.requests = s.requests
	m.requestNumbers = s.requestNumbers
	m.allocations = s.allocations
	m.allocationKeys = s.allocationKeys
}

// txMemoryView runs against the parent's state under the lock already held
// by WithTx.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) InsertRequest(_ context.Context, req *leave.LeaveRequest) error {
	return tv.parent.insertRequestLocked(req)
}

func (tv *txMemoryView) Request(_ context.Context, id string) (*leave.LeaveRequest, error) {
	return tv.parent.requestLocked(id)
}

func (tv *txMemoryView) UpdateRequest(_ context.Context, req *leave.LeaveRequest) error {
	return tv.parent.updateRequestLocked(req)
}

func (tv *txMemoryView) HasOverlappingLeave(_ context.Context, employeeID string, start, end leave.Date) (bool, error) {
	return tv.parent.hasOverlappingLocked(employeeID, start, end), nil
}

func (tv *txMemoryView) RequestNumberExists(_ context.Context, number int) (bool, error) {
	return tv.parent.requestNumbers[number], nil
}

func (tv *txMemoryView) Allocation(_ context.Context, employeeID string, year int, leaveType string) (*leave.LeaveAllocation, error) {
	return tv.parent.allocationLocked(employeeID, year, leaveType)
}

func (tv *txMemoryView) Allocations(_ context.Context, employeeID string, year int) ([]leave.LeaveAllocation, error) {
	return tv.parent.allocationsLocked(employeeID, year), nil
}

func (tv *txMemoryView) InsertAllocations(_ context.Context, rows []leave.LeaveAllocation) error {
	return tv.parent.insertAllocationsLocked(rows)
}

func (tv *txMemoryView) UpdateApplied(_ context.Context, id string, applied decimal.Decimal) error {
	return tv.parent.updateAppliedLocked(id, applied)
}
