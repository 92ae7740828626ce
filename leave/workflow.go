/*
workflow.go - Leave request approval state machine

PURPOSE:
  Owns every status transition of a leave request. The overall status is
  REQUESTED until the first action, then PENDING, APPROVED or REJECTED.
  APPROVED and REJECTED are terminal for everyone except a super user.

TRANSITION CONTRACT, given an action (actor, decision, comment):
  1. Terminal lock: acting on an APPROVED/REJECTED request fails unless
     the actor is a super user.
  2. Authorization: the actor's role must hold approval rights at all,
     and the actor must already be in the approver chain or hold a role
     that may act unassigned (HR, super user; appended to the chain on
     first action). Customers must already be in the chain.
  3. The decision updates exactly one chain entry, with comment and
     timestamp.
  4. Overall recomputation:
       - any REJECTED decision  -> overall REJECTED (short-circuit; a
         single rejection is final regardless of other entries)
       - APPROVED decision      -> APPROVED iff every entry approved;
         otherwise APPROVED anyway for HR/super user (administrative
         override); otherwise PENDING

  The caller persists the chain and status atomically and, when the
  transition moves into or out of APPROVED, updates the applied-leave
  ledger in the same unit of work (service.go).

STATE DIAGRAM:
                    approve (partial)
     REQUESTED ───────────────────────▶ PENDING
         │                                 │
         │ approve (all / override)        │ approve (all / override)
         ▼                                 ▼
     APPROVED ◀────────────────────── APPROVED
         │  reject (super user only)
         ▼
     REJECTED   (reject from any state short-circuits here)
*/
package leave

import (
	"fmt"
	"strings"
	"time"
)

// DecisionInput is one approval action against a leave request.
type DecisionInput struct {
	ActorID   string
	ActorRole Role
	Decision  ApprovalStatus // StatusApproved or StatusRejected
	Comment   string
	At        time.Time
}

// Transition records the overall-status movement an action caused.
type Transition struct {
	From ApprovalStatus
	To   ApprovalStatus
}

// NeedsLedgerUpdate reports whether the applied-leave ledger must change
// with this transition: moving into APPROVED adds the request's days,
// reversing a previously approved request subtracts them back.
func (t Transition) NeedsLedgerUpdate() bool {
	if t.To == StatusApproved && (t.From == StatusRequested || t.From == StatusPending) {
		return true
	}
	return t.From == StatusApproved && t.To == StatusRejected
}

// ApplyDecision validates the action against the request, mutates the
// approver chain and recomputes the overall status. The request is only
// mutated when the action is fully valid.
func ApplyDecision(req *LeaveRequest, in DecisionInput) (Transition, error) {
	if in.Decision != StatusApproved && in.Decision != StatusRejected {
		return Transition{}, Validationf("decision must be %s or %s", StatusApproved, StatusRejected)
	}

	from := req.OverallStatus

	// Terminal lock. Super users may act regardless of current state.
	if from.IsTerminal() && !CanActOnTerminal(in.ActorRole) {
		return Transition{}, Validationf("leave request already %s, cannot be updated again",
			strings.ToLower(string(from)))
	}

	if !CanApprove(in.ActorRole) {
		return Transition{}, Authorizationf("role %s cannot approve or reject leave requests", in.ActorRole)
	}

	entry, inChain := req.Approvers.Get(in.ActorID)
	if !inChain && !CanActUnassigned(in.ActorRole) {
		return Transition{}, Authorizationf("%s is not an approver for this leave request", in.ActorID)
	}

	decidedAt := in.At
	if inChain {
		entry.Status = in.Decision
		entry.Comment = in.Comment
		entry.DecidedAt = &decidedAt
		req.Approvers.Update(entry)
	} else {
		// HR / super user acting for the first time joins the chain.
		if err := req.Approvers.Append(Approver{
			ApproverID: in.ActorID,
			Role:       in.ActorRole,
			Status:     in.Decision,
			Comment:    in.Comment,
			DecidedAt:  &decidedAt,
		}); err != nil {
			return Transition{}, Internalf(err, "appending approver %s", in.ActorID)
		}
	}

	req.OverallStatus = recomputeOverall(req.Approvers, in)
	req.UpdatedBy = in.ActorID
	req.UpdatedAt = in.At

	return Transition{From: from, To: req.OverallStatus}, nil
}

// recomputeOverall derives the overall status from the approver statuses
// and the acting role. It is the only place the overall status is set.
func recomputeOverall(chain *ApproverChain, in DecisionInput) ApprovalStatus {
	if in.Decision == StatusRejected {
		return StatusRejected
	}
	if chain.AllApproved() {
		return StatusApproved
	}
	if CanOverride(in.ActorRole) {
		return StatusApproved
	}
	return StatusPending
}

// StatusMessage is the caller-facing confirmation for a completed action.
func StatusMessage(s ApprovalStatus) string {
	return fmt.Sprintf("leave request %s", strings.ToLower(string(s)))
}
