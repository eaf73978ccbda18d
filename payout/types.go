/*
Package payout owns the lifecycle of money owed to a worker.

PURPOSE:
  When an assignment completes, exactly one PendingPayout is created for it,
  snapshotting the worker's tier perks at that moment. The record then moves
  through an explicit state machine until the money moves (or provably
  doesn't). A payout is never silently lost: every record remains queryable
  in a terminal state with a human-readable failure reason when applicable.

STATE MACHINE:

      pending ──────▶ processing ──────▶ completed
         │                  │
         ▼                  ▼
     cancelled           failed

  - pending -> processing:  a batch/transfer attempt begins
  - processing -> completed: requires a transfer reference; sets paidAt
  - processing -> failed:    requires a failure reason; no in-engine retry
  - pending -> cancelled:    source job voided before any transfer attempt;
                             requires a reason
  completed/failed/cancelled are terminal. There is no mid-flight
  cancellation of processing: once entered, the only legal outcomes are
  completed or failed.

CONCURRENCY:
  - At-most-one payout per assignment is enforced by a uniqueness constraint
    at the persistence boundary, not application locking.
  - Transitions are compare-and-swap: the store writes the new status only
    if the row still holds the expected one. Concurrent batch workers racing
    on the same payout lose with ErrConcurrentModification and must not
    reapply financial effects.

SEE ALSO:
  - ledger.go: Creation with tier snapshot + the transition entry point
  - processor.go: Batch runner driving due payouts through transfers
*/
package payout

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/marketplace-engine/engine"
	"github.com/warp/marketplace-engine/pricing"
)

// =============================================================================
// STATUS - Enumerated lifecycle states and the legal transition table
// =============================================================================

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// legalTransitions is the single source of truth for lifecycle legality.
var legalTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to Status) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status has no outgoing transitions.
func (s Status) IsTerminal() bool {
	return len(legalTransitions[s]) == 0
}

// Priority orders payouts within a batch run.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
)

// =============================================================================
// PENDING PAYOUT - The money-owed record
// =============================================================================

// PendingPayout is created once per completed assignment and is immutable
// except for its status and terminal fields (transfer id, failure reason,
// paid-at, cancel reason).
type PendingPayout struct {
	ID           string
	WorkerID     string
	OwnerID      string
	AssignmentID string // unique: at most one payout per assignment

	AmountCents engine.Cents
	PayKind     pricing.PayKind
	HoursWorked decimal.Decimal

	Status Status

	// Tier snapshot, frozen at creation. A later tier downgrade never
	// rewrites these.
	PayoutPriority        Priority
	ExpectedPayoutHours   int
	PreferredBonusApplied bool
	PreferredBonusPercent decimal.Decimal
	PreferredBonusCents   engine.Cents
	TierAtPayout          string

	ScheduledPayoutDate time.Time
	TransferID          string
	FailureReason       string
	EarnedAt            time.Time
	PaidAt              *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// =============================================================================
// TRANSITIONS - Metadata accompanying a status change
// =============================================================================

// TransitionMeta carries the terminal fields a transition writes.
type TransitionMeta struct {
	TransferID    string     // required for processing -> completed
	FailureReason string     // required for processing -> failed and pending -> cancelled
	PaidAt        *time.Time // set by the ledger on completion
}

// =============================================================================
// STORE - Persistence boundary
// =============================================================================

// QueryFilter selects payouts. Zero-value fields are ignored.
type QueryFilter struct {
	WorkerID      string
	OwnerID       string
	Status        Status
	DueOnOrBefore *time.Time
}

// PendingTotals summarizes outstanding money for a worker or owner.
type PendingTotals struct {
	Count       int
	AmountCents engine.Cents
}

// Store persists payouts. Implementations must enforce assignment
// uniqueness on Create and compare-and-swap semantics on Transition.
type Store interface {
	// Create inserts the payout. Returns engine.ErrDuplicateAssignment when
	// a payout already exists for the same assignment.
	Create(ctx context.Context, p PendingPayout) error

	// Get returns the payout or engine.ErrPayoutNotFound.
	Get(ctx context.Context, id string) (*PendingPayout, error)

	// GetByAssignment returns the payout for an assignment, or
	// engine.ErrPayoutNotFound.
	GetByAssignment(ctx context.Context, assignmentID string) (*PendingPayout, error)

	// Transition applies from -> to with meta only if the row still holds
	// from. Returns engine.ErrConcurrentModification when the precondition
	// no longer holds, engine.ErrPayoutNotFound when the row is missing.
	Transition(ctx context.Context, id string, from, to Status, meta TransitionMeta) error

	// Query returns payouts matching the filter, oldest first, high
	// priority before normal within a status.
	Query(ctx context.Context, filter QueryFilter) ([]PendingPayout, error)

	// PendingTotalsForWorker sums pending amounts owed to a worker.
	PendingTotalsForWorker(ctx context.Context, workerID string) (PendingTotals, error)

	// PendingTotalsForOwner sums pending amounts owed across an owner's
	// business.
	PendingTotalsForOwner(ctx context.Context, ownerID string) (PendingTotals, error)
}
