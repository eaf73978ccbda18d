/*
ledger.go - Payout creation and the single transition entry point

PURPOSE:
  The Ledger turns a completed assignment's pay share into a PendingPayout
  with the worker's perks snapshotted, and funnels every status change
  through one Transition method that validates legality against the
  transition table before handing the compare-and-swap to the store.

TIER SNAPSHOT AT CREATION:
  payoutPriority      = fasterPayouts ? high : normal
  expectedPayoutHours = config payoutHours, defaulting to 48
  tierAtPayout        = the tier name at this moment, kept forever

BONUS RULE:
  The preferred bonus applies only when the worker holds preferred status
  at the JOB'S location and the tier's bonus percent is positive. The bonus
  is carved out of the platform's fee on the job - round(fee x pct / 100) -
  not added on top of the job price.

WHY ONE ENTRY POINT:
  The legacy shape mutated status strings at scattered call sites. Routing
  every change through Transition means legality, required metadata, and
  snapshot side effects are enforced in exactly one place.

SEE ALSO:
  - types.go: The transition table
  - processor.go: Batch transfers calling Transition
*/
package payout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/warp/marketplace-engine/engine"
	"github.com/warp/marketplace-engine/pricing"
	"github.com/warp/marketplace-engine/tiers"
)

// =============================================================================
// LEDGER
// =============================================================================

// Ledger creates payouts and applies lifecycle transitions.
type Ledger struct {
	Store         Store
	Tiers         *tiers.Service
	Relationships tiers.RelationshipStore

	Now func() time.Time
}

func NewLedger(store Store, tierSvc *tiers.Service, relationships tiers.RelationshipStore) *Ledger {
	return &Ledger{
		Store:         store,
		Tiers:         tierSvc,
		Relationships: relationships,
		Now:           time.Now,
	}
}

// CreateInput describes one completed assignment's earnings.
type CreateInput struct {
	AssignmentID string
	WorkerID     string
	OwnerID      string
	LocationID   string // the client location of the job; gates the bonus

	Share pricing.WorkerShare // from pricing.Split

	// PlatformFeeCents is the platform's fee on this job, the base the
	// preferred bonus is carved from.
	PlatformFeeCents engine.Cents

	EarnedAt time.Time
}

// CreatePendingPayout creates exactly one payout for the assignment,
// snapshotting the worker's current tier perks. A racing duplicate create
// returns engine.ErrDuplicateAssignment and writes nothing.
func (l *Ledger) CreatePendingPayout(ctx context.Context, in CreateInput) (*PendingPayout, error) {
	if in.AssignmentID == "" {
		return nil, &engine.ValidationError{Field: "assignmentId", Message: "required"}
	}
	if in.WorkerID == "" {
		return nil, &engine.ValidationError{Field: "workerId", Message: "required"}
	}
	if in.Share.PayCents.IsNegative() {
		return nil, &engine.ValidationError{Field: "share.payCents", Message: "must not be negative"}
	}

	status, err := l.Tiers.CurrentStatus(ctx, in.WorkerID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tier status: %w", err)
	}

	bonus, bonusApplied, err := l.bonusFor(ctx, in, status)
	if err != nil {
		return nil, err
	}

	earnedAt := in.EarnedAt
	if earnedAt.IsZero() {
		earnedAt = l.Now()
	}

	expectedHours := status.PayoutHours
	if expectedHours <= 0 {
		expectedHours = tiers.DefaultPayoutHours
	}

	priority := PriorityNormal
	if status.FasterPayouts {
		priority = PriorityHigh
	}

	now := l.Now()
	p := PendingPayout{
		ID:           uuid.NewString(),
		WorkerID:     in.WorkerID,
		OwnerID:      in.OwnerID,
		AssignmentID: in.AssignmentID,

		AmountCents: in.Share.PayCents + bonus,
		PayKind:     in.Share.PayKind,
		HoursWorked: in.Share.AdjustedDurationHours,

		Status: StatusPending,

		PayoutPriority:        priority,
		ExpectedPayoutHours:   expectedHours,
		PreferredBonusApplied: bonusApplied,
		PreferredBonusPercent: status.BonusPercent,
		PreferredBonusCents:   bonus,
		TierAtPayout:          status.TierLevel,

		ScheduledPayoutDate: earnedAt.Add(time.Duration(expectedHours) * time.Hour),
		EarnedAt:            earnedAt,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := l.Store.Create(ctx, p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (l *Ledger) bonusFor(ctx context.Context, in CreateInput, status *tiers.Status) (engine.Cents, bool, error) {
	if status.BonusPercent.Sign() <= 0 || in.LocationID == "" {
		return 0, false, nil
	}
	preferred, err := l.Relationships.IsPreferred(ctx, in.WorkerID, in.LocationID)
	if err != nil {
		return 0, false, fmt.Errorf("failed to check preferred status: %w", err)
	}
	if !preferred {
		return 0, false, nil
	}
	return engine.ApplyPercent(in.PlatformFeeCents, status.BonusPercent), true, nil
}

// =============================================================================
// TRANSITION - The single lifecycle entry point
// =============================================================================

// Transition applies from -> to on the payout, validating legality and
// required metadata before the store's compare-and-swap. On CAS mismatch
// the caller receives engine.ErrConcurrentModification and must treat the
// effect as applied by a concurrent actor.
func (l *Ledger) Transition(ctx context.Context, id string, from, to Status, meta TransitionMeta) (*PendingPayout, error) {
	if !CanTransition(from, to) {
		return nil, &engine.TransitionError{
			PayoutID: id, From: string(from), To: string(to),
			Reason: "not in transition table",
		}
	}

	switch to {
	case StatusCompleted:
		if meta.TransferID == "" {
			return nil, &engine.TransitionError{
				PayoutID: id, From: string(from), To: string(to),
				Reason: "completion requires a transfer reference",
			}
		}
		if meta.PaidAt == nil {
			paidAt := l.Now()
			meta.PaidAt = &paidAt
		}
	case StatusFailed:
		if meta.FailureReason == "" {
			return nil, &engine.TransitionError{
				PayoutID: id, From: string(from), To: string(to),
				Reason: "failure requires a reason",
			}
		}
	case StatusCancelled:
		if meta.FailureReason == "" {
			return nil, &engine.TransitionError{
				PayoutID: id, From: string(from), To: string(to),
				Reason: "cancellation requires a reason",
			}
		}
	}

	if err := l.Store.Transition(ctx, id, from, to, meta); err != nil {
		return nil, err
	}
	return l.Store.Get(ctx, id)
}

// =============================================================================
// QUERIES
// =============================================================================

func (l *Ledger) Query(ctx context.Context, filter QueryFilter) ([]PendingPayout, error) {
	return l.Store.Query(ctx, filter)
}

func (l *Ledger) PendingForWorker(ctx context.Context, workerID string) (PendingTotals, error) {
	return l.Store.PendingTotalsForWorker(ctx, workerID)
}

func (l *Ledger) PendingForOwner(ctx context.Context, ownerID string) (PendingTotals, error) {
	return l.Store.PendingTotalsForOwner(ctx, ownerID)
}

// DueOnOrBefore returns pending payouts whose scheduled date has arrived.
func (l *Ledger) DueOnOrBefore(ctx context.Context, at time.Time) ([]PendingPayout, error) {
	return l.Store.Query(ctx, QueryFilter{Status: StatusPending, DueOnOrBefore: &at})
}
