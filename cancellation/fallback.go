/*
fallback.go - Fee collection with outstanding-bill fallback

PURPOSE:
  When a cancellation decision says a fee is owed, the fee is charged
  against the payment processor. If the processor rejects the charge, the
  fee is added to the user's outstanding bill instead.

INVARIANT:
  Exactly one of {processor charge, bill addition} happens. Never both,
  never neither. A processor failure is not an error for the caller; the
  outcome records which leg collected the fee.
*/
package cancellation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/warp/marketplace-engine/engine"
)

// =============================================================================
// COLLABORATOR CONTRACTS
// =============================================================================

// Processor is the payment-processor boundary. Only the result contract
// matters here; the SDK lives outside this engine.
type Processor interface {
	// ChargeFee attempts to charge the fee and returns a processor charge
	// reference, or an error when the charge is declined/failed.
	ChargeFee(ctx context.Context, userID string, amount engine.Cents, reason string) (string, error)
}

// BillStore records fees that could not be collected immediately.
type BillStore interface {
	AddBillEntry(ctx context.Context, entry BillEntry) error
}

// BillEntry is one outstanding amount owed by a user.
type BillEntry struct {
	ID            string
	UserID        string
	AppointmentID string
	AmountCents   engine.Cents
	Reason        string
	CreatedAt     time.Time
}

// =============================================================================
// COLLECTOR
// =============================================================================

// FeeOutcome reports which leg collected the fee.
type FeeOutcome struct {
	Charged      bool   // true: processor charge succeeded
	ChargeRef    string // processor reference when Charged
	BilledToUser bool   // true: added to outstanding bill after charge failure
	BillEntryID  string
}

// Collector applies the fee leg of a cancellation decision.
type Collector struct {
	Processor Processor
	Bills     BillStore

	Now func() time.Time
}

func NewCollector(processor Processor, bills BillStore) *Collector {
	return &Collector{Processor: processor, Bills: bills, Now: time.Now}
}

// CollectFee charges the fee for a decision that says WillChargeFee, falling
// back to the outstanding bill when the processor declines. Returns a
// zero-value outcome when the decision charges no fee.
func (c *Collector) CollectFee(ctx context.Context, userID, appointmentID string, decision Decision, fee engine.Cents) (FeeOutcome, error) {
	if !decision.WillChargeFee || fee <= 0 {
		return FeeOutcome{}, nil
	}

	reason := fmt.Sprintf("cancellation fee for appointment %s", appointmentID)

	ref, err := c.Processor.ChargeFee(ctx, userID, fee, reason)
	if err == nil {
		return FeeOutcome{Charged: true, ChargeRef: ref}, nil
	}

	// Processor declined: the fee moves to the user's outstanding bill.
	entry := BillEntry{
		ID:            uuid.NewString(),
		UserID:        userID,
		AppointmentID: appointmentID,
		AmountCents:   fee,
		Reason:        reason,
		CreatedAt:     c.Now(),
	}
	if billErr := c.Bills.AddBillEntry(ctx, entry); billErr != nil {
		// Neither leg landed; surface the failure so the caller can retry
		// the whole collection.
		return FeeOutcome{}, fmt.Errorf("fee charge failed (%v) and bill fallback failed: %w", err, billErr)
	}

	return FeeOutcome{BilledToUser: true, BillEntryID: entry.ID}, nil
}
