/*
Package cancellation decides fee and refund outcomes when a booking is
cancelled.

PURPOSE:
  A client cancelling close to the appointment may owe a fee, because a
  worker was already staffed and is losing the slot. The evaluator is a pure
  function over timing and assignment facts; the collector (fallback.go)
  then makes the fee actually stick.

THE GOVERNING RULE:
  No assigned worker => no fee, ever, regardless of timing. A fee
  compensates staffing cost; with nobody staffed there is nothing to
  compensate.

DECISION TABLE:
  isWithinFeeWindow    = daysUntil <= windowDays (zero/negative included:
                         same-day and overdue cancellations are always
                         inside the window)
  willChargeFee        = isWithinFeeWindow AND hasCleanerAssigned
  requiresPaymentMethod= willChargeFee AND no payment method on file
  refund               = full price when no worker assigned
                         price x partialRefundRate inside the window
                         full price outside the window

SEE ALSO:
  - fallback.go: Processor charge vs outstanding-bill fallback
*/
package cancellation

import (
	"github.com/shopspring/decimal"

	"github.com/warp/marketplace-engine/engine"
)

// =============================================================================
// EVALUATION INPUT / DECISION
// =============================================================================

// Input carries the appointment and account facts at cancellation time.
type Input struct {
	DaysUntilAppointment int
	WindowDays           int
	HasCleanerAssigned   bool
	HasPaymentMethod     bool
	PriceCents           engine.Cents

	// PartialRefundRate is a 0..1 fraction (0.5 = half refund) applied to
	// the price for in-window cancellations with a worker assigned.
	PartialRefundRate decimal.Decimal
}

// Decision is the evaluator's output. Ephemeral; never persisted.
type Decision struct {
	IsWithinFeeWindow     bool
	HasCleanerAssigned    bool
	WillChargeFee         bool
	RefundAmountCents     engine.Cents
	RequiresPaymentMethod bool
}

// Evaluate computes the cancellation decision. Pure, side-effect free.
func Evaluate(in Input) Decision {
	withinWindow := in.DaysUntilAppointment <= in.WindowDays
	willCharge := withinWindow && in.HasCleanerAssigned

	refund := in.PriceCents
	if in.HasCleanerAssigned && withinWindow {
		refund = engine.ApplyFraction(in.PriceCents, in.PartialRefundRate)
	}

	return Decision{
		IsWithinFeeWindow:     withinWindow,
		HasCleanerAssigned:    in.HasCleanerAssigned,
		WillChargeFee:         willCharge,
		RefundAmountCents:     refund,
		RequiresPaymentMethod: willCharge && !in.HasPaymentMethod,
	}
}

// DefaultWindowDays is the cancellation fee window used when operator
// configuration is missing.
const DefaultWindowDays = 7
