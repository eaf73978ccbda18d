/*
splitter.go - Co-staffed job duration and pay splitting

PURPOSE:
  Computes each worker's adjusted duration and pay for a job. Pure function:
  no side effects, safe to call concurrently from any number of handlers.

THE DURATION RULE:
  adjusted = workerCount <= 1 ? base : RoundUpToHalfHour(base / workerCount)

  Rounding is always UP to the half hour, the smallest billable increment.
  Consequence: adjusted * workerCount >= base, so hourly workers collectively
  never bill less than the job's base duration.

THE PAY RULES (per worker, against the SHARED adjusted duration):
  Hourly:       round(rate x adjusted)
  FlatRate:     the fixed amount, untouched by headcount or duration
  Percentage:   round(jobPrice x rate / 100) - keyed to total job price
  SelfAssigned: 0 - owner margin is not a ledger payout

EXAMPLE:
  2h job, 3 hourly workers @ $20/hr:
    adjusted = ceil((2/3)*2)/2 = 1.0h, pay = 2000 cents each

SEE ALSO:
  - types.go: PaymentTerms variants
  - payout/ledger.go: Consumes WorkerShare when creating payouts
*/
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/warp/marketplace-engine/engine"
)

// SplitInput describes the job being divided.
type SplitInput struct {
	BaseDurationHours decimal.Decimal
	JobPriceCents     engine.Cents // total job price; basis for Percentage pay
	Workers           []Worker
}

// SplitResult carries the shared adjusted duration and per-worker shares.
type SplitResult struct {
	AdjustedDurationHours decimal.Decimal
	Shares                []WorkerShare
}

// Split computes the shared adjusted duration and each worker's pay.
// Returns ErrInvalidInput for non-positive duration or an empty worker list.
func Split(in SplitInput) (*SplitResult, error) {
	if in.BaseDurationHours.Sign() <= 0 {
		return nil, &engine.ValidationError{Field: "baseDurationHours", Message: "must be positive"}
	}
	if len(in.Workers) == 0 {
		return nil, &engine.ValidationError{Field: "workers", Message: "at least one worker required"}
	}

	adjusted := AdjustedDuration(in.BaseDurationHours, len(in.Workers))

	shares := make([]WorkerShare, 0, len(in.Workers))
	for _, w := range in.Workers {
		terms := w.Terms
		if terms == nil {
			// Null worker terms on a legacy row: treat as zero flat rate.
			terms = FlatRate{}
		}
		shares = append(shares, WorkerShare{
			WorkerID:              w.WorkerID,
			AdjustedDurationHours: adjusted,
			PayCents:              payFor(terms, adjusted, in.JobPriceCents),
			PayKind:               terms.Kind(),
		})
	}

	return &SplitResult{AdjustedDurationHours: adjusted, Shares: shares}, nil
}

// AdjustedDuration divides the base duration by headcount and rounds UP to
// the half hour. A solo job keeps its base duration untouched.
func AdjustedDuration(baseHours decimal.Decimal, workerCount int) decimal.Decimal {
	if workerCount <= 1 {
		return baseHours
	}
	return engine.RoundUpToHalfHour(baseHours.Div(decimal.NewFromInt(int64(workerCount))))
}

func payFor(terms PaymentTerms, adjustedHours decimal.Decimal, jobPrice engine.Cents) engine.Cents {
	switch t := terms.(type) {
	case Hourly:
		return engine.RoundToCents(t.RateCents.Decimal().Mul(adjustedHours))
	case FlatRate:
		return t.AmountCents
	case Percentage:
		return engine.ApplyPercent(jobPrice, t.Rate)
	case SelfAssigned:
		return 0
	default:
		// Unreachable: PaymentTerms is sealed to the four variants above.
		return 0
	}
}
