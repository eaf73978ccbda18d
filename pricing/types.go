/*
Package pricing splits one job's duration and pay across simultaneous workers.

PURPOSE:
  A co-staffed job is one appointment serviced by more than one worker at the
  same time. The job's base duration is divided by headcount, then rounded UP
  to the half hour so hourly workers are never shortchanged by splitting.
  Every worker on the job sees the same adjusted duration; pay is then
  computed per worker from that worker's payment terms.

KEY CONCEPTS IN THIS FILE (types.go):
  - PaymentTerms: Tagged union of how a worker is paid
  - TermsFromRaw: Boundary normalizer for string-keyed pay types
  - WorkerShare: Per-worker result of a split

PAY TERM VARIANTS:
  Hourly{RateCents}:     rate x shared adjusted duration
  FlatRate{AmountCents}: fixed, invariant under headcount/duration
  Percentage{Rate}:      literal percent of TOTAL job price (the percentage
                         already encodes the worker's contractual share)
  SelfAssigned{}:        owner working their own job; earns margin, not payout

WHY A TAGGED UNION:
  The legacy shape was a string payType dispatched at every call site with a
  silent flat-rate fallback. The union makes matching exhaustive; the only
  place a raw string is interpreted is TermsFromRaw at the input boundary.

SEE ALSO:
  - splitter.go: The split computation
  - engine/money.go: Rounding primitives
*/
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/warp/marketplace-engine/engine"
)

// =============================================================================
// PAYMENT TERMS - Tagged union of worker pay arrangements
// =============================================================================

// PayKind names a PaymentTerms variant. Stored on payouts for reporting.
type PayKind string

const (
	PayHourly     PayKind = "hourly"
	PayFlatRate   PayKind = "flat_rate"
	PayPercentage PayKind = "percentage"
	PayNone       PayKind = "none" // self-assigned owner
)

// PaymentTerms is implemented by exactly the four pay variants below.
// The sealed method prevents out-of-package variants so matching in
// the splitter stays exhaustive.
type PaymentTerms interface {
	Kind() PayKind
	sealed()
}

// Hourly pays rate x the shared adjusted duration.
// RateCents is cents per hour.
type Hourly struct {
	RateCents engine.Cents
}

// FlatRate pays a fixed per-job amount regardless of headcount or duration.
type FlatRate struct {
	AmountCents engine.Cents
}

// Percentage pays a literal percent (20 = 20%) of the TOTAL job price.
// It is never divided by headcount: the contractual rate already encodes
// the worker's share.
type Percentage struct {
	Rate decimal.Decimal
}

// SelfAssigned marks the owner cleaning alongside staff. The owner earns
// business margin, not a ledger payout, so the share is always zero.
type SelfAssigned struct{}

func (Hourly) Kind() PayKind       { return PayHourly }
func (FlatRate) Kind() PayKind     { return PayFlatRate }
func (Percentage) Kind() PayKind   { return PayPercentage }
func (SelfAssigned) Kind() PayKind { return PayNone }

func (Hourly) sealed()       {}
func (FlatRate) sealed()     {}
func (Percentage) sealed()   {}
func (SelfAssigned) sealed() {}

// =============================================================================
// BOUNDARY NORMALIZATION - The one place raw pay types are interpreted
// =============================================================================

// TermsFromRaw converts a raw string pay type and rate into PaymentTerms.
// Unknown or missing pay types normalize to FlatRate with the fallback
// amount (or zero); split never fails on malformed assignment rows.
//
// Recognized raw values: "hourly", "flat_rate", "per_job" (legacy alias),
// "percentage", "self" / "none".
func TermsFromRaw(payType string, rateValue decimal.Decimal, fallback engine.Cents) PaymentTerms {
	switch payType {
	case "hourly":
		return Hourly{RateCents: engine.RoundToCents(rateValue)}
	case "flat_rate", "per_job":
		return FlatRate{AmountCents: engine.RoundToCents(rateValue)}
	case "percentage":
		return Percentage{Rate: rateValue}
	case "self", "none":
		return SelfAssigned{}
	default:
		return FlatRate{AmountCents: fallback}
	}
}

// =============================================================================
// SPLIT RESULTS
// =============================================================================

// Worker is the splitter's view of one assignment on the job.
type Worker struct {
	WorkerID string
	Terms    PaymentTerms
}

// WorkerShare is the per-worker outcome of a split.
type WorkerShare struct {
	WorkerID              string
	AdjustedDurationHours decimal.Decimal
	PayCents              engine.Cents
	PayKind               PayKind
}
