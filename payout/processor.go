/*
processor.go - Batch processing of due payouts

PURPOSE:
  Drives pending payouts whose scheduled date has arrived through the
  external transfer collaborator. Each payout is CAS-claimed into
  processing first, so concurrent batch workers racing over the same due
  set cannot double-transfer: the loser of the claim skips the row.

FLOW PER PAYOUT:
  1. pending -> processing (CAS claim; loser skips)
  2. transfer collaborator call
  3. processing -> completed (with transfer id)  OR
     processing -> failed (with the collaborator's failure reason)

NO IN-ENGINE RETRY:
  A failed payout stays failed with its reason recorded. Retrying is an
  external scheduler's concern - it would create a fresh payout or resubmit
  explicitly, never flip failed back.
*/
package payout

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/warp/marketplace-engine/engine"
)

// TransferClient is the payment-transfer boundary. Only the result contract
// matters: a transfer id on success, a reason on failure.
type TransferClient interface {
	Transfer(ctx context.Context, workerID string, amount engine.Cents, payoutID string) (transferID string, err error)
}

// BatchResult summarizes one processor run.
type BatchResult struct {
	Claimed   int // payouts this run moved into processing
	Completed int
	Failed    int
	Skipped   int // lost the CAS claim to a concurrent worker
}

// Processor runs transfer batches over due payouts.
type Processor struct {
	Ledger   *Ledger
	Transfer TransferClient

	Now func() time.Time
}

func NewProcessor(ledger *Ledger, transfer TransferClient) *Processor {
	return &Processor{Ledger: ledger, Transfer: transfer, Now: time.Now}
}

// ProcessDue claims and transfers every payout due on or before now.
// Safe to run from multiple workers concurrently: row-level CAS makes the
// due set disjoint between them without a global lock.
func (p *Processor) ProcessDue(ctx context.Context) (BatchResult, error) {
	due, err := p.Ledger.DueOnOrBefore(ctx, p.Now())
	if err != nil {
		return BatchResult{}, err
	}

	var result BatchResult
	for _, payout := range due {
		outcome, err := p.processOne(ctx, payout)
		if err != nil {
			log.Printf("[Payouts] Error processing %s: %v", payout.ID, err)
			continue
		}
		switch outcome {
		case StatusCompleted:
			result.Claimed++
			result.Completed++
		case StatusFailed:
			result.Claimed++
			result.Failed++
		default:
			result.Skipped++
		}
	}

	if result.Claimed > 0 || result.Skipped > 0 {
		log.Printf("[Payouts] Batch done: %d completed, %d failed, %d skipped",
			result.Completed, result.Failed, result.Skipped)
	}
	return result, nil
}

// processOne returns the terminal status reached, or "" when the payout was
// claimed by a concurrent worker.
func (p *Processor) processOne(ctx context.Context, payout PendingPayout) (Status, error) {
	// Claim. Losing the CAS means another worker owns this payout now.
	_, err := p.Ledger.Transition(ctx, payout.ID, StatusPending, StatusProcessing, TransitionMeta{})
	if err != nil {
		if errors.Is(err, engine.ErrConcurrentModification) {
			return "", nil
		}
		return "", err
	}

	transferID, transferErr := p.Transfer.Transfer(ctx, payout.WorkerID, payout.AmountCents, payout.ID)
	if transferErr != nil {
		// Record the failure; the payout stays queryable with its reason.
		_, err := p.Ledger.Transition(ctx, payout.ID, StatusProcessing, StatusFailed, TransitionMeta{
			FailureReason: transferErr.Error(),
		})
		if err != nil {
			return "", err
		}
		return StatusFailed, nil
	}

	_, err = p.Ledger.Transition(ctx, payout.ID, StatusProcessing, StatusCompleted, TransitionMeta{
		TransferID: transferID,
	})
	if err != nil {
		return "", err
	}
	return StatusCompleted, nil
}
