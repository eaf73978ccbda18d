/*
processor_test.go - Tests for batch processing of due payouts

CORE DESIGN:
- Each payout is CAS-claimed into processing before the transfer call
- A failed transfer records its reason; no in-engine retry
- Concurrent runners racing on the same due set cannot double-transfer
*/
package payout_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/marketplace-engine/engine"
	"github.com/warp/marketplace-engine/payout"
	"github.com/warp/marketplace-engine/store/memory"
)

// =============================================================================
// TEST DOUBLES
// =============================================================================

type fakeTransfers struct {
	failFor   map[string]error // payout id -> forced failure
	transfers []string         // payout ids transferred, in order
}

func (f *fakeTransfers) Transfer(_ context.Context, workerID string, amount engine.Cents, payoutID string) (string, error) {
	if err, ok := f.failFor[payoutID]; ok {
		return "", err
	}
	f.transfers = append(f.transfers, payoutID)
	return "tr_" + payoutID, nil
}

func newTestProcessor(t *testing.T) (*payout.Processor, *payout.Ledger, *memory.Store, *fakeTransfers) {
	ledger, store := newTestLedger(t)
	activateDefaults(t, store)

	transfers := &fakeTransfers{failFor: map[string]error{}}
	proc := payout.NewProcessor(ledger, transfers)
	// A day past every 48h schedule created at testNow.
	proc.Now = func() time.Time { return testNow.Add(72 * time.Hour) }
	return proc, ledger, store, transfers
}

// =============================================================================
// BATCH TESTS
// =============================================================================

func TestProcessDue_CompletesDuePayouts(t *testing.T) {
	// GIVEN: Two payouts past their scheduled date
	// WHEN: Running a batch
	// THEN: Both are claimed, transferred, and completed with transfer ids

	proc, ledger, _, _ := newTestProcessor(t)

	p1, err := ledger.CreatePendingPayout(context.Background(), createInput("a1", "w1"))
	require.NoError(t, err)
	p2, err := ledger.CreatePendingPayout(context.Background(), createInput("a2", "w2"))
	require.NoError(t, err)

	result, err := proc.ProcessDue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Claimed)
	assert.Equal(t, 2, result.Completed)
	assert.Equal(t, 0, result.Failed)

	for _, id := range []string{p1.ID, p2.ID} {
		stored, err := ledger.Store.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, payout.StatusCompleted, stored.Status)
		assert.Equal(t, "tr_"+id, stored.TransferID)
		assert.NotNil(t, stored.PaidAt)
	}
}

func TestProcessDue_NotYetDue_Untouched(t *testing.T) {
	// GIVEN: A payout scheduled 48h out and a batch running now
	// WHEN: Processing
	// THEN: The payout stays pending; nothing claimed

	proc, ledger, _, _ := newTestProcessor(t)
	proc.Now = func() time.Time { return testNow } // before any schedule

	p, err := ledger.CreatePendingPayout(context.Background(), createInput("a1", "w1"))
	require.NoError(t, err)

	result, err := proc.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, payout.BatchResult{}, result)

	stored, err := ledger.Store.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, payout.StatusPending, stored.Status)
}

func TestProcessDue_TransferFailure_RecordsReason(t *testing.T) {
	// GIVEN: A transfer collaborator that rejects one payout
	// WHEN: Processing
	// THEN: The payout lands in failed with the collaborator's reason and is
	//       still queryable; the other payout completes normally

	proc, ledger, _, transfers := newTestProcessor(t)

	bad, err := ledger.CreatePendingPayout(context.Background(), createInput("a1", "w1"))
	require.NoError(t, err)
	good, err := ledger.CreatePendingPayout(context.Background(), createInput("a2", "w2"))
	require.NoError(t, err)

	transfers.failFor[bad.ID] = errors.New("account unverified")

	result, err := proc.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Claimed)
	assert.Equal(t, 1, result.Completed)
	assert.Equal(t, 1, result.Failed)

	stored, err := ledger.Store.Get(context.Background(), bad.ID)
	require.NoError(t, err)
	assert.Equal(t, payout.StatusFailed, stored.Status)
	assert.Equal(t, "account unverified", stored.FailureReason)

	stored, err = ledger.Store.Get(context.Background(), good.ID)
	require.NoError(t, err)
	assert.Equal(t, payout.StatusCompleted, stored.Status)
}

func TestProcessDue_FailedPayout_NotRetried(t *testing.T) {
	// GIVEN: A payout that failed in a previous batch
	// WHEN: Running another batch
	// THEN: It is not picked up again; failed is terminal

	proc, ledger, _, transfers := newTestProcessor(t)

	p, err := ledger.CreatePendingPayout(context.Background(), createInput("a1", "w1"))
	require.NoError(t, err)
	transfers.failFor[p.ID] = errors.New("account unverified")

	_, err = proc.ProcessDue(context.Background())
	require.NoError(t, err)

	delete(transfers.failFor, p.ID)
	result, err := proc.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, payout.BatchResult{}, result)

	stored, err := ledger.Store.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, payout.StatusFailed, stored.Status)
}

func TestProcessDue_AlreadyClaimed_Skipped(t *testing.T) {
	// GIVEN: A due payout another runner already claimed into processing
	// WHEN: This runner processes the same due set
	// THEN: The CAS loss is counted as skipped, never a double transfer

	proc, ledger, _, transfers := newTestProcessor(t)

	p, err := ledger.CreatePendingPayout(context.Background(), createInput("a1", "w1"))
	require.NoError(t, err)

	// Simulate the concurrent runner's claim. The row is now processing,
	// so the due query excludes it and the batch transfers nothing.
	_, err = ledger.Transition(context.Background(), p.ID, payout.StatusPending, payout.StatusProcessing, payout.TransitionMeta{})
	require.NoError(t, err)

	result, err := proc.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, payout.BatchResult{}, result)
	assert.Empty(t, transfers.transfers)
}

func TestProcessDue_HighPriorityFirst(t *testing.T) {
	// GIVEN: A normal-priority payout created before a high-priority one
	// WHEN: Processing the due set
	// THEN: The high-priority payout transfers first

	proc, ledger, store, transfers := newTestProcessor(t)

	normal, err := ledger.CreatePendingPayout(context.Background(), createInput("a1", "w-normal"))
	require.NoError(t, err)

	// Make w-fast gold (faster payouts => high priority) before creating.
	for _, loc := range []string{"loc-job", "loc-2", "loc-3", "loc-4", "loc-5"} {
		_, err := store.AddPreferred(context.Background(), "w-fast", loc)
		require.NoError(t, err)
	}
	fast, err := ledger.CreatePendingPayout(context.Background(), createInput("a2", "w-fast"))
	require.NoError(t, err)
	require.Equal(t, payout.PriorityHigh, fast.PayoutPriority)

	_, err = proc.ProcessDue(context.Background())
	require.NoError(t, err)

	require.Len(t, transfers.transfers, 2)
	assert.Equal(t, fast.ID, transfers.transfers[0])
	assert.Equal(t, normal.ID, transfers.transfers[1])
}
