/*
scheduler.go - Automated payout batch scheduler

PURPOSE:
  Periodically runs the payout processor over pending payouts whose
  scheduled date has arrived and drives them through the transfer
  collaborator.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each run delegates to payout.Processor.ProcessDue; the row-level
    compare-and-swap there makes concurrent schedulers safe
  - Failed transfers stay failed with their reason; no in-engine retry

CONFIGURATION:
  - CheckInterval: How often to check (default: 15 minutes)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewPayoutScheduler(processor)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: ProcessPayouts endpoint (manual batch trigger)
  - payout/processor.go: Claim/transfer/settle per payout
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/marketplace-engine/payout"
)

// PayoutScheduler runs transfer batches on an interval.
type PayoutScheduler struct {
	Processor     *payout.Processor
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPayoutScheduler creates a new scheduler.
func NewPayoutScheduler(processor *payout.Processor) *PayoutScheduler {
	return &PayoutScheduler{
		Processor:     processor,
		CheckInterval: 15 * time.Minute,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (ps *PayoutScheduler) Start() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	ps.ticker = time.NewTicker(ps.CheckInterval)
	ps.wg.Add(1)

	go ps.run()

	log.Printf("[Scheduler] Started with check interval: %v", ps.CheckInterval)
}

// Stop stops the scheduler.
func (ps *PayoutScheduler) Stop() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.ticker != nil {
		ps.ticker.Stop()
		close(ps.stop)
		ps.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (ps *PayoutScheduler) run() {
	defer ps.wg.Done()

	// Run immediately on start
	ps.checkAndProcess()

	for {
		select {
		case <-ps.ticker.C:
			ps.checkAndProcess()
		case <-ps.stop:
			return
		}
	}
}

func (ps *PayoutScheduler) checkAndProcess() {
	ctx := context.Background()

	result, err := ps.Processor.ProcessDue(ctx)
	if err != nil {
		log.Printf("[Scheduler] Error processing due payouts: %v", err)
		return
	}

	if result.Claimed > 0 || result.Skipped > 0 {
		log.Printf("[Scheduler] Batch completed: %d completed, %d failed, %d skipped",
			result.Completed, result.Failed, result.Skipped)
	}
}

// RunNow triggers an immediate check (for testing/admin).
func (ps *PayoutScheduler) RunNow() {
	ps.checkAndProcess()
}

// GetNextRunTime returns when the next scheduled check will occur.
func (ps *PayoutScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(ps.CheckInterval)
}
