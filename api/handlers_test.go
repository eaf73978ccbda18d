/*
handlers_test.go - HTTP-level tests for the API surface

Tests drive the real router with httptest against an in-memory SQLite
store, covering:
- Split computation over the wire
- Payout creation, duplicate rejection, and the transition endpoint
- Relationship changes triggering tier recomputes
- Cancellation evaluation
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/warp/marketplace-engine/engine"
	"github.com/warp/marketplace-engine/store/sqlite"
	"github.com/warp/marketplace-engine/tiers"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var errDeclined = errors.New("card declined")

type stubTransfers struct{ fail error }

func (s stubTransfers) Transfer(_ context.Context, workerID string, amount engine.Cents, payoutID string) (string, error) {
	if s.fail != nil {
		return "", s.fail
	}
	return "tr_stub", nil
}

type stubCharges struct{ fail error }

func (s stubCharges) ChargeFee(_ context.Context, userID string, amount engine.Cents, reason string) (string, error) {
	if s.fail != nil {
		return "", s.fail
	}
	return "ch_stub", nil
}

func newTestAPI(t *testing.T) (*chiServer, *Handler) {
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if _, err := store.ActivateConfig(context.Background(), tiers.DefaultLevels()); err != nil {
		t.Fatalf("Failed to seed tier config: %v", err)
	}

	handler := NewHandler(store, stubTransfers{}, stubCharges{})
	return &chiServer{router: NewRouter(handler)}, handler
}

type chiServer struct{ router http.Handler }

func (s *chiServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return v
}

// =============================================================================
// PRICING ENDPOINT TESTS
// =============================================================================

func TestComputeSplitEndpoint(t *testing.T) {
	// GIVEN: A 2h job with three hourly workers at $20/hr
	// WHEN: POSTing the split request
	// THEN: 200 with the shared 1.0h duration and 2000 cents each

	srv, _ := newTestAPI(t)

	rec := srv.do(t, "POST", "/api/pricing/split", ComputeSplitRequest{
		BaseDurationHours: 2,
		JobPriceCents:     12000,
		Workers: []SplitWorkerRequest{
			{WorkerID: "w1", PayType: "hourly", RateValue: 2000},
			{WorkerID: "w2", PayType: "hourly", RateValue: 2000},
			{WorkerID: "w3", PayType: "hourly", RateValue: 2000},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decode[ComputeSplitResponse](t, rec)
	if resp.AdjustedDurationHours != 1.0 {
		t.Errorf("Expected adjusted duration 1.0, got %v", resp.AdjustedDurationHours)
	}
	for _, share := range resp.Shares {
		if share.PayCents != 2000 {
			t.Errorf("Expected 2000 cents for %s, got %d", share.WorkerID, share.PayCents)
		}
	}
}

func TestComputeSplitEndpoint_InvalidInput(t *testing.T) {
	// GIVEN: A zero-duration job
	// WHEN: POSTing
	// THEN: 400 with an error body

	srv, _ := newTestAPI(t)

	rec := srv.do(t, "POST", "/api/pricing/split", ComputeSplitRequest{
		BaseDurationHours: 0,
		Workers:           []SplitWorkerRequest{{WorkerID: "w1", PayType: "hourly", RateValue: 2000}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
}

// =============================================================================
// PAYOUT ENDPOINT TESTS
// =============================================================================

func payoutRequest(assignmentID string) CreatePayoutRequest {
	return CreatePayoutRequest{
		AssignmentID:          assignmentID,
		WorkerID:              "w1",
		OwnerID:               "owner-1",
		LocationID:            "loc-1",
		PayType:               "hourly",
		PayCents:              4500,
		AdjustedDurationHours: 1.5,
		PlatformFeeCents:      1500,
	}
}

func TestCreatePayoutEndpoint_And_Duplicate(t *testing.T) {
	// GIVEN: A completed assignment
	// WHEN: Creating its payout twice
	// THEN: 201 then 409; at most one payout per assignment

	srv, _ := newTestAPI(t)

	rec := srv.do(t, "POST", "/api/payouts", payoutRequest("a1"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[PayoutDTO](t, rec)
	if created.Status != "pending" {
		t.Errorf("Expected pending status, got %s", created.Status)
	}
	if created.AmountCents != 4500 {
		t.Errorf("Expected 4500 cents (no bonus for bronze), got %d", created.AmountCents)
	}

	rec = srv.do(t, "POST", "/api/payouts", payoutRequest("a1"))
	if rec.Code != http.StatusConflict {
		t.Fatalf("Expected 409 for duplicate assignment, got %d", rec.Code)
	}
}

func TestTransitionPayoutEndpoint(t *testing.T) {
	// GIVEN: A pending payout
	// WHEN: Walking it through the lifecycle over HTTP
	// THEN: Legal steps succeed; an illegal edge returns 400; a CAS replay 409

	srv, _ := newTestAPI(t)

	created := decode[PayoutDTO](t, srv.do(t, "POST", "/api/payouts", payoutRequest("a1")))

	// Illegal: pending -> completed directly.
	rec := srv.do(t, "POST", "/api/payouts/"+created.ID+"/transition", TransitionPayoutRequest{
		FromStatus: "pending", ToStatus: "completed", TransferID: "tr_1",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for illegal edge, got %d", rec.Code)
	}

	rec = srv.do(t, "POST", "/api/payouts/"+created.ID+"/transition", TransitionPayoutRequest{
		FromStatus: "pending", ToStatus: "processing",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Replay of the claim loses the CAS.
	rec = srv.do(t, "POST", "/api/payouts/"+created.ID+"/transition", TransitionPayoutRequest{
		FromStatus: "pending", ToStatus: "processing",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("Expected 409 for CAS replay, got %d", rec.Code)
	}

	rec = srv.do(t, "POST", "/api/payouts/"+created.ID+"/transition", TransitionPayoutRequest{
		FromStatus: "processing", ToStatus: "completed", TransferID: "tr_1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	final := decode[PayoutDTO](t, rec)
	if final.Status != "completed" || final.TransferID != "tr_1" || final.PaidAt == nil {
		t.Errorf("Completed payout missing terminal fields: %+v", final)
	}
}

func TestGetPayoutEndpoint_NotFound(t *testing.T) {
	srv, _ := newTestAPI(t)

	rec := srv.do(t, "GET", "/api/payouts/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rec.Code)
	}
}

// =============================================================================
// RELATIONSHIP + TIER ENDPOINT TESTS
// =============================================================================

func TestRelationshipEndpoints_RecomputeTier(t *testing.T) {
	// GIVEN: A worker opting into five preferred locations
	// WHEN: POSTing each relationship
	// THEN: The returned status climbs to gold; opting out demotes

	srv, _ := newTestAPI(t)

	var last TierStatusDTO
	for _, loc := range []string{"l1", "l2", "l3", "l4", "l5"} {
		rec := srv.do(t, "POST", "/api/relationships", RelationshipRequest{WorkerID: "w1", LocationID: loc})
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		resp := decode[struct {
			Changed bool          `json:"changed"`
			Status  TierStatusDTO `json:"status"`
		}](t, rec)
		if !resp.Changed {
			t.Errorf("Expected a fresh binding for %s to change the set", loc)
		}
		last = resp.Status
	}

	if last.TierLevel != "gold" || last.PreferredHomeCount != 5 {
		t.Errorf("Expected gold at count 5, got %s at %d", last.TierLevel, last.PreferredHomeCount)
	}

	rec := srv.do(t, "DELETE", "/api/relationships", RelationshipRequest{WorkerID: "w1", LocationID: "l5"})
	resp := decode[struct {
		Changed bool          `json:"changed"`
		Status  TierStatusDTO `json:"status"`
	}](t, rec)
	if resp.Status.TierLevel != "silver" {
		t.Errorf("Expected demotion to silver at count 4, got %s", resp.Status.TierLevel)
	}
}

func TestResolveTierEndpoint(t *testing.T) {
	srv, _ := newTestAPI(t)

	rec := srv.do(t, "POST", "/api/tiers/resolve", ResolveTierRequest{PreferredCount: 10})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	bundle := decode[PerkBundleDTO](t, rec)
	if bundle.TierLevel != "platinum" || !bundle.EarlyAccess {
		t.Errorf("Expected platinum with early access, got %+v", bundle)
	}
}

// =============================================================================
// CANCELLATION ENDPOINT TESTS
// =============================================================================

func TestEvaluateCancellationEndpoint(t *testing.T) {
	// GIVEN: An in-window cancellation with a worker assigned
	// WHEN: Evaluating over HTTP with the default 7-day window
	// THEN: Fee charged and a half refund

	srv, _ := newTestAPI(t)

	rec := srv.do(t, "POST", "/api/cancellations/evaluate", EvaluateCancellationRequest{
		DaysUntilAppointment: 3,
		HasCleanerAssigned:   true,
		HasPaymentMethod:     true,
		PriceCents:           10000,
		PartialRefundRate:    0.5,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	d := decode[CancellationDecisionDTO](t, rec)
	if !d.WillChargeFee || d.RefundAmountCents != 5000 {
		t.Errorf("Expected charged fee with 5000 refund, got %+v", d)
	}
}

func TestCollectFeeEndpoint_DeclinedCharge_FallsBackToBill(t *testing.T) {
	// GIVEN: A declining payment processor and a fee-owing cancellation
	// WHEN: Collecting over HTTP
	// THEN: The fee lands on the user's outstanding bill and shows up in
	//       the bill listing

	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if _, err := store.ActivateConfig(context.Background(), tiers.DefaultLevels()); err != nil {
		t.Fatalf("Failed to seed tier config: %v", err)
	}

	handler := NewHandler(store, stubTransfers{}, stubCharges{fail: errDeclined})
	srv := &chiServer{router: NewRouter(handler)}

	rec := srv.do(t, "POST", "/api/cancellations/collect", CollectFeeRequest{
		UserID:               "u1",
		AppointmentID:        "appt-1",
		FeeCents:             2500,
		DaysUntilAppointment: 2,
		HasCleanerAssigned:   true,
		PriceCents:           10000,
		PartialRefundRate:    0.5,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[CollectFeeResponse](t, rec)
	if !resp.Decision.WillChargeFee {
		t.Fatalf("Expected a charging decision, got %+v", resp.Decision)
	}
	if resp.Outcome.Charged || !resp.Outcome.BilledToUser {
		t.Errorf("Expected bill fallback after decline, got %+v", resp.Outcome)
	}

	bill := decode[[]BillEntryDTO](t, srv.do(t, "GET", "/api/users/u1/bill", nil))
	if len(bill) != 1 || bill[0].AmountCents != 2500 {
		t.Errorf("Expected one 2500-cent bill entry, got %+v", bill)
	}
}

// =============================================================================
// BATCH ENDPOINT TESTS
// =============================================================================

func TestProcessPayoutsEndpoint_NothingDue(t *testing.T) {
	// GIVEN: A fresh payout scheduled 48h out
	// WHEN: Triggering a batch now
	// THEN: Nothing is claimed; the payout stays pending

	srv, handler := newTestAPI(t)

	srv.do(t, "POST", "/api/payouts", payoutRequest("a1"))

	rec := srv.do(t, "POST", "/api/admin/process-payouts", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	result := decode[BatchResultDTO](t, rec)
	if result.Claimed != 0 {
		t.Errorf("Expected nothing claimed before the schedule, got %d", result.Claimed)
	}

	pending, err := handler.Ledger.PendingForWorker(context.Background(), "w1")
	if err != nil {
		t.Fatalf("Failed to read pending totals: %v", err)
	}
	if pending.Count != 1 {
		t.Errorf("Expected 1 pending payout, got %d", pending.Count)
	}
}
