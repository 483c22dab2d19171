package execution

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"
)

func sampleRequest(key string) *OrderRequest {
	return &OrderRequest{
		ClientID:       "client-1",
		Symbol:         "BTCUSDT",
		Side:           SideBuy,
		Quantity:       0.5,
		Price:          67500.0,
		OrderType:      TypeLimit,
		IdempotencyKey: key,
		TimestampNs:    time.Now().UnixNano(),
	}
}

// TestSubmitOrderIdempotency submits twice with the same key: exactly one
// success and one duplicate error, and the submitted count stops at 1.
func TestSubmitOrderIdempotency(t *testing.T) {
	engine := NewEngine(100)

	ack, err := engine.SubmitOrder(sampleRequest("K1"))
	if err != nil {
		t.Fatalf("first submission should succeed, got: %v", err)
	}
	if ack.Status != StatusSubmitted {
		t.Errorf("expected status SUBMITTED, got: %s", ack.Status)
	}
	if !strings.HasPrefix(ack.ExchangeOrderID, "EX-") {
		t.Errorf("expected EX- prefixed exchange order id, got: %s", ack.ExchangeOrderID)
	}

	// second request differs in every non-key field
	second := sampleRequest("K1")
	second.ClientID = "client-2"
	second.Quantity = 99
	second.Side = SideSell

	_, err = engine.SubmitOrder(second)
	var dup *DuplicateOrderError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateOrderError, got: %v", err)
	}
	if dup.Key != "K1" {
		t.Errorf("expected duplicate key K1, got: %s", dup.Key)
	}

	submitted, duplicates, _ := engine.Stats()
	if submitted != 1 {
		t.Errorf("expected 1 submitted, got: %d", submitted)
	}
	if duplicates != 1 {
		t.Errorf("expected 1 duplicate, got: %d", duplicates)
	}
}

// TestDistinctKeysMintDistinctOrderIDs checks exchange order id uniqueness.
func TestDistinctKeysMintDistinctOrderIDs(t *testing.T) {
	engine := NewEngine(100)
	seen := make(map[string]struct{})

	for i := 0; i < 50; i++ {
		ack, err := engine.SubmitOrder(sampleRequest(fmt.Sprintf("key-%d", i)))
		if err != nil {
			t.Fatalf("submission %d failed: %v", i, err)
		}
		if _, dup := seen[ack.ExchangeOrderID]; dup {
			t.Fatalf("exchange order id reused: %s", ack.ExchangeOrderID)
		}
		seen[ack.ExchangeOrderID] = struct{}{}
	}
}

// TestWindowEviction documents the retention caveat: once a key falls out of
// the retention window it becomes acceptable again.
func TestWindowEviction(t *testing.T) {
	engine := NewEngine(3)

	for _, key := range []string{"A", "B", "C"} {
		if _, err := engine.SubmitOrder(sampleRequest(key)); err != nil {
			t.Fatalf("submission %s failed: %v", key, err)
		}
	}

	// A is still retained
	if _, err := engine.SubmitOrder(sampleRequest("A")); err == nil {
		t.Fatal("A should still be rejected while inside the window")
	}

	// D evicts A (oldest)
	if _, err := engine.SubmitOrder(sampleRequest("D")); err != nil {
		t.Fatalf("submission D failed: %v", err)
	}
	if _, err := engine.SubmitOrder(sampleRequest("A")); err != nil {
		t.Fatalf("A fell out of the window and should be accepted again, got: %v", err)
	}

	// B was next-oldest and was evicted by the re-accepted A
	if _, err := engine.SubmitOrder(sampleRequest("B")); err != nil {
		t.Fatalf("B should have been evicted, got: %v", err)
	}
}

func TestProcessFill(t *testing.T) {
	engine := NewEngine(100)
	req := sampleRequest("K-fill")

	ack, err := engine.SubmitOrder(req)
	if err != nil {
		t.Fatalf("submission failed: %v", err)
	}

	fill := engine.ProcessFill(ack, req)
	if fill.FilledQty != req.Quantity {
		t.Errorf("expected full fill of %v, got: %v", req.Quantity, fill.FilledQty)
	}
	if fill.FillPrice != req.Price {
		t.Errorf("expected fill at %v, got: %v", req.Price, fill.FillPrice)
	}
	if fill.ExchangeOrderID != ack.ExchangeOrderID {
		t.Error("fill must reference the acknowledged exchange order id")
	}

	// 4 bps of notional: 0.5 * 67500 * 0.0004 = 13.5
	if math.Abs(fill.Commission-13.5) > 1e-9 {
		t.Errorf("expected commission 13.5, got: %v", fill.Commission)
	}
	if fill.SeqID != 1 {
		t.Errorf("expected first fill seq 1, got: %d", fill.SeqID)
	}

	second := engine.ProcessFill(ack, req)
	if second.SeqID != 2 {
		t.Errorf("fill sequence must be monotonic, got: %d", second.SeqID)
	}

	_, _, fills := engine.Stats()
	if fills != 2 {
		t.Errorf("expected 2 fills, got: %d", fills)
	}
}

func TestKeyWindowOrdering(t *testing.T) {
	w := newKeyWindow(2)
	w.Add("a")
	w.Add("b")
	w.Add("c") // evicts a

	if w.Seen("a") {
		t.Error("a should have been evicted")
	}
	if !w.Seen("b") || !w.Seen("c") {
		t.Error("b and c should still be retained")
	}
	if w.Len() != 2 {
		t.Errorf("expected window size 2, got: %d", w.Len())
	}
}
