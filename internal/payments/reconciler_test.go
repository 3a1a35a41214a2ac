package payments

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/brieflabs/briefhub/internal/wallet"
)

// fakeLedger records deposits and refunds and deduplicates on referenceID,
// mirroring the Wallet Manager's contract.
type fakeLedger struct {
	deposits map[string]*wallet.Transaction // by reference
	refunds  map[string]*wallet.Transaction
	balances map[string]int64
	failNext error
	nextID   int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		deposits: make(map[string]*wallet.Transaction),
		refunds:  make(map[string]*wallet.Transaction),
		balances: make(map[string]int64),
	}
}

func (f *fakeLedger) Deposit(_ context.Context, ownerID, _ string, amount int64, description, referenceID string) (*wallet.Transaction, bool, error) {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return nil, false, err
	}
	if prior, ok := f.deposits[referenceID]; ok {
		return prior, false, nil
	}
	f.nextID++
	f.balances[ownerID] += amount
	rec := &wallet.Transaction{
		ID:          fmt.Sprintf("t-%d", f.nextID),
		Type:        wallet.TypeDeposit,
		Amount:      amount,
		Description: description,
		ReferenceID: referenceID,
		Status:      wallet.StatusCompleted,
	}
	f.deposits[referenceID] = rec
	return rec, true, nil
}

func (f *fakeLedger) Refund(_ context.Context, ownerID, _ string, amount int64, description, referenceID string) (*wallet.Transaction, bool, error) {
	if prior, ok := f.refunds[referenceID]; ok {
		return prior, false, nil
	}
	f.nextID++
	f.balances[ownerID] += amount
	rec := &wallet.Transaction{
		ID:          fmt.Sprintf("t-%d", f.nextID),
		Type:        wallet.TypeRefund,
		Amount:      amount,
		Description: description,
		ReferenceID: referenceID,
		Status:      wallet.StatusCompleted,
	}
	f.refunds[referenceID] = rec
	return rec, true, nil
}

func checkoutEvent(ref string, amount int64) Event {
	return Event{
		Type:        EventCheckoutCompleted,
		ReferenceID: ref,
		Amount:      amount,
		OwnerID:     "brand-1",
		OwnerType:   "brand",
		Description: "wallet top-up via checkout",
	}
}

func TestApply_DepositOnCheckoutCompleted(t *testing.T) {
	ledger := newFakeLedger()
	r := NewReconciler(ledger)

	rec, applied, err := r.Apply(context.Background(), checkoutEvent("cs_1", 2500))
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if !applied {
		t.Fatal("first delivery must report applied")
	}
	if rec == nil || rec.Amount != 2500 {
		t.Fatalf("expected deposit of 2500, got %+v", rec)
	}
	if ledger.balances["brand-1"] != 2500 {
		t.Fatalf("expected balance 2500, got %d", ledger.balances["brand-1"])
	}
}

func TestApply_RedeliveryIsExactlyOnceEffective(t *testing.T) {
	ledger := newFakeLedger()
	r := NewReconciler(ledger)
	ctx := context.Background()

	first, applied, err := r.Apply(ctx, checkoutEvent("cs_1", 2500))
	if err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	if !applied {
		t.Fatal("first delivery must report applied")
	}
	second, applied, err := r.Apply(ctx, checkoutEvent("cs_1", 2500))
	if err != nil {
		t.Fatalf("redelivery must succeed as a no-op: %v", err)
	}
	if applied {
		t.Fatal("redelivery must not report applied, or downstream side effects repeat")
	}
	if second.ID != first.ID {
		t.Fatalf("redelivery should return the prior transaction, got %s vs %s", second.ID, first.ID)
	}
	if ledger.balances["brand-1"] != 2500 {
		t.Fatalf("redelivery double-applied: balance %d", ledger.balances["brand-1"])
	}
}

func TestApply_MalformedEvents(t *testing.T) {
	r := NewReconciler(newFakeLedger())
	ctx := context.Background()

	tests := []struct {
		name string
		ev   Event
	}{
		{name: "missing reference", ev: Event{Type: EventCheckoutCompleted, Amount: 100, OwnerID: "u", OwnerType: "brand"}},
		{name: "missing owner", ev: Event{Type: EventCheckoutCompleted, ReferenceID: "cs_1", Amount: 100, OwnerType: "brand"}},
		{name: "non-positive amount", ev: Event{Type: EventCheckoutCompleted, ReferenceID: "cs_1", OwnerID: "u", OwnerType: "brand"}},
		{name: "unknown owner type", ev: Event{Type: EventChargeRefunded, ReferenceID: "re_1", Amount: 100, OwnerID: "u", OwnerType: "agency"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := r.Apply(ctx, tt.ev); !errors.Is(err, ErrMalformedEvent) {
				t.Fatalf("expected ErrMalformedEvent, got %v", err)
			}
		})
	}
}

func TestApply_IrrelevantEventIgnored(t *testing.T) {
	ledger := newFakeLedger()
	r := NewReconciler(ledger)

	rec, _, err := r.Apply(context.Background(), Event{Type: "invoice.finalized", ReferenceID: "in_1"})
	if err != nil {
		t.Fatalf("irrelevant event should be ignored, got %v", err)
	}
	if rec != nil {
		t.Fatalf("expected no transaction, got %+v", rec)
	}
}

func TestApply_StorageFailurePropagates(t *testing.T) {
	ledger := newFakeLedger()
	ledger.failNext = errors.New("connection reset")
	r := NewReconciler(ledger)

	if _, _, err := r.Apply(context.Background(), checkoutEvent("cs_1", 100)); err == nil {
		t.Fatal("expected storage failure to surface so the provider retries")
	}

	// The provider redelivers; this time it applies.
	if _, _, err := r.Apply(context.Background(), checkoutEvent("cs_1", 100)); err != nil {
		t.Fatalf("redelivery after failure should apply: %v", err)
	}
	if ledger.balances["brand-1"] != 100 {
		t.Fatalf("expected balance 100 after recovery, got %d", ledger.balances["brand-1"])
	}
}

func TestParseEvent(t *testing.T) {
	body := []byte(`{
        "type": "checkout.session.completed",
        "data": {"object": {
            "id": "cs_test_123",
            "amount_total": 5000,
            "currency": "usd",
            "metadata": {"owner_id": "brand-9", "owner_type": "brand"}
        }}
    }`)

	ev, err := ParseEvent(body)
	if err != nil {
		t.Fatalf("ParseEvent returned error: %v", err)
	}
	if ev.Type != EventCheckoutCompleted || ev.ReferenceID != "cs_test_123" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Amount != 5000 || ev.OwnerID != "brand-9" || ev.OwnerType != "brand" {
		t.Fatalf("amount/owner must come from the payload: %+v", ev)
	}
}

func TestParseEvent_Malformed(t *testing.T) {
	for _, body := range []string{"not json", `{}`, `{"type":"checkout.session.completed"}`} {
		if _, err := ParseEvent([]byte(body)); !errors.Is(err, ErrMalformedEvent) {
			t.Fatalf("body %q: expected ErrMalformedEvent, got %v", body, err)
		}
	}
}
