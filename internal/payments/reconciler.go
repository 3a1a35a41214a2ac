package payments

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/brieflabs/briefhub/internal/wallet"
)

// ErrMalformedEvent marks a webhook payload missing required fields. The
// endpoint still acknowledges it so the provider stops retrying; the event is
// logged for manual follow-up instead.
var ErrMalformedEvent = errors.New("malformed payment event")

// Event types the reconciler understands. Anything else is acknowledged and
// ignored.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventChargeRefunded    = "charge.refunded"
)

// Event is one verified provider notification, reduced to the fields the
// ledger cares about. ReferenceID uniquely identifies the provider action and
// drives deduplication.
type Event struct {
	Type        string
	ReferenceID string
	Amount      int64
	OwnerID     string
	OwnerType   string
	Description string
}

// walletLedger is the slice of the Wallet Manager the reconciler drives.
type walletLedger interface {
	Deposit(ctx context.Context, ownerID, ownerType string, amount int64, description, referenceID string) (*wallet.Transaction, bool, error)
	Refund(ctx context.Context, ownerID, ownerType string, amount int64, description, referenceID string) (*wallet.Transaction, bool, error)
}

// Reconciler converts provider events into idempotent ledger operations.
// Duplicate and out-of-order deliveries are safe: the referenceID dedup in
// the Wallet Manager makes every event exactly-once effective.
type Reconciler struct {
	wallets walletLedger
}

func NewReconciler(wallets walletLedger) *Reconciler {
	return &Reconciler{wallets: wallets}
}

// Apply maps an event to its ledger operation. A nil transaction with nil
// error means the event type is not ledger-relevant; applied is false for a
// redelivery, so callers can skip first-time side effects like emails.
func (r *Reconciler) Apply(ctx context.Context, ev Event) (*wallet.Transaction, bool, error) {
	switch ev.Type {
	case EventCheckoutCompleted:
		if err := ev.validate(); err != nil {
			return nil, false, err
		}
		return r.wallets.Deposit(ctx, ev.OwnerID, ev.OwnerType, ev.Amount, ev.Description, ev.ReferenceID)
	case EventChargeRefunded:
		if err := ev.validate(); err != nil {
			return nil, false, err
		}
		return r.wallets.Refund(ctx, ev.OwnerID, ev.OwnerType, ev.Amount, ev.Description, ev.ReferenceID)
	default:
		log.Printf("webhook: ignoring event type %q (ref=%s)", ev.Type, ev.ReferenceID)
		return nil, false, nil
	}
}

func (ev Event) validate() error {
	if ev.ReferenceID == "" || ev.OwnerID == "" || ev.Amount <= 0 {
		return ErrMalformedEvent
	}
	switch ev.OwnerType {
	case wallet.OwnerBrand, wallet.OwnerCreator:
		return nil
	default:
		return ErrMalformedEvent
	}
}

// stripeEnvelope mirrors the provider's wire format. Amount and owner come
// strictly from the verified payload: the session metadata carries the owner
// identity we attached when creating the checkout session.
type stripeEnvelope struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID             string            `json:"id"`
			AmountTotal    int64             `json:"amount_total"`
			AmountRefunded int64             `json:"amount_refunded"`
			Currency       string            `json:"currency"`
			Metadata       map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// ParseEvent decodes a verified webhook body into an Event.
func ParseEvent(body []byte) (Event, error) {
	var env stripeEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Event{}, ErrMalformedEvent
	}
	if env.Type == "" || env.Data.Object.ID == "" {
		return Event{}, ErrMalformedEvent
	}

	ev := Event{
		Type:        env.Type,
		ReferenceID: env.Data.Object.ID,
		OwnerID:     env.Data.Object.Metadata["owner_id"],
		OwnerType:   env.Data.Object.Metadata["owner_type"],
	}
	switch env.Type {
	case EventCheckoutCompleted:
		ev.Amount = env.Data.Object.AmountTotal
		ev.Description = "wallet top-up via checkout"
	case EventChargeRefunded:
		ev.Amount = env.Data.Object.AmountRefunded
		ev.Description = "payment refunded by provider"
	}
	return ev, nil
}
