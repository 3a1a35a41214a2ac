package wallet

import "time"

// Owner types. Resolved once when the wallet is created, never re-derived.
const (
	OwnerBrand   = "brand"
	OwnerCreator = "creator"
)

// Transaction types recorded in the ledger.
const (
	TypeDeposit    = "deposit"
	TypeWithdrawal = "withdrawal"
	TypePayment    = "payment"
	TypeRefund     = "refund"
)

// Transaction statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Wallet struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	OwnerType      string    `json:"owner_type"`
	Balance        int64     `json:"balance"`
	TotalDeposited int64     `json:"total_deposited"`
	TotalEarned    int64     `json:"total_earned"`
	TotalSpent     int64     `json:"total_spent"`
	TotalWithdrawn int64     `json:"total_withdrawn"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Transaction is an immutable, append-only audit record of one balance change.
type Transaction struct {
	ID            string    `json:"id"`
	WalletID      string    `json:"wallet_id"`
	Type          string    `json:"type"`
	Amount        int64     `json:"amount"`
	Description   string    `json:"description"`
	Status        string    `json:"status"`
	BalanceBefore int64     `json:"balance_before"`
	BalanceAfter  int64     `json:"balance_after"`
	ReferenceID   string    `json:"reference_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Signed returns the transaction amount with the sign it applies to the
// balance: credits positive, debits negative.
func (t Transaction) Signed() int64 {
	switch t.Type {
	case TypeDeposit, TypeRefund:
		return t.Amount
	default:
		return -t.Amount
	}
}

// Change describes one requested balance mutation. Kind selects which
// lifetime counter moves alongside the balance.
type Change struct {
	Kind        ChangeKind
	Amount      int64
	Description string
	ReferenceID string
}

type ChangeKind int

const (
	// KindDeposit credits balance and total_deposited (external inflow).
	KindDeposit ChangeKind = iota
	// KindEarn credits balance and total_earned (reward payout).
	KindEarn
	// KindSpend debits balance and credits total_spent.
	KindSpend
	// KindRefund credits balance and reverses total_spent.
	KindRefund
	// KindWithdraw debits balance and credits total_withdrawn.
	KindWithdraw
)

// TransactionType maps a change kind to the ledger transaction type it records.
func (k ChangeKind) TransactionType() string {
	switch k {
	case KindDeposit, KindEarn:
		return TypeDeposit
	case KindSpend:
		return TypePayment
	case KindRefund:
		return TypeRefund
	default:
		return TypeWithdrawal
	}
}

// Credits reports whether the change increases the balance.
func (k ChangeKind) Credits() bool {
	return k == KindDeposit || k == KindEarn || k == KindRefund
}
