package wallet

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// Manager is the single authority for mutating wallet balances. Every change
// goes through Repository.Apply, which commits the balance update and the
// audit transaction as one atomic unit.
type Manager struct {
	repo Repository
}

func NewManager(repo Repository) *Manager {
	return &Manager{repo: repo}
}

// Deposit credits an external inflow. If the owner has no wallet yet, one is
// created with zero balances first. A repeated referenceID is a no-op that
// returns the previously applied transaction with applied=false, so callers
// can tell a fresh credit from a redelivery.
func (m *Manager) Deposit(ctx context.Context, ownerID, ownerType string, amount int64, description, referenceID string) (*Transaction, bool, error) {
	if amount <= 0 {
		return nil, false, ErrInvalidAmount
	}
	w, err := m.walletForOwner(ctx, ownerID, ownerType)
	if err != nil {
		return nil, false, err
	}
	return m.apply(w.ID, func() (*Transaction, error) {
		return m.repo.Apply(ctx, w.ID, Change{
			Kind:        KindDeposit,
			Amount:      amount,
			Description: description,
			ReferenceID: referenceID,
		})
	})
}

// Earn credits a reward payout into the owner's wallet. Idempotent on
// referenceID so a distribution can be safely re-run.
func (m *Manager) Earn(ctx context.Context, ownerID string, amount int64, description, referenceID string) (*Transaction, bool, error) {
	if amount <= 0 {
		return nil, false, ErrInvalidAmount
	}
	w, err := m.walletForOwner(ctx, ownerID, OwnerCreator)
	if err != nil {
		return nil, false, err
	}
	return m.apply(w.ID, func() (*Transaction, error) {
		return m.repo.Apply(ctx, w.ID, Change{
			Kind:        KindEarn,
			Amount:      amount,
			Description: description,
			ReferenceID: referenceID,
		})
	})
}

// Spend debits the wallet. Fails with ErrInsufficientFunds when the amount
// exceeds the committed balance; nothing is written in that case.
func (m *Manager) Spend(ctx context.Context, ownerID string, amount int64, description string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	w, err := m.repo.GetWalletByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return m.repo.Apply(ctx, w.ID, Change{
		Kind:        KindSpend,
		Amount:      amount,
		Description: description,
	})
}

// Refund reverses a prior spend. Same idempotency rule as Deposit, and like
// Deposit it creates the wallet on demand so a provider-initiated refund for
// an owner we have not seen yet still lands in the ledger.
func (m *Manager) Refund(ctx context.Context, ownerID, ownerType string, amount int64, description, referenceID string) (*Transaction, bool, error) {
	if amount <= 0 {
		return nil, false, ErrInvalidAmount
	}
	w, err := m.walletForOwner(ctx, ownerID, ownerType)
	if err != nil {
		return nil, false, err
	}
	return m.apply(w.ID, func() (*Transaction, error) {
		return m.repo.Apply(ctx, w.ID, Change{
			Kind:        KindRefund,
			Amount:      amount,
			Description: description,
			ReferenceID: referenceID,
		})
	})
}

// Withdraw debits the wallet toward an external payout. Idempotent on
// referenceID: a payout retried after a partial failure debits once.
func (m *Manager) Withdraw(ctx context.Context, ownerID string, amount int64, description, referenceID string) (*Transaction, bool, error) {
	if amount <= 0 {
		return nil, false, ErrInvalidAmount
	}
	w, err := m.repo.GetWalletByOwner(ctx, ownerID)
	if err != nil {
		return nil, false, err
	}
	return m.apply(w.ID, func() (*Transaction, error) {
		return m.repo.Apply(ctx, w.ID, Change{
			Kind:        KindWithdraw,
			Amount:      amount,
			Description: description,
			ReferenceID: referenceID,
		})
	})
}

// GetWallet returns the committed wallet state for an owner.
func (m *Manager) GetWallet(ctx context.Context, ownerID string) (*Wallet, error) {
	return m.repo.GetWalletByOwner(ctx, ownerID)
}

// ListTransactions returns the owner's ledger history in creation order.
func (m *Manager) ListTransactions(ctx context.Context, ownerID string) ([]Transaction, error) {
	w, err := m.repo.GetWalletByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return m.repo.ListTransactions(ctx, w.ID)
}

// Drift describes a wallet whose stored balance disagrees with its history.
type Drift struct {
	WalletID       string `json:"wallet_id"`
	OwnerID        string `json:"owner_id"`
	Balance        int64  `json:"balance"`
	ReplayedSum    int64  `json:"replayed_sum"`
	CounterBalance int64  `json:"counter_balance"`
	ChainBroken    bool   `json:"chain_broken"`
}

// VerifyLedger replays a wallet's committed transactions and checks the two
// ledger invariants: the signed sum reproduces the balance, and the lifetime
// counters reconcile to it. It returns nil when the wallet is consistent.
func (m *Manager) VerifyLedger(ctx context.Context, ownerID string) (*Drift, error) {
	w, err := m.repo.GetWalletByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	txs, err := m.repo.ListTransactions(ctx, w.ID)
	if err != nil {
		return nil, err
	}

	var sum int64
	chainBroken := false
	for i, t := range txs {
		if t.Status != StatusCompleted {
			continue
		}
		sum += t.Signed()
		if i > 0 && txs[i-1].BalanceAfter != t.BalanceBefore {
			chainBroken = true
		}
	}
	counters := w.TotalDeposited + w.TotalEarned - w.TotalSpent - w.TotalWithdrawn

	if sum == w.Balance && counters == w.Balance && !chainBroken {
		return nil, nil
	}
	return &Drift{
		WalletID:       w.ID,
		OwnerID:        w.OwnerID,
		Balance:        w.Balance,
		ReplayedSum:    sum,
		CounterBalance: counters,
		ChainBroken:    chainBroken,
	}, nil
}

// AuditAll runs VerifyLedger across every wallet.
func (m *Manager) AuditAll(ctx context.Context) ([]Drift, error) {
	wallets, err := m.repo.ListWallets(ctx)
	if err != nil {
		return nil, err
	}
	var drifts []Drift
	for _, w := range wallets {
		d, err := m.VerifyLedger(ctx, w.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("verify wallet %s: %w", w.ID, err)
		}
		if d != nil {
			drifts = append(drifts, *d)
		}
	}
	return drifts, nil
}

func (m *Manager) walletForOwner(ctx context.Context, ownerID, ownerType string) (*Wallet, error) {
	w, err := m.repo.GetWalletByOwner(ctx, ownerID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, ErrWalletNotFound) {
		return nil, err
	}
	return m.repo.CreateWallet(ctx, ownerID, ownerType)
}

// apply swallows duplicate-reference results: redelivery of an already
// applied event returns the prior transaction with applied=false and
// mutates nothing.
func (m *Manager) apply(walletID string, fn func() (*Transaction, error)) (*Transaction, bool, error) {
	rec, err := fn()
	if errors.Is(err, ErrDuplicateReference) {
		log.Printf("wallet %s: reference %s already applied, skipping", walletID, rec.ReferenceID)
		return rec, false, nil
	}
	if err != nil {
		return rec, false, err
	}
	return rec, true, nil
}
