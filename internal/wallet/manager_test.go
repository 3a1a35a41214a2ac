package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

// fakeRepo is an in-memory Repository. A single mutex serializes Apply the
// way the row lock does in Postgres, so concurrent operations on the same
// wallet observe each other's committed effects.
type fakeRepo struct {
	mu      sync.Mutex
	nextID  int
	wallets map[string]*Wallet // by wallet id
	byOwner map[string]string  // owner id -> wallet id
	txs     map[string][]Transaction
	byRef   map[string]Transaction
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		wallets: make(map[string]*Wallet),
		byOwner: make(map[string]string),
		txs:     make(map[string][]Transaction),
		byRef:   make(map[string]Transaction),
	}
}

func (f *fakeRepo) CreateWallet(_ context.Context, ownerID, ownerType string) (*Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.byOwner[ownerID]; ok {
		w := *f.wallets[id]
		return &w, nil
	}
	f.nextID++
	w := &Wallet{
		ID:        fmt.Sprintf("w-%d", f.nextID),
		OwnerID:   ownerID,
		OwnerType: ownerType,
		CreatedAt: time.Now(),
	}
	f.wallets[w.ID] = w
	f.byOwner[ownerID] = w.ID
	out := *w
	return &out, nil
}

func (f *fakeRepo) GetWalletByOwner(_ context.Context, ownerID string) (*Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byOwner[ownerID]
	if !ok {
		return nil, ErrWalletNotFound
	}
	w := *f.wallets[id]
	return &w, nil
}

func (f *fakeRepo) ListWallets(_ context.Context) ([]Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Wallet
	for _, w := range f.wallets {
		out = append(out, *w)
	}
	return out, nil
}

func (f *fakeRepo) Apply(_ context.Context, walletID string, ch Change) (*Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w, ok := f.wallets[walletID]
	if !ok {
		return nil, ErrWalletNotFound
	}

	if ch.ReferenceID != "" {
		if prior, ok := f.byRef[ch.ReferenceID]; ok {
			p := prior
			return &p, ErrDuplicateReference
		}
	}

	before := w.Balance
	var after int64
	if ch.Kind.Credits() {
		after = before + ch.Amount
	} else {
		if ch.Amount > before {
			return nil, ErrInsufficientFunds
		}
		after = before - ch.Amount
	}

	switch ch.Kind {
	case KindDeposit:
		w.TotalDeposited += ch.Amount
	case KindEarn:
		w.TotalEarned += ch.Amount
	case KindSpend:
		w.TotalSpent += ch.Amount
	case KindRefund:
		w.TotalSpent -= ch.Amount
	case KindWithdraw:
		w.TotalWithdrawn += ch.Amount
	}
	w.Balance = after

	f.nextID++
	rec := Transaction{
		ID:            fmt.Sprintf("t-%d", f.nextID),
		WalletID:      walletID,
		Type:          ch.Kind.TransactionType(),
		Amount:        ch.Amount,
		Description:   ch.Description,
		Status:        StatusCompleted,
		BalanceBefore: before,
		BalanceAfter:  after,
		ReferenceID:   ch.ReferenceID,
		CreatedAt:     time.Now(),
	}
	f.txs[walletID] = append(f.txs[walletID], rec)
	if ch.ReferenceID != "" {
		f.byRef[ch.ReferenceID] = rec
	}
	return &rec, nil
}

func (f *fakeRepo) ListTransactions(_ context.Context, walletID string) ([]Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Transaction, len(f.txs[walletID]))
	copy(out, f.txs[walletID])
	return out, nil
}

func (f *fakeRepo) FindTransactionByReference(_ context.Context, referenceID string) (*Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.byRef[referenceID]; ok {
		out := t
		return &out, nil
	}
	return nil, pgx.ErrNoRows
}

func TestDeposit_CreatesWalletOnFirstInflow(t *testing.T) {
	repo := newFakeRepo()
	m := NewManager(repo)
	ctx := context.Background()

	rec, applied, err := m.Deposit(ctx, "brand-1", OwnerBrand, 5000, "initial topup", "cs_1")
	if err != nil {
		t.Fatalf("Deposit returned error: %v", err)
	}
	if !applied {
		t.Fatal("first deposit must report applied")
	}
	if rec.BalanceBefore != 0 || rec.BalanceAfter != 5000 {
		t.Fatalf("expected balance 0 -> 5000, got %d -> %d", rec.BalanceBefore, rec.BalanceAfter)
	}

	w, err := m.GetWallet(ctx, "brand-1")
	if err != nil {
		t.Fatalf("GetWallet returned error: %v", err)
	}
	if w.Balance != 5000 || w.TotalDeposited != 5000 {
		t.Fatalf("expected balance and total_deposited 5000, got %d / %d", w.Balance, w.TotalDeposited)
	}
}

func TestDeposit_IdempotentOnReference(t *testing.T) {
	repo := newFakeRepo()
	m := NewManager(repo)
	ctx := context.Background()

	first, applied, err := m.Deposit(ctx, "brand-1", OwnerBrand, 1000, "topup", "cs_dup")
	if err != nil {
		t.Fatalf("first deposit failed: %v", err)
	}
	if !applied {
		t.Fatal("first deposit must report applied")
	}
	second, applied, err := m.Deposit(ctx, "brand-1", OwnerBrand, 1000, "topup", "cs_dup")
	if err != nil {
		t.Fatalf("redelivered deposit should be a no-op, got error: %v", err)
	}
	if applied {
		t.Fatal("redelivery must not report applied")
	}
	if second.ID != first.ID {
		t.Fatalf("expected the prior transaction back, got %s vs %s", second.ID, first.ID)
	}

	w, _ := m.GetWallet(ctx, "brand-1")
	if w.Balance != 1000 {
		t.Fatalf("expected balance 1000 after redelivery, got %d", w.Balance)
	}
	txs, _ := m.ListTransactions(ctx, "brand-1")
	if len(txs) != 1 {
		t.Fatalf("expected exactly one transaction row, got %d", len(txs))
	}
}

func TestSpend_InsufficientFundsLeavesNoTrace(t *testing.T) {
	repo := newFakeRepo()
	m := NewManager(repo)
	ctx := context.Background()

	if _, _, err := m.Deposit(ctx, "brand-1", OwnerBrand, 100, "topup", "cs_1"); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	_, err := m.Spend(ctx, "brand-1", 200, "brief funding")
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	w, _ := m.GetWallet(ctx, "brand-1")
	if w.Balance != 100 || w.TotalSpent != 0 {
		t.Fatalf("failed spend must not mutate: balance=%d spent=%d", w.Balance, w.TotalSpent)
	}
	txs, _ := m.ListTransactions(ctx, "brand-1")
	if len(txs) != 1 {
		t.Fatalf("expected only the deposit row, got %d transactions", len(txs))
	}
}

func TestWithdraw_ConcurrentOnlyOneSucceeds(t *testing.T) {
	repo := newFakeRepo()
	m := NewManager(repo)
	ctx := context.Background()

	if _, _, err := m.Deposit(ctx, "creator-1", OwnerCreator, 100, "topup", "cs_1"); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := m.Withdraw(ctx, "creator-1", 60, "payout", "")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, rejected int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientFunds):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || rejected != 1 {
		t.Fatalf("expected exactly one success and one rejection, got %d/%d", succeeded, rejected)
	}

	w, _ := m.GetWallet(ctx, "creator-1")
	if w.Balance != 40 {
		t.Fatalf("expected balance 40, got %d", w.Balance)
	}
}

func TestWithdraw_NeverDrivesBalanceNegative(t *testing.T) {
	repo := newFakeRepo()
	m := NewManager(repo)
	ctx := context.Background()

	if _, _, err := m.Deposit(ctx, "creator-1", OwnerCreator, 50, "topup", "cs_1"); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		_, _, _ = m.Withdraw(ctx, "creator-1", 20, "payout", "")
		_, _ = m.Spend(ctx, "creator-1", 15, "fee")
	}
	w, _ := m.GetWallet(ctx, "creator-1")
	if w.Balance < 0 {
		t.Fatalf("balance went negative: %d", w.Balance)
	}
	if d, err := m.VerifyLedger(ctx, "creator-1"); err != nil || d != nil {
		t.Fatalf("ledger inconsistent after drains: drift=%+v err=%v", d, err)
	}
}

func TestWithdraw_IdempotentOnReference(t *testing.T) {
	repo := newFakeRepo()
	m := NewManager(repo)
	ctx := context.Background()

	if _, _, err := m.Deposit(ctx, "creator-1", OwnerCreator, 1000, "topup", "cs_1"); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	first, applied, err := m.Withdraw(ctx, "creator-1", 400, "payout", "withdrawal:wr-1")
	if err != nil || !applied {
		t.Fatalf("first withdraw: applied=%v err=%v", applied, err)
	}

	// A payout retried after a partial failure replays the same reference.
	second, applied, err := m.Withdraw(ctx, "creator-1", 400, "payout", "withdrawal:wr-1")
	if err != nil {
		t.Fatalf("retried withdraw should be a no-op, got error: %v", err)
	}
	if applied || second.ID != first.ID {
		t.Fatalf("retry must return the prior debit unapplied: applied=%v id=%s vs %s",
			applied, second.ID, first.ID)
	}

	w, _ := m.GetWallet(ctx, "creator-1")
	if w.Balance != 600 || w.TotalWithdrawn != 400 {
		t.Fatalf("expected a single debit of 400: balance=%d withdrawn=%d", w.Balance, w.TotalWithdrawn)
	}
}

func TestRefund_ReversesSpend(t *testing.T) {
	repo := newFakeRepo()
	m := NewManager(repo)
	ctx := context.Background()

	if _, _, err := m.Deposit(ctx, "brand-1", OwnerBrand, 1000, "topup", "cs_1"); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if _, err := m.Spend(ctx, "brand-1", 400, "brief funding"); err != nil {
		t.Fatalf("spend failed: %v", err)
	}
	if _, _, err := m.Refund(ctx, "brand-1", OwnerBrand, 400, "brief cancelled", "re_1"); err != nil {
		t.Fatalf("refund failed: %v", err)
	}

	w, _ := m.GetWallet(ctx, "brand-1")
	if w.Balance != 1000 || w.TotalSpent != 0 {
		t.Fatalf("expected spend fully reversed, balance=%d spent=%d", w.Balance, w.TotalSpent)
	}

	// Redelivered refund must not double-credit.
	if _, _, err := m.Refund(ctx, "brand-1", OwnerBrand, 400, "brief cancelled", "re_1"); err != nil {
		t.Fatalf("redelivered refund failed: %v", err)
	}
	w, _ = m.GetWallet(ctx, "brand-1")
	if w.Balance != 1000 {
		t.Fatalf("expected balance 1000 after redelivery, got %d", w.Balance)
	}
}

func TestEarn_IdempotentRewardCredit(t *testing.T) {
	repo := newFakeRepo()
	m := NewManager(repo)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, _, err := m.Earn(ctx, "creator-1", 600, "brief winner position 1", "reward:b1:1"); err != nil {
			t.Fatalf("earn run %d failed: %v", i, err)
		}
	}
	w, _ := m.GetWallet(ctx, "creator-1")
	if w.Balance != 600 || w.TotalEarned != 600 {
		t.Fatalf("re-running a distribution must credit once: balance=%d earned=%d", w.Balance, w.TotalEarned)
	}
}

func TestLedgerInvariant_MixedOperations(t *testing.T) {
	repo := newFakeRepo()
	m := NewManager(repo)
	ctx := context.Background()

	ops := []func() error{
		func() error { _, _, err := m.Deposit(ctx, "u", OwnerBrand, 2500, "topup", "cs_1"); return err },
		func() error { _, err := m.Spend(ctx, "u", 700, "funding"); return err },
		func() error { _, _, err := m.Deposit(ctx, "u", OwnerBrand, 300, "topup", "cs_2"); return err },
		func() error { _, _, err := m.Refund(ctx, "u", OwnerBrand, 200, "partial refund", "re_1"); return err },
		func() error { _, _, err := m.Withdraw(ctx, "u", 900, "payout", "wd_1"); return err },
		func() error { _, _, err := m.Earn(ctx, "u", 150, "reward", "reward:x:1"); return err },
	}
	for i, op := range ops {
		if err := op(); err != nil {
			t.Fatalf("operation %d failed: %v", i, err)
		}
	}

	w, _ := m.GetWallet(ctx, "u")
	want := w.TotalDeposited + w.TotalEarned - w.TotalSpent - w.TotalWithdrawn
	if w.Balance != want {
		t.Fatalf("balance %d does not match counters %d", w.Balance, want)
	}

	txs, _ := m.ListTransactions(ctx, "u")
	var sum int64
	for i, tx := range txs {
		sum += tx.Signed()
		if i > 0 && txs[i-1].BalanceAfter != tx.BalanceBefore {
			t.Fatalf("balance chain broken at transaction %d", i)
		}
	}
	if sum != w.Balance {
		t.Fatalf("replayed sum %d does not reproduce balance %d", sum, w.Balance)
	}

	if d, err := m.VerifyLedger(ctx, "u"); err != nil || d != nil {
		t.Fatalf("VerifyLedger reported drift on a consistent wallet: %+v err=%v", d, err)
	}
}

func TestVerifyLedger_ReportsDrift(t *testing.T) {
	repo := newFakeRepo()
	m := NewManager(repo)
	ctx := context.Background()

	if _, _, err := m.Deposit(ctx, "u", OwnerBrand, 1000, "topup", "cs_1"); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	// Corrupt the stored balance behind the manager's back.
	repo.mu.Lock()
	repo.wallets[repo.byOwner["u"]].Balance = 999
	repo.mu.Unlock()

	d, err := m.VerifyLedger(ctx, "u")
	if err != nil {
		t.Fatalf("VerifyLedger returned error: %v", err)
	}
	if d == nil {
		t.Fatal("expected drift to be reported")
	}
	if d.ReplayedSum != 1000 || d.Balance != 999 {
		t.Fatalf("unexpected drift report: %+v", d)
	}
}

func TestEndToEndScenario(t *testing.T) {
	repo := newFakeRepo()
	m := NewManager(repo)
	ctx := context.Background()

	if _, _, err := m.Deposit(ctx, "brand-1", OwnerBrand, 1000, "topup", "A"); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	w, _ := m.GetWallet(ctx, "brand-1")
	if w.Balance != 1000 || w.TotalDeposited != 1000 {
		t.Fatalf("after deposit: balance=%d deposited=%d", w.Balance, w.TotalDeposited)
	}

	if _, err := m.Spend(ctx, "brand-1", 300, "brief-funding"); err != nil {
		t.Fatalf("spend failed: %v", err)
	}
	w, _ = m.GetWallet(ctx, "brand-1")
	if w.Balance != 700 || w.TotalSpent != 300 {
		t.Fatalf("after spend: balance=%d spent=%d", w.Balance, w.TotalSpent)
	}

	// Redeliver the original deposit event.
	if _, _, err := m.Deposit(ctx, "brand-1", OwnerBrand, 1000, "topup", "A"); err != nil {
		t.Fatalf("redelivered deposit failed: %v", err)
	}
	w, _ = m.GetWallet(ctx, "brand-1")
	if w.Balance != 700 {
		t.Fatalf("redelivery must not re-apply: balance=%d", w.Balance)
	}
	txs, _ := m.ListTransactions(ctx, "brand-1")
	if len(txs) != 2 {
		t.Fatalf("expected 2 transaction rows (deposit, payment), got %d", len(txs))
	}
}
