package brief

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/brieflabs/briefhub/internal/wallet"
)

type fakeRepo struct {
	briefs  map[string]*Brief
	entries map[string][]Entry
	rewards map[string]map[int]WinnerReward
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		briefs:  make(map[string]*Brief),
		entries: make(map[string][]Entry),
		rewards: make(map[string]map[int]WinnerReward),
	}
}

func (f *fakeRepo) Create(ctx context.Context, b *Brief) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	b.Status = StatusDraft
	cp := *b
	f.briefs[b.ID] = &cp
	return nil
}

func (f *fakeRepo) Get(ctx context.Context, id string) (*Brief, error) {
	b, ok := f.briefs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeRepo) ListByBrand(ctx context.Context, brandID string) ([]Brief, error) {
	var out []Brief
	for _, b := range f.briefs {
		if b.BrandID == brandID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListOpen(ctx context.Context) ([]Brief, error) {
	return f.ListByStatus(ctx, StatusOpen)
}

func (f *fakeRepo) ListByStatus(ctx context.Context, status string) ([]Brief, error) {
	var out []Brief
	for _, b := range f.briefs {
		if b.Status == status {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeRepo) Transition(ctx context.Context, id, from, to string) error {
	b, ok := f.briefs[id]
	if !ok || b.Status != from {
		return ErrInvalidTransition
	}
	b.Status = to
	return nil
}

func (f *fakeRepo) CreateEntry(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	f.entries[e.BriefID] = append(f.entries[e.BriefID], *e)
	return nil
}

func (f *fakeRepo) ListEntries(ctx context.Context, briefID string) ([]Entry, error) {
	return f.entries[briefID], nil
}

func (f *fakeRepo) UpsertReward(ctx context.Context, w *WinnerReward) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	m, ok := f.rewards[w.BriefID]
	if !ok {
		m = make(map[int]WinnerReward)
		f.rewards[w.BriefID] = m
	}
	m[w.Position] = *w
	return nil
}

func (f *fakeRepo) ListRewards(ctx context.Context, briefID string) ([]WinnerReward, error) {
	m := f.rewards[briefID]
	out := make([]WinnerReward, 0, len(m))
	for pos := 1; pos <= len(m); pos++ {
		out = append(out, m[pos])
	}
	return out, nil
}

// fakeWallets tracks balances and applied earn references, and can fail a
// specific Earn call to simulate a crash mid-distribution.
type fakeWallets struct {
	balances   map[string]int64
	earnRefs   map[string]bool
	refundRefs map[string]bool
	failEarnOn int // 1-indexed call number to fail, 0 for never
	earnCalls  int
}

func newFakeWallets() *fakeWallets {
	return &fakeWallets{
		balances:   make(map[string]int64),
		earnRefs:   make(map[string]bool),
		refundRefs: make(map[string]bool),
	}
}

func (f *fakeWallets) Spend(ctx context.Context, ownerID string, amount int64, description string) (*wallet.Transaction, error) {
	if f.balances[ownerID] < amount {
		return nil, wallet.ErrInsufficientFunds
	}
	f.balances[ownerID] -= amount
	return &wallet.Transaction{ID: uuid.New().String(), Amount: amount}, nil
}

func (f *fakeWallets) Refund(ctx context.Context, ownerID, ownerType string, amount int64, description, referenceID string) (*wallet.Transaction, bool, error) {
	if f.refundRefs[referenceID] {
		return &wallet.Transaction{ID: uuid.New().String(), Amount: amount}, false, nil
	}
	f.refundRefs[referenceID] = true
	f.balances[ownerID] += amount
	return &wallet.Transaction{ID: uuid.New().String(), Amount: amount}, true, nil
}

func (f *fakeWallets) Earn(ctx context.Context, ownerID string, amount int64, description, referenceID string) (*wallet.Transaction, bool, error) {
	f.earnCalls++
	if f.failEarnOn > 0 && f.earnCalls == f.failEarnOn {
		return nil, false, fmt.Errorf("wallet store unavailable")
	}
	if f.earnRefs[referenceID] {
		return &wallet.Transaction{ID: uuid.New().String(), Amount: amount}, false, nil
	}
	f.earnRefs[referenceID] = true
	f.balances[ownerID] += amount
	return &wallet.Transaction{ID: uuid.New().String(), Amount: amount}, true, nil
}

func setup(t *testing.T) (*Service, *fakeRepo, *fakeWallets) {
	t.Helper()
	repo := newFakeRepo()
	wallets := newFakeWallets()
	return NewService(repo, wallets), repo, wallets
}

func openBrief(t *testing.T, s *Service, wallets *fakeWallets, pool int64, winners int) *Brief {
	t.Helper()
	b, err := s.Create(context.Background(), "brand-1", "logo refresh", "new logo for launch", pool, winners)
	if err != nil {
		t.Fatalf("create brief: %v", err)
	}
	wallets.balances["brand-1"] += pool
	if _, err := s.Fund(context.Background(), "brand-1", b.ID); err != nil {
		t.Fatalf("fund brief: %v", err)
	}
	return b
}

func TestFund_DebitsPoolAndOpensBrief(t *testing.T) {
	s, repo, wallets := setup(t)
	ctx := context.Background()

	b, err := s.Create(ctx, "brand-1", "logo refresh", "", 1000, 3)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	wallets.balances["brand-1"] = 1500

	if _, err := s.Fund(ctx, "brand-1", b.ID); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if got := wallets.balances["brand-1"]; got != 500 {
		t.Errorf("brand balance = %d, want 500", got)
	}
	stored, _ := repo.Get(ctx, b.ID)
	if stored.Status != StatusOpen {
		t.Errorf("status = %q, want open", stored.Status)
	}
}

func TestFund_InsufficientFundsRevertsToDraft(t *testing.T) {
	s, repo, wallets := setup(t)
	ctx := context.Background()

	b, err := s.Create(ctx, "brand-1", "logo refresh", "", 1000, 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	wallets.balances["brand-1"] = 200

	if _, err := s.Fund(ctx, "brand-1", b.ID); !errors.Is(err, wallet.ErrInsufficientFunds) {
		t.Fatalf("fund err = %v, want ErrInsufficientFunds", err)
	}
	stored, _ := repo.Get(ctx, b.ID)
	if stored.Status != StatusDraft {
		t.Errorf("status = %q, want draft after failed funding", stored.Status)
	}
}

func TestFund_OnlyOwnerAndOnlyOnce(t *testing.T) {
	s, _, wallets := setup(t)
	ctx := context.Background()
	b := openBrief(t, s, wallets, 600, 2)

	if _, err := s.Fund(ctx, "brand-2", b.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("fund by other brand err = %v, want ErrNotFound", err)
	}
	wallets.balances["brand-1"] = 600
	if _, err := s.Fund(ctx, "brand-1", b.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second fund err = %v, want ErrInvalidTransition", err)
	}
	if got := wallets.balances["brand-1"]; got != 600 {
		t.Errorf("second fund charged the wallet: balance = %d, want 600", got)
	}
}

func TestSubmitEntry_OnlyWhileOpen(t *testing.T) {
	s, _, wallets := setup(t)
	ctx := context.Background()
	b := openBrief(t, s, wallets, 500, 1)

	if _, err := s.SubmitEntry(ctx, b.ID, "creator-1", "my take"); err != nil {
		t.Fatalf("submit entry: %v", err)
	}
	if err := s.CloseForJudging(ctx, "brand-1", b.ID); err != nil {
		t.Fatalf("close for judging: %v", err)
	}
	if _, err := s.SubmitEntry(ctx, b.ID, "creator-2", "too late"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("entry after close err = %v, want ErrInvalidTransition", err)
	}
}

func TestSelectWinners_PaysRankedTiers(t *testing.T) {
	s, repo, wallets := setup(t)
	ctx := context.Background()
	b := openBrief(t, s, wallets, 1000, 3)

	rewards, err := s.SelectWinners(ctx, "brand-1", b.ID, []string{"creator-1", "creator-2", "creator-3"})
	if err != nil {
		t.Fatalf("select winners: %v", err)
	}
	if len(rewards) != 3 {
		t.Fatalf("got %d rewards, want 3", len(rewards))
	}

	want := map[string]int64{"creator-1": 500, "creator-2": 300, "creator-3": 200}
	for creator, amount := range want {
		if got := wallets.balances[creator]; got != amount {
			t.Errorf("%s balance = %d, want %d", creator, got, amount)
		}
	}
	stored, _ := repo.Get(ctx, b.ID)
	if stored.Status != StatusCompleted {
		t.Errorf("status = %q, want completed", stored.Status)
	}
}

func TestSelectWinners_WrongCountRejected(t *testing.T) {
	s, _, wallets := setup(t)
	b := openBrief(t, s, wallets, 1000, 3)

	_, err := s.SelectWinners(context.Background(), "brand-1", b.ID, []string{"creator-1"})
	if !errors.Is(err, ErrWrongWinnerCount) {
		t.Fatalf("err = %v, want ErrWrongWinnerCount", err)
	}
	if wallets.earnCalls != 0 {
		t.Errorf("wallet was touched despite rejected selection")
	}
}

func TestDistribute_ResumesAfterPartialFailure(t *testing.T) {
	s, _, wallets := setup(t)
	ctx := context.Background()
	b := openBrief(t, s, wallets, 1000, 2)

	// Position 1 is credited, then the store fails before position 2.
	wallets.failEarnOn = 2
	if _, err := s.SelectWinners(ctx, "brand-1", b.ID, []string{"creator-1", "creator-2"}); err == nil {
		t.Fatalf("expected distribution to fail while the store is down")
	}
	if got := wallets.balances["creator-1"]; got != 600 {
		t.Fatalf("creator-1 balance = %d after partial run, want 600", got)
	}
	stored, _ := s.Get(ctx, b.ID)
	if stored.Status != StatusJudging {
		t.Fatalf("status = %q after partial run, want judging", stored.Status)
	}

	// The retry replays every position; the first is a no-op on its reference.
	wallets.failEarnOn = 0
	if _, err := s.Distribute(ctx, b.ID); err != nil {
		t.Fatalf("distribute retry: %v", err)
	}
	if got := wallets.balances["creator-1"]; got != 600 {
		t.Errorf("creator-1 balance = %d, want 600 (credited exactly once)", got)
	}
	if got := wallets.balances["creator-2"]; got != 400 {
		t.Errorf("creator-2 balance = %d, want 400", got)
	}

	stored, _ = s.Get(ctx, b.ID)
	if stored.Status != StatusCompleted {
		t.Errorf("status = %q, want completed after successful retry", stored.Status)
	}
}

func TestCancel_RefundsPoolOnce(t *testing.T) {
	s, repo, wallets := setup(t)
	ctx := context.Background()
	b := openBrief(t, s, wallets, 800, 2)

	if _, err := s.Cancel(ctx, "brand-1", b.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := wallets.balances["brand-1"]; got != 800 {
		t.Errorf("brand balance = %d, want 800 after refund", got)
	}
	if _, err := s.Cancel(ctx, "brand-1", b.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second cancel err = %v, want ErrInvalidTransition", err)
	}
	if got := wallets.balances["brand-1"]; got != 800 {
		t.Errorf("second cancel changed the balance: %d", got)
	}
	stored, _ := repo.Get(ctx, b.ID)
	if stored.Status != StatusCancelled {
		t.Errorf("status = %q, want cancelled", stored.Status)
	}
}

func TestBackfill_WritesMissingRewardRows(t *testing.T) {
	s, repo, _ := setup(t)
	ctx := context.Background()

	// A completed brief with no reward rows, as left behind by older code.
	legacy := &Brief{BrandID: "brand-1", Title: "legacy contest", RewardPool: 1000, WinnerCount: 7}
	if err := repo.Create(ctx, legacy); err != nil {
		t.Fatalf("create: %v", err)
	}
	repo.briefs[legacy.ID].Status = StatusCompleted

	repaired, err := s.Backfill(ctx)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if repaired != 1 {
		t.Errorf("repaired = %d, want 1", repaired)
	}

	rewards, _ := repo.ListRewards(ctx, legacy.ID)
	if len(rewards) != 7 {
		t.Fatalf("got %d reward rows, want 7", len(rewards))
	}
	var sum int64
	for _, r := range rewards {
		sum += r.CalculatedAmount
		if r.CreatorID != "" {
			t.Errorf("backfilled row %d has a creator assigned", r.Position)
		}
	}
	if sum != 1000 {
		t.Errorf("tier sum = %d, want 1000", sum)
	}
	if rewards[0].CalculatedAmount != 148 {
		t.Errorf("position 1 = %d, want 148 (share plus remainder)", rewards[0].CalculatedAmount)
	}

	// A second run finds nothing to repair.
	repaired, err = s.Backfill(ctx)
	if err != nil {
		t.Fatalf("second backfill: %v", err)
	}
	if repaired != 0 {
		t.Errorf("second run repaired = %d, want 0", repaired)
	}
}
