package brief

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/brieflabs/briefhub/internal/reward"
	"github.com/brieflabs/briefhub/internal/wallet"
)

// walletLedger is the slice of the wallet manager the brief service needs.
type walletLedger interface {
	Spend(ctx context.Context, ownerID string, amount int64, description string) (*wallet.Transaction, error)
	Refund(ctx context.Context, ownerID, ownerType string, amount int64, description, referenceID string) (*wallet.Transaction, bool, error)
	Earn(ctx context.Context, ownerID string, amount int64, description, referenceID string) (*wallet.Transaction, bool, error)
}

type Service struct {
	repo    Repository
	wallets walletLedger
}

func NewService(repo Repository, wallets walletLedger) *Service {
	return &Service{repo: repo, wallets: wallets}
}

func (s *Service) Create(ctx context.Context, brandID, title, description string, rewardPool int64, winnerCount int) (*Brief, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("title is required")
	}
	if rewardPool < 0 {
		return nil, fmt.Errorf("reward pool cannot be negative")
	}
	if winnerCount <= 0 {
		return nil, reward.ErrInvalidWinnerCount
	}
	b := &Brief{
		BrandID:     brandID,
		Title:       title,
		Description: description,
		RewardPool:  rewardPool,
		WinnerCount: winnerCount,
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Fund debits the brand's wallet for the reward pool and opens the brief.
// The status transition is claimed first so two concurrent Fund calls cannot
// both charge the wallet; if the debit then fails the brief is moved back to
// draft.
func (s *Service) Fund(ctx context.Context, brandID, briefID string) (*Brief, error) {
	b, err := s.repo.Get(ctx, briefID)
	if err != nil {
		return nil, err
	}
	if b.BrandID != brandID {
		return nil, ErrNotFound
	}
	if err := s.repo.Transition(ctx, briefID, StatusDraft, StatusOpen); err != nil {
		return nil, err
	}
	if b.RewardPool > 0 {
		if _, err := s.wallets.Spend(ctx, brandID, b.RewardPool, "fund brief "+briefID); err != nil {
			if revertErr := s.repo.Transition(ctx, briefID, StatusOpen, StatusDraft); revertErr != nil {
				log.Printf("could not revert brief %s to draft after failed funding: %v", briefID, revertErr)
			}
			return nil, err
		}
	}
	b.Status = StatusOpen
	return b, nil
}

// Cancel closes an open brief with no winners and refunds the pool to the
// brand. The refund reference keys on the brief so a repeated cancel cannot
// credit the pool twice.
func (s *Service) Cancel(ctx context.Context, brandID, briefID string) (*Brief, error) {
	b, err := s.repo.Get(ctx, briefID)
	if err != nil {
		return nil, err
	}
	if b.BrandID != brandID {
		return nil, ErrNotFound
	}
	if err := s.repo.Transition(ctx, briefID, StatusOpen, StatusCancelled); err != nil {
		return nil, err
	}
	if b.RewardPool > 0 {
		ref := "brief-cancel:" + briefID
		if _, _, err := s.wallets.Refund(ctx, brandID, wallet.OwnerBrand, b.RewardPool, "cancel brief "+briefID, ref); err != nil {
			return nil, err
		}
	}
	b.Status = StatusCancelled
	return b, nil
}

func (s *Service) Get(ctx context.Context, briefID string) (*Brief, error) {
	return s.repo.Get(ctx, briefID)
}

func (s *Service) ListOpen(ctx context.Context) ([]Brief, error) {
	return s.repo.ListOpen(ctx)
}

func (s *Service) ListByBrand(ctx context.Context, brandID string) ([]Brief, error) {
	return s.repo.ListByBrand(ctx, brandID)
}

func (s *Service) SubmitEntry(ctx context.Context, briefID, creatorID, content string) (*Entry, error) {
	b, err := s.repo.Get(ctx, briefID)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusOpen {
		return nil, ErrInvalidTransition
	}
	e := &Entry{BriefID: briefID, CreatorID: creatorID, Content: content}
	if err := s.repo.CreateEntry(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) ListEntries(ctx context.Context, briefID string) ([]Entry, error) {
	return s.repo.ListEntries(ctx, briefID)
}

// CloseForJudging stops new entries while the brand reviews submissions.
func (s *Service) CloseForJudging(ctx context.Context, brandID, briefID string) error {
	b, err := s.repo.Get(ctx, briefID)
	if err != nil {
		return err
	}
	if b.BrandID != brandID {
		return ErrNotFound
	}
	return s.repo.Transition(ctx, briefID, StatusOpen, StatusJudging)
}

// SelectWinners records winnerIDs in ranked order, writes one reward row per
// position and credits each winner's wallet. The credit reference is keyed on
// (brief, position), so re-running a partially failed distribution credits
// each winner at most once.
func (s *Service) SelectWinners(ctx context.Context, brandID, briefID string, winnerIDs []string) ([]WinnerReward, error) {
	b, err := s.repo.Get(ctx, briefID)
	if err != nil {
		return nil, err
	}
	if b.BrandID != brandID {
		return nil, ErrNotFound
	}
	if len(winnerIDs) != b.WinnerCount {
		return nil, ErrWrongWinnerCount
	}
	if b.Status == StatusOpen {
		if err := s.repo.Transition(ctx, briefID, StatusOpen, StatusJudging); err != nil {
			return nil, err
		}
	} else if b.Status != StatusJudging {
		return nil, ErrInvalidTransition
	}

	tiers, err := reward.ComputeTiers(b.RewardPool, b.WinnerCount)
	if err != nil {
		return nil, err
	}

	rewards := make([]WinnerReward, 0, len(tiers))
	for i, t := range tiers {
		w := WinnerReward{
			BriefID:          briefID,
			CreatorID:        winnerIDs[i],
			Position:         t.Position,
			CashAmount:       t.CashAmount,
			CreditAmount:     t.CreditAmount,
			CalculatedAmount: t.CalculatedAmount,
			PrizeDescription: t.PrizeDescription,
		}
		if err := s.repo.UpsertReward(ctx, &w); err != nil {
			return nil, fmt.Errorf("record reward for position %d: %w", t.Position, err)
		}
		rewards = append(rewards, w)
	}

	if err := s.distribute(ctx, briefID, rewards); err != nil {
		return nil, err
	}
	if err := s.repo.Transition(ctx, briefID, StatusJudging, StatusCompleted); err != nil {
		return nil, err
	}
	return rewards, nil
}

// Distribute re-runs payout for a brief whose winner rows exist but whose
// wallet credits may be missing, e.g. after a crash mid-selection. Already
// credited positions are skipped by the reference check in the ledger.
func (s *Service) Distribute(ctx context.Context, briefID string) ([]WinnerReward, error) {
	b, err := s.repo.Get(ctx, briefID)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusJudging && b.Status != StatusCompleted {
		return nil, ErrInvalidTransition
	}
	rewards, err := s.repo.ListRewards(ctx, briefID)
	if err != nil {
		return nil, err
	}
	if err := s.distribute(ctx, briefID, rewards); err != nil {
		return nil, err
	}
	if b.Status == StatusJudging {
		if err := s.repo.Transition(ctx, briefID, StatusJudging, StatusCompleted); err != nil {
			return nil, err
		}
	}
	return rewards, nil
}

func (s *Service) distribute(ctx context.Context, briefID string, rewards []WinnerReward) error {
	for _, w := range rewards {
		if w.CreatorID == "" || w.CalculatedAmount <= 0 {
			continue
		}
		ref := fmt.Sprintf("reward:%s:%d", briefID, w.Position)
		desc := fmt.Sprintf("reward for brief %s, position %d", briefID, w.Position)
		if _, _, err := s.wallets.Earn(ctx, w.CreatorID, w.CalculatedAmount, desc, ref); err != nil {
			return fmt.Errorf("credit winner at position %d: %w", w.Position, err)
		}
	}
	return nil
}

// Backfill writes reward rows for completed briefs that have none, using the
// same tier computation as live selection. Winners are left unassigned; the
// rows record what each position should have received.
func (s *Service) Backfill(ctx context.Context) (int, error) {
	briefs, err := s.repo.ListByStatus(ctx, StatusCompleted)
	if err != nil {
		return 0, err
	}
	repaired := 0
	for _, b := range briefs {
		existing, err := s.repo.ListRewards(ctx, b.ID)
		if err != nil {
			return repaired, err
		}
		if len(existing) > 0 {
			continue
		}
		tiers, err := reward.ComputeTiers(b.RewardPool, b.WinnerCount)
		if err != nil {
			log.Printf("skipping brief %s: %v", b.ID, err)
			continue
		}
		for _, t := range tiers {
			w := WinnerReward{
				BriefID:          b.ID,
				Position:         t.Position,
				CashAmount:       t.CashAmount,
				CreditAmount:     t.CreditAmount,
				CalculatedAmount: t.CalculatedAmount,
				PrizeDescription: t.PrizeDescription,
			}
			if err := s.repo.UpsertReward(ctx, &w); err != nil {
				return repaired, err
			}
		}
		repaired++
	}
	return repaired, nil
}

func (s *Service) Rewards(ctx context.Context, briefID string) ([]WinnerReward, error) {
	return s.repo.ListRewards(ctx, briefID)
}
