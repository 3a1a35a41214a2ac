package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/brieflabs/briefhub/internal/wallet"
)

// walletLedger is the slice of the Wallet Manager the workflow needs.
type walletLedger interface {
	GetWallet(ctx context.Context, ownerID string) (*wallet.Wallet, error)
	Withdraw(ctx context.Context, ownerID string, amount int64, description, referenceID string) (*wallet.Transaction, bool, error)
}

// transferClient is the payout side of the payment gateway.
type transferClient interface {
	CreateTransfer(ctx context.Context, destinationAccount string, amount int64, currency, idempotencyKey string) (string, error)
}

// Service drives the withdrawal state machine. Funds are never reserved when
// a request is submitted; the balance is re-validated when an admin approves.
type Service struct {
	repo      Repository
	wallets   walletLedger
	transfers transferClient
}

func NewService(repo Repository, wallets walletLedger, transfers transferClient) *Service {
	return &Service{repo: repo, wallets: wallets, transfers: transfers}
}

// Submit creates a pending request. The creator's balance must cover the
// amount now, but nothing is debited until the payout actually processes.
func (s *Service) Submit(ctx context.Context, creatorID string, amount int64, currency, reason, payoutAccount string) (*Request, error) {
	if amount <= 0 {
		return nil, wallet.ErrInvalidAmount
	}
	w, err := s.wallets.GetWallet(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if amount > w.Balance {
		return nil, wallet.ErrInsufficientFunds
	}
	if currency == "" {
		currency = "usd"
	}

	req := &Request{
		CreatorID:     creatorID,
		Amount:        amount,
		Currency:      currency,
		Reason:        reason,
		PayoutAccount: payoutAccount,
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("create withdrawal request: %w", err)
	}
	return req, nil
}

// Approve moves a pending request to approved and attempts the payout.
// The ledger is debited only after the external transfer confirms success;
// a failed transfer leaves the request approved and the wallet untouched, so
// the payout can be retried.
func (s *Service) Approve(ctx context.Context, id, adminNotes string) (*Request, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch req.Status {
	case StatusPending:
		// Balance may have changed while the request sat in the queue.
		if err := s.coveredByBalance(ctx, req); err != nil {
			return nil, err
		}
		if err := s.repo.MarkApproved(ctx, id, adminNotes); err != nil {
			return nil, err
		}
		req.Status = StatusApproved
		req.AdminNotes = adminNotes
	case StatusApproved:
		// Retry of a previously failed payout. When no transfer went out
		// yet, the balance gets the same re-check the pending path does.
		if req.TransferID == "" {
			if err := s.coveredByBalance(ctx, req); err != nil {
				return nil, err
			}
		}
	default:
		return nil, ErrInvalidTransition
	}

	// One reference covers both sides of the payout: the gateway dedups the
	// transfer on it and the ledger dedups the debit on it, so no retry can
	// move money twice.
	ref := "withdrawal:" + id

	if req.TransferID == "" {
		transferID, err := s.transfers.CreateTransfer(ctx, req.PayoutAccount, req.Amount, req.Currency, ref)
		if err != nil {
			log.Printf("withdrawal %s: transfer failed, request stays approved: %v", id, err)
			return req, fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
		// Record the transfer before touching the ledger, so a retry skips
		// straight to the debit instead of paying out again.
		if err := s.repo.RecordTransfer(ctx, id, transferID); err != nil {
			log.Printf("withdrawal %s: transfer %s sent but not recorded: %v", id, transferID, err)
			return req, err
		}
		req.TransferID = transferID
	}

	if _, _, err := s.wallets.Withdraw(ctx, req.CreatorID, req.Amount, "withdrawal "+id, ref); err != nil {
		// The transfer is out and recorded; the request stays approved so
		// the debit can be retried.
		log.Printf("withdrawal %s: transfer %s succeeded but ledger debit failed: %v", id, req.TransferID, err)
		return req, err
	}

	if err := s.repo.MarkProcessed(ctx, id, req.TransferID); err != nil {
		return nil, err
	}
	req.Status = StatusProcessed
	return req, nil
}

func (s *Service) coveredByBalance(ctx context.Context, req *Request) error {
	w, err := s.wallets.GetWallet(ctx, req.CreatorID)
	if err != nil {
		return err
	}
	if req.Amount > w.Balance {
		return wallet.ErrInsufficientFunds
	}
	return nil
}

// Reject terminally declines a pending request. No ledger mutation.
func (s *Service) Reject(ctx context.Context, id, adminNotes string) (*Request, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusPending {
		return nil, ErrInvalidTransition
	}
	if err := s.repo.MarkRejected(ctx, id, adminNotes); err != nil {
		return nil, err
	}
	req.Status = StatusRejected
	req.AdminNotes = adminNotes
	return req, nil
}

// ListMine returns a creator's own requests.
func (s *Service) ListMine(ctx context.Context, creatorID string) ([]Request, error) {
	return s.repo.ListByCreator(ctx, creatorID)
}

// ListPending returns the admin approval queue.
func (s *Service) ListPending(ctx context.Context) ([]Request, error) {
	return s.repo.ListByStatus(ctx, StatusPending)
}

// IsRecoverable reports whether the error should be shown to the caller as a
// business outcome rather than a server failure.
func IsRecoverable(err error) bool {
	return errors.Is(err, wallet.ErrInsufficientFunds) ||
		errors.Is(err, wallet.ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrNotFound)
}
