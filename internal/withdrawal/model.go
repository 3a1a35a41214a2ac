package withdrawal

import (
	"errors"
	"time"
)

// Request lifecycle: pending -> approved -> processed, or pending -> rejected.
// A processed request is immutable.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusProcessed = "processed"
)

type Request struct {
	ID            string     `json:"id"`
	CreatorID     string     `json:"creator_id"`
	Amount        int64      `json:"amount"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	Reason        string     `json:"reason"`
	AdminNotes    string     `json:"admin_notes"`
	PayoutAccount string     `json:"payout_account"`
	TransferID    string     `json:"transfer_id,omitempty"`
	RequestedAt   time.Time  `json:"requested_at"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
}

var (
	ErrNotFound          = errors.New("withdrawal request not found")
	ErrInvalidTransition = errors.New("withdrawal request not in a state that allows this action")
	ErrTransferFailed    = errors.New("external transfer failed")
)
