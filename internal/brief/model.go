package brief

import (
	"errors"
	"time"
)

// Brief lifecycle. Funding moves a draft to open; winner selection closes it.
const (
	StatusDraft     = "draft"
	StatusOpen      = "open"
	StatusJudging   = "judging"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

type Brief struct {
	ID          string    `json:"id"`
	BrandID     string    `json:"brand_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	RewardPool  int64     `json:"reward_pool"`
	WinnerCount int       `json:"winner_count"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Entry struct {
	ID          string    `json:"id"`
	BriefID     string    `json:"brief_id"`
	CreatorID   string    `json:"creator_id"`
	Content     string    `json:"content"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// WinnerReward is one position-ranked payout row for a brief. CreatorID is
// empty until a winner is assigned to the position.
type WinnerReward struct {
	ID               string    `json:"id"`
	BriefID          string    `json:"brief_id"`
	CreatorID        string    `json:"creator_id,omitempty"`
	Position         int       `json:"position"`
	CashAmount       int64     `json:"cash_amount"`
	CreditAmount     int64     `json:"credit_amount"`
	CalculatedAmount int64     `json:"calculated_amount"`
	PrizeDescription string    `json:"prize_description,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

var (
	ErrNotFound          = errors.New("brief not found")
	ErrInvalidTransition = errors.New("brief not in a state that allows this action")
	ErrWrongWinnerCount  = errors.New("selected winners do not match the brief's winner count")
)
