package alerts

import "time"

// Task type constants
const (
	TaskWelcomeEmail        = "email:welcome"
	TaskDepositReceived     = "email:deposit_received"
	TaskWithdrawalApproved  = "email:withdrawal_approved"
	TaskWithdrawalRejected  = "email:withdrawal_rejected"
	TaskWithdrawalProcessed = "email:withdrawal_processed"
	TaskRewardPaid          = "email:reward_paid"
	TaskBriefFunded         = "email:brief_funded"
	TaskPasswordReset       = "email:password_reset"
)

// Common envelope for email-like notifications
type EmailEnvelope struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Welcome email payload
type WelcomeEmailPayload struct {
	UserID   string        `json:"user_id"`
	Name     string        `json:"name"`
	Email    string        `json:"email"`
	Envelope EmailEnvelope `json:"envelope"`
	SentAt   time.Time     `json:"sent_at"`
}

// Deposit received payload (sent after a wallet top-up is reconciled)
type DepositReceivedPayload struct {
	UserID   string        `json:"user_id"`
	Email    string        `json:"email"`
	Amount   int64         `json:"amount"`
	Envelope EmailEnvelope `json:"envelope"`
	SentAt   time.Time     `json:"sent_at"`
}

// Withdrawal status payload, shared across approve/reject/processed
type WithdrawalStatusPayload struct {
	RequestID string        `json:"request_id"`
	UserID    string        `json:"user_id"`
	Email     string        `json:"email"`
	Amount    int64         `json:"amount"`
	Status    string        `json:"status"`
	Envelope  EmailEnvelope `json:"envelope"`
	SentAt    time.Time     `json:"sent_at"`
}

// Reward paid payload (sent to a winning creator)
type RewardPaidPayload struct {
	BriefID  string        `json:"brief_id"`
	UserID   string        `json:"user_id"`
	Email    string        `json:"email"`
	Position int           `json:"position"`
	Amount   int64         `json:"amount"`
	Envelope EmailEnvelope `json:"envelope"`
	SentAt   time.Time     `json:"sent_at"`
}

// Brief funded payload (sent to the brand after the pool is debited)
type BriefFundedPayload struct {
	BriefID  string        `json:"brief_id"`
	BrandID  string        `json:"brand_id"`
	Email    string        `json:"email"`
	Amount   int64         `json:"amount"`
	Envelope EmailEnvelope `json:"envelope"`
	SentAt   time.Time     `json:"sent_at"`
}

// Password reset payload
type PasswordResetPayload struct {
	UserID    string        `json:"user_id"`
	Email     string        `json:"email"`
	ResetURL  string        `json:"reset_url"`
	Envelope  EmailEnvelope `json:"envelope"`
	Requested time.Time     `json:"requested"`
}
