package alerts

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

// Notifier enqueues email tasks onto the asynq queues. A nil Notifier drops
// every notification, so callers never need to guard for a disabled queue.
type Notifier struct {
	client *asynq.Client
	appURL string
}

func NewNotifier(redisAddr, appURL string) *Notifier {
	if appURL == "" {
		appURL = "http://localhost:3000"
	}
	return &Notifier{
		client: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr}),
		appURL: strings.TrimRight(appURL, "/"),
	}
}

func (n *Notifier) Close() error {
	if n == nil || n.client == nil {
		return nil
	}
	return n.client.Close()
}

func (n *Notifier) enqueue(taskType string, payload any, queue string) error {
	if n == nil || n.client == nil {
		return nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = n.client.Enqueue(asynq.NewTask(taskType, b), asynq.Queue(queue))
	return err
}

func money(amount int64) string {
	return fmt.Sprintf("%.2f", float64(amount)/100)
}

// WelcomeEmail schedules a welcome email to a newly registered user.
func (n *Notifier) WelcomeEmail(userID, email, name string) error {
	env := EmailEnvelope{
		To:      email,
		Subject: fmt.Sprintf("Welcome to BriefHub, %s!", name),
		Body:    fmt.Sprintf("Hi %s, thanks for joining BriefHub.\n\nOpen BriefHub: %s", name, n.appURL),
	}
	p := WelcomeEmailPayload{UserID: userID, Name: name, Email: email, Envelope: env, SentAt: time.Now()}
	return n.enqueue(TaskWelcomeEmail, p, "emails")
}

// DepositReceived confirms a reconciled wallet top-up.
func (n *Notifier) DepositReceived(userID, email string, amount int64) error {
	env := EmailEnvelope{
		To:      email,
		Subject: "Your deposit has arrived",
		Body:    fmt.Sprintf("We credited %s to your BriefHub wallet.", money(amount)),
	}
	p := DepositReceivedPayload{UserID: userID, Email: email, Amount: amount, Envelope: env, SentAt: time.Now()}
	return n.enqueue(TaskDepositReceived, p, "emails")
}

// WithdrawalStatus notifies a creator their payout request changed state.
func (n *Notifier) WithdrawalStatus(requestID, userID, email, status string, amount int64) error {
	var subject, body string
	switch status {
	case "approved":
		subject = "Withdrawal approved"
		body = fmt.Sprintf("Your withdrawal of %s was approved and is being transferred.", money(amount))
	case "rejected":
		subject = "Withdrawal rejected"
		body = fmt.Sprintf("Your withdrawal of %s was rejected. Your balance is unchanged.", money(amount))
	case "processed":
		subject = "Withdrawal sent"
		body = fmt.Sprintf("Your withdrawal of %s was sent to your payout account.", money(amount))
	default:
		subject = "Withdrawal update"
		body = fmt.Sprintf("Your withdrawal of %s is now %s.", money(amount), status)
	}
	env := EmailEnvelope{To: email, Subject: subject, Body: body}
	p := WithdrawalStatusPayload{RequestID: requestID, UserID: userID, Email: email, Amount: amount, Status: status, Envelope: env, SentAt: time.Now()}
	taskType := TaskWithdrawalApproved
	switch status {
	case "rejected":
		taskType = TaskWithdrawalRejected
	case "processed":
		taskType = TaskWithdrawalProcessed
	}
	return n.enqueue(taskType, p, "emails")
}

// RewardPaid congratulates a winning creator after their wallet is credited.
func (n *Notifier) RewardPaid(briefID, userID, email string, position int, amount int64) error {
	env := EmailEnvelope{
		To:      email,
		Subject: "You won a brief!",
		Body:    fmt.Sprintf("Congratulations! You placed #%d and earned %s. The reward is in your wallet.", position, money(amount)),
	}
	p := RewardPaidPayload{BriefID: briefID, UserID: userID, Email: email, Position: position, Amount: amount, Envelope: env, SentAt: time.Now()}
	return n.enqueue(TaskRewardPaid, p, "emails")
}

// BriefFunded confirms to the brand that their brief is live.
func (n *Notifier) BriefFunded(briefID, brandID, email string, amount int64) error {
	env := EmailEnvelope{
		To:      email,
		Subject: "Your brief is live",
		Body:    fmt.Sprintf("Your brief is open for entries. Reward pool: %s.", money(amount)),
	}
	p := BriefFundedPayload{BriefID: briefID, BrandID: brandID, Email: email, Amount: amount, Envelope: env, SentAt: time.Now()}
	return n.enqueue(TaskBriefFunded, p, "emails")
}

// PasswordReset schedules a password reset notification.
func (n *Notifier) PasswordReset(userID, email, resetURL, name string) error {
	body := fmt.Sprintf("Hello %s,\n\nWe received a request to reset your BriefHub password.\n\nTo proceed, open the link below:\n%s\n\nIf you did not request this, no action is required.\n\n— BriefHub Team", name, resetURL)
	env := EmailEnvelope{To: email, Subject: "Password reset instructions", Body: body}
	p := PasswordResetPayload{UserID: userID, Email: email, ResetURL: resetURL, Envelope: env, Requested: time.Now()}
	return n.enqueue(TaskPasswordReset, p, "emails")
}
