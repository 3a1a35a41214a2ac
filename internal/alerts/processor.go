package alerts

import (
	"context"
	"encoding/json"
	"log"

	"github.com/hibiken/asynq"
)

// Processor runs the asynq worker that delivers queued emails.
type Processor struct {
	server *asynq.Server
	mailer *Mailer
}

func NewProcessor(redisAddr string, mailer *Mailer) *Processor {
	return &Processor{
		server: asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{
			Concurrency: 5,
			Queues: map[string]int{
				"emails": 10,
				"alerts": 5,
			},
		}),
		mailer: mailer,
	}
}

// Start runs the worker in the background.
func (p *Processor) Start() {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskWelcomeEmail, p.handleWelcomeEmail)
	mux.HandleFunc(TaskDepositReceived, p.handleDepositReceived)
	mux.HandleFunc(TaskWithdrawalApproved, p.handleWithdrawalStatus)
	mux.HandleFunc(TaskWithdrawalRejected, p.handleWithdrawalStatus)
	mux.HandleFunc(TaskWithdrawalProcessed, p.handleWithdrawalStatus)
	mux.HandleFunc(TaskRewardPaid, p.handleRewardPaid)
	mux.HandleFunc(TaskBriefFunded, p.handleBriefFunded)
	mux.HandleFunc(TaskPasswordReset, p.handlePasswordReset)

	go func() {
		if err := p.server.Run(mux); err != nil {
			log.Printf("asynq server stopped: %v", err)
		}
	}()
}

func (p *Processor) Shutdown() {
	p.server.Shutdown()
}

func (p *Processor) handleWelcomeEmail(_ context.Context, t *asynq.Task) error {
	var pl WelcomeEmailPayload
	if err := json.Unmarshal(t.Payload(), &pl); err != nil {
		return err
	}
	if err := p.mailer.Send(pl.Email, pl.Envelope.Subject, pl.Envelope.Body); err != nil {
		log.Printf("[notify][ERROR] WelcomeEmail send failed: %v", err)
		return err
	}
	log.Printf("[notify] WelcomeEmail sent -> to=%s user=%s", pl.Email, pl.UserID)
	return nil
}

func (p *Processor) handleDepositReceived(_ context.Context, t *asynq.Task) error {
	var pl DepositReceivedPayload
	if err := json.Unmarshal(t.Payload(), &pl); err != nil {
		return err
	}
	if err := p.mailer.Send(pl.Email, pl.Envelope.Subject, pl.Envelope.Body); err != nil {
		log.Printf("[notify][ERROR] DepositReceived send failed: %v", err)
		return err
	}
	log.Printf("[notify] DepositReceived sent -> to=%s amount=%d", pl.Email, pl.Amount)
	return nil
}

func (p *Processor) handleWithdrawalStatus(_ context.Context, t *asynq.Task) error {
	var pl WithdrawalStatusPayload
	if err := json.Unmarshal(t.Payload(), &pl); err != nil {
		return err
	}
	if err := p.mailer.Send(pl.Email, pl.Envelope.Subject, pl.Envelope.Body); err != nil {
		log.Printf("[notify][ERROR] WithdrawalStatus send failed: %v", err)
		return err
	}
	log.Printf("[notify] WithdrawalStatus sent -> request=%s status=%s", pl.RequestID, pl.Status)
	return nil
}

func (p *Processor) handleRewardPaid(_ context.Context, t *asynq.Task) error {
	var pl RewardPaidPayload
	if err := json.Unmarshal(t.Payload(), &pl); err != nil {
		return err
	}
	if err := p.mailer.Send(pl.Email, pl.Envelope.Subject, pl.Envelope.Body); err != nil {
		log.Printf("[notify][ERROR] RewardPaid send failed: %v", err)
		return err
	}
	log.Printf("[notify] RewardPaid sent -> brief=%s position=%d", pl.BriefID, pl.Position)
	return nil
}

func (p *Processor) handleBriefFunded(_ context.Context, t *asynq.Task) error {
	var pl BriefFundedPayload
	if err := json.Unmarshal(t.Payload(), &pl); err != nil {
		return err
	}
	if err := p.mailer.Send(pl.Email, pl.Envelope.Subject, pl.Envelope.Body); err != nil {
		log.Printf("[notify][ERROR] BriefFunded send failed: %v", err)
		return err
	}
	log.Printf("[notify] BriefFunded sent -> brief=%s", pl.BriefID)
	return nil
}

func (p *Processor) handlePasswordReset(_ context.Context, t *asynq.Task) error {
	var pl PasswordResetPayload
	if err := json.Unmarshal(t.Payload(), &pl); err != nil {
		return err
	}
	if err := p.mailer.Send(pl.Email, pl.Envelope.Subject, pl.Envelope.Body); err != nil {
		log.Printf("[notify][ERROR] PasswordReset send failed: %v", err)
		return err
	}
	log.Printf("[notify] PasswordReset sent -> to=%s", pl.Email)
	return nil
}
