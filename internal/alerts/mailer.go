package alerts

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/brieflabs/briefhub/internal/config"
)

// Mailer sends plain text email, routing to Plunk when configured and
// falling back to SMTP with TLS otherwise.
type Mailer struct {
	cfg config.Config
}

func NewMailer(cfg config.Config) (*Mailer, error) {
	if cfg.MailProvider == "plunk" || (cfg.PlunkAPIKey != "" && cfg.MailProvider == "") {
		if cfg.PlunkAPIKey == "" {
			return nil, fmt.Errorf("plunk not configured: set PLUNK_API_KEY")
		}
		return &Mailer{cfg: cfg}, nil
	}
	if cfg.SMTPHost == "" || cfg.SMTPPort == "" || cfg.SMTPUsername == "" || cfg.SMTPPassword == "" || cfg.SMTPFrom == "" {
		return nil, fmt.Errorf("smtp not configured: set SMTP_HOST, SMTP_PORT, SMTP_USERNAME, SMTP_PASSWORD, SMTP_FROM (or set MAIL_PROVIDER=plunk)")
	}
	return &Mailer{cfg: cfg}, nil
}

// Send delivers a plain text email to a single recipient.
func (m *Mailer) Send(to, subject, body string) error {
	if m.cfg.MailProvider == "plunk" || (m.cfg.PlunkAPIKey != "" && m.cfg.MailProvider == "") {
		return m.sendViaPlunk(to, subject, body)
	}

	addr := m.cfg.SMTPHost + ":" + m.cfg.SMTPPort

	msg := ""
	msg += fmt.Sprintf("From: %s\r\n", m.cfg.SMTPFrom)
	msg += fmt.Sprintf("To: %s\r\n", to)
	msg += fmt.Sprintf("Subject: %s\r\n", subject)
	if m.cfg.MailReplyTo != "" {
		msg += fmt.Sprintf("Reply-To: %s\r\n", m.cfg.MailReplyTo)
	}
	msg += "MIME-Version: 1.0\r\n"
	contentType := "text/plain"
	lb := strings.ToLower(body)
	if strings.Contains(lb, "<html") || strings.Contains(lb, "<body") || strings.Contains(lb, "<!doctype html") {
		contentType = "text/html"
	}
	msg += fmt.Sprintf("Content-Type: %s; charset=\"utf-8\"\r\n", contentType)
	msg += "\r\n" + body + "\r\n"

	tlsConfig := &tls.Config{ServerName: m.cfg.SMTPHost}
	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, m.cfg.SMTPHost)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer c.Close()

	auth := smtp.PlainAuth("", m.cfg.SMTPUsername, m.cfg.SMTPPassword, m.cfg.SMTPHost)
	if err := c.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := c.Mail(m.cfg.SMTPFrom); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := wc.Write([]byte(msg)); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return c.Quit()
}
