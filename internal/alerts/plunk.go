package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type plunkSendBody struct {
	To         string            `json:"to"`
	Subject    string            `json:"subject"`
	Body       string            `json:"body"`
	From       string            `json:"from,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Subscribed bool              `json:"subscribed,omitempty"`
	Name       string            `json:"name,omitempty"`
	Reply      string            `json:"reply,omitempty"`
}

// sendViaPlunk performs the HTTP request to the Plunk API.
func (m *Mailer) sendViaPlunk(to, subject, body string) error {
	if m.cfg.PlunkAPIKey == "" {
		return fmt.Errorf("plunk not configured: set PLUNK_API_KEY")
	}
	apiURL := m.cfg.PlunkAPIURL
	if apiURL == "" {
		apiURL = "https://api.useplunk.com/v1/send"
	}

	payload := plunkSendBody{
		To:      to,
		Subject: subject,
		Body:    body,
		From:    m.cfg.PlunkFrom,
		Reply:   m.cfg.MailReplyTo,
	}
	b, _ := json.Marshal(payload)
	req, err := http.NewRequest("POST", apiURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.cfg.PlunkAPIKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if b, readErr := io.ReadAll(resp.Body); readErr == nil && len(b) > 0 {
			return fmt.Errorf("plunk send failed: status=%d body=%s", resp.StatusCode, string(b))
		}
		return fmt.Errorf("plunk send failed: status=%d", resp.StatusCode)
	}
	return nil
}
