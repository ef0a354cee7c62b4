package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Notifier is a fire-and-forget delivery sink. Failures are for the caller
// to log, never to propagate.
type Notifier interface {
	SendText(ctx context.Context, phone, text string) error
}

// WhatsAppClient posts template-free text messages through a WhatsApp
// gateway API.
type WhatsAppClient struct {
	apiURL string
	token  string
	httpc  *http.Client
}

func NewWhatsAppClient(apiURL, token string) *WhatsAppClient {
	return &WhatsAppClient{
		apiURL: apiURL,
		token:  token,
		httpc:  &http.Client{Timeout: 15 * time.Second},
	}
}

type whatsAppMessage struct {
	To   string `json:"to"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
}

func (c *WhatsAppClient) SendText(ctx context.Context, phone, text string) error {
	msg := whatsAppMessage{To: phone, Type: "text"}
	msg.Text.Body = text

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("whatsapp gateway: %s - %s", resp.Status, string(b))
	}
	return nil
}

// FormatConsultationSummary renders the patient-facing WhatsApp text for a
// committed consultation.
func FormatConsultationSummary(patientName, summary, diagnosis string, recommendations []string, followUp time.Time) string {
	text := fmt.Sprintf("Hello %s, here is a summary of your consultation.\n\n%s\n\nDiagnosis: %s",
		patientName, summary, diagnosis)
	for _, r := range recommendations {
		text += "\n- " + r
	}
	if !followUp.IsZero() {
		text += fmt.Sprintf("\n\nSuggested follow-up: %s", followUp.Format("Mon, 02 Jan 2006"))
	}
	return text
}
