package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestWhatsAppSendText(t *testing.T) {
	var got whatsAppMessage
	var auth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewWhatsAppClient(srv.URL, "secret-token")
	if err := c.SendText(context.Background(), "+5215512345678", "hello"); err != nil {
		t.Fatalf("SendText: %v", err)
	}

	if auth != "Bearer secret-token" {
		t.Errorf("auth header = %q", auth)
	}
	if got.To != "+5215512345678" || got.Type != "text" || got.Text.Body != "hello" {
		t.Errorf("message = %+v", got)
	}
}

func TestWhatsAppSendTextGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid recipient"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewWhatsAppClient(srv.URL, "t")
	err := c.SendText(context.Background(), "not-a-phone", "hello")
	if err == nil {
		t.Fatal("want error on 4xx response")
	}
	if !strings.Contains(err.Error(), "invalid recipient") {
		t.Errorf("error should carry the gateway body: %v", err)
	}
}

func TestFormatConsultationSummary(t *testing.T) {
	followUp := time.Date(2026, 3, 17, 0, 0, 0, 0, time.UTC)
	text := FormatConsultationSummary("Ana", "You were seen for a sore throat.", "Viral pharyngitis",
		[]string{"Rest and hydration"}, followUp)

	for _, want := range []string{
		"Hello Ana",
		"You were seen for a sore throat.",
		"Diagnosis: Viral pharyngitis",
		"- Rest and hydration",
		"Tue, 17 Mar 2026",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q:\n%s", want, text)
		}
	}

	if strings.Contains(FormatConsultationSummary("Ana", "s", "d", nil, time.Time{}), "follow-up") {
		t.Error("zero follow-up date must be omitted")
	}
}
