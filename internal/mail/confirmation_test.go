package mail

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRenderConfirmationEmbedsLink(t *testing.T) {
	link := ConfirmationLink("http://localhost:5000/api/confirm-creation", "abc-_123")
	if link != "http://localhost:5000/api/confirm-creation?token=abc-_123" {
		t.Fatalf("unexpected link %q", link)
	}
	msg, err := RenderConfirmation("jane@example.com", ConfirmationData{
		AppName:   "Customer Portal",
		FirstName: "Jane",
		Link:      link,
		ValidFor:  time.Hour,
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if msg.To != "jane@example.com" {
		t.Fatalf("unexpected recipient %q", msg.To)
	}
	if msg.Subject != "Confirm your Customer Portal account" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	if !strings.Contains(msg.Text, link) || !strings.Contains(msg.Text, "60 minutes") {
		t.Fatalf("text body missing link or validity: %s", msg.Text)
	}
	if !strings.Contains(msg.HTML, "token=abc-_123") {
		t.Fatalf("html body missing token: %s", msg.HTML)
	}
}

func TestSMTPSenderRequiresConfig(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com"})
	if err := s.Send(context.Background(), Message{To: "a@b.co"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
