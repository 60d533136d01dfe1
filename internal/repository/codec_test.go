package repository

import (
	"bytes"
	"testing"
	"time"

	"github.com/splax/onboard/internal/domain"
	"github.com/splax/onboard/pkg/crypto"
)

func TestCodecSealsPayload(t *testing.T) {
	sealer, err := crypto.NewSealer("key")
	if err != nil {
		t.Fatalf("sealer: %v", err)
	}
	codec := NewCodec(sealer)
	reg := domain.PendingRegistration{
		Token:     "tok",
		Data:      domain.RegistrationData{Email: "jane@example.com", PasswordHash: "$2a$10$abc"},
		ExpiresAt: time.Date(2025, time.May, 1, 10, 0, 0, 0, time.UTC),
	}
	payload, err := codec.Encode(reg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if bytes.Contains(payload, []byte("jane@example.com")) {
		t.Fatalf("sealed payload leaks email")
	}
	got, err := codec.Decode(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Token != "tok" || got.Data.Email != "jane@example.com" || !got.ExpiresAt.Equal(reg.ExpiresAt) {
		t.Fatalf("unexpected decoded registration %+v", got)
	}
}

func TestCodecDecodeRejectsGarbage(t *testing.T) {
	codec := NewCodec(crypto.Sealer{})
	if _, err := codec.Decode([]byte("not json")); err == nil {
		t.Fatalf("expected decode error")
	}
}
