package crypto

import (
	"bytes"
	"testing"
)

func TestSealerRoundTrip(t *testing.T) {
	s, err := NewSealer("pending-secret")
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	if !s.Enabled() {
		t.Fatalf("expected sealer to be enabled")
	}
	plain := []byte(`{"token":"abc"}`)
	sealed, err := s.Seal(plain)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Contains(sealed, []byte("token")) {
		t.Fatalf("sealed payload leaks plaintext")
	}
	opened, err := s.Open(sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(opened, plain) {
		t.Fatalf("unexpected plaintext %q", opened)
	}
}

func TestSealerPassthroughWithoutSecret(t *testing.T) {
	s, err := NewSealer("")
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	out, err := s.Seal([]byte("raw"))
	if err != nil || string(out) != "raw" {
		t.Fatalf("expected passthrough, got %q (%v)", out, err)
	}
}

func TestSealerRejectsShortPayload(t *testing.T) {
	s, _ := NewSealer("k")
	if _, err := s.Open([]byte("x")); err != ErrCiphertextTooShort {
		t.Fatalf("expected ErrCiphertextTooShort, got %v", err)
	}
}

func TestHashPasswordNeverPlaintext(t *testing.T) {
	hash, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "secret1" {
		t.Fatalf("hash equals plaintext")
	}
	if err := ComparePassword(hash, "secret1"); err != nil {
		t.Fatalf("compare: %v", err)
	}
	if err := ComparePassword(hash, "secret2"); err == nil {
		t.Fatalf("expected mismatch")
	}
}
