package signing

import (
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestSigner(t *testing.T) {
	secret := []byte("topsecret")
	s := NewSigner(secret)
	sig := s.Sign("doc123", 1700000000)
	if len(sig) == 0 {
		t.Fatalf("expected signature")
	}
	if !s.Validate("doc123", "1700000000", sig) {
		t.Fatalf("expected signature to validate")
	}
	if s.Validate("wrong", "1700000000", sig) {
		t.Fatalf("expected validation to fail for wrong document id")
	}
	if s.Validate("doc123", "42", sig) {
		t.Fatalf("expected validation to fail for wrong expiry")
	}
	if NewSigner([]byte("other")).Validate("doc123", "1700000000", sig) {
		t.Fatalf("expected validation to fail for another secret")
	}
}

func TestURLAndVerify(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	s := NewSigner([]byte("k"))
	s.now = func() time.Time { return now }

	link, expiresAt := s.URL("/v1/files/doc-1", "doc-1", 5*time.Minute)
	if !expiresAt.Equal(now.Add(5 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", expiresAt)
	}
	path, rawQuery, _ := strings.Cut(link, "?")
	if path != "/v1/files/doc-1" {
		t.Fatalf("unexpected path %s", path)
	}
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		t.Fatalf("parse query: %v", err)
	}
	if err := s.Verify("doc-1", q.Get("expires"), q.Get("signature")); err != nil {
		t.Fatalf("fresh link rejected: %v", err)
	}
	if err := s.Verify("doc-2", q.Get("expires"), q.Get("signature")); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}

	now = now.Add(6 * time.Minute)
	if err := s.Verify("doc-1", q.Get("expires"), q.Get("signature")); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}
