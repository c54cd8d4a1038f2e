// Package signing issues and checks HMAC signatures for time-limited document
// download links.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

var (
	// ErrExpired is returned for a well-formed link past its expiry.
	ErrExpired = errors.New("signed link expired")
	// ErrInvalid is returned when the signature does not match.
	ErrInvalid = errors.New("invalid signature")
)

// Signer generates and validates HMAC based signatures.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner creates a Signer.
func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret, now: time.Now}
}

// Sign returns the hex signature of documentID valid until expiresUnix.
func (s *Signer) Sign(documentID string, expiresUnix int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(fmt.Sprintf("%s:%d", documentID, expiresUnix)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Validate compares the provided signature with the expected one. It does not
// look at the clock; see Verify.
func (s *Signer) Validate(documentID, expires, signature string) bool {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return false
	}
	expected := s.Sign(documentID, exp)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Verify checks the signature and the expiry of a link.
func (s *Signer) Verify(documentID, expires, signature string) error {
	if !s.Validate(documentID, expires, signature) {
		return ErrInvalid
	}
	exp, _ := strconv.ParseInt(expires, 10, 64)
	if s.now().Unix() > exp {
		return ErrExpired
	}
	return nil
}

// URL returns path?expires=..&signature=.. valid for ttl, plus its expiry.
func (s *Signer) URL(path, documentID string, ttl time.Duration) (string, time.Time) {
	expiresAt := s.now().Add(ttl).UTC().Truncate(time.Second)
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expiresAt.Unix(), 10))
	q.Set("signature", s.Sign(documentID, expiresAt.Unix()))
	return path + "?" + q.Encode(), expiresAt
}
