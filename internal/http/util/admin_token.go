package util

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrMissingSecret = errors.New("admin password is not configured")
)

const (
	tokenPrefix  = "cs1."
	keySalt      = "cloudshare-admin-session"
	sigLen       = 16
	payloadBytes = 16 // 8 bytes expiry + 8 random bytes
)

// TokenSigner issues short-lived admin session tokens. The signing key is
// derived from the admin password, so changing the password invalidates
// every token.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenSigner derives a signer from the admin password.
func NewTokenSigner(password string, ttl time.Duration) *TokenSigner {
	var secret []byte
	if password != "" {
		secret = argon2.IDKey([]byte(password), []byte(keySalt), 1, 64*1024, 4, 32)
	}
	return &TokenSigner{secret: secret, ttl: ttl, now: time.Now}
}

// Issue mints a token valid for the signer's TTL.
func (s *TokenSigner) Issue() (string, error) {
	if len(s.secret) == 0 {
		return "", ErrMissingSecret
	}

	payload := make([]byte, payloadBytes)
	binary.BigEndian.PutUint64(payload[:8], uint64(s.now().Add(s.ttl).Unix()))
	if _, err := rand.Read(payload[8:]); err != nil {
		return "", err
	}

	sig := s.sign(payload)
	return tokenPrefix +
		base64.RawURLEncoding.EncodeToString(payload) + "." +
		base64.RawURLEncoding.EncodeToString(sig[:sigLen]), nil
}

// Looks reports whether credential has the token shape, as opposed to a
// raw password.
func Looks(credential string) bool {
	return strings.HasPrefix(credential, tokenPrefix)
}

// Validate checks signature integrity and expiry of the token.
func (s *TokenSigner) Validate(token string) error {
	if len(s.secret) == 0 {
		return ErrMissingSecret
	}

	body, ok := strings.CutPrefix(token, tokenPrefix)
	if !ok {
		return ErrInvalidToken
	}
	payloadEnc, sigEnc, ok := strings.Cut(body, ".")
	if !ok {
		return ErrInvalidToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(payloadEnc)
	if err != nil || len(payload) != payloadBytes {
		return ErrInvalidToken
	}
	sigProvided, err := base64.RawURLEncoding.DecodeString(sigEnc)
	if err != nil || len(sigProvided) != sigLen {
		return ErrInvalidToken
	}

	expected := s.sign(payload)
	if !hmac.Equal(sigProvided, expected[:sigLen]) {
		return ErrInvalidToken
	}

	expires := int64(binary.BigEndian.Uint64(payload[:8]))
	if s.now().Unix() > expires {
		return ErrInvalidToken
	}
	return nil
}

func (s *TokenSigner) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte("admin|"))
	mac.Write(payload)
	return mac.Sum(nil)
}
