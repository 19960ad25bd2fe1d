package service

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

const (
	idLength      = 8
	idAlphabet    = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxSlugLength = 64
)

var slugPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// GenerateID returns an 8 character id drawn uniformly from [A-Za-z0-9].
// Collisions are not checked.
func GenerateID() (string, error) {
	buf := make([]byte, idLength)
	alphabetLen := big.NewInt(int64(len(idAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		buf[i] = idAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// ValidateSlug checks a caller-supplied custom slug.
func ValidateSlug(slug string) error {
	if len(slug) > maxSlugLength {
		return invalidf("Custom slug must be at most %d characters", maxSlugLength)
	}
	if !slugPattern.MatchString(slug) {
		return invalidf("Custom slug may only contain letters, digits, '-' and '_'")
	}
	return nil
}
