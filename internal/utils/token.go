package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

const (
	// BearerScheme prefixes every token handed to clients.
	BearerScheme = "Bearer"

	tokenSecretLength = 40
	tokenAlphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

var ErrMalformedToken = errors.New("malformed token")

// GenerateTokenSecret returns a random alphanumeric secret read from crypto/rand.
func GenerateTokenSecret() (string, error) {
	alphabetLen := big.NewInt(int64(len(tokenAlphabet)))
	buf := make([]byte, tokenSecretLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		buf[i] = tokenAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// HashTokenSecret returns the hex sha256 digest stored in place of the secret.
func HashTokenSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// TokenHashMatches compares a presented secret against a stored digest in constant time.
func TokenHashMatches(secret, storedHash string) bool {
	presented := HashTokenSecret(secret)
	return subtle.ConstantTimeCompare([]byte(presented), []byte(storedHash)) == 1
}

// FormatPlainTextToken joins a token id and its secret as "<id>|<secret>".
func FormatPlainTextToken(id int64, secret string) string {
	return strconv.FormatInt(id, 10) + "|" + secret
}

// ParsePlainTextToken splits "<id>|<secret>". A token without the id part
// yields id 0 and the whole value as the secret.
func ParsePlainTextToken(token string) (int64, string, error) {
	if token == "" {
		return 0, "", ErrMalformedToken
	}
	idPart, secret, found := strings.Cut(token, "|")
	if !found {
		return 0, token, nil
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 || secret == "" {
		return 0, "", ErrMalformedToken
	}
	return id, secret, nil
}

// WithBearerScheme prefixes a plain text token with the scheme label.
func WithBearerScheme(token string) string {
	return BearerScheme + " " + token
}

// StripBearerScheme extracts the token from an Authorization header value.
func StripBearerScheme(header string) (string, error) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], BearerScheme) {
		return "", ErrMalformedToken
	}
	return parts[1], nil
}
