package session

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// tokenAlphabet is the character set for security tokens.
const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateToken produces a random alphanumeric token of the given length
// using a cryptographically secure source. Each character is drawn uniformly
// from the 62-character alphanumeric alphabet.
func GenerateToken(length int) (string, error) {
	if length < MinTokenLength {
		return "", fmt.Errorf("token length %d below minimum %d", length, MinTokenLength)
	}

	alphabetSize := big.NewInt(int64(len(tokenAlphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("read random source: %w", err)
		}
		buf[i] = tokenAlphabet[n.Int64()]
	}
	return string(buf), nil
}
