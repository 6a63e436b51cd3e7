package verify

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// CodeLength is the number of characters in a verification code.
const CodeLength = 15

const codeAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewCode returns a random lowercase alphanumeric verification code.
func NewCode() (string, error) {
	limit := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, CodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("verification code: %w", err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
