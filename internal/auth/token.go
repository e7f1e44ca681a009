package auth

import (
	"crypto/rand"
	"fmt"
)

// TokenLength is the length of a member session token.
//
// Each character is drawn uniformly from 62 symbols, so a token carries
// 60*log2(62) ≈ 357 bits of entropy.
const TokenLength = 60

// CodeLength is the length of a generated login code.
const CodeLength = 8

const (
	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	codeAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NewToken returns a fresh opaque session token.
func NewToken() (string, error) {
	return randomString(tokenAlphabet, TokenLength)
}

// NewCode returns a fresh login code for a new choir member.
func NewCode() (string, error) {
	return randomString(codeAlphabet, CodeLength)
}

// randomString draws n symbols from alphabet using crypto/rand.
// Bytes at or above the largest multiple of len(alphabet) are rejected so
// that every symbol is equally likely.
func randomString(alphabet string, n int) (string, error) {
	limit := 256 - 256%len(alphabet)
	out := make([]byte, 0, n)
	buf := make([]byte, n*2)

	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("auth: reading random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == n {
				break
			}
		}
	}

	return string(out), nil
}
