package service

import (
	"math/rand"
	"strconv"
)

// DefaultNonceDigits is the width of a generated challenge nonce.
const DefaultNonceDigits = 6

const challengePrefix = "Sign this message to authenticate: "

// NonceGenerator returns a fresh challenge nonce of decimal digits.
type NonceGenerator func() string

// NewNonceGenerator draws nonces uniformly from [10^(digits-1), 10^digits).
func NewNonceGenerator(digits int) NonceGenerator {
	if digits <= 0 || digits > 18 {
		digits = DefaultNonceDigits
	}

	low := int64(1)
	for i := 1; i < digits; i++ {
		low *= 10
	}
	high := low * 10

	return func() string {
		return strconv.FormatInt(low+rand.Int63n(high-low), 10)
	}
}

// ChallengeMessage is the exact text a wallet signs to prove it holds nonce.
func ChallengeMessage(nonce string) string {
	return challengePrefix + nonce
}
