// Package signature recovers the Ethereum address that produced a
// personal_sign (EIP-191) signature.
package signature

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

// SignatureLength is the size of an [R || S || V] signature.
const SignatureLength = 65

var ErrInvalidSignature = errors.New("invalid signature")

// Recoverer recovers the signing address of a message.
type Recoverer interface {
	RecoverSigner(message string, signature []byte) (string, error)
}

// EthereumRecoverer implements Recoverer for wallet personal_sign signatures.
type EthereumRecoverer struct{}

// NewEthereumRecoverer creates a new EthereumRecoverer
func NewEthereumRecoverer() *EthereumRecoverer {
	return &EthereumRecoverer{}
}

// RecoverSigner returns the lower-case 0x address whose key signed message.
func (r *EthereumRecoverer) RecoverSigner(message string, signature []byte) (string, error) {
	if len(signature) != SignatureLength {
		return "", fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, SignatureLength, len(signature))
	}

	v := signature[64]
	if v < 27 {
		v += 27
	}
	if v != 27 && v != 28 {
		return "", fmt.Errorf("%w: unsupported recovery id %d", ErrInvalidSignature, signature[64])
	}

	// decred expects the recovery byte first: [V || R || S]
	compact := make([]byte, SignatureLength)
	compact[0] = v
	copy(compact[1:], signature[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, TextHash(message))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	return AddressFromPublicKey(pub), nil
}

// TextHash is keccak256("\x19Ethereum Signed Message:\n" + len(message) + message).
func TextHash(message string) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte("\x19Ethereum Signed Message:\n" + strconv.Itoa(len(message)) + message))
	return h.Sum(nil)
}

// AddressFromPublicKey derives the lower-case 0x address of pub.
func AddressFromPublicKey(pub *secp256k1.PublicKey) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(pub.SerializeUncompressed()[1:])
	return "0x" + hex.EncodeToString(h.Sum(nil)[12:])
}

// ParseSignature decodes a hex signature with or without the 0x prefix.
func ParseSignature(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	sig, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(sig) != SignatureLength {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, SignatureLength, len(sig))
	}
	return sig, nil
}

// SignMessage produces a personal_sign signature in [R || S || V] form with V in {27, 28}.
func SignMessage(key *secp256k1.PrivateKey, message string) []byte {
	compact := ecdsa.SignCompact(key, TextHash(message), false)

	sig := make([]byte, SignatureLength)
	copy(sig, compact[1:])
	sig[64] = compact[0]
	return sig
}
