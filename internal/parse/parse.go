// Package parse holds the primitive validators for the domain types the CLI
// accepts on the command line: hex strings, 160-bit addresses, 256-bit
// unsigned integers, 256-bit keys, block heights, and private keys. Every
// function is a pure string-in, value-or-error-out transform so the grammar
// layer and the processors can share them.
package parse

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Height tags accepted verbatim by ParseHeight.
const (
	HeightLatest   = "latest"
	HeightEarliest = "earliest"
)

// IsHex checks for a 0x/0X marker. It is a prefix check only: the remaining
// characters are not verified here, a malformed body is caught later by the
// fixed-width decoders.
func IsHex(s string) error {
	if len(s) < 2 {
		return fmt.Errorf("must be a hexadecimal string")
	}
	if s[:2] != "0x" && s[:2] != "0X" {
		return fmt.Errorf("must be a hex string")
	}
	return nil
}

// Remove0x strips leading hex markers until none remains. Idempotent for
// every input, including pathological ones like "0x0x10".
func Remove0x(s string) string {
	for len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	return s
}

// ParseU64 resolves a hexadecimal (0x-prefixed) or decimal string to uint64.
func ParseU64(s string) (uint64, error) {
	if IsHex(s) == nil {
		n, err := strconv.ParseUint(Remove0x(s), 16, 64)
		if err != nil {
			return 0, fmt.Errorf("parse hex number: %v", err)
		}
		return n, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse decimal number: %v", err)
	}
	return n, nil
}

// ParseU256 resolves a hexadecimal (0x-prefixed) or decimal string to a
// 256-bit unsigned integer.
func ParseU256(s string) (*uint256.Int, error) {
	var b *big.Int
	var ok bool
	if IsHex(s) == nil {
		b, ok = new(big.Int).SetString(Remove0x(s), 16)
	} else {
		b, ok = new(big.Int).SetString(s, 10)
	}
	if !ok || b.Sign() < 0 {
		return nil, fmt.Errorf("value can't parse into u256")
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("value can't parse into u256")
	}
	return v, nil
}

// ParseHeight accepts the literal tags "latest" and "earliest" or any value
// ParseU64 accepts, and returns the token unchanged for the node to consume.
func ParseHeight(s string) (string, error) {
	switch s {
	case HeightLatest, HeightEarliest:
		return s, nil
	}
	if _, err := ParseU64(s); err != nil {
		return "", err
	}
	return s, nil
}

// ParseAddress decodes a 0x-prefixed 160-bit account address.
func ParseAddress(s string) (common.Address, error) {
	if err := IsHex(s); err != nil {
		return common.Address{}, err
	}
	b, err := hex.DecodeString(Remove0x(s))
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid address: %v", err)
	}
	if len(b) != common.AddressLength {
		return common.Address{}, fmt.Errorf("invalid address: expected %d bytes, got %d", common.AddressLength, len(b))
	}
	return common.BytesToAddress(b), nil
}

// ParseH256 decodes a 0x-prefixed 256-bit key.
func ParseH256(s string) (common.Hash, error) {
	if err := IsHex(s); err != nil {
		return common.Hash{}, err
	}
	b, err := hex.DecodeString(Remove0x(s))
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid H256: %v", err)
	}
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid H256: expected %d bytes, got %d", common.HashLength, len(b))
	}
	return common.BytesToHash(b), nil
}

// Scheme selects how raw private key bytes are interpreted.
type Scheme string

const (
	SchemeSecp256k1 Scheme = "secp256k1"
	SchemeEd25519   Scheme = "ed25519"
)

func ParseScheme(s string) (Scheme, error) {
	switch Scheme(strings.ToLower(strings.TrimSpace(s))) {
	case SchemeSecp256k1:
		return SchemeSecp256k1, nil
	case SchemeEd25519:
		return SchemeEd25519, nil
	}
	return "", fmt.Errorf("unsupported encryption scheme %q (expected %s|%s)", s, SchemeSecp256k1, SchemeEd25519)
}

// ValidatePrivKey is the scheme-agnostic grammar-level check: hex marker
// plus a plausible key width. The scheme-aware decode happens at resolution
// time via ParsePrivateKey.
func ValidatePrivKey(s string) error {
	if err := IsHex(s); err != nil {
		return err
	}
	b, err := hex.DecodeString(Remove0x(s))
	if err != nil {
		return fmt.Errorf("invalid private key: %v", err)
	}
	if len(b) != 32 && len(b) != 64 {
		return fmt.Errorf("invalid private key: expected 32 or 64 bytes, got %d", len(b))
	}
	return nil
}

// PrivateKey is signing key material decoded under a specific scheme.
type PrivateKey struct {
	scheme Scheme
	ecdsa  *ecdsa.PrivateKey
	ed     ed25519.PrivateKey
}

// ParsePrivateKey decodes the raw hex under the given scheme. The same bytes
// decode differently per scheme, so the scheme must be resolved first.
func ParsePrivateKey(raw string, scheme Scheme) (*PrivateKey, error) {
	if err := IsHex(raw); err != nil {
		return nil, err
	}
	switch scheme {
	case SchemeSecp256k1:
		key, err := crypto.HexToECDSA(Remove0x(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid secp256k1 private key: %v", err)
		}
		return &PrivateKey{scheme: scheme, ecdsa: key}, nil
	case SchemeEd25519:
		b, err := hex.DecodeString(Remove0x(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid ed25519 private key: %v", err)
		}
		switch len(b) {
		case ed25519.SeedSize:
			return &PrivateKey{scheme: scheme, ed: ed25519.NewKeyFromSeed(b)}, nil
		case ed25519.PrivateKeySize:
			return &PrivateKey{scheme: scheme, ed: ed25519.PrivateKey(b)}, nil
		}
		return nil, fmt.Errorf("invalid ed25519 private key: expected %d or %d bytes, got %d", ed25519.SeedSize, ed25519.PrivateKeySize, len(b))
	}
	return nil, fmt.Errorf("unsupported encryption scheme %q", scheme)
}

func (k *PrivateKey) Scheme() Scheme { return k.scheme }

// Sign signs a 32-byte digest under the key's scheme.
func (k *PrivateKey) Sign(digest []byte) ([]byte, error) {
	switch k.scheme {
	case SchemeSecp256k1:
		return crypto.Sign(digest, k.ecdsa)
	case SchemeEd25519:
		return ed25519.Sign(k.ed, digest), nil
	}
	return nil, fmt.Errorf("unsupported encryption scheme %q", k.scheme)
}

// Address derives the account address of the key holder.
func (k *PrivateKey) Address() common.Address {
	switch k.scheme {
	case SchemeSecp256k1:
		return crypto.PubkeyToAddress(k.ecdsa.PublicKey)
	case SchemeEd25519:
		pub := k.ed.Public().(ed25519.PublicKey)
		return common.BytesToAddress(crypto.Keccak256(pub)[12:])
	}
	return common.Address{}
}
