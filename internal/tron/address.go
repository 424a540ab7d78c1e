// Package tron models TRON addresses as typed values with a single
// canonicalization path between the two on-chain encodings: base58check
// ("T...") and 21-byte version-prefixed hex ("41...").
package tron

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"

	"github.com/chainops/tronledger/internal/domain"
)

// versionByte prefixes every mainnet and testnet TRON address payload.
const versionByte = 0x41

// payloadLen is the address body length without the version byte.
const payloadLen = 20

// Address is a canonicalized TRON address. The zero value is invalid;
// construct one via Canonicalize.
type Address struct {
	body [payloadLen]byte
}

// Canonicalize parses either supported encoding into an Address.
//
// Accepted forms:
//   - base58check with a sha256d checksum and 0x41 version byte ("TN...")
//   - hex with the 41 prefix, case-insensitive, optionally "0x"-prefixed
//
// Checksum failures and malformed input return errors wrapping
// domain.ErrChecksum and domain.ErrBadAddress respectively.
func Canonicalize(s string) (Address, error) {
	a := strings.TrimSpace(s)
	if a == "" {
		return Address{}, fmt.Errorf("tron: empty address: %w", domain.ErrBadAddress)
	}

	if isHex(a) {
		h := strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(a, "0x"), "0X"))
		raw, err := hex.DecodeString(h)
		if err != nil {
			return Address{}, fmt.Errorf("tron: decode hex address %q: %w", s, domain.ErrBadAddress)
		}
		if len(raw) != payloadLen+1 || raw[0] != versionByte {
			return Address{}, fmt.Errorf("tron: hex address %q is not 21 bytes with 41 prefix: %w", s, domain.ErrBadAddress)
		}
		var addr Address
		copy(addr.body[:], raw[1:])
		return addr, nil
	}

	body, version, err := base58.CheckDecode(a)
	if err != nil {
		if err == base58.ErrChecksum {
			return Address{}, fmt.Errorf("tron: address %q: %w", s, domain.ErrChecksum)
		}
		return Address{}, fmt.Errorf("tron: decode base58 address %q: %w", s, domain.ErrBadAddress)
	}
	if version != versionByte || len(body) != payloadLen {
		return Address{}, fmt.Errorf("tron: address %q has version %#x and %d-byte body: %w",
			s, version, len(body), domain.ErrBadAddress)
	}
	var addr Address
	copy(addr.body[:], body)
	return addr, nil
}

// isHex reports whether s looks like a hex-encoded address rather than
// base58. Base58 strings always start with 'T' for TRON, but a bare hex
// string can also be all base58-alphabet characters, so the 41/0x prefix
// check comes first.
func isHex(s string) bool {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return true
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// Hex returns the canonical key form: lowercased hex with the 41 prefix,
// 42 characters total.
func (a Address) Hex() string {
	raw := make([]byte, 0, payloadLen+1)
	raw = append(raw, versionByte)
	raw = append(raw, a.body[:]...)
	return hex.EncodeToString(raw)
}

// Base58 returns the base58check encoding ("T...").
func (a Address) Base58() string {
	return base58.CheckEncode(a.body[:], versionByte)
}

// String returns the canonical hex form.
func (a Address) String() string {
	return a.Hex()
}

// SameAddress reports whether two strings denote the same address across
// encodings. When either side fails to canonicalize it falls back to a
// case-insensitive string comparison.
func SameAddress(a, b string) bool {
	ca, errA := Canonicalize(a)
	cb, errB := Canonicalize(b)
	if errA == nil && errB == nil {
		return ca == cb
	}
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
