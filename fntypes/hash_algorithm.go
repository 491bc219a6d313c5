package fntypes

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// HashAlgorithm selects the function that maps a payment preimage to its
// payment hash.
type HashAlgorithm uint8

const (
	// Blake2b256 is the unkeyed 32 byte Blake2b digest. This is the
	// default algorithm of the network.
	Blake2b256 HashAlgorithm = 0

	// Sha256 is the SHA-256 digest, used for interop with hash locks that
	// were created on other networks.
	Sha256 HashAlgorithm = 1
)

// DefaultHashAlgorithm is used whenever an invoice does not name one.
const DefaultHashAlgorithm = Blake2b256

// ErrUnknownHashAlgorithm is returned when an algorithm name or tag is not
// recognized.
var ErrUnknownHashAlgorithm = errors.New("unknown hash algorithm")

// Sum hashes data with the algorithm. Unknown algorithms fall back to the
// default so that Sum never fails; callers validate with IsValid first.
func (a HashAlgorithm) Sum(data []byte) Hash {
	switch a {
	case Sha256:
		return Hash(sha256.Sum256(data))

	default:
		return Hash(blake2b.Sum256(data))
	}
}

// IsValid reports whether a names a supported algorithm.
func (a HashAlgorithm) IsValid() bool {
	return a == Blake2b256 || a == Sha256
}

// String returns the canonical name of the algorithm.
func (a HashAlgorithm) String() string {
	switch a {
	case Blake2b256:
		return "blake2b"
	case Sha256:
		return "sha256"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(a))
	}
}

// ParseHashAlgorithm parses a canonical algorithm name.
func ParseHashAlgorithm(s string) (HashAlgorithm, error) {
	switch strings.ToLower(s) {
	case "blake2b", "blake2b256", "ckb_hash":
		return Blake2b256, nil
	case "sha256":
		return Sha256, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownHashAlgorithm, s)
	}
}

// HashAlgorithmFromTag maps the numeric tag used in the invoice text format
// to an algorithm.
func HashAlgorithmFromTag(tag uint8) (HashAlgorithm, error) {
	a := HashAlgorithm(tag)
	if !a.IsValid() {
		return 0, fmt.Errorf("%w: tag %d", ErrUnknownHashAlgorithm, tag)
	}

	return a, nil
}

// MarshalText implements encoding.TextMarshaler.
func (a HashAlgorithm) MarshalText() ([]byte, error) {
	if !a.IsValid() {
		return nil, fmt.Errorf("%w: tag %d", ErrUnknownHashAlgorithm,
			uint8(a))
	}

	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *HashAlgorithm) UnmarshalText(text []byte) error {
	alg, err := ParseHashAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = alg

	return nil
}
