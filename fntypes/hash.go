package fntypes

import (
	"encoding/hex"
	"fmt"
)

// HashSize of array used to store hashes.
const HashSize = 32

// ZeroHash is a predefined hash containing all zeroes.
var ZeroHash Hash

// Hash is a 32 byte digest. It typically represents a payment hash, the
// primary key of an invoice.
type Hash [HashSize]byte

// String returns the Hash as a hexadecimal string.
func (hash Hash) String() string {
	return hex.EncodeToString(hash[:])
}

// MarshalText encodes the hash as a 0x prefixed hex string.
func (hash Hash) MarshalText() ([]byte, error) {
	return []byte(hexPrefix + hash.String()), nil
}

// UnmarshalText decodes a hex string with an optional 0x prefix.
func (hash *Hash) UnmarshalText(text []byte) error {
	h, err := MakeHashFromStr(string(text))
	if err != nil {
		return err
	}
	*hash = h

	return nil
}

// MakeHash returns a new Hash from a byte slice. An error is returned if
// the number of bytes passed in is not HashSize.
func MakeHash(newHash []byte) (Hash, error) {
	nhlen := len(newHash)
	if nhlen != HashSize {
		return Hash{}, fmt.Errorf("invalid hash length of %v, want %v",
			nhlen, HashSize)
	}

	var hash Hash
	copy(hash[:], newHash)

	return hash, nil
}

// MakeHashFromStr creates a Hash from a hex hash string. The string may carry
// a 0x prefix. A *HexLengthError is returned if the string does not decode to
// exactly HashSize bytes.
func MakeHashFromStr(newHash string) (Hash, error) {
	b, err := DecodeFixedHex(newHash, HashSize)
	if err != nil {
		return Hash{}, err
	}

	return MakeHash(b)
}
