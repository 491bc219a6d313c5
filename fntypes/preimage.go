package fntypes

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// PreimageSize of array used to store preimages.
const PreimageSize = 32

// Preimage is the secret whose hash locks a payment. Revealing it settles the
// payment.
type Preimage [PreimageSize]byte

// String returns the Preimage as a hexadecimal string.
func (p Preimage) String() string {
	return hex.EncodeToString(p[:])
}

// MarshalText encodes the preimage as a 0x prefixed hex string.
func (p Preimage) MarshalText() ([]byte, error) {
	return []byte(hexPrefix + p.String()), nil
}

// UnmarshalText decodes a hex string with an optional 0x prefix.
func (p *Preimage) UnmarshalText(text []byte) error {
	preimage, err := MakePreimageFromStr(string(text))
	if err != nil {
		return err
	}
	*p = preimage

	return nil
}

// RandomPreimage returns a preimage with random bytes.
func RandomPreimage() (*Preimage, error) {
	var preimage Preimage
	if _, err := rand.Read(preimage[:]); err != nil {
		return nil, err
	}

	return &preimage, nil
}

// MakePreimage returns a new Preimage from a bytes slice. An error is returned
// if the number of bytes passed in is not PreimageSize.
func MakePreimage(newPreimage []byte) (Preimage, error) {
	nhlen := len(newPreimage)
	if nhlen != PreimageSize {
		return Preimage{}, fmt.Errorf("invalid preimage length of %v, "+
			"want %v", nhlen, PreimageSize)
	}

	var preimage Preimage
	copy(preimage[:], newPreimage)

	return preimage, nil
}

// MakePreimageFromStr creates a Preimage from a hex preimage string, with or
// without a 0x prefix.
func MakePreimageFromStr(newPreimage string) (Preimage, error) {
	b, err := DecodeFixedHex(newPreimage, PreimageSize)
	if err != nil {
		return Preimage{}, err
	}

	return MakePreimage(b)
}

// Hash returns the digest of the preimage under the given algorithm.
func (p *Preimage) Hash(alg HashAlgorithm) Hash {
	return alg.Sum(p[:])
}

// Matches returns whether this preimage is the preimage of the given hash
// under the given algorithm.
func (p *Preimage) Matches(h Hash, alg HashAlgorithm) bool {
	return h == p.Hash(alg)
}
