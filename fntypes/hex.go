package fntypes

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const hexPrefix = "0x"

// ErrInvalidHex is returned when a string contains characters outside the
// hexadecimal alphabet.
var ErrInvalidHex = errors.New("invalid hex string")

// HexLengthError is returned when a hex string is well-formed but does not
// decode to the expected number of bytes.
type HexLengthError struct {
	// Want is the expected number of decoded bytes.
	Want int

	// Got is the number of hex characters received.
	Got int
}

// Error implements the error interface.
func (e *HexLengthError) Error() string {
	return fmt.Sprintf("invalid hex length: got %d characters, want %d",
		e.Got, e.Want*2)
}

// TrimHexPrefix strips an optional 0x or 0X prefix.
func TrimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}

	return s
}

// DecodeHex decodes a hex string of any even length. A 0x prefix is
// accepted.
func DecodeHex(s string) ([]byte, error) {
	s = TrimHexPrefix(s)
	if !isHex(s) || len(s)%2 != 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHex, s)
	}

	return hex.DecodeString(s)
}

// DecodeFixedHex decodes a hex string that must hold exactly size bytes. Bad
// characters yield ErrInvalidHex, anything else of the wrong size yields a
// *HexLengthError.
func DecodeFixedHex(s string, size int) ([]byte, error) {
	s = TrimHexPrefix(s)
	if !isHex(s) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHex, s)
	}
	if len(s) != size*2 {
		return nil, &HexLengthError{Want: size, Got: len(s)}
	}

	return hex.DecodeString(s)
}

// EncodeHex returns the 0x prefixed lowercase hex encoding of b.
func EncodeHex(b []byte) string {
	return hexPrefix + hex.EncodeToString(b)
}

func isHex(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return true
		}
		return false
	}) == -1
}
