package fntypes

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

var (
	// ErrU128Overflow is returned when a number does not fit in 128 bits.
	ErrU128Overflow = errors.New("value overflows 128 bits")

	// ErrInvalidNumber is returned when a numeric string is malformed.
	ErrInvalidNumber = errors.New("invalid number")
)

// U128 is an unsigned 128-bit integer. Invoice amounts use it so that tokens
// with large supplies can be expressed without loss.
type U128 struct {
	hi, lo uint64
}

// NewU128 returns a U128 holding v.
func NewU128(v uint64) U128 {
	return U128{lo: v}
}

// U128FromParts assembles a U128 from its high and low 64-bit halves.
func U128FromParts(hi, lo uint64) U128 {
	return U128{hi: hi, lo: lo}
}

// Hi returns the high 64 bits.
func (u U128) Hi() uint64 { return u.hi }

// Lo returns the low 64 bits.
func (u U128) Lo() uint64 { return u.lo }

// IsZero reports whether u is zero.
func (u U128) IsZero() bool {
	return u.hi == 0 && u.lo == 0
}

// Uint64 returns u as a uint64 and whether the conversion was lossless.
func (u U128) Uint64() (uint64, bool) {
	return u.lo, u.hi == 0
}

// Cmp compares u and v and returns -1, 0 or +1.
func (u U128) Cmp(v U128) int {
	switch {
	case u.hi < v.hi:
		return -1
	case u.hi > v.hi:
		return 1
	case u.lo < v.lo:
		return -1
	case u.lo > v.lo:
		return 1
	default:
		return 0
	}
}

// mulAdd returns u*m + a, reporting overflow.
func (u U128) mulAdd(m, a uint64) (U128, bool) {
	carry, lo := bits.Mul64(u.lo, m)
	hiOver, hi := bits.Mul64(u.hi, m)
	if hiOver != 0 {
		return U128{}, false
	}
	hi, c := bits.Add64(hi, carry, 0)
	if c != 0 {
		return U128{}, false
	}
	lo, c = bits.Add64(lo, a, 0)
	hi, c = bits.Add64(hi, 0, c)
	if c != 0 {
		return U128{}, false
	}

	return U128{hi: hi, lo: lo}, true
}

// quoRem returns u/d and u%d for a 64-bit divisor.
func (u U128) quoRem(d uint64) (U128, uint64) {
	qHi, r := u.hi/d, u.hi%d
	qLo, r := bits.Div64(r, u.lo, d)

	return U128{hi: qHi, lo: qLo}, r
}

// String returns the decimal representation of u.
func (u U128) String() string {
	if u.IsZero() {
		return "0"
	}

	// 2^128 has 39 decimal digits.
	var buf [39]byte
	i := len(buf)
	for !u.IsZero() {
		var r uint64
		u, r = u.quoRem(10)
		i--
		buf[i] = byte('0' + r)
	}

	return string(buf[i:])
}

// Hex returns the 0x prefixed hex representation of u without leading zeros.
func (u U128) Hex() string {
	if u.hi == 0 {
		return hexPrefix + strconv.FormatUint(u.lo, 16)
	}

	return fmt.Sprintf("%s%x%016x", hexPrefix, u.hi, u.lo)
}

// ParseU128 parses a decimal string. Leading zeros are accepted.
func ParseU128(s string) (U128, error) {
	if s == "" {
		return U128{}, fmt.Errorf("%w: empty string", ErrInvalidNumber)
	}

	var (
		u  U128
		ok bool
	)
	for _, r := range s {
		if r < '0' || r > '9' {
			return U128{}, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
		}
		u, ok = u.mulAdd(10, uint64(r-'0'))
		if !ok {
			return U128{}, fmt.Errorf("%w: %s", ErrU128Overflow, s)
		}
	}

	return u, nil
}

// ParseU128Hex parses a hex string with an optional 0x prefix.
func ParseU128Hex(s string) (U128, error) {
	digits := strings.TrimLeft(TrimHexPrefix(s), "0")
	if TrimHexPrefix(s) == "" || !isHex(digits) {
		return U128{}, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	if len(digits) > 32 {
		return U128{}, fmt.Errorf("%w: %s", ErrU128Overflow, s)
	}
	if digits == "" {
		return U128{}, nil
	}

	var (
		u   U128
		err error
	)
	split := len(digits) - 16
	if split > 0 {
		u.hi, err = strconv.ParseUint(digits[:split], 16, 64)
		if err != nil {
			return U128{}, err
		}
		digits = digits[split:]
	}
	u.lo, err = strconv.ParseUint(digits, 16, 64)
	if err != nil {
		return U128{}, err
	}

	return u, nil
}

// MarshalJSON encodes u as a 0x prefixed hex string.
func (u U128) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.Hex())
}

// UnmarshalJSON accepts a 0x prefixed hex string or a decimal string.
func (u *U128) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: expected string", ErrInvalidNumber)
	}

	var (
		v   U128
		err error
	)
	if strings.HasPrefix(s, hexPrefix) {
		v, err = ParseU128Hex(s)
	} else {
		v, err = ParseU128(s)
	}
	if err != nil {
		return err
	}
	*u = v

	return nil
}

// HexUint64 is a uint64 that uses a 0x prefixed hex string in JSON.
type HexUint64 uint64

// MarshalJSON implements json.Marshaler.
func (h HexUint64) MarshalJSON() ([]byte, error) {
	return json.Marshal(hexPrefix + strconv.FormatUint(uint64(h), 16))
}

// UnmarshalJSON implements json.Unmarshaler.
func (h *HexUint64) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: expected string", ErrInvalidNumber)
	}
	if !strings.HasPrefix(s, hexPrefix) || len(s) == len(hexPrefix) {
		return fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}

	v, err := strconv.ParseUint(s[len(hexPrefix):], 16, 64)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidNumber, err)
	}
	*h = HexUint64(v)

	return nil
}
