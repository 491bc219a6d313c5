package fpay32

import (
	"bytes"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/fiberlabs/fnd/fntypes"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Encode returns the canonical text form of the invoice. The result is
// deterministic: encoding the same invoice always yields the same string and
// Decode of the string yields an invoice Equal to this one.
func (i *Invoice) Encode() (string, error) {
	var bufferBase32 bytes.Buffer
	if err := i.writeData(&bufferBase32, true); err != nil {
		return "", err
	}

	// The signature goes last, converted from its 65 byte compact form
	// into R || S || recovery ID.
	i.signature.WhenSome(func(sig Signature) {
		raw := make([]byte, 0, len(sig))
		raw = append(raw, sig[1:]...)
		raw = append(raw, sig[0]-27-4)

		// Converting 8-bit bytes to 5-bit groups never fails.
		signBase32, _ := bech32.ConvertBits(raw, 8, 5, true)
		bufferBase32.Write(signBase32)
	})

	b32, err := bech32.Encode(i.hrp(), bufferBase32.Bytes())
	if err != nil {
		return "", newError(CodeFieldTooLarge, "bech32: %w", err)
	}

	return b32, nil
}

// hrp returns the human readable part: the currency prefix followed by the
// decimal amount, if any.
func (i *Invoice) hrp() string {
	hrp := i.currency.Prefix()
	i.amount.WhenSome(func(amt fntypes.U128) {
		hrp += amt.String()
	})

	return hrp
}

// signingMessage returns the bytes the payee signs: the hrp followed by the
// data part in base256. The preimage is left out so that an invoice can be
// shared without it while keeping the signature valid.
func (i *Invoice) signingMessage() ([]byte, error) {
	var bufferBase32 bytes.Buffer
	if err := i.writeData(&bufferBase32, false); err != nil {
		return nil, err
	}

	dataBytes, err := bech32.ConvertBits(bufferBase32.Bytes(), 5, 8, true)
	if err != nil {
		return nil, err
	}

	return append([]byte(i.hrp()), dataBytes...), nil
}

// writeData writes everything but the signature to the base32 buffer.
func (i *Invoice) writeData(bufferBase32 *bytes.Buffer,
	withPreimage bool) error {

	// The timestamp will be encoded using 35 bits, in base32.
	timestamp := i.timestamp.Unix()
	if timestamp < 0 || timestamp > maxTimestamp {
		return newError(CodeFieldTooLarge, "timestamp out of range: %d",
			timestamp)
	}
	timestampBase32 := uint64ToBase32(uint64(timestamp))

	// Add zero groups in front so the timestamp takes exactly
	// timestampBase32Len groups.
	zeroes := make([]byte, timestampBase32Len-len(timestampBase32))
	bufferBase32.Write(zeroes)
	bufferBase32.Write(timestampBase32)

	var flags byte
	if i.payeePubKey.IsSome() {
		flags |= flagSigned
	}
	bufferBase32.WriteByte(flags)

	return i.writeTaggedFields(bufferBase32, withPreimage)
}

// writeTaggedFields writes the present fields of the invoice to the base32
// buffer in their canonical order.
func (i *Invoice) writeTaggedFields(bufferBase32 *bytes.Buffer,
	withPreimage bool) error {

	err := writeBytes32(bufferBase32, fieldTypeP, i.paymentHash)
	if err != nil {
		return err
	}

	if withPreimage {
		err := fn.MapOptionZ(
			i.paymentPreimage, func(p fntypes.Preimage) error {
				return writeBytes32(bufferBase32, fieldTypeR, p)
			},
		)
		if err != nil {
			return err
		}
	}

	if i.hashAlgorithm != fntypes.DefaultHashAlgorithm {
		err := writeTaggedField(
			bufferBase32, fieldTypeA, []byte{byte(i.hashAlgorithm)},
		)
		if err != nil {
			return err
		}
	}

	err = fn.MapOptionZ(i.description, func(d string) error {
		return writeBytesField(bufferBase32, fieldTypeD, []byte(d))
	})
	if err != nil {
		return err
	}

	err = fn.MapOptionZ(i.expiry, func(d time.Duration) error {
		return writeUint64Field(
			bufferBase32, fieldTypeX, uint64(d/time.Second),
		)
	})
	if err != nil {
		return err
	}

	err = fn.MapOptionZ(i.fallbackAddr, func(addr string) error {
		return writeBytesField(bufferBase32, fieldTypeF, []byte(addr))
	})
	if err != nil {
		return err
	}

	err = fn.MapOptionZ(i.finalCltv, func(delta uint64) error {
		return writeUint64Field(bufferBase32, fieldTypeC, delta)
	})
	if err != nil {
		return err
	}

	err = fn.MapOptionZ(i.finalHtlcTimeout, func(timeout uint64) error {
		return writeUint64Field(bufferBase32, fieldTypeT, timeout)
	})
	if err != nil {
		return err
	}

	err = fn.MapOptionZ(i.udtTypeScript, func(s fntypes.Script) error {
		raw := make([]byte, 0, scriptHeaderLen+len(s.Args))
		raw = append(raw, s.CodeHash[:]...)
		raw = append(raw, byte(s.HashType))
		raw = append(raw, s.Args...)

		return writeBytesField(bufferBase32, fieldTypeU, raw)
	})
	if err != nil {
		return err
	}

	return fn.MapOptionZ(i.payeePubKey, func(key *btcec.PublicKey) error {
		// Convert 33 byte pubkey to 53 5-bit groups.
		return writeBytesField(
			bufferBase32, fieldTypeN, key.SerializeCompressed(),
		)
	})
}

// writeBytes32 encodes a 32-byte array as base32 and writes it to bufferBase32
// under the passed fieldType.
func writeBytes32(bufferBase32 *bytes.Buffer, fieldType byte,
	b [32]byte) error {

	return writeBytesField(bufferBase32, fieldType, b[:])
}

// writeBytesField converts raw bytes to base32 and writes them as a tagged
// field.
func writeBytesField(bufferBase32 *bytes.Buffer, fieldType byte,
	b []byte) error {

	base32, err := bech32.ConvertBits(b, 8, 5, true)
	if err != nil {
		return err
	}

	return writeTaggedField(bufferBase32, fieldType, base32)
}

// writeUint64Field writes num using as few groups as possible.
func writeUint64Field(bufferBase32 *bytes.Buffer, fieldType byte,
	num uint64) error {

	return writeTaggedField(bufferBase32, fieldType, uint64ToBase32(num))
}

// writeTaggedField takes the type of a tagged data field, and the data of
// the tagged field (encoded in base32), and writes the type, length and data
// to the buffer.
func writeTaggedField(bufferBase32 *bytes.Buffer, dataType byte,
	data []byte) error {

	// Length must be exactly 10 bits, so add leading zero groups if
	// needed.
	lenBase32 := uint64ToBase32(uint64(len(data)))
	for len(lenBase32) < 2 {
		lenBase32 = append([]byte{0}, lenBase32...)
	}

	if len(lenBase32) != 2 {
		return newError(CodeFieldTooLarge, "data length too big to "+
			"fit within 10 bits: %d", len(data))
	}

	bufferBase32.WriteByte(dataType)
	bufferBase32.Write(lenBase32)
	bufferBase32.Write(data)

	return nil
}

// uint64ToBase32 converts a uint64 to a base32 encoded integer encoded using
// as few 5-bit groups as possible.
func uint64ToBase32(num uint64) []byte {
	// Return at least one group.
	if num == 0 {
		return []byte{0}
	}

	// To fit an uint64, we need at most is ceil(64 / 5) = 13 groups.
	arr := make([]byte, 13)
	i := 13
	for num > 0 {
		i--
		arr[i] = byte(num & uint64(31)) // 0b11111 in binary
		num >>= 5
	}

	// We only return non-zero leading groups.
	return arr[i:]
}
