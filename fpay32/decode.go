package fpay32

import (
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/fiberlabs/fnd/fntypes"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Decode parses the text form of an invoice. The checksum, the structure and
// the cryptographic links are all verified: an embedded preimage must hash to
// the payment hash and a signature must recover to the payee key.
func Decode(invoice string) (*Invoice, error) {
	// Before bech32 decoding the invoice, make sure that it is not too
	// large. This is done as an anti-DoS measure since bech32 decoding is
	// expensive.
	if len(invoice) > maxInvoiceLength {
		return nil, decodeErrorf("invoice length %d exceeds maximum %d",
			len(invoice), maxInvoiceLength)
	}

	hrp, data, err := bech32.DecodeNoLimit(invoice)
	if err != nil {
		return nil, &Error{Code: CodeDecode, Err: err}
	}

	var decoded Invoice
	if err := decoded.parseHRP(hrp); err != nil {
		return nil, err
	}

	// The data part must at least hold the timestamp and the flags.
	if len(data) < timestampBase32Len+flagsBase32Len {
		return nil, decodeErrorf("data part too short: %d groups",
			len(data))
	}

	timestamp, err := base32ToUint64(data[:timestampBase32Len])
	if err != nil {
		return nil, err
	}
	decoded.timestamp = time.Unix(int64(timestamp), 0)

	flags := data[timestampBase32Len]
	if flags&^flagSigned != 0 {
		return nil, decodeErrorf("unknown flags: %d", flags)
	}
	signed := flags&flagSigned != 0

	fieldsData := data[timestampBase32Len+flagsBase32Len:]
	var sigBase32 []byte
	if signed {
		if len(fieldsData) < signatureBase32Len {
			return nil, decodeErrorf("missing signature")
		}
		split := len(fieldsData) - signatureBase32Len
		fieldsData, sigBase32 = fieldsData[:split], fieldsData[split:]
	}

	if err := decoded.parseTaggedFields(fieldsData); err != nil {
		return nil, err
	}

	// The preimage, if present, must be the preimage of the hash.
	err = fn.MapOptionZ(
		decoded.paymentPreimage, func(p fntypes.Preimage) error {
			hash, alg := decoded.paymentHash, decoded.hashAlgorithm
			if !p.Matches(hash, alg) {
				return &Error{Code: CodeHashMismatch}
			}

			return nil
		},
	)
	if err != nil {
		return nil, err
	}

	switch {
	case signed && decoded.payeePubKey.IsNone():
		return nil, newError(CodeInvalidSignature,
			"signed invoice without payee key")

	case !signed && decoded.payeePubKey.IsSome():
		return nil, newError(CodeInvalidSignature,
			"payee key without signature")

	case signed:
		if err := decoded.parseSignature(sigBase32); err != nil {
			return nil, err
		}
	}

	return &decoded, nil
}

// parseHRP extracts the currency and the optional amount.
func (i *Invoice) parseHRP(hrp string) error {
	var (
		found  bool
		suffix string
	)
	for c, prefix := range currencyPrefixes {
		if strings.HasPrefix(hrp, prefix) {
			i.currency, suffix, found = c, hrp[len(prefix):], true
			break
		}
	}
	if !found {
		return newError(CodeUnknownCurrency, "prefix %q", hrp)
	}

	if suffix == "" {
		return nil
	}

	// Amounts are written canonically, without leading zeros.
	if len(suffix) > 1 && suffix[0] == '0' {
		return decodeErrorf("amount %q has leading zeros", suffix)
	}
	amt, err := fntypes.ParseU128(suffix)
	if err != nil {
		return &Error{Code: CodeDecode, Err: err}
	}
	i.amount = fn.Some(amt)

	return nil
}

// parseSignature verifies the signature over the signing message and checks
// that it recovers to the payee key.
func (i *Invoice) parseSignature(sigBase32 []byte) error {
	raw, err := bech32.ConvertBits(sigBase32, 5, 8, false)
	if err != nil {
		return &Error{Code: CodeInvalidSignature, Err: err}
	}
	if len(raw) != len(Signature{}) {
		return newError(CodeInvalidSignature, "signature length %d",
			len(raw))
	}

	recoveryID := raw[64]
	if recoveryID > 3 {
		return newError(CodeInvalidSignature, "invalid recovery id %d",
			recoveryID)
	}

	var sig Signature
	sig[0] = recoveryID + 27 + 4
	copy(sig[1:], raw[:64])

	msg, err := i.signingMessage()
	if err != nil {
		return err
	}

	pubKey, _, err := ecdsa.RecoverCompact(sig[:], chainhash.HashB(msg))
	if err != nil {
		return &Error{Code: CodeInvalidSignature, Err: err}
	}

	payee := i.payeePubKey.UnsafeFromSome()
	if !pubKey.IsEqual(payee) {
		return newError(CodeInvalidSignature,
			"signature does not match payee key")
	}
	i.signature = fn.Some(sig)

	return nil
}

// parseTaggedFields walks the tagged fields, which must appear at most once
// each. The payment hash is mandatory.
func (i *Invoice) parseTaggedFields(fields []byte) error {
	i.hashAlgorithm = fntypes.DefaultHashAlgorithm

	var (
		seen    = make(map[byte]struct{})
		hasHash bool
	)
	for index := 0; index < len(fields); {
		if len(fields)-index < 3 {
			return decodeErrorf("truncated tagged field")
		}

		typ := fields[index]
		dataLength, err := base32ToUint64(fields[index+1 : index+3])
		if err != nil {
			return err
		}

		start := index + 3
		end := start + int(dataLength)
		if end > len(fields) {
			return decodeErrorf("field %d overflows data part", typ)
		}
		base32Data := fields[start:end]
		index = end

		if _, ok := seen[typ]; ok {
			return decodeErrorf("duplicate field %d", typ)
		}
		seen[typ] = struct{}{}

		switch typ {
		case fieldTypeP:
			i.paymentHash, err = parse32Bytes(base32Data)
			hasHash = err == nil

		case fieldTypeR:
			var p [32]byte
			p, err = parse32Bytes(base32Data)
			i.paymentPreimage = fn.Some(fntypes.Preimage(p))

		case fieldTypeA:
			err = i.parseHashAlgorithm(base32Data)

		case fieldTypeD:
			i.description, err = parseString(base32Data)

		case fieldTypeX:
			var secs uint64
			secs, err = base32ToUint64(base32Data)
			if err == nil && secs > MaxExpirySecs {
				err = decodeErrorf("expiry too large: %d", secs)
			}
			i.expiry = fn.Some(time.Duration(secs) * time.Second)

		case fieldTypeF:
			i.fallbackAddr, err = parseString(base32Data)

		case fieldTypeC:
			var delta uint64
			delta, err = base32ToUint64(base32Data)
			i.finalCltv = fn.Some(delta)

		case fieldTypeT:
			var timeout uint64
			timeout, err = base32ToUint64(base32Data)
			i.finalHtlcTimeout = fn.Some(timeout)

		case fieldTypeU:
			err = i.parseScript(base32Data)

		case fieldTypeN:
			err = i.parsePubKey(base32Data)

		default:
			return decodeErrorf("unknown field type %d", typ)
		}
		if err != nil {
			return err
		}
	}

	if !hasHash {
		return decodeErrorf("missing payment hash")
	}

	return nil
}

func (i *Invoice) parseHashAlgorithm(data []byte) error {
	if len(data) != 1 {
		return decodeErrorf("hash algorithm field length %d", len(data))
	}

	alg, err := fntypes.HashAlgorithmFromTag(data[0])
	if err != nil {
		return &Error{Code: CodeUnknownHashAlgorithm, Err: err}
	}

	// The default algorithm is implied by omission.
	if alg == fntypes.DefaultHashAlgorithm {
		return decodeErrorf("explicit default hash algorithm")
	}
	i.hashAlgorithm = alg

	return nil
}

func (i *Invoice) parseScript(data []byte) error {
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return &Error{Code: CodeDecode, Err: err}
	}
	if len(raw) < scriptHeaderLen {
		return decodeErrorf("udt script too short: %d bytes", len(raw))
	}

	var script fntypes.Script
	copy(script.CodeHash[:], raw[:fntypes.HashSize])
	script.HashType = fntypes.ScriptHashType(raw[fntypes.HashSize])
	if !script.HashType.IsValid() {
		return decodeErrorf("unknown script hash type %d",
			script.HashType)
	}
	script.Args = raw[scriptHeaderLen:]
	i.udtTypeScript = fn.Some(script)

	return nil
}

func (i *Invoice) parsePubKey(data []byte) error {
	if len(data) != pubKeyBase32Len {
		return decodeErrorf("payee key field length %d", len(data))
	}

	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return &Error{Code: CodeDecode, Err: err}
	}

	key, err := btcec.ParsePubKey(raw)
	if err != nil {
		return &Error{Code: CodeDecode, Err: err}
	}
	i.payeePubKey = fn.Some(key)

	return nil
}

// parse32Bytes converts a 256-bit value (encoded in base32) to *[32]byte. This
// can be used for payment hashes and preimages.
func parse32Bytes(data []byte) ([32]byte, error) {
	var b [32]byte
	if len(data) != hashBase32Len {
		return b, decodeErrorf("32 byte field length %d", len(data))
	}

	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return b, &Error{Code: CodeDecode, Err: err}
	}
	copy(b[:], raw)

	return b, nil
}

func parseString(data []byte) (fn.Option[string], error) {
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return fn.None[string](), &Error{Code: CodeDecode, Err: err}
	}

	return fn.Some(string(raw)), nil
}

// base32ToUint64 converts a base32 encoded number to uint64.
func base32ToUint64(data []byte) (uint64, error) {
	// Maximum that fits in uint64 is ceil(64 / 5) = 13 groups, and the
	// leading group of a 13 group number can carry at most 4 bits.
	if len(data) > 13 || (len(data) == 13 && data[0] > 15) {
		return 0, decodeErrorf("cannot parse data of length %d as "+
			"uint64", len(data))
	}
	if len(data) == 0 {
		return 0, decodeErrorf("empty integer field")
	}

	val := uint64(0)
	for i := 0; i < len(data); i++ {
		val = val<<5 | uint64(data[i])
	}

	return val, nil
}
