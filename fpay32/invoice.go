package fpay32

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/fiberlabs/fnd/fntypes"
	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// maxInvoiceLength is the maximum total length an invoice can have.
	// This is chosen to be the maximum number of bytes that can fit into a
	// single QR code: https://en.wikipedia.org/wiki/QR_code#Storage
	maxInvoiceLength = 7089

	// signatureBase32Len is the number of 5-bit groups needed to encode
	// the 512 bit signature + 8 bit recovery ID.
	signatureBase32Len = 104

	// timestampBase32Len is the number of 5-bit groups needed to encode
	// the 35-bit timestamp.
	timestampBase32Len = 7

	// flagsBase32Len is the number of 5-bit groups that hold the invoice
	// flags.
	flagsBase32Len = 1

	// hashBase32Len is the number of 5-bit groups needed to encode a
	// 256-bit hash. Note that the last group will be padded with zeroes.
	hashBase32Len = 52

	// pubKeyBase32Len is the number of 5-bit groups needed to encode a
	// 33-byte compressed pubkey.
	pubKeyBase32Len = 53

	// maxFieldBase32Len is the largest data length a tagged field can
	// declare with its 10-bit length.
	maxFieldBase32Len = 1023

	// MaxFieldBytes is the largest number of bytes a variable length
	// field such as the description can hold.
	MaxFieldBytes = maxFieldBase32Len * 5 / 8

	// scriptHeaderLen is the code hash plus the hash type byte that
	// precede the args of an encoded script.
	scriptHeaderLen = fntypes.HashSize + 1

	// MaxScriptArgs is the largest number of bytes the args of the udt
	// type script can hold.
	MaxScriptArgs = MaxFieldBytes - scriptHeaderLen

	// maxTimestamp is the largest unix time that fits in 35 bits.
	maxTimestamp = 1<<35 - 1

	// MaxExpirySecs is the largest expiry that fits in a time.Duration.
	MaxExpirySecs = uint64(math.MaxInt64 / int64(time.Second))

	// flagSigned marks an invoice that carries a payee signature.
	flagSigned = 1

	// The following constants are the field types used in the text
	// format, taken as the value of their bech32 character.

	// fieldTypeP is the field containing the payment hash.
	fieldTypeP = 1

	// fieldTypeR contains the payment preimage.
	fieldTypeR = 3

	// fieldTypeA contains the hash algorithm tag. It is only present when
	// the algorithm is not the default.
	fieldTypeA = 29

	// fieldTypeD contains a short description of the payment.
	fieldTypeD = 13

	// fieldTypeX contains the expiry in seconds of the invoice.
	fieldTypeX = 6

	// fieldTypeF contains a fallback on-chain address.
	fieldTypeF = 9

	// fieldTypeC contains an optional requested final CLTV delta.
	fieldTypeC = 24

	// fieldTypeT contains the final HTLC timeout.
	fieldTypeT = 11

	// fieldTypeU contains the type script of the token the invoice is
	// denominated in.
	fieldTypeU = 28

	// fieldTypeN contains the pubkey of the payee node.
	fieldTypeN = 19
)

// Currency names the network an invoice is payable on.
type Currency uint8

const (
	// Fibb is the mainnet currency.
	Fibb Currency = iota

	// Fibt is the testnet currency.
	Fibt

	// Fibd is the devnet currency.
	Fibd
)

var currencyPrefixes = map[Currency]string{
	Fibb: "fibb",
	Fibt: "fibt",
	Fibd: "fibd",
}

// Prefix returns the human readable prefix of invoices in this currency.
func (c Currency) Prefix() string {
	return currencyPrefixes[c]
}

// IsValid reports whether c is a known currency.
func (c Currency) IsValid() bool {
	_, ok := currencyPrefixes[c]
	return ok
}

// String returns the name of the currency.
func (c Currency) String() string {
	switch c {
	case Fibb:
		return "Fibb"
	case Fibt:
		return "Fibt"
	case Fibd:
		return "Fibd"
	default:
		return fmt.Sprintf("Currency(%d)", uint8(c))
	}
}

// ParseCurrency maps a currency name or prefix, in any case, to a Currency.
func ParseCurrency(s string) (Currency, error) {
	for c, prefix := range currencyPrefixes {
		if strings.EqualFold(s, prefix) {
			return c, nil
		}
	}

	return 0, newError(CodeUnknownCurrency, "%q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (c Currency) MarshalText() ([]byte, error) {
	if !c.IsValid() {
		return nil, newError(CodeUnknownCurrency, "%d", uint8(c))
	}

	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Currency) UnmarshalText(text []byte) error {
	currency, err := ParseCurrency(string(text))
	if err != nil {
		return err
	}
	*c = currency

	return nil
}

// Signature is a compact recoverable secp256k1 signature: a header byte
// carrying the recovery ID, followed by R and S.
type Signature [65]byte

// Invoice is a payment request. It is immutable: the only ways to obtain one
// are Builder.Build and Decode, both of which enforce that the payment hash
// matches the preimage, if any, and that the signature, if any, verifies.
type Invoice struct {
	currency         Currency
	amount           fn.Option[fntypes.U128]
	timestamp        time.Time
	paymentHash      fntypes.Hash
	paymentPreimage  fn.Option[fntypes.Preimage]
	hashAlgorithm    fntypes.HashAlgorithm
	description      fn.Option[string]
	expiry           fn.Option[time.Duration]
	fallbackAddr     fn.Option[string]
	finalCltv        fn.Option[uint64]
	finalHtlcTimeout fn.Option[uint64]
	udtTypeScript    fn.Option[fntypes.Script]
	payeePubKey      fn.Option[*btcec.PublicKey]
	signature        fn.Option[Signature]
}

// Currency returns the network the invoice is payable on.
func (i *Invoice) Currency() Currency { return i.currency }

// Amount returns the requested amount. None means any amount is accepted.
func (i *Invoice) Amount() fn.Option[fntypes.U128] { return i.amount }

// Timestamp returns the creation time of the invoice.
func (i *Invoice) Timestamp() time.Time { return i.timestamp }

// PaymentHash returns the hash that locks the payment.
func (i *Invoice) PaymentHash() fntypes.Hash { return i.paymentHash }

// PaymentPreimage returns the embedded preimage. Invoices without one are
// hold invoices and can only be settled once the preimage is supplied
// externally.
func (i *Invoice) PaymentPreimage() fn.Option[fntypes.Preimage] {
	return i.paymentPreimage
}

// HashAlgorithm returns the algorithm linking preimage and hash.
func (i *Invoice) HashAlgorithm() fntypes.HashAlgorithm {
	return i.hashAlgorithm
}

// Description returns the free form payment description.
func (i *Invoice) Description() fn.Option[string] { return i.description }

// Expiry returns the validity period of the invoice.
func (i *Invoice) Expiry() fn.Option[time.Duration] { return i.expiry }

// FallbackAddr returns the on-chain fallback address.
func (i *Invoice) FallbackAddr() fn.Option[string] { return i.fallbackAddr }

// FinalCltv returns the requested final CLTV delta.
func (i *Invoice) FinalCltv() fn.Option[uint64] { return i.finalCltv }

// FinalHtlcTimeout returns the final HTLC timeout.
func (i *Invoice) FinalHtlcTimeout() fn.Option[uint64] {
	return i.finalHtlcTimeout
}

// UdtTypeScript returns the type script of the token the amount is
// denominated in. None means the native asset.
func (i *Invoice) UdtTypeScript() fn.Option[fntypes.Script] {
	return fn.MapOption(fntypes.Script.Copy)(i.udtTypeScript)
}

// PayeePubKey returns the public key of the payee node, present on signed
// invoices.
func (i *Invoice) PayeePubKey() fn.Option[*btcec.PublicKey] {
	return i.payeePubKey
}

// Signature returns the payee signature.
func (i *Invoice) Signature() fn.Option[Signature] { return i.signature }

// PaymentHashID returns the identifier of the invoice, the 0x prefixed hex
// of its payment hash.
func (i *Invoice) PaymentHashID() string {
	return fntypes.EncodeHex(i.paymentHash[:])
}

// ExpiresAt returns the time the invoice expires, if it has an expiry.
func (i *Invoice) ExpiresAt() fn.Option[time.Time] {
	return fn.MapOption(func(d time.Duration) time.Time {
		return i.timestamp.Add(d)
	})(i.expiry)
}

// IsExpired reports whether the invoice has expired at now.
func (i *Invoice) IsExpired(now time.Time) bool {
	return fn.MapOptionZ(i.ExpiresAt(), now.After)
}

// WithoutPreimage returns a copy of the invoice with the preimage removed.
// The payee signature does not cover the preimage and stays valid.
func (i *Invoice) WithoutPreimage() *Invoice {
	c := *i
	c.paymentPreimage = fn.None[fntypes.Preimage]()

	return &c
}

// String returns the encoded invoice.
func (i *Invoice) String() string {
	s, err := i.Encode()
	if err != nil {
		return fmt.Sprintf("<invalid invoice: %v>", err)
	}

	return s
}

// Equal reports whether two invoices carry the same data.
func (i *Invoice) Equal(o *Invoice) bool {
	if i == nil || o == nil {
		return i == o
	}

	return i.currency == o.currency &&
		i.amount == o.amount &&
		i.timestamp.Equal(o.timestamp) &&
		i.paymentHash == o.paymentHash &&
		i.paymentPreimage == o.paymentPreimage &&
		i.hashAlgorithm == o.hashAlgorithm &&
		i.description == o.description &&
		i.expiry == o.expiry &&
		i.fallbackAddr == o.fallbackAddr &&
		i.finalCltv == o.finalCltv &&
		i.finalHtlcTimeout == o.finalHtlcTimeout &&
		optionEqual(i.udtTypeScript, o.udtTypeScript,
			fntypes.Script.Equal) &&
		optionEqual(i.payeePubKey, o.payeePubKey,
			(*btcec.PublicKey).IsEqual) &&
		i.signature == o.signature
}

func optionEqual[T any](a, b fn.Option[T], eq func(T, T) bool) bool {
	if a.IsSome() != b.IsSome() {
		return false
	}
	if a.IsNone() {
		return true
	}

	return eq(a.UnsafeFromSome(), b.UnsafeFromSome())
}

// jsonInvoice is the JSON view of an invoice.
//
//nolint:lll
type jsonInvoice struct {
	Currency         Currency              `json:"currency"`
	Amount           *fntypes.U128         `json:"amount,omitempty"`
	Timestamp        int64                 `json:"timestamp"`
	PaymentHash      fntypes.Hash          `json:"payment_hash"`
	PaymentPreimage  *fntypes.Preimage     `json:"payment_preimage,omitempty"`
	HashAlgorithm    fntypes.HashAlgorithm `json:"hash_algorithm"`
	Description      *string               `json:"description,omitempty"`
	Expiry           *fntypes.HexUint64    `json:"expiry,omitempty"`
	FallbackAddr     *string               `json:"fallback_address,omitempty"`
	FinalCltv        *fntypes.HexUint64    `json:"final_cltv,omitempty"`
	FinalHtlcTimeout *fntypes.HexUint64    `json:"final_htlc_timeout,omitempty"`
	UdtTypeScript    *fntypes.Script       `json:"udt_type_script,omitempty"`
	PayeePubKey      string                `json:"payee_pub_key,omitempty"`
	Signature        string                `json:"signature,omitempty"`
}

func optionPtr[T any](o fn.Option[T]) *T {
	return fn.MapOptionZ(o, func(v T) *T { return &v })
}

func hexUint64Ptr(o fn.Option[uint64]) *fntypes.HexUint64 {
	return fn.MapOptionZ(o, func(v uint64) *fntypes.HexUint64 {
		h := fntypes.HexUint64(v)
		return &h
	})
}

// MarshalJSON implements json.Marshaler.
func (i *Invoice) MarshalJSON() ([]byte, error) {
	j := jsonInvoice{
		Currency:         i.currency,
		Amount:           optionPtr(i.amount),
		Timestamp:        i.timestamp.Unix(),
		PaymentHash:      i.paymentHash,
		PaymentPreimage:  optionPtr(i.paymentPreimage),
		HashAlgorithm:    i.hashAlgorithm,
		Description:      optionPtr(i.description),
		FallbackAddr:     optionPtr(i.fallbackAddr),
		FinalCltv:        hexUint64Ptr(i.finalCltv),
		FinalHtlcTimeout: hexUint64Ptr(i.finalHtlcTimeout),
		UdtTypeScript:    optionPtr(i.udtTypeScript),
	}
	i.expiry.WhenSome(func(d time.Duration) {
		secs := fntypes.HexUint64(d / time.Second)
		j.Expiry = &secs
	})
	i.payeePubKey.WhenSome(func(key *btcec.PublicKey) {
		j.PayeePubKey = fntypes.EncodeHex(key.SerializeCompressed())
	})
	i.signature.WhenSome(func(sig Signature) {
		j.Signature = fntypes.EncodeHex(sig[:])
	})

	return json.Marshal(j)
}
