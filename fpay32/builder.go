package fpay32

import (
	"errors"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/fiberlabs/fnd/fntypes"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Builder stages the fields of an invoice. Every setter returns a new
// Builder and leaves the receiver untouched, so a partially configured
// builder can be reused as a template. Nothing is validated until Build.
type Builder struct {
	currency         Currency
	amount           fn.Option[fntypes.U128]
	timestamp        fn.Option[time.Time]
	paymentHash      fn.Option[fntypes.Hash]
	paymentPreimage  fn.Option[fntypes.Preimage]
	hashAlgorithm    fn.Option[fntypes.HashAlgorithm]
	description      fn.Option[string]
	expiry           fn.Option[time.Duration]
	fallbackAddr     fn.Option[string]
	finalCltv        fn.Option[uint64]
	finalHtlcTimeout fn.Option[uint64]
	udtTypeScript    fn.Option[fntypes.Script]
	payeePubKey      fn.Option[*btcec.PublicKey]
	signer           fn.Option[MessageSigner]
}

// NewBuilder starts an invoice in the given currency.
func NewBuilder(currency Currency) Builder {
	return Builder{currency: currency}
}

// Amount sets the requested amount. None requests any amount.
func (b Builder) Amount(amt fn.Option[fntypes.U128]) Builder {
	b.amount = amt
	return b
}

// Timestamp sets the creation time. It is truncated to whole seconds and
// defaults to the current time.
func (b Builder) Timestamp(t time.Time) Builder {
	b.timestamp = fn.Some(t)
	return b
}

// PaymentHash sets the payment hash.
func (b Builder) PaymentHash(hash fntypes.Hash) Builder {
	b.paymentHash = fn.Some(hash)
	return b
}

// PaymentPreimage sets the payment preimage. If no hash is set, the hash is
// derived from it.
func (b Builder) PaymentPreimage(preimage fntypes.Preimage) Builder {
	b.paymentPreimage = fn.Some(preimage)
	return b
}

// HashAlgorithm sets the algorithm linking preimage and hash.
func (b Builder) HashAlgorithm(alg fntypes.HashAlgorithm) Builder {
	b.hashAlgorithm = fn.Some(alg)
	return b
}

// Description sets a free form description of the payment.
func (b Builder) Description(desc string) Builder {
	b.description = fn.Some(desc)
	return b
}

// ExpiryTime sets the validity period, stored with second precision.
func (b Builder) ExpiryTime(expiry time.Duration) Builder {
	b.expiry = fn.Some(expiry)
	return b
}

// FallbackAddress sets an on-chain address to pay if the off-chain payment
// fails.
func (b Builder) FallbackAddress(addr string) Builder {
	b.fallbackAddr = fn.Some(addr)
	return b
}

// FinalCltv sets the final CLTV delta the payee requires.
func (b Builder) FinalCltv(delta uint64) Builder {
	b.finalCltv = fn.Some(delta)
	return b
}

// FinalHtlcTimeout sets the final HTLC timeout.
func (b Builder) FinalHtlcTimeout(timeout uint64) Builder {
	b.finalHtlcTimeout = fn.Some(timeout)
	return b
}

// UdtTypeScript denominates the invoice in the token named by script.
func (b Builder) UdtTypeScript(script fntypes.Script) Builder {
	b.udtTypeScript = fn.Some(script.Copy())
	return b
}

// PayeePubKey sets the key of the payee. The invoice is then signed with the
// configured Signer, which must hold the matching private key.
func (b Builder) PayeePubKey(key *btcec.PublicKey) Builder {
	b.payeePubKey = fn.Some(key)
	return b
}

// Signer sets the signer used when a payee key is present.
func (b Builder) Signer(signer MessageSigner) Builder {
	b.signer = fn.Some(signer)
	return b
}

// Build validates the staged fields and assembles the invoice. The checks
// run in order: at least one of hash and preimage, hash derivation or
// verification, field limits, then signing.
func (b Builder) Build() (*Invoice, error) {
	if b.paymentHash.IsNone() && b.paymentPreimage.IsNone() {
		return nil, ErrMissingPaymentIdentifier
	}

	alg := b.hashAlgorithm.UnwrapOr(fntypes.DefaultHashAlgorithm)
	if !alg.IsValid() {
		return nil, newError(CodeUnknownHashAlgorithm, "tag %d",
			uint8(alg))
	}

	derived := fn.MapOption(func(p fntypes.Preimage) fntypes.Hash {
		return p.Hash(alg)
	})(b.paymentPreimage)

	hash := b.paymentHash.Alt(derived).UnsafeFromSome()
	if derived.IsSome() && derived.UnsafeFromSome() != hash {
		return nil, newError(CodeHashMismatch, "hash %v, preimage "+
			"hash %v (%v)", hash, derived.UnsafeFromSome(), alg)
	}

	timestamp := b.timestamp.UnwrapOrFunc(time.Now)
	invoice := &Invoice{
		currency:         b.currency,
		amount:           b.amount,
		timestamp:        time.Unix(timestamp.Unix(), 0),
		paymentHash:      hash,
		paymentPreimage:  b.paymentPreimage,
		hashAlgorithm:    alg,
		description:      b.description,
		expiry:           fn.MapOption(truncateSeconds)(b.expiry),
		fallbackAddr:     b.fallbackAddr,
		finalCltv:        b.finalCltv,
		finalHtlcTimeout: b.finalHtlcTimeout,
		udtTypeScript:    b.udtTypeScript,
		payeePubKey:      b.payeePubKey,
	}

	if err := validateInvoice(invoice); err != nil {
		return nil, err
	}

	if err := b.sign(invoice); err != nil {
		return nil, err
	}

	return invoice, nil
}

// sign computes the payee signature, if a payee key is set, and checks that
// it was made by that key.
func (b Builder) sign(invoice *Invoice) error {
	if invoice.payeePubKey.IsNone() {
		return nil
	}
	payee := invoice.payeePubKey.UnsafeFromSome()
	if payee == nil {
		return &Error{Code: CodeSigning, Err: errNoPayeeKey}
	}

	signer, err := b.signer.UnwrapOrErr(errNoSigner)
	if err != nil {
		return &Error{Code: CodeSigning, Err: err}
	}
	if signer.SignCompact == nil {
		return &Error{Code: CodeSigning, Err: errNoSigner}
	}

	msg, err := invoice.signingMessage()
	if err != nil {
		return err
	}

	sign, err := signer.SignCompact(msg)
	if err != nil {
		return &Error{Code: CodeSigning, Err: err}
	}

	var sig Signature
	if len(sign) != len(sig) {
		return newError(CodeSigning, "signature length %d, want %d",
			len(sign), len(sig))
	}
	copy(sig[:], sign)

	// The header byte must flag a compressed key, the only form the
	// invoice carries.
	if sig[0] < 27+4 || sig[0] > 27+4+3 {
		return newError(CodeSigning, "invalid signature header %d",
			sig[0])
	}

	// The signature must have been made by the payee key.
	pubKey, _, err := ecdsa.RecoverCompact(sig[:], chainhash.HashB(msg))
	if err != nil {
		return &Error{Code: CodeSigning, Err: err}
	}
	if !pubKey.IsEqual(payee) {
		return &Error{
			Code: CodeSigning,
			Err:  errors.New("signature does not match payee key"),
		}
	}
	invoice.signature = fn.Some(sig)

	return nil
}

func truncateSeconds(d time.Duration) time.Duration {
	return d.Truncate(time.Second)
}

// validateInvoice checks that every field fits the text format.
func validateInvoice(invoice *Invoice) error {
	if !invoice.currency.IsValid() {
		return newError(CodeUnknownCurrency, "%d",
			uint8(invoice.currency))
	}

	ts := invoice.timestamp.Unix()
	if ts < 0 || ts > maxTimestamp {
		return newError(CodeFieldTooLarge, "timestamp %d out of range",
			ts)
	}

	err := fn.MapOptionZ(invoice.expiry, func(d time.Duration) error {
		if d < 0 {
			return newError(
				CodeInvalidField, "negative expiry %v", d,
			)
		}

		return nil
	})
	if err != nil {
		return err
	}

	err = fn.MapOptionZ(invoice.description, func(d string) error {
		return checkFieldLen("description", len(d), MaxFieldBytes)
	})
	if err != nil {
		return err
	}

	err = fn.MapOptionZ(invoice.fallbackAddr, func(addr string) error {
		return checkFieldLen("fallback address", len(addr),
			MaxFieldBytes)
	})
	if err != nil {
		return err
	}

	validScript := func(s fntypes.Script) error {
		if !s.HashType.IsValid() {
			return &Error{
				Code: CodeInvalidField,
				Err:  fntypes.ErrUnknownScriptHashType,
			}
		}

		return checkFieldLen("udt script args", len(s.Args),
			MaxScriptArgs)
	}

	return fn.MapOptionZ(invoice.udtTypeScript, validScript)
}

func checkFieldLen(name string, n, limit int) error {
	if n > limit {
		return newError(CodeFieldTooLarge, "%s is %d bytes, max %d",
			name, n, limit)
	}

	return nil
}

// ParsePaymentHash decodes a hex payment hash for use with the builder.
func ParsePaymentHash(s string) (fntypes.Hash, error) {
	hash, err := fntypes.MakeHashFromStr(s)
	if err != nil {
		return fntypes.Hash{}, hexError(err)
	}

	return hash, nil
}

// ParsePaymentPreimage decodes a hex payment preimage for use with the
// builder.
func ParsePaymentPreimage(s string) (fntypes.Preimage, error) {
	preimage, err := fntypes.MakePreimageFromStr(s)
	if err != nil {
		return fntypes.Preimage{}, hexError(err)
	}

	return preimage, nil
}

// hexError converts the hex errors of fntypes into the error type of this
// package.
func hexError(err error) error {
	var lenErr *fntypes.HexLengthError
	if errors.As(err, &lenErr) {
		return &Error{Code: CodeInvalidHexLength, Err: err}
	}

	return &Error{Code: CodeInvalidHex, Err: err}
}
