package invoices

import (
	"time"

	"github.com/fiberlabs/fnd/fntypes"
	"github.com/fiberlabs/fnd/fpay32"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// NewInvoiceParams holds the caller-supplied fields of a new invoice. Either
// PaymentHash or PaymentPreimage must be set; both are hex encoded with an
// optional 0x prefix. Every other field is optional.
type NewInvoiceParams struct {
	Currency         fpay32.Currency
	Amount           fn.Option[fntypes.U128]
	PaymentHash      fn.Option[string]
	PaymentPreimage  fn.Option[string]
	HashAlgorithm    fn.Option[fntypes.HashAlgorithm]
	Description      fn.Option[string]
	Expiry           fn.Option[time.Duration]
	FallbackAddress  fn.Option[string]
	FinalCltv        fn.Option[uint64]
	FinalHtlcTimeout fn.Option[uint64]
	UdtTypeScript    fn.Option[fntypes.Script]
}

// Builder parses the hex identifiers and stages every set field on a new
// builder. Nothing beyond hex parsing is validated here; that happens in
// Build.
func (p *NewInvoiceParams) Builder(now time.Time) (fpay32.Builder, error) {
	b := fpay32.NewBuilder(p.Currency).
		Amount(p.Amount).
		Timestamp(now)

	if p.PaymentHash.IsSome() {
		hash, err := fpay32.ParsePaymentHash(
			p.PaymentHash.UnsafeFromSome(),
		)
		if err != nil {
			return b, err
		}
		b = b.PaymentHash(hash)
	}

	if p.PaymentPreimage.IsSome() {
		preimage, err := fpay32.ParsePaymentPreimage(
			p.PaymentPreimage.UnsafeFromSome(),
		)
		if err != nil {
			return b, err
		}
		b = b.PaymentPreimage(preimage)
	}

	p.HashAlgorithm.WhenSome(func(alg fntypes.HashAlgorithm) {
		b = b.HashAlgorithm(alg)
	})
	p.Description.WhenSome(func(desc string) {
		b = b.Description(desc)
	})
	p.Expiry.WhenSome(func(expiry time.Duration) {
		b = b.ExpiryTime(expiry)
	})
	p.FallbackAddress.WhenSome(func(addr string) {
		b = b.FallbackAddress(addr)
	})
	p.FinalCltv.WhenSome(func(delta uint64) {
		b = b.FinalCltv(delta)
	})
	p.FinalHtlcTimeout.WhenSome(func(timeout uint64) {
		b = b.FinalHtlcTimeout(timeout)
	})
	p.UdtTypeScript.WhenSome(func(script fntypes.Script) {
		b = b.UdtTypeScript(script)
	})

	return b, nil
}
