package invoicesrpc

import (
	"context"
	"fmt"
	"time"

	"github.com/fiberlabs/fnd/fnrpc"
	"github.com/fiberlabs/fnd/fntypes"
	"github.com/fiberlabs/fnd/fpay32"
	"github.com/fiberlabs/fnd/invoices"
	"github.com/fiberlabs/fnd/lnutils"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// NewInvoiceParams are the params of new_invoice. Integer fields are 0x
// prefixed hex strings.
//
//nolint:lll
type NewInvoiceParams struct {
	// Currency is required.
	Currency *fpay32.Currency `json:"currency"`

	// Amount is left out for invoices payable with any amount.
	Amount *fntypes.U128 `json:"amount,omitempty"`

	// PaymentPreimage is required, hold invoices can't be created over
	// RPC.
	PaymentPreimage string `json:"payment_preimage"`

	HashAlgorithm    *fntypes.HashAlgorithm `json:"hash_algorithm,omitempty"`
	Description      *string                `json:"description,omitempty"`
	Expiry           *fntypes.HexUint64     `json:"expiry,omitempty"`
	FallbackAddress  *string                `json:"fallback_address,omitempty"`
	FinalCltv        *fntypes.HexUint64     `json:"final_cltv,omitempty"`
	FinalHtlcTimeout *fntypes.HexUint64     `json:"final_htlc_timeout,omitempty"`
	UdtTypeScript    *fntypes.Script        `json:"udt_type_script,omitempty"`
}

// NewInvoiceResult is the result of new_invoice.
type NewInvoiceResult struct {
	InvoiceAddress string          `json:"invoice_address"`
	Invoice        *fpay32.Invoice `json:"invoice"`
}

func hexUint64Option(h *fntypes.HexUint64) fn.Option[uint64] {
	return fn.MapOptionZ(fn.OptionFromPtr(h),
		func(v fntypes.HexUint64) fn.Option[uint64] {
			return fn.Some(uint64(v))
		},
	)
}

// invoiceParams converts the RPC params to the params shared with the
// invoice service.
func (p *NewInvoiceParams) invoiceParams() (*invoices.NewInvoiceParams,
	error) {

	if p.Currency == nil {
		return nil, fnrpc.NewError(
			fnrpc.CodeInvalidParams, "currency is required", p,
		)
	}
	if p.PaymentPreimage == "" {
		return nil, fnrpc.NewError(
			CodeMissingPaymentIdentifier,
			"payment_preimage is required", p,
		)
	}

	params := &invoices.NewInvoiceParams{
		Currency:         *p.Currency,
		Amount:           fn.OptionFromPtr(p.Amount),
		PaymentPreimage:  fn.Some(p.PaymentPreimage),
		HashAlgorithm:    fn.OptionFromPtr(p.HashAlgorithm),
		Description:      fn.OptionFromPtr(p.Description),
		FallbackAddress:  fn.OptionFromPtr(p.FallbackAddress),
		FinalCltv:        hexUint64Option(p.FinalCltv),
		FinalHtlcTimeout: hexUint64Option(p.FinalHtlcTimeout),
		UdtTypeScript:    fn.OptionFromPtr(p.UdtTypeScript),
	}
	if p.Expiry != nil {
		if uint64(*p.Expiry) > fpay32.MaxExpirySecs {
			return nil, fnrpc.NewError(
				fnrpc.CodeInvalidParams, fmt.Sprintf("expiry "+
					"%d exceeds the maximum of %d seconds",
					*p.Expiry, fpay32.MaxExpirySecs), p,
			)
		}

		params.Expiry = fn.Some(time.Duration(*p.Expiry) * time.Second)
	}

	return params, nil
}

// AddInvoice builds an invoice from params, signs it with the node key when
// one is configured and inserts it into the store together with its
// preimage.
func AddInvoice(ctx context.Context, cfg *Config,
	params *NewInvoiceParams) (*NewInvoiceResult, error) {

	invoiceParams, err := params.invoiceParams()
	if err != nil {
		return nil, err
	}

	builder, err := invoiceParams.Builder(cfg.Clock.Now())
	if err != nil {
		return nil, newInvoiceError(err, params)
	}
	cfg.NodeSigner.WhenSome(func(signer *fpay32.NodeSigner) {
		builder = signer.Apply(builder)
	})

	invoice, err := builder.Build()
	if err != nil {
		return nil, newInvoiceError(err, params)
	}

	invoiceAddress, err := invoice.Encode()
	if err != nil {
		return nil, newInvoiceError(err, params)
	}

	log.Tracef("[addinvoice] adding new invoice %v",
		lnutils.SpewLogClosure(invoice))

	err = cfg.Store.InsertInvoice(ctx, invoice, invoice.PaymentPreimage())
	if err != nil {
		return nil, storeError(err, params)
	}

	log.Infof("Added invoice %v", invoice.PaymentHashID())

	return &NewInvoiceResult{
		InvoiceAddress: invoiceAddress,
		Invoice:        invoice,
	}, nil
}
