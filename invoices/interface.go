package invoices

import (
	"context"

	"github.com/fiberlabs/fnd/fntypes"
	"github.com/fiberlabs/fnd/fpay32"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// InvoiceStore persists invoices keyed by their payment hash. Records are
// append-only: once inserted they are never updated or removed.
type InvoiceStore interface {
	// InsertInvoice stores the invoice under its payment hash. The
	// preimage is optional; when it is None the preimage embedded in the
	// invoice, if any, is stored. ErrDuplicateInvoice is returned, and the
	// existing record is left as is, if the hash is already present.
	InsertInvoice(ctx context.Context, invoice *fpay32.Invoice,
		preimage fn.Option[fntypes.Preimage]) error

	// LookupInvoice returns the record stored under hash, or
	// ErrInvoiceNotFound.
	LookupInvoice(ctx context.Context,
		hash fntypes.Hash) (*InvoiceRecord, error)
}

// InvoiceRecord is what the store keeps per payment hash.
type InvoiceRecord struct {
	// Invoice is the invoice as it was inserted.
	Invoice *fpay32.Invoice

	// Preimage is the payment secret, if known. Settlement logic uses it
	// to claim incoming payments.
	Preimage fn.Option[fntypes.Preimage]
}

// newRecord validates an insertion and returns the record to store.
func newRecord(invoice *fpay32.Invoice,
	preimage fn.Option[fntypes.Preimage]) (*InvoiceRecord, error) {

	preimage = preimage.Alt(invoice.PaymentPreimage())

	err := fn.MapOptionZ(preimage, func(p fntypes.Preimage) error {
		hash := invoice.PaymentHash()
		if !p.Matches(hash, invoice.HashAlgorithm()) {
			return ErrPreimageMismatch
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &InvoiceRecord{
		Invoice:  invoice,
		Preimage: preimage,
	}, nil
}
