package invoices

import (
	"context"

	"github.com/fiberlabs/fnd/fntypes"
	"github.com/fiberlabs/fnd/fpay32"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// MapStore is an in-memory InvoiceStore for a single owner. It is not safe
// for concurrent use: the invoice service goroutine is its only caller.
type MapStore struct {
	invoices map[fntypes.Hash]*InvoiceRecord
}

// A compile-time check to ensure MapStore implements InvoiceStore.
var _ InvoiceStore = (*MapStore)(nil)

// NewMapStore returns an empty MapStore.
func NewMapStore() *MapStore {
	return &MapStore{
		invoices: make(map[fntypes.Hash]*InvoiceRecord),
	}
}

// InsertInvoice stores the invoice under its payment hash.
//
// NOTE: Part of the InvoiceStore interface.
func (m *MapStore) InsertInvoice(_ context.Context, invoice *fpay32.Invoice,
	preimage fn.Option[fntypes.Preimage]) error {

	record, err := newRecord(invoice, preimage)
	if err != nil {
		return err
	}

	hash := invoice.PaymentHash()
	if _, ok := m.invoices[hash]; ok {
		return ErrDuplicateInvoice
	}
	m.invoices[hash] = record

	return nil
}

// LookupInvoice returns the record stored under hash.
//
// NOTE: Part of the InvoiceStore interface.
func (m *MapStore) LookupInvoice(_ context.Context,
	hash fntypes.Hash) (*InvoiceRecord, error) {

	record, ok := m.invoices[hash]
	if !ok {
		return nil, ErrInvoiceNotFound
	}

	// Callers get their own copy, the stored record never changes.
	r := *record

	return &r, nil
}

// Len returns the number of stored invoices.
func (m *MapStore) Len() int {
	return len(m.invoices)
}
