package invoices

import (
	"context"

	"github.com/fiberlabs/fnd/fntypes"
	"github.com/fiberlabs/fnd/fpay32"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/puzpuzpuz/xsync/v3"
)

// SyncStore is an in-memory InvoiceStore that may be shared between
// goroutines. Concurrent inserts of the same hash resolve to exactly one
// winner; every other caller gets ErrDuplicateInvoice.
type SyncStore struct {
	invoices *xsync.MapOf[fntypes.Hash, *InvoiceRecord]
}

// A compile-time check to ensure SyncStore implements InvoiceStore.
var _ InvoiceStore = (*SyncStore)(nil)

// NewSyncStore returns an empty SyncStore.
func NewSyncStore() *SyncStore {
	return &SyncStore{
		invoices: xsync.NewMapOf[fntypes.Hash, *InvoiceRecord](),
	}
}

// InsertInvoice stores the invoice under its payment hash.
//
// NOTE: Part of the InvoiceStore interface.
func (s *SyncStore) InsertInvoice(_ context.Context, invoice *fpay32.Invoice,
	preimage fn.Option[fntypes.Preimage]) error {

	record, err := newRecord(invoice, preimage)
	if err != nil {
		return err
	}

	_, loaded := s.invoices.LoadOrStore(invoice.PaymentHash(), record)
	if loaded {
		return ErrDuplicateInvoice
	}

	return nil
}

// LookupInvoice returns the record stored under hash.
//
// NOTE: Part of the InvoiceStore interface.
func (s *SyncStore) LookupInvoice(_ context.Context,
	hash fntypes.Hash) (*InvoiceRecord, error) {

	record, ok := s.invoices.Load(hash)
	if !ok {
		return nil, ErrInvoiceNotFound
	}

	// Callers get their own copy, the stored record never changes.
	r := *record

	return &r, nil
}

// Len returns the number of stored invoices.
func (s *SyncStore) Len() int {
	return s.invoices.Size()
}
