package invoices

import (
	"bytes"
	"context"
	"fmt"
	"io"

	// Import to register the bolt backend.
	_ "github.com/btcsuite/btcwallet/walletdb/bdb"
	"github.com/fiberlabs/fnd/fntypes"
	"github.com/fiberlabs/fnd/fpay32"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/kvdb"
	"github.com/lightningnetwork/lnd/tlv"
)

var (
	// invoiceBucket is the name of the top-level bucket that maps payment
	// hashes to serialized invoice records.
	invoiceBucket = []byte("fnd-invoices")
)

const (
	// invoiceType is the record carrying the encoded invoice string.
	invoiceType tlv.Type = 0

	// preimageType is the record carrying the preimage, if known.
	preimageType tlv.Type = 2
)

// KVStore is an InvoiceStore backed by a kvdb backend. Each record is stored
// as a TLV stream and is decoded and verified again when it is loaded.
type KVStore struct {
	db kvdb.Backend
}

// A compile-time check to ensure KVStore implements InvoiceStore.
var _ InvoiceStore = (*KVStore)(nil)

// NewKVStore creates the invoice bucket if needed and returns a store on top
// of db.
func NewKVStore(db kvdb.Backend) (*KVStore, error) {
	err := kvdb.Update(db, func(tx kvdb.RwTx) error {
		_, err := tx.CreateTopLevelBucket(invoiceBucket)
		return err
	}, func() {})
	if err != nil {
		return nil, fmt.Errorf("unable to create invoice bucket: %w",
			err)
	}

	return &KVStore{db: db}, nil
}

// OpenBoltStore opens, or creates, the bolt database at dbPath and returns
// a KVStore on top of it. The caller owns the returned backend and must
// close it.
func OpenBoltStore(dbPath string, noFreelistSync bool) (*KVStore,
	kvdb.Backend, error) {

	db, err := kvdb.Create(
		kvdb.BoltBackendName, dbPath, noFreelistSync,
		kvdb.DefaultDBTimeout, false,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to open invoice db: %w",
			err)
	}

	store, err := NewKVStore(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	return store, db, nil
}

// InsertInvoice stores the invoice under its payment hash.
//
// NOTE: Part of the InvoiceStore interface.
func (k *KVStore) InsertInvoice(ctx context.Context, invoice *fpay32.Invoice,
	preimage fn.Option[fntypes.Preimage]) error {

	if err := ctx.Err(); err != nil {
		return err
	}

	record, err := newRecord(invoice, preimage)
	if err != nil {
		return err
	}

	var b bytes.Buffer
	if err := serializeRecord(&b, record); err != nil {
		return err
	}

	hash := invoice.PaymentHash()

	return kvdb.Update(k.db, func(tx kvdb.RwTx) error {
		invoices := tx.ReadWriteBucket(invoiceBucket)
		if invoices == nil {
			return kvdb.ErrBucketNotFound
		}

		if invoices.Get(hash[:]) != nil {
			return ErrDuplicateInvoice
		}

		return invoices.Put(hash[:], b.Bytes())
	}, func() {})
}

// LookupInvoice returns the record stored under hash.
//
// NOTE: Part of the InvoiceStore interface.
func (k *KVStore) LookupInvoice(ctx context.Context,
	hash fntypes.Hash) (*InvoiceRecord, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var record *InvoiceRecord
	err := kvdb.View(k.db, func(tx kvdb.RTx) error {
		invoices := tx.ReadBucket(invoiceBucket)
		if invoices == nil {
			return kvdb.ErrBucketNotFound
		}

		value := invoices.Get(hash[:])
		if value == nil {
			return ErrInvoiceNotFound
		}

		var err error
		record, err = deserializeRecord(bytes.NewReader(value))

		return err
	}, func() {
		record = nil
	})
	if err != nil {
		return nil, err
	}

	if record.Invoice.PaymentHash() != hash {
		return nil, fmt.Errorf("%w: stored under %v but hashes to %v",
			ErrInvoiceCorrupted, hash, record.Invoice.PaymentHash())
	}

	return record, nil
}

// NumInvoices returns the number of stored invoices.
func (k *KVStore) NumInvoices() (int, error) {
	var num int
	err := kvdb.View(k.db, func(tx kvdb.RTx) error {
		invoices := tx.ReadBucket(invoiceBucket)
		if invoices == nil {
			return kvdb.ErrBucketNotFound
		}

		return invoices.ForEach(func(_, _ []byte) error {
			num++
			return nil
		})
	}, func() {
		num = 0
	})

	return num, err
}

// serializeRecord writes the record as a TLV stream. The preimage record is
// omitted when the preimage is unknown.
func serializeRecord(w io.Writer, record *InvoiceRecord) error {
	encoded, err := record.Invoice.Encode()
	if err != nil {
		return err
	}
	invoiceBytes := []byte(encoded)

	records := []tlv.Record{
		tlv.MakePrimitiveRecord(invoiceType, &invoiceBytes),
	}

	var preimage [32]byte
	record.Preimage.WhenSome(func(p fntypes.Preimage) {
		preimage = p
		records = append(records, tlv.MakePrimitiveRecord(
			preimageType, &preimage,
		))
	})

	tlvStream, err := tlv.NewStream(records...)
	if err != nil {
		return err
	}

	return tlvStream.Encode(w)
}

// deserializeRecord reads a record written by serializeRecord. The invoice is
// decoded with full validation, and the preimage, if present, must match it.
func deserializeRecord(r io.Reader) (*InvoiceRecord, error) {
	var (
		invoiceBytes []byte
		preimage     [32]byte
	)

	tlvStream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(invoiceType, &invoiceBytes),
		tlv.MakePrimitiveRecord(preimageType, &preimage),
	)
	if err != nil {
		return nil, err
	}

	parsedTypes, err := tlvStream.DecodeWithParsedTypes(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvoiceCorrupted, err)
	}

	if _, ok := parsedTypes[invoiceType]; !ok {
		return nil, fmt.Errorf("%w: missing invoice record",
			ErrInvoiceCorrupted)
	}

	invoice, err := fpay32.Decode(string(invoiceBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvoiceCorrupted, err)
	}

	record := &InvoiceRecord{
		Invoice: invoice,
	}
	if _, ok := parsedTypes[preimageType]; ok {
		p := fntypes.Preimage(preimage)
		if !p.Matches(invoice.PaymentHash(), invoice.HashAlgorithm()) {
			return nil, fmt.Errorf("%w: %v", ErrInvoiceCorrupted,
				ErrPreimageMismatch)
		}
		record.Preimage = fn.Some(p)
	}

	return record, nil
}
