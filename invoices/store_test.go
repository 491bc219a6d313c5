package invoices

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fiberlabs/fnd/fntypes"
	"github.com/fiberlabs/fnd/fpay32"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/kvdb"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var testTimestamp = time.Unix(1700000000, 0)

// makePreimage returns a preimage filled with b.
func makePreimage(b byte) fntypes.Preimage {
	var p fntypes.Preimage
	for i := range p {
		p[i] = b
	}

	return p
}

// newPreimageInvoice builds a testnet invoice embedding preimage.
func newPreimageInvoice(t testing.TB,
	preimage fntypes.Preimage) *fpay32.Invoice {

	t.Helper()

	invoice, err := fpay32.NewBuilder(fpay32.Fibt).
		Amount(fn.Some(fntypes.NewU128(1000))).
		Timestamp(testTimestamp).
		PaymentPreimage(preimage).
		Build()
	require.NoError(t, err)

	return invoice
}

// newHashInvoice builds a testnet invoice carrying only a payment hash.
func newHashInvoice(t testing.TB, hash fntypes.Hash) *fpay32.Invoice {
	t.Helper()

	invoice, err := fpay32.NewBuilder(fpay32.Fibt).
		Timestamp(testTimestamp).
		PaymentHash(hash).
		Description("hold").
		Build()
	require.NoError(t, err)

	return invoice
}

// newTestKVStore opens a bolt backed store in a temporary directory.
func newTestKVStore(t testing.TB) (*KVStore, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "invoices.db")
	store, db, err := OpenBoltStore(dbPath, true)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	return store, dbPath
}

type storeFactory struct {
	name string
	new  func(t testing.TB) InvoiceStore
}

var storeFactories = []storeFactory{
	{
		name: "map",
		new: func(testing.TB) InvoiceStore {
			return NewMapStore()
		},
	},
	{
		name: "sync",
		new: func(testing.TB) InvoiceStore {
			return NewSyncStore()
		},
	},
	{
		name: "kv",
		new: func(t testing.TB) InvoiceStore {
			store, _ := newTestKVStore(t)
			return store
		},
	},
}

// TestStoreInsertLookup exercises the store contract against every
// implementation.
func TestStoreInsertLookup(t *testing.T) {
	t.Parallel()

	for _, factory := range storeFactories {
		t.Run(factory.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store := factory.new(t)

			preimage := makePreimage(1)
			invoice := newPreimageInvoice(t, preimage)
			hash := invoice.PaymentHash()

			_, err := store.LookupInvoice(ctx, hash)
			require.ErrorIs(t, err, ErrInvoiceNotFound)

			// A missing preimage argument falls back to the one
			// embedded in the invoice.
			err = store.InsertInvoice(
				ctx, invoice, fn.None[fntypes.Preimage](),
			)
			require.NoError(t, err)

			record, err := store.LookupInvoice(ctx, hash)
			require.NoError(t, err)
			require.True(t, invoice.Equal(record.Invoice))
			require.Equal(t, preimage, record.Preimage.UnwrapOrFail(t)) //nolint:lll

			// A second insert of the same hash fails and keeps the
			// first record.
			other := newHashInvoice(t, hash)
			err = store.InsertInvoice(
				ctx, other, fn.None[fntypes.Preimage](),
			)
			require.ErrorIs(t, err, ErrDuplicateInvoice)

			record, err = store.LookupInvoice(ctx, hash)
			require.NoError(t, err)
			require.True(t, invoice.Equal(record.Invoice))
		})
	}
}

// TestStoreHoldInvoice checks invoices stored without a preimage, and with
// a preimage supplied next to a hash-only invoice.
func TestStoreHoldInvoice(t *testing.T) {
	t.Parallel()

	for _, factory := range storeFactories {
		t.Run(factory.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store := factory.new(t)

			hold := newHashInvoice(t, fntypes.Hash{9})
			err := store.InsertInvoice(
				ctx, hold, fn.None[fntypes.Preimage](),
			)
			require.NoError(t, err)

			record, err := store.LookupInvoice(ctx, fntypes.Hash{9})
			require.NoError(t, err)
			require.True(t, record.Preimage.IsNone())

			preimage := makePreimage(2)
			hash := preimage.Hash(fntypes.DefaultHashAlgorithm)
			invoice := newHashInvoice(t, hash)

			// The wrong preimage is rejected without mutation.
			err = store.InsertInvoice(
				ctx, invoice, fn.Some(makePreimage(3)),
			)
			require.ErrorIs(t, err, ErrPreimageMismatch)

			_, err = store.LookupInvoice(ctx, hash)
			require.ErrorIs(t, err, ErrInvoiceNotFound)

			err = store.InsertInvoice(ctx, invoice, fn.Some(preimage)) //nolint:lll
			require.NoError(t, err)

			record, err = store.LookupInvoice(ctx, hash)
			require.NoError(t, err)
			require.Equal(t, preimage, record.Preimage.UnwrapOrFail(t)) //nolint:lll
		})
	}
}

// TestStoreLookupCopy checks that changing a looked up record leaves the
// stored record untouched.
func TestStoreLookupCopy(t *testing.T) {
	t.Parallel()

	for _, factory := range storeFactories {
		t.Run(factory.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store := factory.new(t)

			hash := fntypes.Hash{7}
			err := store.InsertInvoice(
				ctx, newHashInvoice(t, hash),
				fn.None[fntypes.Preimage](),
			)
			require.NoError(t, err)

			record, err := store.LookupInvoice(ctx, hash)
			require.NoError(t, err)
			record.Preimage = fn.Some(makePreimage(7))
			record.Invoice = nil

			record, err = store.LookupInvoice(ctx, hash)
			require.NoError(t, err)
			require.True(t, record.Preimage.IsNone())
			require.NotNil(t, record.Invoice)
		})
	}
}

// TestStoreConcurrentDuplicate races inserts of the same hash and checks
// that exactly one caller wins.
func TestStoreConcurrentDuplicate(t *testing.T) {
	t.Parallel()

	const numInserters = 16

	for _, factory := range storeFactories {
		// The map store is single-owner only.
		if factory.name == "map" {
			continue
		}

		t.Run(factory.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store := factory.new(t)
			invoice := newPreimageInvoice(t, makePreimage(7))

			var (
				wg   sync.WaitGroup
				errs = make(chan error, numInserters)
			)
			for i := 0; i < numInserters; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()

					errs <- store.InsertInvoice(
						ctx, invoice,
						fn.None[fntypes.Preimage](),
					)
				}()
			}
			wg.Wait()
			close(errs)

			var wins, dups int
			for err := range errs {
				switch {
				case err == nil:
					wins++
				default:
					require.ErrorIs(t, err, ErrDuplicateInvoice) //nolint:lll
					dups++
				}
			}
			require.Equal(t, 1, wins)
			require.Equal(t, numInserters-1, dups)
		})
	}
}

// TestKVStorePersistence checks that records survive a reopen of the
// database.
func TestKVStorePersistence(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "invoices.db")

	store, db, err := OpenBoltStore(dbPath, true)
	require.NoError(t, err)

	preimage := makePreimage(4)
	invoice := newPreimageInvoice(t, preimage)
	hold := newHashInvoice(t, fntypes.Hash{5})

	require.NoError(t, store.InsertInvoice(
		ctx, invoice, fn.None[fntypes.Preimage](),
	))
	require.NoError(t, store.InsertInvoice(
		ctx, hold, fn.None[fntypes.Preimage](),
	))
	require.NoError(t, db.Close())

	store, db, err = OpenBoltStore(dbPath, true)
	require.NoError(t, err)
	defer db.Close()

	num, err := store.NumInvoices()
	require.NoError(t, err)
	require.Equal(t, 2, num)

	record, err := store.LookupInvoice(ctx, invoice.PaymentHash())
	require.NoError(t, err)
	require.True(t, invoice.Equal(record.Invoice))
	require.Equal(t, preimage, record.Preimage.UnwrapOrFail(t))

	record, err = store.LookupInvoice(ctx, fntypes.Hash{5})
	require.NoError(t, err)
	require.True(t, hold.Equal(record.Invoice))
	require.True(t, record.Preimage.IsNone())

	// Duplicates are still detected after the reopen.
	err = store.InsertInvoice(ctx, invoice, fn.None[fntypes.Preimage]())
	require.ErrorIs(t, err, ErrDuplicateInvoice)
}

// TestKVStoreCorruption checks that records failing validation on load are
// reported as corrupted.
func TestKVStoreCorruption(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := newTestKVStore(t)

	invoice := newPreimageInvoice(t, makePreimage(6))
	var b bytes.Buffer
	require.NoError(t, serializeRecord(&b, &InvoiceRecord{
		Invoice: invoice,
	}))

	garbageHash := fntypes.Hash{1}
	movedHash := fntypes.Hash{2}

	err := kvdb.Update(store.db, func(tx kvdb.RwTx) error {
		bucket := tx.ReadWriteBucket(invoiceBucket)
		if err := bucket.Put(garbageHash[:], []byte{0xff}); err != nil {
			return err
		}

		// A valid record stored under a key that is not its hash.
		return bucket.Put(movedHash[:], b.Bytes())
	}, func() {})
	require.NoError(t, err)

	_, err = store.LookupInvoice(ctx, garbageHash)
	require.ErrorIs(t, err, ErrInvoiceCorrupted)

	_, err = store.LookupInvoice(ctx, movedHash)
	require.ErrorIs(t, err, ErrInvoiceCorrupted)
}

// TestKVStoreContext checks that a cancelled context is honored.
func TestKVStoreContext(t *testing.T) {
	t.Parallel()

	store, _ := newTestKVStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	invoice := newPreimageInvoice(t, makePreimage(8))
	err := store.InsertInvoice(ctx, invoice, fn.None[fntypes.Preimage]())
	require.ErrorIs(t, err, context.Canceled)

	_, err = store.LookupInvoice(ctx, invoice.PaymentHash())
	require.ErrorIs(t, err, context.Canceled)
}

// TestStoreUniquenessProperty checks, for random sequences of inserts, that
// the first insert of every hash wins and all later ones fail.
func TestStoreUniquenessProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		store := NewSyncStore()
		first := make(map[fntypes.Hash]*fpay32.Invoice)

		n := rapid.IntRange(1, 20).Draw(t, "inserts")
		for i := 0; i < n; i++ {
			// A small key space forces collisions.
			hash := fntypes.Hash{
				rapid.ByteRange(0, 4).Draw(t, "hash"),
			}
			invoice, err := fpay32.NewBuilder(fpay32.Fibd).
				Timestamp(testTimestamp).
				PaymentHash(hash).
				FinalCltv(uint64(i)).
				Build()
			require.NoError(t, err)

			err = store.InsertInvoice(
				ctx, invoice, fn.None[fntypes.Preimage](),
			)
			if _, seen := first[hash]; seen {
				require.ErrorIs(t, err, ErrDuplicateInvoice)
				continue
			}
			require.NoError(t, err)
			first[hash] = invoice
		}

		require.Equal(t, len(first), store.Len())
		for hash, invoice := range first {
			record, err := store.LookupInvoice(ctx, hash)
			require.NoError(t, err)
			require.True(t, invoice.Equal(record.Invoice))
		}
	})
}
