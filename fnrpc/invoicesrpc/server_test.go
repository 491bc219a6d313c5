package invoicesrpc

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/fiberlabs/fnd/fnrpc"
	"github.com/fiberlabs/fnd/fntypes"
	"github.com/fiberlabs/fnd/fpay32"
	"github.com/fiberlabs/fnd/invoices"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testTimestamp = time.Unix(1700000000, 0)

const testPreimage = "0x0101010101010101010101010101010101010101010101010101" +
	"010101010101"

type mockStore struct {
	mock.Mock
}

// InsertInvoice mocks storing an invoice.
func (m *mockStore) InsertInvoice(_ context.Context, invoice *fpay32.Invoice,
	_ fn.Option[fntypes.Preimage]) error {

	args := m.Called(invoice.PaymentHash())
	return args.Error(0)
}

// LookupInvoice mocks loading an invoice.
func (m *mockStore) LookupInvoice(_ context.Context,
	hash fntypes.Hash) (*invoices.InvoiceRecord, error) {

	args := m.Called(hash)

	err := args.Error(1)
	if err != nil {
		return nil, err
	}

	return args.Get(0).(*invoices.InvoiceRecord), nil
}

func newTestServer(t *testing.T, store invoices.InvoiceStore,
	signer fn.Option[*fpay32.NodeSigner]) (*Server, *clock.TestClock) {

	t.Helper()

	testClock := clock.NewTestClock(testTimestamp)
	server, err := New(&Config{
		Store:      store,
		Clock:      testClock,
		NodeSigner: signer,
	})
	require.NoError(t, err)

	return server, testClock
}

func newParams() *NewInvoiceParams {
	currency := fpay32.Fibt
	amount := fntypes.NewU128(1000)
	expiry := fntypes.HexUint64(3600)

	return &NewInvoiceParams{
		Currency:        &currency,
		Amount:          &amount,
		PaymentPreimage: testPreimage,
		Expiry:          &expiry,
	}
}

func requireCode(t *testing.T, err error, code int, params any) {
	t.Helper()

	var rpcErr *fnrpc.Error
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, code, rpcErr.Code, rpcErr.Message)
	require.Equal(t, params, rpcErr.Data)
}

// TestNewInvoice checks that a new invoice is signed, stored and returned
// with its text form.
func TestNewInvoice(t *testing.T) {
	t.Parallel()

	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	store := invoices.NewSyncStore()
	server, testClock := newTestServer(
		t, store, fn.Some(fpay32.NewNodeSigner(key)),
	)
	ctx := context.Background()

	params := newParams()
	result, err := server.NewInvoice(ctx, params)
	require.NoError(t, err)

	decoded, err := fpay32.Decode(result.InvoiceAddress)
	require.NoError(t, err)
	require.True(t, decoded.Equal(result.Invoice))
	require.True(t, result.Invoice.PaymentPreimage().IsSome())
	require.True(t, testTimestamp.Equal(result.Invoice.Timestamp()))
	require.True(t, key.PubKey().IsEqual(
		result.Invoice.PayeePubKey().UnwrapOrFail(t),
	))

	record, err := store.LookupInvoice(ctx, result.Invoice.PaymentHash())
	require.NoError(t, err)
	require.True(t, record.Preimage.IsSome())

	getParams := &GetInvoiceParams{
		PaymentHash: result.Invoice.PaymentHashID(),
	}
	got, err := server.GetInvoice(ctx, getParams)
	require.NoError(t, err)
	require.Equal(t, StatusOpen, got.Status)
	require.Equal(t, result.InvoiceAddress, got.InvoiceAddress)

	testClock.SetTime(testTimestamp.Add(2 * time.Hour))
	got, err = server.GetInvoice(ctx, getParams)
	require.NoError(t, err)
	require.Equal(t, StatusExpired, got.Status)

	// The same preimage can't be used twice.
	_, err = server.NewInvoice(ctx, params)
	requireCode(t, err, CodeDuplicateInvoice, params)
}

// TestNewInvoiceErrors checks the error code of each rejected request.
func TestNewInvoiceErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(p *NewInvoiceParams)
		expCode int
	}{
		{
			name: "missing currency",
			mutate: func(p *NewInvoiceParams) {
				p.Currency = nil
			},
			expCode: fnrpc.CodeInvalidParams,
		},
		{
			name: "missing preimage",
			mutate: func(p *NewInvoiceParams) {
				p.PaymentPreimage = ""
			},
			expCode: CodeMissingPaymentIdentifier,
		},
		{
			name: "short preimage",
			mutate: func(p *NewInvoiceParams) {
				p.PaymentPreimage = "0x0102"
			},
			expCode: fnrpc.CodeInvalidParams,
		},
		{
			name: "bad hex",
			mutate: func(p *NewInvoiceParams) {
				p.PaymentPreimage = strings.Repeat("zz", 32)
			},
			expCode: fnrpc.CodeInvalidParams,
		},
		{
			name: "description too large",
			mutate: func(p *NewInvoiceParams) {
				desc := strings.Repeat("d", 640)
				p.Description = &desc
			},
			expCode: CodeFieldTooLarge,
		},
		{
			name: "expiry overflows duration",
			mutate: func(p *NewInvoiceParams) {
				expiry := fntypes.HexUint64(
					fpay32.MaxExpirySecs + 1,
				)
				p.Expiry = &expiry
			},
			expCode: fnrpc.CodeInvalidParams,
		},
		{
			name: "max uint64 expiry",
			mutate: func(p *NewInvoiceParams) {
				expiry := fntypes.HexUint64(^uint64(0))
				p.Expiry = &expiry
			},
			expCode: fnrpc.CodeInvalidParams,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			server, _ := newTestServer(
				t, invoices.NewSyncStore(),
				fn.None[*fpay32.NodeSigner](),
			)

			params := newParams()
			test.mutate(params)

			_, err := server.NewInvoice(
				context.Background(), params,
			)
			requireCode(t, err, test.expCode, params)
		})
	}
}

// TestNewInvoiceStoreFailure checks that a failing store is reported as an
// internal error.
func TestNewInvoiceStoreFailure(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	store.On("InsertInvoice", mock.Anything).Return(
		errors.New("disk full"),
	)
	store.On("LookupInvoice", mock.Anything).Return(
		nil, invoices.ErrInvoiceCorrupted,
	)

	server, _ := newTestServer(t, store, fn.None[*fpay32.NodeSigner]())
	ctx := context.Background()

	params := newParams()
	_, err := server.NewInvoice(ctx, params)
	requireCode(t, err, fnrpc.CodeInternalError, params)

	getParams := &GetInvoiceParams{PaymentHash: testPreimage}
	_, err = server.GetInvoice(ctx, getParams)
	requireCode(t, err, fnrpc.CodeInternalError, getParams)

	store.AssertExpectations(t)
}

// TestNewInvoiceConcurrentDuplicate checks that exactly one of several
// concurrent calls with the same preimage succeeds.
func TestNewInvoiceConcurrentDuplicate(t *testing.T) {
	t.Parallel()

	const numCallers = 8

	server, _ := newTestServer(
		t, invoices.NewSyncStore(), fn.None[*fpay32.NodeSigner](),
	)

	var (
		wg   sync.WaitGroup
		errs = make(chan error, numCallers)
	)
	for i := 0; i < numCallers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := server.NewInvoice(
				context.Background(), newParams(),
			)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded int
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}

		var rpcErr *fnrpc.Error
		require.ErrorAs(t, err, &rpcErr)
		require.Equal(t, CodeDuplicateInvoice, rpcErr.Code)
	}
	require.Equal(t, 1, succeeded)
}

// TestParseInvoice checks decoding and decode failures.
func TestParseInvoice(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(
		t, invoices.NewSyncStore(), fn.None[*fpay32.NodeSigner](),
	)
	ctx := context.Background()

	created, err := server.NewInvoice(ctx, newParams())
	require.NoError(t, err)

	parsed, err := server.ParseInvoice(ctx, &ParseInvoiceParams{
		Invoice: created.InvoiceAddress,
	})
	require.NoError(t, err)
	require.True(t, parsed.Invoice.Equal(created.Invoice))

	params := &ParseInvoiceParams{Invoice: "fibt1garbage"}
	_, err = server.ParseInvoice(ctx, params)
	requireCode(t, err, CodeDecode, params)
}

// TestGetInvoiceErrors checks lookups of malformed and unknown hashes.
func TestGetInvoiceErrors(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(
		t, invoices.NewSyncStore(), fn.None[*fpay32.NodeSigner](),
	)
	ctx := context.Background()

	params := &GetInvoiceParams{PaymentHash: "0x1234"}
	_, err := server.GetInvoice(ctx, params)
	requireCode(t, err, fnrpc.CodeInvalidParams, params)

	params = &GetInvoiceParams{PaymentHash: testPreimage}
	_, err = server.GetInvoice(ctx, params)
	requireCode(t, err, CodeInvoiceNotFound, params)
}

// TestRegisterMethods checks the invoice methods over HTTP, including the
// params echoed in error objects.
func TestRegisterMethods(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(
		t, invoices.NewSyncStore(), fn.None[*fpay32.NodeSigner](),
	)

	rpcServer := fnrpc.NewServer(fnrpc.ServerConfig{})
	require.NoError(t, server.RegisterMethods(rpcServer))
	require.ElementsMatch(t, []string{
		MethodNewInvoice, MethodParseInvoice, MethodGetInvoice,
	}, rpcServer.Methods())

	ts := httptest.NewServer(rpcServer)
	t.Cleanup(ts.Close)

	client := fnrpc.NewClient(ts.URL, ts.Client())
	ctx := context.Background()

	var created struct {
		InvoiceAddress string `json:"invoice_address"`
	}
	err := client.Call(ctx, MethodNewInvoice, map[string]any{
		"currency":         "Fibt",
		"amount":           "0x3e8",
		"payment_preimage": testPreimage,
		"hash_algorithm":   "sha256",
		"final_cltv":       "0x28",
	}, &created)
	require.NoError(t, err)

	invoice, err := fpay32.Decode(created.InvoiceAddress)
	require.NoError(t, err)
	require.Equal(t, fntypes.Sha256, invoice.HashAlgorithm())
	require.Equal(t, uint64(40), invoice.FinalCltv().UnwrapOrFail(t))

	err = client.Call(ctx, MethodParseInvoice, []any{
		&ParseInvoiceParams{Invoice: "garbage"},
	}, nil)
	var rpcErr *fnrpc.Error
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, CodeDecode, rpcErr.Code)
	require.Equal(t, map[string]any{"invoice": "garbage"}, rpcErr.Data)

	err = client.Call(ctx, MethodNewInvoice, map[string]any{
		"currency":         "Fibx",
		"payment_preimage": testPreimage,
	}, nil)
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, fnrpc.CodeInvalidParams, rpcErr.Code)
}
