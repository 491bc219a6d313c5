package fnd

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/fiberlabs/fnd/fncfg"
	"github.com/fiberlabs/fnd/fnrpc"
	"github.com/fiberlabs/fnd/fnrpc/invoicesrpc"
	"github.com/fiberlabs/fnd/fpay32"
	"github.com/fiberlabs/fnd/invoices"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var testTime = time.Unix(1700000000, 0)

// freeAddr returns a loopback address nothing listens on.
func freeAddr(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	return addr
}

// startTestServer creates and starts a server for cfg and serves its RPC
// listeners in group.
func startTestServer(t *testing.T, cfg *Config,
	requestShutdown func()) (*server, *errgroup.Group) {

	t.Helper()

	srv, err := newServer(
		cfg, clock.NewTestClock(testTime), requestShutdown,
	)
	require.NoError(t, err)
	require.NoError(t, srv.Start())

	group := &errgroup.Group{}
	require.NoError(t, srv.serve(group))

	return srv, group
}

// TestServerRPC checks that invoices created over JSON-RPC can be fetched
// again and are counted by the store collector.
func TestServerRPC(t *testing.T) {
	rpcAddr := freeAddr(t)
	promAddr := freeAddr(t)
	cfg := newTestConfig(t, func(cfg *Config) {
		cfg.RPC.Listen = []string{rpcAddr}
		cfg.NodeKey = testNodeKey
		cfg.Prometheus = fncfg.Prometheus{
			Enable: true,
			Listen: promAddr,
		}
	})

	srv, group := startTestServer(t, cfg, func() {})

	ctx := context.Background()
	client := fnrpc.NewClient("http://"+rpcAddr, nil)

	var created struct {
		InvoiceAddress string `json:"invoice_address"`
	}
	err := client.Call(ctx, invoicesrpc.MethodNewInvoice, map[string]any{
		"currency":         "Fibt",
		"amount":           "0x64",
		"payment_preimage": "0x" + strings.Repeat("02", 32),
		"description":      "coffee",
	}, &created)
	require.NoError(t, err)
	invoice, err := fpay32.Decode(created.InvoiceAddress)
	require.NoError(t, err)
	require.True(t, invoice.PayeePubKey().IsSome())
	require.True(t, invoice.Timestamp().Equal(testTime))

	var fetched struct {
		InvoiceAddress string                    `json:"invoice_address"` //nolint:lll
		Status         invoicesrpc.InvoiceStatus `json:"status"`
	}
	err = client.Call(ctx, invoicesrpc.MethodGetInvoice, map[string]any{
		"payment_hash": invoice.PaymentHashID(),
	}, &fetched)
	require.NoError(t, err)
	require.Equal(t, created.InvoiceAddress, fetched.InvoiceAddress)
	require.Equal(t, invoicesrpc.StatusOpen, fetched.Status)

	resp, err := http.Get("http://" + promAddr + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Contains(t, string(body), "fnd_rpc_invoices 1")
	require.Contains(t, string(body), "fnd_uptime_seconds")

	require.NoError(t, srv.Stop())
	require.NoError(t, srv.Stop())
	require.NoError(t, group.Wait())
	require.Equal(t, invoices.ServiceStopped, srv.invoiceService.State())
}

// TestServerBoltStore checks that the bolt store survives a restart of the
// server.
func TestServerBoltStore(t *testing.T) {
	cfg := newTestConfig(t, func(cfg *Config) {
		cfg.RPC.Listen = []string{freeAddr(t)}
		cfg.DB.Backend = fncfg.BoltBackend
	})

	invoiceParams := map[string]any{
		"currency":         "Fibt",
		"payment_preimage": "0x" + strings.Repeat("03", 32),
	}

	srv, group := startTestServer(t, cfg, func() {})
	client := fnrpc.NewClient("http://"+cfg.RPCListeners[0].String(), nil)
	err := client.Call(
		context.Background(), invoicesrpc.MethodNewInvoice,
		invoiceParams, nil,
	)
	require.NoError(t, err)
	require.NoError(t, srv.Stop())
	require.NoError(t, group.Wait())

	require.FileExists(t, cfg.InvoiceDBPath())

	srv, group = startTestServer(t, cfg, func() {})
	num, err := srv.countInvoices()
	require.NoError(t, err)
	require.Equal(t, 1, num)

	// The invoice is still known, so inserting it again is a duplicate.
	err = client.Call(
		context.Background(), invoicesrpc.MethodNewInvoice,
		invoiceParams, nil,
	)
	var rpcErr *fnrpc.Error
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, invoicesrpc.CodeDuplicateInvoice, rpcErr.Code)

	require.NoError(t, srv.Stop())
	require.NoError(t, group.Wait())
}

// TestServerServiceCheck checks the invoice service liveness check for both
// mailbox kinds.
func TestServerServiceCheck(t *testing.T) {
	for _, mailboxSize := range []int{0, fncfg.DefaultMailboxSize} {
		cfg := newTestConfig(t, func(cfg *Config) {
			cfg.RPC.Listen = []string{freeAddr(t)}
			cfg.DB.Backend = fncfg.MemoryBackend
			cfg.Invoices.MailboxSize = mailboxSize
		})

		srv, group := startTestServer(t, cfg, func() {})
		require.Equal(t, mailboxSize == 0, srv.commandQueue != nil)
		require.NoError(t, srv.checkInvoiceService(time.Second))

		require.NoError(t, srv.Stop())
		require.NoError(t, group.Wait())

		err := srv.checkInvoiceService(time.Second)
		require.ErrorIs(t, err, invoices.ErrServiceShuttingDown)
	}
}

// TestServerHealthChecks checks which liveness checks are enabled.
func TestServerHealthChecks(t *testing.T) {
	cfg := newTestConfig(t, func(cfg *Config) {
		cfg.DB.Backend = fncfg.MemoryBackend
		cfg.HealthChecks.DiskCheck.Attempts = 1
	})

	srv, err := newServer(cfg, clock.NewTestClock(testTime), func() {})
	require.NoError(t, err)

	// The database check only runs for the bolt backend.
	require.Len(t, srv.healthChecks(), 2)

	srv.cfg.HealthChecks.DiskCheck.RequiredRemaining = 0
	require.NoError(t, srv.checkDiskSpace())

	srv.cfg.HealthChecks.DiskCheck.RequiredRemaining = 1
	require.ErrorContains(t, srv.checkDiskSpace(), "free space")

	require.NoError(t, srv.Stop())
}

// TestServerListenError checks that serve reports listeners it can't open.
func TestServerListenError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	cfg := newTestConfig(t, func(cfg *Config) {
		cfg.RPC.Listen = []string{l.Addr().String()}
		cfg.DB.Backend = fncfg.MemoryBackend
	})

	srv, err := newServer(cfg, clock.NewTestClock(testTime), func() {})
	require.NoError(t, err)
	require.NoError(t, srv.Start())

	group := &errgroup.Group{}
	require.ErrorContains(t, srv.serve(group), "unable to listen")

	require.NoError(t, srv.Stop())
	require.NoError(t, group.Wait())
}
