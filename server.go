package fnd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fiberlabs/fnd/fncfg"
	"github.com/fiberlabs/fnd/fnrpc"
	"github.com/fiberlabs/fnd/fnrpc/invoicesrpc"
	"github.com/fiberlabs/fnd/fntypes"
	"github.com/fiberlabs/fnd/fpay32"
	"github.com/fiberlabs/fnd/invoices"
	"github.com/fiberlabs/fnd/monitoring"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/healthcheck"
	"github.com/lightningnetwork/lnd/kvdb"
	"golang.org/x/sync/errgroup"
)

// server is the main daemon server. It hosts the invoice service, the
// JSON-RPC server and the optional Prometheus exporter.
type server struct {
	started  int32 // To be used atomically.
	shutdown int32 // To be used atomically.

	cfg *Config

	clock clock.Clock

	// db is the bolt backend behind rpcStore. It is nil for the memory
	// backend.
	db kvdb.Backend

	// rpcStore is the shared store the RPC invoice methods work on.
	rpcStore invoices.InvoiceStore

	// countInvoices reports the size of rpcStore.
	countInvoices invoiceCounter

	// commandQueue is set instead of a bounded channel when the invoice
	// mailbox is unbounded.
	commandQueue *fn.ConcurrentQueue[*invoices.CommandRequest]

	invoiceService *invoices.Service
	invoiceClient  *invoices.Client

	// probeInvoice is the encoded invoice the service health check asks
	// the invoice service to parse.
	probeInvoice string
	probeHash    string

	rpcServer   *fnrpc.Server
	httpServers []*http.Server

	exporter fn.Option[*monitoring.Exporter]

	livenessMonitor *healthcheck.Monitor
}

// newServer creates a new instance of the server and wires all of its
// subsystems. requestShutdown is called when a critical health check fails.
func newServer(cfg *Config, clk clock.Clock,
	requestShutdown func()) (*server, error) {

	s := &server{
		cfg:   cfg,
		clock: clk,
	}

	registry, err := monitoring.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("unable to create metrics registry: %w",
			err)
	}

	metrics, err := invoices.NewMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("unable to register invoice metrics: %w",
			err)
	}

	if err := s.initRPCStore(); err != nil {
		return nil, err
	}

	// The fnd_rpc_invoices gauge needs the store, so the daemon gauges
	// are registered once it is open.
	err = registerDaemonMetrics(registry, s.countInvoices, clk)
	if err != nil {
		s.closeDB()
		return nil, fmt.Errorf("unable to register daemon metrics: %w",
			err)
	}

	// The invoice service always owns a private store. Nothing but the
	// service itself may touch it.
	var (
		commandsIn  chan<- *invoices.CommandRequest
		commandsOut <-chan *invoices.CommandRequest
	)
	if cfg.Invoices.Unbounded() {
		type request = *invoices.CommandRequest
		s.commandQueue = fn.NewConcurrentQueue[request](
			fncfg.DefaultMailboxSize,
		)
		commandsIn = s.commandQueue.ChanIn()
		commandsOut = s.commandQueue.ChanOut()
	} else {
		commands := make(
			chan *invoices.CommandRequest, cfg.Invoices.MailboxSize,
		)
		commandsIn, commandsOut = commands, commands
	}

	s.invoiceService = invoices.NewService(&invoices.ServiceConfig{
		Store:      invoices.NewMapStore(),
		Clock:      clk,
		NodeSigner: cfg.NodeSigner,
		Metrics:    metrics,
	}, commandsOut)
	s.invoiceClient = invoices.NewClient(
		commandsIn, s.invoiceService.Done(),
	)

	if err := s.initProbeInvoice(); err != nil {
		s.closeDB()
		return nil, err
	}

	invoiceRPC, err := invoicesrpc.New(&invoicesrpc.Config{
		Store:      s.rpcStore,
		Clock:      clk,
		NodeSigner: cfg.NodeSigner,
	})
	if err != nil {
		s.closeDB()
		return nil, err
	}

	s.rpcServer = fnrpc.NewServer(fnrpc.ServerConfig{
		MaxRequestSize: cfg.RPC.MaxRequestSize,
		PingInterval:   cfg.RPC.WSPingInterval,
		PongWait:       cfg.RPC.WSPongWait,
	})
	if err := invoiceRPC.RegisterMethods(s.rpcServer); err != nil {
		s.closeDB()
		return nil, err
	}

	for range cfg.RPCListeners {
		s.httpServers = append(s.httpServers, &http.Server{
			Handler:           s.rpcServer,
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	if cfg.Prometheus.Enabled() {
		s.exporter = fn.Some(
			monitoring.NewExporter(cfg.Prometheus, registry),
		)
	}

	s.livenessMonitor = healthcheck.NewMonitor(&healthcheck.Config{
		Checks: s.healthChecks(),
		Shutdown: func(format string, params ...interface{}) {
			fndLog.Criticalf("Health check: "+format, params...)
			requestShutdown()
		},
	})

	return s, nil
}

// initRPCStore opens the store shared by the RPC invoice methods.
func (s *server) initRPCStore() error {
	if !s.cfg.DB.Persistent() {
		store := invoices.NewSyncStore()
		s.rpcStore = store
		s.countInvoices = func() (int, error) {
			return store.Len(), nil
		}

		fndLog.Infof("Using in-memory invoice store, invoices are " +
			"lost on shutdown")

		return nil
	}

	dbPath := s.cfg.InvoiceDBPath()
	store, db, err := invoices.OpenBoltStore(
		dbPath, s.cfg.DB.Bolt.NoFreelistSync,
	)
	if err != nil {
		return err
	}
	s.db = db
	s.rpcStore = store
	s.countInvoices = store.NumInvoices

	fndLog.Infof("Opened invoice database at %v", dbPath)

	return nil
}

// initProbeInvoice builds the invoice used by the service health check.
func (s *server) initProbeInvoice() error {
	preimage, err := fntypes.RandomPreimage()
	if err != nil {
		return err
	}

	invoice, err := fpay32.NewBuilder(s.cfg.Currency).
		PaymentPreimage(*preimage).
		Timestamp(s.clock.Now()).
		Description("fnd health check").
		Build()
	if err != nil {
		return fmt.Errorf("unable to build probe invoice: %w", err)
	}

	s.probeInvoice, err = invoice.Encode()
	if err != nil {
		return fmt.Errorf("unable to encode probe invoice: %w", err)
	}
	s.probeHash = invoice.PaymentHashID()

	return nil
}

// healthChecks returns the enabled liveness checks.
func (s *server) healthChecks() []*healthcheck.Observation {
	var (
		checks []*healthcheck.Observation
		hc     = s.cfg.HealthChecks
	)

	if hc.DiskCheck.Enabled() {
		checks = append(checks, healthcheck.NewObservation(
			"disk space", s.checkDiskSpace,
			hc.DiskCheck.Interval, hc.DiskCheck.Timeout,
			hc.DiskCheck.Backoff, hc.DiskCheck.Attempts,
		))
	}

	if s.db != nil && hc.DBCheck.Enabled() {
		checks = append(checks, healthcheck.NewObservation(
			"database",
			func() error {
				_, err := s.countInvoices()
				return err
			},
			hc.DBCheck.Interval, hc.DBCheck.Timeout,
			hc.DBCheck.Backoff, hc.DBCheck.Attempts,
		))
	}

	if hc.ServiceCheck.Enabled() {
		checks = append(checks, healthcheck.NewObservation(
			"invoice service",
			func() error {
				return s.checkInvoiceService(
					hc.ServiceCheck.Timeout,
				)
			},
			hc.ServiceCheck.Interval, hc.ServiceCheck.Timeout,
			hc.ServiceCheck.Backoff, hc.ServiceCheck.Attempts,
		))
	}

	return checks
}

// checkDiskSpace fails if the free space ratio of the data directory drops
// to the configured minimum.
func (s *server) checkDiskSpace() error {
	required := s.cfg.HealthChecks.DiskCheck.RequiredRemaining

	free, err := healthcheck.AvailableDiskSpaceRatio(s.cfg.DataDir)
	if err != nil {
		return err
	}

	// If we have more free space than we require, we return a nil error.
	if free > required {
		return nil
	}

	return fmt.Errorf("require: %v free space, got: %v", required, free)
}

// checkInvoiceService asks the invoice service to parse the probe invoice
// and checks the answer.
func (s *server) checkInvoiceService(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	reply, err := s.invoiceClient.ParseInvoice(ctx, s.probeInvoice)
	if err != nil {
		return err
	}

	if reply.PaymentHash != s.probeHash {
		return fmt.Errorf("invoice service returned payment hash %v, "+
			"want %v", reply.PaymentHash, s.probeHash)
	}

	return nil
}

// Start starts the invoice service, the exporter and the liveness monitor.
// The RPC listeners are served by serve.
func (s *server) Start() error {
	// Already running?
	if atomic.AddInt32(&s.started, 1) != 1 {
		return nil
	}

	if s.commandQueue != nil {
		s.commandQueue.Start()
	}

	if err := s.invoiceService.Start(); err != nil {
		return err
	}

	var err error
	s.exporter.WhenSome(func(e *monitoring.Exporter) {
		err = e.Start()
	})
	if err != nil {
		return fmt.Errorf("unable to start prometheus exporter: %w",
			err)
	}

	if err := s.livenessMonitor.Start(); err != nil {
		return fmt.Errorf("unable to start liveness monitor: %w", err)
	}

	return nil
}

// serve opens the RPC listeners and serves each one in group. A listener
// failing cancels the group context.
func (s *server) serve(group *errgroup.Group) error {
	for i, addr := range s.cfg.RPCListeners {
		lis, err := fncfg.ListenOnAddress(addr)
		if err != nil {
			return fmt.Errorf("unable to listen on %v: %w", addr,
				err)
		}

		srv := s.httpServers[i]
		group.Go(func() error {
			fndLog.Infof("JSON-RPC server listening on %v",
				lis.Addr())

			err := srv.Serve(lis)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}

			return fmt.Errorf("JSON-RPC server on %v failed: %w",
				lis.Addr(), err)
		})
	}

	return nil
}

// Stop gracefully shuts down every subsystem and closes the database. It
// blocks until the RPC servers have closed their listeners.
func (s *server) Stop() error {
	// Bail if we're already shutting down.
	if atomic.AddInt32(&s.shutdown, 1) != 1 {
		return nil
	}

	fndLog.Info("Server shutting down...")

	var wg sync.WaitGroup
	for _, srv := range s.httpServers {
		wg.Add(1)
		go func(srv *http.Server) {
			defer wg.Done()

			if err := srv.Close(); err != nil {
				fndLog.Errorf("Unable to close JSON-RPC "+
					"server: %v", err)
			}
		}(srv)
	}
	wg.Wait()

	if err := s.livenessMonitor.Stop(); err != nil {
		fndLog.Errorf("Unable to stop liveness monitor: %v", err)
	}

	s.exporter.WhenSome(func(e *monitoring.Exporter) {
		if err := e.Stop(); err != nil {
			fndLog.Errorf("Unable to stop prometheus exporter: %v",
				err)
		}
	})

	if err := s.invoiceService.Stop(); err != nil {
		fndLog.Errorf("Unable to stop invoice service: %v", err)
	}

	if s.commandQueue != nil {
		s.commandQueue.Stop()
	}

	s.closeDB()

	return nil
}

// closeDB closes the invoice database, if one is open.
func (s *server) closeDB() {
	if s.db == nil {
		return
	}

	if err := s.db.Close(); err != nil {
		fndLog.Errorf("Unable to close invoice database: %v", err)
	}
}
