package invoices

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fiberlabs/fnd/fntypes"
	"github.com/fiberlabs/fnd/fpay32"
	"github.com/fiberlabs/fnd/lnutils"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// ServiceState is the lifecycle state of the invoice service.
type ServiceState int32

const (
	// ServiceIdle is the state before Start.
	ServiceIdle ServiceState = iota

	// ServiceRunning means commands are being accepted and processed.
	ServiceRunning

	// ServiceDraining means the service stopped accepting commands and is
	// answering the ones still queued.
	ServiceDraining

	// ServiceStopped means the command loop has exited.
	ServiceStopped
)

// String returns the name of the state.
func (s ServiceState) String() string {
	switch s {
	case ServiceIdle:
		return "Idle"
	case ServiceRunning:
		return "Running"
	case ServiceDraining:
		return "Draining"
	case ServiceStopped:
		return "Stopped"
	default:
		return fmt.Sprintf("ServiceState(%d)", int32(s))
	}
}

// ServiceConfig holds the dependencies of the invoice service.
type ServiceConfig struct {
	// Store is owned by the service for its whole lifetime. Nothing else
	// may touch it while the service runs.
	Store InvoiceStore

	// Clock provides invoice timestamps.
	Clock clock.Clock

	// NodeSigner, if set, binds the node key to every new invoice and
	// signs it.
	NodeSigner fn.Option[*fpay32.NodeSigner]

	// Metrics is optional.
	Metrics *Metrics
}

// Service is the single-writer invoice command loop. It owns its store and
// processes commands strictly in arrival order.
type Service struct {
	started sync.Once
	stopped sync.Once

	cfg *ServiceConfig

	commands <-chan *CommandRequest

	state atomic.Int32

	wg   sync.WaitGroup
	quit chan struct{}
	done chan struct{}
}

// NewService creates an invoice service reading from commands. The service
// is the sole consumer of the channel.
func NewService(cfg *ServiceConfig,
	commands <-chan *CommandRequest) *Service {

	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}

	return &Service{
		cfg:      cfg,
		commands: commands,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the command loop.
func (s *Service) Start() error {
	s.started.Do(func() {
		log.Info("Invoice service starting")

		s.state.Store(int32(ServiceRunning))

		s.wg.Add(1)
		go s.commandLoop()
	})

	return nil
}

// Stop signals the command loop to finish the command in flight, answer
// queued commands with ErrServiceShuttingDown and exit. It blocks until the
// loop has exited.
func (s *Service) Stop() error {
	s.stopped.Do(func() {
		log.Info("Invoice service shutting down...")

		// A service that never started must not start later, and its
		// clients must see it as gone.
		s.started.Do(func() {
			s.state.Store(int32(ServiceStopped))
			close(s.done)
		})

		close(s.quit)
		s.wg.Wait()

		log.Info("Invoice service shutdown complete")
	})

	return nil
}

// State returns the current lifecycle state.
func (s *Service) State() ServiceState {
	return ServiceState(s.state.Load())
}

// Done returns a channel that is closed once the command loop has exited.
func (s *Service) Done() <-chan struct{} {
	return s.done
}

// commandLoop is the goroutine that owns the store.
func (s *Service) commandLoop() {
	defer func() {
		s.state.Store(int32(ServiceStopped))
		close(s.done)
		s.wg.Done()
	}()

	// Commands are processed with a context that is cancelled only when
	// the loop exits, so the command in flight at Stop runs to completion.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		// Quit takes priority over queued commands.
		select {
		case <-s.quit:
			s.drain()
			return
		default:
		}

		select {
		case req, ok := <-s.commands:
			if !ok {
				log.Info("Invoice command channel closed")
				s.state.Store(int32(ServiceDraining))

				return
			}

			s.handleRequest(ctx, req)

		case <-s.quit:
			s.drain()
			return
		}
	}
}

// drain answers every command still queued with ErrServiceShuttingDown.
func (s *Service) drain() {
	s.state.Store(int32(ServiceDraining))

	var drained int
	for {
		select {
		case req, ok := <-s.commands:
			if !ok {
				log.Debugf("Drained %d queued commands",
					drained)
				return
			}

			if req == nil || req.Reply == nil {
				s.reportMissingReply(req)
				continue
			}

			req.Reply <- fn.Err[*InvoiceReply](
				ErrServiceShuttingDown,
			)
			drained++

		default:
			log.Debugf("Drained %d queued commands", drained)
			return
		}
	}
}

// handleRequest executes one command and sends its result.
func (s *Service) handleRequest(ctx context.Context, req *CommandRequest) {
	if req == nil || req.Reply == nil {
		s.reportMissingReply(req)
		return
	}

	name := commandName(req.Command)
	log.Infof("Processing invoice command %v", name)
	log.Tracef("Invoice command %v: %v", name,
		lnutils.SpewLogClosure(req.Command))

	start := s.cfg.Clock.Now()
	reply, err := s.execute(ctx, req.Command)
	s.cfg.Metrics.observeCommand(name, err, s.cfg.Clock.Now().Sub(start))

	if err != nil {
		log.Errorf("Invoice command %v failed (%v): %v", name,
			ClassifyError(err), err)

		req.Reply <- fn.Err[*InvoiceReply](err)

		return
	}

	log.Infof("Invoice command %v processed: payment_hash=%v", name,
		reply.PaymentHash)

	req.Reply <- fn.Ok(reply)
}

// reportMissingReply logs and counts a request that cannot be answered.
func (s *Service) reportMissingReply(req *CommandRequest) {
	var name string
	if req != nil {
		name = commandName(req.Command)
	}

	log.Criticalf("Dropping invoice command %q: %v", name,
		ErrMissingReplyChannel)
	s.cfg.Metrics.missingReplyChan()
}

// execute dispatches a command to its handler.
func (s *Service) execute(ctx context.Context,
	cmd Command) (*InvoiceReply, error) {

	switch c := cmd.(type) {
	case *NewInvoiceCommand:
		return s.newInvoice(ctx, &c.Params)

	case *ParseInvoiceCommand:
		return parseInvoice(c.Invoice)

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
}

// newInvoice builds an invoice and inserts it into the store. The store is
// not touched unless the invoice builds.
func (s *Service) newInvoice(ctx context.Context,
	params *NewInvoiceParams) (*InvoiceReply, error) {

	b, err := params.Builder(s.cfg.Clock.Now())
	if err != nil {
		return nil, err
	}

	s.cfg.NodeSigner.WhenSome(func(signer *fpay32.NodeSigner) {
		b = signer.Apply(b)
	})

	invoice, err := b.Build()
	if err != nil {
		return nil, err
	}

	reply, err := newInvoiceReply(invoice)
	if err != nil {
		return nil, err
	}

	err = s.cfg.Store.InsertInvoice(
		ctx, invoice, fn.None[fntypes.Preimage](),
	)
	if err != nil {
		return nil, err
	}
	s.cfg.Metrics.invoiceStored()

	return reply, nil
}

// parseInvoice decodes an invoice string.
func parseInvoice(text string) (*InvoiceReply, error) {
	invoice, err := fpay32.Decode(text)
	if err != nil {
		return nil, err
	}

	return newInvoiceReply(invoice)
}

// commandName returns the name of cmd, tolerating nil.
func commandName(cmd Command) string {
	if cmd == nil {
		return "<nil>"
	}

	return cmd.Name()
}
