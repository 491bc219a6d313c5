package invoicesrpc

import (
	"context"
	"errors"

	"github.com/fiberlabs/fnd/fnrpc"
	"github.com/fiberlabs/fnd/fpay32"
	"github.com/fiberlabs/fnd/lnutils"
	"github.com/lightningnetwork/lnd/clock"
)

// Method names served by Server.
const (
	MethodNewInvoice   = "new_invoice"
	MethodParseInvoice = "parse_invoice"
	MethodGetInvoice   = "get_invoice"
)

var errNoStore = errors.New("invoice rpc server requires a store")

// InvoiceStatus is the state of a stored invoice.
type InvoiceStatus string

const (
	// StatusOpen is the status of an invoice that can still be paid.
	StatusOpen InvoiceStatus = "Open"

	// StatusExpired is the status of an invoice past its expiry.
	StatusExpired InvoiceStatus = "Expired"
)

// ParseInvoiceParams are the params of parse_invoice.
type ParseInvoiceParams struct {
	Invoice string `json:"invoice"`
}

// ParseInvoiceResult is the result of parse_invoice.
type ParseInvoiceResult struct {
	Invoice *fpay32.Invoice `json:"invoice"`
}

// GetInvoiceParams are the params of get_invoice.
type GetInvoiceParams struct {
	PaymentHash string `json:"payment_hash"`
}

// GetInvoiceResult is the result of get_invoice.
type GetInvoiceResult struct {
	InvoiceAddress string          `json:"invoice_address"`
	Invoice        *fpay32.Invoice `json:"invoice"`
	Status         InvoiceStatus   `json:"status"`
}

// Server serves the invoice methods against a shared store. It does not go
// through the invoice service, so concurrent calls rely on the store's own
// synchronization.
type Server struct {
	cfg *Config
}

// New creates an invoice rpc server.
func New(cfg *Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errNoStore
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}

	return &Server{cfg: cfg}, nil
}

// RegisterMethods registers the invoice methods on rpcServer.
func (s *Server) RegisterMethods(rpcServer *fnrpc.Server) error {
	methods := map[string]fnrpc.Handler{
		MethodNewInvoice:   fnrpc.NewHandler(s.NewInvoice),
		MethodParseInvoice: fnrpc.NewHandler(s.ParseInvoice),
		MethodGetInvoice:   fnrpc.NewHandler(s.GetInvoice),
	}
	for name, h := range methods {
		if err := rpcServer.RegisterMethod(name, h); err != nil {
			return err
		}
	}

	return nil
}

// NewInvoice creates, signs and stores a new invoice.
func (s *Server) NewInvoice(ctx context.Context,
	params *NewInvoiceParams) (*NewInvoiceResult, error) {

	result, err := AddInvoice(ctx, s.cfg, params)
	if err != nil {
		log.Errorf("%v params %v => error: %v", MethodNewInvoice,
			lnutils.SpewLogClosure(params), err)

		return nil, err
	}

	return result, nil
}

// ParseInvoice decodes an invoice string.
func (s *Server) ParseInvoice(_ context.Context,
	params *ParseInvoiceParams) (*ParseInvoiceResult, error) {

	invoice, err := fpay32.Decode(params.Invoice)
	if err != nil {
		log.Debugf("%v params %v => error: %v", MethodParseInvoice,
			params.Invoice, err)

		return nil, parseInvoiceError(err, params)
	}

	return &ParseInvoiceResult{Invoice: invoice}, nil
}

// GetInvoice returns the invoice stored under the payment hash.
func (s *Server) GetInvoice(ctx context.Context,
	params *GetInvoiceParams) (*GetInvoiceResult, error) {

	hash, err := fpay32.ParsePaymentHash(params.PaymentHash)
	if err != nil {
		return nil, fnrpc.NewError(
			fnrpc.CodeInvalidParams, err.Error(), params,
		)
	}

	record, err := s.cfg.Store.LookupInvoice(ctx, hash)
	if err != nil {
		return nil, storeError(err, params)
	}

	invoiceAddress, err := record.Invoice.Encode()
	if err != nil {
		return nil, fnrpc.NewError(
			fnrpc.CodeInternalError, err.Error(), params,
		)
	}

	status := StatusOpen
	if record.Invoice.IsExpired(s.cfg.Clock.Now()) {
		status = StatusExpired
	}

	return &GetInvoiceResult{
		InvoiceAddress: invoiceAddress,
		Invoice:        record.Invoice,
		Status:         status,
	}, nil
}
