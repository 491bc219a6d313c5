package invoices

import (
	"github.com/fiberlabs/fnd/fpay32"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Command is a request understood by the invoice service. The set of
// commands is closed: only types in this package implement it.
type Command interface {
	// Name returns the command name used in logs and metrics.
	Name() string

	sealed()
}

// NewInvoiceCommand builds a new invoice from Params and inserts it into the
// service's store.
type NewInvoiceCommand struct {
	Params NewInvoiceParams
}

// Name returns the command name.
func (c *NewInvoiceCommand) Name() string { return "NewInvoice" }

func (c *NewInvoiceCommand) sealed() {}

// ParseInvoiceCommand decodes the invoice text in Invoice. The store is not
// touched.
type ParseInvoiceCommand struct {
	Invoice string
}

// Name returns the command name.
func (c *ParseInvoiceCommand) Name() string { return "ParseInvoice" }

func (c *ParseInvoiceCommand) sealed() {}

// CommandRequest pairs a command with the channel its result is sent on.
//
// NOTE: Reply must not be nil and should have room for one value, since the
// service loop blocks on the send. A nil Reply is a contract violation: the
// service logs it at critical level, counts it and drops the command without
// executing it.
type CommandRequest struct {
	Command Command
	Reply   chan<- fn.Result[*InvoiceReply]
}

// InvoiceReply is the success payload of every command.
type InvoiceReply struct {
	// Invoice is the built or decoded invoice.
	Invoice *fpay32.Invoice `json:"invoice"`

	// EncodePayment is the canonical text form of Invoice.
	EncodePayment string `json:"encode_payment"`

	// PaymentHash is the invoice identifier, 0x-prefixed hex.
	PaymentHash string `json:"payment_hash"`
}

// newInvoiceReply bundles an invoice with its text form and identifier.
func newInvoiceReply(invoice *fpay32.Invoice) (*InvoiceReply, error) {
	encoded, err := invoice.Encode()
	if err != nil {
		return nil, err
	}

	return &InvoiceReply{
		Invoice:       invoice,
		EncodePayment: encoded,
		PaymentHash:   invoice.PaymentHashID(),
	}, nil
}
