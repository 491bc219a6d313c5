package invoices

import (
	"context"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// Client sends commands to an invoice service and waits for their replies.
// Every request it sends carries a buffered reply channel.
type Client struct {
	commands chan<- *CommandRequest
	done     <-chan struct{}
}

// NewClient returns a client for the service reading commands. done must be
// closed once the service no longer reads commands, see Service.Done.
func NewClient(commands chan<- *CommandRequest,
	done <-chan struct{}) *Client {

	return &Client{
		commands: commands,
		done:     done,
	}
}

// NewInvoice asks the service to build and store a new invoice.
func (c *Client) NewInvoice(ctx context.Context,
	params NewInvoiceParams) (*InvoiceReply, error) {

	return c.send(ctx, &NewInvoiceCommand{Params: params})
}

// ParseInvoice asks the service to decode an invoice string.
func (c *Client) ParseInvoice(ctx context.Context,
	invoice string) (*InvoiceReply, error) {

	return c.send(ctx, &ParseInvoiceCommand{Invoice: invoice})
}

// send delivers cmd and blocks until it is answered, ctx is done or the
// service stops.
func (c *Client) send(ctx context.Context, cmd Command) (*InvoiceReply,
	error) {

	reply := make(chan fn.Result[*InvoiceReply], 1)
	req := &CommandRequest{
		Command: cmd,
		Reply:   reply,
	}

	select {
	case c.commands <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrServiceShuttingDown
	}

	select {
	case result := <-reply:
		return result.Unpack()

	case <-ctx.Done():
		return nil, ctx.Err()

	case <-c.done:
		// The service may have answered just before it stopped.
		select {
		case result := <-reply:
			return result.Unpack()
		default:
			return nil, ErrServiceShuttingDown
		}
	}
}
