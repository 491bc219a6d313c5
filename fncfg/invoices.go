package fncfg

import "fmt"

// DefaultMailboxSize is the default capacity of the invoice service command
// channel.
const DefaultMailboxSize = 64

// Invoices holds the configuration options for invoices.
//
//nolint:lll
type Invoices struct {
	MailboxSize int `long:"mailboxsize" description:"The number of commands the invoice service queues before callers block. Set to 0 for an unbounded queue."`
}

// DefaultInvoices returns the default invoice options.
func DefaultInvoices() *Invoices {
	return &Invoices{
		MailboxSize: DefaultMailboxSize,
	}
}

// Unbounded reports whether the invoice service uses an unbounded queue.
func (i *Invoices) Unbounded() bool {
	return i.MailboxSize == 0
}

// Validate checks that the various invoice config options are sane.
//
// NOTE: this is part of the Validator interface.
func (i *Invoices) Validate() error {
	if i.MailboxSize < 0 {
		return fmt.Errorf("invoices.mailboxsize must not be negative, "+
			"got %d", i.MailboxSize)
	}

	return nil
}

// Compile-time constraint to ensure Invoices implements the Validator
// interface.
var _ Validator = (*Invoices)(nil)
