package invoices

import (
	"errors"
	"fmt"

	"github.com/fiberlabs/fnd/fpay32"
)

var (
	// ErrDuplicateInvoice is returned when an invoice with the target
	// payment hash already exists.
	ErrDuplicateInvoice = errors.New("invoice with payment hash already " +
		"exists")

	// ErrInvoiceNotFound is returned when a targeted invoice can't be
	// found.
	ErrInvoiceNotFound = errors.New("unable to locate invoice")

	// ErrPreimageMismatch is returned when the preimage doesn't match the
	// invoice hash.
	ErrPreimageMismatch = errors.New("preimage does not match")

	// ErrInvoiceCorrupted is returned when a stored record fails the
	// checks made when it is loaded.
	ErrInvoiceCorrupted = errors.New("stored invoice is corrupted")

	// ErrServiceShuttingDown is returned to commands that were still
	// queued when the invoice service was stopped.
	ErrServiceShuttingDown = errors.New("invoice service shutting down")

	// ErrMissingReplyChannel is the precondition violation of a command
	// request sent without a reply channel. Such requests are never
	// executed.
	ErrMissingReplyChannel = errors.New("command request has no reply " +
		"channel")

	// ErrUnknownCommand is returned for command types the service does
	// not handle.
	ErrUnknownCommand = errors.New("unknown invoice command")
)

// ErrorKind groups errors by what the caller can do about them.
type ErrorKind uint8

const (
	// KindInput means the request was malformed: bad hex, unknown tags,
	// or an undecodable invoice string.
	KindInput ErrorKind = iota

	// KindSemantic means the request was well-formed but violates a
	// rule, such as a duplicate payment hash or a hash that does not
	// match its preimage.
	KindSemantic

	// KindCrypto means signing or signature verification failed.
	KindCrypto

	// KindInfrastructure means the service or its store failed.
	KindInfrastructure
)

// String returns the name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindSemantic:
		return "semantic"
	case KindCrypto:
		return "crypto"
	case KindInfrastructure:
		return "infrastructure"
	default:
		return fmt.Sprintf("ErrorKind(%d)", uint8(k))
	}
}

// ClassifyError maps any error produced by the invoice subsystem to its
// kind.
func ClassifyError(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrDuplicateInvoice),
		errors.Is(err, ErrPreimageMismatch),
		errors.Is(err, ErrInvoiceNotFound):

		return KindSemantic

	case errors.Is(err, ErrInvoiceCorrupted),
		errors.Is(err, ErrServiceShuttingDown),
		errors.Is(err, ErrMissingReplyChannel):

		return KindInfrastructure
	}

	var fpErr *fpay32.Error
	if !errors.As(err, &fpErr) {
		return KindInfrastructure
	}

	switch fpErr.Code {
	case fpay32.CodeMissingPaymentIdentifier, fpay32.CodeHashMismatch:
		return KindSemantic

	case fpay32.CodeSigning, fpay32.CodeInvalidSignature:
		return KindCrypto

	default:
		return KindInput
	}
}
