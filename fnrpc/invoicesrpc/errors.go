package invoicesrpc

import (
	"errors"

	"github.com/fiberlabs/fnd/fnrpc"
	"github.com/fiberlabs/fnd/fpay32"
	"github.com/fiberlabs/fnd/invoices"
)

// Error codes of the invoice methods, in addition to the standard JSON-RPC
// codes.
const (
	// CodeDecode is returned when an invoice string cannot be decoded.
	CodeDecode = -32010

	// CodeMissingPaymentIdentifier is returned when no payment preimage
	// was supplied.
	CodeMissingPaymentIdentifier = -32011

	// CodeHashMismatch is returned when a preimage does not hash to the
	// payment hash.
	CodeHashMismatch = -32012

	// CodeDuplicateInvoice is returned when an invoice with the same
	// payment hash is already stored.
	CodeDuplicateInvoice = -32013

	// CodeSigning is returned when the node key failed to sign the
	// invoice.
	CodeSigning = -32014

	// CodeFieldTooLarge is returned when an invoice field does not fit
	// the invoice format.
	CodeFieldTooLarge = -32015

	// CodeInvoiceNotFound is returned when no invoice is stored under the
	// requested payment hash.
	CodeInvoiceNotFound = -32016
)

// builderCodes maps builder failures to error codes. Codes missing here are
// caller input errors.
var builderCodes = map[fpay32.ErrorCode]int{
	fpay32.CodeMissingPaymentIdentifier: CodeMissingPaymentIdentifier,
	fpay32.CodeHashMismatch:             CodeHashMismatch,
	fpay32.CodeSigning:                  CodeSigning,
	fpay32.CodeFieldTooLarge:            CodeFieldTooLarge,
}

// newInvoiceError converts a failure of new_invoice into an error object
// echoing params.
func newInvoiceError(err error, params any) *fnrpc.Error {
	var codecErr *fpay32.Error
	if errors.As(err, &codecErr) {
		code, ok := builderCodes[codecErr.Code]
		if !ok {
			code = fnrpc.CodeInvalidParams
		}

		return fnrpc.NewError(code, err.Error(), params)
	}

	return storeError(err, params)
}

// parseInvoiceError converts a failure of parse_invoice into an error object
// echoing params. Every codec error is a decode failure there.
func parseInvoiceError(err error, params any) *fnrpc.Error {
	var codecErr *fpay32.Error
	if errors.As(err, &codecErr) {
		return fnrpc.NewError(CodeDecode, err.Error(), params)
	}

	return fnrpc.NewError(fnrpc.CodeInternalError, err.Error(), params)
}

// storeError converts a store failure into an error object echoing params.
func storeError(err error, params any) *fnrpc.Error {
	code := fnrpc.CodeInternalError
	switch {
	case errors.Is(err, invoices.ErrDuplicateInvoice):
		code = CodeDuplicateInvoice

	case errors.Is(err, invoices.ErrPreimageMismatch):
		code = CodeHashMismatch

	case errors.Is(err, invoices.ErrInvoiceNotFound):
		code = CodeInvoiceNotFound
	}

	return fnrpc.NewError(code, err.Error(), params)
}
