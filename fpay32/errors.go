package fpay32

import (
	"fmt"
)

// ErrorCode classifies the failures of the builder and the codec.
type ErrorCode uint8

const (
	// CodeInvalidHex means a hex input contained non-hex characters.
	CodeInvalidHex ErrorCode = iota + 1

	// CodeInvalidHexLength means a hex input did not decode to the
	// required number of bytes.
	CodeInvalidHexLength

	// CodeMissingPaymentIdentifier means neither a payment hash nor a
	// preimage was supplied.
	CodeMissingPaymentIdentifier

	// CodeHashMismatch means the payment hash is not the hash of the
	// preimage under the invoice's algorithm.
	CodeHashMismatch

	// CodeSigning means the invoice could not be signed with the payee
	// key.
	CodeSigning

	// CodeFieldTooLarge means a field does not fit the text format.
	CodeFieldTooLarge

	// CodeDecode means an invoice string is malformed.
	CodeDecode

	// CodeUnknownCurrency means the human readable prefix names no known
	// currency.
	CodeUnknownCurrency

	// CodeUnknownHashAlgorithm means the algorithm tag is not defined.
	CodeUnknownHashAlgorithm

	// CodeInvalidSignature means the payee signature does not verify.
	CodeInvalidSignature

	// CodeInvalidField means a field holds a value the format does not
	// allow, such as a negative expiry.
	CodeInvalidField
)

// String returns a short name for the code.
func (c ErrorCode) String() string {
	switch c {
	case CodeInvalidHex:
		return "InvalidHex"
	case CodeInvalidHexLength:
		return "InvalidHexLength"
	case CodeMissingPaymentIdentifier:
		return "MissingPaymentIdentifier"
	case CodeHashMismatch:
		return "HashMismatch"
	case CodeSigning:
		return "SigningError"
	case CodeFieldTooLarge:
		return "FieldTooLarge"
	case CodeDecode:
		return "DecodeError"
	case CodeUnknownCurrency:
		return "UnknownCurrency"
	case CodeUnknownHashAlgorithm:
		return "UnknownHashAlgorithm"
	case CodeInvalidSignature:
		return "InvalidSignature"
	case CodeInvalidField:
		return "InvalidField"
	default:
		return fmt.Sprintf("ErrorCode(%d)", uint8(c))
	}
}

// Error is the single error type returned by this package. The code tells
// the caller which failure occurred; Err carries the detail, if any.
type Error struct {
	Code ErrorCode
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := codeMessages[e.Code]
	if msg == "" {
		msg = e.Code.String()
	}
	if e.Err == nil {
		return msg
	}

	return fmt.Sprintf("%s: %v", msg, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is match any *Error with the same code, so the exported
// sentinels can be compared against detailed errors.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)

	return ok && t.Code == e.Code
}

var codeMessages = map[ErrorCode]string{
	CodeInvalidHex:               "invalid hex",
	CodeInvalidHexLength:         "invalid hex length",
	CodeMissingPaymentIdentifier: "either payment hash or payment " +
		"preimage is required",
	CodeHashMismatch:             "payment hash does not match preimage",
	CodeSigning:                  "unable to sign invoice",
	CodeFieldTooLarge:            "invoice field too large",
	CodeDecode:                   "unable to decode invoice",
	CodeUnknownCurrency:          "unknown currency",
	CodeUnknownHashAlgorithm:     "unknown hash algorithm",
	CodeInvalidSignature:         "invalid payee signature",
	CodeInvalidField:             "invalid invoice field",
}

var (
	// ErrInvalidHex is matched by every CodeInvalidHex error.
	ErrInvalidHex = &Error{Code: CodeInvalidHex}

	// ErrInvalidHexLength is matched by every CodeInvalidHexLength error.
	ErrInvalidHexLength = &Error{Code: CodeInvalidHexLength}

	// ErrMissingPaymentIdentifier is returned by Build when neither a
	// hash nor a preimage was set.
	ErrMissingPaymentIdentifier = &Error{
		Code: CodeMissingPaymentIdentifier,
	}

	// ErrHashMismatch is matched by every CodeHashMismatch error.
	ErrHashMismatch = &Error{Code: CodeHashMismatch}

	// ErrSigning is matched by every CodeSigning error.
	ErrSigning = &Error{Code: CodeSigning}

	// ErrFieldTooLarge is matched by every CodeFieldTooLarge error.
	ErrFieldTooLarge = &Error{Code: CodeFieldTooLarge}

	// ErrDecode is matched by every CodeDecode error.
	ErrDecode = &Error{Code: CodeDecode}

	// ErrUnknownCurrency is matched by every CodeUnknownCurrency error.
	ErrUnknownCurrency = &Error{Code: CodeUnknownCurrency}

	// ErrUnknownHashAlgorithm is matched by every
	// CodeUnknownHashAlgorithm error.
	ErrUnknownHashAlgorithm = &Error{Code: CodeUnknownHashAlgorithm}

	// ErrInvalidSignature is matched by every CodeInvalidSignature error.
	ErrInvalidSignature = &Error{Code: CodeInvalidSignature}

	// ErrInvalidField is matched by every CodeInvalidField error.
	ErrInvalidField = &Error{Code: CodeInvalidField}
)

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Err: fmt.Errorf(format, args...)}
}

func decodeErrorf(format string, args ...any) *Error {
	return newError(CodeDecode, format, args...)
}
