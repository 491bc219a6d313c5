package fnrpc

import (
	"bytes"
	"encoding/json"
)

// Version is the only protocol version accepted in requests.
const Version = "2.0"

// Request is a JSON-RPC 2.0 request. A request without an ID is a
// notification and gets no response.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request carries no ID.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response is a JSON-RPC 2.0 response. Exactly one of Result and Error is
// set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// nullID is used for responses to requests whose ID could not be read.
var nullID = json.RawMessage("null")

// newErrorResponse returns a response carrying rpcErr.
func newErrorResponse(id json.RawMessage, rpcErr *Error) *Response {
	if len(id) == 0 {
		id = nullID
	}

	return &Response{
		JSONRPC: Version,
		ID:      id,
		Error:   rpcErr,
	}
}

// isBatch reports whether the payload is a JSON array.
func isBatch(payload []byte) bool {
	trimmed := bytes.TrimLeft(payload, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

// decodeParams unmarshals params into v. Params may be an object or an array
// holding exactly one object.
func decodeParams(params json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(params)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	if trimmed[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return err
		}

		switch len(list) {
		case 0:
			return nil
		case 1:
			trimmed = list[0]
		default:
			return errTooManyParams
		}
	}

	return json.Unmarshal(trimmed, v)
}
