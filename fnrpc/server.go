package fnrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

const (
	// DefaultMaxRequestSize is the largest request body or websocket
	// message the server reads.
	DefaultMaxRequestSize = 4 * 1024 * 1024

	// HTTPPath is the route serving JSON-RPC over HTTP POST.
	HTTPPath = "/"

	// WebSocketPath is the route upgrading to a JSON-RPC websocket.
	WebSocketPath = "/ws"
)

var (
	// ErrMethodRegistered is returned when a method name is registered
	// twice.
	ErrMethodRegistered = errors.New("method already registered")

	errTooManyParams = errors.New("params array must hold a single " +
		"object")
)

// Handler serves one JSON-RPC method. The returned value is marshalled into
// the result of the response. Returning an *Error controls the error object
// sent back, any other error is reported as CodeInternalError.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// NewHandler adapts a typed method implementation to a Handler. Params that
// fail to decode into P are answered with CodeInvalidParams.
func NewHandler[P, R any](f func(context.Context, *P) (R, error)) Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params P
		if err := decodeParams(raw, &params); err != nil {
			return nil, NewError(
				CodeInvalidParams, err.Error(), raw,
			)
		}

		return f(ctx, &params)
	}
}

// ServerConfig holds the options of a Server.
type ServerConfig struct {
	// MaxRequestSize bounds request bodies and websocket messages. Zero
	// means DefaultMaxRequestSize.
	MaxRequestSize int64

	// PingInterval is the websocket ping period. Zero disables pings.
	PingInterval time.Duration

	// PongWait is how long a ping may stay unanswered before the
	// websocket is closed.
	PongWait time.Duration
}

// Server dispatches JSON-RPC 2.0 requests to registered methods over HTTP
// POST and websockets.
type Server struct {
	cfg ServerConfig

	mu      sync.RWMutex
	methods map[string]Handler

	router *mux.Router
}

// A compile-time check to ensure Server implements http.Handler.
var _ http.Handler = (*Server)(nil)

// NewServer creates a server without any methods.
func NewServer(cfg ServerConfig) *Server {
	if cfg.MaxRequestSize == 0 {
		cfg.MaxRequestSize = DefaultMaxRequestSize
	}

	s := &Server{
		cfg:     cfg,
		methods: make(map[string]Handler),
		router:  mux.NewRouter(),
	}

	s.router.HandleFunc(HTTPPath, s.serveHTTPPost).
		Methods(http.MethodPost)
	s.router.HandleFunc(WebSocketPath, s.serveWebSocket).
		Methods(http.MethodGet)

	return s
}

// RegisterMethod makes h serve requests for method.
func (s *Server) RegisterMethod(method string, h Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.methods[method]; ok {
		return fmt.Errorf("%w: %v", ErrMethodRegistered, method)
	}
	s.methods[method] = h

	log.Debugf("Registered RPC method %v", method)

	return nil
}

// Methods returns the names of the registered methods.
func (s *Server) Methods() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	methods := make([]string, 0, len(s.methods))
	for method := range s.methods {
		methods = append(methods, method)
	}

	return methods
}

// Call runs a single request. It returns nil for notifications.
func (s *Server) Call(ctx context.Context, req *Request) *Response {
	if req.JSONRPC != Version || req.Method == "" {
		return newErrorResponse(req.ID, NewError(
			CodeInvalidRequest, "invalid request", nil,
		))
	}

	s.mu.RLock()
	h, ok := s.methods[req.Method]
	s.mu.RUnlock()

	if !ok {
		if req.IsNotification() {
			return nil
		}

		return newErrorResponse(req.ID, NewError(
			CodeMethodNotFound, "method not found", req.Method,
		))
	}

	log.Tracef("Calling %v id=%s", req.Method, req.ID)

	start := time.Now()
	result, err := h(ctx, req.Params)

	log.Debugf("Finished %v in %v (err=%v)", req.Method,
		time.Since(start), err)

	if req.IsNotification() {
		return nil
	}
	if err != nil {
		return newErrorResponse(req.ID, toError(err))
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return newErrorResponse(req.ID, NewError(
			CodeInternalError, fmt.Sprintf("unable to encode "+
				"result: %v", err), nil,
		))
	}

	return &Response{
		JSONRPC: Version,
		ID:      req.ID,
		Result:  raw,
	}
}

// handlePayload runs a single request or a batch and returns the encoded
// response. A nil slice means nothing must be written back.
func (s *Server) handlePayload(ctx context.Context, payload []byte) []byte {
	if !isBatch(payload) {
		var req Request
		if err := json.Unmarshal(payload, &req); err != nil {
			return mustMarshal(newErrorResponse(nil, NewError(
				CodeParseError, "parse error", nil,
			)))
		}

		resp := s.Call(ctx, &req)
		if resp == nil {
			return nil
		}

		return mustMarshal(resp)
	}

	var batch []json.RawMessage
	if err := json.Unmarshal(payload, &batch); err != nil {
		return mustMarshal(newErrorResponse(nil, NewError(
			CodeParseError, "parse error", nil,
		)))
	}
	if len(batch) == 0 {
		return mustMarshal(newErrorResponse(nil, NewError(
			CodeInvalidRequest, "empty batch", nil,
		)))
	}

	responses := make([]*Response, 0, len(batch))
	for _, raw := range batch {
		var req Request
		if err := json.Unmarshal(raw, &req); err != nil {
			responses = append(responses, newErrorResponse(
				nil, NewError(
					CodeInvalidRequest, "invalid request",
					nil,
				),
			))
			continue
		}

		if resp := s.Call(ctx, &req); resp != nil {
			responses = append(responses, resp)
		}
	}

	// A batch of notifications gets no response at all.
	if len(responses) == 0 {
		return nil
	}

	return mustMarshal(responses)
}

// ServeHTTP routes the request to the POST or websocket handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// serveHTTPPost answers a JSON-RPC request carried in a POST body.
func (s *Server) serveHTTPPost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(
		w, r.Body, s.cfg.MaxRequestSize,
	))
	if err != nil {
		log.Debugf("Unable to read request from %v: %v",
			r.RemoteAddr, err)

		http.Error(
			w, "request too large",
			http.StatusRequestEntityTooLarge,
		)
		return
	}

	resp := s.handlePayload(r.Context(), body)
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(resp); err != nil {
		log.Debugf("Unable to write response to %v: %v",
			r.RemoteAddr, err)
	}
}

// mustMarshal encodes a response value. Responses only hold raw JSON,
// strings and the error data echoed from decoded params, so encoding does
// not fail.
func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		log.Errorf("Unable to encode response: %v", err)

		b, _ = json.Marshal(newErrorResponse(nil, NewError(
			CodeInternalError, "unable to encode response", nil,
		)))
	}

	return b
}
