package fncfg

import (
	"fmt"
	"time"
)

const (
	// DefaultRPCPort is the default port of the JSON-RPC server.
	DefaultRPCPort = 8227

	// DefaultWSPingInterval is the default interval between websocket
	// pings.
	DefaultWSPingInterval = 30 * time.Second

	// DefaultWSPongWait is the default time a websocket ping may stay
	// unanswered.
	DefaultWSPongWait = 5 * time.Second

	// DefaultMaxRequestSize is the default bound of a request body.
	DefaultMaxRequestSize = 4 * 1024 * 1024
)

// RPC holds the JSON-RPC server options.
//
//nolint:lll
type RPC struct {
	Listen         []string      `long:"listen" description:"Add an interface/port/socket to listen for JSON-RPC connections"`
	WSPingInterval time.Duration `long:"ws-ping-interval" description:"The interval between websocket pings. Set to 0 to disable pings."`
	WSPongWait     time.Duration `long:"ws-pong-wait" description:"How long a websocket ping may stay unanswered before the connection is closed."`
	MaxRequestSize int64         `long:"max-request-size" description:"The largest request body or websocket message in bytes."`
}

// DefaultRPC returns the default JSON-RPC options.
func DefaultRPC() *RPC {
	return &RPC{
		WSPingInterval: DefaultWSPingInterval,
		WSPongWait:     DefaultWSPongWait,
		MaxRequestSize: DefaultMaxRequestSize,
	}
}

// Validate checks the JSON-RPC options.
//
// NOTE: this is part of the Validator interface.
func (r *RPC) Validate() error {
	if r.WSPingInterval < 0 {
		return fmt.Errorf("ws-ping-interval must not be negative")
	}
	if r.WSPingInterval > 0 && r.WSPongWait <= 0 {
		return fmt.Errorf("ws-pong-wait must be positive when pings " +
			"are enabled")
	}
	if r.MaxRequestSize <= 0 {
		return fmt.Errorf("max-request-size must be positive")
	}

	return nil
}

// Compile-time constraint to ensure RPC implements the Validator interface.
var _ Validator = (*RPC)(nil)
