package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fiberlabs/fnd/fnrpc"
	"github.com/fiberlabs/fnd/signal"
	"github.com/urfave/cli"
)

// rpcCaller is the part of the JSON-RPC client the commands use.
type rpcCaller interface {
	Call(ctx context.Context, method string, params, result any) error
}

// commandAction is the signature of every fncli command.
type commandAction func(ctxc context.Context, ctx *cli.Context,
	client rpcCaller, w io.Writer) error

// rpcURL turns a host:port into an http URL. Full URLs are kept as they are.
func rpcURL(server string) string {
	if strings.Contains(server, "://") {
		return server
	}

	return "http://" + server
}

// getClient returns a client for the server named by the global rpcserver
// flag.
func getClient(ctx *cli.Context) rpcCaller {
	return fnrpc.NewClient(rpcURL(ctx.GlobalString("rpcserver")), nil)
}

// getContext returns a context that is canceled when the process receives an
// interrupt, or when the global timeout expires.
func getContext(ctx *cli.Context) (context.Context, func()) {
	shutdownInterceptor, err := signal.Intercept()
	if err != nil {
		fatal(err)
	}

	var (
		ctxc   context.Context
		cancel func()
	)
	if timeout := ctx.GlobalDuration("timeout"); timeout > 0 {
		ctxc, cancel = context.WithTimeout(
			context.Background(), timeout,
		)
	} else {
		ctxc, cancel = context.WithCancel(context.Background())
	}

	go func() {
		<-shutdownInterceptor.ShutdownChannel()
		cancel()
	}()

	return ctxc, cancel
}

// actionDecorator wires the client, context and stdout into f and renders
// JSON-RPC errors in a readable form.
func actionDecorator(f commandAction) func(*cli.Context) error {
	return func(c *cli.Context) error {
		ctxc, cancel := getContext(c)
		defer cancel()

		return formatError(f(ctxc, c, getClient(c), os.Stdout))
	}
}

// formatError renders an RPC error object as code and message, followed by
// its data if present.
func formatError(err error) error {
	var rpcErr *fnrpc.Error
	if !errors.As(err, &rpcErr) {
		return err
	}

	if rpcErr.Data == nil {
		return fmt.Errorf("rpc error %d: %s", rpcErr.Code,
			rpcErr.Message)
	}

	data, _ := json.Marshal(rpcErr.Data)

	return fmt.Errorf("rpc error %d: %s (data: %s)", rpcErr.Code,
		rpcErr.Message, data)
}

// printJSON writes resp as indented JSON to w.
func printJSON(w io.Writer, resp any) error {
	b, err := json.MarshalIndent(resp, "", "    ")
	if err != nil {
		return fmt.Errorf("unable to encode response: %w", err)
	}

	_, err = fmt.Fprintf(w, "%s\n", b)

	return err
}
