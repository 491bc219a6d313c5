package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/fiberlabs/fnd/fnrpc"
	"github.com/fiberlabs/fnd/fnrpc/invoicesrpc"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

var (
	testPreimage = strings.Repeat("02", 32)
	testHash     = "0x" + strings.Repeat("ab", 32)
	testScript   = `{"code_hash": "0x` + strings.Repeat("11", 32) +
		`", "hash_type": "type", "args": "0x0102"}`
)

// fakeCaller records the last call and answers it with a canned result.
type fakeCaller struct {
	method string
	params map[string]any
	result string
	err    error
}

func (f *fakeCaller) Call(_ context.Context, method string, params,
	result any) error {

	f.method = method

	b, err := json.Marshal(params)
	if err != nil {
		return err
	}
	f.params = make(map[string]any)
	if err := json.Unmarshal(b, &f.params); err != nil {
		return err
	}

	if f.err != nil {
		return f.err
	}
	if result == nil || f.result == "" {
		return nil
	}

	return json.Unmarshal([]byte(f.result), result)
}

// runCommand runs cmd with action against caller and returns what the action
// printed.
func runCommand(t *testing.T, cmd cli.Command, action commandAction,
	caller *fakeCaller, args ...string) (string, error) {

	t.Helper()

	var out bytes.Buffer
	cmd.Action = func(c *cli.Context) error {
		return formatError(
			action(context.Background(), c, caller, &out),
		)
	}

	app := cli.NewApp()
	app.Name = "fncli"
	app.Writer = io.Discard
	app.ErrWriter = io.Discard
	app.Flags = globalFlags()
	app.Commands = []cli.Command{cmd}

	err := app.Run(append([]string{"fncli"}, args...))

	return out.String(), err
}

// TestNewInvoiceFlags checks that the newinvoice flags are turned into the
// new_invoice params.
func TestNewInvoiceFlags(t *testing.T) {
	t.Parallel()

	caller := &fakeCaller{result: `{"invoice_address": "fibt1"}`}
	out, err := runCommand(
		t, newInvoiceCommand, newInvoice, caller,
		"newinvoice", "--amount", "100", "--description", "coffee",
		"--expiry", "3600", "--hash_algorithm", "sha256",
		"--final_htlc_timeout", "16", "--fallback_addr", "ckt1addr",
		"--udt_type_script", testScript,
	)
	require.NoError(t, err)
	require.Contains(t, out, `"invoice_address": "fibt1"`)

	require.Equal(t, invoicesrpc.MethodNewInvoice, caller.method)
	require.Equal(t, "Fibt", caller.params["currency"])
	require.Equal(t, "0x64", caller.params["amount"])
	require.Equal(t, "coffee", caller.params["description"])
	require.Equal(t, "0xe10", caller.params["expiry"])
	require.Equal(t, "sha256", caller.params["hash_algorithm"])
	require.Equal(t, "0x10", caller.params["final_htlc_timeout"])
	require.Equal(t, "ckt1addr", caller.params["fallback_address"])
	require.NotContains(t, caller.params, "final_cltv")

	script, ok := caller.params["udt_type_script"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "type", script["hash_type"])
	require.Equal(t, "0x0102", script["args"])

	// Without a preimage a random one is created.
	preimage, ok := caller.params["payment_preimage"].(string)
	require.True(t, ok)
	require.True(t, strings.HasPrefix(preimage, "0x"))
	require.Len(t, preimage, 66)
}

// TestNewInvoiceArgs checks the positional arguments of newinvoice and the
// currency picked by the network flag.
func TestNewInvoiceArgs(t *testing.T) {
	t.Parallel()

	caller := &fakeCaller{}
	_, err := runCommand(
		t, newInvoiceCommand, newInvoice, caller,
		"--network", "devnet", "newinvoice", "0x10", testPreimage,
	)
	require.NoError(t, err)
	require.Equal(t, "Fibd", caller.params["currency"])
	require.Equal(t, "0x10", caller.params["amount"])
	require.Equal(t, testPreimage, caller.params["payment_preimage"])

	// An explicit currency wins over the network.
	caller = &fakeCaller{}
	_, err = runCommand(
		t, newInvoiceCommand, newInvoice, caller,
		"--network", "devnet", "newinvoice", "--currency", "Fibb",
	)
	require.NoError(t, err)
	require.Equal(t, "Fibb", caller.params["currency"])
	require.NotContains(t, caller.params, "amount")
}

// TestNewInvoiceErrors checks that bad arguments are rejected before the
// daemon is called.
func TestNewInvoiceErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		args   []string
		errStr string
	}{{
		name:   "bad amount",
		args:   []string{"newinvoice", "--amount", "ten"},
		errStr: "unable to decode amount",
	}, {
		name:   "bad hex amount",
		args:   []string{"newinvoice", "0xzz"},
		errStr: "unable to decode amount",
	}, {
		name:   "bad preimage",
		args:   []string{"newinvoice", "--preimage", "abcd"},
		errStr: "unable to parse preimage",
	}, {
		name:   "bad hash algorithm",
		args:   []string{"newinvoice", "--hash_algorithm", "md5"},
		errStr: "unknown hash algorithm",
	}, {
		name:   "expiry too large",
		args:   []string{"newinvoice", "--expiry", "18446744074"},
		errStr: "expiry must not exceed",
	}, {
		name:   "bad script",
		args:   []string{"newinvoice", "--udt_type_script", "{"},
		errStr: "udt_type_script",
	}, {
		name:   "bad network",
		args:   []string{"--network", "regtest", "newinvoice"},
		errStr: "unknown network",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			caller := &fakeCaller{}
			_, err := runCommand(
				t, newInvoiceCommand, newInvoice, caller,
				tc.args...,
			)
			require.ErrorContains(t, err, tc.errStr)
			require.Empty(t, caller.method)
		})
	}
}

// TestParseInvoiceCommand checks parseinvoice with a flag, an argument and
// no invoice at all.
func TestParseInvoiceCommand(t *testing.T) {
	t.Parallel()

	caller := &fakeCaller{result: `{"invoice": {}}`}
	_, err := runCommand(
		t, parseInvoiceCommand, parseInvoice, caller,
		"parseinvoice", " fibt1abc\n",
	)
	require.NoError(t, err)
	require.Equal(t, invoicesrpc.MethodParseInvoice, caller.method)
	require.Equal(t, "fibt1abc", caller.params["invoice"])

	caller = &fakeCaller{}
	_, err = runCommand(
		t, parseInvoiceCommand, parseInvoice, caller,
		"parseinvoice", "--invoice", "fibd1xyz",
	)
	require.NoError(t, err)
	require.Equal(t, "fibd1xyz", caller.params["invoice"])

	_, err = runCommand(
		t, parseInvoiceCommand, parseInvoice, &fakeCaller{},
		"parseinvoice",
	)
	require.ErrorContains(t, err, "invoice argument missing")
}

// TestGetInvoiceCommand checks that getinvoice validates the payment hash and
// renders RPC errors.
func TestGetInvoiceCommand(t *testing.T) {
	t.Parallel()

	caller := &fakeCaller{}
	_, err := runCommand(
		t, getInvoiceCommand, getInvoice, caller,
		"getinvoice", testHash,
	)
	require.NoError(t, err)
	require.Equal(t, invoicesrpc.MethodGetInvoice, caller.method)
	require.Equal(t, testHash, caller.params["payment_hash"])

	_, err = runCommand(
		t, getInvoiceCommand, getInvoice, &fakeCaller{},
		"getinvoice", "--payment_hash", "0x1234",
	)
	require.ErrorContains(t, err, "unable to decode payment_hash")

	_, err = runCommand(
		t, getInvoiceCommand, getInvoice, &fakeCaller{},
		"getinvoice",
	)
	require.ErrorContains(t, err, "payment_hash argument missing")

	caller = &fakeCaller{
		err: fnrpc.NewError(-32602, "invoice not found", nil),
	}
	_, err = runCommand(
		t, getInvoiceCommand, getInvoice, caller,
		"getinvoice", testHash,
	)
	require.EqualError(t, err, "rpc error -32602: invoice not found")
}

// TestFormatError checks the rendering of RPC error objects.
func TestFormatError(t *testing.T) {
	t.Parallel()

	require.NoError(t, formatError(nil))

	plain := errors.New("connection refused")
	require.Equal(t, plain, formatError(plain))

	rpcErr := fnrpc.NewError(-32013, "duplicated invoice", "0xabcd")
	require.EqualError(
		t, formatError(rpcErr),
		`rpc error -32013: duplicated invoice (data: "0xabcd")`,
	)
}

// TestRPCURL checks that bare host:port pairs get an http scheme.
func TestRPCURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "http://localhost:8227", rpcURL("localhost:8227"))
	url := "https://node.example:443"
	require.Equal(t, url, rpcURL(url))
}
