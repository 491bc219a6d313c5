package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fiberlabs/fnd/fncfg"
	"github.com/fiberlabs/fnd/fnrpc/invoicesrpc"
	"github.com/fiberlabs/fnd/fntypes"
	"github.com/fiberlabs/fnd/fpay32"
	"github.com/urfave/cli"
)

var newInvoiceCommand = cli.Command{
	Name:     "newinvoice",
	Category: "Invoices",
	Usage:    "Add a new invoice.",
	Description: `
	Add a new invoice, expressing intent for a future payment.

	Invoices without an amount can be created by not supplying any
	amount. These invoices allow the payer to specify the amount they wish
	to send. The amount is a decimal number, or a hex number with a 0x
	prefix.`,
	ArgsUsage: "amount preimage",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name: "currency",
			Usage: "the currency of the invoice, Fibb, Fibt or " +
				"Fibd (default: the currency of --network)",
		},
		cli.StringFlag{
			Name:  "amount",
			Usage: "the amount of the invoice",
		},
		cli.StringFlag{
			Name: "preimage",
			Usage: "the hex-encoded preimage (32 byte) which " +
				"will allow settling an incoming HTLC " +
				"payable to this preimage. If not set, a " +
				"random preimage will be created.",
		},
		cli.StringFlag{
			Name: "hash_algorithm",
			Usage: "the algorithm hashing the preimage, " +
				"sha256 or blake2b (default: blake2b)",
		},
		cli.StringFlag{
			Name: "description",
			Usage: "a description of the payment to attach along " +
				"with the invoice",
		},
		cli.Uint64Flag{
			Name: "expiry",
			Usage: "the invoice's expiry time in seconds. If not " +
				"specified, the invoice never expires",
		},
		cli.StringFlag{
			Name:  "fallback_addr",
			Usage: "an optional fallback on-chain address",
		},
		cli.Uint64Flag{
			Name:  "final_cltv",
			Usage: "the minimum final CLTV delta of the payment",
		},
		cli.Uint64Flag{
			Name:  "final_htlc_timeout",
			Usage: "the timeout of the final HTLC",
		},
		cli.StringFlag{
			Name: "udt_type_script",
			Usage: "the JSON encoded type script of the UDT the " +
				"invoice is paid in, e.g. {\"code_hash\": " +
				"\"0x..\", \"hash_type\": \"type\", " +
				"\"args\": \"0x..\"}",
		},
	},
	Action: actionDecorator(newInvoice),
}

func newInvoice(ctxc context.Context, ctx *cli.Context, client rpcCaller,
	w io.Writer) error {

	params, err := parseNewInvoiceParams(ctx)
	if err != nil {
		return err
	}

	var resp json.RawMessage
	err = client.Call(ctxc, invoicesrpc.MethodNewInvoice, params, &resp)
	if err != nil {
		return err
	}

	return printJSON(w, resp)
}

// parseNewInvoiceParams builds the new_invoice params from the flags and
// positional arguments of ctx.
func parseNewInvoiceParams(ctx *cli.Context) (
	*invoicesrpc.NewInvoiceParams, error) {

	currency, err := parseCurrency(ctx)
	if err != nil {
		return nil, err
	}
	params := &invoicesrpc.NewInvoiceParams{
		Currency: &currency,
	}

	args := ctx.Args()

	var amount string
	switch {
	case ctx.IsSet("amount"):
		amount = ctx.String("amount")
	case args.Present():
		amount = args.First()
		args = args.Tail()
	}
	if amount != "" {
		amt, err := parseAmount(amount)
		if err != nil {
			return nil, fmt.Errorf("unable to decode amount "+
				"argument: %w", err)
		}
		params.Amount = &amt
	}

	var preimage string
	switch {
	case ctx.IsSet("preimage"):
		preimage = ctx.String("preimage")
	case args.Present():
		preimage = args.First()
	}
	if preimage == "" {
		random, err := fntypes.RandomPreimage()
		if err != nil {
			return nil, err
		}
		preimage = "0x" + random.String()
	}
	if _, err := fpay32.ParsePaymentPreimage(preimage); err != nil {
		return nil, fmt.Errorf("unable to parse preimage: %w", err)
	}
	params.PaymentPreimage = preimage

	if ctx.IsSet("hash_algorithm") {
		alg, err := fntypes.ParseHashAlgorithm(
			ctx.String("hash_algorithm"),
		)
		if err != nil {
			return nil, err
		}
		params.HashAlgorithm = &alg
	}

	if ctx.IsSet("description") {
		desc := ctx.String("description")
		params.Description = &desc
	}
	if ctx.IsSet("fallback_addr") {
		addr := ctx.String("fallback_addr")
		params.FallbackAddress = &addr
	}

	params.Expiry = hexUint64Flag(ctx, "expiry")
	if ctx.Uint64("expiry") > fpay32.MaxExpirySecs {
		return nil, fmt.Errorf("expiry must not exceed %d seconds",
			fpay32.MaxExpirySecs)
	}
	params.FinalCltv = hexUint64Flag(ctx, "final_cltv")
	params.FinalHtlcTimeout = hexUint64Flag(ctx, "final_htlc_timeout")

	if ctx.IsSet("udt_type_script") {
		var script fntypes.Script
		err := json.Unmarshal(
			[]byte(ctx.String("udt_type_script")), &script,
		)
		if err != nil {
			return nil, fmt.Errorf("unable to parse "+
				"udt_type_script: %w", err)
		}
		params.UdtTypeScript = &script
	}

	return params, nil
}

// parseCurrency returns the currency flag, falling back to the currency of
// the global network flag.
func parseCurrency(ctx *cli.Context) (fpay32.Currency, error) {
	if ctx.IsSet("currency") {
		return fpay32.ParseCurrency(ctx.String("currency"))
	}

	return fncfg.CurrencyForNetwork(ctx.GlobalString("network"))
}

// parseAmount parses a decimal amount, or a hex amount with a 0x prefix.
func parseAmount(amount string) (fntypes.U128, error) {
	if strings.HasPrefix(amount, "0x") {
		return fntypes.ParseU128Hex(amount)
	}

	return fntypes.ParseU128(amount)
}

// hexUint64Flag returns the value of an optional uint64 flag.
func hexUint64Flag(ctx *cli.Context, name string) *fntypes.HexUint64 {
	if !ctx.IsSet(name) {
		return nil
	}

	v := fntypes.HexUint64(ctx.Uint64(name))

	return &v
}

var parseInvoiceCommand = cli.Command{
	Name:     "parseinvoice",
	Category: "Invoices",
	Usage:    "Decode an encoded invoice.",
	Description: "Decode the passed invoice revealing the payment hash, " +
		"amount and the other fields of the invoice",
	ArgsUsage: "invoice",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "invoice",
			Usage: "the bech32 encoded invoice",
		},
	},
	Action: actionDecorator(parseInvoice),
}

func parseInvoice(ctxc context.Context, ctx *cli.Context, client rpcCaller,
	w io.Writer) error {

	var invoice string
	switch {
	case ctx.IsSet("invoice"):
		invoice = ctx.String("invoice")
	case ctx.Args().Present():
		invoice = ctx.Args().First()
	default:
		return fmt.Errorf("invoice argument missing")
	}

	var resp json.RawMessage
	err := client.Call(
		ctxc, invoicesrpc.MethodParseInvoice,
		&invoicesrpc.ParseInvoiceParams{
			Invoice: strings.TrimSpace(invoice),
		}, &resp,
	)
	if err != nil {
		return err
	}

	return printJSON(w, resp)
}

var getInvoiceCommand = cli.Command{
	Name:      "getinvoice",
	Category:  "Invoices",
	Usage:     "Lookup an existing invoice by its payment hash.",
	ArgsUsage: "payment_hash",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name: "payment_hash",
			Usage: "the 32 byte payment hash of the invoice to " +
				"query for, the hash should be a hex-encoded " +
				"string",
		},
	},
	Action: actionDecorator(getInvoice),
}

func getInvoice(ctxc context.Context, ctx *cli.Context, client rpcCaller,
	w io.Writer) error {

	var hash string
	switch {
	case ctx.IsSet("payment_hash"):
		hash = ctx.String("payment_hash")
	case ctx.Args().Present():
		hash = ctx.Args().First()
	default:
		return fmt.Errorf("payment_hash argument missing")
	}

	if _, err := fpay32.ParsePaymentHash(hash); err != nil {
		return fmt.Errorf("unable to decode payment_hash argument: %w",
			err)
	}

	var resp json.RawMessage
	err := client.Call(
		ctxc, invoicesrpc.MethodGetInvoice,
		&invoicesrpc.GetInvoiceParams{PaymentHash: hash}, &resp,
	)
	if err != nil {
		return err
	}

	return printJSON(w, resp)
}
