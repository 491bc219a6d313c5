package main

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/fiberlabs/fnd/build"
	"github.com/fiberlabs/fnd/fncfg"
	"github.com/urfave/cli"
)

var defaultRPCHostPort = net.JoinHostPort(
	"localhost", strconv.Itoa(fncfg.DefaultRPCPort),
)

func fatal(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "[fncli] %v\n", err)
	os.Exit(1)
}

// globalFlags returns the flags shared by all commands.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "rpcserver",
			Value: defaultRPCHostPort,
			Usage: "The host:port or URL of the fnd JSON-RPC " +
				"server.",
		},
		cli.StringFlag{
			Name: "network, n",
			Usage: "The network fnd is running on, one of " +
				"mainnet, testnet or devnet. It picks the " +
				"default invoice currency.",
			Value: fncfg.NetworkTestnet,
		},
		cli.DurationFlag{
			Name:  "timeout",
			Usage: "How long to wait for the daemon to answer.",
		},
	}
}

func main() {
	app := cli.NewApp()
	app.Name = "fncli"
	app.Version = build.Version() + " commit=" + build.CommitHash()
	app.Usage = "control plane for your fiber node daemon (fnd)"
	app.Flags = globalFlags()
	app.Commands = []cli.Command{
		newInvoiceCommand,
		parseInvoiceCommand,
		getInvoiceCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}
