package fnd

import (
	"github.com/btcsuite/btclog/v2"
	"github.com/fiberlabs/fnd/build"
	"github.com/fiberlabs/fnd/fnrpc"
	"github.com/fiberlabs/fnd/fnrpc/invoicesrpc"
	"github.com/fiberlabs/fnd/invoices"
	"github.com/fiberlabs/fnd/monitoring"
	"github.com/fiberlabs/fnd/signal"
)

// Subsystem is the logging code of the daemon itself.
const Subsystem = "FND"

// fndLog is the logger of the root package. It stays disabled until
// SetupLoggers is called.
var fndLog = build.NewSubLogger(Subsystem, nil)

// SetupLoggers initializes all package-global logger variables.
func SetupLoggers(root *build.SubLoggerManager) {
	fndLog = root.GenSubLogger(Subsystem)

	AddSubLogger(root, signal.Subsystem, signal.UseLogger)
	AddSubLogger(root, invoices.Subsystem, invoices.UseLogger)
	AddSubLogger(root, fnrpc.Subsystem, fnrpc.UseLogger)
	AddSubLogger(root, invoicesrpc.Subsystem, invoicesrpc.UseLogger)
	AddSubLogger(root, monitoring.Subsystem, monitoring.UseLogger)
}

// AddSubLogger is a helper method to conveniently create and register the
// logger of one or more sub systems.
func AddSubLogger(root *build.SubLoggerManager, subsystem string,
	useLoggers ...func(btclog.Logger)) {

	for _, useLogger := range useLoggers {
		root.RegisterSubLogger(subsystem, useLogger)
	}
}
