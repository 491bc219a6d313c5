package fnd

import (
	"context"
	"fmt"
	"os"

	"github.com/fiberlabs/fnd/build"
	"github.com/fiberlabs/fnd/fpay32"
	"github.com/fiberlabs/fnd/lnutils"
	"github.com/fiberlabs/fnd/signal"
	"github.com/lightningnetwork/lnd/clock"
	"golang.org/x/sync/errgroup"
)

// Main is the true entry point for fnd. It's required since defers created in
// the top-level scope of a main method aren't executed if os.Exit() is
// called. It returns once the interceptor requests shutdown or an RPC
// listener fails.
func Main(cfg *Config, interceptor signal.Interceptor) error {
	defer func() {
		fndLog.Info("Shutdown complete")

		if err := cfg.LogRotator.Close(); err != nil {
			_, _ = fmt.Fprintln(os.Stderr, "could not close log "+
				"rotator:", err)
		}
	}()

	// Show version at startup.
	fndLog.Infof("Version: %s commit=%s, network=%s, currency=%s",
		build.Version(), build.CommitHash(), cfg.Network, cfg.Currency)

	if cfg.NodeSigner.IsNone() {
		fndLog.Warn("No node key configured, invoices are not signed")
	}
	cfg.NodeSigner.WhenSome(func(signer *fpay32.NodeSigner) {
		fndLog.InfoS(context.Background(), "Signing invoices",
			lnutils.LogPubKey("node_key", signer.PubKey))
	})

	server, err := newServer(
		cfg, clock.NewDefaultClock(), interceptor.RequestShutdown,
	)
	if err != nil {
		return fmt.Errorf("unable to create server: %w", err)
	}
	defer func() {
		_ = server.Stop()
	}()

	if err := server.Start(); err != nil {
		return fmt.Errorf("unable to start server: %w", err)
	}

	group, ctx := errgroup.WithContext(context.Background())
	if err := server.serve(group); err != nil {
		_ = server.Stop()
		_ = group.Wait()

		return err
	}

	fndLog.Info("Waiting for shutdown signal")

	select {
	case <-interceptor.ShutdownChannel():
		fndLog.Info("Received shutdown request")

	case <-ctx.Done():
	}

	// Closing the RPC servers makes every Serve call of the group
	// return.
	_ = server.Stop()

	return group.Wait()
}
