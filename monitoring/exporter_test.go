package monitoring

import (
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/fiberlabs/fnd/fncfg"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// freeAddr returns a loopback address nothing listens on.
func freeAddr(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	return addr
}

// TestExporter checks that registered metrics are served and that the
// exporter stops cleanly.
func TestExporter(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistry()
	require.NoError(t, err)

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fnd",
		Name:      "test_total",
		Help:      "Test counter.",
	})
	require.NoError(t, registry.Register(counter))
	counter.Add(3)

	cfg := fncfg.Prometheus{Enable: true, Listen: freeAddr(t)}
	exporter := NewExporter(cfg, registry)
	require.NoError(t, exporter.Start())

	resp, err := http.Get("http://" + cfg.Listen + MetricsPath)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	require.Contains(t, string(body), "fnd_test_total 3")
	require.Contains(t, string(body), "fnd_build_info")
	require.Contains(t, string(body), "go_goroutines")

	require.NoError(t, exporter.Stop())
	require.NoError(t, exporter.Stop())

	_, err = http.Get("http://" + cfg.Listen + MetricsPath)
	require.Error(t, err)
}

// TestExporterListenError checks that a bad listen address is reported by
// Start.
func TestExporterListenError(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistry()
	require.NoError(t, err)

	exporter := NewExporter(fncfg.Prometheus{
		Enable: true,
		Listen: "256.0.0.1:1",
	}, registry)
	require.Error(t, exporter.Start())
}
