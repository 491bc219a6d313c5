package monitoring

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/fiberlabs/fnd/build"
	"github.com/fiberlabs/fnd/fncfg"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsPath is the route the exporter serves metrics on.
const MetricsPath = "/metrics"

// NewRegistry returns a registry holding the Go runtime and process
// collectors and a build info gauge set to 1.
func NewRegistry() (*prometheus.Registry, error) {
	registry := prometheus.NewRegistry()

	buildInfo := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fnd",
		Name:      "build_info",
		Help:      "Version and commit of the running fnd binary.",
	}, []string{"version", "commit"})
	buildInfo.WithLabelValues(build.Version(), build.CommitHash()).Set(1)

	err := registerAll(registry,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(
			collectors.ProcessCollectorOpts{},
		),
		buildInfo,
	)
	if err != nil {
		return nil, err
	}

	return registry, nil
}

func registerAll(reg prometheus.Registerer,
	cs ...prometheus.Collector) error {

	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return err
		}
	}

	return nil
}

// Exporter serves a registry to Prometheus scrapers over HTTP.
type Exporter struct {
	started sync.Once
	stopped sync.Once

	cfg fncfg.Prometheus

	server *http.Server

	wg sync.WaitGroup
}

// NewExporter creates an exporter for gatherer on the configured address.
func NewExporter(cfg fncfg.Prometheus,
	gatherer prometheus.Gatherer) *Exporter {

	mux := http.NewServeMux()
	mux.Handle(MetricsPath, promhttp.HandlerFor(
		gatherer, promhttp.HandlerOpts{},
	))

	return &Exporter{
		cfg: cfg,
		server: &http.Server{
			Addr:    cfg.Listen,
			Handler: mux,

			// Even though this server should only be exposed to
			// trusted clients, this mitigates slowloris-like DoS
			// attacks.
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start listens on the configured address and serves metrics until Stop is
// called.
func (e *Exporter) Start() error {
	var err error
	e.started.Do(func() {
		var listener net.Listener
		listener, err = net.Listen("tcp", e.cfg.Listen)
		if err != nil {
			return
		}

		log.Infof("Prometheus exporter started on %v%v",
			listener.Addr(), MetricsPath)

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()

			err := e.server.Serve(listener)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("Prometheus exporter failed: %v",
					err)
			}
		}()
	})

	return err
}

// Stop closes the listener and waits for the serving goroutine to exit.
func (e *Exporter) Stop() error {
	var err error
	e.stopped.Do(func() {
		log.Info("Prometheus exporter shutting down...")

		err = e.server.Close()
		e.wg.Wait()
	})

	return err
}
