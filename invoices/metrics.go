package invoices

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// metricsNamespace prefixes every invoice metric.
	metricsNamespace = "fnd"

	// metricsSubsystem groups the invoice service metrics.
	metricsSubsystem = "invoices"

	resultOk  = "ok"
	resultErr = "error"
)

// Metrics holds the Prometheus collectors of the invoice service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	commands          *prometheus.CounterVec
	commandDuration   *prometheus.HistogramVec
	storedInvoices    prometheus.Gauge
	missingReplyChans prometheus.Counter
}

// NewMetrics creates the invoice collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "commands_total",
				Help: "Number of processed invoice " +
					"commands.",
			},
			[]string{"command", "result"},
		),
		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "command_duration_seconds",
				Help: "Time spent processing invoice " +
					"commands.",
				Buckets: prometheus.ExponentialBuckets(
					0.0001, 4, 8,
				),
			},
			[]string{"command"},
		),
		storedInvoices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "stored",
			Help:      "Number of invoices inserted since start.",
		}),
		missingReplyChans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "missing_reply_channel_total",
			Help: "Number of command requests dropped for " +
				"lack of a reply channel.",
		}),
	}

	collectors := []prometheus.Collector{
		m.commands, m.commandDuration, m.storedInvoices,
		m.missingReplyChans,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// observeCommand records the outcome and duration of one command.
func (m *Metrics) observeCommand(name string, err error,
	elapsed time.Duration) {

	if m == nil {
		return
	}

	result := resultOk
	if err != nil {
		result = resultErr
	}
	m.commands.WithLabelValues(name, result).Inc()
	m.commandDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

// invoiceStored bumps the stored invoice gauge.
func (m *Metrics) invoiceStored() {
	if m == nil {
		return
	}

	m.storedInvoices.Inc()
}

// missingReplyChan counts a request dropped for lack of a reply channel.
func (m *Metrics) missingReplyChan() {
	if m == nil {
		return
	}

	m.missingReplyChans.Inc()
}
