package fnd

import (
	"github.com/lightningnetwork/lnd/clock"
	"github.com/prometheus/client_golang/prometheus"
)

// invoiceCounter returns the number of invoices held by a store.
type invoiceCounter func() (int, error)

// invoicesCollector is a prometheus collector that reports the number of
// invoices in the RPC invoice store on every scrape.
type invoicesCollector struct {
	count invoiceCounter

	countDesc *prometheus.Desc
}

// newInvoicesCollector returns a collector reporting the value of count.
func newInvoicesCollector(count invoiceCounter) *invoicesCollector {
	return &invoicesCollector{
		count: count,
		countDesc: prometheus.NewDesc(
			"fnd_rpc_invoices",
			"Number of invoices in the RPC invoice store.",
			nil, nil,
		),
	}
}

// Describe sends the super-set of all possible descriptors of metrics
// collected by this Collector to the provided channel and returns once the
// last descriptor has been sent.
//
// NOTE: Part of the prometheus.Collector interface.
func (c *invoicesCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.countDesc
}

// Collect is called by the Prometheus registry when collecting metrics.
//
// NOTE: Part of the prometheus.Collector interface.
func (c *invoicesCollector) Collect(ch chan<- prometheus.Metric) {
	num, err := c.count()
	if err != nil {
		fndLog.Errorf("Unable to count invoices: %v", err)
		ch <- prometheus.NewInvalidMetric(c.countDesc, err)

		return
	}

	ch <- prometheus.MustNewConstMetric(
		c.countDesc, prometheus.GaugeValue, float64(num),
	)
}

// registerDaemonMetrics registers the invoice store collector and an uptime
// gauge with reg.
func registerDaemonMetrics(reg prometheus.Registerer, count invoiceCounter,
	clk clock.Clock) error {

	startTime := clk.Now()
	uptime := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "fnd_uptime_seconds",
			Help: "Uptime of fnd in seconds.",
		},
		func() float64 {
			return clk.Now().Sub(startTime).Seconds()
		},
	)

	for _, c := range []prometheus.Collector{
		uptime, newInvoicesCollector(count),
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}

	return nil
}
