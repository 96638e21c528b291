// Package metrics exposes messenger state and counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mamertofabian/bolt-to-github-sub003/pkg/relay"
)

const (
	namespace = "boltbridge"
	subsystem = "relay"
)

// Collector reads the messenger's live status and counters at scrape
// time. It keeps no state of its own, so scrapes can never drift from
// what Status and Metrics report.
type Collector struct {
	m *relay.Messenger

	connected  *prometheus.Desc
	queued     *prometheus.Desc
	generation *prometheus.Desc

	sent        *prometheus.Desc
	flushed     *prometheus.Desc
	enqueued    *prometheus.Desc
	dropped     *prometheus.Desc
	cleared     *prometheus.Desc
	failed      *prometheus.Desc
	received    *prometheus.Desc
	disconnects *prometheus.Desc
	binds       *prometheus.Desc
	rebinds     *prometheus.Desc
}

func NewCollector(m *relay.Messenger) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, nil, nil)
	}
	return &Collector{
		m:          m,
		connected:  desc("connected", "Whether a live port is bound (1) or not (0)."),
		queued:     desc("queued_messages", "Messages waiting in the outbound queue."),
		generation: desc("generation", "Port generation, bumped on every replacement."),

		sent:        desc("sent_total", "Messages delivered directly while connected and idle."),
		flushed:     desc("flushed_total", "Messages delivered by queue flushes."),
		enqueued:    desc("enqueued_total", "Messages that entered the outbound queue."),
		dropped:     desc("dropped_total", "Queued messages evicted by the queue limit."),
		cleared:     desc("cleared_total", "Queued messages removed by explicit clears."),
		failed:      desc("send_failures_total", "Sends that returned an error."),
		received:    desc("received_total", "Inbound messages dispatched to handlers."),
		disconnects: desc("disconnects_total", "Disconnect events from the current port."),
		binds:       desc("binds_total", "Successful port attachments."),
		rebinds:     desc("rebinds_total", "Attachments that replaced a still-live port."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.connected
	ch <- c.queued
	ch <- c.generation
	ch <- c.sent
	ch <- c.flushed
	ch <- c.enqueued
	ch <- c.dropped
	ch <- c.cleared
	ch <- c.failed
	ch <- c.received
	ch <- c.disconnects
	ch <- c.binds
	ch <- c.rebinds
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.m.Status()
	connected := 0.0
	if st.Connected {
		connected = 1.0
	}
	ch <- prometheus.MustNewConstMetric(c.connected, prometheus.GaugeValue, connected)
	ch <- prometheus.MustNewConstMetric(c.queued, prometheus.GaugeValue, float64(st.QueuedMessages))
	ch <- prometheus.MustNewConstMetric(c.generation, prometheus.GaugeValue, float64(st.Generation))

	stats := c.m.Metrics()
	counter := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	counter(c.sent, stats.Sent)
	counter(c.flushed, stats.Flushed)
	counter(c.enqueued, stats.Queued)
	counter(c.dropped, stats.Dropped)
	counter(c.cleared, stats.Cleared)
	counter(c.failed, stats.Failed)
	counter(c.received, stats.Received)
	counter(c.disconnects, stats.Disconnects)
	counter(c.binds, stats.Binds)
	counter(c.rebinds, stats.Rebinds)
}
