package metric

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Snapshot is the registry size at one instant.
type Snapshot struct {
	Interfaces        int
	Entries           int
	Live              int
	PackageListeners  int
	InstanceListeners int
	Tokens            int
}

// SnapshotFunc fetches a Snapshot. It is called on every scrape.
type SnapshotFunc func(ctx context.Context) (Snapshot, error)

// Collector turns Snapshots into gauges at scrape time.
type Collector struct {
	source  SnapshotFunc
	timeout time.Duration
	logger  *slog.Logger

	interfaces *prometheus.Desc
	entries    *prometheus.Desc
	live       *prometheus.Desc
	listeners  *prometheus.Desc
	tokens     *prometheus.Desc
}

// NewCollector creates a Collector. A scrape that cannot get a snapshot
// within timeout reports nothing for these gauges.
func NewCollector(source SnapshotFunc, timeout time.Duration, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		source:  source,
		timeout: timeout,
		logger:  logger,
		interfaces: prometheus.NewDesc(namespace+"_interfaces",
			"Interface names with at least one entry.", nil, nil),
		entries: prometheus.NewDesc(namespace+"_entries",
			"Registration records, placeholders included.", nil, nil),
		live: prometheus.NewDesc(namespace+"_services_live",
			"Registration records holding a live service.", nil, nil),
		listeners: prometheus.NewDesc(namespace+"_listeners",
			"Notification subscriptions.", []string{"kind"}, nil),
		tokens: prometheus.NewDesc(namespace+"_tokens_live",
			"Tokens that currently resolve.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.interfaces
	ch <- c.entries
	ch <- c.live
	ch <- c.listeners
	ch <- c.tokens
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	s, err := c.source(ctx)
	if err != nil {
		c.logger.Warn("registry snapshot failed", "error", err)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.interfaces, prometheus.GaugeValue, float64(s.Interfaces))
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.Entries))
	ch <- prometheus.MustNewConstMetric(c.live, prometheus.GaugeValue, float64(s.Live))
	ch <- prometheus.MustNewConstMetric(c.listeners, prometheus.GaugeValue, float64(s.PackageListeners), "package")
	ch <- prometheus.MustNewConstMetric(c.listeners, prometheus.GaugeValue, float64(s.InstanceListeners), "instance")
	ch <- prometheus.MustNewConstMetric(c.tokens, prometheus.GaugeValue, float64(s.Tokens))
}
