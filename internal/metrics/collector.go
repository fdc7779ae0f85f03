// Package metrics records the outcome of an aggregation run and writes it in
// the Prometheus text format, for the node exporter textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/miku/stationagg/internal/engine"
)

// DefaultNamespace prefixes all metric names.
const DefaultNamespace = "brc"

// Collector holds the metrics of a run on its own registry, so a process can
// create more than one.
type Collector struct {
	reg *prometheus.Registry

	runsTotal       *prometheus.CounterVec
	rowsTotal       prometheus.Counter
	bytesTotal      prometheus.Counter
	refillsTotal    prometheus.Counter
	tableGrowsTotal prometheus.Counter
	stations        prometheus.Gauge
	shards          prometheus.Gauge
	duration        prometheus.Gauge
	lastSuccess     prometheus.Gauge

	logger *zap.Logger
}

// NewCollector creates a Collector. A nil logger discards output.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Collector{
		reg: reg,
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of aggregation runs",
			},
			[]string{"mode", "status"},
		),
		rowsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Total number of records aggregated",
		}),
		bytesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "input_bytes_total",
			Help:      "Total number of input bytes consumed",
		}),
		refillsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reads_total",
			Help:      "Total number of bulk reads issued by the scanners",
		}),
		tableGrowsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "table_grows_total",
			Help:      "Total number of station table resizes",
		}),
		stations: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stations",
			Help:      "Number of distinct stations in the last run",
		}),
		shards: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "shards",
			Help:      "Number of input shards in the last run",
		}),
		duration: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run in seconds",
		}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run",
		}),
		logger: logger.With(zap.String("component", "metrics")),
	}
}

// Observe records a finished run. Counters are only touched on success,
// a failed run only counts as such.
func (c *Collector) Observe(mode string, stats engine.Stats, elapsed time.Duration, err error) {
	c.duration.Set(elapsed.Seconds())
	if err != nil {
		c.runsTotal.WithLabelValues(mode, "error").Inc()
		return
	}
	c.runsTotal.WithLabelValues(mode, "ok").Inc()
	c.rowsTotal.Add(float64(stats.Rows))
	c.bytesTotal.Add(float64(stats.Bytes))
	c.refillsTotal.Add(float64(stats.Refills))
	c.tableGrowsTotal.Add(float64(stats.Grows))
	c.stations.Set(float64(stats.Stations))
	c.shards.Set(float64(stats.Shards))
	c.lastSuccess.SetToCurrentTime()
}

// Gatherer exposes the registry.
func (c *Collector) Gatherer() prometheus.Gatherer { return c.reg }

// WriteTextfile atomically replaces path with the current metrics.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.reg); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	c.logger.Debug("metrics written", zap.String("path", path))
	return nil
}
