// Package metrics records per-run archival counters and exports them in the
// Prometheus text format.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector implements prometheus.Collector for a single archival run.
type Collector struct {
	version string

	sent       float64
	failed     float64
	considered float64
	lastRun    time.Time

	infoDesc       *prometheus.Desc
	requestsDesc   *prometheus.Desc
	consideredDesc *prometheus.Desc
	lastRunDesc    *prometheus.Desc

	mu sync.RWMutex
}

// NewCollector creates a new metrics collector
func NewCollector(version string) *Collector {
	return &Collector{
		version: version,

		infoDesc: prometheus.NewDesc(
			"sitekit_info",
			"Sitekit build information",
			[]string{"version", "go_version"},
			nil,
		),
		requestsDesc: prometheus.NewDesc(
			"sitekit_iarchiver_requests_total",
			"Archival requests issued in the last run by result",
			[]string{"result"},
			nil,
		),
		consideredDesc: prometheus.NewDesc(
			"sitekit_iarchiver_items_considered",
			"Timeline items examined in the last run",
			nil,
			nil,
		),
		lastRunDesc: prometheus.NewDesc(
			"sitekit_iarchiver_last_run_timestamp_seconds",
			"Start time of the last completed run",
			nil,
			nil,
		),
	}
}

// RequestSent counts a successful archival request.
func (c *Collector) RequestSent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent++
}

// RequestFailed counts an archival request that errored.
func (c *Collector) RequestFailed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed++
}

// ItemConsidered counts a timeline item that was examined.
func (c *Collector) ItemConsidered() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.considered++
}

// RunCompleted records the start time of a run that finished.
func (c *Collector) RunCompleted(start time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastRun = start
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.infoDesc
	ch <- c.requestsDesc
	ch <- c.consideredDesc
	ch <- c.lastRunDesc
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ch <- prometheus.MustNewConstMetric(
		c.infoDesc,
		prometheus.GaugeValue,
		1,
		c.version,
		runtime.Version(),
	)
	ch <- prometheus.MustNewConstMetric(c.requestsDesc, prometheus.CounterValue, c.sent, "sent")
	ch <- prometheus.MustNewConstMetric(c.requestsDesc, prometheus.CounterValue, c.failed, "failed")
	ch <- prometheus.MustNewConstMetric(c.consideredDesc, prometheus.GaugeValue, c.considered)

	// Only emitted once a run has completed.
	if !c.lastRun.IsZero() {
		ch <- prometheus.MustNewConstMetric(
			c.lastRunDesc,
			prometheus.GaugeValue,
			float64(c.lastRun.UnixNano())/1e9,
		)
	}
}

// NewRegistry creates a registry holding only the given collector. Runtime
// collectors are left out since the output is a node exporter textfile.
func NewRegistry(collector *Collector) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collector)
	return registry
}

// WriteTextfile writes the registry to path in the text exposition format,
// creating the parent directory if needed.
func WriteTextfile(path string, registry prometheus.Gatherer) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("metrics: failed to create directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, registry); err != nil {
		return fmt.Errorf("metrics: failed to write %s: %w", path, err)
	}
	return nil
}
