// Package metrics exposes profiler statistics as Prometheus metrics.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sarchlab/m68kprof/profiler"
	"github.com/sarchlab/m68kprof/symbols"
)

// Namespace prefixes every metric name.
const Namespace = "m68kprof"

// Source is the read side of a profiler.
type Source interface {
	Functions() []symbols.FunctionDef
	GetStats(addr uint32) (profiler.FunctionStats, bool)
	GetTotalCycles() uint64
	SampleRate() int
}

// Collector is a prometheus.Collector that snapshots a profiler on every
// scrape.
type Collector struct {
	src Source

	totalCycles *prometheus.Desc
	sampleRate  *prometheus.Desc
	exclusive   *prometheus.Desc
	inclusive   *prometheus.Desc
	calls       *prometheus.Desc
}

// NewCollector creates a collector over src.
func NewCollector(src Source) *Collector {
	labels := []string{"function", "address"}

	return &Collector{
		src: src,
		totalCycles: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "", "total_cycles"),
			"Emulated cycles retired while profiling.",
			nil, nil,
		),
		sampleRate: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "", "sample_rate"),
			"Instructions between attributed samples.",
			nil, nil,
		),
		exclusive: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "function", "cycles_exclusive"),
			"Cycles spent inside a function, excluding callees.",
			labels, nil,
		),
		inclusive: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "function", "cycles_inclusive"),
			"Cycles between entering a function and returning from it.",
			labels, nil,
		),
		calls: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "function", "calls"),
			"Transitions into a function from a different one.",
			labels, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalCycles
	ch <- c.sampleRate
	ch <- c.exclusive
	ch <- c.inclusive
	ch <- c.calls
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.totalCycles, prometheus.CounterValue,
		float64(c.src.GetTotalCycles()))
	ch <- prometheus.MustNewConstMetric(c.sampleRate, prometheus.GaugeValue,
		float64(c.src.SampleRate()))

	seen := make(map[uint32]bool)
	for _, fn := range c.src.Functions() {
		// functions sharing a start address share their statistics
		if seen[fn.Start] {
			continue
		}
		seen[fn.Start] = true

		st, ok := c.src.GetStats(fn.Start)
		if !ok {
			continue
		}

		addr := fmt.Sprintf("0x%08x", fn.Start)
		ch <- prometheus.MustNewConstMetric(c.exclusive, prometheus.CounterValue,
			float64(st.CyclesExclusive), fn.Name, addr)
		ch <- prometheus.MustNewConstMetric(c.inclusive, prometheus.CounterValue,
			float64(st.CyclesInclusive), fn.Name, addr)
		ch <- prometheus.MustNewConstMetric(c.calls, prometheus.CounterValue,
			float64(st.CallCount), fn.Name, addr)
	}
}

// WriteTextfile writes the metrics of src to path in the Prometheus text
// format, for pickup by a node exporter textfile collector.
func WriteTextfile(path string, src Source) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(src)); err != nil {
		return fmt.Errorf("failed to register collector: %w", err)
	}

	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}

	return nil
}
