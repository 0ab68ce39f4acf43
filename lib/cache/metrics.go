package cache

import (
	"fmt"
	"github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
	"time"
)

// sampleSize is the reservoir size of the latency histograms
const sampleSize = 1028

// datasetMetrics collects the counters of one dataset. Counters are exposed in the
// Prometheus format through the metrics.Set of the manager, latencies are kept in
// reservoir histograms and summarized in the status report.
type datasetMetrics struct {
	set  *metrics.Set
	name string

	fetchLatency gometrics.Histogram
	flushLatency gometrics.Histogram
}

func newDatasetMetrics(set *metrics.Set, name string) *datasetMetrics {
	if set == nil {
		set = metrics.NewSet()
	}
	return &datasetMetrics{
		set:          set,
		name:         name,
		fetchLatency: gometrics.NewHistogram(gometrics.NewUniformSample(sampleSize)),
		flushLatency: gometrics.NewHistogram(gometrics.NewUniformSample(sampleSize)),
	}
}

// refreshed counts the outcome of a refresh
func (m *datasetMetrics) refreshed(o Outcome) {
	m.set.GetOrCreateCounter(fmt.Sprintf(`jarvis_dataset_refresh_total{dataset=%q,outcome=%q}`, m.name, o)).Inc()
}

// flushed counts the outcome of a flush attempt
func (m *datasetMetrics) flushed(o Outcome) {
	m.set.GetOrCreateCounter(fmt.Sprintf(`jarvis_dataset_flush_total{dataset=%q,outcome=%q}`, m.name, o)).Inc()
}

// breakerOpened counts transitions into the open state
func (m *datasetMetrics) breakerOpened() {
	m.set.GetOrCreateCounter(fmt.Sprintf(`jarvis_dataset_breaker_open_total{dataset=%q}`, m.name)).Inc()
}

func (m *datasetMetrics) observeFetch(d time.Duration) {
	m.fetchLatency.Update(d.Microseconds())
}

func (m *datasetMetrics) observeFlush(d time.Duration) {
	m.flushLatency.Update(d.Microseconds())
}

// gauges registers callback gauges for the state of d
func (m *datasetMetrics) gauges(d *Dataset) {
	m.set.GetOrCreateGauge(fmt.Sprintf(`jarvis_dataset_dirty{dataset=%q}`, m.name), func() float64 {
		if d.Status().Dirty {
			return 1
		}
		return 0
	})
	m.set.GetOrCreateGauge(fmt.Sprintf(`jarvis_dataset_consecutive_failures{dataset=%q}`, m.name), func() float64 {
		return float64(d.breaker.Snapshot().ConsecutiveFailures)
	})
}

// p99Millis returns the 99th percentile of h in milliseconds, 0 without samples
func p99Millis(h gometrics.Histogram) float64 {
	if h.Count() == 0 {
		return 0
	}
	return h.Percentile(0.99) / 1000
}
