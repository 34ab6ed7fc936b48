// Package metrics exposes pipeline counters in Prometheus format. Runs are
// short-lived batch jobs, so metrics are written to a node-exporter textfile
// at the end of each run instead of being scraped.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "trendscout"

// Recorder holds all Prometheus metrics for one process.
type Recorder struct {
	registry *prometheus.Registry

	FetchSymbols  *prometheus.CounterVec   // labels: source, status
	FetchDuration *prometheus.HistogramVec // labels: source
	RowsAppended  prometheus.Counter

	ScanSymbols  *prometheus.CounterVec // labels: status
	ScanSkips    *prometheus.CounterVec // labels: reason
	Signals      prometheus.Gauge
	TrendMembers prometheus.Gauge

	StageDuration *prometheus.GaugeVec // labels: stage
	LastSuccess   *prometheus.GaugeVec // labels: stage
}

// New registers and returns all metrics on a private registry.
func New() *Recorder {
	m := &Recorder{
		registry: prometheus.NewRegistry(),
		FetchSymbols: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "symbols_total",
			Help:      "Symbols requested from the data source by outcome",
		}, []string{"source", "status"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "request_duration_seconds",
			Help:      "Per-symbol request latency",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		RowsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "rows_appended_total",
			Help:      "Bar rows appended to the store",
		}),
		ScanSymbols: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "symbols_total",
			Help:      "Scanned symbols by outcome status",
		}, []string{"status"}),
		ScanSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "skips_total",
			Help:      "Skipped symbols by reason",
		}, []string{"reason"}),
		Signals: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "buy_signals",
			Help:      "Buy signals found by the last scan",
		}),
		TrendMembers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "uptrend_members",
			Help:      "Uptrend members found by the last scan",
		}),
		StageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of the last run of each stage",
		}, []string{"stage"}),
		LastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run of each stage",
		}, []string{"stage"}),
	}

	m.registry.MustRegister(
		m.FetchSymbols, m.FetchDuration, m.RowsAppended,
		m.ScanSymbols, m.ScanSkips, m.Signals, m.TrendMembers,
		m.StageDuration, m.LastSuccess,
	)
	return m
}

// ObserveFetch records one symbol request.
func (m *Recorder) ObserveFetch(source, status string, rows int, took time.Duration) {
	m.FetchSymbols.WithLabelValues(source, status).Inc()
	m.FetchDuration.WithLabelValues(source).Observe(took.Seconds())
}

// AddRowsAppended counts rows written to the bar store.
func (m *Recorder) AddRowsAppended(n int) {
	m.RowsAppended.Add(float64(n))
}

// ObserveScan records the tallies of a finished scan.
func (m *Recorder) ObserveScan(success, skipped, failed int, skipReasons map[string]int, signals, trends int) {
	m.ScanSymbols.WithLabelValues("success").Add(float64(success))
	m.ScanSymbols.WithLabelValues("skipped").Add(float64(skipped))
	m.ScanSymbols.WithLabelValues("failed").Add(float64(failed))
	for reason, n := range skipReasons {
		m.ScanSkips.WithLabelValues(reason).Add(float64(n))
	}
	m.Signals.Set(float64(signals))
	m.TrendMembers.Set(float64(trends))
}

// ObserveStage records how long a stage took and, when ok, when it last succeeded.
func (m *Recorder) ObserveStage(stage string, took time.Duration, ok bool, now time.Time) {
	m.StageDuration.WithLabelValues(stage).Set(took.Seconds())
	if ok {
		m.LastSuccess.WithLabelValues(stage).Set(float64(now.Unix()))
	}
}

// WriteTextfile writes the registry in text exposition format to path.
func (m *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
