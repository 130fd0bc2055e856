// Package metrics tracks crawl counters on a private prometheus registry.
//
// A crawl is a short-lived process, so metrics are not served over HTTP.
// They are written in the text exposition format to a file picked up by the
// node_exporter textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cuya_elections"

// Page kinds
const (
	PageDocuments = "documents"
	PageCalendar  = "calendar"
	PageDetail    = "detail"
)

// Metrics holds the crawl collectors
type Metrics struct {
	registry *prometheus.Registry

	PagesFetched    *prometheus.CounterVec
	FetchFailures   *prometheus.CounterVec
	ItemsSkipped    *prometheus.CounterVec
	ItemsDropped    *prometheus.CounterVec
	MeetingsEmitted prometheus.Counter
	DocumentDates   prometheus.Gauge
	DocumentOrphans prometheus.Gauge
	LastRun         prometheus.Gauge
}

// New creates and registers the crawl collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Pages fetched successfully, by page kind.",
		}, []string{"kind"}),
		FetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Pages that could not be fetched, by page kind.",
		}, []string{"kind"}),
		ItemsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_skipped_total",
			Help:      "Calendar items skipped before the detail fetch, by reason.",
		}, []string{"reason"}),
		ItemsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_dropped_total",
			Help:      "Relevant calendar items that produced no meeting, by reason.",
		}, []string{"reason"}),
		MeetingsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "meetings_emitted_total",
			Help:      "Meeting records handed to the sink.",
		}),
		DocumentDates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "document_index_dates",
			Help:      "Dates present in the board documents index.",
		}),
		DocumentOrphans: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "document_orphan_headings",
			Help:      "Date headings on the documents page with no link paragraph.",
		}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last crawl finished.",
		}),
	}

	m.registry.MustRegister(
		m.PagesFetched,
		m.FetchFailures,
		m.ItemsSkipped,
		m.ItemsDropped,
		m.MeetingsEmitted,
		m.DocumentDates,
		m.DocumentOrphans,
		m.LastRun,
	)

	return m
}

// Registry returns the registry holding the crawl collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// MarkFinished records the crawl completion time
func (m *Metrics) MarkFinished(t time.Time) {
	m.LastRun.Set(float64(t.Unix()))
}

// WriteTextfile writes all metrics to path in the text exposition format
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
