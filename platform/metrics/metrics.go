// Package metrics collects Prometheus metrics for searches, billing and the
// discovery upstream, and exposes them for scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface used by services and clients.
type Recorder interface {
	RecordSearch(outcome string)
	RecordLeadsDelivered(source string, count int)
	RecordEmailsBilled(count int)
	RecordDiscoveryCall(operation, outcome string, duration time.Duration)
	RecordJobTransition(status string)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	searches         *prometheus.CounterVec
	leadsDelivered   *prometheus.CounterVec
	emailsBilled     prometheus.Counter
	discoveryCalls   *prometheus.CounterVec
	discoveryLatency *prometheus.HistogramVec
	jobTransitions   *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadgen_searches_total",
			Help: "Searches handled, by outcome.",
		}, []string{"outcome"}),
		leadsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadgen_leads_delivered_total",
			Help: "Leads returned to users, by source.",
		}, []string{"source"}),
		emailsBilled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leadgen_emails_billed_total",
			Help: "Email addresses charged to user balances.",
		}),
		discoveryCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadgen_discovery_calls_total",
			Help: "Calls to the discovery service, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		discoveryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leadgen_discovery_latency_seconds",
			Help:    "Discovery service call latency.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"operation"}),
		jobTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadgen_search_job_transitions_total",
			Help: "Search job status transitions.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		c.searches,
		c.leadsDelivered,
		c.emailsBilled,
		c.discoveryCalls,
		c.discoveryLatency,
		c.jobTransitions,
	)

	return c
}

// RecordSearch counts a finished search.
func (c *Collector) RecordSearch(outcome string) {
	c.searches.WithLabelValues(outcome).Inc()
}

// RecordLeadsDelivered adds delivered leads for a source ("cache" or "live").
func (c *Collector) RecordLeadsDelivered(source string, count int) {
	if count <= 0 {
		return
	}
	c.leadsDelivered.WithLabelValues(source).Add(float64(count))
}

// RecordEmailsBilled adds charged email addresses.
func (c *Collector) RecordEmailsBilled(count int) {
	if count <= 0 {
		return
	}
	c.emailsBilled.Add(float64(count))
}

// RecordDiscoveryCall records one discovery call and its latency.
func (c *Collector) RecordDiscoveryCall(operation, outcome string, duration time.Duration) {
	c.discoveryCalls.WithLabelValues(operation, outcome).Inc()
	c.discoveryLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordJobTransition counts a search job entering status.
func (c *Collector) RecordJobTransition(status string) {
	c.jobTransitions.WithLabelValues(status).Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything. Used when metrics are not wired, mostly in tests.
type Nop struct{}

func (Nop) RecordSearch(string)                               {}
func (Nop) RecordLeadsDelivered(string, int)                  {}
func (Nop) RecordEmailsBilled(int)                            {}
func (Nop) RecordDiscoveryCall(string, string, time.Duration) {}
func (Nop) RecordJobTransition(string)                        {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
