package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			pairs := m.GetLabel()
			if len(pairs) != len(labels) {
				continue
			}
			matched := true
			for _, p := range pairs {
				if labels[p.GetName()] != p.GetValue() {
					matched = false
				}
			}
			if matched {
				return m.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s %v not found", name, labels)
	return 0
}

func TestRecordSearchCountsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSearch("ok")
	c.RecordSearch("ok")
	c.RecordSearch("insufficient_credits")

	if got := counterValue(t, reg, "leadgen_searches_total", map[string]string{"outcome": "ok"}); got != 2 {
		t.Fatalf("ok searches = %v, want 2", got)
	}
}

func TestRecordLeadsDeliveredIgnoresZero(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLeadsDelivered("cache", 0)
	c.RecordLeadsDelivered("live", 4)
	c.RecordEmailsBilled(7)

	if got := counterValue(t, reg, "leadgen_leads_delivered_total", map[string]string{"source": "live"}); got != 4 {
		t.Fatalf("live leads = %v, want 4", got)
	}
	if got := counterValue(t, reg, "leadgen_emails_billed_total", map[string]string{}); got != 7 {
		t.Fatalf("emails billed = %v, want 7", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordDiscoveryCall("search", "timeout", 2*time.Second)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `leadgen_discovery_calls_total{operation="search",outcome="timeout"} 1`) {
		t.Fatalf("discovery counter missing from scrape output:\n%s", body)
	}
}
