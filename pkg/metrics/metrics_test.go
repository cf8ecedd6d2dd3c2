package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCartMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCartMetrics(reg)

	metrics.ObserveMutation("add_item", 20*time.Millisecond, nil)
	metrics.ObserveMutation("add_item", 5*time.Millisecond, errors.New("boom"))
	metrics.IncStockRejection("add_item")
	metrics.ObserveMerge(MergeMerged, 3)
	metrics.ObserveMerge(MergeAlreadyMerged, 0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "cart_mutations_total", map[string]string{"op": "add_item", "outcome": "ok"}); err != nil {
		t.Fatalf("fetch ok mutations: %v", err)
	} else if got != 1 {
		t.Fatalf("expected ok=1, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "cart_mutations_total", map[string]string{"op": "add_item", "outcome": "error"}); err != nil {
		t.Fatalf("fetch error mutations: %v", err)
	} else if got != 1 {
		t.Fatalf("expected error=1, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "cart_stock_rejections_total", map[string]string{"op": "add_item"}); err != nil || got != 1 {
		t.Fatalf("expected one stock rejection, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "cart_merge_clamped_units_total", nil); err != nil || got != 3 {
		t.Fatalf("expected 3 clamped units, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "cart_merges_total", map[string]string{"result": MergeAlreadyMerged}); err != nil || got != 1 {
		t.Fatalf("expected one already merged, got %f (%v)", got, err)
	}
	if got, err := fetchHistogramSum(mfs, "cart_mutation_duration_seconds", map[string]string{"op": "add_item"}); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var cart *CartMetrics
	cart.ObserveMutation("clear", time.Millisecond, nil)
	cart.IncStockRejection("add_item")
	cart.ObserveMerge(MergeFailed, 2)

	unregistered := NewCartMetrics(nil)
	unregistered.ObserveMerge(MergeMerged, 1)

	var httpMetrics *HTTPMetrics
	httpMetrics.Observe(http.MethodGet, "/", http.StatusOK, time.Millisecond)
}

func TestHTTPMetricsLabelsByRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewHTTPMetrics(reg)
	metrics.Observe(http.MethodPost, "/api/cart/add/", http.StatusCreated, 10*time.Millisecond)
	metrics.Observe(http.MethodGet, "", http.StatusNotFound, time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "http_requests_total", map[string]string{"route": "/api/cart/add/", "status": "201"}); err != nil || got != 1 {
		t.Fatalf("expected one add request, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "http_requests_total", map[string]string{"route": "unknown", "status": "404"}); err != nil || got != 1 {
		t.Fatalf("expected unmatched route labelled unknown, got %f (%v)", got, err)
	}
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing labels %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	for name, value := range want {
		found := false
		for _, pair := range pairs {
			if pair.GetName() == name && pair.GetValue() == value {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
