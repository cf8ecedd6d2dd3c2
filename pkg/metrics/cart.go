package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Merge outcomes recorded by ObserveMerge.
const (
	MergeMerged        = "merged"
	MergeAlreadyMerged = "already_merged"
	MergeFailed        = "failed"
)

// CartMetrics records cart engine activity. A nil *CartMetrics is a no-op.
type CartMetrics struct {
	mutations       *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	stockRejections *prometheus.CounterVec
	merges          *prometheus.CounterVec
	clampedUnits    prometheus.Counter
}

// NewCartMetrics registers the cart metrics on the provided registerer.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Cart mutations by operation and outcome.",
	}, []string{"op", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_mutation_duration_seconds",
		Help:    "Duration of cart mutations including the row lock wait.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	stockRejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_stock_rejections_total",
		Help: "Mutations rejected because the requested quantity exceeds stock.",
	}, []string{"op"})
	merges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_merges_total",
		Help: "Anonymous cart merges by result.",
	}, []string{"result"})
	clampedUnits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_merge_clamped_units_total",
		Help: "Units dropped when a merged line was clamped to available stock.",
	})
	reg.MustRegister(mutations, duration, stockRejections, merges, clampedUnits)
	return &CartMetrics{
		mutations:       mutations,
		duration:        duration,
		stockRejections: stockRejections,
		merges:          merges,
		clampedUnits:    clampedUnits,
	}
}

// ObserveMutation records one finished mutation.
func (c *CartMetrics) ObserveMutation(op string, took time.Duration, err error) {
	if c == nil || c.mutations == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.mutations.WithLabelValues(normalizeLabel(op), outcome).Inc()
	c.duration.WithLabelValues(normalizeLabel(op)).Observe(took.Seconds())
}

// IncStockRejection counts an INSUFFICIENT_STOCK outcome.
func (c *CartMetrics) IncStockRejection(op string) {
	if c == nil || c.stockRejections == nil {
		return
	}
	c.stockRejections.WithLabelValues(normalizeLabel(op)).Inc()
}

// ObserveMerge records a merge result and the units lost to clamping.
func (c *CartMetrics) ObserveMerge(result string, clamped int) {
	if c == nil || c.merges == nil {
		return
	}
	c.merges.WithLabelValues(normalizeLabel(result)).Inc()
	if clamped > 0 {
		c.clampedUnits.Add(float64(clamped))
	}
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
