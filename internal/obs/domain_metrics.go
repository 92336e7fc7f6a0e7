package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartMutationsTotal counts cart mutation outcomes by operation.
	CartMutationsTotal *prometheus.CounterVec
	// CheckoutTotal counts checkout submission outcomes.
	CheckoutTotal *prometheus.CounterVec
	// CheckoutLatency records order submission latency in milliseconds.
	CheckoutLatency *prometheus.HistogramVec
	// CatalogRefreshTotal counts catalog snapshot refresh outcomes.
	CatalogRefreshTotal *prometheus.CounterVec
	// ActiveCarts tracks the number of live cart sessions.
	ActiveCarts prometheus.Gauge
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutations_total",
			Help:      "Count of cart mutation outcomes by operation.",
		}, []string{"op", "result"})
		CheckoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Count of checkout submission outcomes.",
		}, []string{"result"})
		CheckoutLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_duration_ms",
			Help:      "Latency for order submission attempts in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"result"})
		CatalogRefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_refresh_total",
			Help:      "Count of catalog snapshot refresh outcomes.",
		}, []string{"result"})
		ActiveCarts = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_carts",
			Help:      "Number of live in-memory cart sessions.",
		})

		registerOrReuse(reg, CartMutationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CartMutationsTotal = v
			}
		})
		registerOrReuse(reg, CheckoutTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CheckoutTotal = v
			}
		})
		registerOrReuse(reg, CheckoutLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				CheckoutLatency = v
			}
		})
		registerOrReuse(reg, CatalogRefreshTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CatalogRefreshTotal = v
			}
		})
		registerOrReuse(reg, ActiveCarts, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Gauge); ok {
				ActiveCarts = v
			}
		})
	})
}
