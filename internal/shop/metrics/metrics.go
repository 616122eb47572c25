package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for trading operations.
type Metrics struct {
	ListingsCreated *prometheus.CounterVec
	ListingsRemoved *prometheus.CounterVec
	ItemsSold       *prometheus.CounterVec
	ItemsPlaced     *prometheus.CounterVec
	ItemsLocked     *prometheus.CounterVec
	ShopsOpen       prometheus.Gauge
	Withdrawals     prometheus.Counter
	SaleLatency     prometheus.Histogram
}

// New registers and returns trading metrics collectors.
func New() *Metrics {
	return &Metrics{
		ListingsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tradepost_listings_created_total",
			Help: "Total number of listings created, labeled by item type and mode",
		}, []string{"item_type", "mode"}),
		ListingsRemoved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tradepost_listings_removed_total",
			Help: "Total number of listings removed without a sale, labeled by item type",
		}, []string{"item_type"}),
		ItemsSold: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tradepost_items_sold_total",
			Help: "Total number of completed sales, labeled by item type and mode",
		}, []string{"item_type", "mode"}),
		ItemsPlaced: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tradepost_items_placed_total",
			Help: "Total number of items placed into shops, labeled by item type",
		}, []string{"item_type"}),
		ItemsLocked: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tradepost_items_locked_total",
			Help: "Total number of items locked into shops, labeled by item type",
		}, []string{"item_type"}),
		ShopsOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tradepost_shops_open",
			Help: "Current number of open shops",
		}),
		Withdrawals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tradepost_withdrawals_total",
			Help: "Total number of profit withdrawals",
		}),
		SaleLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradepost_sale_latency_seconds",
			Help:    "Latency of purchase operations in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncrementListingsCreated(itemType, mode string) {
	m.ListingsCreated.WithLabelValues(itemType, mode).Inc()
}

func (m *Metrics) IncrementListingsRemoved(itemType string) {
	m.ListingsRemoved.WithLabelValues(itemType).Inc()
}

func (m *Metrics) IncrementItemsSold(itemType, mode string) {
	m.ItemsSold.WithLabelValues(itemType, mode).Inc()
}

func (m *Metrics) IncrementItemsPlaced(itemType string) {
	m.ItemsPlaced.WithLabelValues(itemType).Inc()
}

func (m *Metrics) IncrementItemsLocked(itemType string) {
	m.ItemsLocked.WithLabelValues(itemType).Inc()
}

func (m *Metrics) IncrementShopsOpen() { m.ShopsOpen.Inc() }
func (m *Metrics) DecrementShopsOpen() { m.ShopsOpen.Dec() }

func (m *Metrics) IncrementWithdrawals() { m.Withdrawals.Inc() }

// ObserveSaleLatency records the latency of a purchase operation.
func (m *Metrics) ObserveSaleLatency(durationSeconds float64) {
	m.SaleLatency.Observe(durationSeconds)
}
