package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// OrdersPlacedTotal counts paid orders by type.
	OrdersPlacedTotal *prometheus.CounterVec
	// PaymentOutcomeTotal counts card terminal collection outcomes.
	PaymentOutcomeTotal *prometheus.CounterVec
	// PaymentCollectLatency records end-to-end charge latency in milliseconds.
	PaymentCollectLatency *prometheus.HistogramVec
	// OrderJournalTotal counts paid orders that could not be persisted and were journaled.
	OrderJournalTotal prometheus.Counter
	// SessionSweepTotal counts kiosk sessions reset by the idle sweeper.
	SessionSweepTotal prometheus.Counter
	// ActiveSessions tracks currently open kiosk sessions.
	ActiveSessions prometheus.Gauge
	// PosSyncTotal counts register mirror sync outcomes.
	PosSyncTotal *prometheus.CounterVec
	// TicketPrintTotal counts kitchen ticket print outcomes.
	TicketPrintTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		OrdersPlacedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Count of paid orders by order type.",
		}, []string{"order_type"})
		PaymentOutcomeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_outcome_total",
			Help:      "Count of card terminal collection outcomes.",
		}, []string{"result"})
		PaymentCollectLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payment_collect_duration_ms",
			Help:      "Latency of full card collection in milliseconds.",
			Buckets:   []float64{500, 1000, 2500, 5000, 10000, 30000, 60000, 120000},
		}, []string{"result"})
		OrderJournalTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_journal_total",
			Help:      "Number of paid orders journaled after a persistence failure.",
		})
		SessionSweepTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_sweep_total",
			Help:      "Number of kiosk sessions reset by the idle sweeper.",
		})
		ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Currently open kiosk sessions.",
		})
		PosSyncTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pos_sync_total",
			Help:      "Count of register mirror sync outcomes.",
		}, []string{"result"})
		TicketPrintTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticket_print_total",
			Help:      "Count of kitchen ticket print outcomes.",
		}, []string{"result"})

		mustRegisterCollector(reg, OrdersPlacedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OrdersPlacedTotal = v
			}
		})
		mustRegisterCollector(reg, PaymentOutcomeTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PaymentOutcomeTotal = v
			}
		})
		mustRegisterCollector(reg, PaymentCollectLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				PaymentCollectLatency = v
			}
		})
		mustRegisterCollector(reg, OrderJournalTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				OrderJournalTotal = v
			}
		})
		mustRegisterCollector(reg, SessionSweepTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				SessionSweepTotal = v
			}
		})
		mustRegisterCollector(reg, ActiveSessions, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Gauge); ok {
				ActiveSessions = v
			}
		})
		mustRegisterCollector(reg, PosSyncTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PosSyncTotal = v
			}
		})
		mustRegisterCollector(reg, TicketPrintTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				TicketPrintTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
