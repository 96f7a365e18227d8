package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// OrdersCreatedTotal counts committed checkout transactions.
	OrdersCreatedTotal prometheus.Counter
	// OrdersReapedTotal counts pending orders cancelled by the expiration reaper.
	OrdersReapedTotal prometheus.Counter
	// StockConflictsTotal counts checkouts rolled back by the stock constraint.
	StockConflictsTotal prometheus.Counter
	// PromoRejectionsTotal counts promocode validations rejected by reason.
	PromoRejectionsTotal *prometheus.CounterVec
	// GatewayCallsTotal counts payment gateway round-trips by operation and result.
	GatewayCallsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers the order/inventory collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		OrdersCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Number of orders created by checkout transactions.",
		})
		OrdersReapedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_reaped_total",
			Help:      "Number of pending orders cancelled after the payment window.",
		})
		StockConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_conflicts_total",
			Help:      "Checkouts rolled back because a concurrent order won the stock.",
		})
		PromoRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promo_rejections_total",
			Help:      "Promocode validations rejected, labelled by reason.",
		}, []string{"reason"})
		GatewayCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_calls_total",
			Help:      "Payment gateway round-trips by operation and result.",
		}, []string{"operation", "result"})

		for _, c := range []prometheus.Collector{
			OrdersCreatedTotal, OrdersReapedTotal, StockConflictsTotal,
			PromoRejectionsTotal, GatewayCallsTotal,
		} {
			if err := reg.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					panic(fmt.Errorf("register domain metric: %w", err))
				}
			}
		}
	})
}

// IncOrderCreated bumps the order creation counter when registered.
func IncOrderCreated() {
	if OrdersCreatedTotal != nil {
		OrdersCreatedTotal.Inc()
	}
}

// AddOrdersReaped adds to the reaped order counter when registered.
func AddOrdersReaped(n int) {
	if OrdersReapedTotal != nil && n > 0 {
		OrdersReapedTotal.Add(float64(n))
	}
}

// IncStockConflict bumps the stock race counter when registered.
func IncStockConflict() {
	if StockConflictsTotal != nil {
		StockConflictsTotal.Inc()
	}
}

// IncPromoRejection counts one rejected promocode validation.
func IncPromoRejection(reason string) {
	if PromoRejectionsTotal != nil {
		PromoRejectionsTotal.WithLabelValues(reason).Inc()
	}
}

// IncGatewayCall counts one payment gateway round-trip.
func IncGatewayCall(operation, result string) {
	if GatewayCallsTotal != nil {
		GatewayCallsTotal.WithLabelValues(operation, result).Inc()
	}
}
