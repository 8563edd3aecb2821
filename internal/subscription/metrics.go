package subscription

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "factcast",
		Name:      "subscriptions_active",
		Help:      "Number of running subscriptions.",
	})
	factsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "factcast",
		Name:      "facts_delivered_total",
		Help:      "Facts handed to observers, by delivery mode.",
	}, []string{"mode"})
	subscriptionErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "factcast",
		Name:      "subscription_errors_total",
		Help:      "Subscriptions terminated by a store failure.",
	})
	catchupSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "factcast",
		Name:      "catchup_seconds",
		Help:      "Duration of the catchup phase.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	})
)

func deliveryMode(idOnly bool) string {
	if idOnly {
		return "id"
	}
	return "fact"
}
