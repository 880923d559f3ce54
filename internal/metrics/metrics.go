package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// DiscoveryStrategy counts which provider discovery strategy produced a result.
	DiscoveryStrategy = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_payment_discovery_total",
			Help: "Payment provider discovery outcomes by strategy",
		},
		[]string{"strategy"},
	)

	// SelectionShape counts which select-session request shape the backend accepted.
	SelectionShape = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_payment_selection_total",
			Help: "Accepted payment session selection request shapes",
		},
		[]string{"shape"},
	)

	// CheckoutCompletions counts finalizer outcomes.
	CheckoutCompletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_checkout_completions_total",
			Help: "Cart completion attempts by outcome",
		},
		[]string{"outcome"},
	)

	// MetadataWarnings counts goods-type metadata values that could not be interpreted.
	MetadataWarnings = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_metadata_unrecognised_total",
			Help: "Product metadata values that defaulted an item to physical",
		},
	)

	// BreakerState tracks the backend circuit breaker (0=closed, 1=half-open, 2=open).
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storefront_backend_breaker_state",
			Help: "Current state of the backend circuit breaker",
		},
		[]string{"name"},
	)

	// ProxyRequests counts relayed requests by upstream status.
	ProxyRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_proxy_requests_total",
			Help: "Requests relayed through the medusa proxy",
		},
		[]string{"method", "status"},
	)
)

// Middleware records request count and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
