package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "theplug"

// Gift results
const (
	GiftOK                = "ok"
	GiftInsufficientFunds = "insufficient_funds"
	GiftUnknownRecipient  = "unknown_recipient"
	GiftSelfTransfer      = "self_transfer"
	GiftInvalid           = "invalid"
	GiftError             = "error"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	gifts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "gifts_total",
			Help:      "Gift transfers by result.",
		},
		[]string{"result"},
	)

	giftCoins = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "gift_coins_total",
			Help:      "Coins moved by committed gifts.",
		},
	)

	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "connections",
			Help:      "Live real-time connections.",
		},
	)

	relayFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "frames_total",
			Help:      "Outbound frames enqueued, by event.",
		},
		[]string{"event"},
	)

	relayDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "dropped_frames_total",
			Help:      "Frames evicted from full per-connection queues.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		gifts,
		giftCoins,
		wsConnections,
		relayFrames,
		relayDropped,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func RecordGift(result string, value int64) {
	gifts.WithLabelValues(result).Inc()
	if result == GiftOK {
		giftCoins.Add(float64(value))
	}
}

func ConnectionOpened() { wsConnections.Inc() }

func ConnectionClosed() { wsConnections.Dec() }

func RecordFrame(event string) {
	relayFrames.WithLabelValues(event).Inc()
}

func RecordDroppedFrame() {
	relayDropped.Inc()
}
