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
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reserva_http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reserva_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	ReservationConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reserva_reservation_conflicts_total",
		Help: "Reservations rejected because the slot had no capacity left.",
	})

	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reserva_processor_events_total",
		Help: "Processor events by ingestion outcome.",
	}, []string{"outcome"})

	ReconciliationAnomalies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reserva_reconciliation_anomalies_total",
		Help: "Events that arrived for a terminal or mismatched booking.",
	})

	DeadLetteredEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reserva_dead_lettered_events_total",
		Help: "Processor events parked after exhausting retries or failing verification.",
	})

	ExpiredBookings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reserva_expired_bookings_total",
		Help: "PENDING bookings auto-cancelled by the expiry sweep.",
	})
)

// Middleware records request counts and latency per route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the Prometheus scrape endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
