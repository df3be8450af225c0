package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector defines the interface for relay metrics collection
type Collector interface {
	// Connection metrics
	ConnectionOpened(codec string)
	ConnectionClosed(codec string)

	// Room metrics
	RoomJoined(roomCount int)
	RoomLeft(roomCount int)

	// Envelope metrics
	EnvelopeReceived(category string, sizeBytes int)
	EnvelopeRelayed(category string, recipients int)
	EnvelopeDropped(category, reason string)

	// HTTP metrics
	HTTPRequest(method, path string, status int, duration time.Duration, sizeBytes int)

	// Handler returns an HTTP handler for metrics endpoint
	Handler() http.Handler
}

// Drop reasons reported through EnvelopeDropped.
const (
	ReasonNoRoom       = "no_room"
	ReasonUnknown      = "unknown_category"
	ReasonQueueFull    = "queue_full"
	ReasonRateLimited  = "rate_limited"
	ReasonDecodeFailed = "decode_failed"
)

// PrometheusCollector implements the Collector interface using Prometheus
type PrometheusCollector struct {
	registry *prometheus.Registry

	activeConnections prometheus.Gauge
	connections       *prometheus.CounterVec
	disconnects       *prometheus.CounterVec

	activeRooms prometheus.Gauge
	joins       prometheus.Counter
	leaves      prometheus.Counter

	envelopesReceived *prometheus.CounterVec
	envelopesRelayed  *prometheus.CounterVec
	envelopesDropped  *prometheus.CounterVec
	envelopeSize      *prometheus.HistogramVec
	fanout            *prometheus.HistogramVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpSize     *prometheus.HistogramVec
}

// NewPrometheusCollector creates a new PrometheusCollector on its own registry
func NewPrometheusCollector() *PrometheusCollector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &PrometheusCollector{
		registry: reg,

		activeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_active_connections",
			Help: "Number of open websocket connections",
		}),
		connections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_connections_total",
			Help: "Total number of websocket connections accepted",
		}, []string{"codec"}),
		disconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_disconnects_total",
			Help: "Total number of websocket connections closed",
		}, []string{"codec"}),

		activeRooms: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_active_rooms",
			Help: "Number of rooms with at least one member",
		}),
		joins: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_room_joins_total",
			Help: "Total number of room joins",
		}),
		leaves: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_room_leaves_total",
			Help: "Total number of room leaves, disconnects included",
		}),

		envelopesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_envelopes_received_total",
			Help: "Total number of envelopes received from clients",
		}, []string{"category"}),
		envelopesRelayed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_envelopes_relayed_total",
			Help: "Total number of envelope deliveries queued to room members",
		}, []string{"category"}),
		envelopesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_envelopes_dropped_total",
			Help: "Total number of envelopes or deliveries dropped",
		}, []string{"category", "reason"}),
		envelopeSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relay_envelope_size_bytes",
			Help:    "Size of received envelopes in bytes",
			Buckets: prometheus.ExponentialBuckets(64, 4, 6),
		}, []string{"category"}),
		fanout: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relay_fanout_recipients",
			Help:    "Number of recipients per relayed envelope",
			Buckets: []float64{0, 1, 2, 4, 8},
		}, []string{"category"}),

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		}, []string{"method", "path"}),
	}
}

func (c *PrometheusCollector) ConnectionOpened(codec string) {
	c.activeConnections.Inc()
	c.connections.WithLabelValues(codec).Inc()
}

func (c *PrometheusCollector) ConnectionClosed(codec string) {
	c.activeConnections.Dec()
	c.disconnects.WithLabelValues(codec).Inc()
}

func (c *PrometheusCollector) RoomJoined(roomCount int) {
	c.joins.Inc()
	c.activeRooms.Set(float64(roomCount))
}

func (c *PrometheusCollector) RoomLeft(roomCount int) {
	c.leaves.Inc()
	c.activeRooms.Set(float64(roomCount))
}

func (c *PrometheusCollector) EnvelopeReceived(category string, sizeBytes int) {
	c.envelopesReceived.WithLabelValues(category).Inc()
	c.envelopeSize.WithLabelValues(category).Observe(float64(sizeBytes))
}

func (c *PrometheusCollector) EnvelopeRelayed(category string, recipients int) {
	c.envelopesRelayed.WithLabelValues(category).Add(float64(recipients))
	c.fanout.WithLabelValues(category).Observe(float64(recipients))
}

func (c *PrometheusCollector) EnvelopeDropped(category, reason string) {
	c.envelopesDropped.WithLabelValues(category, reason).Inc()
}

func (c *PrometheusCollector) HTTPRequest(method, path string, status int, duration time.Duration, sizeBytes int) {
	c.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpSize.WithLabelValues(method, path).Observe(float64(sizeBytes))
}

// Handler returns an HTTP handler for metrics endpoint
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Nop discards every observation.
type Nop struct{}

func (Nop) ConnectionOpened(string)                             {}
func (Nop) ConnectionClosed(string)                             {}
func (Nop) RoomJoined(int)                                      {}
func (Nop) RoomLeft(int)                                        {}
func (Nop) EnvelopeReceived(string, int)                        {}
func (Nop) EnvelopeRelayed(string, int)                         {}
func (Nop) EnvelopeDropped(string, string)                      {}
func (Nop) HTTPRequest(string, string, int, time.Duration, int) {}
func (Nop) Handler() http.Handler                               { return http.NotFoundHandler() }
