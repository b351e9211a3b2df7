package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics mengumpulkan metrik Prometheus untuk aplikasi.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	stockMovements  *prometheus.CounterVec
	cascadeLines    *prometheus.CounterVec
	lowStock        prometheus.Gauge
}

// NewMetrics menginisialisasi registry, metrik HTTP dan metrik stok.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scentstock_http_requests_total",
		Help: "Jumlah permintaan HTTP berdasarkan route dan status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scentstock_http_request_duration_seconds",
		Help:    "Durasi permintaan HTTP per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	movements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scentstock_stock_movements_total",
		Help: "Jumlah mutasi stok yang di-commit berdasarkan arah dan status clamp.",
	}, []string{"direction", "clamped"})
	cascade := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scentstock_cascade_lines_total",
		Help: "Hasil pemrosesan line item pesanan Shopify.",
	}, []string{"flow", "outcome"})
	lowStock := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scentstock_low_stock_products",
		Help: "Jumlah produk dengan stok di bawah level minimum pada pemindaian terakhir.",
	})
	registry.MustRegister(requests, duration, movements, cascade, lowStock)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		stockMovements:  movements,
		cascadeLines:    cascade,
		lowStock:        lowStock,
	}
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveMovement mencatat satu mutasi stok yang berhasil di-commit.
func (m *Metrics) ObserveMovement(direction string, clamped bool) {
	if m == nil {
		return
	}
	m.stockMovements.WithLabelValues(direction, strconv.FormatBool(clamped)).Inc()
}

// ObserveCascadeLine mencatat hasil satu line item (applied, skipped, duplicate, failed).
func (m *Metrics) ObserveCascadeLine(flow, outcome string) {
	if m == nil {
		return
	}
	m.cascadeLines.WithLabelValues(flow, outcome).Inc()
}

// SetLowStock memperbarui gauge jumlah produk dengan stok rendah.
func (m *Metrics) SetLowStock(count int) {
	if m == nil {
		return
	}
	m.lowStock.Set(float64(count))
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
