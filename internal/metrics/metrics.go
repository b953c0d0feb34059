// Package metrics records per-route request outcomes and latencies on an injected
// Prometheus registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"product-service/internal/database"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns the request collectors. Create one per registry.
type Recorder struct {
	registerer prometheus.Registerer
	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		registerer: reg,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests.",
			},
			[]string{"path", "method", "status"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_latency_seconds",
				Help:    "Latency of HTTP requests, connection acquisition included.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
	}
	reg.MustRegister(r.requests, r.latency)
	return r
}

// WatchPool exports the pool's ceiling and current borrows as gauges.
func (r *Recorder) WatchPool(pool *database.Pool) {
	r.registerer.MustRegister(
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "db_pool_max_connections",
				Help: "Connection ceiling of the product store pool.",
			},
			func() float64 { return float64(pool.Stats().Max) },
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "db_pool_in_use_connections",
				Help: "Connections currently borrowed from the product store pool.",
			},
			func() float64 { return float64(pool.Stats().InUse) },
		),
	)
}

// Middleware must be mounted on routed handlers: the label is the chi route pattern, so
// /products/1 and /products/2 share "/products/{id}". Each request increments the counter
// once and observes the histogram once, panics included.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		rec := &statusRecorder{ResponseWriter: w}
		start := time.Now()

		defer func() {
			rv := recover()
			status := rec.Status()
			if rv != nil {
				status = http.StatusInternalServerError
			}
			r.observe(routePattern(req), req.Method, status, time.Since(start))
			if rv != nil {
				panic(rv)
			}
		}()

		next.ServeHTTP(rec, req)
	})
}

func (r *Recorder) observe(path, method string, status int, elapsed time.Duration) {
	r.latency.WithLabelValues(path, method).Observe(elapsed.Seconds())
	r.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
}

// Handler serves the exposition text of g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func routePattern(req *http.Request) string {
	if rctx := chi.RouteContext(req.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return req.URL.Path
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Status is the code sent to the client; a handler that wrote nothing sent 200.
func (r *statusRecorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}
