package http

import (
	"net/http"

	"product-service/internal/metrics"
	middleware_http "product-service/internal/middleware/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

type RouterDeps struct {
	Products *ProductHandler
	Health   *HealthHandler
	Recorder *metrics.Recorder
	Gatherer prometheus.Gatherer
}

// NewRouter mounts the service routes. /health and /metrics are left out of the request
// metrics; every product route is recorded.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware_http.TraceMiddleware)

	// unrouted requests carry no route pattern and stay out of the request metrics
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method_not_allowed"})
	})

	r.Get("/health", deps.Health.Check)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))

	r.Group(func(r chi.Router) {
		r.Use(deps.Recorder.Middleware)
		r.Get("/products", deps.Products.List)
		r.Get("/products/{id}", deps.Products.GetByID)
		r.Post("/products", deps.Products.Create)
	})

	return r
}
