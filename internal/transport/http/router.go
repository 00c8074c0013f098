package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vcflow/internal/platform/health"
	"vcflow/internal/platform/metrics"
	dErrors "vcflow/pkg/domain-errors"
	"vcflow/pkg/platform/httputil"
	"vcflow/pkg/platform/middleware/request"
)

// Registrar is implemented by every domain handler.
type Registrar interface {
	Register(r chi.Router)
}

// Deps are the pieces the router wires together. Metrics and Gatherer are
// optional; Gatherer defaults to the Prometheus default registry.
type Deps struct {
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
	Gatherer      prometheus.Gatherer
	AllowedOrigin string
	Health        *health.Handler
	Handlers      []Registrar
}

// NewRouter wires all dev-server endpoints with middleware. Handlers stay thin
// and delegate to domain services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(request.Recovery(deps.Logger))
	r.Use(request.RequestID)
	r.Use(request.RequestTime)
	r.Use(request.Logger(deps.Logger))
	r.Use(request.CORS(deps.AllowedOrigin))
	r.Use(request.ContentTypeJSON)
	if deps.Metrics != nil {
		r.Use(request.LatencyMiddleware(deps.Metrics))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "Not found"))
	})

	if deps.Health != nil {
		deps.Health.Register(r)
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	for _, h := range deps.Handlers {
		h.Register(r)
	}

	return r
}
