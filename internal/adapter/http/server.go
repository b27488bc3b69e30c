package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/couchcryptid/district-analytics-service/internal/analytics"
	"github.com/couchcryptid/district-analytics-service/internal/domain"
	"github.com/couchcryptid/district-analytics-service/internal/observability"
)

// DistrictLister lists the registry in catalog order.
type DistrictLister interface {
	List() []domain.District
}

// AnalyticsService answers the per-district queries.
type AnalyticsService interface {
	Current(ctx context.Context, code string) (analytics.DistrictMetric, error)
	Trends(ctx context.Context, code string, months int) (analytics.Trends, error)
	Compare(ctx context.Context, codes []string, month *domain.Month) (domain.ComparisonResult, error)
}

// OverviewProvider returns the state-wide summary.
type OverviewProvider interface {
	Overview(ctx context.Context) (domain.StateOverview, error)
}

// Locator maps a coordinate to its district.
type Locator interface {
	Resolve(ctx context.Context, lat, lon float64) (domain.District, error)
}

// Deps are the components the API serves from.
type Deps struct {
	Districts   DistrictLister
	Analytics   AnalyticsService
	Overview    OverviewProvider
	Locator     Locator
	Ready       sharedobs.ReadinessChecker
	Metrics     *observability.Metrics
	CORSOrigins []string
	Logger      *slog.Logger
}

// Server exposes the /api routes alongside health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the analytics API mounted under /api.
func NewServer(addr string, deps Deps) *Server {
	router := mux.NewRouter()
	h := &handlers{deps: deps, logger: deps.Logger}

	router.HandleFunc("/healthz", sharedobs.LivenessHandler()).Methods(http.MethodGet)
	router.HandleFunc("/readyz", sharedobs.ReadinessHandler(deps.Ready)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/", h.banner).Methods(http.MethodGet)
	api.HandleFunc("/districts", h.listDistricts).Methods(http.MethodGet)
	// compare must be registered before {code} or it is captured as a code.
	api.HandleFunc("/districts/compare", h.compare).Methods(http.MethodGet)
	api.HandleFunc("/districts/{code}/current", h.current).Methods(http.MethodGet)
	api.HandleFunc("/districts/{code}/trends", h.trends).Methods(http.MethodGet)
	api.HandleFunc("/state/overview", h.overview).Methods(http.MethodGet)
	api.HandleFunc("/location/detect", h.detectLocation).Methods(http.MethodPost)

	router.Use(metricsMiddleware(deps.Metrics))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: deps.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Origin", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         86400,
	})

	var handler http.Handler = router
	handler = recoveryMiddleware(deps.Logger)(handler)
	handler = corsHandler.Handler(handler)
	handler = accessMiddleware(deps.Logger)(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: deps.Logger,
	}
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// Readiness combines several checkers; the first failure wins.
type Readiness []sharedobs.ReadinessChecker

// CheckReadiness runs every checker in order.
func (r Readiness) CheckReadiness(ctx context.Context) error {
	for _, c := range r {
		if c == nil {
			continue
		}
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // the client may have gone away
}
