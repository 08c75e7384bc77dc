package api

import (
	"context"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/flooanalytics/ingest/pkg/admission"
	"github.com/flooanalytics/ingest/pkg/httputil"
	"github.com/flooanalytics/ingest/pkg/observability"
	"github.com/flooanalytics/ingest/pkg/quota"
)

// Admitter admits a batch of events for a site. *admission.Router implements it.
type Admitter interface {
	Admit(ctx context.Context, siteID string, events []admission.Event, rc admission.RequestContext) (*admission.Result, error)
}

// QuotaService is the direct quota actor interface. *quota.Actor implements it.
type QuotaService interface {
	CheckAndIncrement(ctx context.Context, ownerID string, kind quota.EventKind, planName string) error
	ReadUsage(ctx context.Context, ownerID, planName string) (quota.UsageSnapshot, error)
}

// Config configures a Server
type Config struct {
	Admitter Admitter
	Quota    QuotaService
	Health   *observability.HealthChecker
	Logger   *observability.Logger
	Metrics  *observability.Metrics
	// Registry is served on /metrics when set
	Registry *prometheus.Registry

	HomepageURL    string
	CORSOrigins    []string
	RequestTimeout time.Duration

	// Now is the request clock, time.Now when nil
	Now func() time.Time
}

// Server represents the HTTP API
type Server struct {
	admitter       Admitter
	quota          QuotaService
	router         *mux.Router
	handler        http.Handler
	logger         *observability.Logger
	homepageURL    string
	requestTimeout time.Duration
	now            func() time.Time
}

var assetPath = regexp.MustCompile(`\.(ico|png|jpg|jpeg)$`)

// NewServer creates a new API server
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger(observability.InfoLevel, os.Stdout)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}

	s := &Server{
		admitter:       cfg.Admitter,
		quota:          cfg.Quota,
		router:         mux.NewRouter(),
		logger:         cfg.Logger,
		homepageURL:    cfg.HomepageURL,
		requestTimeout: cfg.RequestTimeout,
		now:            cfg.Now,
	}
	s.setupRoutes(cfg)

	chain := httputil.Chain(
		httputil.RequestIDMiddleware(cfg.Logger),
		httputil.LoggingMiddleware(cfg.Metrics, routeName),
		httputil.RecoveryMiddleware,
		httputil.CORSMiddleware(cfg.CORSOrigins),
	)
	s.handler = otelhttp.NewHandler(chain(s.router), "ingest",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + routeName(r)
		}),
	)
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes(cfg Config) {
	s.router.MatcherFunc(isAsset).HandlerFunc(s.handleAsset)

	s.router.HandleFunc("/", s.handleRoot).Methods(http.MethodGet, http.MethodHead)
	s.router.HandleFunc("/", s.handleCollect)
	s.router.HandleFunc("/collect", s.handleCollect)
	s.router.HandleFunc("/quota/{owner_id}", s.handleQuota).Methods(http.MethodPost)

	if cfg.Health != nil {
		cfg.Health.RegisterRoutes(s.router)
	}
	if cfg.Registry != nil {
		s.router.Handle("/metrics", cfg.Metrics.Handler(cfg.Registry)).Methods(http.MethodGet)
	}

	s.router.NotFoundHandler = http.HandlerFunc(s.handleCollect)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Handler returns the fully wrapped handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

func isAsset(r *http.Request, _ *mux.RouteMatch) bool {
	p := strings.ToLower(r.URL.Path)
	return assetPath.MatchString(p) || strings.Contains(p, "favicon") || strings.Contains(p, "apple-touch-icon")
}

// routeName maps a request to a bounded metrics label
func routeName(r *http.Request) string {
	p := r.URL.Path
	switch {
	case p == "/" || p == "/collect" || p == "/healthz" || p == "/readyz" || p == "/metrics":
		return p
	case strings.HasPrefix(p, "/quota/"):
		return "/quota/{owner_id}"
	case isAsset(r, nil):
		return "asset"
	default:
		return "other"
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.homepageURL, http.StatusMovedPermanently)
}

func (s *Server) handleAsset(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNotFound)
}
