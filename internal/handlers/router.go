package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"finitefield.org/airtools-web/internal/httpx"
)

const requestTimeout = 30 * time.Second

// RouteRegistrar adds one group of routes to a sub-router.
type RouteRegistrar func(r chi.Router)

// Option configures NewRouter.
type Option func(*routerConfig)

type routerConfig struct {
	use    []func(http.Handler) http.Handler
	health http.HandlerFunc
	mounts map[string]RouteRegistrar
}

// Mount points of the route groups.
const (
	ImagesPath = "/api/site-images"
	SEOPath    = "/api/seo"
	PagesPath  = "/pages"
)

var mountOrder = []string{ImagesPath, SEOPath, PagesPath}

// NewRouter builds the chi router: request id, real ip and a request timeout,
// then any WithMiddlewares in order, /healthz, and the configured groups.
// Unmatched requests get the JSON error envelope.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{mounts: map[string]RouteRegistrar{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.health == nil {
		cfg.health = NewHealthHandlers().Healthz
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Timeout(requestTimeout))
	for _, mw := range cfg.use {
		if mw != nil {
			r.Use(mw)
		}
	}
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("route_not_found", "no route for "+req.URL.Path, http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", req.Method+" is not supported on "+req.URL.Path, http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", cfg.health)
	for _, path := range mountOrder {
		if reg := cfg.mounts[path]; reg != nil {
			r.Route(path, func(sub chi.Router) { reg(sub) })
		}
	}
	return r
}

// WithMiddlewares appends middleware after the built-in request id, real ip
// and timeout handlers.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) { cfg.use = append(cfg.use, mw...) }
}

// WithHealthHandlers replaces the /healthz handler.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) { cfg.health = h.Healthz }
}

// WithImageRoutes mounts the site image API at ImagesPath.
func WithImageRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.mounts[ImagesPath] = reg }
}

// WithSEORoutes mounts the head metadata API at SEOPath.
func WithSEORoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.mounts[SEOPath] = reg }
}

// WithPageRoutes mounts the rendered page shells at PagesPath.
func WithPageRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.mounts[PagesPath] = reg }
}
