package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/element-skin/yggdrasil/internal/yggdrasil/fallback"
	"github.com/element-skin/yggdrasil/internal/yggdrasil/observability"
	"github.com/element-skin/yggdrasil/internal/yggdrasil/service"
	"github.com/element-skin/yggdrasil/internal/yggdrasil/store"
	"github.com/element-skin/yggdrasil/pkg/cryptox"
	"github.com/element-skin/yggdrasil/pkg/httpx"
	"github.com/element-skin/yggdrasil/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	logger  *slog.Logger
	metrics *observability.Metrics

	store    store.Store
	Engine   *service.Engine
	Textures *service.TextureService
	Fallback *fallback.Service
	Signer   *cryptox.Signer
	Meta     Meta
}

func NewRouter(st store.Store, logger *slog.Logger, metrics *observability.Metrics) *Router {
	r := &Router{
		Mux:     http.NewServeMux(),
		logger:  logger,
		metrics: metrics,
		store:   st,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		r.metricsMiddleware(),
	}

	return r
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) ApplyRoutes() {
	r.registerAuthserver()
	r.registerSessionserver()
	r.registerProfiles()
	r.registerTextures()
	r.registerSystem()
}

func (r *Router) registerAuthserver() {
	h := &AuthHandler{Engine: r.Engine}

	// Credential-bearing endpoints get the strict limit.
	r.Mux.Handle("POST /authserver/authenticate",
		httpx.Chain(http.HandlerFunc(h.HandleAuthenticate),
			httpx.RateLimitByIP(httpx.StrictLimit),
		))
	r.Mux.Handle("POST /authserver/signout",
		httpx.Chain(http.HandlerFunc(h.HandleSignout),
			httpx.RateLimitByIP(httpx.StrictLimit),
		))

	r.Mux.Handle("POST /authserver/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		))
	r.Mux.Handle("POST /authserver/validate",
		httpx.Chain(http.HandlerFunc(h.HandleValidate),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		))
	r.Mux.Handle("POST /authserver/invalidate",
		httpx.Chain(http.HandlerFunc(h.HandleInvalidate),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		))
}

func (r *Router) registerSessionserver() {
	h := &SessionHandler{Engine: r.Engine}

	r.Mux.HandleFunc("POST /sessionserver/session/minecraft/join", h.HandleJoin)
	r.Mux.HandleFunc("GET /sessionserver/session/minecraft/hasJoined", h.HandleHasJoined)
	r.Mux.HandleFunc("GET /sessionserver/session/minecraft/profile/{uuid}", h.HandleProfile)
}

func (r *Router) registerProfiles() {
	h := &ProfilesHandler{Engine: r.Engine}

	r.Mux.HandleFunc("GET /api/users/profiles/minecraft/{name}", h.HandleByName)
	r.Mux.HandleFunc("POST /api/profiles/minecraft", h.HandleBulk)

	// Aliases some launchers use without the /api prefix or with the
	// profiles path.
	r.Mux.HandleFunc("GET /users/profiles/minecraft/{name}", h.HandleByName)
	r.Mux.HandleFunc("GET /api/profiles/minecraft/{name}", h.HandleByName)
	r.Mux.HandleFunc("POST /profiles/minecraft", h.HandleBulk)

	// Services API shape.
	r.Mux.HandleFunc("GET /minecraft/profile/lookup/name/{name}", h.HandleLookup)
}

func (r *Router) registerTextures() {
	h := &TexturesHandler{Textures: r.Textures}

	r.Mux.Handle("GET /static/textures/{file}",
		httpx.Chain(http.HandlerFunc(h.HandleServe),
			httpx.RateLimitByIP(httpx.PublicLimit),
		))

	r.Mux.Handle("PUT /api/user/profile/{uuid}/{type}",
		httpx.Chain(http.HandlerFunc(h.HandleUpload),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		))
	r.Mux.Handle("DELETE /api/user/profile/{uuid}/{type}",
		httpx.Chain(http.HandlerFunc(h.HandleDelete),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		))
}

func (r *Router) registerSystem() {
	meta := &MetadataHandler{Meta: r.Meta, Signer: r.Signer, Fallback: r.Fallback}
	if r.Engine != nil {
		meta.Settings = r.Engine.Settings
	}
	sys := &SystemHandler{Store: r.store}

	r.Mux.HandleFunc("GET /{$}", meta.HandleIndex)
	r.Mux.HandleFunc("GET /livez", sys.HandleLivez)
	r.Mux.HandleFunc("GET /readyz", sys.HandleReadyz)
	if r.metrics != nil {
		r.Mux.Handle("GET /metrics", r.metrics.Handler())
	}
}

// statusRecorder captures the response code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (r *Router) metricsMiddleware() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if r.metrics == nil {
				next.ServeHTTP(w, req)
				return
			}

			_, route := r.Mux.Handler(req)
			if route == "" {
				route = "unmatched"
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, req)

			r.metrics.ObserveRequest(route, rec.status, time.Since(start).Seconds())
		})
	}
}
