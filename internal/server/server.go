// Package server exposes the load order engine over HTTP.
//
// Routes:
//
//	POST /v1/build    annotate a posted component map
//	POST /v1/sort     load order for requested ids over a posted component map
//	GET  /v1/order    load order and assets over the loaded declaration files
//	GET  /v1/registry ids declared in the loaded declaration files
//	GET  /v1/graph    DOT or SVG drawing of the loaded declarations
//	GET  /healthz     liveness and build information
//	GET  /metrics     Prometheus metrics
//
// Errors are returned as {"code": ..., "message": ...} with the status
// derived from the error code.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/loadorder/pkg/buildinfo"
	"github.com/matzehuels/loadorder/pkg/dag"
	"github.com/matzehuels/loadorder/pkg/errors"
	lio "github.com/matzehuels/loadorder/pkg/io"
	"github.com/matzehuels/loadorder/pkg/loader"
	"github.com/matzehuels/loadorder/pkg/observability"
	"github.com/matzehuels/loadorder/pkg/registry"
	"github.com/matzehuels/loadorder/pkg/render/nodelink"
	"github.com/matzehuels/loadorder/pkg/resolver"
)

const (
	// maxBodyBytes bounds posted component maps.
	maxBodyBytes = 8 << 20

	shutdownTimeout = 10 * time.Second
)

// Options configures a Server.
type Options struct {
	// Listen is the TCP address to serve on.
	Listen string
	// Paths are the declaration files and directories served by /v1/order.
	Paths []string
	// Watch reloads Paths when they change.
	Watch bool
	// Debounce overrides DefaultDebounce for the watcher.
	Debounce time.Duration

	Resolver *resolver.Resolver
	Logger   *log.Logger
	// Metrics is served on /metrics when non-nil.
	Metrics *Metrics
}

// Server serves the HTTP API.
type Server struct {
	opts   Options
	logger *log.Logger
	router chi.Router

	mu  sync.RWMutex
	reg *registry.Registry
}

// New loads the declaration files and builds the router.
func New(ctx context.Context, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Resolver == nil {
		opts.Resolver = resolver.New(nil, nil, opts.Logger, resolver.Options{})
	}

	reg, err := registry.Load(log.WithContext(ctx, opts.Logger), opts.Paths...)
	if err != nil {
		return nil, err
	}

	s := &Server{opts: opts, logger: opts.Logger, reg: reg}
	s.router = s.routes()
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Registry returns the currently served declarations.
func (s *Server) Registry() *registry.Registry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg
}

// Reload re-reads the declaration files. On failure the previous
// declarations stay in service.
func (s *Server) Reload(ctx context.Context) error {
	reg, err := registry.Load(log.WithContext(ctx, s.logger), s.opts.Paths...)
	if s.opts.Metrics != nil {
		s.opts.Metrics.onReload(err)
	}
	if err != nil {
		s.logger.Error("reload failed, keeping previous declarations", "err", errors.UserMessage(err))
		return err
	}

	s.mu.Lock()
	s.reg = reg
	s.mu.Unlock()
	s.logger.Info("reloaded declarations", "components", reg.Len())
	return nil
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.opts.Watch && len(s.opts.Paths) > 0 {
		w, err := NewWatcher(s.opts.Paths, s.opts.Debounce, s.logger)
		if err != nil {
			return err
		}
		go w.Run(ctx, func(ctx context.Context) { _ = s.Reload(ctx) })
		s.logger.Info("watching declarations", "paths", len(s.opts.Paths))
	}

	srv := &http.Server{
		Addr:              s.opts.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.opts.Listen)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/build", s.handleBuild)
		r.Post("/sort", s.handleSort)
		r.Get("/order", s.handleOrder)
		r.Get("/registry", s.handleRegistry)
		r.Get("/graph", s.handleGraph)
	})
	return r
}

// requestLogger logs every request and reports it to the HTTP hooks under
// its route pattern.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		hooks := observability.HTTP()

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		hooks.OnRequest(r.Context(), r.Method, route)
		hooks.OnResponse(r.Context(), r.Method, route, status, time.Since(start))

		s.logger.Debug("request",
			"id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start))
	})
}

// =============================================================================
// Handlers
// =============================================================================

type buildRequest struct {
	Components map[string]dag.Component `json:"components"`
}

type sortRequest struct {
	Components map[string]dag.Component `json:"components"`
	Requested  []string                 `json:"requested"`
}

type orderResponse struct {
	Order  []string       `json:"order"`
	Assets []loader.Asset `json:"assets,omitempty"`
	Cached bool           `json:"cached"`
}

type registryResponse struct {
	Components []string `json:"components"`
	Enabled    []string `json:"enabled"`
}

type errorResponse struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status string         `json:"status"`
		Build  buildinfo.Info `json:"build"`
	}{"ok", buildinfo.Get()})
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var req buildRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	res, err := s.opts.Resolver.Build(r.Context(), components(req.Components))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := lio.WriteResult(res, w); err != nil {
		s.logger.Error("write build response", "err", err)
	}
}

func (s *Server) handleSort(w http.ResponseWriter, r *http.Request) {
	var req sortRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	order, cached, err := s.opts.Resolver.ResolveWithCacheInfo(r.Context(), req.Requested, components(req.Components))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResponse{Order: order, Cached: cached})
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	reg := s.Registry()
	ids := splitIDs(r.URL.Query().Get("ids"))
	if len(ids) == 0 {
		ids = reg.Enabled()
	}

	order, cached, err := s.opts.Resolver.ResolveWithCacheInfo(r.Context(), ids, reg.Components())
	if err != nil {
		s.writeError(w, err)
		return
	}
	plan := loader.New(order, reg)
	writeJSON(w, http.StatusOK, orderResponse{Order: order, Assets: plan.Assets, Cached: cached})
}

func (s *Server) handleRegistry(w http.ResponseWriter, r *http.Request) {
	reg := s.Registry()
	enabled := reg.Enabled()
	if enabled == nil {
		enabled = []string{}
	}
	ids := reg.IDs()
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, registryResponse{Components: ids, Enabled: enabled})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format := q.Get("format")
	if format == "" {
		format = "dot"
	}
	if format != "dot" && format != "svg" {
		s.writeError(w, errors.New(errors.ErrCodeInvalidFormat, "unknown graph format %q (want dot or svg)", format))
		return
	}

	// Drawings show cycles and dangling edges instead of failing on them.
	drawer := *s.opts.Resolver
	drawer.Options.Cycles = resolver.CyclesTolerate
	drawer.Options.Dangling = resolver.DanglingIgnore
	res, err := drawer.Build(r.Context(), s.Registry().Components())
	if err != nil {
		s.writeError(w, err)
		return
	}
	dot := nodelink.ToDOT(res, nodelink.Options{
		Detailed:  q.Get("detailed") == "true",
		Highlight: splitIDs(q.Get("highlight")),
	})

	if format == "dot" {
		w.Header().Set("Content-Type", "text/vnd.graphviz")
		_, _ = w.Write([]byte(dot))
		return
	}
	svg, err := nodelink.RenderSVG(r.Context(), dot)
	if err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "render svg"))
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write(svg)
}

// =============================================================================
// Helpers
// =============================================================================

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request")
	}
	return nil
}

func components(m map[string]dag.Component) map[string]dag.Component {
	if m == nil {
		return map[string]dag.Component{}
	}
	return m
}

// splitIDs parses a comma-separated id list, dropping blanks.
func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
		if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
			code = errors.ErrCodeInvalidInput
		}
	}
	status := errors.HTTPStatus(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: errors.UserMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
