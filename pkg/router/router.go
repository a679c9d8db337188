// Package router wraps chi with request logging and a graceful Start.
package router

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"market-pipeline/pkg/logger"
)

// HTTP server timeouts.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

type HandlerFunc = http.HandlerFunc

type Router struct {
	mux chi.Router
	log logger.Logger
}

// New creates a router with request IDs, panic recovery and access logging.
func New(log logger.Logger) *Router {
	if log == nil {
		log = logger.Discard()
	}
	r := &Router{mux: chi.NewRouter(), log: log.Named("http")}
	r.mux.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, r.accessLog)
	return r
}

// --- Register paths ---
func (r *Router) GET(path string, handler HandlerFunc)    { r.mux.Get(path, handler) }
func (r *Router) POST(path string, handler HandlerFunc)   { r.mux.Post(path, handler) }
func (r *Router) PUT(path string, handler HandlerFunc)    { r.mux.Put(path, handler) }
func (r *Router) PATCH(path string, handler HandlerFunc)  { r.mux.Patch(path, handler) }
func (r *Router) DELETE(path string, handler HandlerFunc) { r.mux.Delete(path, handler) }

// Handle mounts an http.Handler for every method on pattern.
func (r *Router) Handle(pattern string, h http.Handler) { r.mux.Handle(pattern, h) }

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Routes lists registered METHOD path pairs, mainly for tests.
func (r *Router) Routes() []string {
	var routes []string
	_ = chi.Walk(r.mux, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, method+" "+route)
		return nil
	})
	return routes
}

// --- Start server ---

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (r *Router) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		r.log.Info(ctx, "server started", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	r.log.Info(ctx, "shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// --- Logging response writer to capture status codes ---
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (lrw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return lrw.ResponseWriter
}

func (r *Router) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, req)

		fields := []logger.Field{
			logger.String("method", req.Method),
			logger.String("path", req.URL.Path),
			logger.Int("status", lrw.statusCode),
			logger.String("duration", time.Since(start).String()),
			logger.String("request_id", middleware.GetReqID(req.Context())),
		}
		switch {
		case lrw.statusCode >= 500:
			r.log.Error(req.Context(), "request", fields...)
		case lrw.statusCode >= 400:
			r.log.Warn(req.Context(), "request", fields...)
		default:
			r.log.Info(req.Context(), "request", fields...)
		}
	})
}
