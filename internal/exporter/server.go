package exporter

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	serverShutdownTimeout = 5 * time.Second
	serverReadHeaderTO    = 5 * time.Second
)

var landingPage = template.Must(template.New("landing").Parse(`<!DOCTYPE html>
<html>
<head><title>RouterOS exporter</title></head>
<body>
<h1>RouterOS exporter</h1>
<p><a href="/metrics">Metrics</a></p>
<ul>
{{- range .}}
<li>{{.Name}} ({{.Address}}): {{len .Collectors}} collectors</li>
{{- end}}
</ul>
</body>
</html>
`))

// Server exposes an exporter over HTTP.
// The exposed exporter can be replaced while the server keeps listening.
// Params: swappable exporter, registry and router.
// Returns: runnable HTTP server.
type Server struct {
	current  atomic.Pointer[Exporter]
	registry *prometheus.Registry
	router   chi.Router
}

// currentCollector forwards scrapes to whatever exporter the server holds.
type currentCollector struct {
	server *Server
}

func (c currentCollector) Describe(chan<- *prometheus.Desc) {}

func (c currentCollector) Collect(ch chan<- prometheus.Metric) {
	c.server.Exporter().Collect(ch)
}

// promErrorLog routes promhttp errors to the current exporter logger.
type promErrorLog struct {
	server *Server
}

func (l promErrorLog) Println(v ...interface{}) {
	l.server.log().Error(fmt.Sprint(v...))
}

// NewServer registers exporter in a dedicated registry and builds routes.
// Params: exporter to expose, its logger receives request and lifecycle logs.
// Returns: server or registration error.
func NewServer(exporter *Exporter) (*Server, error) {
	if exporter == nil {
		return nil, fmt.Errorf("exporter is nil")
	}

	s := &Server{registry: prometheus.NewRegistry()}
	s.current.Store(exporter)
	if err := s.registry.Register(currentCollector{server: s}); err != nil {
		return nil, fmt.Errorf("register exporter: %w", err)
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(s.requestLogger)
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		ErrorLog:      promErrorLog{server: s},
		ErrorHandling: promhttp.ContinueOnError,
	}))
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	router.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := landingPage.Execute(w, s.Exporter().Targets()); err != nil {
			s.log().Warn("render landing page", slog.String("error", err.Error()))
		}
	})
	s.router = router

	return s, nil
}

// Exporter returns the exporter served by the next scrape.
// Params: none.
// Returns: current exporter.
func (s *Server) Exporter() *Exporter {
	return s.current.Load()
}

// SetExporter replaces the exposed exporter without touching the listener.
// Scrapes already in flight finish against the previous exporter.
// Params: exporter replacement, nil is ignored.
// Returns: none.
func (s *Server) SetExporter(exporter *Exporter) {
	if exporter == nil {
		return
	}
	s.current.Store(exporter)
}

func (s *Server) log() *slog.Logger {
	return s.Exporter().logger
}

// Handler returns the HTTP routes.
// Params: none.
// Returns: chi router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Registry returns the registry holding the exporter.
// Params: none.
// Returns: prometheus registry.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// Serve serves HTTP on listener until ctx is canceled.
// Params: ctx controls lifecycle; listener accepted connections source.
// Returns: serve error, nil on graceful stop.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: serverReadHeaderTO,
	}

	var once sync.Once
	stop := func() {
		once.Do(func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log().Warn("metrics server shutdown error", slog.String("error", err.Error()))
			}
		})
	}

	stopped := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-stopped:
		}
	}()
	defer close(stopped)

	s.log().Info("metrics server started", slog.String("addr", listener.Addr().String()))
	err := server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("serve %q: %w", listener.Addr().String(), err)
}

// requestLogger logs every request at debug level.
// Params: next handler.
// Returns: wrapped handler.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log().Debug(
			"http request",
			slog.String("uri", r.RequestURI),
			slog.String("method", r.Method),
			slog.Int("status", ww.Status()),
			slog.Int("size", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)),
		)
	})
}
