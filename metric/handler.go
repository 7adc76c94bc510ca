package metric

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360/sembridge/errors"
	"github.com/c360/sembridge/pkg/security"
	"github.com/c360/sembridge/pkg/tlsutil"
)

// Server is the operational HTTP endpoint: the Prometheus scrape
// handler plus whatever extra handlers the binary mounts (component
// status, pending-command review, manual cycle trigger).
type Server struct {
	addr     string
	path     string
	registry *MetricsRegistry
	security security.Config

	mu     sync.Mutex
	extra  map[string]http.Handler
	server *http.Server
}

// NewServer creates a server listening on addr and serving the
// registry's metrics at path. Defaults are ":9090" and "/metrics".
func NewServer(addr, path string, registry *MetricsRegistry, securityCfg security.Config) *Server {
	if addr == "" {
		addr = ":9090"
	}
	if path == "" {
		path = "/metrics"
	}
	return &Server{
		addr:     addr,
		path:     path,
		registry: registry,
		security: securityCfg,
		extra:    make(map[string]http.Handler),
	}
}

// Handle mounts handler at pattern alongside the metrics endpoint.
// Call before Start; "/", "/health", and the metrics path are taken.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extra[pattern] = handler
}

// HandleFunc is Handle for plain handler functions.
func (s *Server) HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.Handle(pattern, http.HandlerFunc(handler))
}

// Start serves until Stop is called. It blocks, so run it from its own
// goroutine; it returns nil after a clean Stop.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.server != nil {
		s.mu.Unlock()
		return errors.WrapInvalid(
			fmt.Errorf("server already running"),
			"metric.Server", "Start", "state check")
	}
	if s.registry == nil {
		s.mu.Unlock()
		return errors.WrapFatal(
			fmt.Errorf("nil registry"),
			"metric.Server", "Start", "metrics registry not provided")
	}

	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.HandlerFor(
		s.registry.PrometheusRegistry(),
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		},
	))

	// Liveness probe: the process is up and serving.
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	for pattern, handler := range s.extra {
		mux.Handle(pattern, handler)
	}
	mux.HandleFunc("/", s.index)

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.security.TLS.Server.Enabled {
		tlsConfig, err := tlsutil.LoadServerTLSConfig(s.security.TLS.Server)
		if err != nil {
			s.mu.Unlock()
			return errors.WrapFatal(err, "metric.Server", "Start", "load TLS config")
		}
		srv.TLSConfig = tlsConfig
	}
	s.server = srv
	s.mu.Unlock()

	var err error
	if srv.TLSConfig != nil {
		err = srv.ListenAndServeTLS("", "")
	} else {
		err = srv.ListenAndServe()
	}
	if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return errors.WrapFatal(err, "metric.Server", "Start",
			fmt.Sprintf("serve on %s", s.addr))
	}
	return nil
}

// index lists the mounted endpoints as plain text.
func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.mu.Lock()
	patterns := make([]string, 0, len(s.extra)+2)
	patterns = append(patterns, s.path, "/health")
	for pattern := range s.extra {
		patterns = append(patterns, pattern)
	}
	s.mu.Unlock()
	sort.Strings(patterns)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprint(w, "sembridge operational endpoint\n\n")
	for _, pattern := range patterns {
		_, _ = fmt.Fprintf(w, "  %s\n", pattern)
	}
}

// Stop shuts the server down, waiting briefly for in-flight requests
// before closing the remaining connections. Safe to call when the
// server never started.
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		_ = srv.Close()
		return errors.WrapTransient(err, "metric.Server", "Stop",
			"drain in-flight requests")
	}
	return nil
}

// Address returns the URL of the metrics endpoint.
func (s *Server) Address() string {
	scheme := "http"
	if s.security.TLS.Server.Enabled {
		scheme = "https"
	}
	addr := s.addr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return fmt.Sprintf("%s://%s%s", scheme, addr, s.path)
}
