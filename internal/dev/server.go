package dev

import (
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vorma-dev/vorma/internal/config"
	"github.com/vorma-dev/vorma/pkg/protocol"
)

// Server is the development server: it plays the Vorma route handler for
// the navigation runtime using JSON payload fixtures, serves static
// assets, broadcasts reloads, and exposes Prometheus metrics.
type Server struct {
	cfg     *config.Config
	reload  *ReloadServer
	watcher *Watcher
	router  chi.Router

	registry *prometheus.Registry
	requests *prometheus.CounterVec

	mu      sync.RWMutex
	buildID string
}

// NewServer assembles a dev server from project configuration.
func NewServer(cfg *config.Config) *Server {
	s := &Server{
		cfg:      cfg,
		reload:   NewReloadServer(),
		registry: prometheus.NewRegistry(),
		buildID:  newBuildID(),
	}

	s.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vorma",
		Subsystem: "dev",
		Name:      "requests_total",
		Help:      "Dev server requests by kind.",
	}, []string{"kind"})
	s.registry.MustRegister(s.requests)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/__vorma/ws", s.reload.HandleWebSocket)
	r.Handle("/__vorma/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	r.Get("/assets/*", s.serveAsset)
	r.NotFound(s.serveRoute)
	s.router = r

	return s
}

// BuildID returns the current dev build identity.
func (s *Server) BuildID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buildID
}

// BumpBuildID rotates the build identity, as a rebuild would.
func (s *Server) BumpBuildID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buildID = newBuildID()
	return s.buildID
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Dev.Host, s.cfg.Dev.Port)
}

// StartWatcher begins file watching and wires changes to reload
// broadcasts. Code changes rotate the build id so connected runtimes see
// a build-id mismatch on their next fetch.
func (s *Server) StartWatcher() error {
	s.watcher = NewWatcher(WatcherConfig{Paths: s.cfg.Dev.WatchDirs}, func(c Change) {
		switch c.Type {
		case ChangeCSS:
			s.reload.NotifyCSS(filepath.Base(c.Path))
		default:
			s.reload.NotifyReload(s.BumpBuildID())
		}
	})
	return s.watcher.Start()
}

// Close stops the watcher.
func (s *Server) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// serveRoute serves a payload fixture when the request carries the
// navigation query parameter, and the document shell otherwise.
func (s *Server) serveRoute(w http.ResponseWriter, r *http.Request) {
	if !r.URL.Query().Has(protocol.QueryJSON) {
		s.requests.WithLabelValues("document").Inc()
		s.serveShell(w, r)
		return
	}
	s.requests.WithLabelValues("payload").Inc()

	fixture, err := s.fixturePath(r.URL.Path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	data, err := os.ReadFile(fixture)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set(protocol.HeaderBuildID, s.BuildID())
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// fixturePath maps a route path to its payload fixture:
// /users/42 -> <payloadDir>/users/42.json, / -> <payloadDir>/index.json.
// The result is confined to the payload directory.
func (s *Server) fixturePath(routePath string) (string, error) {
	clean := path.Clean("/" + routePath)
	if clean == "/" {
		clean = "/index"
	}
	full := filepath.Join(s.cfg.Dev.PayloadDir, filepath.FromSlash(clean)+".json")

	root, err := filepath.Abs(s.cfg.Dev.PayloadDir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(full)
	if err != nil {
		return "", err
	}
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return "", fmt.Errorf("fixture path escapes payload dir: %s", routePath)
	}
	return abs, nil
}

func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request) {
	s.requests.WithLabelValues("asset").Inc()
	rest := chi.URLParam(r, "*")
	http.ServeFile(w, r, filepath.Join(s.cfg.Dev.AssetDir, filepath.FromSlash(path.Clean("/"+rest))))
}

// serveShell writes a minimal document so a browser pointed at the dev
// server has something to bootstrap from.
func (s *Server) serveShell(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!doctype html>
<html>
<head><meta charset="utf-8"><title>%s</title></head>
<body data-vorma-build-id=%q></body>
</html>
`, s.cfg.Name, s.BuildID())
}

func newBuildID() string {
	return "dev-" + uuid.NewString()[:8]
}
