// Package httpd is the shared HTTP surface webhook connectors register
// their routes on. The core never inspects request bodies; handlers belong
// to the connectors.
package httpd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	werrors "github.com/warblebot/warble/internal/errors"
)

// Config holds the web surface configuration.
type Config struct {
	Host     string
	Port     int
	CertFile string
	KeyFile  string

	// DrainTimeout bounds the wait for in-flight handlers on shutdown
	// before connections are force-closed. Default 10s.
	DrainTimeout time.Duration
}

// Server is a routable POST/GET surface shared across connectors. Routes
// are appended during connector setup and the table is frozen before
// serving starts.
type Server struct {
	cfg    Config
	mux    *http.ServeMux
	srv    *http.Server
	logger zerolog.Logger

	mu     sync.Mutex
	frozen bool
	routes []string
}

// New creates a Server.
func New(cfg Config, logger zerolog.Logger) *Server {
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = 10 * time.Second
	}
	mux := http.NewServeMux()
	return &Server{
		cfg:    cfg,
		mux:    mux,
		logger: logger.With().Str("component", "httpd").Logger(),
		srv: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}
}

// AddRoute registers a handler for the method and path. Registration ends
// once the table is frozen; pattern conflicts are reported as errors.
func (s *Server) AddRoute(method, path string, h http.Handler) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return fmt.Errorf("httpd: add route %s %s: %w", method, path, werrors.ErrFrozen)
	}

	pattern := method + " " + path
	defer func() {
		// ServeMux reports conflicting patterns by panicking.
		if rec := recover(); rec != nil {
			err = fmt.Errorf("httpd: route %q: %v", pattern, rec)
		}
	}()
	s.mux.Handle(pattern, h)
	s.routes = append(s.routes, pattern)
	s.logger.Debug().Str("route", pattern).Msg("route registered")
	return nil
}

// Freeze closes the route table to further registration.
func (s *Server) Freeze() {
	s.mu.Lock()
	s.frozen = true
	s.mu.Unlock()
}

// Routes returns the registered route patterns.
func (s *Server) Routes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.routes...)
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.srv.Addr }

// Handler returns the route table as an http.Handler, for embedding the
// surface in another server.
func (s *Server) Handler() http.Handler { return s.mux }

// Serve blocks serving requests until Shutdown. Each request runs in its
// own goroutine; a handler panic is contained by net/http.
func (s *Server) Serve() error {
	s.logger.Info().Str("addr", s.srv.Addr).Msg("http surface starting")
	var err error
	if s.cfg.CertFile != "" && s.cfg.KeyFile != "" {
		err = s.srv.ListenAndServeTLS(s.cfg.CertFile, s.cfg.KeyFile)
	} else {
		err = s.srv.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests, waits for in-flight handlers up to the
// drain timeout, then force-closes what remains.
func (s *Server) Shutdown(ctx context.Context) error {
	drainCtx, cancel := context.WithTimeout(ctx, s.cfg.DrainTimeout)
	defer cancel()

	if err := s.srv.Shutdown(drainCtx); err != nil {
		s.logger.Warn().Err(err).Msg("drain timed out, closing connections")
		return s.srv.Close()
	}
	return nil
}
