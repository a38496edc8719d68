// Package server provides the fixture HTTP server the processor is exercised
// against, built on the Echo framework. It serves a hello page, a redirect
// chain that leaves plain HTTP for HTTPS, an endless redirect loop and the
// asynchronous bootstrap and recovery exchanges of the device management
// flows.
package server

import (
	"context"
	"crypto/tls"
	goerrors "errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/gaborage/go-netreq/config"
	"github.com/gaborage/go-netreq/logger"
)

const (
	// MaxContentLength caps request bodies, matching the largest payload a
	// device may send.
	MaxContentLength = "16K"

	readTimeout  = 15 * time.Second
	writeTimeout = 30 * time.Second
)

// Server represents the fixture server instance.
type Server struct {
	echo          *echo.Echo
	cfg           *config.Config
	logger        logger.Logger
	store         Store
	secureBaseURL string

	mu        sync.Mutex
	tlsServer *http.Server
}

// Option customises a Server.
type Option func(*Server)

// WithStore replaces the default in-memory document store.
func WithStore(store Store) Option {
	return func(s *Server) {
		s.store = store
	}
}

// WithSecureBaseURL sets the https origin /RedirTest1 redirects to. It
// overrides server.secure_base_url.
func WithSecureBaseURL(base string) Option {
	return func(s *Server) {
		s.secureBaseURL = strings.TrimRight(base, "/")
	}
}

// New creates the fixture server with its middlewares and routes registered.
func New(cfg *config.Config, log logger.Logger, opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		plainErrorHandler(err, c, log)
	}

	s := &Server{
		echo:          e,
		cfg:           cfg,
		logger:        log,
		secureBaseURL: strings.TrimRight(cfg.Server.SecureBaseURL, "/"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = NewMemoryStore(DefaultDocuments(), nil)
	}

	SetupMiddlewares(e, log)
	s.registerRoutes()

	log.Debug().
		Str("secure_base_url", s.secureBaseURL).
		Int("routes", len(e.Routes())).
		Msg("Fixture server routes configured")

	return s
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// ServeHTTP lets the server be mounted on any net/http listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on server.address and serves until shut down.
func (s *Server) Start() error {
	s.logger.Info().
		Str("service", s.cfg.App.Name).
		Str("version", s.cfg.App.Version).
		Str("address", s.cfg.Server.Address).
		Msg("Starting fixture server...")

	// Echo's own server, so that Shutdown reaches it.
	server := s.echo.Server
	server.Addr = s.cfg.Server.Address
	server.ReadTimeout = readTimeout
	server.WriteTimeout = writeTimeout
	return s.echo.StartServer(server)
}

// StartTLS serves HTTPS on listener with the given certificate.
func (s *Server) StartTLS(listener net.Listener, cert tls.Certificate) error {
	s.logger.Info().
		Str("address", listener.Addr().String()).
		Msg("Starting fixture TLS server...")

	srv := &http.Server{
		Handler:      s.echo,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		TLSConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		},
	}
	s.mu.Lock()
	s.tlsServer = srv
	s.mu.Unlock()

	err := srv.ServeTLS(listener, "", "")
	if goerrors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the plain and TLS listeners.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	tlsServer := s.tlsServer
	s.mu.Unlock()

	var errs []error
	if tlsServer != nil {
		errs = append(errs, tlsServer.Shutdown(ctx))
	}
	errs = append(errs, s.echo.Shutdown(ctx))
	return goerrors.Join(errs...)
}

// plainErrorHandler answers errors with a text body, the way the device
// firmware expects to read server failures.
func plainErrorHandler(err error, c echo.Context, log logger.Logger) {
	if c.Response().Committed {
		return
	}

	status := http.StatusServiceUnavailable
	msg := err.Error()
	var he *echo.HTTPError
	if goerrors.As(err, &he) {
		status = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}

	if status >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("path", c.Request().URL.Path).
			Int("status", status).
			Msg("Fixture handler failed")
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.String(status, msg)
}
