// Package remotetest runs an in-process fake of the extraction service for
// tests: JWT bearer auth, admin RBAC, the single-session login policy and
// configurable document responses.
package remotetest

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

const (
	defaultSecret   = "remotetest-secret"
	defaultTokenTTL = 30 * time.Minute
	sessionTimeout  = 24 * time.Hour
)

// Option customizes a Server.
type Option func(*Server)

// WithTokenTTL sets the lifetime of issued tokens.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) { s.tokenTTL = ttl }
}

// WithLogger routes handler logs to log.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// Server is the fake service. Safe for concurrent use.
type Server struct {
	echo     *echo.Echo
	http     *httptest.Server
	secret   []byte
	tokenTTL time.Duration
	log      zerolog.Logger
	now      func() time.Time

	users *userStore
	docs  *documentStub

	mu       sync.Mutex
	requests map[string]int
}

// NewServer starts a fake service on a loopback port. Close it when done.
func NewServer(opts ...Option) *Server {
	s := &Server{
		secret:   []byte(defaultSecret),
		tokenTTL: defaultTokenTTL,
		log:      zerolog.Nop(),
		now:      time.Now,
		users:    newUserStore(),
		docs:     newDocumentStub(),
		requests: make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.echo = s.newRouter()
	s.http = httptest.NewServer(s.echo)
	return s
}

// URL is the base URL clients should use.
func (s *Server) URL() string { return s.http.URL }

func (s *Server) Close() { s.http.Close() }

// Requests reports how many requests hit path (route pattern, e.g.
// "/auth/users/:username").
func (s *Server) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

func (s *Server) newRouter() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = newHTTPErrorHandler(s.log)

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(s.countRequests)

	authed := s.authenticate
	admin := requireAdmin

	e.GET("/health", s.health)

	e.POST("/auth/login", s.login)
	e.POST("/auth/logout", s.logout, authed)
	e.GET("/auth/me", s.me, authed)
	e.POST("/auth/register", s.register, authed, admin)
	e.GET("/auth/users", s.listUsers, authed, admin)
	e.DELETE("/auth/users/:username", s.deleteUser, authed, admin)
	e.PATCH("/auth/users/:username/toggle-active", s.toggleActive, authed, admin)

	e.POST("/process-document", s.processDocument, authed)
	e.POST("/analyze-bills", s.analyzeBills, authed)

	return e
}

func (s *Server) countRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		s.requests[c.Path()]++
		s.mu.Unlock()
		return next(c)
	}
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": s.now().UTC().Format("2006-01-02T15:04:05.000000"),
	})
}
