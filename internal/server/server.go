package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/chatlinehq/chatline/internal/auth"
)

// Handler registers routes on the echo instance.
type Handler interface {
	Register(e *echo.Echo)
}

// Options configure the HTTP server.
type Options struct {
	Addr      string
	JWTSecret string
}

// Server is the HTTP front of the service.
type Server struct {
	echo   *echo.Echo
	opts   Options
	logger *slog.Logger
}

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i any) error {
	return v.validate.Struct(i)
}

// publicRoutes are reachable without an agent JWT. The webhook
// authenticates with the instance api key instead.
func publicRoutes(c echo.Context) bool {
	path := c.Path()
	return path == "/ping" || path == "/webhook" || strings.HasPrefix(path, "/media/")
}

// New creates the HTTP server and registers all handlers.
func New(log *slog.Logger, opts Options, handlers ...Handler) *Server {
	if log == nil {
		log = slog.Default()
	}
	logger := log.With(slog.String("service", "server"))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validate: validator.New()}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			lvl := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError {
				lvl = slog.LevelError
			}
			logger.LogAttrs(c.Request().Context(), lvl, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			)
			return nil
		},
	}))
	if opts.JWTSecret != "" {
		e.Use(auth.JWTMiddleware(opts.JWTSecret, publicRoutes))
	}

	for _, h := range handlers {
		h.Register(e)
	}

	return &Server{echo: e, opts: opts, logger: logger}
}

// Echo exposes the underlying echo instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start begins serving in the background.
func (s *Server) Start() {
	go func() {
		s.logger.Info("http server listening", slog.String("addr", s.opts.Addr))
		if err := s.echo.Start(s.opts.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", slog.String("error", err.Error()))
		}
	}()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}
