package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/civicstream/civic-auth/internal/auth"
	"github.com/civicstream/civic-auth/internal/config"
)

type Server struct {
	config      *config.AppConfig
	log         *zap.Logger
	echo        *echo.Echo
	authHandler *auth.Handler
}

type Params struct {
	fx.In

	Config         *config.AppConfig
	Logger         *zap.Logger
	AuthHandler    *auth.Handler
	AuthMiddleware *auth.Middleware
}

func NewServer(p Params) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			p.Logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status))
			return nil
		},
	}))

	p.AuthHandler.Register(e, p.AuthMiddleware)

	return &Server{
		config:      p.Config,
		log:         p.Logger,
		echo:        e,
		authHandler: p.AuthHandler,
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.config.Server.Host, s.config.Server.Port)

	s.log.Info("Starting HTTP server", zap.String("address", addr))

	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

func (s *Server) Stop() {
	s.log.Info("shutting down HTTP server")
	if err := s.echo.Shutdown(context.Background()); err != nil {
		s.log.Error("shutdown failed", zap.Error(err))
	}
}
