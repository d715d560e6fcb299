// Package server wires the HTTP surface: routes, middleware, rate
// limiting, static assets and the SPA fallback.
package server

import (
	"fmt"
	"net/http"
	"time"

	"parley/internal/auth"
	"parley/internal/chat"
	"parley/internal/config"
	"parley/internal/keypool"
)

// Server holds the dependencies for the HTTP server
type Server struct {
	cfg *config.Config

	authService auth.Service
	authHandler *auth.Handler
	chatHandler *chat.Handler
	pool        *keypool.Pool
	personas    *chat.Personas
	limiter     *rateLimiter
}

// New assembles the server from its wired services.
func New(cfg *config.Config, authService auth.Service, chatService chat.Service, pool *keypool.Pool, personas *chat.Personas) *Server {
	return &Server{
		cfg:         cfg,
		authService: authService,
		authHandler: auth.NewHandler(authService),
		chatHandler: chat.NewHandler(chatService),
		pool:        pool,
		personas:    personas,
		limiter:     newAPIRateLimiter(),
	}
}

// HTTPServer configures the http.Server around the registered routes.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%s", s.cfg.Port),
		Handler:           s.RegisterRoutes(),
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}
