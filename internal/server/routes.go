package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"parley/internal/auth"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes configures and returns the router
func (s *Server) RegisterRoutes() http.Handler {
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware())
	r.Use(SecurityHeadersMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes, all behind the per-IP rate limit
	api := r.Group("/api")
	api.Use(RateLimitMiddleware(s.limiter))
	{
		api.POST("/create-account", s.authHandler.CreateAccount)
		api.POST("/login", s.authHandler.Login)
		api.POST("/verify-session", s.authHandler.VerifySession)
		api.POST("/logout", s.authHandler.Logout)

		api.POST("/chat", auth.RequireAuth(s.authService), s.chatHandler.Chat)

		api.GET("/health", s.healthHandler)
	}

	// Everything else is the front end: real files are served as-is,
	// unknown paths get the SPA entry so client-side routing works.
	r.NoRoute(s.staticHandler)

	return r
}

// healthHandler handles GET /api/health
func (s *Server) healthHandler(c *gin.Context) {
	accounts, liveSessions := s.authService.Stats(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"keysConfigured": s.pool.Size(),
		"models":         s.personas.Models(),
		"accounts":       accounts,
		"activeSessions": liveSessions,
	})
}

// staticHandler serves front-end assets and the SPA fallback for any
// route the API does not claim.
func (s *Server) staticHandler(c *gin.Context) {
	path := c.Request.URL.Path

	// Unmatched API routes stay JSON; they never fall through to HTML.
	if path == "/api" || strings.HasPrefix(path, "/api/") {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "not found"})
		return
	}
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "not found"})
		return
	}

	// Clean with a leading slash so ".." cannot escape the static root.
	file := filepath.Join(s.cfg.StaticDir, filepath.Clean("/"+path))
	if info, err := os.Stat(file); err == nil && !info.IsDir() {
		c.File(file)
		return
	}

	c.File(filepath.Join(s.cfg.StaticDir, "index.html"))
}
