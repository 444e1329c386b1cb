// Package server
//
// @title Studyhall Auth Gateway API
// @version 1.0
// @description Session and authentication API for the Studyhall classroom app
// @host localhost:8080
// @BasePath /
package server

import (
	"context"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/studyhall-dev/studyhall/internal/config"
	"github.com/studyhall-dev/studyhall/internal/docstore"
	"github.com/studyhall-dev/studyhall/internal/identity"
	"github.com/studyhall-dev/studyhall/internal/session"
	"github.com/studyhall-dev/studyhall/internal/store"
	"github.com/studyhall-dev/studyhall/internal/workers"
)

// Server represents the HTTP server
type Server struct {
	router      *gin.Engine
	db          *gorm.DB
	config      *config.Config
	logger      zerolog.Logger
	sessions    *session.Manager
	asynqClient *asynq.Client
	version     string
}

// New creates a new server instance
func New(cfg *config.Config, zlog zerolog.Logger, version string) (*Server, error) {
	// Initialize local database
	db, err := store.Open(cfg.Database.URL, zlog)
	if err != nil {
		return nil, err
	}

	// Local config carries the auto-generated token encryption key
	localCfg, err := store.EnsureLocalConfig(db)
	if err != nil {
		return nil, err
	}
	key, err := store.EncryptionKey(localCfg)
	if err != nil {
		return nil, err
	}

	// Backend clients
	creds := store.NewCredentials(db, key)
	provider := identity.NewClient(cfg.Backend.URL, cfg.Backend.APIKey, creds, zlog)
	docs := docstore.NewClient(cfg.Backend.URL, cfg.Backend.APIKey)

	// Asynq client for the sign-up reconciliation queue
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr: cfg.Redis.Address,
	})

	enqueuer := workers.NewEnqueuer(store.NewOutbox(db), asynqClient, zlog)

	// The session manager subscribes to credential changes here and holds
	// that subscription until Close
	sessions := session.New(provider, docs, zlog, session.WithCompletions(enqueuer))

	registerValidators()

	server := &Server{
		db:          db,
		config:      cfg,
		logger:      zlog,
		sessions:    sessions,
		asynqClient: asynqClient,
		version:     version,
	}

	server.setupRouter()

	return server, nil
}

// registerValidators adds custom binding validators
func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
			_, ok := session.ParseRole(fl.Field().String())
			return ok
		})
	}
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(s.sessionMiddleware())

	// CORS middleware
	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	s.router.GET("/health", s.healthCheck)

	// Session API
	api := s.router.Group("/api/auth")
	{
		api.POST("/signin", s.signIn)
		api.POST("/signup", s.signUp)
		api.POST("/signout", s.signOut)
		api.GET("/session", s.getSession)
		api.GET("/events", s.sessionEvents)
	}

	// Dev inference proxy (disabled unless an upstream is configured)
	if s.config.Proxy.Upstream != "" {
		s.mountInferenceProxy()
	}
}

// sessionMiddleware injects the session manager into the request context
func (s *Server) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(session.NewContext(c.Request.Context(), s.sessions))
		c.Next()
	}
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

// mountInferenceProxy forwards the configured path prefix to the local
// inference server. Inference responses stream slowly, hence the extended
// timeout on the proxy transport.
func (s *Server) mountInferenceProxy() {
	upstream, err := url.Parse(s.config.Proxy.Upstream)
	if err != nil {
		s.logger.Warn().Err(err).Str("upstream", s.config.Proxy.Upstream).Msg("Invalid inference upstream, proxy disabled")
		return
	}

	proxy := httputil.NewSingleHostReverseProxy(upstream)
	proxy.Transport = &http.Transport{
		ResponseHeaderTimeout: s.config.Proxy.Timeout,
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("Inference proxy error")
		w.WriteHeader(http.StatusBadGateway)
	}

	prefix := s.config.Proxy.PathPrefix
	s.router.Any(prefix+"/*path", func(c *gin.Context) {
		proxy.ServeHTTP(c.Writer, c.Request)
	})

	s.logger.Info().Str("prefix", prefix).Str("upstream", upstream.String()).Msg("Inference proxy mounted")
}

// @Router /health [get]
// @Success 200 {object} map[string]interface{}
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "studyhall-auth",
	})
}

// GetDB returns the database connection for use by workers
func (s *Server) GetDB() *gorm.DB {
	return s.db
}

// Start starts the HTTP server
func (s *Server) Start() error {
	port := ":8080"

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:    port,
		Handler: s.router,
		// Generous write timeout: the events stream and the inference
		// proxy hold connections open
		ReadTimeout:       180 * time.Second,
		WriteTimeout:      0,
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       300 * time.Second,
	}

	// Start server in goroutine
	go func() {
		s.logger.Info().Str("port", port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")

	// Release the credential-change subscription and subscriber channels
	s.sessions.Close()

	if err := s.asynqClient.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("Error closing Asynq client")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	s.logger.Info().Msg("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	// Close database connection to flush WAL writes
	if sqlDB, err := s.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			s.logger.Error().Err(err).Msg("Error closing database")
		}
	}

	s.logger.Info().Msg("Server shutdown complete")

	return nil
}
