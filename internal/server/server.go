package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/guiyumin/mediadrop/internal/core/config"
	"github.com/guiyumin/mediadrop/internal/core/extractor"
	"github.com/guiyumin/mediadrop/internal/core/logger"
	"github.com/guiyumin/mediadrop/internal/core/registry"
	"golang.org/x/sync/semaphore"
)

var (
	log     = logger.Get("Server")
	httpLog = logger.Get("HTTP")
)

// Response is the standard API response structure
type Response struct {
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
}

// DownloadRequest is the request body for POST /download
type DownloadRequest struct {
	URL       string `json:"url" binding:"required"`
	Platform  string `json:"platform,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	Filename  string `json:"filename,omitempty"`
}

// Server is the HTTP server for mediadrop
type Server struct {
	cfg    *config.Config
	apiKey string

	svc    *extractor.Service
	reg    *registry.Registry
	reaper *registry.Reaper

	// slots bounds how many acquisitions run at once
	slots *semaphore.Weighted

	server *http.Server
	engine *gin.Engine
}

// Deps are the components a server drives. Build assembles them from a
// config; tests pass their own.
type Deps struct {
	Service  *extractor.Service
	Registry *registry.Registry
	Reaper   *registry.Reaper
}

// New creates a server. An empty API key is replaced by a generated one,
// so every protected route always needs the X-API-Key header.
func New(cfg *config.Config, deps Deps) *Server {
	apiKey := cfg.Server.APIKey
	if apiKey == "" {
		apiKey = uuid.New().String()
	}

	maxConcurrent := cfg.Server.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}

	s := &Server{
		cfg:    cfg,
		apiKey: apiKey,
		svc:    deps.Service,
		reg:    deps.Registry,
		reaper: deps.Reaper,
		slots:  semaphore.NewWeighted(int64(maxConcurrent)),
	}
	s.engine = s.routes()
	return s
}

// APIKey returns the key clients must send.
func (s *Server) APIKey() string {
	return s.apiKey
}

// Handler returns the gin engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	e := gin.New()

	e.Use(gin.Recovery())
	e.Use(s.loggingMiddleware())
	e.Use(s.corsMiddleware())
	e.Use(s.authMiddleware())

	e.GET("/health", s.handleHealth)
	e.POST("/download", s.handleDownload)
	e.GET("/download", s.handleDownloadGet)
	e.GET("/files/:id", s.handleFile)
	e.GET("/diag/instagram", s.handleDiagInstagram)
	e.GET("/diag/instaloader", s.handleDiagInstagram)

	e.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, Response{
			Code:    404,
			Data:    nil,
			Message: "not found",
		})
	})

	return e
}

// Start starts the reaper and then the HTTP server. It blocks until the
// server stops.
func (s *Server) Start() error {
	if !config.Exists() {
		log.Emit(logger.WARNING, "No config file found, using defaults. Run 'mediadrop config init' to create one")
	}

	if s.reaper != nil {
		s.reaper.Start()
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // No timeout for downloads
		IdleTimeout:  120 * time.Second,
	}

	log.Emit(logger.INFO, "Starting mediadrop server on port %d", s.cfg.Server.Port)
	log.Emit(logger.INFO, "Storage root: %s", s.svc.Root())
	if s.cfg.Server.PrintAPIKey {
		log.Emit(logger.INFO, "API key (use header 'X-API-Key'): %s", s.apiKey)
	}

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server, then the reaper and the registry.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	if s.reaper != nil {
		s.reaper.Stop()
	}
	if s.reg != nil {
		if cerr := s.reg.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Middleware

func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Health endpoint and preflight requests don't require auth
		if c.Request.URL.Path == "/health" || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		if c.GetHeader("X-API-Key") != s.apiKey {
			c.JSON(http.StatusUnauthorized, Response{
				Code:    401,
				Data:    nil,
				Message: "invalid or missing API key",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	allowAny := false
	allowed := make(map[string]bool)
	for _, o := range s.cfg.Server.CORSOrigins {
		if o == "*" {
			allowAny = true
		}
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowAny || allowed[origin]) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Expose-Headers", "Content-Disposition")
			h.Add("Vary", "Origin")

			if c.Request.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				if req := c.GetHeader("Access-Control-Request-Headers"); req != "" {
					h.Set("Access-Control-Allow-Headers", req)
				} else {
					h.Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
				}
				c.AbortWithStatus(http.StatusNoContent)
				return
			}
		}
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		httpLog.Emit(logger.INFO, "%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// acquireSlot waits for a free acquisition slot. When the client goes away
// first it writes a 503 and reports false.
func (s *Server) acquireSlot(c *gin.Context) (func(), bool) {
	if err := s.slots.Acquire(c.Request.Context(), 1); err != nil {
		c.JSON(http.StatusServiceUnavailable, Response{
			Code:    503,
			Data:    nil,
			Message: "server busy, request cancelled while waiting",
		})
		return nil, false
	}
	return func() { s.slots.Release(1) }, true
}

// fail writes err with the status its kind maps to.
func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	c.JSON(status, Response{
		Code:    status,
		Data:    nil,
		Message: err.Error(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, extractor.ErrInvalidURL),
		errors.Is(err, extractor.ErrInvalidSourceURL),
		errors.Is(err, extractor.ErrUnsupportedPlatform):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
