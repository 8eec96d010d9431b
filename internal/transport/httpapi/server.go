package httpapi

import (
	"context"
	_ "embed"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sandevgo/termbridge/internal/bridge"
	"github.com/sandevgo/termbridge/internal/config"
	"github.com/sandevgo/termbridge/internal/core"
	"github.com/sandevgo/termbridge/pkg/conv"
	"github.com/sandevgo/termbridge/pkg/log"
)

//go:embed usage.md
var usageMD []byte

// Server exposes the session registry over HTTP and WebSocket.
type Server struct {
	cfg        *config.ServerConfig
	sessions   *bridge.Registry
	uploadPath string
	limits     *limiterPool

	// baseCtx carries the process logger into handlers; gin's request
	// context does not.
	baseCtx context.Context

	router *gin.Engine
	srv    *http.Server
}

func NewServer(ctx context.Context, cfg *config.ServerConfig, sessions *bridge.Registry, uploadPath string) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:        cfg,
		sessions:   sessions,
		uploadPath: uploadPath,
		limits:     newLimiterPool(cfg.RateLimitPerSec, cfg.RateLimitBurst),
		baseCtx:    ctx,
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLog())

	router.GET("/", s.usagePage)
	router.GET("/healthz", s.health)
	router.GET("/ws", s.handleWS)

	authorized := router.Group("/", s.authenticate(), s.rateLimit())
	authorized.POST("/run", s.runCommand)
	authorized.POST("/upload", s.upload)

	s.router = router
	s.srv = &http.Server{Addr: cfg.Addr, Handler: router}
	return s
}

func (s *Server) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Str("addr", s.cfg.Addr).Msg("starting http server")
	if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

type runRequest struct {
	Command string `json:"command" binding:"required"`
	Session string `json:"session"`
}

func (s *Server) runCommand(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session := req.Session
	if session == "" {
		session = core.DefaultSession
	}

	sup, err := s.sessions.GetOrCreate(s.baseCtx, session)
	if err != nil {
		log.FromCtx(s.baseCtx).Error().Err(err).Str("session", session).Msg("failed to start terminal session")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "terminal unavailable"})
		return
	}

	output, err := sup.Run(c.Request.Context(), req.Command)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session, "output": output})
}

func (s *Server) upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}

	if err := os.MkdirAll(s.uploadPath, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload directory unavailable"})
		return
	}

	// Base strips any path segments a hostile client sends.
	name := filepath.Base(file.Filename)
	dst := filepath.Join(s.uploadPath, name)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save file"})
		return
	}

	log.FromCtx(s.baseCtx).Info().Str("file", name).Int64("size", file.Size).Msg("file uploaded")
	c.JSON(http.StatusOK, gin.H{"file": name, "size": file.Size})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"version":  core.Version,
		"sessions": s.sessions.Len(),
	})
}

func (s *Server) usagePage(c *gin.Context) {
	page := conv.MarkdownToPageHTML(usageMD)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.FromCtx(s.baseCtx).Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Str("client", clientKey(c)).
			Msg("http request")
	}
}

// clientKey identifies a caller for logging and rate limiting: the
// basic-auth username when present, the client IP otherwise.
func clientKey(c *gin.Context) string {
	if user, _, ok := c.Request.BasicAuth(); ok && strings.TrimSpace(user) != "" {
		return user
	}
	return c.ClientIP()
}
