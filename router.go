package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/choraleia/thinkbot/pkg/event"
	"github.com/choraleia/thinkbot/pkg/handler"
	"github.com/choraleia/thinkbot/pkg/models"
	"github.com/choraleia/thinkbot/pkg/utils"
	"github.com/gin-gonic/gin"
)

type Server struct {
	ginEngine *gin.Engine
	app       *App
	logger    *slog.Logger
	host      string
	port      int
}

// allowedOrigin admits the extension surfaces and local development pages.
func allowedOrigin(origin string) bool {
	for _, prefix := range []string{
		"chrome-extension://",
		"moz-extension://",
		"http://localhost",
		"http://127.0.0.1",
		"https://localhost",
		"https://127.0.0.1",
	} {
		if strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	return false
}

func NewServer(app *App) *Server {
	ginEngine := gin.New()
	ginEngine.Use(gin.Recovery())

	ginEngine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// If there's no Origin header, it's not a browser CORS request.
		if origin != "" {
			if !allowedOrigin(origin) {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			// Extension origins use custom schemes, so the Origin is echoed.
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	server := &Server{
		ginEngine: ginEngine,
		app:       app,
		logger:    utils.GetLogger(),
		host:      app.cfg.Host(),
		port:      app.cfg.Port(),
	}

	server.SetupRoutes()

	return server
}

// Start listens and serves in the background until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	// THINKBOT_PORT overrides the configured port
	if v := os.Getenv("THINKBOT_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 && p <= 65535 {
			s.port = p
		} else {
			s.logger.Warn("Invalid THINKBOT_PORT value, falling back to config", "value", v)
		}
	}

	srv := &http.Server{Addr: net.JoinHostPort(s.host, strconv.Itoa(s.port)), Handler: s.ginEngine}

	// Attempt to listen on port first; if occupied return error immediately
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		s.port = tcpAddr.Port
	}
	s.logger.Info("Server listening", "addr", ln.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(ln)
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	default:
	}
	return nil
}

func (s *Server) SetupRoutes() {
	a := s.app
	apiGroup := s.ginEngine.Group("/api")

	// Runtime info so extension surfaces can discover the base URLs.
	apiGroup.GET("/runtime", func(c *gin.Context) {
		c.JSON(http.StatusOK, models.RuntimeInfo{
			HTTPBaseURL: fmt.Sprintf("http://%s:%d", s.host, s.port),
			WSBaseURL:   fmt.Sprintf("ws://%s:%d", s.host, s.port),
			Port:        s.port,
		})
	})

	ws := event.NewWSHandler(a.emitter, func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowedOrigin(origin)
	})
	apiGroup.GET("/events/ws", ws.Handle)

	pages := handler.NewPageHandler(a.Config, a.Pages, a.Conversations, a.Extraction)
	pages.RegisterRoutes(apiGroup)
	handler.NewConversationHandler(a.Conversations, a.Chat).RegisterRoutes(apiGroup)
	handler.NewSettingsHandler(a.Config, a.Models, a.Shortcuts).RegisterRoutes(apiGroup)
	handler.NewSyncHandler(a.Sync).RegisterRoutes(apiGroup)
	handler.NewMessageHandler(a.Conversations, a.Chat, a.Config, pages, a.Extraction, a.Sync).RegisterRoutes(apiGroup)
}
