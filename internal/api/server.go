// Package api exposes a small REST surface for inspecting and driving
// the OSC client: the parameter cache, the current avatar, recorded
// history, and Prometheus metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/oscbridge-project/oscbridge/internal/client"
	"github.com/oscbridge-project/oscbridge/internal/config"
	"github.com/oscbridge-project/oscbridge/internal/db"
)

// Server is the REST API server for oscbridge.
type Server struct {
	cfg     config.APIConfig
	osc     *client.Client
	history *db.History // may be nil

	httpServer *http.Server
	router     *gin.Engine
}

// NewServer creates a new API server. history may be nil when the
// recorder is disabled.
func NewServer(cfg config.APIConfig, osc *client.Client, history *db.History) *Server {
	gin.SetMode(gin.ReleaseMode)
	return &Server{
		cfg:     cfg,
		osc:     osc,
		history: history,
	}
}

// Start runs the HTTP server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.router = s.buildRouter()

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("API server started")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("API server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("API server shutdown: %w", err)
	}
	log.Info().Msg("API server stopped")
	return nil
}

func (s *Server) buildRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/parameters", s.handleListParameters)
		api.GET("/parameters/:name", s.handleGetParameter)
		api.POST("/parameters", s.handleSetParameter)
		api.GET("/avatar", s.handleGetAvatar)
		api.GET("/history", s.handleHistory)
	}

	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleListParameters(c *gin.Context) {
	snapshot := s.osc.GetAll()
	out := make(map[string]gin.H, len(snapshot))
	for name, v := range snapshot {
		out[name] = gin.H{"type": v.Kind().String(), "value": v.Interface()}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(out), "parameters": out})
}

func (s *Server) handleGetParameter(c *gin.Context) {
	name := c.Param("name")
	if v, ok := s.osc.TryGetFloat(name); ok {
		c.JSON(http.StatusOK, gin.H{"name": name, "type": "float32", "value": v})
		return
	}
	if v, ok := s.osc.TryGetInt(name); ok {
		c.JSON(http.StatusOK, gin.H{"name": name, "type": "int32", "value": v})
		return
	}
	if v, ok := s.osc.TryGetBool(name); ok {
		c.JSON(http.StatusOK, gin.H{"name": name, "type": "bool", "value": v})
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "parameter not found"})
}

// setParameterRequest is the body of POST /api/parameters.
type setParameterRequest struct {
	Name  string   `json:"name" binding:"required"`
	Type  string   `json:"type" binding:"required"`
	Float *float32 `json:"float,omitempty"`
	Int   *int     `json:"int,omitempty"`
	Bool  *bool    `json:"bool,omitempty"`
}

func (s *Server) handleSetParameter(c *gin.Context) {
	var req setParameterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var err error
	switch req.Type {
	case "float", "float32":
		if req.Float == nil {
			err = fmt.Errorf("missing float value")
			break
		}
		err = s.osc.SetFloat(req.Name, *req.Float)
	case "int", "int32":
		if req.Int == nil {
			err = fmt.Errorf("missing int value")
			break
		}
		err = s.osc.SetInt(req.Name, *req.Int)
	case "bool":
		if req.Bool == nil {
			err = fmt.Errorf("missing bool value")
			break
		}
		err = s.osc.SetBool(req.Name, *req.Bool)
	default:
		err = fmt.Errorf("unknown parameter type %q", req.Type)
	}

	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, client.ErrClosed) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

func (s *Server) handleGetAvatar(c *gin.Context) {
	id, ok := s.osc.Avatar()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no avatar change received yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id.String()})
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history recording is disabled"})
		return
	}

	changes, err := s.history.RecentParameterChanges(100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(changes), "changes": changes})
}
