package server

import (
	"context"
	"net/http"
	"time"

	"menagent/internal/auth"
	"menagent/internal/recording"
	"menagent/internal/scheduler"
	"menagent/internal/streaming"
	"menagent/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Server exposes a local status and control surface for the agent:
// read-only state for debugging plus pause/resume. It binds to localhost
// only; it carries no credentials.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server

	sched    *scheduler.Scheduler
	store    *auth.Store
	recorder *recording.Recorder
	streamer *streaming.Manager
	version  string
}

// NewServer creates the local status server.
func NewServer(
	addr string,
	sched *scheduler.Scheduler,
	store *auth.Store,
	recorder *recording.Recorder,
	streamer *streaming.Manager,
	version string,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router:   router,
		sched:    sched,
		store:    store,
		recorder: recorder,
		streamer: streamer,
		version:  version,
	}
	s.httpServer = &http.Server{Addr: addr, Handler: router}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/settings", s.handleSettings)
		api.POST("/pause", s.handlePause)
		api.POST("/resume", s.handleResume)
	}
}

// Start serves until Shutdown. Blocking.
func (s *Server) Start() error {
	logger.Info("status server listening on %s", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		logger.Warn("status server shutdown: %v", err)
	}
}

func (s *Server) handleStatus(c *gin.Context) {
	streamID, streamActive := s.streamer.Active()

	employeeName := ""
	if employee, ok := s.store.Employee(); ok {
		employeeName = employee.EmployeeName
	}

	c.JSON(http.StatusOK, gin.H{
		"version":       s.version,
		"connected":     s.store.Connected(),
		"employee":      employeeName,
		"running":       s.sched.IsRunning(),
		"paused":        s.sched.IsPaused(),
		"jobs":          s.sched.Jobs(),
		"recording":     s.recorder.IsRecording(),
		"stream_active": streamActive,
		"stream_id":     streamID,
	})
}

func (s *Server) handleSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.sched.Settings())
}

func (s *Server) handlePause(c *gin.Context) {
	s.sched.PauseAll()
	c.JSON(http.StatusOK, gin.H{"paused": true})
}

func (s *Server) handleResume(c *gin.Context) {
	s.sched.ResumeAll()
	c.JSON(http.StatusOK, gin.H{"paused": false})
}
