package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"roomlink/internal/core/ports"
)

// StatusHandler exposes the session's state to the rendering layer: room
// membership, peer negotiation states and the stream registry snapshot.
type StatusHandler struct {
	session ports.RoomSession
	started time.Time
}

func NewStatusHandler(session ports.RoomSession) *StatusHandler {
	return &StatusHandler{
		session: session,
		started: time.Now(),
	}
}

func (h *StatusHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/room", h.GetRoom)
		api.GET("/peers", h.GetPeers)
		api.GET("/streams", h.GetStreams)
	}
	router.GET("/health", h.Health)
}

func (h *StatusHandler) GetRoom(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"room_id":    h.session.RoomID(),
		"self_id":    h.session.SelfID(),
		"peer_count": len(h.session.Peers()),
	})
}

func (h *StatusHandler) GetPeers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"peers": h.session.Peers(),
	})
}

func (h *StatusHandler) GetStreams(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"streams": h.session.Streams(),
	})
}

func (h *StatusHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.started).Seconds()),
	})
}

// Server wraps the gin engine with graceful shutdown.
type Server struct {
	httpServer *http.Server
}

// NewServer builds the status server. A non-nil metrics handler is mounted
// at /metrics.
func NewServer(address string, handler *StatusHandler, metrics http.Handler) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler.SetupRoutes(router)
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              address,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the underlying mux, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
