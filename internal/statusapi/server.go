// Package statusapi serves a small read-only HTTP view of the bot.
package statusapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type SchedulerStatus struct {
	Name             string     `json:"name"`
	Running          bool       `json:"running"`
	IntervalMinutes  int        `json:"interval_minutes"`
	NextFireEstimate time.Time  `json:"next_fire_estimate"`
	NextScheduled    *time.Time `json:"next_scheduled,omitempty"`
}

type Snapshot struct {
	Schedulers   []SchedulerStatus `json:"schedulers"`
	TrackedChats int               `json:"tracked_chats"`
	ShopItems    int               `json:"shop_items"`
	GardenItems  int               `json:"garden_items"`
}

// Provider supplies the data behind GET /status.
type Provider interface {
	Snapshot() Snapshot
}

type Server struct {
	addr     string
	provider Provider
	router   *gin.Engine
	server   *http.Server
	logger   zerolog.Logger
}

func New(addr string, provider Provider) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	logger := log.With().Str("component", "statusapi").Logger()

	if err := router.SetTrustedProxies(nil); err != nil {
		logger.Error().Err(err).Msg("set trusted proxies")
	}
	router.Use(
		gin.Recovery(),
		gin.LoggerWithWriter(logger, "/healthz"),
	)

	s := &Server{
		addr:     addr,
		provider: provider,
		router:   router,
		logger:   logger,
	}
	s.initRouter()
	return s
}

func (s *Server) initRouter() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/status", s.handleStatus)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.provider.Snapshot())
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("http server failed")
		}
	}()

	s.logger.Info().Str("addr", s.addr).Msg("status api listening")
	return nil
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Debug().Err(err).Msg("shutdown http server")
		return nil
	}
	s.logger.Info().Msg("status api stopped")
	return nil
}
