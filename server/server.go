package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/NikhilTirunagiri/petal-v1/internal/profile"
	"github.com/NikhilTirunagiri/petal-v1/plugin/mem0"
	"github.com/NikhilTirunagiri/petal-v1/server/ai"
	"github.com/NikhilTirunagiri/petal-v1/server/middleware"
	"github.com/NikhilTirunagiri/petal-v1/server/queue"
	"github.com/NikhilTirunagiri/petal-v1/server/retrieval"
	apiv1 "github.com/NikhilTirunagiri/petal-v1/server/router/api/v1"
	"github.com/NikhilTirunagiri/petal-v1/server/service/enrichment"
	"github.com/NikhilTirunagiri/petal-v1/store"
	"github.com/NikhilTirunagiri/petal-v1/store/cache"
)

type Server struct {
	echoServer *echo.Echo
	profile    *profile.Profile
	store      *store.Store
	kv         *cache.Client
	queue      *queue.Queue
}

func NewServer(profile *profile.Profile, st *store.Store, kv *cache.Client, summary ai.SummaryService, embed ai.EmbeddingService, personalMemory mem0.Service) *Server {
	echoServer := echo.New()
	echoServer.Debug = profile.IsDev()
	echoServer.HideBanner = true
	echoServer.HidePort = true

	echoServer.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(_ echo.Context, v echomw.RequestLoggerValues) error {
			slog.Debug("request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status))
			return nil
		},
	}))
	echoServer.Use(echomw.Recover())
	echoServer.Use(echomw.CORS())
	echoServer.Use(middleware.NewRateLimiter().Middleware())

	taskQueue := queue.New()
	orchestrator := enrichment.NewOrchestrator(st, summary, embed, taskQueue)
	chain := retrieval.NewDefaultChain(st, embed)

	s := &Server{
		echoServer: echoServer,
		profile:    profile,
		store:      st,
		kv:         kv,
		queue:      taskQueue,
	}

	echoServer.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})

	apiV1Service := apiv1.NewAPIV1Service(profile, st, summary, orchestrator, chain, personalMemory)
	apiV1Service.RegisterRoutes(echoServer)

	return s
}

// Start boots the background queue and then serves HTTP. It blocks until the
// listener fails or Shutdown is called.
func (s *Server) Start(_ context.Context) error {
	s.queue.Start(s.profile.QueueWorkers)

	address := fmt.Sprintf("%s:%d", s.profile.Addr, s.profile.Port)
	slog.Info("server started", slog.String("address", address), slog.String("mode", s.profile.Mode))
	if err := s.echoServer.Start(address); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, drains the background queue, then
// closes the store and cache connections. The context bounds the whole
// sequence; queued enrichment that cannot finish in time is abandoned.
func (s *Server) Shutdown(ctx context.Context) {
	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown http server", slog.Any("err", err))
	}

	if err := s.queue.Stop(ctx); err != nil {
		slog.Warn("background queue drain interrupted", slog.Any("err", err))
	}

	if err := s.store.Close(); err != nil {
		slog.Error("failed to close store", slog.Any("err", err))
	}
	if err := s.kv.Close(); err != nil {
		slog.Error("failed to close cache", slog.Any("err", err))
	}

	slog.Info("server shutdown complete")
}
