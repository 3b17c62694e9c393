package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"spillwatch-worker/internal/api/handlers"
	"spillwatch-worker/internal/api/ws"
	"spillwatch-worker/internal/config"
	"spillwatch-worker/internal/services"
)

type Server struct {
	config *config.Config
	router *gin.Engine
	server *http.Server
	hub    *ws.Hub

	healthHandler   *handlers.HealthHandler
	detectHandler   *handlers.DetectHandler
	cameraHandler   *handlers.CameraHandler
	compareHandler  *handlers.CompareHandler
	reportHandler   *handlers.ReportHandler
	activityHandler *handlers.ActivityHandler
	systemHandler   *handlers.SystemHandler
}

func NewServer(cfg *config.Config, container *services.ServiceContainer) *Server {
	gin.SetMode(gin.ReleaseMode)

	hub := ws.NewHub()

	return &Server{
		config: cfg,
		router: gin.New(),
		hub:    hub,

		healthHandler:   handlers.NewHealthHandler(cfg),
		detectHandler:   handlers.NewDetectHandler(cfg, container),
		cameraHandler:   handlers.NewCameraHandler(cfg, container, hub),
		compareHandler:  handlers.NewCompareHandler(cfg, container),
		reportHandler:   handlers.NewReportHandler(container),
		activityHandler: handlers.NewActivityHandler(container),
		systemHandler:   handlers.NewSystemHandler(cfg, container),
	}
}

func (s *Server) Start() error {
	s.setupMiddleware()
	s.setupRoutes()

	go s.hub.Run()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.router,
	}

	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
