package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler.Handle)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api/v1")
	{
		detect := api.Group("/detect")
		{
			detect.POST("/image", s.detectHandler.Image)
			detect.POST("/video", s.detectHandler.Video)
		}

		camera := api.Group("/camera")
		{
			camera.POST("/start", s.cameraHandler.Start)
			camera.POST("/stop", s.cameraHandler.Stop)
			camera.GET("/status", s.cameraHandler.Status)
			camera.GET("/stream", s.cameraHandler.Stream)
		}

		compare := api.Group("/compare")
		{
			compare.POST("/before-after", s.compareHandler.BeforeAfter)
			compare.POST("/images", s.compareHandler.Images)
			compare.POST("/thresholds", s.compareHandler.Thresholds)
		}

		api.POST("/reports/:format", s.reportHandler.Generate)

		api.GET("/activity", s.activityHandler.List)

		alerts := api.Group("/alerts")
		{
			alerts.GET("", s.activityHandler.Alerts)
			alerts.GET("/summary", s.activityHandler.AlertSummary)
			alerts.DELETE("", s.activityHandler.ClearAlerts)
		}

		system := api.Group("/system")
		{
			system.GET("/info", s.systemHandler.Info)
			system.GET("/stats", s.systemHandler.Stats)
		}
	}
}
