package api

import (
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/runs/:run_id", handler.GetRun)
		v1.GET("/runs/:run_id/outcomes", handler.ListOutcomes)
	}
}
