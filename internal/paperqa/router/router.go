// Package router provides paperqa service routing.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/paperqa/internal/paperqa/handler"
)

// Register registers the paperqa routes.
func Register(engine *gin.Engine, qa *handler.QAHandler) {
	logger.Info("Registering paperqa routes...")

	v1 := engine.Group("/v1")
	{
		v1.POST("/paper_qa", qa.Ask)
		v1.GET("/paper_qa/stats", qa.Stats)
	}

	engine.GET("/health", qa.Health)
	engine.GET("/metrics", qa.Metrics)

	logger.Info("HTTP routes registered")
}
