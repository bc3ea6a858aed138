// Package server wires the HTTP handlers into a gin router and runs it.
package server

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agrolog/apollo/internal/metrics"
	"github.com/agrolog/apollo/internal/output"
	"github.com/agrolog/apollo/internal/server/handler"
	"github.com/agrolog/apollo/internal/server/middleware"
)

// Deps are the components the router serves. Extractor, Audit and Metrics
// may be nil. EmbeddingDim is the loaded encoder's hidden size; the service
// reports ready only when it is positive and Classifier is set.
type Deps struct {
	Classifier     handler.Classifier
	Extractor      handler.Extractor
	Audit          output.Output
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	Version        string
	EmbeddingDim   int
	RequestTimeout time.Duration
}

// Setup creates and configures the Gin router.
func Setup(d Deps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS())

	ready := d.Classifier != nil && d.EmbeddingDim > 0
	health := handler.NewHealthHandler(d.Version, ready, d.EmbeddingDim, d.Extractor != nil, d.Audit != nil)
	router.GET("/health", health.Health)
	router.GET("/ready", health.Ready)
	router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	api := router.Group("/", middleware.Timeout(d.RequestTimeout))
	{
		classify := handler.NewClassifyHandler(d.Classifier, d.Audit, d.Metrics)
		api.POST("/classify_message", classify.Classify)

		extract := handler.NewExtractHandler(d.Extractor, d.Metrics)
		api.POST("/process_message", extract.ProcessMessage)
		api.POST("/process_photo", extract.ProcessPhoto)
		api.POST("/transcribe_audio", extract.TranscribeAudio)
	}

	return router
}
