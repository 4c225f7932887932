// Package http wires the gin router and the HTTP server for the query
// understanding service.
package http

import (
	"github.com/gin-gonic/gin"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shortalex12333/Cloud-PMS-sub001/internal/infrastructure/monitoring/logging"
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/infrastructure/monitoring/prometheus"
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/interfaces/http/handlers"
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/interfaces/http/middleware"
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/query"
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/rank"
)

// RouterDeps carries everything the route tree needs. Publisher, Metrics,
// and Registry may be nil.
type RouterDeps struct {
	Pipeline  *query.Pipeline
	Ranker    *rank.Ranker
	Publisher handlers.EventPublisher
	Logger    logging.Logger
	Metrics   *prometheus.Metrics
	Registry  *promclient.Registry

	// Mode is the gin mode: "debug", "release", or "test".
	Mode string

	// Version is the build version reported by the health endpoint.
	Version string
}

// NewRouter assembles the full route tree with the standard middleware
// chain: request ID, request logging, metrics, recovery.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Mode != "" {
		gin.SetMode(deps.Mode)
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.RequestLogging(deps.Logger, middleware.DefaultLoggingConfig()),
		middleware.Metrics(deps.Metrics),
		gin.Recovery(),
	)

	queryHandler := handlers.NewQueryHandler(deps.Pipeline, deps.Publisher, deps.Logger, deps.Metrics)
	rankHandler := handlers.NewRankHandler(deps.Pipeline, deps.Ranker, deps.Logger)
	healthHandler := handlers.NewHealthHandler(deps.Version, deps.Pipeline.ConfigVersion)

	engine.GET("/healthz", healthHandler.Healthz)
	engine.GET("/readyz", healthHandler.Readyz)
	if deps.Registry != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	v1 := engine.Group("/api/v1/query")
	{
		v1.POST("/understand", queryHandler.Understand)
		v1.POST("/understand/batch", queryHandler.UnderstandBatch)
		v1.POST("/rank", rankHandler.Rank)
		v1.GET("/types", queryHandler.Types)
	}

	return engine
}
