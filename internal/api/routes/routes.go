package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/argus-sec/argus/internal/api/handlers"
	"github.com/argus-sec/argus/internal/archive"
	"github.com/argus-sec/argus/internal/intents"
	"github.com/argus-sec/argus/internal/store"
	"github.com/argus-sec/argus/internal/twin"
)

// Dependencies carries the shared components the API surface exposes.
type Dependencies struct {
	Store    *store.Store
	Intents  *intents.Service
	Twin     *twin.Queue
	Archive  *archive.Service
	Registry *prometheus.Registry
}

// Register wires up the API routes.
func Register(router *gin.Engine, deps Dependencies) {
	router.GET("/api/v1/health", handlers.HealthHandler)
	if deps.Registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api/v1")

	intentHandler := handlers.NewIntentHandler(deps.Intents, deps.Store)
	api.POST("/intents", intentHandler.Create)
	api.GET("/intents", intentHandler.List)
	api.GET("/intents/:id", intentHandler.Get)
	api.DELETE("/intents/:id", intentHandler.Delete)

	threatHandler := handlers.NewThreatHandler(deps.Store)
	api.GET("/threats", threatHandler.List)
	api.GET("/threats/:id", threatHandler.Get)
	api.GET("/threats/:id/mitigations", threatHandler.Mitigations)

	emulationHandler := handlers.NewEmulationHandler(deps.Twin)
	api.POST("/what-if/results", emulationHandler.Result)

	statsHandler := handlers.NewStatsHandler(deps.Store, deps.Twin)
	stats := api.Group("/stats")
	stats.GET("/intents", statsHandler.Intents)
	stats.GET("/threats", statsHandler.Threats)
	stats.GET("/threat-status", statsHandler.ThreatStatus)
	stats.GET("/mitigations", statsHandler.Mitigations)
	stats.GET("/hosts", statsHandler.Hosts)
	stats.GET("/emulation", statsHandler.Emulation)

	archiveHandler := handlers.NewArchiveHandler(deps.Archive)
	api.GET("/archive/threats", archiveHandler.Threats)
	api.GET("/archive/workflows", archiveHandler.Workflows)

	systemHandler := handlers.NewSystemHandler(deps.Store)
	api.GET("/system/status", systemHandler.Status)
	api.POST("/system/compromise/clear", systemHandler.ClearCompromise)
}
