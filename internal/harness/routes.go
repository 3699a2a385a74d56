package harness

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/faultdns/faultdns/internal/config"
	"github.com/faultdns/faultdns/internal/harness/middleware"
)

// RegisterRoutes mounts every endpoint on the router. Metrics stay outside
// the keyed group so scrapers need no credentials.
func RegisterRoutes(r *gin.Engine, h *Handler, cfg *config.Config) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")

	// Optional API key protection.
	if cfg != nil && cfg.Harness.APIKey != "" {
		api.Use(middleware.RequireAPIKey(cfg.Harness.APIKey))
	}

	api.GET("/health", h.Health)
	api.GET("/stats", h.Stats)

	api.GET("/scenarios", h.ListScenarios)
	api.GET("/scenarios/active", h.ActiveScenario)

	api.POST("/runs", h.StartRun)
	api.GET("/runs", h.ListRuns)
	api.GET("/runs/:id/queries", h.RunQueries)
	api.GET("/runs/:id/verdicts", h.RunVerdicts)

	api.GET("/queries", h.ActiveQueries)
	api.POST("/verdict", h.SubmitVerdict)
}
