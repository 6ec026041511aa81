package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/screenpilot/screenpilot/internal/api/handlers"
)

type Deps struct {
	Jobs         *handlers.JobsHandler
	Applications *handlers.ApplicationsHandler
	Screening    *handlers.ScreeningHandler
	Highlights   *handlers.HighlightsHandler
	Index        *handlers.IndexHandler
	Export       *handlers.ExportHandler
	Settings     *handlers.SettingsHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	api := r.Group("/api")

	api.GET("/jobs", d.Jobs.List)
	api.GET("/jobs/:job_id/stages", d.Jobs.Stages)
	api.GET("/jobs/:job_id/review-stage", d.Jobs.ReviewStage)

	api.GET("/jobs/:job_id/applications", d.Applications.List)
	api.POST("/applications/bulk-reject", d.Applications.BulkReject)
	api.POST("/applications/:application_id/advance", d.Applications.Advance)
	api.GET("/rejection-reasons", d.Applications.RejectionReasons)

	api.POST("/screening", d.Screening.Screen)

	// Server-Sent Event streams
	api.GET("/jobs/:job_id/highlights", d.Highlights.Run)
	api.POST("/jobs/:job_id/index/rebuild", d.Index.Rebuild)
	api.GET("/jobs/:job_id/export", d.Export.Export)

	api.GET("/jobs/:job_id/index/status", d.Index.Status)
	api.GET("/jobs/:job_id/index/search", d.Index.Search)
	api.DELETE("/jobs/:job_id/index", d.Index.Clear)

	api.GET("/exports/:name", d.Export.Download)

	api.GET("/settings", d.Settings.Get)
	api.PUT("/settings", d.Settings.Update)
}
