package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/screenpilot/screenpilot/internal/progress"
	"github.com/screenpilot/screenpilot/internal/services"
)

type HighlightsHandler struct {
	svc  services.HighlightsService
	jobs services.JobsService
}

func NewHighlightsHandler(svc services.HighlightsService, jobs services.JobsService) *HighlightsHandler {
	return &HighlightsHandler{svc: svc, jobs: jobs}
}

// Run streams the two-phase ranking as Server-Sent Events and finishes with a
// complete event carrying the ranked list.
func (h *HighlightsHandler) Run(c *gin.Context) {
	jobID, ok := paramInt64(c, "job_id")
	if !ok {
		return
	}
	topN := queryInt(c, "top_n", services.DefaultTopN)
	title := h.jobTitle(c, jobID)

	streamEvents(c, func(sink progress.Sink) (any, error) {
		ranked, err := h.svc.Run(c.Request.Context(), jobID, title, topN, sink)
		if err != nil {
			return nil, err
		}
		return gin.H{"candidates": ranked}, nil
	})
}

func (h *HighlightsHandler) jobTitle(c *gin.Context, jobID int64) string {
	jobs, err := h.jobs.List(c.Request.Context())
	if err != nil {
		return ""
	}
	for _, j := range jobs {
		if j.ID == jobID {
			return j.Name
		}
	}
	return ""
}
