package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/screenpilot/screenpilot/internal/services"
)

type JobsHandler struct {
	svc services.JobsService
}

func NewJobsHandler(svc services.JobsService) *JobsHandler {
	return &JobsHandler{svc: svc}
}

func (h *JobsHandler) List(c *gin.Context) {
	jobs, err := h.svc.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (h *JobsHandler) Stages(c *gin.Context) {
	jobID, ok := paramInt64(c, "job_id")
	if !ok {
		return
	}
	stages, err := h.svc.Stages(c.Request.Context(), jobID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stages": stages})
}

// ReviewStage resolves the job's "Application Review" stage, the stage bulk
// screening operates on.
func (h *JobsHandler) ReviewStage(c *gin.Context) {
	jobID, ok := paramInt64(c, "job_id")
	if !ok {
		return
	}
	stage, found, err := h.svc.ReviewStage(c.Request.Context(), jobID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stage": stage, "found": found})
}
