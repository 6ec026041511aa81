package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/screenpilot/screenpilot/internal/progress"
	"github.com/screenpilot/screenpilot/internal/services"
	"github.com/screenpilot/screenpilot/internal/utils"
)

const defaultSearchLimit = 20

type IndexHandler struct {
	svc services.IndexerService
}

func NewIndexHandler(svc services.IndexerService) *IndexHandler {
	return &IndexHandler{svc: svc}
}

// Rebuild replaces the job's index from scratch, streaming per-candidate
// progress as Server-Sent Events.
func (h *IndexHandler) Rebuild(c *gin.Context) {
	jobID, ok := paramInt64(c, "job_id")
	if !ok {
		return
	}
	if !h.svc.Ready() {
		writeError(c, utils.E(utils.CodeUnavailable, "IndexHandler.Rebuild", "embeddings are not configured", nil))
		return
	}
	streamEvents(c, func(sink progress.Sink) (any, error) {
		status, err := h.svc.Rebuild(c.Request.Context(), jobID, sink)
		if err != nil {
			return nil, err
		}
		return status, nil
	})
}

func (h *IndexHandler) Status(c *gin.Context) {
	jobID, ok := paramInt64(c, "job_id")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.svc.Status(jobID))
}

func (h *IndexHandler) Search(c *gin.Context) {
	jobID, ok := paramInt64(c, "job_id")
	if !ok {
		return
	}
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "IndexHandler.Search", "query parameter 'q' is required", nil))
		return
	}
	if !h.svc.Ready() {
		writeError(c, utils.E(utils.CodeUnavailable, "IndexHandler.Search", "embeddings are not configured", nil))
		return
	}
	hits, err := h.svc.Search(c.Request.Context(), jobID, query, queryInt(c, "limit", defaultSearchLimit))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hits": hits})
}

func (h *IndexHandler) Clear(c *gin.Context) {
	jobID, ok := paramInt64(c, "job_id")
	if !ok {
		return
	}
	if err := h.svc.Clear(jobID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": jobID})
}
