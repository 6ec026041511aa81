package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/screenpilot/screenpilot/internal/greenhouse"
	"github.com/screenpilot/screenpilot/internal/services"
	"github.com/screenpilot/screenpilot/internal/utils"
)

type ApplicationsHandler struct {
	svc services.ApplicationsService
}

func NewApplicationsHandler(svc services.ApplicationsService) *ApplicationsHandler {
	return &ApplicationsHandler{svc: svc}
}

// List serves one page of a job's applications. The lightweight view skips
// per-candidate enrichment and costs a single upstream request.
func (h *ApplicationsHandler) List(c *gin.Context) {
	jobID, ok := paramInt64(c, "job_id")
	if !ok {
		return
	}

	opts := greenhouse.PageOpts{
		Page:    queryInt(c, "page", 1),
		PerPage: queryInt(c, "per_page", 25),
		Status:  c.Query("status"),
		StageID: int64(queryInt(c, "stage_id", 0)),
	}

	var (
		page any
		err  error
	)
	if c.Query("view") == "lightweight" {
		page, err = h.svc.PageLightweight(c.Request.Context(), jobID, opts)
	} else {
		page, err = h.svc.Page(c.Request.Context(), jobID, opts)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

type bulkRejectRequest struct {
	ApplicationIDs    []int64 `json:"application_ids"`
	RejectionReasonID int64   `json:"rejection_reason_id"`
	EmailTemplateID   string  `json:"email_template_id"`
}

func (h *ApplicationsHandler) BulkReject(c *gin.Context) {
	var req bulkRejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ApplicationsHandler.BulkReject", "invalid request body", err))
		return
	}
	out, err := h.svc.BulkReject(c.Request.Context(), req.ApplicationIDs, req.RejectionReasonID, req.EmailTemplateID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type advanceRequest struct {
	FromStageID int64 `json:"from_stage_id"`
}

func (h *ApplicationsHandler) Advance(c *gin.Context) {
	appID, ok := paramInt64(c, "application_id")
	if !ok {
		return
	}
	var req advanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ApplicationsHandler.Advance", "invalid request body", err))
		return
	}
	if err := h.svc.Advance(c.Request.Context(), appID, req.FromStageID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"advanced": appID})
}

func (h *ApplicationsHandler) RejectionReasons(c *gin.Context) {
	reasons, err := h.svc.RejectionReasons(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rejection_reasons": reasons})
}
