package handlers

import (
	"os"

	"github.com/gin-gonic/gin"

	"github.com/screenpilot/screenpilot/config"
	"github.com/screenpilot/screenpilot/internal/progress"
	"github.com/screenpilot/screenpilot/internal/services"
	"github.com/screenpilot/screenpilot/internal/utils"
)

type ExportHandler struct {
	svc services.ExportService
	cfg *config.Store
}

func NewExportHandler(svc services.ExportService, cfg *config.Store) *ExportHandler {
	return &ExportHandler{svc: svc, cfg: cfg}
}

// Export writes the job's applications to an XLSX workbook, streaming fetch
// and row progress; the complete event carries the file name to download.
func (h *ExportHandler) Export(c *gin.Context) {
	jobID, ok := paramInt64(c, "job_id")
	if !ok {
		return
	}
	streamEvents(c, func(sink progress.Sink) (any, error) {
		name, err := h.svc.Export(c.Request.Context(), jobID, sink)
		if err != nil {
			return nil, err
		}
		return gin.H{"file": name}, nil
	})
}

func (h *ExportHandler) Download(c *gin.Context) {
	path, err := services.ExportPath(h.cfg.Snapshot().DataDir, c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	if _, err := os.Stat(path); err != nil {
		writeError(c, utils.E(utils.CodeNotFound, "ExportHandler.Download", "export not found", err))
		return
	}
	c.FileAttachment(path, c.Param("name"))
}
