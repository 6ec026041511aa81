package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/screenpilot/screenpilot/internal/services"
	"github.com/screenpilot/screenpilot/internal/utils"
)

type ScreeningHandler struct {
	svc services.ScreeningService
}

func NewScreeningHandler(svc services.ScreeningService) *ScreeningHandler {
	return &ScreeningHandler{svc: svc}
}

// Screen evaluates one bounded batch of candidates. The caller paginates and
// merges across calls; each verdict in the response stands on its own.
func (h *ScreeningHandler) Screen(c *gin.Context) {
	var in services.ScreeningInput
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ScreeningHandler.Screen", "invalid request body", err))
		return
	}
	out, err := h.svc.Screen(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
