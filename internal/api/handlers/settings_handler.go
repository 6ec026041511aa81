package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/screenpilot/screenpilot/config"
	"github.com/screenpilot/screenpilot/internal/utils"
)

// settableKeys is the allow-list of runtime-editable settings.
var settableKeys = map[string]bool{
	"greenhouse.api_key":  true,
	"greenhouse.user_id":  true,
	"greenhouse.base_url": true,
	"anthropic.api_key":   true,
	"anthropic.model":     true,
	"embeddings.endpoint": true,
	"embeddings.api_key":  true,
	"embeddings.model":    true,
}

type SettingsHandler struct {
	cfg *config.Store
}

func NewSettingsHandler(cfg *config.Store) *SettingsHandler {
	return &SettingsHandler{cfg: cfg}
}

// Get returns the current settings with secrets masked.
func (h *SettingsHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.cfg.Redacted())
}

// Update persists the supplied settings and applies them immediately. New
// credentials take effect on the next upstream call without a restart.
func (h *SettingsHandler) Update(c *gin.Context) {
	var kv map[string]string
	if err := c.ShouldBindJSON(&kv); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "SettingsHandler.Update", "invalid request body", err))
		return
	}
	for k := range kv {
		if !settableKeys[k] {
			writeError(c, utils.E(utils.CodeInvalidArgument, "SettingsHandler.Update", "unknown setting: "+k, nil))
			return
		}
	}
	if _, err := h.cfg.Update(kv); err != nil {
		writeError(c, utils.E(utils.CodeInternal, "SettingsHandler.Update", "failed to persist settings", err))
		return
	}
	c.JSON(http.StatusOK, h.cfg.Redacted())
}
