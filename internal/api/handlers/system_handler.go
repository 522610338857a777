package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/argus-sec/argus/internal/logger"
	"github.com/argus-sec/argus/internal/store"
)

// SystemHandler exposes operator controls over the orchestrator's global
// flags.
type SystemHandler struct {
	store *store.Store
}

func NewSystemHandler(s *store.Store) *SystemHandler {
	return &SystemHandler{store: s}
}

func (h *SystemHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"compromised":    h.store.Compromised(),
		"twin_available": h.store.TwinAvailable(),
	})
}

// ClearCompromise lifts the reconciliation halt after an operator has
// inspected the suspected spoofing event.
func (h *SystemHandler) ClearCompromise(c *gin.Context) {
	h.store.SetCompromised(false)
	logger.Log().Warn("compromise flag cleared by operator")
	c.JSON(http.StatusOK, gin.H{"message": "compromise flag cleared"})
}
