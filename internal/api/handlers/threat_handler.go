package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/argus-sec/argus/internal/store"
)

type ThreatHandler struct {
	store *store.Store
}

func NewThreatHandler(s *store.Store) *ThreatHandler {
	return &ThreatHandler{store: s}
}

func (h *ThreatHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.ThreatAll())
}

func (h *ThreatHandler) Get(c *gin.Context) {
	threat, ok := h.store.ThreatGet(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "threat not found"})
		return
	}
	c.JSON(http.StatusOK, threat)
}

// Mitigations lists the proposals associated with one threat, in proposal
// order.
func (h *ThreatHandler) Mitigations(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.store.ThreatGet(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "threat not found"})
		return
	}
	proposals, _ := h.store.AssociationGet(id)
	c.JSON(http.StatusOK, proposals)
}
