package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/argus-sec/argus/internal/archive"
)

type ArchiveHandler struct {
	archive *archive.Service
}

func NewArchiveHandler(a *archive.Service) *ArchiveHandler {
	return &ArchiveHandler{archive: a}
}

func (h *ArchiveHandler) Threats(c *gin.Context) {
	records, err := h.archive.ListThreats(parseLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch archived threats"})
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *ArchiveHandler) Workflows(c *gin.Context) {
	records, err := h.archive.ListWorkflows(parseLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch workflow history"})
		return
	}
	c.JSON(http.StatusOK, records)
}

func parseLimit(c *gin.Context) int {
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return 100
}
