package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/argus-sec/argus/internal/twin"
)

// EmulationHandler receives asynchronous what-if measurement results from the
// digital twin.
type EmulationHandler struct {
	queue *twin.Queue
}

func NewEmulationHandler(q *twin.Queue) *EmulationHandler {
	return &EmulationHandler{queue: q}
}

// Result records one measured KPI for an emulation job. The first result for
// a job is the baseline, the second completes it.
func (h *EmulationHandler) Result(c *gin.Context) {
	var input struct {
		ID    string  `json:"id" binding:"required"`
		Value float64 `json:"value"`
		Unit  string  `json:"unit"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.queue.HandleResult(input.ID, input.Value, input.Unit); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "result recorded"})
}
