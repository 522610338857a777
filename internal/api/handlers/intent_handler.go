package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/argus-sec/argus/internal/intents"
	"github.com/argus-sec/argus/internal/store"
)

type IntentHandler struct {
	service *intents.Service
	store   *store.Store
}

func NewIntentHandler(service *intents.Service, s *store.Store) *IntentHandler {
	return &IntentHandler{service: service, store: s}
}

// Create accepts a detector submission. Resubmitting a live intent renews its
// threat instead of duplicating it.
func (h *IntentHandler) Create(c *gin.Context) {
	var sub intents.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch h.service.Process(sub) {
	case intents.ResultCreated:
		c.JSON(http.StatusCreated, gin.H{"result": string(intents.ResultCreated)})
	case intents.ResultUpdated:
		c.JSON(http.StatusOK, gin.H{"result": string(intents.ResultUpdated)})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid intent submission"})
	}
}

func (h *IntentHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.IntentAll())
}

func (h *IntentHandler) Get(c *gin.Context) {
	intent, ok := h.store.IntentGet(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "intent not found"})
		return
	}
	c.JSON(http.StatusOK, intent)
}

func (h *IntentHandler) Delete(c *gin.Context) {
	if !h.store.IntentRemove(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "intent not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "intent deleted"})
}
