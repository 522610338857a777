package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/argus-sec/argus/internal/store"
	"github.com/argus-sec/argus/internal/twin"
)

// StatsHandler serves read-only projections of the shared store.
type StatsHandler struct {
	store *store.Store
	twin  *twin.Queue
}

func NewStatsHandler(s *store.Store, q *twin.Queue) *StatsHandler {
	return &StatsHandler{store: s, twin: q}
}

func (h *StatsHandler) Intents(c *gin.Context) {
	all := h.store.IntentAll()
	fulfilled := 0
	for _, intent := range all {
		if intent.Fulfilled {
			fulfilled++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"total":       len(all),
		"fulfilled":   fulfilled,
		"unfulfilled": len(all) - fulfilled,
	})
}

func (h *StatsHandler) Threats(c *gin.Context) {
	all := h.store.ThreatAll()
	active := 0
	for _, threat := range all {
		if !threat.Status.Terminal() {
			active++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"total":  len(all),
		"active": active,
	})
}

// ThreatStatus returns the count of threats per lifecycle status.
func (h *StatsHandler) ThreatStatus(c *gin.Context) {
	counts := map[string]int{}
	for _, threat := range h.store.ThreatAll() {
		counts[string(threat.Status)]++
	}
	c.JSON(http.StatusOK, counts)
}

func (h *StatsHandler) Mitigations(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.MitigationAll())
}

// Hosts returns the distinct hosts named by tracked threats.
func (h *StatsHandler) Hosts(c *gin.Context) {
	seen := map[string]struct{}{}
	var hosts []string
	for _, threat := range h.store.ThreatAll() {
		for _, host := range threat.Hosts {
			if _, ok := seen[host]; !ok {
				seen[host] = struct{}{}
				hosts = append(hosts, host)
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"hosts": hosts})
}

// Emulation reports the twin queue depth and availability flag.
func (h *StatsHandler) Emulation(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"pending":        h.twin.Pending(),
		"twin_available": h.store.TwinAvailable(),
	})
}
