// Package intents handles external intent submissions: deduplication, intent
// creation and the coupled threat bookkeeping.
package intents

import (
	"github.com/argus-sec/argus/internal/alarms"
	"github.com/argus-sec/argus/internal/logger"
	"github.com/argus-sec/argus/internal/models"
	"github.com/argus-sec/argus/internal/store"
)

// Result is the user-visible outcome of one submission.
type Result string

const (
	ResultCreated  Result = "created"
	ResultUpdated  Result = "updated"
	ResultRejected Result = "rejected"
)

// Submission is the parsed intent request from an external detector.
type Submission struct {
	IntentType models.Category `json:"intent_type" binding:"required"`
	Threat     string          `json:"threat" binding:"required"`
	Host       []string        `json:"host" binding:"required"`
	Duration   int             `json:"duration" binding:"required"`
}

// Service processes submissions against the shared store.
type Service struct {
	store  *store.Store
	alarms *alarms.Service
}

// NewService builds the submission service.
func NewService(s *store.Store, a *alarms.Service) *Service {
	return &Service{store: s, alarms: a}
}

// Process applies one submission. A submission whose (category, threat,
// hosts) tuple matches a live intent is a retry: the tracked threat is
// renewed and the caller is told "updated" instead of getting a second
// object. Otherwise a new intent is stored, and a new threat is created
// unless an active one already covers the signature.
func (s *Service) Process(sub Submission) Result {
	if !sub.IntentType.Valid() || sub.Threat == "" || sub.Duration <= 0 {
		return ResultRejected
	}

	if s.store.IntentExists(sub.IntentType, sub.Threat, sub.Host) {
		logger.WithFields(map[string]interface{}{"threat": sub.Threat, "category": sub.IntentType}).
			Info("intent already exists, renewing threat")
		s.renewThreat(sub)
		return ResultUpdated
	}

	intent := models.NewIntent(sub.IntentType, sub.Threat, sub.Host, sub.Duration)
	s.store.IntentAdd(intent)

	if threat, ok := s.store.ThreatFindActive(sub.IntentType, sub.Threat, sub.Host); ok {
		s.store.ThreatRenew(threat.ID)
	} else {
		threat := models.NewThreat(sub.IntentType, sub.Threat, sub.Host)
		if s.store.ThreatAdd(threat) {
			s.alarms.NotifyThreat(threat, alarms.TypeNew)
		}
	}
	return ResultCreated
}

func (s *Service) renewThreat(sub Submission) {
	if threat, ok := s.store.ThreatFindActive(sub.IntentType, sub.Threat, sub.Host); ok {
		s.store.ThreatRenew(threat.ID)
	}
}
