package store

import (
	"sync"
	"time"

	"github.com/argus-sec/argus/internal/logger"
	"github.com/argus-sec/argus/internal/models"
)

// Store is the single authoritative in-memory repository shared by the
// reconciliation loop and the request handlers. One mutex guards every
// collection; each accessor is its own critical section so the lock is never
// held across a whole tick or any network I/O.
//
// The store owns its structs outright: writers hand in values that are cloned
// on insert, and every lookup returns a clone. Callers mutate only through
// store methods, so the loop and concurrent request handlers never share raw
// fields.
//
// Lookups on unknown ids return an explicit not-found result and guarded
// inserts reject duplicates silently; no method panics on bad input.
type Store struct {
	mu sync.Mutex

	intents     map[string]*models.Intent
	intentOrder []string

	threats     map[string]*models.Threat
	threatOrder []string

	catalog []*models.MitigationAction

	associations map[string][]*models.MitigationAction

	jobs     map[string]*models.DTJob
	jobOrder []string

	twinBusy    bool
	compromised bool
}

// New builds an empty store with the digital twin marked available.
func New() *Store {
	return &Store{
		intents:      map[string]*models.Intent{},
		threats:      map[string]*models.Threat{},
		associations: map[string][]*models.MitigationAction{},
		jobs:         map[string]*models.DTJob{},
	}
}

// --- Intents ---

// IntentAdd stores a new intent.
func (s *Store) IntentAdd(intent *models.Intent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.intents[intent.ID]; !ok {
		s.intentOrder = append(s.intentOrder, intent.ID)
	}
	s.intents[intent.ID] = intent.Clone()
	logger.WithField("intent_id", intent.ID).Info("intent added")
}

// IntentUpdate replaces an intent by id.
func (s *Store) IntentUpdate(id string, intent *models.Intent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.intents[id]; !ok {
		return false
	}
	s.intents[id] = intent.Clone()
	return true
}

// IntentGet returns a copy of an intent by id.
func (s *Store) IntentGet(id string) (*models.Intent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[id]
	if !ok {
		return nil, false
	}
	return intent.Clone(), true
}

// IntentRemove deletes an intent by id.
func (s *Store) IntentRemove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.intents[id]; !ok {
		return false
	}
	delete(s.intents, id)
	for n, v := range s.intentOrder {
		if v == id {
			s.intentOrder = append(s.intentOrder[:n], s.intentOrder[n+1:]...)
			break
		}
	}
	return true
}

// IntentAll returns a snapshot of all intents in insertion order.
func (s *Store) IntentAll() []*models.Intent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Intent, 0, len(s.intentOrder))
	for _, id := range s.intentOrder {
		out = append(out, s.intents[id].Clone())
	}
	return out
}

// IntentSetFulfilled toggles the fulfillment flag of an intent.
func (s *Store) IntentSetFulfilled(id string, fulfilled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[id]
	if !ok {
		return false
	}
	intent.Fulfilled = fulfilled
	return true
}

// IntentExists reports whether a live (not timed out) intent addresses the
// same (category, threat, hosts) tuple.
func (s *Store) IntentExists(category models.Category, threat string, hosts []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, intent := range s.intents {
		if intent.SameTarget(category, threat, hosts) && !intent.TimedOut() {
			return true
		}
	}
	return false
}

// --- Threats ---

// ThreatAdd stores a threat unless a non-terminal threat with the same
// signature already exists. Returns false on the duplicate.
func (s *Store) ThreatAdd(threat *models.Threat) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.threats {
		if !t.Status.Terminal() && t.SameSignature(threat.Category, threat.Name, threat.Hosts) {
			logger.WithField("threat_id", t.ID).Debug("active threat with same signature exists, insert rejected")
			return false
		}
	}
	if _, ok := s.threats[threat.ID]; !ok {
		s.threatOrder = append(s.threatOrder, threat.ID)
	}
	s.threats[threat.ID] = threat.Clone()
	logger.WithField("threat_id", threat.ID).Info("threat added")
	return true
}

// ThreatGet returns a copy of a threat by id.
func (s *Store) ThreatGet(id string) (*models.Threat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threats[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// ThreatUpdate replaces a threat by id.
func (s *Store) ThreatUpdate(id string, threat *models.Threat) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threats[id]; !ok {
		return false
	}
	s.threats[id] = threat.Clone()
	return true
}

// ThreatRemove deletes a threat by id.
func (s *Store) ThreatRemove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threats[id]; !ok {
		return false
	}
	delete(s.threats, id)
	for n, v := range s.threatOrder {
		if v == id {
			s.threatOrder = append(s.threatOrder[:n], s.threatOrder[n+1:]...)
			break
		}
	}
	return true
}

// ThreatAll returns a snapshot of all threats in insertion order.
func (s *Store) ThreatAll() []*models.Threat {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Threat, 0, len(s.threatOrder))
	for _, id := range s.threatOrder {
		out = append(out, s.threats[id].Clone())
	}
	return out
}

// ThreatFindActive locates the non-terminal threat matching the signature.
func (s *Store) ThreatFindActive(category models.Category, name string, hosts []string) (*models.Threat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.threatOrder {
		t := s.threats[id]
		if !t.Status.Terminal() && t.SameSignature(category, name, hosts) {
			return t.Clone(), true
		}
	}
	return nil, false
}

// ThreatSetStatus transitions a threat and bumps its last-update timestamp.
func (s *Store) ThreatSetStatus(id string, status models.ThreatStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threats[id]
	if !ok {
		return false
	}
	t.Status = status
	t.LastUpdate = time.Now()
	return true
}

// ThreatStatus returns the current status of a threat.
func (s *Store) ThreatStatus(id string) (models.ThreatStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threats[id]
	if !ok {
		return "", false
	}
	return t.Status, true
}

// ThreatRenew refreshes a threat after a duplicate submission, escalating
// under-mitigation threats to reincident.
func (s *Store) ThreatRenew(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threats[id]
	if !ok {
		return false
	}
	t.Renew()
	return true
}

// ThreatExpireOverdue force-transitions every under-mitigation threat past
// the timeout window to mitigated and returns the affected threats.
func (s *Store) ThreatExpireOverdue(window time.Duration) []*models.Threat {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []*models.Threat
	for _, id := range s.threatOrder {
		t := s.threats[id]
		if t.Status == models.ThreatUnderMitigation && t.Expired(window) {
			t.Status = models.ThreatMitigated
			expired = append(expired, t.Clone())
		}
	}
	return expired
}

// --- Mitigation catalog ---

// MitigationAdd appends a catalog entry.
func (s *Store) MitigationAdd(m *models.MitigationAction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = append(s.catalog, m.Clone())
}

// MitigationGet returns a copy of a catalog entry by id.
func (s *Store) MitigationGet(id string) (*models.MitigationAction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.catalog {
		if m.ID == id {
			return m.Clone(), true
		}
	}
	return nil, false
}

// MitigationUpdate replaces a catalog entry by id.
func (s *Store) MitigationUpdate(id string, m *models.MitigationAction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for n, cur := range s.catalog {
		if cur.ID == id {
			s.catalog[n] = m.Clone()
			return true
		}
	}
	return false
}

// MitigationAll returns a snapshot of the catalog in load order.
func (s *Store) MitigationAll() []*models.MitigationAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.MitigationAction, 0, len(s.catalog))
	for _, m := range s.catalog {
		out = append(out, m.Clone())
	}
	return out
}

// --- Threat/mitigation associations ---

// AssociationAdd appends a proposed mitigation to the threat's history.
func (s *Store) AssociationAdd(threatID string, m *models.MitigationAction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.associations[threatID] = append(s.associations[threatID], m.Clone())
}

// AssociationGet returns a copy of the proposal history for a threat, oldest
// first.
func (s *Store) AssociationGet(threatID string) ([]*models.MitigationAction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, ok := s.associations[threatID]
	if !ok || len(list) == 0 {
		return nil, false
	}
	out := make([]*models.MitigationAction, 0, len(list))
	for _, m := range list {
		out = append(out, m.Clone())
	}
	return out, true
}

// AssociationUpdate replaces the recorded entry carrying the same mitigation
// id, appending instead when none matches. Used when compliance tuning
// produces an adjusted candidate.
func (s *Store) AssociationUpdate(threatID string, m *models.MitigationAction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.associations[threatID]
	for n, cur := range list {
		if cur.ID == m.ID {
			list[n] = m.Clone()
			return
		}
	}
	s.associations[threatID] = append(list, m.Clone())
}

// --- Digital-twin jobs ---

// DTJobAdd stores a job unless an active job for the same
// (threat, mitigation) pair exists. Returns false on the duplicate.
func (s *Store) DTJobAdd(job *models.DTJob) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.Status != models.DTJobExpired && j.ThreatID == job.ThreatID && j.MitigationID == job.MitigationID {
			return false
		}
	}
	if _, ok := s.jobs[job.ID]; !ok {
		s.jobOrder = append(s.jobOrder, job.ID)
	}
	s.jobs[job.ID] = job.Clone()
	return true
}

// DTJobUpdate replaces a job by id.
func (s *Store) DTJobUpdate(id string, job *models.DTJob) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return false
	}
	s.jobs[id] = job.Clone()
	return true
}

// DTJobRecordResult stores one measured value on an active job. The first
// result fills the baseline KPI, the second fills the post-mitigation KPI and
// completes the job; completed reports which of the two happened.
func (s *Store) DTJobRecordResult(id string, value float64, unit string) (completed, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, found := s.jobs[id]
	if !found || j.Status == models.DTJobExpired {
		return false, false
	}
	if j.KPIBefore == nil {
		j.KPIBefore = &value
	} else {
		j.KPIAfter = &value
		j.Status = models.DTJobCompleted
		completed = true
	}
	j.Unit = unit
	return completed, true
}

// DTJobGet returns a copy of an active job by id. Expired jobs are invisible
// here.
func (s *Store) DTJobGet(id string) (*models.DTJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status == models.DTJobExpired {
		return nil, false
	}
	return j.Clone(), true
}

// DTJobGetByThreat returns a copy of the active job tracking the given threat.
func (s *Store) DTJobGetByThreat(threatID string) (*models.DTJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.jobOrder {
		j := s.jobs[id]
		if j.Status != models.DTJobExpired && j.ThreatID == threatID {
			return j.Clone(), true
		}
	}
	return nil, false
}

// DTJobExists reports whether an active job covers the pair.
func (s *Store) DTJobExists(threatID, mitigationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.Status != models.DTJobExpired && j.ThreatID == threatID && j.MitigationID == mitigationID {
			return true
		}
	}
	return false
}

// DTJobExpire soft-deletes a single job.
func (s *Store) DTJobExpire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return false
	}
	j.Status = models.DTJobExpired
	return true
}

// DTJobExpireByThreat soft-deletes every active job for the threat once the
// pipeline consumed its result.
func (s *Store) DTJobExpireByThreat(threatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.ThreatID == threatID && j.Status != models.DTJobExpired {
			j.Status = models.DTJobExpired
		}
	}
}

// DTJobAll lists copies of jobs in insertion order, optionally including
// expired ones.
func (s *Store) DTJobAll(includeExpired bool) []*models.DTJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.DTJob, 0, len(s.jobOrder))
	for _, id := range s.jobOrder {
		j := s.jobs[id]
		if !includeExpired && j.Status == models.DTJobExpired {
			continue
		}
		out = append(out, j.Clone())
	}
	return out
}

// DTJobFindBaseline returns a completed measurement for the threat taken by a
// different job. The twin cannot run two measurements for one threat, so a
// sibling baseline is copied instead of re-measured.
func (s *Store) DTJobFindBaseline(threatID, excludeJobID string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.jobOrder {
		j := s.jobs[id]
		if j.ID != excludeJobID && j.ThreatID == threatID && j.KPIBefore != nil {
			return *j.KPIBefore, true
		}
	}
	return 0, false
}

// --- Global flags ---

// TwinAvailable reports whether the digital twin can accept a request.
func (s *Store) TwinAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.twinBusy
}

// TwinSetAvailable flips the twin's single-flight availability flag.
func (s *Store) TwinSetAvailable(available bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.twinBusy = !available
}

// Compromised reports whether the compliance collaborator flagged the system
// as spoofed. While set, the reconciliation loop refuses to run.
func (s *Store) Compromised() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compromised
}

// SetCompromised sets or clears the manual-intervention halt flag.
func (s *Store) SetCompromised(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.compromised = v
}
