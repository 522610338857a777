// Package pipeline drives the intent/threat reconciliation state machine:
// one pass of matching, recommending, validating, emulating and enforcing
// mitigations per tick.
package pipeline

import (
	"context"
	"time"

	"github.com/argus-sec/argus/internal/alarms"
	"github.com/argus-sec/argus/internal/archive"
	"github.com/argus-sec/argus/internal/cas"
	"github.com/argus-sec/argus/internal/ckb"
	"github.com/argus-sec/argus/internal/logger"
	"github.com/argus-sec/argus/internal/metrics"
	"github.com/argus-sec/argus/internal/models"
	"github.com/argus-sec/argus/internal/recommender"
	"github.com/argus-sec/argus/internal/rtr"
	"github.com/argus-sec/argus/internal/store"
	"github.com/argus-sec/argus/internal/twin"
)

// Pipeline owns the reconciliation loop. All shared state lives in the store;
// collaborator calls happen between store accesses, never under its lock.
type Pipeline struct {
	store       *store.Store
	recommender *recommender.Recommender
	compliance  *cas.Client
	twin        *twin.Queue
	enforcement *rtr.Client
	knowledge   *ckb.Client
	alarms      *alarms.Service
	archive     *archive.Service

	tickInterval   time.Duration
	threatTimeout  time.Duration
	tuneMaxRetries int
}

// New wires the pipeline over its collaborators.
func New(
	s *store.Store,
	rec *recommender.Recommender,
	compliance *cas.Client,
	twinQueue *twin.Queue,
	enforcement *rtr.Client,
	knowledge *ckb.Client,
	alarmSvc *alarms.Service,
	archiveSvc *archive.Service,
	tickInterval, threatTimeout time.Duration,
	tuneMaxRetries int,
) *Pipeline {
	return &Pipeline{
		store:          s,
		recommender:    rec,
		compliance:     compliance,
		twin:           twinQueue,
		enforcement:    enforcement,
		knowledge:      knowledge,
		alarms:         alarmSvc,
		archive:        archiveSvc,
		tickInterval:   tickInterval,
		threatTimeout:  threatTimeout,
		tuneMaxRetries: tuneMaxRetries,
	}
}

// Run executes ticks on a fixed interval until the context is canceled.
func (p *Pipeline) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tickInterval)
	defer ticker.Stop()

	logger.WithField("interval", p.tickInterval.String()).Info("reconciliation loop started")
	for {
		select {
		case <-ctx.Done():
			logger.Log().Info("reconciliation loop stopped")
			return
		case <-ticker.C:
			p.Tick()
		}
	}
}

// Tick runs one reconciliation pass.
func (p *Pipeline) Tick() {
	if p.store.Compromised() {
		logger.Log().Warn("######################################################################")
		logger.Log().Warn("#  The orchestrator may be compromised and refuses to reconcile.     #")
		logger.Log().Warn("#  Manual intervention is required to clear the compromise flag.     #")
		logger.Log().Warn("######################################################################")
		metrics.IncTickSkipped()
		return
	}
	metrics.IncTick()

	// Force overdue under-mitigation threats to their terminal state.
	for _, expired := range p.store.ThreatExpireOverdue(p.threatTimeout) {
		logger.WithField("threat_id", expired.ID).Debug("threat expired, set mitigated")
		p.alarms.NotifyThreat(expired, alarms.TypeMitigated)
		p.archive.RecordMitigated(expired)
	}

	var active []*models.Intent
	for _, intent := range p.store.IntentAll() {
		if !intent.TimedOut() {
			active = append(active, intent)
		}
	}
	threats := p.store.ThreatAll()

	for _, intent := range active {
		switch intent.Category {
		case models.CategoryMitigation, models.CategoryDetection:
			p.processMitigationIntent(intent, filterThreats(threats, models.CategoryMitigation, models.CategoryDetection))
		case models.CategoryPrevention:
			p.processPreventionIntent(intent, filterThreats(threats, models.CategoryPrevention))
		default:
			logger.WithFields(map[string]interface{}{"intent_id": intent.ID, "category": intent.Category}).
				Warn("unknown intent category")
		}
	}

	p.twin.ProcessQueuedJobs()
	p.checkIntentFulfillment()
}

// processMitigationIntent advances detected threats: recommend, validate and
// enforce the top candidate, or fold reincident threats back to new.
func (p *Pipeline) processMitigationIntent(intent *models.Intent, threats []*models.Threat) {
	for _, threat := range threats {
		p.withRecovery(threat.ID, func() {
			metrics.IncThreatProcessed()

			if p.status(threat.ID) == models.ThreatNew {
				p.knowledge.Query(threat.Name)
				candidates := p.recommender.GetMitigations(threat)
				if len(candidates) == 0 {
					return
				}
				m := p.recommender.ConfigureMitigation(threat, candidates[0])
				p.recommender.AssociateMitigation(threat.ID, m)
				p.validateAndEnforce(intent, threat, m)
			}

			if p.status(threat.ID) == models.ThreatReincident {
				logger.WithField("threat_id", threat.ID).Debug("reincident threat reset to new")
				p.store.ThreatSetStatus(threat.ID, models.ThreatNew)
			}
		})
	}
}

// processPreventionIntent advances forecast threats through emulation before
// any enforcement.
func (p *Pipeline) processPreventionIntent(intent *models.Intent, threats []*models.Threat) {
	for _, threat := range threats {
		p.withRecovery(threat.ID, func() {
			metrics.IncThreatProcessed()

			if p.status(threat.ID) == models.ThreatNew {
				p.knowledge.Query(threat.Name)
				candidates := p.recommender.GetMitigations(threat)
				if len(candidates) == 0 {
					return
				}
				m := p.recommender.ConfigureMitigation(threat, candidates[0])
				p.recommender.AssociateMitigation(threat.ID, m)
				p.twin.Enqueue(threat, m)
				p.store.ThreatSetStatus(threat.ID, models.ThreatUnderEmulation)
			}

			if p.status(threat.ID) == models.ThreatUnderEmulation {
				p.evaluateEmulation(intent, threat)
			}

			if p.status(threat.ID) == models.ThreatReincident {
				logger.WithField("threat_id", threat.ID).Debug("reincident threat reset to new")
				p.store.ThreatSetStatus(threat.ID, models.ThreatNew)
			}
		})
	}
}

// evaluateEmulation consumes a completed what-if job: a convincing KPI drop
// sends the remembered mitigation into validation, anything else reopens the
// threat. The job is soft-deleted either way. A threat whose job was
// abandoned (failed dispatch) also reopens here.
func (p *Pipeline) evaluateEmulation(intent *models.Intent, threat *models.Threat) {
	job, ok := p.store.DTJobGetByThreat(threat.ID)
	if !ok {
		logger.WithField("threat_id", threat.ID).Warn("no active emulation job for threat, reset to new")
		p.store.ThreatSetStatus(threat.ID, models.ThreatNew)
		return
	}
	if job.Status != models.DTJobCompleted {
		return
	}
	if job.KPIBefore == nil || job.KPIAfter == nil {
		logger.WithField("job_id", job.ID).Warn("completed emulation job misses KPI values")
		p.store.DTJobExpireByThreat(threat.ID)
		p.store.ThreatSetStatus(threat.ID, models.ThreatNew)
		return
	}

	if p.twin.CheckResults(*job.KPIBefore, *job.KPIAfter) {
		// Recover the most recently proposed mitigation for this threat.
		if proposals, ok := p.store.AssociationGet(threat.ID); ok {
			p.validateAndEnforce(intent, threat, proposals[len(proposals)-1])
		} else {
			logger.WithField("threat_id", threat.ID).Warn("emulated threat has no associated mitigation")
			p.store.ThreatSetStatus(threat.ID, models.ThreatNew)
		}
	} else {
		logger.WithFields(map[string]interface{}{
			"threat_id":  threat.ID,
			"kpi_before": *job.KPIBefore,
			"kpi_after":  *job.KPIAfter,
		}).Info("mitigation not effective in emulation, threat reset to new")
		p.store.ThreatSetStatus(threat.ID, models.ThreatNew)
	}

	p.store.DTJobExpireByThreat(threat.ID)
}

// validateAndEnforce runs the compliance validate→tune loop, bounded by the
// retry cap, then dispatches the accepted candidate. Invalid verdicts and
// dispatch failures reset the threat to new so the next tick retries.
func (p *Pipeline) validateAndEnforce(intent *models.Intent, threat *models.Threat, m *models.MitigationAction) {
	verdict := p.compliance.Validate(intent, m)
	for retries := 0; verdict == cas.Partial && retries < p.tuneMaxRetries; retries++ {
		m = p.compliance.TuneMitigation(m)
		p.store.AssociationUpdate(threat.ID, m)
		verdict = p.compliance.Validate(intent, m)
	}
	if verdict == cas.Partial {
		logger.WithField("mitigation_id", m.ID).Warn("tune retries exhausted, treating candidate as invalid")
		verdict = cas.Invalid
	}

	switch verdict {
	case cas.Invalid:
		logger.WithField("mitigation_id", m.ID).Debug("candidate rejected by compliance, threat reset to new")
		p.store.ThreatSetStatus(threat.ID, models.ThreatNew)
	case cas.Valid:
		if err := p.enforcement.Enforce(intent, m); err != nil {
			logger.WithField("threat_id", threat.ID).WithError(err).Error("enforcement dispatch failed, threat reset to new")
			p.store.ThreatSetStatus(threat.ID, models.ThreatNew)
			return
		}
		logger.WithField("mitigation_id", m.ID).Debug("candidate accepted, threat under mitigation")
		p.store.ThreatSetStatus(threat.ID, models.ThreatUnderMitigation)
	}
}

// checkIntentFulfillment marks each intent fulfilled iff no threat matching
// its (category, name) pair remains in a non-terminal status. Timed-out
// intents still get a final determination.
func (p *Pipeline) checkIntentFulfillment() {
	threats := p.store.ThreatAll()
	for _, intent := range p.store.IntentAll() {
		fulfilled := true
		for _, threat := range threats {
			if threat.Category == intent.Category && threat.Name == intent.Threat && !threat.Status.Terminal() {
				fulfilled = false
				break
			}
		}
		p.store.IntentSetFulfilled(intent.ID, fulfilled)
	}
}

// status re-reads the threat's current position through the store so checks
// observe transitions made earlier in the same pass.
func (p *Pipeline) status(threatID string) models.ThreatStatus {
	status, _ := p.store.ThreatStatus(threatID)
	return status
}

// withRecovery isolates one threat's processing so a panic never aborts the
// remainder of the tick.
func (p *Pipeline) withRecovery(threatID string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(map[string]interface{}{"threat_id": threatID, "panic": r}).
				Error("threat processing panicked")
		}
	}()
	fn()
}

func filterThreats(threats []*models.Threat, categories ...models.Category) []*models.Threat {
	var out []*models.Threat
	for _, t := range threats {
		for _, c := range categories {
			if t.Category == c {
				out = append(out, t)
				break
			}
		}
	}
	return out
}
