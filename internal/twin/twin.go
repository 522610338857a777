// Package twin integrates the impact-analysis digital twin, the external
// what-if simulator estimating a mitigation's effect before enforcement.
package twin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/argus-sec/argus/internal/logger"
	"github.com/argus-sec/argus/internal/metrics"
	"github.com/argus-sec/argus/internal/models"
	"github.com/argus-sec/argus/internal/store"
)

// Phase distinguishes the two round trips of one emulation job.
type Phase string

const (
	// PhaseMeasurement records the baseline KPI with no mitigation applied.
	PhaseMeasurement Phase = "measurement"
	// PhaseSimulation records the KPI with the mitigation simulated.
	PhaseSimulation Phase = "simulation"
)

type task struct {
	jobID string
	phase Phase
}

// Queue serializes what-if requests to the digital twin. Tasks are processed
// FIFO, one per reconciliation tick, and the store's availability flag
// guarantees at most one in-flight request system-wide: it is cleared when a
// request is dispatched and set again by the result callback.
type Queue struct {
	mu    sync.Mutex
	tasks []task

	url        string
	enabled    bool
	httpClient *http.Client
	store      *store.Store
	threshold  float64
}

// simulationActions maps mitigation names to the action type understood by
// the twin. Unknown mitigations simulate as a plain rate limit.
var simulationActions = map[string]string{
	"rate_limiting":     "rate_limit",
	"dns_rate_limiting": "rate_limit",
	"block_pod_address": "block_pod_ip",
}

// New builds the emulation queue. An empty URL disables the integration; a
// development fallback then schedules synthetic callbacks so the pipeline can
// be exercised end to end without a twin deployment.
func New(url string, threshold float64, s *store.Store) *Queue {
	q := &Queue{
		url:        url,
		store:      s,
		threshold:  threshold,
		httpClient: &http.Client{Timeout: 2 * time.Second},
	}
	if url != "" {
		q.enabled = true
	} else {
		logger.Log().Info("digital twin integration is disabled, synthetic callbacks active")
	}
	return q
}

// Enqueue opens a job for the (threat, mitigation) pair and queues its
// measurement and simulation tasks, in that order. A pair with an active job
// is silently skipped.
func (q *Queue) Enqueue(threat *models.Threat, m *models.MitigationAction) {
	job := models.NewDTJob(threat.ID, m.ID)
	job.Mitigation = m.Clone()
	if !q.store.DTJobAdd(job) {
		logger.WithFields(map[string]interface{}{"threat_id": threat.ID, "mitigation_id": m.ID}).
			Debug("emulation job for pair already active")
		return
	}

	q.mu.Lock()
	q.tasks = append(q.tasks, task{jobID: job.ID, phase: PhaseMeasurement}, task{jobID: job.ID, phase: PhaseSimulation})
	q.mu.Unlock()

	logger.WithFields(map[string]interface{}{"job_id": job.ID, "threat_id": threat.ID, "mitigation_id": m.ID}).
		Info("emulation job queued")
}

// ProcessQueuedJobs drains at most one task. Called once per reconciliation
// tick. Nothing happens while the twin is busy with an earlier request.
func (q *Queue) ProcessQueuedJobs() {
	if !q.store.TwinAvailable() {
		return
	}

	q.mu.Lock()
	if len(q.tasks) == 0 {
		q.mu.Unlock()
		return
	}
	next := q.tasks[0]
	q.tasks = q.tasks[1:]
	q.mu.Unlock()

	job, ok := q.store.DTJobGet(next.jobID)
	if !ok {
		logger.WithField("job_id", next.jobID).Warn("queued emulation task references unknown job")
		return
	}

	if next.phase == PhaseMeasurement {
		// The twin cannot run two measurements for one threat. When a
		// sibling job already measured this threat, reuse its baseline.
		if baseline, ok := q.store.DTJobFindBaseline(job.ThreatID, job.ID); ok {
			job.KPIBefore = &baseline
			q.store.DTJobUpdate(job.ID, job)
			logger.WithField("job_id", job.ID).Debug("baseline copied from sibling job")
			return
		}
	}

	q.store.TwinSetAvailable(false)
	if err := q.dispatch(job, next.phase); err != nil {
		// No callback will arrive. Drop the job's remaining task and expire
		// it so the pipeline reopens the threat instead of waiting on a
		// simulation that has no baseline.
		logger.WithFields(map[string]interface{}{"job_id": job.ID, "phase": next.phase, "error": err.Error()}).
			Error("what-if dispatch failed, emulation job abandoned")
		q.dropTasks(job.ID)
		q.store.DTJobExpire(job.ID)
		q.store.TwinSetAvailable(true)
	}
}

// dropTasks removes every queued task belonging to the job.
func (q *Queue) dropTasks(jobID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.tasks[:0]
	for _, t := range q.tasks {
		if t.jobID != jobID {
			kept = append(kept, t)
		}
	}
	q.tasks = kept
}

// HandleResult is the out-of-band callback path carrying one measured value.
// The first result fills the baseline; the second completes the job. Either
// way the twin is freed for the next request.
func (q *Queue) HandleResult(jobID string, value float64, unit string) error {
	completed, ok := q.store.DTJobRecordResult(jobID, value, unit)
	if !ok {
		return fmt.Errorf("no active emulation job %s", jobID)
	}

	if completed {
		metrics.IncEmulationCompleted()
		logger.WithFields(map[string]interface{}{"job_id": jobID, "kpi_after": value}).
			Info("emulation job completed")
	} else {
		logger.WithFields(map[string]interface{}{"job_id": jobID, "kpi_before": value}).
			Info("emulation baseline recorded")
	}
	q.store.TwinSetAvailable(true)
	return nil
}

// CheckResults reports whether the simulated mitigation reduced the measured
// KPI below the configured fraction of the baseline.
func (q *Queue) CheckResults(kpiBefore, kpiAfter float64) bool {
	return kpiAfter < kpiBefore*q.threshold
}

// Pending returns the number of queued tasks. Exposed for status reporting.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *Queue) dispatch(job *models.DTJob, phase Phase) error {
	msg := q.message(job, phase)

	if !q.enabled {
		raw, _ := json.Marshal(msg)
		logger.WithField("request", string(raw)).Info("twin disabled, scheduling synthetic callback")
		q.scheduleSyntheticResult(job, phase)
		return nil
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal what-if request: %w", err)
	}
	resp, err := q.httpClient.Post(q.url+"/what-if", "application/json", bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("post what-if request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// A rejected request gets no callback either; treat it like a
		// transport failure so the busy flag is reclaimed.
		return fmt.Errorf("twin rejected what-if request with status %d", resp.StatusCode)
	}
	logger.WithFields(map[string]interface{}{"job_id": job.ID, "phase": phase, "status": resp.StatusCode}).
		Info("what-if request dispatched")
	return nil
}

// scheduleSyntheticResult fakes the twin's asynchronous answer in development
// mode with plausible before/after values.
func (q *Queue) scheduleSyntheticResult(job *models.DTJob, phase Phase) {
	value := 1000.0
	if phase == PhaseSimulation {
		value = 1000.0 * q.threshold / 2
	}
	time.AfterFunc(500*time.Millisecond, func() {
		if err := q.HandleResult(job.ID, value, "packets-per-second"); err != nil {
			logger.WithField("job_id", job.ID).Debug("synthetic callback dropped, job no longer active")
		}
	})
}

type message struct {
	ID            string        `json:"id"`
	TopologyName  string        `json:"topology_name"`
	Attack        string        `json:"attack"`
	WhatCondition whatCondition `json:"what-condition"`
	IfCondition   ifCondition   `json:"if-condition"`
}

type whatCondition struct {
	KPIs kpiSpec `json:"KPIs"`
}

type kpiSpec struct {
	Element  element `json:"element"`
	Metric   string  `json:"metric"`
	Duration string  `json:"duration"`
}

type element struct {
	Node      string `json:"node"`
	Interface string `json:"interface"`
	Network   string `json:"network,omitempty"`
	Ref       string `json:"ref,omitempty"`
}

type ifCondition struct {
	Action  action  `json:"action"`
	Element element `json:"element"`
}

type action struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Unit     string `json:"unit"`
	Duration string `json:"duration"`
}

// message builds the protocol request from the template: measurement phases
// send a monitor action, simulation phases the mitigation's action type.
func (q *Queue) message(job *models.DTJob, phase Phase) message {
	msg := message{
		ID:           job.ID,
		TopologyName: "horse_ddos",
		Attack:       "DDoS_reverse",
		WhatCondition: whatCondition{KPIs: kpiSpec{
			Element:  element{Node: "dns-c1", Interface: "eth1"},
			Metric:   "packets-per-second",
			Duration: "30s",
		}},
	}

	if phase == PhaseMeasurement || job.Mitigation == nil {
		msg.IfCondition = ifCondition{
			Action:  action{Type: "monitor", Value: "*", Unit: "*", Duration: "30s"},
			Element: element{Node: "*", Interface: "*", Network: "*", Ref: "*_*_*"},
		}
		return msg
	}

	actionType, ok := simulationActions[job.Mitigation.Name]
	if !ok {
		actionType = "rate_limit"
	}
	msg.IfCondition = ifCondition{
		Action:  action{Type: actionType, Value: "1", Unit: "mbps", Duration: "30s"},
		Element: element{Node: "ceos2", Interface: "eth1", Network: "*", Ref: "ceos2_eth1_*"},
	}
	return msg
}
