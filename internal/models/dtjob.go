package models

import "github.com/google/uuid"

// DTJobStatus tracks the digital-twin round trip of one emulation job.
type DTJobStatus string

const (
	DTJobPending   DTJobStatus = "pending"
	DTJobCompleted DTJobStatus = "completed"
	// DTJobExpired marks a consumed job. Expired jobs are kept for listing
	// but excluded from every active lookup.
	DTJobExpired DTJobStatus = "expired"
)

// DTJob records one what-if evaluation of a (threat, mitigation) pair on the
// digital twin: a baseline measurement followed by a simulation with the
// mitigation applied.
type DTJob struct {
	ID           string            `json:"id"`
	ThreatID     string            `json:"threat_id"`
	MitigationID string            `json:"mitigation_id"`
	Mitigation   *MitigationAction `json:"mitigation,omitempty"`
	KPIBefore    *float64          `json:"kpi_before,omitempty"`
	KPIAfter     *float64          `json:"kpi_after,omitempty"`
	Unit         string            `json:"unit,omitempty"`
	Status       DTJobStatus       `json:"status"`
}

// NewDTJob opens a pending job for the pair.
func NewDTJob(threatID, mitigationID string) *DTJob {
	return &DTJob{
		ID:           uuid.NewString(),
		ThreatID:     threatID,
		MitigationID: mitigationID,
		Status:       DTJobPending,
	}
}

// Measured reports whether the baseline KPI has been recorded.
func (j *DTJob) Measured() bool {
	return j.KPIBefore != nil
}

// Clone returns a deep copy. The store hands out clones so readers never
// share struct fields with the reconciliation loop.
func (j *DTJob) Clone() *DTJob {
	cp := *j
	if j.Mitigation != nil {
		cp.Mitigation = j.Mitigation.Clone()
	}
	if j.KPIBefore != nil {
		v := *j.KPIBefore
		cp.KPIBefore = &v
	}
	if j.KPIAfter != nil {
		v := *j.KPIAfter
		cp.KPIAfter = &v
	}
	return &cp
}
