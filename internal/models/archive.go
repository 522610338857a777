package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ThreatRecord is the durable trace of a threat that reached its terminal
// state, kept for reporting after the in-memory entry goes inert.
type ThreatRecord struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	UUID        string    `json:"uuid" gorm:"uniqueIndex"`
	Category    string    `json:"category" gorm:"index"`
	Name        string    `json:"name" gorm:"index"`
	Hosts       string    `json:"hosts"` // comma-separated
	FirstSeen   time.Time `json:"first_seen"`
	MitigatedAt time.Time `json:"mitigated_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// WorkflowRecord is the audit trail of workflows handed to the enforcement
// system. Dispatch is at-least-once, so the same correlation id can appear
// with different outcomes.
type WorkflowRecord struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	CorrelationID  string    `json:"correlation_id" gorm:"index"`
	IntentID       string    `json:"intent_id" gorm:"index"`
	Category       string    `json:"intent_type"`
	Threat         string    `json:"threat"`
	AttackedHost   string    `json:"attacked_host"`
	MitigationHost string    `json:"mitigation_host"`
	Action         string    `json:"action"`
	FieldsJSON     string    `json:"fields" gorm:"type:text"`
	Duration       int       `json:"duration"`
	Outcome        string    `json:"outcome"` // sent, exists, failed, logged
	CreatedAt      time.Time `json:"created_at" gorm:"index"`
}

func (r *ThreatRecord) BeforeCreate(tx *gorm.DB) (err error) {
	if r.UUID == "" {
		r.UUID = uuid.NewString()
	}
	return
}
