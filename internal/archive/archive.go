// Package archive persists terminal threats and dispatched workflows for
// reporting. The in-memory store stays authoritative; this is history only.
package archive

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/argus-sec/argus/internal/logger"
	"github.com/argus-sec/argus/internal/models"
)

type Service struct {
	DB *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// RecordMitigated stores the durable trace of a threat that reached its
// terminal state.
func (s *Service) RecordMitigated(threat *models.Threat) {
	if s == nil || s.DB == nil {
		return
	}
	record := models.ThreatRecord{
		UUID:        threat.ID,
		Category:    string(threat.Category),
		Name:        threat.Name,
		Hosts:       strings.Join(threat.Hosts, ","),
		FirstSeen:   threat.FirstSeen,
		MitigatedAt: time.Now(),
	}
	if err := s.DB.Create(&record).Error; err != nil {
		logger.WithField("threat_id", threat.ID).WithError(err).Error("failed to archive mitigated threat")
	}
}

// RecordWorkflow appends one enforcement dispatch to the audit trail.
func (s *Service) RecordWorkflow(record *models.WorkflowRecord) {
	if s == nil || s.DB == nil {
		return
	}
	if err := s.DB.Create(record).Error; err != nil {
		logger.WithField("correlation_id", record.CorrelationID).WithError(err).Error("failed to record workflow")
	}
}

// ListThreats returns archived threats, newest first.
func (s *Service) ListThreats(limit int) ([]models.ThreatRecord, error) {
	var records []models.ThreatRecord
	query := s.DB.Order("mitigated_at desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	return records, query.Find(&records).Error
}

// ListWorkflows returns the workflow audit trail, newest first.
func (s *Service) ListWorkflows(limit int) ([]models.WorkflowRecord, error) {
	var records []models.WorkflowRecord
	query := s.DB.Order("created_at desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	return records, query.Find(&records).Error
}

// Prune drops archive rows older than the retention window.
func (s *Service) Prune(retention time.Duration) error {
	if s == nil || s.DB == nil {
		return nil
	}
	cutoff := time.Now().Add(-retention)
	if err := s.DB.Where("created_at < ?", cutoff).Delete(&models.ThreatRecord{}).Error; err != nil {
		return err
	}
	return s.DB.Where("created_at < ?", cutoff).Delete(&models.WorkflowRecord{}).Error
}
