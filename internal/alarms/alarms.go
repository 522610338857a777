// Package alarms forwards threat lifecycle events to an external channel
// (SIEM, chat, webhook) via shoutrrr. Pure side-channel: delivery failures
// never influence the pipeline.
package alarms

import (
	"fmt"

	"github.com/containrrr/shoutrrr"

	"github.com/argus-sec/argus/internal/logger"
	"github.com/argus-sec/argus/internal/models"
)

// Type classifies the alarm.
type Type string

const (
	TypeNew       Type = "new"
	TypeMitigated Type = "mitigated"
)

// Service sends alarm notifications. With no URL configured the messages go
// to the application log instead.
type Service struct {
	url     string
	enabled bool
}

// NewService builds the alarm sender.
func NewService(url string) *Service {
	s := &Service{url: url, enabled: url != ""}
	if !s.enabled {
		logger.Log().Info("alarm forwarding is disabled")
	}
	return s
}

// NotifyThreat emits one lifecycle alarm for the threat. Sending happens in a
// goroutine so the reconciliation tick never blocks on the channel.
func (s *Service) NotifyThreat(threat *models.Threat, alarmType Type) {
	var message string
	switch alarmType {
	case TypeNew:
		message = fmt.Sprintf("New threat detected: %s of type %s on %v", threat.ID, threat.Category, threat.Hosts)
	case TypeMitigated:
		message = fmt.Sprintf("Threat mitigated: %s of type %s", threat.ID, threat.Category)
	default:
		return
	}

	if !s.enabled {
		logger.WithField("message", message).Info("alarm forwarding disabled, logging alarm")
		return
	}

	go func() {
		if err := shoutrrr.Send(s.url, message); err != nil {
			logger.Log().WithError(err).Error("failed to send alarm")
			return
		}
		logger.WithField("message", message).Info("alarm sent")
	}()
}
