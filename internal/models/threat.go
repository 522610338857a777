package models

import (
	"time"

	"github.com/google/uuid"
)

// ThreatStatus is the state machine position of a tracked threat.
type ThreatStatus string

const (
	ThreatNew             ThreatStatus = "new"
	ThreatUnderEmulation  ThreatStatus = "under_emulation"
	ThreatUnderMitigation ThreatStatus = "under_mitigation"
	ThreatReincident      ThreatStatus = "reincident"
	ThreatMitigated       ThreatStatus = "mitigated"
)

// Terminal reports whether the status ends the threat lifecycle.
func (s ThreatStatus) Terminal() bool {
	return s == ThreatMitigated
}

// Threat is a detected or forecast occurrence requiring a response. Threats
// are decoupled from the intents that discovered them.
type Threat struct {
	ID         string       `json:"id"`
	Category   Category     `json:"category"`
	Name       string       `json:"name"`
	Hosts      []string     `json:"hosts"`
	FirstSeen  time.Time    `json:"first_seen"`
	LastUpdate time.Time    `json:"last_update"`
	Status     ThreatStatus `json:"status"`
}

// NewThreat tracks a freshly reported threat in status new.
func NewThreat(category Category, name string, hosts []string) *Threat {
	now := time.Now()
	return &Threat{
		ID:         uuid.NewString(),
		Category:   category,
		Name:       name,
		Hosts:      append([]string(nil), hosts...),
		FirstSeen:  now,
		LastUpdate: now,
		Status:     ThreatNew,
	}
}

// Expired reports whether the threat went without updates longer than the
// timeout window. Expiry is independent of any intent's duration.
func (t *Threat) Expired(window time.Duration) bool {
	return time.Now().After(t.LastUpdate.Add(window))
}

// Renew bumps the last-update timestamp for a repeated submission. A threat
// already under mitigation escalates to reincident so the next tick re-opens
// it.
func (t *Threat) Renew() {
	t.LastUpdate = time.Now()
	if t.Status == ThreatUnderMitigation {
		t.Status = ThreatReincident
	}
}

// Clone returns a deep copy. The store hands out clones so readers never
// share struct fields with the reconciliation loop.
func (t *Threat) Clone() *Threat {
	cp := *t
	cp.Hosts = append([]string(nil), t.Hosts...)
	return &cp
}

// SameSignature reports whether the threat covers the given
// (category, name, host set) combination.
func (t *Threat) SameSignature(category Category, name string, hosts []string) bool {
	if t.Category != category || t.Name != name || len(t.Hosts) != len(hosts) {
		return false
	}
	for n, h := range t.Hosts {
		if h != hosts[n] {
			return false
		}
	}
	return true
}
