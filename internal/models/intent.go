package models

import (
	"time"

	"github.com/google/uuid"
)

// Category is the response category of an intent or threat. It selects the
// pipeline branch and the catalog subset that applies.
type Category string

const (
	CategoryMitigation Category = "mitigation"
	CategoryPrevention Category = "prevention"
	CategoryDetection  Category = "detection"
)

// Valid reports whether the category is one of the three supported values.
func (c Category) Valid() bool {
	switch c {
	case CategoryMitigation, CategoryPrevention, CategoryDetection:
		return true
	}
	return false
}

// Intent is a declarative request for a security outcome submitted by an
// external detector. It references threats by (category, name) rather than
// owning them, so several intents can track the same live threat.
type Intent struct {
	ID        string    `json:"id"`
	Category  Category  `json:"intent_type"`
	Threat    string    `json:"threat"`
	Hosts     []string  `json:"host"`
	Duration  int       `json:"duration"` // seconds
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Fulfilled bool      `json:"fulfilled"`
}

// NewIntent builds an intent from a submission. The expiry clock starts now.
func NewIntent(category Category, threat string, hosts []string, durationSec int) *Intent {
	now := time.Now()
	return &Intent{
		ID:        uuid.NewString(),
		Category:  category,
		Threat:    threat,
		Hosts:     append([]string(nil), hosts...),
		Duration:  durationSec,
		StartTime: now,
		EndTime:   now.Add(time.Duration(durationSec) * time.Second),
	}
}

// TimedOut reports whether the intent passed its requested duration. Timed
// out intents are excluded from active processing but kept for reporting.
func (i *Intent) TimedOut() bool {
	return time.Now().After(i.EndTime)
}

// Clone returns a deep copy. The store hands out clones so readers never
// share struct fields with the reconciliation loop.
func (i *Intent) Clone() *Intent {
	cp := *i
	cp.Hosts = append([]string(nil), i.Hosts...)
	return &cp
}

// SameTarget reports whether another submission addresses the identical
// (category, threat, host list) tuple.
func (i *Intent) SameTarget(category Category, threat string, hosts []string) bool {
	if i.Category != category || i.Threat != threat || len(i.Hosts) != len(hosts) {
		return false
	}
	for n, h := range i.Hosts {
		if h != hosts[n] {
			return false
		}
	}
	return true
}
