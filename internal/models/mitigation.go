package models

import "github.com/google/uuid"

// MitigationAction is a reusable mitigation/prevention/detection recipe from
// the catalog. Identity (name, category, applicable threats) is immutable
// after catalog load; parameters, priority and the enabled flag may change at
// runtime.
type MitigationAction struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Category   Category          `json:"category"`
	Threats    []string          `json:"threats"`
	Fields     []string          `json:"fields"`
	Parameters map[string]string `json:"parameters"`
	Priority   int               `json:"priority"`
	Enabled    bool              `json:"enabled"`
}

// NewMitigationAction builds an enabled catalog entry with a fresh id.
func NewMitigationAction(name string, category Category, threats, fields []string, priority int) *MitigationAction {
	return &MitigationAction{
		ID:         uuid.NewString(),
		Name:       name,
		Category:   category,
		Threats:    append([]string(nil), threats...),
		Fields:     append([]string(nil), fields...),
		Parameters: map[string]string{},
		Priority:   priority,
		Enabled:    true,
	}
}

// AppliesTo reports whether the entry covers the given category and threat
// name.
func (m *MitigationAction) AppliesTo(category Category, threatName string) bool {
	if m.Category != category {
		return false
	}
	for _, t := range m.Threats {
		if t == threatName {
			return true
		}
	}
	return false
}

// SetParameter records a resolved parameter value.
func (m *MitigationAction) SetParameter(key, value string) {
	if m.Parameters == nil {
		m.Parameters = map[string]string{}
	}
	m.Parameters[key] = value
}

// Clone returns a deep copy. Recommendations always configure a copy so the
// shared catalog template never picks up per-threat parameters.
func (m *MitigationAction) Clone() *MitigationAction {
	cp := *m
	cp.Threats = append([]string(nil), m.Threats...)
	cp.Fields = append([]string(nil), m.Fields...)
	cp.Parameters = make(map[string]string, len(m.Parameters))
	for k, v := range m.Parameters {
		cp.Parameters[k] = v
	}
	return &cp
}
