package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThreatRenew(t *testing.T) {
	threat := NewThreat(CategoryMitigation, "dns_amplification", []string{"10.0.0.1"})
	assert.Equal(t, ThreatNew, threat.Status)

	threat.Renew()
	assert.Equal(t, ThreatNew, threat.Status)

	threat.Status = ThreatUnderMitigation
	threat.Renew()
	assert.Equal(t, ThreatReincident, threat.Status)

	threat.Status = ThreatUnderEmulation
	threat.Renew()
	assert.Equal(t, ThreatUnderEmulation, threat.Status)
}

func TestThreatExpired(t *testing.T) {
	threat := NewThreat(CategoryMitigation, "dns_amplification", nil)
	assert.False(t, threat.Expired(2*time.Minute))

	threat.LastUpdate = time.Now().Add(-3 * time.Minute)
	assert.True(t, threat.Expired(2*time.Minute))
}

func TestThreatSameSignature(t *testing.T) {
	threat := NewThreat(CategoryMitigation, "dns_amplification", []string{"a", "b"})

	assert.True(t, threat.SameSignature(CategoryMitigation, "dns_amplification", []string{"a", "b"}))
	assert.False(t, threat.SameSignature(CategoryMitigation, "dns_amplification", []string{"b", "a"}))
	assert.False(t, threat.SameSignature(CategoryMitigation, "dns_amplification", []string{"a"}))
	assert.False(t, threat.SameSignature(CategoryPrevention, "dns_amplification", []string{"a", "b"}))
	assert.False(t, threat.SameSignature(CategoryMitigation, "ntp_dos", []string{"a", "b"}))
}

func TestIntentTimedOut(t *testing.T) {
	intent := NewIntent(CategoryMitigation, "dns_amplification", nil, 600)
	assert.False(t, intent.TimedOut())

	intent.EndTime = time.Now().Add(-time.Second)
	assert.True(t, intent.TimedOut())
}

func TestMitigationCloneIsDeep(t *testing.T) {
	m := NewMitigationAction("rate_limiting", CategoryPrevention, []string{"dns_amplification"}, []string{"rate"}, 1)
	m.SetParameter("rate", "10mbps")

	cp := m.Clone()
	cp.SetParameter("rate", "99mbps")
	cp.Threats[0] = "changed"

	assert.Equal(t, "10mbps", m.Parameters["rate"])
	assert.Equal(t, "dns_amplification", m.Threats[0])
	assert.NotSame(t, m, cp)
}

func TestCategoryValid(t *testing.T) {
	assert.True(t, CategoryMitigation.Valid())
	assert.True(t, CategoryPrevention.Valid())
	assert.True(t, CategoryDetection.Valid())
	assert.False(t, Category("remediation").Valid())
	assert.False(t, Category("").Valid())
}
