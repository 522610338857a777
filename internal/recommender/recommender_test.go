package recommender

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-sec/argus/internal/models"
	"github.com/argus-sec/argus/internal/store"
)

func seedCatalog(s *store.Store) (low, high, disabled *models.MitigationAction) {
	low = models.NewMitigationAction("dns_rate_limiting", models.CategoryPrevention, []string{"dns_amplification"}, []string{"rate", "source_ip_filter"}, 0)
	high = models.NewMitigationAction("rate_limiting", models.CategoryPrevention, []string{"dns_amplification"}, []string{"device", "interface", "rate"}, 1)
	disabled = models.NewMitigationAction("block_pod_address", models.CategoryPrevention, []string{"dns_amplification"}, []string{"blocked_pod"}, 2)
	disabled.Enabled = false

	// Inserted out of priority order on purpose.
	s.MitigationAdd(high)
	s.MitigationAdd(low)
	s.MitigationAdd(disabled)
	return low, high, disabled
}

func TestGetMitigationsFiltersAndSorts(t *testing.T) {
	s := store.New()
	low, high, _ := seedCatalog(s)
	r := New(s, nil, false)

	threat := models.NewThreat(models.CategoryPrevention, "dns_amplification", []string{"10.0.0.1"})

	candidates := r.GetMitigations(threat)
	require.Len(t, candidates, 2)
	assert.Equal(t, low.ID, candidates[0].ID)
	assert.Equal(t, high.ID, candidates[1].ID)

	// Category or name mismatch yields nothing.
	other := models.NewThreat(models.CategoryMitigation, "dns_amplification", nil)
	assert.Nil(t, r.GetMitigations(other))
	unknown := models.NewThreat(models.CategoryPrevention, "ntp_dos", nil)
	assert.Nil(t, r.GetMitigations(unknown))
}

func TestGetMitigationsExcludesTried(t *testing.T) {
	s := store.New()
	low, high, _ := seedCatalog(s)
	r := New(s, nil, false)

	threat := models.NewThreat(models.CategoryPrevention, "dns_amplification", []string{"10.0.0.1"})
	r.AssociateMitigation(threat.ID, low)

	candidates := r.GetMitigations(threat)
	require.Len(t, candidates, 1)
	assert.Equal(t, high.ID, candidates[0].ID)

	r.AssociateMitigation(threat.ID, high)
	assert.Nil(t, r.GetMitigations(threat))
}

func TestConfigureMitigationFillsParameters(t *testing.T) {
	s := store.New()
	r := New(s, nil, false)

	threat := models.NewThreat(models.CategoryPrevention, "dns_amplification", []string{"10.0.0.9"})

	template := models.NewMitigationAction("rate_limiting", models.CategoryPrevention, []string{"dns_amplification"}, []string{"device", "interface", "rate"}, 1)
	configured := r.ConfigureMitigation(threat, template)
	assert.Equal(t, "ceos2", configured.Parameters["device"])
	assert.Equal(t, "eth4", configured.Parameters["interface"])
	assert.Equal(t, "10mbps", configured.Parameters["rate"])
	// The shared template stays clean.
	assert.Empty(t, template.Parameters)

	dns := models.NewMitigationAction("dns_rate_limiting", models.CategoryPrevention, []string{"dns_amplification"}, []string{"rate", "source_ip_filter"}, 0)
	configured = r.ConfigureMitigation(threat, dns)
	assert.Equal(t, "20", configured.Parameters["rate"])
	assert.Equal(t, "10.0.0.9", configured.Parameters["source_ip_filter"])

	hostless := models.NewThreat(models.CategoryPrevention, "dns_amplification", nil)
	configured = r.ConfigureMitigation(hostless, dns)
	assert.Equal(t, "0.0.0.0/0", configured.Parameters["source_ip_filter"])

	// No fill rule: parameters pass through empty.
	plain := models.NewMitigationAction("ntp_access_control", models.CategoryMitigation, []string{"ddos_amplification"}, []string{"mode"}, 0)
	mitThreat := models.NewThreat(models.CategoryMitigation, "ddos_amplification", nil)
	configured = r.ConfigureMitigation(mitThreat, plain)
	assert.Empty(t, configured.Parameters)
}

func TestMitigationHostPrecedence(t *testing.T) {
	s := store.New()
	intent := models.NewIntent(models.CategoryPrevention, "dns_amplification", []string{"10.0.0.1"}, 600)

	m := models.NewMitigationAction("rate_limiting", models.CategoryPrevention, []string{"dns_amplification"}, []string{"device"}, 1)
	m.SetParameter("device", "ceos7")

	// Override beats the action's own parameter.
	r := New(s, map[string]string{"rate_limiting": "edge-router"}, false)
	assert.Equal(t, "edge-router", r.MitigationHost(intent, m))

	// Parameter beats the default table.
	r = New(s, nil, false)
	assert.Equal(t, "ceos7", r.MitigationHost(intent, m))

	// Default table is the last resort.
	plain := models.NewMitigationAction("dns_rate_limiting", models.CategoryPrevention, []string{"dns_amplification"}, nil, 0)
	assert.Equal(t, "dns-s", r.MitigationHost(intent, plain))
}

func TestResolveHostnameDisabled(t *testing.T) {
	r := New(store.New(), nil, false)
	assert.Equal(t, "dns-s", r.ResolveHostname("dns-s"))
	assert.Equal(t, "", r.ResolveHostname(""))
}
