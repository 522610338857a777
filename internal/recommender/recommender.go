package recommender

import (
	"net"
	"sort"

	"github.com/argus-sec/argus/internal/logger"
	"github.com/argus-sec/argus/internal/models"
	"github.com/argus-sec/argus/internal/store"
)

// fillFunc resolves the declared parameter fields of one mitigation using
// threat attributes and static defaults.
type fillFunc func(threat *models.Threat, m *models.MitigationAction)

// fillRules maps category → mitigation name → parameter fill rule. This is
// business data, kept declarative so rules stay testable and swappable.
// Mitigations with no rule pass through unmodified.
var fillRules = map[models.Category]map[string]fillFunc{
	models.CategoryPrevention: {
		"dns_rate_limiting": func(t *models.Threat, m *models.MitigationAction) {
			m.SetParameter("rate", "20")
			m.SetParameter("source_ip_filter", firstHost(t, "0.0.0.0/0"))
		},
		"rate_limiting": func(t *models.Threat, m *models.MitigationAction) {
			m.SetParameter("device", "ceos2")
			m.SetParameter("interface", "eth4")
			m.SetParameter("rate", "10mbps")
		},
		"block_pod_address": func(t *models.Threat, m *models.MitigationAction) {
			m.SetParameter("blocked_pod", "attacker")
			m.SetParameter("device", "ceos2")
			m.SetParameter("interface", "eth4")
		},
	},
	models.CategoryMitigation: {
		"udp_traffic_filter": func(t *models.Threat, m *models.MitigationAction) {
			m.SetParameter("protocol", "UDP")
			m.SetParameter("source_ip_filter", firstHost(t, ""))
			m.SetParameter("destination_port", "123")
		},
	},
	models.CategoryDetection: {},
}

// defaultHosts maps mitigation name → the enforcement point the action is
// applied on when no override is configured.
var defaultHosts = map[string]string{
	"udp_traffic_filter":      "ceos2",
	"ntp_access_control":      "",
	"dns_rate_limiting":       "dns-s",
	"rate_limiting":           "ceos2",
	"block_pod_address":       "ceos2",
	"block_ues_multidomain":   "ceos2",
	"define_dns_servers":      "dns-c1",
	"firewall_pfcp_requests":  "ceos2",
	"validate_smf_integrity":  "smf_host",
	"filter_malicious_access": "ceos2",
	"api_rate_limiting":       "ceos2",
}

// paramHosts names mitigations whose target host comes from one of their own
// resolved parameters.
var paramHosts = map[string]string{
	"udp_traffic_filter": "node",
	"rate_limiting":      "device",
}

// Recommender proposes and parametrizes mitigation actions for threats.
type Recommender struct {
	store            *store.Store
	hostOverrides    map[string]string
	resolveHostnames bool
}

// New builds a recommender over the shared store. Overrides take precedence
// over the built-in host table; resolveHostnames toggles DNS resolution of
// logical hostnames into addresses.
func New(s *store.Store, hostOverrides map[string]string, resolveHostnames bool) *Recommender {
	if hostOverrides == nil {
		hostOverrides = map[string]string{}
	}
	return &Recommender{store: s, hostOverrides: hostOverrides, resolveHostnames: resolveHostnames}
}

// GetMitigations filters the catalog to enabled entries matching the threat's
// category and name, excluding anything already proposed for this threat, and
// returns them ordered by ascending priority (catalog order breaks ties).
// Returns nil when nothing applies.
func (r *Recommender) GetMitigations(threat *models.Threat) []*models.MitigationAction {
	tried := map[string]bool{}
	if associations, ok := r.store.AssociationGet(threat.ID); ok {
		for _, a := range associations {
			tried[a.ID] = true
		}
	}

	var candidates []*models.MitigationAction
	for _, m := range r.store.MitigationAll() {
		if !m.Enabled || !m.AppliesTo(threat.Category, threat.Name) {
			continue
		}
		if tried[m.ID] {
			logger.WithFields(map[string]interface{}{"mitigation_id": m.ID, "threat_id": threat.ID}).
				Debug("mitigation already associated with threat")
			continue
		}
		candidates = append(candidates, m)
	}

	if len(candidates) == 0 {
		logger.WithFields(map[string]interface{}{"threat": threat.Name, "category": threat.Category}).
			Info("no mitigations found for threat")
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority < candidates[j].Priority
	})
	return candidates
}

// ConfigureMitigation returns a parametrized copy of the catalog entry. The
// shared template is never mutated.
func (r *Recommender) ConfigureMitigation(threat *models.Threat, m *models.MitigationAction) *models.MitigationAction {
	configured := m.Clone()
	if rules, ok := fillRules[configured.Category]; ok {
		if fill, ok := rules[configured.Name]; ok {
			fill(threat, configured)
		}
	}
	return configured
}

// AssociateMitigation records the proposal in the threat's history.
func (r *Recommender) AssociateMitigation(threatID string, m *models.MitigationAction) {
	r.store.AssociationAdd(threatID, m)
}

// MitigationHost resolves the enforcement target for a mitigation: the
// configured override wins, then a host named by the action's own parameters,
// then the built-in default table.
func (r *Recommender) MitigationHost(intent *models.Intent, m *models.MitigationAction) string {
	if host, ok := r.hostOverrides[m.Name]; ok {
		return r.ResolveHostname(host)
	}
	if param, ok := paramHosts[m.Name]; ok {
		if host, ok := m.Parameters[param]; ok && host != "" {
			return r.ResolveHostname(host)
		}
	}
	return r.ResolveHostname(defaultHosts[m.Name])
}

// ResolveHostname maps a logical hostname to a network address when
// resolution is enabled. Resolution failures fall back to the logical name.
func (r *Recommender) ResolveHostname(host string) string {
	if !r.resolveHostnames || host == "" {
		return host
	}
	addrs, err := net.LookupHost(host)
	if err != nil || len(addrs) == 0 {
		logger.WithField("host", host).Debug("hostname resolution failed, using logical name")
		return host
	}
	return addrs[0]
}

func firstHost(t *models.Threat, fallback string) string {
	if len(t.Hosts) > 0 {
		return t.Hosts[0]
	}
	return fallback
}
