package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/argus-sec/argus/internal/models"
	"github.com/argus-sec/argus/internal/store"
)

// File is the on-disk shape of the mitigation catalog.
type File struct {
	Mitigations []Entry `yaml:"mitigations"`
}

// Entry is one catalog recipe as written by operators.
type Entry struct {
	Name     string   `yaml:"name"`
	Category string   `yaml:"category"`
	Threats  []string `yaml:"threats"`
	Fields   []string `yaml:"fields"`
	Priority int      `yaml:"priority"`
	Disabled bool     `yaml:"disabled"`
}

// Load parses the catalog file at path. Entries with missing identity fields
// or an unknown category are rejected so a broken catalog is caught at boot.
func Load(path string) ([]*models.MitigationAction, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}

	actions := make([]*models.MitigationAction, 0, len(file.Mitigations))
	for n, entry := range file.Mitigations {
		if entry.Name == "" || len(entry.Threats) == 0 {
			return nil, fmt.Errorf("catalog entry %d: name and threats are required", n)
		}
		category := models.Category(entry.Category)
		if !category.Valid() {
			return nil, fmt.Errorf("catalog entry %q: unknown category %q", entry.Name, entry.Category)
		}
		action := models.NewMitigationAction(entry.Name, category, entry.Threats, entry.Fields, entry.Priority)
		action.Enabled = !entry.Disabled
		actions = append(actions, action)
	}

	return actions, nil
}

// Save writes the catalog entries to path in the on-disk YAML shape.
func Save(path string, actions []*models.MitigationAction) error {
	file := File{Mitigations: make([]Entry, 0, len(actions))}
	for _, action := range actions {
		file.Mitigations = append(file.Mitigations, Entry{
			Name:     action.Name,
			Category: string(action.Category),
			Threats:  action.Threats,
			Fields:   action.Fields,
			Priority: action.Priority,
			Disabled: !action.Enabled,
		})
	}

	raw, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write catalog file: %w", err)
	}

	return nil
}

// Sync merges freshly loaded entries into the store. Recipes matching an
// existing (name, category) pair are updated in place and keep their id so
// threat associations stay intact; unknown pairs are added.
func Sync(s *store.Store, entries []*models.MitigationAction) (added, updated int) {
	existing := map[[2]string]*models.MitigationAction{}
	for _, m := range s.MitigationAll() {
		existing[[2]string{m.Name, string(m.Category)}] = m
	}

	for _, entry := range entries {
		if current, ok := existing[[2]string{entry.Name, string(entry.Category)}]; ok {
			entry.ID = current.ID
			if s.MitigationUpdate(current.ID, entry) {
				updated++
			}
			continue
		}
		s.MitigationAdd(entry)
		added++
	}

	return added, updated
}

// Default returns the built-in demo catalog used when no catalog file is
// configured.
func Default() []*models.MitigationAction {
	return []*models.MitigationAction{
		models.NewMitigationAction("execute_test_1", models.CategoryMitigation, []string{"hello_world"}, []string{"test_id", "modules"}, 0),
		models.NewMitigationAction("execute_test_2", models.CategoryPrevention, []string{"hello_world"}, []string{"test_id", "modules"}, 0),
		models.NewMitigationAction("udp_traffic_filter", models.CategoryMitigation, []string{"ddos_amplification"}, []string{"protocol", "source_ip_filter", "destination_port"}, 0),
		models.NewMitigationAction("ntp_access_control", models.CategoryMitigation, []string{"ddos_amplification"}, []string{"authorized_hosts", "mode"}, 1),
		models.NewMitigationAction("dns_rate_limiting", models.CategoryPrevention, []string{"dns_amplification"}, []string{"rate", "source_ip_filter"}, 0),
		models.NewMitigationAction("rate_limiting", models.CategoryPrevention, []string{"dns_amplification", "ddos_download_link"}, []string{"device", "interface", "rate"}, 1),
		models.NewMitigationAction("block_pod_address", models.CategoryPrevention, []string{"dns_amplification", "ddos_download_link"}, []string{"blocked_pod", "device", "interface"}, 2),
		models.NewMitigationAction("block_ues_multidomain", models.CategoryMitigation, []string{"multidomain"}, []string{"domains", "rate_limiting"}, 0),
		models.NewMitigationAction("define_dns_servers", models.CategoryMitigation, []string{"multidomain"}, []string{"dns_servers"}, 1),
		models.NewMitigationAction("firewall_pfcp_requests", models.CategoryDetection, []string{"signaling_pfcp"}, []string{"drop_percentage", "request_types"}, 0),
		models.NewMitigationAction("validate_smf_integrity", models.CategoryDetection, []string{"signaling_pfcp"}, []string{"check", "action"}, 1),
		models.NewMitigationAction("filter_malicious_access", models.CategoryMitigation, []string{"nf_exposure"}, []string{"actor", "response"}, 0),
		models.NewMitigationAction("api_rate_limiting", models.CategoryMitigation, []string{"nf_exposure"}, []string{"limit"}, 1),
		models.NewMitigationAction("dns_rate_limiting", models.CategoryMitigation, []string{"poisoning_and_amplification"}, []string{"rate", "source_ip_filter"}, 0),
		models.NewMitigationAction("rate_limiting", models.CategoryMitigation, []string{"poisoning_and_amplification"}, []string{"device", "interface", "rate"}, 1),
		models.NewMitigationAction("block_pod_address", models.CategoryMitigation, []string{"poisoning_and_amplification"}, []string{"blocked_pod", "device", "interface"}, 2),
	}
}
