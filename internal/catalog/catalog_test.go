package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-sec/argus/internal/models"
	"github.com/argus-sec/argus/internal/store"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yml")
	content := `mitigations:
  - name: udp_traffic_filter
    category: mitigation
    threats: [ddos_amplification]
    fields: [protocol, source_ip_filter]
    priority: 0
  - name: ntp_access_control
    category: mitigation
    threats: [ddos_amplification]
    priority: 1
    disabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	actions, err := Load(path)
	require.NoError(t, err)
	require.Len(t, actions, 2)

	assert.Equal(t, "udp_traffic_filter", actions[0].Name)
	assert.Equal(t, models.CategoryMitigation, actions[0].Category)
	assert.True(t, actions[0].Enabled)
	assert.NotEmpty(t, actions[0].ID)

	assert.False(t, actions[1].Enabled)
}

func TestLoadRejectsBrokenEntries(t *testing.T) {
	dir := t.TempDir()

	missingName := filepath.Join(dir, "noname.yml")
	require.NoError(t, os.WriteFile(missingName, []byte("mitigations:\n  - category: mitigation\n    threats: [x]\n"), 0o644))
	_, err := Load(missingName)
	assert.Error(t, err)

	badCategory := filepath.Join(dir, "badcat.yml")
	require.NoError(t, os.WriteFile(badCategory, []byte("mitigations:\n  - name: x\n    category: remediation\n    threats: [x]\n"), 0o644))
	_, err = Load(badCategory)
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "missing.yml"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yml")
	require.NoError(t, Save(path, Default()))

	actions, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, actions, len(Default()))
}

func TestSync(t *testing.T) {
	s := store.New()

	added, updated := Sync(s, Default())
	assert.Equal(t, len(Default()), added)
	assert.Zero(t, updated)

	// A second sync with one changed entry updates in place and keeps ids.
	before := s.MitigationAll()
	var originalID string
	for _, m := range before {
		if m.Name == "udp_traffic_filter" {
			originalID = m.ID
		}
	}
	require.NotEmpty(t, originalID)

	reloaded := Default()
	for _, m := range reloaded {
		if m.Name == "udp_traffic_filter" {
			m.Priority = 9
		}
	}
	added, updated = Sync(s, reloaded)
	assert.Zero(t, added)
	assert.Equal(t, len(reloaded), updated)

	found, ok := s.MitigationGet(originalID)
	require.True(t, ok)
	assert.Equal(t, 9, found.Priority)
	assert.Len(t, s.MitigationAll(), len(Default()))
}

func TestDefaultCatalogIsValid(t *testing.T) {
	for _, m := range Default() {
		assert.NotEmpty(t, m.Name)
		assert.True(t, m.Category.Valid())
		assert.NotEmpty(t, m.Threats)
		assert.True(t, m.Enabled)
	}
}
