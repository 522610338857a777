package rtr

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-sec/argus/internal/archive"
	"github.com/argus-sec/argus/internal/models"
	"github.com/argus-sec/argus/internal/recommender"
	"github.com/argus-sec/argus/internal/store"
)

type fakeEnforcement struct {
	mu           sync.Mutex
	registered   bool
	loggedIn     bool
	actionStatus int
	workflows    []Workflow
	authHeaders  []string
}

func (f *fakeEnforcement) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch r.URL.Path {
		case "/register":
			f.registered = true
			w.WriteHeader(http.StatusCreated)
		case "/login":
			require.NoError(t, r.ParseForm())
			require.Equal(t, "argus", r.PostForm.Get("username"))
			f.loggedIn = true
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "opaque-token"})
		case "/actions":
			var wf Workflow
			require.NoError(t, json.NewDecoder(r.Body).Decode(&wf))
			f.workflows = append(f.workflows, wf)
			f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
			w.WriteHeader(f.actionStatus)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newClient(t *testing.T, url string) *Client {
	t.Helper()
	s := store.New()
	return New(url, "argus", "secret", "argus@example.com", recommender.New(s, nil, false), archive.NewService(nil))
}

func newValidatedPair() (*models.Intent, *models.MitigationAction) {
	intent := models.NewIntent(models.CategoryPrevention, "dns_amplification", []string{"10.0.0.1"}, 600)
	m := models.NewMitigationAction("rate_limiting", models.CategoryPrevention, []string{"dns_amplification"}, []string{"device", "interface", "rate"}, 1)
	m.SetParameter("device", "ceos2")
	m.SetParameter("rate", "10mbps")
	return intent, m
}

func TestConnectAndEnforce(t *testing.T) {
	fake := &fakeEnforcement{actionStatus: http.StatusCreated}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c := newClient(t, srv.URL)
	require.NoError(t, c.Connect())
	assert.True(t, fake.registered)
	assert.True(t, fake.loggedIn)

	intent, m := newValidatedPair()
	require.NoError(t, c.Enforce(intent, m))

	require.Len(t, fake.workflows, 1)
	wf := fake.workflows[0]
	assert.Equal(t, "add", wf.Command)
	assert.Equal(t, "prevention", wf.IntentType)
	assert.Equal(t, "dns_amplification", wf.Threat)
	assert.Equal(t, "10.0.0.1", wf.AttackedHost)
	assert.Equal(t, "ceos2", wf.MitigationHost)
	assert.Equal(t, "rate_limiting", wf.Action.Name)
	assert.Equal(t, "10mbps", wf.Action.Fields["rate"])
	// The intent duration is repeated inside the action fields.
	assert.Equal(t, "600", wf.Action.Fields["duration"])
	assert.NotEmpty(t, wf.IntentID)
	assert.Equal(t, "Bearer opaque-token", fake.authHeaders[0])
}

func TestEnforceDownlinkPreventionTargetsPanel(t *testing.T) {
	fake := &fakeEnforcement{actionStatus: http.StatusOK}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c := newClient(t, srv.URL)
	require.NoError(t, c.Connect())

	intent := models.NewIntent(models.CategoryPrevention, "ddos_downlink", []string{"10.0.0.1"}, 600)
	m := models.NewMitigationAction("rate_limiting", models.CategoryPrevention, []string{"ddos_downlink"}, nil, 1)
	require.NoError(t, c.Enforce(intent, m))

	require.Len(t, fake.workflows, 1)
	assert.Equal(t, "ue_panel", fake.workflows[0].AttackedHost)
}

func TestEnforceAlreadyExistsIsNotAnError(t *testing.T) {
	fake := &fakeEnforcement{actionStatus: http.StatusBadRequest}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c := newClient(t, srv.URL)
	require.NoError(t, c.Connect())

	intent, m := newValidatedPair()
	assert.NoError(t, c.Enforce(intent, m))
}

func TestEnforceServerErrorPropagates(t *testing.T) {
	fake := &fakeEnforcement{actionStatus: http.StatusBadGateway}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c := newClient(t, srv.URL)
	require.NoError(t, c.Connect())

	intent, m := newValidatedPair()
	assert.Error(t, c.Enforce(intent, m))
}

func TestDisabledClientLogsWorkflow(t *testing.T) {
	c := newClient(t, "")
	require.NoError(t, c.Connect())

	intent, m := newValidatedPair()
	assert.NoError(t, c.Enforce(intent, m))
}

func TestTokenExpiryFallback(t *testing.T) {
	// An opaque token cannot be parsed; the refresh window falls back to a
	// fixed slot instead of refusing the token.
	exp := tokenExpiry("opaque-token")
	assert.False(t, exp.IsZero())
}
