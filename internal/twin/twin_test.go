package twin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-sec/argus/internal/models"
	"github.com/argus-sec/argus/internal/store"
)

func newPair() (*models.Threat, *models.MitigationAction) {
	threat := models.NewThreat(models.CategoryPrevention, "dns_amplification", []string{"10.0.0.1"})
	m := models.NewMitigationAction("rate_limiting", models.CategoryPrevention, []string{"dns_amplification"}, []string{"rate"}, 1)
	m.SetParameter("rate", "10mbps")
	return threat, m
}

func TestEnqueueOpensJobAndTasks(t *testing.T) {
	s := store.New()
	q := New("", 0.5, s)

	threat, m := newPair()
	q.Enqueue(threat, m)

	job, ok := s.DTJobGetByThreat(threat.ID)
	require.True(t, ok)
	assert.Equal(t, models.DTJobPending, job.Status)
	assert.Equal(t, m.ID, job.MitigationID)
	require.NotNil(t, job.Mitigation)
	assert.Equal(t, 2, q.Pending())

	// Re-enqueueing the live pair is a no-op.
	q.Enqueue(threat, m)
	assert.Equal(t, 2, q.Pending())
}

func TestProcessQueuedJobsDispatchesOnePhase(t *testing.T) {
	s := store.New()

	var mu sync.Mutex
	var messages []message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/what-if", r.URL.Path)
		var msg message
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		mu.Lock()
		messages = append(messages, msg)
		mu.Unlock()
	}))
	defer srv.Close()

	q := New(srv.URL, 0.5, s)
	threat, m := newPair()
	q.Enqueue(threat, m)

	q.ProcessQueuedJobs()
	require.Len(t, messages, 1)
	assert.Equal(t, "monitor", messages[0].IfCondition.Action.Type)
	assert.False(t, s.TwinAvailable())
	assert.Equal(t, 1, q.Pending())

	// Twin busy: nothing moves.
	q.ProcessQueuedJobs()
	require.Len(t, messages, 1)

	job, _ := s.DTJobGetByThreat(threat.ID)
	require.NoError(t, q.HandleResult(job.ID, 1000, "packets-per-second"))
	assert.True(t, s.TwinAvailable())

	q.ProcessQueuedJobs()
	require.Len(t, messages, 2)
	assert.Equal(t, "rate_limit", messages[1].IfCondition.Action.Type)
	assert.Equal(t, job.ID, messages[1].ID)
}

func TestHandleResultFillsBeforeThenAfter(t *testing.T) {
	s := store.New()
	q := New("", 0.5, s)

	threat, m := newPair()
	q.Enqueue(threat, m)
	job, _ := s.DTJobGetByThreat(threat.ID)

	require.NoError(t, q.HandleResult(job.ID, 1000, "packets-per-second"))
	job, _ = s.DTJobGetByThreat(threat.ID)
	require.NotNil(t, job.KPIBefore)
	assert.Equal(t, 1000.0, *job.KPIBefore)
	assert.Nil(t, job.KPIAfter)
	assert.Equal(t, models.DTJobPending, job.Status)

	require.NoError(t, q.HandleResult(job.ID, 120, "packets-per-second"))
	job, _ = s.DTJobGetByThreat(threat.ID)
	require.NotNil(t, job.KPIAfter)
	assert.Equal(t, 120.0, *job.KPIAfter)
	assert.Equal(t, models.DTJobCompleted, job.Status)
	assert.True(t, s.TwinAvailable())

	assert.Error(t, q.HandleResult("no-such-job", 1, ""))
}

func TestMeasurementCopiesSiblingBaseline(t *testing.T) {
	s := store.New()
	q := New("", 0.5, s)

	threat, m := newPair()

	// A sibling job already measured this threat.
	baseline := 900.0
	sibling := models.NewDTJob(threat.ID, "other-mitigation")
	sibling.KPIBefore = &baseline
	require.True(t, s.DTJobAdd(sibling))

	q.Enqueue(threat, m)
	q.ProcessQueuedJobs()

	job, ok := s.DTJobGet(jobIDFor(t, s, threat.ID, m.ID))
	require.True(t, ok)
	require.NotNil(t, job.KPIBefore)
	assert.Equal(t, 900.0, *job.KPIBefore)
	// No request went out, the twin stays free for the simulation phase.
	assert.True(t, s.TwinAvailable())
	assert.Equal(t, 1, q.Pending())
}

func jobIDFor(t *testing.T, s *store.Store, threatID, mitigationID string) string {
	t.Helper()
	for _, j := range s.DTJobAll(true) {
		if j.ThreatID == threatID && j.MitigationID == mitigationID {
			return j.ID
		}
	}
	t.Fatalf("no job for pair %s/%s", threatID, mitigationID)
	return ""
}

func TestFailedDispatchAbandonsJob(t *testing.T) {
	s := store.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused on dispatch

	q := New(srv.URL, 0.5, s)
	threat, m := newPair()
	q.Enqueue(threat, m)

	q.ProcessQueuedJobs()

	// The simulation task must not survive a failed measurement; the job is
	// expired and the twin reclaimed.
	assert.Equal(t, 0, q.Pending())
	assert.True(t, s.TwinAvailable())
	_, ok := s.DTJobGetByThreat(threat.ID)
	assert.False(t, ok)
}

func TestRejectedDispatchFreesTwin(t *testing.T) {
	s := store.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	q := New(srv.URL, 0.5, s)
	threat, m := newPair()
	q.Enqueue(threat, m)

	q.ProcessQueuedJobs()

	// No callback ever arrives for a rejected request, so the busy flag must
	// not stay set.
	assert.Equal(t, 0, q.Pending())
	assert.True(t, s.TwinAvailable())
	_, ok := s.DTJobGetByThreat(threat.ID)
	assert.False(t, ok)
}

func TestCheckResults(t *testing.T) {
	q := New("", 0.5, store.New())

	assert.True(t, q.CheckResults(1000, 499))
	assert.False(t, q.CheckResults(1000, 500))
	assert.False(t, q.CheckResults(1000, 900))
	assert.False(t, q.CheckResults(0, 0))
}
