// Package cas integrates the Compliance Assurance Service, the external
// oracle validating proposed mitigations against policy rules.
package cas

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/argus-sec/argus/internal/logger"
	"github.com/argus-sec/argus/internal/metrics"
	"github.com/argus-sec/argus/internal/models"
	"github.com/argus-sec/argus/internal/recommender"
	"github.com/argus-sec/argus/internal/store"
)

// Verdict is the outcome of one compliance validation.
type Verdict string

const (
	Valid   Verdict = "valid"
	Invalid Verdict = "invalid"
	Partial Verdict = "partial"
)

// casActions renames mitigations whose compliance-side action name differs
// from the catalog name.
var casActions = map[string]string{
	"rate_limiting": "router_rate_limiting",
}

// Client validates candidate (intent, mitigation) pairs with the compliance
// service. With no URL configured the client fails open: every candidate is
// reported valid and the request body goes to the log instead. That policy
// keeps the orchestrator live in degraded environments and is deliberate.
type Client struct {
	url           string
	enabled       bool
	httpClient    *http.Client
	breaker       *gobreaker.CircuitBreaker
	store         *store.Store
	recommender   *recommender.Recommender
	tuneIncrement int
}

type request struct {
	Input workflowBody `json:"input"`
}

type workflowBody struct {
	Command        string            `json:"command"`
	IntentType     string            `json:"intent_type"`
	Threat         string            `json:"threat"`
	AttackedHost   []string          `json:"attacked_host"`
	MitigationHost string            `json:"mitigation_host"`
	Action         actionBody        `json:"action"`
	Duration       int               `json:"duration"`
	IntentID       string            `json:"intent_id"`
}

type actionBody struct {
	Name   string            `json:"name"`
	Fields map[string]string `json:"fields"`
}

type response struct {
	Allow          bool  `json:"allow"`
	PassPercentage int   `json:"pass_percentage"`
	Continue       *bool `json:"continue,omitempty"`
}

// New builds the compliance client. An empty URL disables the integration.
func New(url string, tuneIncrement int, s *store.Store, rec *recommender.Recommender) *Client {
	c := &Client{
		store:         s,
		recommender:   rec,
		tuneIncrement: tuneIncrement,
		httpClient:    &http.Client{Timeout: 2 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "compliance",
			Timeout: 30 * time.Second,
		}),
	}
	if url != "" {
		c.enabled = true
		c.url = strings.TrimRight(url, "/") + "/api/external-data"
	} else {
		logger.Log().Info("compliance integration is disabled")
	}
	return c
}

// Validate submits the candidate pair and maps the answer to a verdict. A
// continuation-denied answer signals intent spoofing: the store's compromise
// flag is set and the verdict is invalid.
func (c *Client) Validate(intent *models.Intent, m *models.MitigationAction) Verdict {
	verdict := c.validate(intent, m)
	metrics.IncComplianceVerdict(string(verdict))
	return verdict
}

func (c *Client) validate(intent *models.Intent, m *models.MitigationAction) Verdict {
	body := c.message(intent, m)

	if !c.enabled {
		raw, _ := json.Marshal(body)
		logger.WithField("request", string(raw)).Info("compliance disabled, candidate accepted fail-open")
		return Valid
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(body)
	})
	if err != nil {
		// Unreachable validator: fail open so the orchestrator stays live.
		logger.WithField("error", err.Error()).Warn("compliance service unreachable, candidate accepted fail-open")
		return Valid
	}

	answer := result.(*response)
	if answer.Continue != nil && !*answer.Continue {
		logger.WithFields(map[string]interface{}{"intent_id": intent.ID, "threat": intent.Threat}).
			Error("compliance denied continuation, flagging system as compromised")
		c.store.SetCompromised(true)
		return Invalid
	}
	if answer.Allow {
		logger.WithField("mitigation_id", m.ID).Info("compliance validation succeeded")
		return Valid
	}
	if answer.PassPercentage > 0 {
		return Partial
	}
	return Invalid
}

func (c *Client) post(body request) (*response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal compliance request: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, c.url, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("compliance service returned status %d", resp.StatusCode)
	}

	var answer response
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return nil, fmt.Errorf("decode compliance answer: %w", err)
	}
	return &answer, nil
}

// TuneMitigation produces the next candidate after a partial verdict by
// applying a bounded per-name numeric adjustment. The validate→tune loop is
// capped by the pipeline, not here.
func (c *Client) TuneMitigation(m *models.MitigationAction) *models.MitigationAction {
	tuned := m.Clone()
	tuned.ID = m.ID // tuning adjusts the same proposal, not a new one
	if tuned.Name == "rate_limiting" {
		if rate, ok := tuned.Parameters["rate"]; ok && strings.HasSuffix(rate, "mbps") {
			if value, err := strconv.Atoi(strings.TrimSuffix(rate, "mbps")); err == nil {
				tuned.Parameters["rate"] = fmt.Sprintf("%dmbps", value+c.tuneIncrement)
			} else {
				logger.WithField("rate", rate).Error("cannot tune malformed rate value")
			}
		}
	}
	return tuned
}

func (c *Client) message(intent *models.Intent, m *models.MitigationAction) request {
	fields := make(map[string]string, len(m.Parameters))
	for k, v := range m.Parameters {
		fields[k] = v
	}

	name := m.Name
	if mapped, ok := casActions[name]; ok {
		name = mapped
	}

	return request{Input: workflowBody{
		Command:        "add",
		IntentType:     string(intent.Category),
		Threat:         intent.Threat,
		AttackedHost:   intent.Hosts,
		MitigationHost: c.recommender.MitigationHost(intent, m),
		Action:         actionBody{Name: name, Fields: fields},
		Duration:       intent.Duration,
		IntentID:       intent.ID,
	}}
}
