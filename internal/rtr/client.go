// Package rtr integrates the enforcement system that applies mitigation
// workflows to network infrastructure.
package rtr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/argus-sec/argus/internal/archive"
	"github.com/argus-sec/argus/internal/logger"
	"github.com/argus-sec/argus/internal/metrics"
	"github.com/argus-sec/argus/internal/models"
	"github.com/argus-sec/argus/internal/recommender"
)

// Client dispatches workflows over the enforcement API. The service expects a
// one-time register+login handshake; the bearer token is reused until close
// to its expiry. Without credentials the client stays unauthenticated and
// workflows go to the log instead, consistent with the compliance fail-open
// policy.
type Client struct {
	url      string
	username string
	password string
	email    string
	enabled  bool

	mu       sync.Mutex
	token    string
	tokenExp time.Time

	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker
	recommender *recommender.Recommender
	archive     *archive.Service
}

// Workflow is the record handed to the enforcement system.
type Workflow struct {
	Command        string            `json:"command"`
	IntentType     string            `json:"intent_type"`
	Threat         string            `json:"threat"`
	AttackedHost   string            `json:"attacked_host"`
	MitigationHost string            `json:"mitigation_host"`
	Action         WorkflowAction    `json:"action"`
	Duration       int               `json:"duration"`
	IntentID       string            `json:"intent_id"`
}

// WorkflowAction carries the mitigation name and its resolved fields.
type WorkflowAction struct {
	Name   string            `json:"name"`
	Fields map[string]string `json:"fields"`
}

// New builds the enforcement client. Enabled only when URL and credentials
// are all configured.
func New(rawURL, username, password, email string, rec *recommender.Recommender, arc *archive.Service) *Client {
	c := &Client{
		url:         strings.TrimRight(rawURL, "/"),
		username:    username,
		password:    password,
		email:       email,
		recommender: rec,
		archive:     arc,
		httpClient:  &http.Client{Timeout: 2 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "enforcement",
			Timeout: 30 * time.Second,
		}),
	}
	c.enabled = rawURL != "" && username != "" && password != ""
	if !c.enabled {
		logger.Log().Info("enforcement integration is disabled, workflows will be logged")
	}
	return c
}

// Connect performs the registration and login handshake, retrying with
// exponential backoff. A registration conflict is fine: the account already
// exists from an earlier run.
func (c *Client) Connect() error {
	if !c.enabled {
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	if err := backoff.Retry(c.register, policy); err != nil {
		return fmt.Errorf("enforcement registration: %w", err)
	}

	policy = backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	if err := backoff.Retry(c.login, policy); err != nil {
		return fmt.Errorf("enforcement login: %w", err)
	}
	return nil
}

func (c *Client) register() error {
	body, _ := json.Marshal(map[string]string{
		"username": c.username,
		"email":    c.email,
		"password": c.password,
	})
	resp, err := c.httpClient.Post(c.url+"/register", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("registration returned status %d", resp.StatusCode)
	}
	// 4xx means the account exists already; keep going to login.
	logger.WithField("status", resp.StatusCode).Debug("enforcement registration answered")
	return nil
}

func (c *Client) login() error {
	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)
	form.Set("scope", "")
	form.Set("client_id", "")
	form.Set("client_secret", "")

	resp, err := c.httpClient.Post(c.url+"/login", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login returned status %d", resp.StatusCode)
	}

	var answer struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return fmt.Errorf("decode login answer: %w", err)
	}
	if answer.AccessToken == "" {
		return fmt.Errorf("login answer carried no access token")
	}

	c.mu.Lock()
	c.token = answer.AccessToken
	c.tokenExp = tokenExpiry(answer.AccessToken)
	c.mu.Unlock()
	logger.Log().Info("enforcement login succeeded")
	return nil
}

// tokenExpiry reads the exp claim without verifying the signature; the token
// is the service's to verify, we only need to know when to refresh it.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return time.Now().Add(15 * time.Minute)
}

func (c *Client) ensureToken() {
	c.mu.Lock()
	expired := c.token == "" || time.Until(c.tokenExp) < 30*time.Second
	c.mu.Unlock()
	if expired {
		if err := c.login(); err != nil {
			logger.Log().WithError(err).Warn("enforcement token refresh failed")
		}
	}
}

// Enforce builds the workflow for the validated pair and dispatches it. The
// returned error means the dispatch failed and the caller should leave the
// threat eligible for retry on the next tick.
func (c *Client) Enforce(intent *models.Intent, m *models.MitigationAction) error {
	workflow := c.buildWorkflow(intent, m)

	if !c.enabled {
		raw, _ := json.MarshalIndent(workflow, "", "  ")
		logger.WithField("workflow", string(raw)).Info("enforcement disabled, workflow logged")
		c.record(workflow, "logged")
		return nil
	}

	c.ensureToken()

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(workflow)
	})
	if err != nil {
		c.record(workflow, "failed")
		return fmt.Errorf("send workflow: %w", err)
	}

	switch status := result.(int); {
	case status == http.StatusOK || status == http.StatusCreated:
		logger.WithField("intent_id", workflow.IntentID).Info("workflow dispatched")
		metrics.IncWorkflowDispatched()
		c.record(workflow, "sent")
		return nil
	case status == http.StatusBadRequest:
		// The enforcement point already runs this workflow.
		logger.WithField("intent_id", workflow.IntentID).Info("workflow already exists")
		c.record(workflow, "exists")
		return nil
	default:
		c.record(workflow, "failed")
		return fmt.Errorf("workflow dispatch returned status %d", status)
	}
}

func (c *Client) post(workflow Workflow) (int, error) {
	raw, err := json.Marshal(workflow)
	if err != nil {
		return 0, fmt.Errorf("marshal workflow: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, c.url+"/actions", bytes.NewReader(raw))
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// buildWorkflow resolves hosts and assembles the enforcement record. A
// prevention response to the downlink threat always targets the user-plane
// panel endpoint instead of the intent's literal host.
func (c *Client) buildWorkflow(intent *models.Intent, m *models.MitigationAction) Workflow {
	fields := make(map[string]string, len(m.Parameters)+1)
	for k, v := range m.Parameters {
		fields[k] = v
	}
	// The enforcement point wants the duration inside the action fields too.
	fields["duration"] = fmt.Sprintf("%d", intent.Duration)

	attackedHost := ""
	if m.Category == models.CategoryPrevention && intent.Threat == "ddos_downlink" {
		attackedHost = c.recommender.ResolveHostname("ue_panel")
	} else if len(intent.Hosts) > 0 {
		attackedHost = intent.Hosts[0]
	}

	return Workflow{
		Command:        "add",
		IntentType:     string(intent.Category),
		Threat:         intent.Threat,
		AttackedHost:   attackedHost,
		MitigationHost: c.recommender.MitigationHost(intent, m),
		Action:         WorkflowAction{Name: m.Name, Fields: fields},
		Duration:       intent.Duration,
		IntentID:       uuid.NewString(),
	}
}

func (c *Client) record(w Workflow, outcome string) {
	fieldsJSON, _ := json.Marshal(w.Action.Fields)
	c.archive.RecordWorkflow(&models.WorkflowRecord{
		CorrelationID:  w.IntentID,
		IntentID:       w.IntentID,
		Category:       w.IntentType,
		Threat:         w.Threat,
		AttackedHost:   w.AttackedHost,
		MitigationHost: w.MitigationHost,
		Action:         w.Action.Name,
		FieldsJSON:     string(fieldsJSON),
		Duration:       w.Duration,
		Outcome:        outcome,
	})
}
