// Package ckb integrates the collaborative knowledge base, a pure
// side-channel consulted for mitigation intelligence on known attacks.
package ckb

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/argus-sec/argus/internal/logger"
)

// knownAttacks is the vocabulary the knowledge base understands. Submitted
// threat names are matched against it by similarity.
var knownAttacks = []string{
	"ntp_dos",
	"pfcf_dos",
	"dns_reflection_amplification",
	"hello_world",
	"ddos_amplification",
	"dns_amplification",
	"ddos_download_link",
	"ddos_downlink",
	"data_poisoning",
	"multidomain",
	"mitm",
	"nf_exposure",
	"signaling_pfcp",
	"poisoning_and_amplification",
	"network_exposure",
}

const similarityCutoff = 0.3

// Client posts attack lookups to the knowledge base. Disabled with no URL.
type Client struct {
	url        string
	enabled    bool
	httpClient *http.Client
}

// New builds the knowledge-base client.
func New(url string) *Client {
	c := &Client{
		url:        strings.TrimRight(url, "/"),
		httpClient: &http.Client{Timeout: 2 * time.Second},
	}
	if url != "" {
		c.enabled = true
	} else {
		logger.Log().Info("knowledge base integration is disabled")
	}
	return c
}

// ClosestAttack returns the known attack most similar to the given name, or
// "hello_world" when nothing clears the similarity cutoff.
func (c *Client) ClosestAttack(name string) string {
	best := ""
	bestScore := similarityCutoff
	for _, attack := range knownAttacks {
		if score := similarity(name, attack); score >= bestScore {
			best = attack
			bestScore = score
		}
	}
	if best == "" {
		logger.WithField("name", name).Debug("no similar known attack, using default")
		return "hello_world"
	}
	return best
}

// Query sends a best-effort mitigation lookup for the threat name. Failures
// are logged and otherwise ignored; the pipeline never depends on the answer.
func (c *Client) Query(attackName string) {
	body, _ := json.Marshal(map[string]string{"attack_name": c.ClosestAttack(attackName)})

	if !c.enabled {
		logger.WithField("request", string(body)).Debug("knowledge base disabled, query logged")
		return
	}

	resp, err := c.httpClient.Post(c.url+"/mitigations", "application/json", bytes.NewReader(body))
	if err != nil {
		logger.Log().WithError(err).Error("knowledge base query failed")
		return
	}
	defer resp.Body.Close()
	logger.WithField("status", resp.StatusCode).Debug("knowledge base query answered")
}

// similarity is a Levenshtein ratio in [0,1]; 1 means identical strings.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, min(cur[j-1]+1, prev[j-1]+cost))
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
