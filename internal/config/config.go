package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config captures runtime configuration sourced from environment variables.
type Config struct {
	Environment  string
	HTTPPort     string
	DatabasePath string
	CatalogPath  string

	// Reconciliation loop
	TickInterval  time.Duration
	ThreatTimeout time.Duration

	// Digital twin evaluation
	KPIThreshold float64

	// Compliance tuning
	TuneIncrement  int
	TuneMaxRetries int

	// Collaborator endpoints. An empty URL disables the integration.
	ComplianceURL  string
	TwinURL        string
	KnowledgeURL   string
	EnforcementURL string

	// Enforcement credentials for the register/login handshake.
	EnforcementUser     string
	EnforcementPassword string
	EnforcementEmail    string

	// Alarm side-channel (shoutrrr URL, e.g. discord://token@id).
	AlarmURL string

	// Archive rows older than this are pruned by the maintenance job.
	ArchiveRetention time.Duration

	// Host resolution
	ResolveHostnames bool
	HostOverrides    map[string]string
}

// Load reads env vars and falls back to defaults so the orchestrator can boot
// with zero configuration (all integrations disabled, dev fallbacks active).
func Load() (Config, error) {
	cfg := Config{
		Environment:  getEnv("ARGUS_ENV", "development"),
		HTTPPort:     getEnv("ARGUS_HTTP_PORT", "8001"),
		DatabasePath: getEnv("ARGUS_DB_PATH", filepath.Join("data", "argus.db")),
		CatalogPath:  getEnv("ARGUS_CATALOG_PATH", ""),

		TickInterval:  getEnvDuration("ARGUS_TICK_INTERVAL", 5*time.Second),
		ThreatTimeout: getEnvDuration("ARGUS_THREAT_TIMEOUT", 2*time.Minute),

		KPIThreshold: getEnvFloat("ARGUS_KPI_THRESHOLD", 0.5),

		TuneIncrement:  getEnvInt("ARGUS_TUNE_INCREMENT", 1),
		TuneMaxRetries: getEnvInt("ARGUS_TUNE_MAX_RETRIES", 5),

		ComplianceURL:  getEnv("ARGUS_COMPLIANCE_URL", ""),
		TwinURL:        getEnv("ARGUS_TWIN_URL", ""),
		KnowledgeURL:   getEnv("ARGUS_KNOWLEDGE_URL", ""),
		EnforcementURL: getEnv("ARGUS_ENFORCEMENT_URL", ""),

		EnforcementUser:     getEnv("ARGUS_ENFORCEMENT_USER", ""),
		EnforcementPassword: getEnv("ARGUS_ENFORCEMENT_PASSWORD", ""),
		EnforcementEmail:    getEnv("ARGUS_ENFORCEMENT_EMAIL", ""),

		AlarmURL: getEnv("ARGUS_ALARM_URL", ""),

		ArchiveRetention: getEnvDuration("ARGUS_ARCHIVE_RETENTION", 90*24*time.Hour),

		ResolveHostnames: getEnvBool("ARGUS_RESOLVE_HOSTNAMES", false),
		HostOverrides:    parsePairs(getEnv("ARGUS_HOST_OVERRIDES", "")),
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return Config{}, fmt.Errorf("ensure data directory: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}

	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}

	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}

	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			return d
		}
	}

	return fallback
}

// parsePairs turns "key=value,key2=value2" into a map. Malformed entries are
// skipped rather than rejected so a typo never prevents boot.
func parsePairs(raw string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			continue
		}
		out[parts[0]] = parts[1]
	}

	return out
}
