// Package config centralizes migration configuration. Tunables live outside
// the code and are sourced from environment variables (12-factor friendly),
// with CLI flags layered on top by cmd/shopmigrate so that `-help` shows all
// knobs and their effective defaults.
//
// Typical usage:
//
//	cfg := config.Default(os.Getenv) // env-seeded defaults
//	// cmd binds flags onto cfg fields, then:
//	if err := cfg.Validate(); err != nil { ... }
//
// For tests, supply a getenv func backed by a map to stay hermetic.
package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config holds all process configuration. All fields are plain values so the
// struct can be safely copied after construction.
type Config struct {
	// Source describes the legacy store being migrated from.
	SourceDriver string // "mysql", "sqlserver", or "sqlite"
	SourceDSN    string

	// Target describes the catalog store being migrated into.
	TargetDriver string // "postgres" or "sqlite"
	TargetDSN    string

	// TenantID scopes every written row; the target schema is multi-tenant
	// and the legacy store is not.
	TenantID int64

	// Artifact locations.
	ArtifactsDir string // correlation id-map JSON files
	SkippedDir   string // per-phase skipped-row CSV logs

	// Grouping policy for the products/variants phases.
	Strategy         string // "exact", "basename", or "composite"
	SentinelCategory string // composite strategy trigger value
	Terminals        string // comma-separated terminal axis tokens

	// Batch window. Limit <= 0 reads everything.
	Limit  int
	Offset int

	// Metrics push target; empty disables pushing.
	PushGateway string
	MetricsJob  string
}

// Default builds a Config seeded from environment variables via getenv, with
// hard defaults where the variable is unset. cmd/shopmigrate layers CLI flags
// on top, so precedence ends up: flag > env > default.
func Default(getenv func(string) string) *Config {
	envOr := func(k, d string) string {
		if v := getenv(k); v != "" {
			return v
		}
		return d
	}
	intEnvOr := func(k string, d int) int {
		if v := getenv(k); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				return i
			}
		}
		return d
	}
	return &Config{
		SourceDriver:     envOr("SOURCE_DRIVER", "mysql"),
		SourceDSN:        getenv("SOURCE_DSN"),
		TargetDriver:     envOr("TARGET_DRIVER", "postgres"),
		TargetDSN:        getenv("TARGET_DSN"),
		TenantID:         int64(intEnvOr("TENANT_ID", 1)),
		ArtifactsDir:     envOr("ARTIFACTS_DIR", "./artifacts"),
		SkippedDir:       envOr("SKIPPED_DIR", "./skipped"),
		Strategy:         envOr("GROUP_STRATEGY", "basename"),
		SentinelCategory: envOr("SENTINEL_CATEGORY", "Wedding rings"),
		Terminals:        envOr("TERMINAL_TOKENS", "made to measure"),
		Limit:            intEnvOr("LIMIT", 0),
		Offset:           intEnvOr("OFFSET", 0),
		PushGateway:      getenv("PUSHGATEWAY_URL"),
		MetricsJob:       envOr("METRICS_JOB", "shopmigrate"),
	}
}

// TerminalTokens splits the Terminals field into its token list.
func (c *Config) TerminalTokens() []string {
	var out []string
	for _, t := range strings.Split(c.Terminals, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Validate rejects configurations that would fail mid-run: unknown drivers,
// missing DSNs, unknown grouping strategy.
func (c *Config) Validate() error {
	switch c.SourceDriver {
	case "mysql", "sqlserver", "mssql", "sqlite":
	default:
		return fmt.Errorf("unsupported source driver %q", c.SourceDriver)
	}
	switch c.TargetDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported target driver %q", c.TargetDriver)
	}
	if c.SourceDSN == "" {
		return fmt.Errorf("source DSN is required (flag --source-dsn or env SOURCE_DSN)")
	}
	if c.TargetDSN == "" {
		return fmt.Errorf("target DSN is required (flag --target-dsn or env TARGET_DSN)")
	}
	switch strings.ToLower(strings.TrimSpace(c.Strategy)) {
	case "exact", "basename", "composite":
	default:
		return fmt.Errorf("unknown grouping strategy %q", c.Strategy)
	}
	if c.TenantID <= 0 {
		return fmt.Errorf("tenant ID must be positive, got %d", c.TenantID)
	}
	return nil
}
