package policy

import "github.com/pankaj-dahiya-devops/secops-audit/internal/exposure"

// PolicyConfig is the parsed form of a secops policy file (version 1).
type PolicyConfig struct {
	Version     int                          `yaml:"version"`
	Domains     map[string]DomainConfig      `yaml:"domains"`
	Rules       map[string]RuleConfig        `yaml:"rules"`
	Enforcement map[string]EnforcementConfig `yaml:"enforcement"`
	Scoring     ScoringConfig                `yaml:"scoring"`
	Network     NetworkConfig                `yaml:"network"`
}

// DomainConfig toggles a whole audit domain. MinSeverity drops findings
// ranked below it.
type DomainConfig struct {
	Enabled     bool   `yaml:"enabled"`
	MinSeverity string `yaml:"min_severity,omitempty"`
}

// RuleConfig overrides a single rule.
type RuleConfig struct {
	Enabled  *bool              `yaml:"enabled,omitempty"`
	Severity string             `yaml:"severity,omitempty"`
	Params   map[string]float64 `yaml:"params,omitempty"`
}

// EnforcementConfig makes the CLI exit non-zero when any finding in the
// domain reaches FailOnSeverity.
type EnforcementConfig struct {
	FailOnSeverity string `yaml:"fail_on_severity"`
}

// ScoringConfig overrides the default risk scoring table. A nil block keeps
// the defaults. LoadPolicy fills keys missing from a block with their
// default values.
type ScoringConfig struct {
	Weights    *exposure.Weights    `yaml:"weights,omitempty"`
	Thresholds *exposure.Thresholds `yaml:"thresholds,omitempty"`
}

// NetworkConfig controls the security-group filter.
type NetworkConfig struct {
	WatchedPorts []int `yaml:"watched_ports,omitempty"`
}
