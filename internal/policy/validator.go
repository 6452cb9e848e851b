package policy

import (
	"fmt"
	"strings"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
)

// validDomains is the set of recognised audit domain names.
var validDomains = map[string]struct{}{
	models.DomainS3:      {},
	models.DomainNetwork: {},
	models.DomainSQS:     {},
}

// validSeverities is the set of allowed severity strings (upper-case canonical form).
var validSeverities = map[string]struct{}{
	"CRITICAL": {},
	"HIGH":     {},
	"MEDIUM":   {},
	"LOW":      {},
	"INFO":     {},
}

// Validate checks cfg for semantic correctness and returns all validation errors
// found. An empty slice means the config is valid.
//
// Checks performed:
//   - version must be 1
//   - domain and enforcement names must be one of: s3, network, sqs
//   - severities (min_severity, rule severity, fail_on_severity) must be valid
//   - rule IDs must appear in availableRuleIDs
//   - the scoring table must keep the bands ordered and weights non-negative
//   - watched ports must lie in 0..65535
//
// All errors are collected before returning; Validate never stops at the first error.
func Validate(cfg *PolicyConfig, availableRuleIDs []string) []error {
	if cfg == nil {
		return []error{fmt.Errorf("policy config is nil")}
	}

	knownIDs := make(map[string]struct{}, len(availableRuleIDs))
	for _, id := range availableRuleIDs {
		knownIDs[id] = struct{}{}
	}

	var errs []error

	if cfg.Version != 1 {
		errs = append(errs, fmt.Errorf("version: unsupported value %d; must be 1", cfg.Version))
	}

	for name, dcfg := range cfg.Domains {
		if _, ok := validDomains[name]; !ok {
			errs = append(errs, fmt.Errorf("domains.%s: unknown domain; valid values: s3, network, sqs", name))
		}
		if dcfg.MinSeverity != "" && !isSeverity(dcfg.MinSeverity) {
			errs = append(errs, fmt.Errorf("domains.%s.min_severity: invalid value %q; valid values: CRITICAL, HIGH, MEDIUM, LOW, INFO", name, dcfg.MinSeverity))
		}
	}

	for ruleID, rcfg := range cfg.Rules {
		if _, ok := knownIDs[ruleID]; !ok {
			errs = append(errs, fmt.Errorf("rules.%s: unknown rule ID", ruleID))
		}
		if rcfg.Severity != "" && !isSeverity(rcfg.Severity) {
			errs = append(errs, fmt.Errorf("rules.%s.severity: invalid value %q; valid values: CRITICAL, HIGH, MEDIUM, LOW, INFO", ruleID, rcfg.Severity))
		}
	}

	for domain, enfCfg := range cfg.Enforcement {
		if _, ok := validDomains[domain]; !ok {
			errs = append(errs, fmt.Errorf("enforcement.%s: unknown domain; valid values: s3, network, sqs", domain))
		}
		if enfCfg.FailOnSeverity != "" && !isSeverity(enfCfg.FailOnSeverity) {
			errs = append(errs, fmt.Errorf("enforcement.%s.fail_on_severity: invalid value %q; valid values: CRITICAL, HIGH, MEDIUM, LOW, INFO", domain, enfCfg.FailOnSeverity))
		}
	}

	if err := ScorerFromPolicy(cfg).Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scoring: %w", err))
	}

	for i, p := range cfg.Network.WatchedPorts {
		if p < 0 || p > 65535 {
			errs = append(errs, fmt.Errorf("network.watched_ports[%d]: port %d out of range", i, p))
		}
	}

	return errs
}

func isSeverity(s string) bool {
	_, ok := validSeverities[strings.ToUpper(s)]
	return ok
}
