package policy

import (
	"strings"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
)

// ApplyPolicy returns the findings of domain that survive cfg. A nil cfg
// keeps findings unchanged; the result is never nil otherwise.
func ApplyPolicy(findings []models.Finding, domain string, cfg *PolicyConfig) []models.Finding {
	if cfg == nil {
		return findings
	}
	floor, enabled := domainFloor(cfg, domain)
	kept := make([]models.Finding, 0, len(findings))
	if !enabled {
		return kept
	}
	for _, f := range findings {
		if f, ok := cfg.resolveFinding(f); ok && severityRank[f.Severity] >= floor {
			kept = append(kept, f)
		}
	}
	return kept
}

// domainFloor returns the min_severity rank of domain (0 when unset) and
// whether the domain is enabled. Domains absent from the policy are enabled.
func domainFloor(cfg *PolicyConfig, domain string) (int, bool) {
	d, ok := cfg.Domains[domain]
	if !ok {
		return 0, true
	}
	if !d.Enabled {
		return 0, false
	}
	return severityRank[normalizeSeverity(d.MinSeverity)], true
}

// resolveFinding applies the rules block: a disabled rule drops f and a
// severity override replaces its severity.
func (cfg *PolicyConfig) resolveFinding(f models.Finding) (models.Finding, bool) {
	rc, ok := cfg.Rules[f.RuleID]
	if !ok {
		return f, true
	}
	if rc.Enabled != nil && !*rc.Enabled {
		return f, false
	}
	if rc.Severity != "" {
		f.Severity = normalizeSeverity(rc.Severity)
	}
	return f, true
}

func normalizeSeverity(s string) models.Severity {
	return models.Severity(strings.ToUpper(strings.TrimSpace(s)))
}
