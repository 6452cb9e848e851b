package engine

import (
	"sort"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
	"github.com/pankaj-dahiya-devops/secops-audit/internal/policy"
)

// sortFindings sorts findings in-place: severity descending (CRITICAL first),
// then resource ID and rule ID so output is stable across runs.
func sortFindings(findings []models.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		ri := policy.SeverityRank(findings[i].Severity)
		rj := policy.SeverityRank(findings[j].Severity)
		if ri != rj {
			return ri > rj
		}
		if findings[i].ResourceID != findings[j].ResourceID {
			return findings[i].ResourceID < findings[j].ResourceID
		}
		return findings[i].RuleID < findings[j].RuleID
	})
}

// computeSummary counts findings per severity level.
func computeSummary(findings []models.Finding) models.AuditSummary {
	var s models.AuditSummary
	s.TotalFindings = len(findings)
	for _, f := range findings {
		switch f.Severity {
		case models.SeverityCritical:
			s.CriticalFindings++
		case models.SeverityHigh:
			s.HighFindings++
		case models.SeverityMedium:
			s.MediumFindings++
		case models.SeverityLow:
			s.LowFindings++
		}
	}
	return s
}

// EnforcedDomains returns the domains whose findings in report trigger the
// policy's fail_on_severity. Callers exit non-zero when the list is
// non-empty. Enforcement is not an error.
func EnforcedDomains(report *models.AuditReport, cfg *policy.PolicyConfig) []string {
	if report == nil || cfg == nil {
		return nil
	}
	byDomain := make(map[string][]models.Finding)
	for _, f := range report.Findings {
		byDomain[f.Domain] = append(byDomain[f.Domain], f)
	}

	var enforced []string
	for _, d := range []string{models.DomainS3, models.DomainNetwork, models.DomainSQS} {
		if policy.ShouldFail(d, byDomain[d], cfg) {
			enforced = append(enforced, d)
		}
	}
	return enforced
}
