package rules

import (
	"fmt"
	"strings"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/exposure"
	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
)

// ResourcePolicyInvalidRule flags buckets and queues whose resource policy
// could not be read, either because the document is malformed or because the
// lookup failed. Such a resource has not been fully evaluated. A zero Type
// inspects every verdict.
type ResourcePolicyInvalidRule struct {
	Type models.ResourceType
}

func (r ResourcePolicyInvalidRule) ID() string   { return "RESOURCE_POLICY_INVALID" }
func (r ResourcePolicyInvalidRule) Name() string { return "Resource Policy Could Not Be Evaluated" }

func (r ResourcePolicyInvalidRule) Evaluate(ctx RuleContext) []models.Finding {
	var findings []models.Finding
	for _, v := range ctx.Verdicts {
		if r.Type != "" && v.ResourceType != r.Type {
			continue
		}
		var problems []string
		for _, issue := range v.PolicyIssues {
			if issue == exposure.IssueInvalidJSON || issue == exposure.IssuePolicyUnavailable {
				problems = append(problems, issue)
			}
		}
		if len(problems) == 0 {
			continue
		}
		f := verdictFinding(r, ctx, v,
			fmt.Sprintf("Policy of %s could not be evaluated: %s.", v.ResourceName, strings.Join(problems, "; ")),
			"Check the policy document syntax and that the audit role may read resource policies.",
		)
		if f.Severity == models.SeverityLow {
			f.Severity = models.SeverityMedium
		}
		f.Metadata["issues"] = problems
		findings = append(findings, f)
	}
	return findings
}
