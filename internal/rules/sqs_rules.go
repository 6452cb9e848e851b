package rules

import (
	"fmt"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
	"github.com/pankaj-dahiya-devops/secops-audit/internal/policy"
)

// SQSAnonymousAccessRule flags queues whose policy grants access to "*".
type SQSAnonymousAccessRule struct{}

func (r SQSAnonymousAccessRule) ID() string   { return "SQS_ANONYMOUS_ACCESS" }
func (r SQSAnonymousAccessRule) Name() string { return "SQS Queue Allows Anonymous Access" }

func (r SQSAnonymousAccessRule) Evaluate(ctx RuleContext) []models.Finding {
	var findings []models.Finding
	for _, v := range verdictsOf(ctx, models.ResourceSQSQueue) {
		if !v.AnonymousAccess {
			continue
		}
		findings = append(findings, verdictFinding(r, ctx, v,
			fmt.Sprintf("SQS queue %s has a policy statement with Principal \"*\".", v.ResourceName),
			"Remove anonymous access immediately; grant specific account or role principals instead.",
		))
	}
	return findings
}

// SQSPublicActionRule flags queues whose policy allows every action ("*" or "sqs:*").
type SQSPublicActionRule struct{}

func (r SQSPublicActionRule) ID() string   { return "SQS_PUBLIC_ACTION" }
func (r SQSPublicActionRule) Name() string { return "SQS Queue Policy Allows All Actions" }

func (r SQSPublicActionRule) Evaluate(ctx RuleContext) []models.Finding {
	var findings []models.Finding
	for _, v := range verdictsOf(ctx, models.ResourceSQSQueue) {
		if !v.PublicAction {
			continue
		}
		findings = append(findings, verdictFinding(r, ctx, v,
			fmt.Sprintf("SQS queue %s has an Allow statement with a wildcard action.", v.ResourceName),
			"Restrict public access by listing only the actions each principal needs.",
		))
	}
	return findings
}

// SQSBlankPolicyRule flags queues without a resource policy; access then
// depends entirely on the IAM permissions of the caller.
type SQSBlankPolicyRule struct{}

func (r SQSBlankPolicyRule) ID() string   { return "SQS_BLANK_POLICY" }
func (r SQSBlankPolicyRule) Name() string { return "SQS Queue Without Resource Policy" }

func (r SQSBlankPolicyRule) Evaluate(ctx RuleContext) []models.Finding {
	var findings []models.Finding
	for _, v := range verdictsOf(ctx, models.ResourceSQSQueue) {
		if !v.BlankPolicy {
			continue
		}
		findings = append(findings, verdictFinding(r, ctx, v,
			fmt.Sprintf("SQS queue %s has no resource policy; security depends on IAM permissions of accessing principals.", v.ResourceName),
			"Consider adding an explicit resource policy for better control.",
		))
	}
	return findings
}

// SQSUnencryptedRule flags queues without server-side encryption. With the
// rule parameter require_kms set to 1 it also flags queues using
// SQS-managed SSE instead of a KMS key.
type SQSUnencryptedRule struct{}

func (r SQSUnencryptedRule) ID() string   { return "SQS_UNENCRYPTED" }
func (r SQSUnencryptedRule) Name() string { return "SQS Queue Without Encryption" }

func (r SQSUnencryptedRule) Evaluate(ctx RuleContext) []models.Finding {
	requireKMS := policy.GetThreshold(r.ID(), "require_kms", 0, ctx.Policy) >= 1

	var findings []models.Finding
	for _, v := range verdictsOf(ctx, models.ResourceSQSQueue) {
		switch v.Encryption.Type() {
		case "KMS":
			continue
		case "SSE":
			if !requireKMS {
				continue
			}
			f := verdictFinding(r, ctx, v,
				fmt.Sprintf("SQS queue %s uses SQS-managed SSE rather than a customer KMS key.", v.ResourceName),
				"Consider upgrading to KMS encryption for better key management: `secops aws encrypt sqs --kms-key <key> --apply`.",
			)
			if f.Severity == models.SeverityLow {
				f.Severity = models.SeverityMedium
			}
			findings = append(findings, f)
		default:
			findings = append(findings, verdictFinding(r, ctx, v,
				fmt.Sprintf("SQS queue %s has no server-side encryption enabled.", v.ResourceName),
				"Enable server-side encryption immediately: `secops aws encrypt sqs --apply`.",
			))
		}
	}
	return findings
}
