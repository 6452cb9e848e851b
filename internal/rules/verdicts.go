package rules

import (
	"fmt"
	"time"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
)

// verdictsOf returns the verdicts of one resource type, in input order.
func verdictsOf(ctx RuleContext, rt models.ResourceType) []models.ExposureVerdict {
	var out []models.ExposureVerdict
	for _, v := range ctx.Verdicts {
		if v.ResourceType == rt {
			out = append(out, v)
		}
	}
	return out
}

func domainOf(rt models.ResourceType) string {
	switch rt {
	case models.ResourceS3Bucket:
		return models.DomainS3
	case models.ResourceSQSQueue:
		return models.DomainSQS
	default:
		return models.DomainNetwork
	}
}

// verdictFinding builds the finding shared by all verdict-driven rules.
// Severity follows the verdict's risk level.
func verdictFinding(r Rule, ctx RuleContext, v models.ExposureVerdict, explanation, recommendation string) models.Finding {
	return models.Finding{
		ID:             fmt.Sprintf("%s-%s", r.ID(), v.ResourceName),
		RuleID:         r.ID(),
		ResourceID:     v.ResourceID,
		ResourceType:   v.ResourceType,
		Region:         v.Region,
		AccountID:      ctx.AccountID,
		Profile:        ctx.Profile,
		Domain:         domainOf(v.ResourceType),
		Severity:       models.SeverityForRisk(v.RiskLevel),
		Explanation:    explanation,
		Recommendation: recommendation,
		DetectedAt:     time.Now().UTC(),
		Metadata: map[string]any{
			"resource_name": v.ResourceName,
			"risk_score":    v.RiskScore,
			"risk_level":    string(v.RiskLevel),
			"encryption":    v.Encryption.Type(),
		},
	}
}
