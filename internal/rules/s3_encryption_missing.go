package rules

import (
	"fmt"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
)

// S3EncryptionMissingRule flags buckets without default server-side encryption.
type S3EncryptionMissingRule struct{}

func (r S3EncryptionMissingRule) ID() string   { return "S3_ENCRYPTION_MISSING" }
func (r S3EncryptionMissingRule) Name() string { return "S3 Bucket Without Default Encryption" }

func (r S3EncryptionMissingRule) Evaluate(ctx RuleContext) []models.Finding {
	var findings []models.Finding
	for _, v := range verdictsOf(ctx, models.ResourceS3Bucket) {
		if v.Encryption.Enabled {
			continue
		}
		findings = append(findings, verdictFinding(r, ctx, v,
			fmt.Sprintf("S3 bucket %s has no default server-side encryption configured.", v.ResourceName),
			"Enable default bucket encryption with SSE-S3 or, for sensitive data, SSE-KMS.",
		))
	}
	return findings
}
