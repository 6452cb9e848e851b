package rules

import (
	"fmt"
	"strings"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
)

// S3PublicAccessRule flags buckets readable by anyone, whether through an
// AllUsers/AuthenticatedUsers ACL grant, a public policy status, or a policy
// statement with a wildcard principal.
type S3PublicAccessRule struct{}

func (r S3PublicAccessRule) ID() string   { return "S3_PUBLIC_ACCESS" }
func (r S3PublicAccessRule) Name() string { return "S3 Bucket Publicly Accessible" }

// Evaluate returns one finding per bucket whose verdict reports anonymous access.
func (r S3PublicAccessRule) Evaluate(ctx RuleContext) []models.Finding {
	var findings []models.Finding
	for _, v := range verdictsOf(ctx, models.ResourceS3Bucket) {
		if !v.AnonymousAccess {
			continue
		}
		var via []string
		if v.PublicByACL {
			via = append(via, "ACL")
		}
		if v.PublicByPolicy == models.PolicyPublic {
			via = append(via, "bucket policy")
		}
		if len(via) == 0 {
			via = append(via, "policy statement")
		}
		f := verdictFinding(r, ctx, v,
			fmt.Sprintf("S3 bucket %s is publicly accessible via %s.", v.ResourceName, strings.Join(via, " and ")),
			"Remove AllUsers/AuthenticatedUsers grants, drop wildcard principals from the bucket policy and enable Block Public Access.",
		)
		f.Metadata["public_by_acl"] = v.PublicByACL
		f.Metadata["public_by_policy"] = string(v.PublicByPolicy)
		f.Metadata["owner"] = v.Owner
		findings = append(findings, f)
	}
	return findings
}
