// Package s3 provides the S3 exposure rule pack.
//
// Convention: every rule pack lives in internal/rulepacks/<domain>/pack.go
// and exposes a single New() func returning []rules.Rule.
package s3

import (
	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
	"github.com/pankaj-dahiya-devops/secops-audit/internal/rules"
)

// New returns the default S3 exposure rule pack.
func New() []rules.Rule {
	return []rules.Rule{
		rules.S3PublicAccessRule{},                                     // ACL, policy status or wildcard principal
		rules.S3EncryptionMissingRule{},                                // no default encryption
		rules.ResourcePolicyInvalidRule{Type: models.ResourceS3Bucket}, // malformed or unreadable bucket policy
	}
}
