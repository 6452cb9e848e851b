// Package sqs provides the SQS queue exposure rule pack.
package sqs

import (
	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
	"github.com/pankaj-dahiya-devops/secops-audit/internal/rules"
)

// New returns the default SQS exposure rule pack.
func New() []rules.Rule {
	return []rules.Rule{
		rules.SQSAnonymousAccessRule{},
		rules.SQSPublicActionRule{},
		rules.SQSBlankPolicyRule{},
		rules.SQSUnencryptedRule{},
		rules.ResourcePolicyInvalidRule{Type: models.ResourceSQSQueue},
	}
}
