package engine

import (
	"context"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
)

// AuditType identifies the category of audit to run.
type AuditType string

const (
	AuditTypeS3      AuditType = "s3"
	AuditTypeNetwork AuditType = "network"
	AuditTypeSQS     AuditType = "sqs"
	AuditTypeAll     AuditType = "all"
)

// Domains returns the audit domains covered by t in report order, or nil for
// an unknown type.
func (t AuditType) Domains() []string {
	switch t {
	case AuditTypeS3:
		return []string{models.DomainS3}
	case AuditTypeNetwork:
		return []string{models.DomainNetwork}
	case AuditTypeSQS:
		return []string{models.DomainSQS}
	case AuditTypeAll:
		return []string{models.DomainS3, models.DomainNetwork, models.DomainSQS}
	default:
		return nil
	}
}

// AuditOptions configures a single audit run.
// It is the sole input to Engine.RunAudit.
type AuditOptions struct {
	// AuditType selects the domains to audit.
	AuditType AuditType

	// Profile is the named AWS profile to use. Empty means the default profile.
	Profile string

	// AllProfiles, when true, runs the audit across every configured AWS profile.
	AllProfiles bool

	// Regions is an explicit list of AWS regions to audit.
	// When empty the engine discovers and iterates all active regions.
	Regions []string

	// QueueURLs restricts the SQS audit to these queues. When empty every
	// queue in the audited regions is inspected.
	QueueURLs []string

	// TestMessages sends and receives a test message on every audited queue.
	// It requires an engine built with WithQueueTester.
	TestMessages bool
}

// Engine is the central orchestration interface.
// It coordinates collection, evaluation, rule execution, and policy
// filtering, returning a fully populated AuditReport.
//
// Engine must not call AWS SDK clients directly; it delegates to the
// provider, collector and rule interfaces.
type Engine interface {
	RunAudit(ctx context.Context, opts AuditOptions) (*models.AuditReport, error)
}
