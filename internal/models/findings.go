package models

import "time"

// Severity represents the impact level of a finding.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// SeverityForRisk maps an exposure risk level onto the finding severity scale.
func SeverityForRisk(level RiskLevel) Severity {
	switch level {
	case RiskCritical:
		return SeverityCritical
	case RiskHigh:
		return SeverityHigh
	case RiskMedium:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// ResourceType identifies the kind of cloud resource a finding refers to.
type ResourceType string

const (
	ResourceS3Bucket      ResourceType = "S3_BUCKET"
	ResourceSQSQueue      ResourceType = "SQS_QUEUE"
	ResourceSecurityGroup ResourceType = "SECURITY_GROUP"
)

// Audit domains. Each has its own rule pack and enforcement block.
const (
	DomainS3      = "s3"
	DomainNetwork = "network"
	DomainSQS     = "sqs"
)

// Finding is a single detected exposure issue.
// It is the atomic output unit of the rule engine.
type Finding struct {
	ID             string         `json:"id"`
	RuleID         string         `json:"rule_id"`
	ResourceID     string         `json:"resource_id"`
	ResourceType   ResourceType   `json:"resource_type"`
	Region         string         `json:"region"`
	AccountID      string         `json:"account_id"`
	Profile        string         `json:"profile"`
	Domain         string         `json:"domain"`
	Severity       Severity       `json:"severity"`
	Explanation    string         `json:"explanation"`
	Recommendation string         `json:"recommendation"`
	DetectedAt     time.Time      `json:"detected_at"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// AuditSummary aggregates counts across all findings and verdicts.
type AuditSummary struct {
	TotalFindings    int `json:"total_findings"`
	CriticalFindings int `json:"critical_findings"`
	HighFindings     int `json:"high_findings"`
	MediumFindings   int `json:"medium_findings"`
	LowFindings      int `json:"low_findings"`

	// Exposure folds bucket and queue verdicts.
	Exposure ExposureSummary `json:"exposure"`

	// OpenIngressRules counts flagged security-group rules across all groups.
	OpenIngressRules int `json:"open_ingress_rules"`
}

// AuditReport is the top-level output of any audit run.
type AuditReport struct {
	ReportID       string                 `json:"report_id"`
	GeneratedAt    time.Time              `json:"generated_at"`
	AuditType      string                 `json:"audit_type"`
	Profile        string                 `json:"profile"`
	AccountID      string                 `json:"account_id"`
	Regions        []string               `json:"regions"`
	Summary        AuditSummary           `json:"summary"`
	Findings       []Finding              `json:"findings"`
	Verdicts       []ExposureVerdict      `json:"verdicts,omitempty"`
	SecurityGroups []SecurityGroupVerdict `json:"security_groups,omitempty"`
	MessageTests   []MessageTestResult    `json:"message_tests,omitempty"`
	Metadata       map[string]any         `json:"metadata,omitempty"`
}
