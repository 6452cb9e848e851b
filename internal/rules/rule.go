package rules

import (
	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
	"github.com/pankaj-dahiya-devops/secops-audit/internal/policy"
)

// RuleContext carries the evaluated verdicts for one profile. It is the sole
// input to Rule.Evaluate; rules must never make network calls or read
// external state.
type RuleContext struct {
	// AccountID is the AWS account being evaluated.
	AccountID string

	// Profile is the AWS profile name for this evaluation run.
	Profile string

	// Verdicts holds bucket and queue exposure verdicts.
	Verdicts []models.ExposureVerdict

	// SecurityGroups holds one verdict per inspected security group.
	SecurityGroups []models.SecurityGroupVerdict

	// Policy holds the active PolicyConfig for parameter overrides. May be nil
	// when no policy file is loaded; rules must treat nil as "use defaults".
	Policy *policy.PolicyConfig
}

// Rule is a single deterministic exposure rule.
// Rules must be stateless and safe to call concurrently.
type Rule interface {
	// ID returns the unique, stable identifier for this rule (e.g. "SQS_UNENCRYPTED").
	ID() string

	// Name returns a short human-readable rule name.
	Name() string

	// Evaluate inspects the provided context and returns zero or more findings.
	Evaluate(ctx RuleContext) []models.Finding
}

// RuleRegistry is the rule set of one audit domain.
type RuleRegistry interface {
	Register(rule Rule)
	Lookup(id string) (Rule, bool)
	// IDs lists rule IDs in registration order.
	IDs() []string
	EvaluateAll(ctx RuleContext) []models.Finding
}
