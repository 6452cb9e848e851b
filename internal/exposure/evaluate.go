package exposure

import (
	"fmt"
	"strings"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
)

// Evaluator builds verdicts from resource descriptors. It holds only
// configuration, so one value may be shared by concurrent callers.
type Evaluator struct {
	Scorer Scorer
	Ports  PortSet
}

// NewEvaluator returns an Evaluator using the default scoring table and
// watched ports.
func NewEvaluator() Evaluator {
	return Evaluator{Scorer: DefaultScorer(), Ports: DefaultWatchedPorts()}
}

// EvaluateBucket classifies a bucket's ACL, policy status and policy
// document. A bucket public by ACL or by policy status counts as allowing
// anonymous access.
func (e Evaluator) EvaluateBucket(b models.BucketDescriptor) (models.ExposureVerdict, error) {
	if err := validateBucket(b); err != nil {
		return models.ExposureVerdict{}, err
	}

	doc := ParsePolicy(b.Policy)
	facts := Facts(doc, models.NewEncryptionState(b.Encryption.Enabled, b.Encryption.KMSKeyID))

	publicByACL := ClassifyGrants(b.Grants)
	publicByPolicy := bucketPolicyPublicity(b, facts.AnonymousAccess)

	issues := policyIssues(doc, facts)
	if b.ACLUnavailable {
		issues = append(issues, IssueACLUnavailable)
	}
	if publicByACL {
		issues = append(issues, IssuePublicACL)
	}
	if publicByPolicy == models.PolicyPublic && b.PolicyStatus != nil {
		issues = append(issues, IssuePublicPolicyStatus)
	}

	facts.AnonymousAccess = facts.AnonymousAccess || publicByACL || publicByPolicy == models.PolicyPublic
	a := e.Scorer.Assess(facts)

	return models.ExposureVerdict{
		ResourceID:      b.Name,
		ResourceName:    b.Name,
		ResourceType:    models.ResourceS3Bucket,
		Region:          "global",
		Owner:           b.Owner,
		Grants:          append([]models.AccessGrant(nil), b.Grants...),
		PublicByACL:     publicByACL,
		PublicByPolicy:  publicByPolicy,
		PolicyState:     b.Policy.State,
		AnonymousAccess: facts.AnonymousAccess,
		PublicAction:    facts.PublicAction,
		BlankPolicy:     facts.BlankPolicy,
		PolicyIssues:    issues,
		Encryption:      facts.Encryption,
		RiskScore:       a.Score,
		RiskLevel:       a.Level,
		RiskFactors:     a.RiskFactors,
		Recommendations: a.Recommendations,
	}, nil
}

// EvaluateQueue classifies a queue's policy document and encryption.
func (e Evaluator) EvaluateQueue(q models.QueueDescriptor) (models.ExposureVerdict, error) {
	if err := validateQueue(q); err != nil {
		return models.ExposureVerdict{}, err
	}

	doc := ParsePolicy(q.Policy)
	facts := Facts(doc, models.NewEncryptionState(q.Encryption.Enabled, q.Encryption.KMSKeyID))
	a := e.Scorer.Assess(facts)

	publicity := models.PolicyNotApplicable
	if q.Policy.State == models.PolicyAttached && !doc.Blank {
		publicity = models.PolicyNotPublic
		if facts.AnonymousAccess {
			publicity = models.PolicyPublic
		}
	}

	name := q.Name
	if name == "" {
		name = QueueNameFromURL(q.URL)
	}

	return models.ExposureVerdict{
		ResourceID:      q.URL,
		ResourceName:    name,
		ResourceType:    models.ResourceSQSQueue,
		Region:          q.Region,
		PublicByPolicy:  publicity,
		PolicyState:     q.Policy.State,
		AnonymousAccess: facts.AnonymousAccess,
		PublicAction:    facts.PublicAction,
		BlankPolicy:     facts.BlankPolicy,
		PolicyIssues:    policyIssues(doc, facts),
		Encryption:      facts.Encryption,
		RiskScore:       a.Score,
		RiskLevel:       a.Level,
		RiskFactors:     a.RiskFactors,
		Recommendations: a.Recommendations,
	}, nil
}

// EvaluateSecurityGroup flags the group's world-open remote access rules and
// plans their remediation.
func (e Evaluator) EvaluateSecurityGroup(sg models.SecurityGroupDescriptor) (models.SecurityGroupVerdict, error) {
	if sg.GroupID == "" {
		return models.SecurityGroupVerdict{}, missing("security group", "group_id")
	}
	for i, r := range sg.Rules {
		if r.RuleID == "" {
			return models.SecurityGroupVerdict{}, missing("security group", fmt.Sprintf("rules[%d].rule_id", i))
		}
	}

	flagged := FilterOpenIngress(sg.Rules, e.Ports)
	for i := range flagged {
		if flagged[i].GroupID == "" {
			flagged[i].GroupID = sg.GroupID
		}
	}
	return models.SecurityGroupVerdict{
		GroupID:      sg.GroupID,
		GroupName:    sg.GroupName,
		Region:       sg.Region,
		RulesChecked: len(sg.Rules),
		Flagged:      flagged,
		Remediations: PlanRemediation(flagged),
	}, nil
}

// QueueNameFromURL returns the last path segment of a queue URL.
func QueueNameFromURL(url string) string {
	url = strings.TrimRight(url, "/")
	if i := strings.LastIndex(url, "/"); i >= 0 {
		return url[i+1:]
	}
	return url
}

func policyIssues(doc PolicyDocument, facts RiskFacts) []string {
	issues := append([]string{}, doc.Issues...)
	if hasWildcardPrincipal(doc.Statements) {
		issues = append(issues, IssueAnonymousAccess)
	}
	if facts.PublicAction {
		issues = append(issues, IssuePublicAction)
	}
	return issues
}

// bucketPolicyPublicity prefers the service-computed policy status and falls
// back to the parsed document when only the status lookup failed.
func bucketPolicyPublicity(b models.BucketDescriptor, wildcard bool) models.PolicyPublicity {
	if b.Policy.State == models.PolicyNotAttached {
		return models.PolicyNotApplicable
	}
	if b.PolicyStatus != nil {
		if *b.PolicyStatus {
			return models.PolicyPublic
		}
		return models.PolicyNotPublic
	}
	if b.Policy.State == models.PolicyUnavailable {
		return models.PolicyUnknown
	}
	if wildcard {
		return models.PolicyPublic
	}
	return models.PolicyNotPublic
}

func validateBucket(b models.BucketDescriptor) error {
	if b.Name == "" {
		return missing("bucket", "name")
	}
	if err := validatePolicyState("bucket", b.Policy.State); err != nil {
		return err
	}
	for i, g := range b.Grants {
		if g.GranteeType == "" {
			return missing("bucket", fmt.Sprintf("grants[%d].grantee_type", i))
		}
		if g.GranteeType == models.GranteeGroup && g.GranteeIdentifier == "" {
			return missing("bucket", fmt.Sprintf("grants[%d].grantee_identifier", i))
		}
	}
	return nil
}

func validateQueue(q models.QueueDescriptor) error {
	if q.URL == "" {
		return missing("queue", "url")
	}
	return validatePolicyState("queue", q.Policy.State)
}

func validatePolicyState(kind string, s models.PolicyState) error {
	switch s {
	case models.PolicyAttached, models.PolicyNotAttached, models.PolicyUnavailable:
		return nil
	default:
		return missing(kind, "policy.state")
	}
}
