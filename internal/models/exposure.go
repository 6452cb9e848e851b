package models

// GranteeType classifies the identity an ACL entry authorizes.
type GranteeType string

const (
	GranteeUser  GranteeType = "User"
	GranteeGroup GranteeType = "Group"
	GranteeOther GranteeType = "Other"
)

// AccessGrant is one entry of a bucket ACL. GranteeIdentifier holds the group
// URI for Group grantees and the canonical ID or email for everything else.
type AccessGrant struct {
	GranteeType       GranteeType `json:"grantee_type"`
	GranteeIdentifier string      `json:"grantee_identifier"`
	Permission        string      `json:"permission"`
}

// Effect is the outcome a policy statement applies.
type Effect string

const (
	EffectAllow Effect = "Allow"
	EffectDeny  Effect = "Deny"
)

// PolicyStatement is a normalized resource-policy statement.
// WildcardPrincipal is true when the statement applies to anyone ("*");
// Principals then carries whatever explicit identifiers were listed alongside.
type PolicyStatement struct {
	Effect            Effect   `json:"effect"`
	WildcardPrincipal bool     `json:"wildcard_principal"`
	Principals        []string `json:"principals,omitempty"`
	Actions           []string `json:"actions,omitempty"`
	Resources         []string `json:"resources,omitempty"`
}

// PolicyState distinguishes the three ways a policy lookup can end.
// PolicyUnavailable means the lookup itself failed and says nothing about
// whether a policy is attached.
type PolicyState string

const (
	PolicyAttached    PolicyState = "ATTACHED"
	PolicyNotAttached PolicyState = "NOT_ATTACHED"
	PolicyUnavailable PolicyState = "UNAVAILABLE"
)

// PolicyInput is a raw policy document together with its attachment state.
type PolicyInput struct {
	Raw   string      `json:"raw,omitempty"`
	State PolicyState `json:"state"`
}

// PolicyPublicity is the result of a bucket policy status lookup. UNKNOWN
// means neither the status nor the policy document could be read.
type PolicyPublicity string

const (
	PolicyPublic        PolicyPublicity = "PUBLIC"
	PolicyNotPublic     PolicyPublicity = "NOT_PUBLIC"
	PolicyNotApplicable PolicyPublicity = "NOT_APPLICABLE"
	PolicyUnknown       PolicyPublicity = "UNKNOWN"
)

// IngressRule is one security-group rule. Exactly one of SourceCIDRv4 and
// SourceCIDRv6 is normally set; rules referencing prefix lists or other
// groups have neither.
type IngressRule struct {
	RuleID       string `json:"rule_id"`
	GroupID      string `json:"group_id"`
	IsEgress     bool   `json:"is_egress"`
	Protocol     string `json:"protocol"`
	FromPort     int    `json:"from_port"`
	ToPort       int    `json:"to_port"`
	SourceCIDRv4 string `json:"source_cidr_v4,omitempty"`
	SourceCIDRv6 string `json:"source_cidr_v6,omitempty"`
	Description  string `json:"description,omitempty"`
}

// RemediationRequest is the replacement for a flagged ingress rule. The rule
// keeps its protocol and ports; only the source range and description change.
type RemediationRequest struct {
	RuleID       string `json:"rule_id"`
	GroupID      string `json:"group_id"`
	Protocol     string `json:"protocol"`
	FromPort     int    `json:"from_port"`
	ToPort       int    `json:"to_port"`
	SourceCIDRv4 string `json:"source_cidr_v4,omitempty"`
	SourceCIDRv6 string `json:"source_cidr_v6,omitempty"`
	Description  string `json:"description"`
}

// EncryptionState describes server-side encryption on a resource.
// A non-empty KMSKeyID implies Enabled; use NewEncryptionState to keep the
// two consistent.
type EncryptionState struct {
	Enabled  bool   `json:"enabled"`
	KMSKeyID string `json:"kms_key_id,omitempty"`
}

// NewEncryptionState returns an EncryptionState where a KMS key forces Enabled.
func NewEncryptionState(enabled bool, kmsKeyID string) EncryptionState {
	return EncryptionState{Enabled: enabled || kmsKeyID != "", KMSKeyID: kmsKeyID}
}

// Type returns "KMS", "SSE" or "None".
func (e EncryptionState) Type() string {
	switch {
	case e.KMSKeyID != "":
		return "KMS"
	case e.Enabled:
		return "SSE"
	default:
		return "None"
	}
}

// RiskLevel is the categorical exposure risk of a resource.
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskMedium   RiskLevel = "Medium"
	RiskHigh     RiskLevel = "High"
	RiskCritical RiskLevel = "Critical"
)

// Rank orders risk levels from 0 (Low) to 3 (Critical). Unknown values rank
// below Low.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskCritical:
		return 3
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	case RiskLow:
		return 0
	default:
		return -1
	}
}

// ExposureVerdict is the evaluated exposure of one bucket or queue.
// Verdicts are built once per evaluation and never patched afterwards.
type ExposureVerdict struct {
	ResourceID      string          `json:"resource_id"`
	ResourceName    string          `json:"resource_name"`
	ResourceType    ResourceType    `json:"resource_type"`
	Region          string          `json:"region,omitempty"`
	Owner           string          `json:"owner,omitempty"`
	Grants          []AccessGrant   `json:"grants,omitempty"`
	PublicByACL     bool            `json:"public_by_acl"`
	PublicByPolicy  PolicyPublicity `json:"public_by_policy"`
	PolicyState     PolicyState     `json:"policy_state"`
	AnonymousAccess bool            `json:"anonymous_access"`
	PublicAction    bool            `json:"public_action"`
	BlankPolicy     bool            `json:"blank_policy"`
	PolicyIssues    []string        `json:"policy_issues"`
	Encryption      EncryptionState `json:"encryption"`
	RiskScore       int             `json:"risk_score"`
	RiskLevel       RiskLevel       `json:"risk_level"`
	RiskFactors     []string        `json:"risk_factors"`
	Recommendations []string        `json:"recommendations"`
}

// SecurityGroupVerdict lists the world-open remote access rules of a single
// security group and the replacements that would close them.
type SecurityGroupVerdict struct {
	GroupID      string               `json:"group_id"`
	GroupName    string               `json:"group_name,omitempty"`
	Region       string               `json:"region"`
	RulesChecked int                  `json:"rules_checked"`
	Flagged      []IngressRule        `json:"flagged"`
	Remediations []RemediationRequest `json:"remediations"`
}

// ExposureSummary is the account-wide fold over a set of verdicts.
type ExposureSummary struct {
	Total           int `json:"total"`
	Critical        int `json:"critical"`
	High            int `json:"high"`
	Medium          int `json:"medium"`
	Low             int `json:"low"`
	WithIssues      int `json:"with_issues"`
	AnonymousAccess int `json:"anonymous_access"`
	PublicAction    int `json:"public_action"`
	BlankPolicy     int `json:"blank_policy"`
	Restrictive     int `json:"restrictive"`
	PublicByACL     int `json:"public_by_acl"`
	PublicByPolicy  int `json:"public_by_policy"`
	Unencrypted     int `json:"unencrypted"`
	KMSEncrypted    int `json:"kms_encrypted"`
	SSEEncrypted    int `json:"sse_encrypted"`
}
