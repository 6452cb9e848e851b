package models

// BucketDescriptor is the access-control metadata collected for one S3
// bucket. PolicyStatus is nil when no bucket policy is attached or when the
// status lookup failed; Policy.State tells the two apart.
type BucketDescriptor struct {
	Name         string          `json:"name"`
	Owner        string          `json:"owner,omitempty"`
	Grants       []AccessGrant   `json:"grants"`
	PolicyStatus *bool           `json:"policy_status_public,omitempty"`
	Policy       PolicyInput     `json:"policy"`
	Encryption   EncryptionState `json:"encryption"`
	// ACLUnavailable is set when GetBucketAcl failed. Grants is then empty
	// and must not be read as "no public grants".
	ACLUnavailable bool `json:"acl_unavailable,omitempty"`
}

// QueueDescriptor is the set of SQS attributes relevant to exposure.
type QueueDescriptor struct {
	URL        string          `json:"url"`
	Name       string          `json:"name"`
	Region     string          `json:"region,omitempty"`
	Policy     PolicyInput     `json:"policy"`
	Encryption EncryptionState `json:"encryption"`
}

// SecurityGroupDescriptor groups every rule belonging to one security group.
type SecurityGroupDescriptor struct {
	GroupID   string        `json:"group_id"`
	GroupName string        `json:"group_name,omitempty"`
	Region    string        `json:"region"`
	Rules     []IngressRule `json:"rules"`
}

// ExposureData is the raw inventory returned by a collector for one profile.
// Any slice may be empty when the corresponding audit was not requested.
type ExposureData struct {
	Buckets        []BucketDescriptor        `json:"buckets,omitempty"`
	Queues         []QueueDescriptor         `json:"queues,omitempty"`
	SecurityGroups []SecurityGroupDescriptor `json:"security_groups,omitempty"`
}
