package exposure

import (
	"errors"
	"fmt"
)

// Finding strings produced while reading policy documents. Parsing problems
// are reported through these, never as Go errors.
const (
	IssueInvalidJSON        = "Invalid JSON in policy"
	IssuePolicyUnavailable  = "Policy could not be retrieved"
	IssueAnonymousAccess    = "Anonymous access allowed (Principal: *)"
	IssuePublicAction       = "Public access allowed (Action: *)"
	IssueACLUnavailable     = "Bucket ACL could not be retrieved"
	IssuePublicACL          = "ACL grants access to AllUsers or AuthenticatedUsers"
	IssuePublicPolicyStatus = "Bucket policy status reports public access"
)

// ErrInvalidDescriptor is matched by every *InvalidDescriptorError.
var ErrInvalidDescriptor = errors.New("invalid resource descriptor")

// InvalidDescriptorError reports which required field of a descriptor is
// missing. Kind names the descriptor ("bucket", "queue", "security group").
type InvalidDescriptorError struct {
	Kind  string
	Field string
}

func (e *InvalidDescriptorError) Error() string {
	return fmt.Sprintf("invalid %s descriptor: missing %s", e.Kind, e.Field)
}

func (e *InvalidDescriptorError) Is(target error) bool {
	return target == ErrInvalidDescriptor
}

func missing(kind, field string) error {
	return &InvalidDescriptorError{Kind: kind, Field: field}
}
