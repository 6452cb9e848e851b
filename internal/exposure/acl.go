package exposure

import "github.com/pankaj-dahiya-devops/secops-audit/internal/models"

// Predefined S3 groups that make an ACL public.
const (
	AllUsersURI           = "http://acs.amazonaws.com/groups/global/AllUsers"
	AuthenticatedUsersURI = "http://acs.amazonaws.com/groups/global/AuthenticatedUsers"
)

// ClassifyGrants reports whether any grant targets AllUsers or
// AuthenticatedUsers. Grants to any other grantee are ignored, so the
// result does not depend on grant order.
func ClassifyGrants(grants []models.AccessGrant) bool {
	for _, g := range grants {
		if isPublicGrant(g) {
			return true
		}
	}
	return false
}

func isPublicGrant(g models.AccessGrant) bool {
	if g.GranteeType != models.GranteeGroup {
		return false
	}
	return g.GranteeIdentifier == AllUsersURI || g.GranteeIdentifier == AuthenticatedUsersURI
}
