package exposure

import (
	"sort"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
)

const (
	SSHPort = 22
	RDPPort = 3389

	// Unrestricted source ranges.
	AnyIPv4 = "0.0.0.0/0"
	AnyIPv6 = "::/0"

	// Non-routable replacements written into remediated rules.
	PlaceholderIPv4 = "127.0.0.1/32"
	PlaceholderIPv6 = "::1/128"

	RemediationDescription = "secops: world-open remote access revoked"
)

// PortSet is the set of ingress ports treated as remote administration.
type PortSet map[int]struct{}

// NewPortSet builds a PortSet from ports.
func NewPortSet(ports ...int) PortSet {
	s := make(PortSet, len(ports))
	for _, p := range ports {
		s[p] = struct{}{}
	}
	return s
}

// DefaultWatchedPorts returns {22, 3389}.
func DefaultWatchedPorts() PortSet {
	return NewPortSet(SSHPort, RDPPort)
}

// Contains reports whether port is watched.
func (s PortSet) Contains(port int) bool {
	_, ok := s[port]
	return ok
}

// Sorted returns the watched ports in ascending order.
func (s PortSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

// FilterOpenIngress returns the ingress rules that open a watched port to
// every IPv4 or IPv6 address, in input order. A nil ports set means
// DefaultWatchedPorts.
func FilterOpenIngress(rules []models.IngressRule, ports PortSet) []models.IngressRule {
	if ports == nil {
		ports = DefaultWatchedPorts()
	}
	flagged := []models.IngressRule{}
	for _, r := range rules {
		if r.IsEgress {
			continue
		}
		if r.SourceCIDRv4 != AnyIPv4 && r.SourceCIDRv6 != AnyIPv6 {
			continue
		}
		if !ports.Contains(r.FromPort) {
			continue
		}
		flagged = append(flagged, r)
	}
	return flagged
}

// PlanRemediation maps each flagged rule to a replacement that points the
// open range at a placeholder address. It is a pure transform; applying the
// requests is up to the caller.
func PlanRemediation(flagged []models.IngressRule) []models.RemediationRequest {
	reqs := make([]models.RemediationRequest, 0, len(flagged))
	for _, r := range flagged {
		req := models.RemediationRequest{
			RuleID:      r.RuleID,
			GroupID:     r.GroupID,
			Protocol:    r.Protocol,
			FromPort:    r.FromPort,
			ToPort:      r.ToPort,
			Description: RemediationDescription,
		}
		if r.SourceCIDRv4 == AnyIPv4 {
			req.SourceCIDRv4 = PlaceholderIPv4
		} else {
			req.SourceCIDRv6 = PlaceholderIPv6
		}
		reqs = append(reqs, req)
	}
	return reqs
}
