package rules

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
)

// SecurityGroupOpenRemoteAccessRule flags security groups with ingress rules
// that open a watched remote administration port (SSH, RDP by default) to
// 0.0.0.0/0 or ::/0. Each group produces at most one finding regardless of
// how many of its rules are open.
type SecurityGroupOpenRemoteAccessRule struct{}

func (r SecurityGroupOpenRemoteAccessRule) ID() string { return "SG_OPEN_REMOTE_ACCESS" }
func (r SecurityGroupOpenRemoteAccessRule) Name() string {
	return "Security Group With World-Open Remote Access"
}

// Evaluate returns one HIGH finding per security group with flagged rules.
func (r SecurityGroupOpenRemoteAccessRule) Evaluate(ctx RuleContext) []models.Finding {
	var findings []models.Finding
	for _, sg := range ctx.SecurityGroups {
		if len(sg.Flagged) == 0 {
			continue
		}
		portSet := make(map[int]struct{})
		cidrSet := make(map[string]struct{})
		ruleIDs := make([]string, 0, len(sg.Flagged))
		for _, rule := range sg.Flagged {
			portSet[rule.FromPort] = struct{}{}
			if rule.SourceCIDRv4 != "" {
				cidrSet[rule.SourceCIDRv4] = struct{}{}
			}
			if rule.SourceCIDRv6 != "" {
				cidrSet[rule.SourceCIDRv6] = struct{}{}
			}
			ruleIDs = append(ruleIDs, rule.RuleID)
		}
		ports := make([]int, 0, len(portSet))
		for p := range portSet {
			ports = append(ports, p)
		}
		sort.Ints(ports)
		cidrs := make([]string, 0, len(cidrSet))
		for c := range cidrSet {
			cidrs = append(cidrs, c)
		}
		sort.Strings(cidrs)

		portText := make([]string, len(ports))
		for i, p := range ports {
			portText[i] = fmt.Sprint(p)
		}
		findings = append(findings, models.Finding{
			ID:           fmt.Sprintf("%s-%s", r.ID(), sg.GroupID),
			RuleID:       r.ID(),
			ResourceID:   sg.GroupID,
			ResourceType: models.ResourceSecurityGroup,
			Region:       sg.Region,
			AccountID:    ctx.AccountID,
			Profile:      ctx.Profile,
			Domain:       models.DomainNetwork,
			Severity:     models.SeverityHigh,
			Explanation: fmt.Sprintf("Security group %s allows unrestricted remote access (port %s) from %s.",
				sg.GroupID, strings.Join(portText, ", "), strings.Join(cidrs, ", ")),
			Recommendation: "Restrict SSH/RDP to trusted ranges, or run `secops aws remediate sg --apply` to point the open rules at a placeholder address.",
			DetectedAt:     time.Now().UTC(),
			Metadata: map[string]any{
				"group_name": sg.GroupName,
				"rule_ids":   ruleIDs,
				"ports":      ports,
				"open_cidrs": cidrs,
			},
		})
	}
	return findings
}
