// Package render provides presentation-layer helpers for secops CLI output.
// It is a pure rendering package. It does no evaluation, no scoring and no AWS API calls.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
)

// FindVerdict returns a pointer to the first verdict whose ResourceName or
// ResourceID equals name, or nil when no match is found. The pointer refers
// to the slice element directly.
func FindVerdict(verdicts []models.ExposureVerdict, name string) *models.ExposureVerdict {
	for i := range verdicts {
		if verdicts[i].ResourceName == name || verdicts[i].ResourceID == name {
			return &verdicts[i]
		}
	}
	return nil
}

// FindSecurityGroup returns the verdict for groupID, or nil.
func FindSecurityGroup(groups []models.SecurityGroupVerdict, groupID string) *models.SecurityGroupVerdict {
	for i := range groups {
		if groups[i].GroupID == groupID {
			return &groups[i]
		}
	}
	return nil
}

// RenderVerdictExplanation writes a structured breakdown of one bucket or
// queue verdict to w. Only findings whose ResourceID matches the verdict are
// rendered, grouped by rule ID in ascending order.
//
// Example output:
//
//	SQS_QUEUE orders (Risk: Critical, Score: 12)
//	Region: us-east-1
//	Policy: ATTACHED  Encryption: None
//
//	Risk factors:
//	  - Anonymous access enabled
//	  - No encryption enabled
//
//	Findings (2):
//
//	  ✓ SQS_ANONYMOUS_ACCESS [CRITICAL]
//	    Queue policy allows anonymous principals.
func RenderVerdictExplanation(w io.Writer, v models.ExposureVerdict, findings []models.Finding) {
	fmt.Fprintf(w, "%s %s (Risk: %s, Score: %d)\n", v.ResourceType, v.ResourceName, v.RiskLevel, v.RiskScore)
	if v.Region != "" {
		fmt.Fprintf(w, "Region: %s\n", v.Region)
	}
	fmt.Fprintf(w, "Policy: %s  Encryption: %s", v.PolicyState, v.Encryption.Type())
	if v.Encryption.KMSKeyID != "" {
		fmt.Fprintf(w, " (%s)", v.Encryption.KMSKeyID)
	}
	fmt.Fprintln(w)
	if v.ResourceType == models.ResourceS3Bucket {
		fmt.Fprintf(w, "Public by ACL: %t  Public by policy: %s\n", v.PublicByACL, v.PublicByPolicy)
	}

	writeList(w, "Risk factors", v.RiskFactors)
	writeList(w, "Policy issues", v.PolicyIssues)
	writeList(w, "Recommendations", v.Recommendations)

	byRule := make(map[string][]models.Finding)
	for _, f := range findings {
		if f.ResourceID != v.ResourceID {
			continue
		}
		byRule[f.RuleID] = append(byRule[f.RuleID], f)
	}
	ruleIDs := make([]string, 0, len(byRule))
	var total int
	for id, fs := range byRule {
		ruleIDs = append(ruleIDs, id)
		total += len(fs)
	}
	sort.Strings(ruleIDs)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Findings (%d):\n", total)
	for _, id := range ruleIDs {
		fmt.Fprintln(w)
		for _, f := range byRule[id] {
			fmt.Fprintf(w, "  \u2713 %s [%s]\n", id, f.Severity)
			fmt.Fprintf(w, "    %s\n", f.Explanation)
		}
	}
}

// RenderSecurityGroupExplanation lists each flagged rule next to the
// replacement that would close it.
func RenderSecurityGroupExplanation(w io.Writer, g models.SecurityGroupVerdict) {
	name := g.GroupName
	if name == "" {
		name = "-"
	}
	fmt.Fprintf(w, "SECURITY_GROUP %s (%s) in %s\n", g.GroupID, name, g.Region)
	fmt.Fprintf(w, "Rules checked: %d  Flagged: %d\n", g.RulesChecked, len(g.Flagged))

	replacement := make(map[string]models.RemediationRequest, len(g.Remediations))
	for _, r := range g.Remediations {
		replacement[r.RuleID] = r
	}
	for _, r := range g.Flagged {
		src := r.SourceCIDRv4 + r.SourceCIDRv6
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  \u2713 %s %s/%d from %s\n", r.RuleID, r.Protocol, r.FromPort, src)
		if req, ok := replacement[r.RuleID]; ok {
			fmt.Fprintf(w, "    -> %s%s %q\n", req.SourceCIDRv4, req.SourceCIDRv6, req.Description)
		}
	}
}

func writeList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(w, "  - %s\n", it)
	}
}

// WriteExplainJSON writes the explanation for name as indented JSON to w.
//
// When v is non-nil, the output is:
//
//	{"verdict": { ...verdict fields... }}
//
// When v is nil, the output is:
//
//	{"error": "No resource found named N"}
func WriteExplainJSON(w io.Writer, v any, name string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if isNil(v) {
		return enc.Encode(map[string]string{
			"error": fmt.Sprintf("No resource found named %s", strings.TrimSpace(name)),
		})
	}
	return enc.Encode(map[string]any{
		"verdict": v,
	})
}

func isNil(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case *models.ExposureVerdict:
		return t == nil
	case *models.SecurityGroupVerdict:
		return t == nil
	default:
		return false
	}
}
