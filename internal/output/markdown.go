package output

import (
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
)

// bandRecommendations holds the bullet list printed for each risk band that
// has at least one resource.
var bandRecommendations = []struct {
	level   models.RiskLevel
	heading string
	items   []string
}{
	{models.RiskCritical, "Critical Risk - Immediate Action Required", []string{
		"Disable anonymous access immediately",
		"Enable encryption on all resources",
		"Review and update resource policies",
		"Audit for any unauthorized access",
	}},
	{models.RiskHigh, "High Risk - Priority Action Required", []string{
		"Enable encryption on unencrypted resources",
		"Review public access permissions",
		"Consider upgrading to KMS encryption",
		"Implement explicit access controls",
	}},
	{models.RiskMedium, "Medium Risk - Review Recommended", []string{
		"Review IAM permissions for blank policy resources",
		"Consider adding explicit resource policies",
		"Document intended access patterns",
	}},
	{models.RiskLow, "Low Risk - Monitoring Recommended", []string{
		"Continue monitoring access patterns",
		"Keep encryption and policies up to date",
	}},
}

var riskDescriptions = map[models.RiskLevel]string{
	models.RiskCritical: "Anonymous access combined with a public action or no encryption",
	models.RiskHigh:     "Public action or no encryption",
	models.RiskMedium:   "Blank policy, depends on IAM",
	models.RiskLow:      "Properly configured",
}

func percent(n, total int) string {
	if total == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", float64(n)*100/float64(total))
}

// WriteMarkdown renders report as a Markdown document. Counters come from
// report.Summary, so the document always agrees with the JSON report.
func WriteMarkdown(w io.Writer, report *models.AuditReport) error {
	var b strings.Builder
	s := report.Summary.Exposure

	fmt.Fprintf(&b, "# Exposure Audit Report\n\n")
	fmt.Fprintf(&b, "**Generated:** %s  \n", report.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "**Account:** %s  \n", orUnknown(report.AccountID))
	fmt.Fprintf(&b, "**Profile:** %s  \n", orUnknown(report.Profile))
	if len(report.Regions) > 0 {
		fmt.Fprintf(&b, "**Regions:** %s  \n", strings.Join(report.Regions, ", "))
	}
	fmt.Fprintf(&b, "**Resources Analyzed:** %d\n\n---\n\n", s.Total)

	b.WriteString("## Executive Summary\n\n")
	b.WriteString("| Metric | Count | Percentage |\n|--------|-------|------------|\n")
	fmt.Fprintf(&b, "| **Total Resources** | %d | 100%% |\n", s.Total)
	fmt.Fprintf(&b, "| **Resources with Issues** | %d | %s |\n", s.WithIssues, percent(s.WithIssues, s.Total))
	fmt.Fprintf(&b, "| **Findings** | %d | - |\n", report.Summary.TotalFindings)
	if len(report.SecurityGroups) > 0 {
		fmt.Fprintf(&b, "| **Open Remote Access Rules** | %d | - |\n", report.Summary.OpenIngressRules)
	}
	b.WriteString("\n")

	b.WriteString("## Risk Assessment\n\n")
	b.WriteString("| Risk Level | Count | Description |\n|------------|-------|-------------|\n")
	for _, row := range []struct {
		level models.RiskLevel
		count int
	}{
		{models.RiskCritical, s.Critical},
		{models.RiskHigh, s.High},
		{models.RiskMedium, s.Medium},
		{models.RiskLow, s.Low},
	} {
		fmt.Fprintf(&b, "| **%s Risk** | %d | %s |\n", row.level, row.count, riskDescriptions[row.level])
	}
	b.WriteString("\n")

	b.WriteString("## Encryption Status\n\n")
	b.WriteString("| Encryption Type | Count | Percentage |\n|-----------------|-------|------------|\n")
	fmt.Fprintf(&b, "| **KMS Encryption** | %d | %s |\n", s.KMSEncrypted, percent(s.KMSEncrypted, s.Total))
	fmt.Fprintf(&b, "| **SSE Encryption** | %d | %s |\n", s.SSEEncrypted, percent(s.SSEEncrypted, s.Total))
	fmt.Fprintf(&b, "| **No Encryption** | %d | %s |\n\n", s.Unencrypted, percent(s.Unencrypted, s.Total))

	b.WriteString("## Policy Analysis\n\n")
	b.WriteString("| Policy Type | Count | Percentage |\n|-------------|-------|------------|\n")
	fmt.Fprintf(&b, "| **Anonymous Access** | %d | %s |\n", s.AnonymousAccess, percent(s.AnonymousAccess, s.Total))
	fmt.Fprintf(&b, "| **Public Actions** | %d | %s |\n", s.PublicAction, percent(s.PublicAction, s.Total))
	fmt.Fprintf(&b, "| **Blank Policies** | %d | %s |\n", s.BlankPolicy, percent(s.BlankPolicy, s.Total))
	fmt.Fprintf(&b, "| **Restrictive Policies** | %d | %s |\n\n---\n\n", s.Restrictive, percent(s.Restrictive, s.Total))

	if len(report.Verdicts) > 0 {
		b.WriteString("## Detailed Resource Analysis\n\n")
		for _, v := range report.Verdicts {
			writeVerdictDetail(&b, v)
		}
	}

	if len(report.SecurityGroups) > 0 {
		writeSecurityGroupSection(&b, report.SecurityGroups)
	}

	if len(report.MessageTests) > 0 {
		writeMessageTestSection(&b, report.MessageTests)
	}

	writeRecommendations(&b, s)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeVerdictDetail(b *strings.Builder, v models.ExposureVerdict) {
	fmt.Fprintf(b, "### %s (%s Risk)\n\n", v.ResourceName, v.RiskLevel)
	fmt.Fprintf(b, "**Resource:** `%s`  \n**Type:** %s  \n**Score:** %d\n\n", v.ResourceID, v.ResourceType, v.RiskScore)

	if v.AnonymousAccess {
		b.WriteString("**ANONYMOUS ACCESS ENABLED**\n\n")
	}
	if v.PublicByACL {
		b.WriteString("**PUBLIC BY ACL**\n\n")
	}
	if v.BlankPolicy {
		b.WriteString("**BLANK POLICY** - access depends on IAM permissions\n\n")
	}
	if len(v.PolicyIssues) > 0 {
		fmt.Fprintf(b, "**Policy Issues:** %s\n\n", strings.Join(v.PolicyIssues, ", "))
	}

	switch v.Encryption.Type() {
	case "KMS":
		fmt.Fprintf(b, "**Encryption:** KMS (%s)\n\n", v.Encryption.KMSKeyID)
	case "SSE":
		b.WriteString("**Encryption:** SSE (AWS managed)\n\n")
	default:
		b.WriteString("**Encryption:** DISABLED\n\n")
	}

	if len(v.RiskFactors) > 0 {
		fmt.Fprintf(b, "**Risk Factors:** %s\n\n", strings.Join(v.RiskFactors, ", "))
	}
	if len(v.Recommendations) > 0 {
		b.WriteString("**Recommendations:**\n\n")
		for _, r := range v.Recommendations {
			fmt.Fprintf(b, "- %s\n", r)
		}
		b.WriteString("\n")
	}
	b.WriteString("---\n\n")
}

func writeSecurityGroupSection(b *strings.Builder, groups []models.SecurityGroupVerdict) {
	b.WriteString("## Security Groups\n\n")
	b.WriteString("| Group | Region | Rule | Port | Source | Replacement |\n|-------|--------|------|------|--------|-------------|\n")
	var rows int
	for _, g := range groups {
		for i, r := range g.Flagged {
			src := r.SourceCIDRv4
			if src == "" {
				src = r.SourceCIDRv6
			}
			var repl string
			if i < len(g.Remediations) {
				repl = g.Remediations[i].SourceCIDRv4 + g.Remediations[i].SourceCIDRv6
			}
			fmt.Fprintf(b, "| %s | %s | %s | %d | `%s` | `%s` |\n", g.GroupID, g.Region, r.RuleID, r.FromPort, src, repl)
			rows++
		}
	}
	if rows == 0 {
		b.WriteString("| - | - | - | - | - | - |\n")
	}
	b.WriteString("\n")
}

func writeMessageTestSection(b *strings.Builder, tests []models.MessageTestResult) {
	b.WriteString("## Message Tests\n\n")
	b.WriteString("| Queue | Region | Send | Receive | Messages Received |\n|-------|--------|------|---------|-------------------|\n")
	for _, t := range tests {
		send := passFail(t.Sent)
		if t.SendError != "" {
			send += " (" + t.SendError + ")"
		}
		recv := passFail(t.Received)
		if t.ReceiveError != "" {
			recv += " (" + t.ReceiveError + ")"
		}
		fmt.Fprintf(b, "| %s | %s | %s | %s | %d |\n", t.QueueName, t.Region, send, recv, t.MessagesReceived)
	}
	b.WriteString("\n")
}

func writeRecommendations(b *strings.Builder, s models.ExposureSummary) {
	counts := map[models.RiskLevel]int{
		models.RiskCritical: s.Critical,
		models.RiskHigh:     s.High,
		models.RiskMedium:   s.Medium,
		models.RiskLow:      s.Low,
	}

	b.WriteString("## Recommendations\n\n")
	for _, band := range bandRecommendations {
		n := counts[band.level]
		if n == 0 {
			continue
		}
		fmt.Fprintf(b, "### %s\n\n%d resource(s) in this band:\n\n", band.heading, n)
		for _, item := range band.items {
			fmt.Fprintf(b, "- **%s**\n", item)
		}
		b.WriteString("\n")
	}
	if s.Unencrypted > 0 {
		fmt.Fprintf(b, "### Encryption Recommendations\n\n%d unencrypted resource(s) found:\n\n", s.Unencrypted)
		b.WriteString("- **Enable encryption on all unencrypted resources**\n")
		b.WriteString("- **Use KMS encryption for sensitive data**\n")
		b.WriteString("- **Monitor applications after enabling encryption**\n\n")
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// WriteSummaryText is the plain-text --summary view: one line per risk band
// followed by up to top non-Low resources, highest score first.
func WriteSummaryText(w io.Writer, report *models.AuditReport, top int) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	s := report.Summary.Exposure
	fmt.Fprintf(tw, "Critical\t%d\n", s.Critical)
	fmt.Fprintf(tw, "High\t%d\n", s.High)
	fmt.Fprintf(tw, "Medium\t%d\n", s.Medium)
	fmt.Fprintf(tw, "Low\t%d\n", s.Low)
	if len(report.SecurityGroups) > 0 {
		fmt.Fprintf(tw, "Open ingress\t%d\n", report.Summary.OpenIngressRules)
	}
	ranked := slices.Clone(report.Verdicts)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].RiskScore > ranked[j].RiskScore })
	for i, v := range ranked {
		if i == top || v.RiskLevel == models.RiskLow {
			break
		}
		fmt.Fprintf(tw, "  %s\t%s\t%d\n", v.ResourceName, v.RiskLevel, v.RiskScore)
	}
	return tw.Flush()
}
