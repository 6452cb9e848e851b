package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
)

// TableOptions controls which columns RenderTable renders and how severity is coloured.
type TableOptions struct {
	// Colored wraps severity labels with ANSI codes. Default false (CI-safe).
	Colored bool

	// IncludeDomain adds a DOMAIN column.
	IncludeDomain bool

	// IncludeProfile adds a PROFILE column (useful with --all-profiles).
	IncludeProfile bool
}

func severityColor(sev models.Severity) *color.Color {
	switch sev {
	case models.SeverityCritical:
		return color.New(color.FgRed, color.Bold)
	case models.SeverityHigh:
		return color.New(color.FgRed)
	case models.SeverityMedium:
		return color.New(color.FgYellow)
	case models.SeverityLow:
		return color.New(color.FgBlue)
	default:
		return nil
	}
}

func riskColor(level models.RiskLevel) *color.Color {
	return severityColor(models.SeverityForRisk(level))
}

// paint applies c to text when colored is set, regardless of whether stdout
// is a terminal.
func paint(c *color.Color, text string, colored bool) string {
	if !colored || c == nil {
		return text
	}
	c.EnableColor()
	return c.Sprint(text)
}

// ColorSeverity wraps a severity string with ANSI codes when colored is true.
func ColorSeverity(sev models.Severity, colored bool) string {
	return paint(severityColor(sev), string(sev), colored)
}

// ShortenMessage truncates msg to at most max runes, appending "..." when truncated.
// max is treated as at least 4 to guarantee space for the ellipsis.
func ShortenMessage(msg string, max int) string {
	if max < 4 {
		max = 4
	}
	runes := []rune(msg)
	if len(runes) <= max {
		return msg
	}
	return string(runes[:max-3]) + "..."
}

// padded pads text to width and colours only the text, so trailing spaces
// keep later columns aligned.
func padded(c *color.Color, text string, width int, colored bool) string {
	spaces := width - len(text)
	if spaces < 0 {
		spaces = 0
	}
	return paint(c, text, colored) + strings.Repeat(" ", spaces)
}

// truncateField shortens s to at most max runes for ID/label columns.
func truncateField(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

// RenderTable writes a formatted findings table to w.
//
// Column order:
//
//	RESOURCE ID  [PROFILE]  REGION  SEVERITY  [DOMAIN]  RULE  MESSAGE
func RenderTable(w io.Writer, findings []models.Finding, opts TableOptions) {
	if len(findings) == 0 {
		fmt.Fprintln(w, "No findings.")
		return
	}

	const (
		wResource = 40
		wProfile  = 12
		wRegion   = 15
		wSeverity = 10
		wDomain   = 8
		wRule     = 24
		wMessage  = 60
	)

	var hb strings.Builder
	hb.WriteString(fmt.Sprintf("%-*s", wResource, "RESOURCE ID"))
	if opts.IncludeProfile {
		hb.WriteString(fmt.Sprintf("  %-*s", wProfile, "PROFILE"))
	}
	hb.WriteString(fmt.Sprintf("  %-*s", wRegion, "REGION"))
	hb.WriteString(fmt.Sprintf("  %-*s", wSeverity, "SEVERITY"))
	if opts.IncludeDomain {
		hb.WriteString(fmt.Sprintf("  %-*s", wDomain, "DOMAIN"))
	}
	hb.WriteString(fmt.Sprintf("  %-*s", wRule, "RULE"))
	hb.WriteString("  MESSAGE")
	header := hb.String()

	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("-", len(header)+wMessage-len("MESSAGE")))

	for _, f := range findings {
		var rb strings.Builder
		rb.WriteString(fmt.Sprintf("%-*s", wResource, truncateField(f.ResourceID, wResource)))
		if opts.IncludeProfile {
			rb.WriteString(fmt.Sprintf("  %-*s", wProfile, truncateField(f.Profile, wProfile)))
		}
		rb.WriteString(fmt.Sprintf("  %-*s", wRegion, truncateField(f.Region, wRegion)))
		rb.WriteString("  " + padded(severityColor(f.Severity), string(f.Severity), wSeverity, opts.Colored))
		if opts.IncludeDomain {
			rb.WriteString(fmt.Sprintf("  %-*s", wDomain, f.Domain))
		}
		rb.WriteString(fmt.Sprintf("  %-*s", wRule, truncateField(f.RuleID, wRule)))
		rb.WriteString("  " + ShortenMessage(f.Explanation, wMessage))
		fmt.Fprintln(w, strings.TrimRight(rb.String(), " "))
	}
}

// RenderVerdicts writes one row per bucket or queue verdict.
func RenderVerdicts(w io.Writer, verdicts []models.ExposureVerdict, colored bool) {
	if len(verdicts) == 0 {
		fmt.Fprintln(w, "No resources evaluated.")
		return
	}

	const (
		wName  = 40
		wType  = 10
		wRisk  = 9
		wScore = 5
		wEnc   = 5
	)
	header := fmt.Sprintf("%-*s  %-*s  %-*s  %*s  %-*s  FLAGS", wName, "RESOURCE", wType, "TYPE", wRisk, "RISK", wScore, "SCORE", wEnc, "ENC")
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("-", len(header)+20))

	for _, v := range verdicts {
		fmt.Fprintf(w, "%-*s  %-*s  %s  %*d  %-*s  %s\n",
			wName, truncateField(v.ResourceName, wName),
			wType, shortType(v.ResourceType),
			padded(riskColor(v.RiskLevel), string(v.RiskLevel), wRisk, colored),
			wScore, v.RiskScore,
			wEnc, v.Encryption.Type(),
			strings.Join(verdictFlags(v), ","),
		)
	}
}

// RenderSecurityGroups writes one row per flagged rule.
func RenderSecurityGroups(w io.Writer, groups []models.SecurityGroupVerdict) {
	var rows int
	for _, g := range groups {
		rows += len(g.Flagged)
	}
	if rows == 0 {
		fmt.Fprintf(w, "No world-open remote access rules in %d security groups.\n", len(groups))
		return
	}

	header := fmt.Sprintf("%-22s  %-24s  %-15s  %-24s  %-6s  %s", "GROUP", "NAME", "REGION", "RULE", "PORT", "SOURCE")
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("-", len(header)+10))
	for _, g := range groups {
		for _, r := range g.Flagged {
			src := r.SourceCIDRv4
			if src == "" {
				src = r.SourceCIDRv6
			}
			fmt.Fprintf(w, "%-22s  %-24s  %-15s  %-24s  %-6d  %s\n",
				g.GroupID, truncateField(g.GroupName, 24), g.Region, r.RuleID, r.FromPort, src)
		}
	}
}

// RenderMessageTests writes one row per queue message round trip.
func RenderMessageTests(w io.Writer, tests []models.MessageTestResult) {
	header := fmt.Sprintf("%-40s  %-15s  %-6s  %-8s  %s", "QUEUE", "REGION", "SEND", "RECEIVE", "ERROR")
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("-", len(header)+10))
	for _, t := range tests {
		var errs []string
		if t.SendError != "" {
			errs = append(errs, "send: "+t.SendError)
		}
		if t.ReceiveError != "" {
			errs = append(errs, "receive: "+t.ReceiveError)
		}
		fmt.Fprintf(w, "%-40s  %-15s  %-6s  %-8s  %s\n",
			truncateField(t.QueueName, 40), t.Region, passFail(t.Sent), passFail(t.Received), ShortenMessage(strings.Join(errs, "; "), 60))
	}
}

func passFail(ok bool) string {
	if ok {
		return "OK"
	}
	return "FAIL"
}

// RenderSummary writes the severity and exposure counters of a report.
func RenderSummary(w io.Writer, report *models.AuditReport, colored bool) {
	s := report.Summary
	fmt.Fprintf(w, "Report %s  profile=%s  account=%s\n", report.ReportID, report.Profile, report.AccountID)
	fmt.Fprintf(w, "Findings: %d  (%s %d, %s %d, %s %d, %s %d)\n",
		s.TotalFindings,
		ColorSeverity(models.SeverityCritical, colored), s.CriticalFindings,
		ColorSeverity(models.SeverityHigh, colored), s.HighFindings,
		ColorSeverity(models.SeverityMedium, colored), s.MediumFindings,
		ColorSeverity(models.SeverityLow, colored), s.LowFindings,
	)
	e := s.Exposure
	if e.Total > 0 {
		fmt.Fprintf(w, "Resources: %d  critical=%d high=%d medium=%d low=%d\n", e.Total, e.Critical, e.High, e.Medium, e.Low)
		fmt.Fprintf(w, "Access: anonymous=%d public_action=%d blank_policy=%d public_acl=%d public_policy=%d with_issues=%d\n",
			e.AnonymousAccess, e.PublicAction, e.BlankPolicy, e.PublicByACL, e.PublicByPolicy, e.WithIssues)
		fmt.Fprintf(w, "Encryption: kms=%d sse=%d none=%d\n", e.KMSEncrypted, e.SSEEncrypted, e.Unencrypted)
	}
	if len(report.SecurityGroups) > 0 {
		fmt.Fprintf(w, "Security groups: %d checked, %d open remote access rules\n", len(report.SecurityGroups), s.OpenIngressRules)
	}
}

// RenderRemediation writes the outcome of a remediate or encrypt run.
func RenderRemediation(w io.Writer, report *models.RemediationReport) {
	mode := "APPLY"
	if report.DryRun {
		mode = "DRY RUN"
	}
	fmt.Fprintf(w, "%s (%s)  profile=%s  account=%s\n", report.Action, mode, report.Profile, report.AccountID)

	if len(report.Rules) == 0 && len(report.Queues) == 0 {
		fmt.Fprintln(w, "Nothing to change.")
		return
	}

	for _, r := range report.Rules {
		src := r.Request.SourceCIDRv4
		if src == "" {
			src = r.Request.SourceCIDRv6
		}
		line := fmt.Sprintf("%-8s  %-15s  %-22s  %-24s  port %-5d  -> %s", r.Status, r.Region, r.Request.GroupID, r.Request.RuleID, r.Request.FromPort, src)
		if r.Error != "" {
			line += "  (" + r.Error + ")"
		}
		fmt.Fprintln(w, line)
	}
	for _, q := range report.Queues {
		line := fmt.Sprintf("%-8s  %-15s  %-40s  %s -> %s", q.Status, q.Region, truncateField(q.QueueName, 40), q.Before, q.After)
		if q.Message != "" {
			line += "  (" + q.Message + ")"
		}
		if q.MessageTest != nil {
			line += "  message test " + passFail(q.MessageTest.OK())
		}
		fmt.Fprintln(w, line)
	}
}

// RenderKMSKeys writes one row per key.
func RenderKMSKeys(w io.Writer, keys []models.KMSKey) {
	if len(keys) == 0 {
		fmt.Fprintln(w, "No enabled KMS keys.")
		return
	}
	fmt.Fprintf(w, "%-38s  %-10s  %-15s  %s\n", "KEY ID", "MANAGER", "REGION", "DESCRIPTION")
	for _, k := range keys {
		fmt.Fprintf(w, "%-38s  %-10s  %-15s  %s\n", k.KeyID, k.KeyManager, k.Region, ShortenMessage(k.Description, 50))
	}
}

func shortType(rt models.ResourceType) string {
	switch rt {
	case models.ResourceS3Bucket:
		return "bucket"
	case models.ResourceSQSQueue:
		return "queue"
	default:
		return strings.ToLower(string(rt))
	}
}

func verdictFlags(v models.ExposureVerdict) []string {
	var flags []string
	if v.AnonymousAccess {
		flags = append(flags, "anonymous")
	}
	if v.PublicAction {
		flags = append(flags, "public-action")
	}
	if v.BlankPolicy {
		flags = append(flags, "blank")
	}
	if v.PublicByACL {
		flags = append(flags, "acl")
	}
	if v.PolicyState == models.PolicyUnavailable {
		flags = append(flags, "policy-unavailable")
	}
	if len(flags) == 0 {
		return []string{"-"}
	}
	return flags
}
