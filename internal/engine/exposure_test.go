package engine

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/google/uuid"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/exposure"
	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
	"github.com/pankaj-dahiya-devops/secops-audit/internal/policy"
	"github.com/pankaj-dahiya-devops/secops-audit/internal/providers/aws/common"
)

// ── RunAudit: single domains ──────────────────────────────────────────────────

func TestRunAudit_S3(t *testing.T) {
	p := &stubProvider{profiles: []*common.ProfileConfig{prodProfile}, regions: []string{"us-east-1"}}
	c := &stubCollector{buckets: map[string][]models.BucketDescriptor{
		prodProfile.AccountID: {privateBucket("logs"), publicBucket("assets")},
	}}

	report, err := newTestEngine(p, c, nil).RunAudit(context.Background(), AuditOptions{AuditType: AuditTypeS3, Profile: "prod"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := uuid.Parse(report.ReportID); err != nil {
		t.Errorf("report ID %q is not a UUID", report.ReportID)
	}
	if report.AuditType != "s3" || report.Profile != "prod" || report.AccountID != prodProfile.AccountID {
		t.Errorf("header: got %s/%s/%s", report.AuditType, report.Profile, report.AccountID)
	}
	if p.regionLookups != 0 {
		t.Errorf("bucket-only audit must not discover regions, got %d lookups", p.regionLookups)
	}
	if !slices.Equal(report.Regions, []string{"global"}) {
		t.Errorf("regions: got %v", report.Regions)
	}
	if len(report.Verdicts) != 2 || report.Verdicts[0].ResourceName != "logs" {
		t.Fatalf("verdicts must keep collector order: got %+v", report.Verdicts)
	}

	pub := findingsFor(report, "S3_PUBLIC_ACCESS")
	if len(pub) != 1 || pub[0].ResourceID != "assets" || pub[0].Severity != models.SeverityCritical {
		t.Errorf("S3_PUBLIC_ACCESS: got %+v", pub)
	}
	if report.Findings[0].Severity != models.SeverityCritical {
		t.Errorf("findings must be sorted by severity, first is %s", report.Findings[0].Severity)
	}
	if report.Summary.Exposure.Total != 2 || report.Summary.Exposure.Critical != 1 || report.Summary.Exposure.PublicByACL != 1 {
		t.Errorf("exposure summary: got %+v", report.Summary.Exposure)
	}
	if report.Summary.TotalFindings != len(report.Findings) {
		t.Errorf("summary total %d != %d findings", report.Summary.TotalFindings, len(report.Findings))
	}
	for _, f := range report.Findings {
		if f.Domain != models.DomainS3 || f.Profile != "prod" {
			t.Errorf("finding %s: domain %q profile %q", f.ID, f.Domain, f.Profile)
		}
	}
}

func TestRunAudit_NetworkDiscoversRegions(t *testing.T) {
	p := &stubProvider{profiles: []*common.ProfileConfig{prodProfile}, regions: []string{"us-east-1", "eu-west-1"}}
	c := &stubCollector{groups: map[string][]models.SecurityGroupDescriptor{
		prodProfile.AccountID: {openGroup("sg-1", "us-east-1"), {GroupID: "sg-2", Region: "eu-west-1"}},
	}}

	report, err := newTestEngine(p, c, nil).RunAudit(context.Background(), AuditOptions{AuditType: AuditTypeNetwork})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.regionLookups != 1 || !slices.Equal(report.Regions, []string{"us-east-1", "eu-west-1"}) {
		t.Errorf("regions: got %v after %d lookups", report.Regions, p.regionLookups)
	}
	if len(report.SecurityGroups) != 2 || report.Summary.OpenIngressRules != 1 {
		t.Errorf("groups: got %d, open rules %d", len(report.SecurityGroups), report.Summary.OpenIngressRules)
	}
	sg := findingsFor(report, "SG_OPEN_REMOTE_ACCESS")
	if len(sg) != 1 || sg[0].ResourceID != "sg-1" {
		t.Errorf("SG_OPEN_REMOTE_ACCESS: got %+v", sg)
	}
	if len(report.Verdicts) != 0 {
		t.Errorf("network audit must not produce exposure verdicts, got %d", len(report.Verdicts))
	}
}

func TestRunAudit_SQSExplicitQueuesSkipDiscovery(t *testing.T) {
	p := &stubProvider{profiles: []*common.ProfileConfig{prodProfile}, regions: []string{"us-east-1"}}
	c := &stubCollector{queues: map[string][]models.QueueDescriptor{
		prodProfile.AccountID: {openQueue(queueEast, "us-east-1")},
	}}

	report, err := newTestEngine(p, c, nil).RunAudit(context.Background(), AuditOptions{
		AuditType: AuditTypeSQS,
		QueueURLs: []string{queueEast},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.regionLookups != 0 {
		t.Errorf("explicit queues must not trigger region discovery")
	}
	if !slices.Equal(c.queueRegion[0], []string{"us-east-1"}) {
		t.Errorf("collector regions: got %v; want the profile home region", c.queueRegion[0])
	}
	for _, id := range []string{"SQS_ANONYMOUS_ACCESS", "SQS_PUBLIC_ACTION", "SQS_UNENCRYPTED"} {
		if len(findingsFor(report, id)) != 1 {
			t.Errorf("%s: want 1 finding", id)
		}
	}
	if v := report.Verdicts[0]; v.ResourceName != "orders" || v.RiskLevel != models.RiskCritical || v.RiskScore != 12 {
		t.Errorf("verdict: got %s %s %d", v.ResourceName, v.RiskLevel, v.RiskScore)
	}
}

func TestRunAudit_SQSMessageTests(t *testing.T) {
	p := &stubProvider{profiles: []*common.ProfileConfig{prodProfile}}
	c := &stubCollector{queues: map[string][]models.QueueDescriptor{
		prodProfile.AccountID: {openQueue(queueEast, "us-east-1"), openQueue(queueWest, "eu-west-1")},
	}}
	tester := &stubRemediator{sendFails: []string{queueWest}}

	report, err := newTestEngine(p, c, nil).WithQueueTester(tester).RunAudit(context.Background(), AuditOptions{
		AuditType:    AuditTypeSQS,
		QueueURLs:    []string{queueEast, queueWest},
		TestMessages: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.MessageTests) != 2 {
		t.Fatalf("want 2 message tests, got %d", len(report.MessageTests))
	}
	if mt := report.MessageTests[0]; mt.QueueURL != queueEast || !mt.OK() {
		t.Errorf("east: got %+v", mt)
	}
	if mt := report.MessageTests[1]; mt.QueueURL != queueWest || mt.OK() || mt.SendError == "" {
		t.Errorf("west: got %+v", mt)
	}
}

func TestRunAudit_MessageTestsOffByDefault(t *testing.T) {
	p := &stubProvider{profiles: []*common.ProfileConfig{prodProfile}}
	c := &stubCollector{queues: map[string][]models.QueueDescriptor{prodProfile.AccountID: {openQueue(queueEast, "us-east-1")}}}
	tester := &stubRemediator{}

	report, err := newTestEngine(p, c, nil).WithQueueTester(tester).RunAudit(context.Background(), AuditOptions{
		AuditType: AuditTypeSQS,
		QueueURLs: []string{queueEast},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tester.tested) != 0 || report.MessageTests != nil {
		t.Errorf("queues must not be written to unless requested: tested %v", tester.tested)
	}
}

func TestRunAudit_MessageTestsNeedTester(t *testing.T) {
	p := &stubProvider{profiles: []*common.ProfileConfig{prodProfile}}
	_, err := newTestEngine(p, &stubCollector{}, nil).RunAudit(context.Background(), AuditOptions{
		AuditType:    AuditTypeSQS,
		TestMessages: true,
	})
	if err == nil {
		t.Fatal("expected error without a queue tester")
	}
}

// ── RunAudit: all domains and policy ──────────────────────────────────────────

func TestRunAudit_AllDomains(t *testing.T) {
	p := &stubProvider{profiles: []*common.ProfileConfig{prodProfile}, regions: []string{"us-east-1"}}
	c := &stubCollector{
		buckets: map[string][]models.BucketDescriptor{prodProfile.AccountID: {publicBucket("assets")}},
		groups:  map[string][]models.SecurityGroupDescriptor{prodProfile.AccountID: {openGroup("sg-1", "us-east-1")}},
		queues:  map[string][]models.QueueDescriptor{prodProfile.AccountID: {openQueue(queueEast, "us-east-1")}},
	}

	report, err := newTestEngine(p, c, nil).RunAudit(context.Background(), AuditOptions{AuditType: AuditTypeAll})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(c.calls, []string{"buckets", "security_groups", "queues"}) {
		t.Errorf("collector calls: got %v", c.calls)
	}
	domains := map[string]bool{}
	for _, f := range report.Findings {
		domains[f.Domain] = true
	}
	for _, d := range []string{models.DomainS3, models.DomainNetwork, models.DomainSQS} {
		if !domains[d] {
			t.Errorf("no findings for domain %s", d)
		}
	}
	if report.Summary.Exposure.Total != 2 {
		t.Errorf("exposure total: got %d; want 2 (bucket + queue)", report.Summary.Exposure.Total)
	}
	if !slices.Equal(report.Regions, []string{"global", "us-east-1"}) {
		t.Errorf("regions: got %v", report.Regions)
	}
}

func TestRunAudit_PolicyDisablesDomain(t *testing.T) {
	p := &stubProvider{profiles: []*common.ProfileConfig{prodProfile}, regions: []string{"us-east-1"}}
	c := &stubCollector{buckets: map[string][]models.BucketDescriptor{prodProfile.AccountID: {publicBucket("assets")}}}
	cfg := &policy.PolicyConfig{
		Version: 1,
		Domains: map[string]policy.DomainConfig{
			models.DomainSQS:     {Enabled: false},
			models.DomainNetwork: {Enabled: false},
			models.DomainS3:      {Enabled: true},
		},
	}

	if _, err := newTestEngine(p, c, cfg).RunAudit(context.Background(), AuditOptions{AuditType: AuditTypeAll}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(c.calls, []string{"buckets"}) {
		t.Errorf("disabled domains must not be collected: got %v", c.calls)
	}
}

func TestRunAudit_PolicySeverityOverrideAndScoring(t *testing.T) {
	p := &stubProvider{profiles: []*common.ProfileConfig{prodProfile}}
	c := &stubCollector{buckets: map[string][]models.BucketDescriptor{prodProfile.AccountID: {publicBucket("assets")}}}
	cfg := &policy.PolicyConfig{
		Version: 1,
		Rules:   map[string]policy.RuleConfig{"S3_ENCRYPTION_MISSING": {Severity: "low"}},
		Scoring: policy.ScoringConfig{Thresholds: &exposure.Thresholds{Critical: 20, High: 8, Medium: 1}},
	}

	report, err := newTestEngine(p, c, cfg).RunAudit(context.Background(), AuditOptions{AuditType: AuditTypeS3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v := report.Verdicts[0]; v.RiskLevel != models.RiskHigh {
		t.Errorf("custom thresholds: got %s; want High for score %d", v.RiskLevel, v.RiskScore)
	}
	enc := findingsFor(report, "S3_ENCRYPTION_MISSING")
	if len(enc) != 1 || enc[0].Severity != models.SeverityLow {
		t.Errorf("severity override: got %+v", enc)
	}
}

func TestRunAudit_InvalidScoringRejected(t *testing.T) {
	p := &stubProvider{profiles: []*common.ProfileConfig{prodProfile}}
	cfg := &policy.PolicyConfig{Version: 1, Scoring: policy.ScoringConfig{Thresholds: &exposure.Thresholds{Critical: 1, High: 3, Medium: 5}}}

	if _, err := newTestEngine(p, &stubCollector{}, cfg).RunAudit(context.Background(), AuditOptions{AuditType: AuditTypeS3}); err == nil {
		t.Fatal("expected error for inverted thresholds")
	}
}

func TestRunAudit_UnsupportedType(t *testing.T) {
	p := &stubProvider{profiles: []*common.ProfileConfig{prodProfile}}
	if _, err := newTestEngine(p, &stubCollector{}, nil).RunAudit(context.Background(), AuditOptions{AuditType: "cost"}); err == nil {
		t.Fatal("expected error for unsupported audit type")
	}
}

func TestRunAudit_InvalidDescriptorSkipped(t *testing.T) {
	p := &stubProvider{profiles: []*common.ProfileConfig{prodProfile}}
	c := &stubCollector{buckets: map[string][]models.BucketDescriptor{
		prodProfile.AccountID: {publicBucket("assets"), {Name: "broken"}},
	}}

	report, err := newTestEngine(p, c, nil).RunAudit(context.Background(), AuditOptions{AuditType: AuditTypeS3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Verdicts) != 1 || report.Metadata["skipped_resources"] != 1 {
		t.Errorf("got %d verdicts, skipped %v", len(report.Verdicts), report.Metadata["skipped_resources"])
	}
}

func TestRunAudit_CollectorFailure(t *testing.T) {
	p := &stubProvider{profiles: []*common.ProfileConfig{prodProfile}}
	c := &stubCollector{fail: map[string]error{prodProfile.AccountID: errors.New("denied")}}
	if _, err := newTestEngine(p, c, nil).RunAudit(context.Background(), AuditOptions{AuditType: AuditTypeS3}); err == nil {
		t.Fatal("expected collector error to propagate")
	}
}

// ── RunAudit: all profiles ────────────────────────────────────────────────────

func TestRunAudit_AllProfilesMergesSummaries(t *testing.T) {
	staging := &common.ProfileConfig{ProfileName: "staging", AccountID: "444455556666", Region: "eu-west-1"}
	broken := &common.ProfileConfig{ProfileName: "broken", AccountID: "000000000000", Region: "us-east-1"}
	p := &stubProvider{profiles: []*common.ProfileConfig{prodProfile, broken, staging}}
	c := &stubCollector{
		buckets: map[string][]models.BucketDescriptor{
			prodProfile.AccountID: {publicBucket("prod-assets"), privateBucket("prod-logs")},
			staging.AccountID:     {publicBucket("staging-assets")},
		},
		fail: map[string]error{broken.AccountID: errors.New("expired")},
	}

	report, err := newTestEngine(p, c, nil).RunAudit(context.Background(), AuditOptions{AuditType: AuditTypeS3, AllProfiles: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Profile != "multi" {
		t.Errorf("profile: got %q", report.Profile)
	}
	if got := report.Metadata["profiles"]; !slices.Equal(got.([]string), []string{"prod", "staging"}) {
		t.Errorf("audited profiles: got %v", got)
	}
	if report.Summary.Exposure != exposure.Aggregate(report.Verdicts) {
		t.Errorf("merged summary %+v differs from fold over all verdicts %+v", report.Summary.Exposure, exposure.Aggregate(report.Verdicts))
	}
	if report.Summary.Exposure.Critical != 2 {
		t.Errorf("critical: got %d; want 2", report.Summary.Exposure.Critical)
	}
}

func TestRunAudit_AllProfilesAllFail(t *testing.T) {
	p := &stubProvider{profiles: []*common.ProfileConfig{prodProfile}}
	c := &stubCollector{fail: map[string]error{prodProfile.AccountID: errors.New("denied")}}
	if _, err := newTestEngine(p, c, nil).RunAudit(context.Background(), AuditOptions{AuditType: AuditTypeS3, AllProfiles: true}); err == nil {
		t.Fatal("expected error when every profile fails")
	}
}

// ── enforcement and ordering ──────────────────────────────────────────────────

func TestEnforcedDomains(t *testing.T) {
	report := &models.AuditReport{Findings: []models.Finding{
		{RuleID: "S3_PUBLIC_ACCESS", Domain: models.DomainS3, Severity: models.SeverityCritical},
		{RuleID: "SQS_BLANK_POLICY", Domain: models.DomainSQS, Severity: models.SeverityMedium},
	}}
	cfg := &policy.PolicyConfig{Enforcement: map[string]policy.EnforcementConfig{
		models.DomainS3:  {FailOnSeverity: "HIGH"},
		models.DomainSQS: {FailOnSeverity: "HIGH"},
	}}

	if got := EnforcedDomains(report, cfg); !slices.Equal(got, []string{models.DomainS3}) {
		t.Errorf("got %v; want [s3]", got)
	}
	if got := EnforcedDomains(report, nil); got != nil {
		t.Errorf("nil policy: got %v", got)
	}
}

func TestSortFindings_Deterministic(t *testing.T) {
	findings := []models.Finding{
		{ResourceID: "b", RuleID: "R2", Severity: models.SeverityMedium},
		{ResourceID: "a", RuleID: "R1", Severity: models.SeverityCritical},
		{ResourceID: "a", RuleID: "R0", Severity: models.SeverityMedium},
		{ResourceID: "c", RuleID: "R9", Severity: models.SeverityHigh},
	}
	sortFindings(findings)

	var got []string
	for _, f := range findings {
		got = append(got, f.ResourceID+"/"+f.RuleID)
	}
	want := []string{"a/R1", "c/R9", "a/R0", "b/R2"}
	if !slices.Equal(got, want) {
		t.Errorf("got %v; want %v", got, want)
	}
}

func TestComputeSummary_CountsPerSeverity(t *testing.T) {
	s := computeSummary([]models.Finding{
		{Severity: models.SeverityCritical},
		{Severity: models.SeverityHigh},
		{Severity: models.SeverityHigh},
		{Severity: models.SeverityLow},
	})
	if s.TotalFindings != 4 || s.CriticalFindings != 1 || s.HighFindings != 2 || s.MediumFindings != 0 || s.LowFindings != 1 {
		t.Errorf("got %+v", s)
	}
}
