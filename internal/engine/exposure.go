package engine

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/exposure"
	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
	"github.com/pankaj-dahiya-devops/secops-audit/internal/policy"
	"github.com/pankaj-dahiya-devops/secops-audit/internal/providers/aws/common"
	awssecurity "github.com/pankaj-dahiya-devops/secops-audit/internal/providers/aws/security"
	"github.com/pankaj-dahiya-devops/secops-audit/internal/rules"
)

// DefaultWorkers bounds concurrent descriptor evaluation.
const DefaultWorkers = 8

// Registries maps an audit domain to the rules evaluated for it. Each domain
// has its own registry because packs may share rule IDs.
type Registries map[string]rules.RuleRegistry

// ExposureEngine implements Engine for the s3, network, sqs and all audit
// types. It never calls AWS SDK clients directly; collection is delegated to
// the ExposureCollector and scoring to internal/exposure.
type ExposureEngine struct {
	provider   common.AWSClientProvider
	collector  awssecurity.ExposureCollector
	registries Registries
	policy     *policy.PolicyConfig
	evaluator  exposure.Evaluator
	tester     awssecurity.QueueTester
	log        zerolog.Logger
	workers    int
}

// NewExposureEngine constructs an ExposureEngine. The scoring table and
// watched ports come from policyCfg, which may be nil.
func NewExposureEngine(
	provider common.AWSClientProvider,
	collector awssecurity.ExposureCollector,
	registries Registries,
	policyCfg *policy.PolicyConfig,
	log zerolog.Logger,
) *ExposureEngine {
	return &ExposureEngine{
		provider:   provider,
		collector:  collector,
		registries: registries,
		policy:     policyCfg,
		evaluator:  evaluatorFromPolicy(policyCfg),
		log:        log,
		workers:    DefaultWorkers,
	}
}

// WithWorkers sets the evaluation concurrency; n <= 0 keeps the current value.
func (e *ExposureEngine) WithWorkers(n int) *ExposureEngine {
	if n > 0 {
		e.workers = n
	}
	return e
}

// WithQueueTester enables AuditOptions.TestMessages.
func (e *ExposureEngine) WithQueueTester(t awssecurity.QueueTester) *ExposureEngine {
	e.tester = t
	return e
}

func evaluatorFromPolicy(cfg *policy.PolicyConfig) exposure.Evaluator {
	return exposure.Evaluator{Scorer: policy.ScorerFromPolicy(cfg), Ports: policy.WatchedPorts(cfg)}
}

// profileAudit is the evaluated state of one profile before report assembly.
type profileAudit struct {
	regions  []string
	verdicts []models.ExposureVerdict
	groups   []models.SecurityGroupVerdict
	findings []models.Finding
	tests    []models.MessageTestResult
	skipped  int
}

// RunAudit implements Engine.
func (e *ExposureEngine) RunAudit(ctx context.Context, opts AuditOptions) (*models.AuditReport, error) {
	domains := opts.AuditType.Domains()
	if domains == nil {
		return nil, fmt.Errorf("unsupported audit type: %q", opts.AuditType)
	}
	if err := e.evaluator.Scorer.Validate(); err != nil {
		return nil, fmt.Errorf("scoring configuration: %w", err)
	}
	if opts.TestMessages && e.tester == nil {
		return nil, fmt.Errorf("message tests requested but no queue tester is configured")
	}
	domains = e.enabledDomains(domains)

	if opts.AllProfiles {
		return e.runAllProfiles(ctx, opts, domains)
	}
	return e.runSingleProfile(ctx, opts, domains)
}

// runSingleProfile executes the audit for one AWS profile.
func (e *ExposureEngine) runSingleProfile(ctx context.Context, opts AuditOptions, domains []string) (*models.AuditReport, error) {
	profile, err := e.provider.LoadProfile(ctx, opts.Profile)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", opts.Profile, err)
	}

	pa, err := e.auditProfile(ctx, profile, opts, domains)
	if err != nil {
		return nil, err
	}

	report := e.buildReport(opts.AuditType, profile.ProfileName, profile.AccountID, pa.regions, pa.findings)
	report.Verdicts = pa.verdicts
	report.SecurityGroups = pa.groups
	report.MessageTests = pa.tests
	report.Summary.Exposure = exposure.Aggregate(pa.verdicts)
	report.Summary.OpenIngressRules = countFlagged(pa.groups)
	report.Metadata = map[string]any{"domains": domains, "skipped_resources": pa.skipped}
	return report, nil
}

// runAllProfiles audits every configured profile and merges the results.
// Profile failures are skipped; an error is returned only when no profile
// can be audited. Exposure summaries are folded per profile and merged.
func (e *ExposureEngine) runAllProfiles(ctx context.Context, opts AuditOptions, domains []string) (*models.AuditReport, error) {
	profiles, err := e.provider.LoadAllProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("load all profiles: %w", err)
	}
	if len(profiles) == 0 {
		return nil, fmt.Errorf("no AWS profiles found")
	}

	var (
		findings []models.Finding
		verdicts []models.ExposureVerdict
		groups   []models.SecurityGroupVerdict
		tests    []models.MessageTestResult
		regions  []string
		audited  []string
		summary  models.ExposureSummary
		skipped  int
	)

	for _, profile := range profiles {
		pa, err := e.auditProfile(ctx, profile, opts, domains)
		if err != nil {
			e.log.Warn().Err(err).Str("profile", profile.ProfileName).Msg("skipping profile")
			continue
		}
		audited = append(audited, profile.ProfileName)
		findings = append(findings, pa.findings...)
		verdicts = append(verdicts, pa.verdicts...)
		groups = append(groups, pa.groups...)
		tests = append(tests, pa.tests...)
		summary = exposure.Merge(summary, exposure.Aggregate(pa.verdicts))
		skipped += pa.skipped
		for _, r := range pa.regions {
			if !slices.Contains(regions, r) {
				regions = append(regions, r)
			}
		}
	}

	if len(audited) == 0 {
		return nil, fmt.Errorf("all profiles failed; no exposure data collected")
	}

	report := e.buildReport(opts.AuditType, "multi", "", regions, findings)
	report.Verdicts = verdicts
	report.SecurityGroups = groups
	report.MessageTests = tests
	report.Summary.Exposure = summary
	report.Summary.OpenIngressRules = countFlagged(groups)
	report.Metadata = map[string]any{"domains": domains, "profiles": audited, "skipped_resources": skipped}
	return report, nil
}

// auditProfile collects, evaluates and runs rules for each requested domain.
func (e *ExposureEngine) auditProfile(
	ctx context.Context,
	profile *common.ProfileConfig,
	opts AuditOptions,
	domains []string,
) (*profileAudit, error) {
	regions, err := e.regionsFor(ctx, profile, opts, domains)
	if err != nil {
		return nil, fmt.Errorf("resolve regions for profile %q: %w", profile.ProfileName, err)
	}

	pa := &profileAudit{regions: regions}
	for _, domain := range domains {
		if err := e.collectDomain(ctx, profile, opts, domain, pa); err != nil {
			return nil, err
		}
	}

	// Rules run only after every domain has been evaluated.
	rctx := rules.RuleContext{
		AccountID:      profile.AccountID,
		Profile:        profile.ProfileName,
		Verdicts:       pa.verdicts,
		SecurityGroups: pa.groups,
		Policy:         e.policy,
	}
	for _, domain := range domains {
		reg, ok := e.registries[domain]
		if !ok {
			continue
		}
		pa.findings = append(pa.findings, policy.ApplyPolicy(reg.EvaluateAll(rctx), domain, e.policy)...)
	}

	if slices.Contains(domains, models.DomainS3) && !slices.Contains(pa.regions, "global") {
		pa.regions = append([]string{"global"}, pa.regions...)
	}

	e.log.Info().
		Str("profile", profile.ProfileName).
		Int("verdicts", len(pa.verdicts)).
		Int("security_groups", len(pa.groups)).
		Int("findings", len(pa.findings)).
		Msg("profile audited")
	return pa, nil
}

func (e *ExposureEngine) collectDomain(
	ctx context.Context,
	profile *common.ProfileConfig,
	opts AuditOptions,
	domain string,
	pa *profileAudit,
) error {
	switch domain {
	case models.DomainS3:
		buckets, err := e.collector.CollectBuckets(ctx, profile, e.provider)
		if err != nil {
			return fmt.Errorf("collect buckets for profile %q: %w", profile.ProfileName, err)
		}
		verdicts, skipped, err := evaluateEach(ctx, e.workers, buckets, e.evaluator.EvaluateBucket, e.skipLogger("bucket"))
		if err != nil {
			return err
		}
		pa.verdicts = append(pa.verdicts, verdicts...)
		pa.skipped += skipped

	case models.DomainNetwork:
		sgs, err := e.collector.CollectSecurityGroups(ctx, profile, e.provider, pa.regions)
		if err != nil {
			return fmt.Errorf("collect security groups for profile %q: %w", profile.ProfileName, err)
		}
		groups, skipped, err := evaluateEach(ctx, e.workers, sgs, e.evaluator.EvaluateSecurityGroup, e.skipLogger("security_group"))
		if err != nil {
			return err
		}
		pa.groups = append(pa.groups, groups...)
		pa.skipped += skipped

	case models.DomainSQS:
		queues, err := e.collector.CollectQueues(ctx, profile, e.provider, pa.regions, opts.QueueURLs)
		if err != nil {
			return fmt.Errorf("collect queues for profile %q: %w", profile.ProfileName, err)
		}
		verdicts, skipped, err := evaluateEach(ctx, e.workers, queues, e.evaluator.EvaluateQueue, e.skipLogger("queue"))
		if err != nil {
			return err
		}
		pa.verdicts = append(pa.verdicts, verdicts...)
		pa.skipped += skipped

		if opts.TestMessages {
			tests, _, err := evaluateEach(ctx, e.workers, queues, func(q models.QueueDescriptor) (models.MessageTestResult, error) {
				return e.tester.TestQueueMessaging(ctx, profile, e.provider, q), nil
			}, e.skipLogger("queue"))
			if err != nil {
				return err
			}
			pa.tests = append(pa.tests, tests...)
		}
	}
	return nil
}

// regionsFor returns the explicit region list, or discovers active regions
// when a requested domain is regional. Bucket-only audits and audits of
// explicit queue URLs skip discovery.
func (e *ExposureEngine) regionsFor(
	ctx context.Context,
	profile *common.ProfileConfig,
	opts AuditOptions,
	domains []string,
) ([]string, error) {
	if len(opts.Regions) > 0 {
		return opts.Regions, nil
	}
	needsDiscovery := slices.Contains(domains, models.DomainNetwork) ||
		(slices.Contains(domains, models.DomainSQS) && len(opts.QueueURLs) == 0)
	if !needsDiscovery {
		if slices.Contains(domains, models.DomainSQS) {
			return []string{profile.Region}, nil
		}
		return nil, nil
	}
	return e.provider.GetActiveRegions(ctx, profile)
}

// enabledDomains drops domains the policy disables.
func (e *ExposureEngine) enabledDomains(domains []string) []string {
	if e.policy == nil {
		return domains
	}
	var out []string
	for _, d := range domains {
		if cfg, ok := e.policy.Domains[d]; ok && !cfg.Enabled {
			e.log.Info().Str("domain", d).Msg("domain disabled by policy")
			continue
		}
		out = append(out, d)
	}
	return out
}

func (e *ExposureEngine) skipLogger(kind string) func(error) {
	return func(err error) {
		e.log.Warn().Err(err).Str("kind", kind).Msg("skipping invalid descriptor")
	}
}

// evaluateEach runs eval over items with at most workers calls in flight.
// Descriptors rejected by eval are reported through skip and omitted; the
// remaining results keep input order.
func evaluateEach[D, V any](
	ctx context.Context,
	workers int,
	items []D,
	eval func(D) (V, error),
	skip func(error),
) ([]V, int, error) {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	results := make([]V, len(items))
	errs := make([]error, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], errs[i] = eval(items[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("evaluation cancelled: %w", err)
	}

	out := make([]V, 0, len(items))
	skipped := 0
	for i, err := range errs {
		if err != nil {
			skip(err)
			skipped++
			continue
		}
		out = append(out, results[i])
	}
	return out, skipped, nil
}

func countFlagged(groups []models.SecurityGroupVerdict) int {
	n := 0
	for _, g := range groups {
		n += len(g.Flagged)
	}
	return n
}

// buildReport assembles the shared part of an AuditReport.
func (e *ExposureEngine) buildReport(
	auditType AuditType,
	profile, accountID string,
	regions []string,
	findings []models.Finding,
) *models.AuditReport {
	if findings == nil {
		findings = []models.Finding{}
	}
	sortFindings(findings)
	return &models.AuditReport{
		ReportID:    uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		AuditType:   string(auditType),
		Profile:     profile,
		AccountID:   accountID,
		Regions:     regions,
		Summary:     computeSummary(findings),
		Findings:    findings,
	}
}
