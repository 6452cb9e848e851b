package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/exposure"
	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
	"github.com/pankaj-dahiya-devops/secops-audit/internal/policy"
	"github.com/pankaj-dahiya-devops/secops-audit/internal/providers/aws/common"
	awssecurity "github.com/pankaj-dahiya-devops/secops-audit/internal/providers/aws/security"
)

// Report actions.
const (
	ActionRemediateSG = "remediate-sg"
	ActionEncryptSQS  = "encrypt-sqs"
)

// RemediateOptions configures a security-group remediation run.
type RemediateOptions struct {
	Profile string
	Regions []string
	// Apply performs the changes. Without it the run only plans them.
	Apply bool
}

// EncryptOptions configures a queue encryption run.
type EncryptOptions struct {
	Profile   string
	Regions   []string
	QueueURLs []string
	// KMSKeyID selects KMS encryption; empty selects SQS-managed SSE.
	KMSKeyID string
	// Force re-encrypts queues that already have encryption enabled.
	Force bool
	Apply bool
	// TestMessages runs a send/receive round trip on each queue after its
	// encryption change is applied.
	TestMessages bool
}

// RemediationEngine plans and applies fixes for exposures found by the
// evaluator. It shares the collector with ExposureEngine and delegates every
// change to the Remediator.
type RemediationEngine struct {
	provider   common.AWSClientProvider
	collector  awssecurity.ExposureCollector
	remediator awssecurity.Remediator
	evaluator  exposure.Evaluator
	log        zerolog.Logger
}

// NewRemediationEngine constructs a RemediationEngine. policyCfg supplies the
// watched ports and may be nil.
func NewRemediationEngine(
	provider common.AWSClientProvider,
	collector awssecurity.ExposureCollector,
	remediator awssecurity.Remediator,
	policyCfg *policy.PolicyConfig,
	log zerolog.Logger,
) *RemediationEngine {
	return &RemediationEngine{
		provider:   provider,
		collector:  collector,
		remediator: remediator,
		evaluator:  evaluatorFromPolicy(policyCfg),
		log:        log,
	}
}

// RemediateSecurityGroups replaces every world-open remote access rule with
// its restricted counterpart. Without opts.Apply all requests are returned
// as PLANNED and nothing is changed.
func (e *RemediationEngine) RemediateSecurityGroups(ctx context.Context, opts RemediateOptions) (*models.RemediationReport, error) {
	profile, err := e.provider.LoadProfile(ctx, opts.Profile)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", opts.Profile, err)
	}
	regions, err := e.resolveRegions(ctx, profile, opts.Regions)
	if err != nil {
		return nil, fmt.Errorf("resolve regions for profile %q: %w", profile.ProfileName, err)
	}

	sgs, err := e.collector.CollectSecurityGroups(ctx, profile, e.provider, regions)
	if err != nil {
		return nil, fmt.Errorf("collect security groups: %w", err)
	}

	report := newRemediationReport(ActionRemediateSG, profile, !opts.Apply)
	for _, sg := range sgs {
		v, err := e.evaluator.EvaluateSecurityGroup(sg)
		if err != nil {
			e.log.Warn().Err(err).Str("group_id", sg.GroupID).Msg("skipping invalid security group")
			continue
		}
		if len(v.Remediations) == 0 {
			continue
		}
		if !opts.Apply {
			for _, req := range v.Remediations {
				report.Rules = append(report.Rules, models.RemediationResult{Request: req, Region: v.Region, Status: models.ActionPlanned})
			}
			continue
		}
		report.Rules = append(report.Rules, e.remediator.ReplaceIngressRules(ctx, profile, e.provider, v.Region, v.Remediations)...)
	}
	return report, nil
}

// EncryptQueues enables encryption on unencrypted queues. When a KMS key is
// requested it is verified in every queue region before anything changes.
// Applied changes are confirmed by reading the queue back.
func (e *RemediationEngine) EncryptQueues(ctx context.Context, opts EncryptOptions) (*models.RemediationReport, error) {
	profile, err := e.provider.LoadProfile(ctx, opts.Profile)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", opts.Profile, err)
	}

	regions := opts.Regions
	if len(regions) == 0 && len(opts.QueueURLs) == 0 {
		if regions, err = e.provider.GetActiveRegions(ctx, profile); err != nil {
			return nil, fmt.Errorf("resolve regions for profile %q: %w", profile.ProfileName, err)
		}
	}
	if len(regions) == 0 {
		regions = []string{profile.Region}
	}

	queues, err := e.collector.CollectQueues(ctx, profile, e.provider, regions, opts.QueueURLs)
	if err != nil {
		return nil, fmt.Errorf("collect queues: %w", err)
	}

	if opts.KMSKeyID != "" {
		if err := e.verifyKey(ctx, profile, opts.KMSKeyID, queues); err != nil {
			return nil, err
		}
	}

	target := models.NewEncryptionState(true, opts.KMSKeyID).Type()
	report := newRemediationReport(ActionEncryptSQS, profile, !opts.Apply)

	for _, q := range queues {
		res := models.QueueEncryptionResult{
			QueueURL:  q.URL,
			QueueName: q.Name,
			Region:    q.Region,
			Before:    q.Encryption.Type(),
			After:     target,
			KMSKeyID:  opts.KMSKeyID,
		}

		switch {
		case q.Policy.State == models.PolicyUnavailable:
			res.Status = models.ActionSkipped
			res.After = res.Before
			res.Message = "queue attributes could not be read"
		case q.Encryption.Enabled && !opts.Force:
			res.Status = models.ActionSkipped
			res.After = res.Before
			res.Message = "already encrypted"
		case !opts.Apply:
			res.Status = models.ActionPlanned
		default:
			e.applyEncryption(ctx, profile, q, opts.KMSKeyID, &res)
			if opts.TestMessages && res.Status == models.ActionApplied {
				e.testAfterEncryption(ctx, profile, q, &res)
			}
		}
		report.Queues = append(report.Queues, res)
	}
	return report, nil
}

func (e *RemediationEngine) applyEncryption(
	ctx context.Context,
	profile *common.ProfileConfig,
	q models.QueueDescriptor,
	keyID string,
	res *models.QueueEncryptionResult,
) {
	if err := e.remediator.EnableQueueEncryption(ctx, profile, e.provider, q, keyID); err != nil {
		res.Status = models.ActionFailed
		res.After = res.Before
		res.Message = err.Error()
		return
	}

	after, err := e.collector.CollectQueues(ctx, profile, e.provider, []string{q.Region}, []string{q.URL})
	if err != nil || len(after) != 1 {
		res.Status = models.ActionApplied
		res.Message = "applied; verification read failed"
		return
	}
	res.After = after[0].Encryption.Type()
	if !after[0].Encryption.Enabled {
		res.Status = models.ActionFailed
		res.Message = "encryption not reported after update"
		return
	}
	res.Status = models.ActionApplied
}

// testAfterEncryption records a message round trip on res. A failed round
// trip leaves the status APPLIED since the encryption change itself held.
func (e *RemediationEngine) testAfterEncryption(
	ctx context.Context,
	profile *common.ProfileConfig,
	q models.QueueDescriptor,
	res *models.QueueEncryptionResult,
) {
	mt := e.remediator.TestQueueMessaging(ctx, profile, e.provider, q)
	res.MessageTest = &mt
	if mt.OK() {
		return
	}
	e.log.Warn().Str("queue", q.URL).Str("send_error", mt.SendError).Str("receive_error", mt.ReceiveError).Msg("queue message test failed after encryption")
	note := "message test failed after encryption"
	if res.Message != "" {
		note = res.Message + "; " + note
	}
	res.Message = note
}

// verifyKey checks keyID once per distinct queue region.
func (e *RemediationEngine) verifyKey(ctx context.Context, profile *common.ProfileConfig, keyID string, queues []models.QueueDescriptor) error {
	checked := make(map[string]bool)
	for _, q := range queues {
		if checked[q.Region] {
			continue
		}
		checked[q.Region] = true
		if _, err := e.remediator.DescribeKMSKey(ctx, profile, e.provider, q.Region, keyID); err != nil {
			return fmt.Errorf("verify KMS key in %s: %w", q.Region, err)
		}
	}
	return nil
}

// ListKMSKeys returns the enabled encryption keys in region, defaulting to
// the profile's home region.
func (e *RemediationEngine) ListKMSKeys(ctx context.Context, profileName, region string) ([]models.KMSKey, error) {
	profile, err := e.provider.LoadProfile(ctx, profileName)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", profileName, err)
	}
	if region == "" {
		region = profile.Region
	}
	return e.remediator.ListKMSKeys(ctx, profile, e.provider, region)
}

func (e *RemediationEngine) resolveRegions(ctx context.Context, profile *common.ProfileConfig, explicit []string) ([]string, error) {
	if len(explicit) > 0 {
		return explicit, nil
	}
	return e.provider.GetActiveRegions(ctx, profile)
}

func newRemediationReport(action string, profile *common.ProfileConfig, dryRun bool) *models.RemediationReport {
	return &models.RemediationReport{
		ReportID:    uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Action:      action,
		Profile:     profile.ProfileName,
		AccountID:   profile.AccountID,
		DryRun:      dryRun,
	}
}
