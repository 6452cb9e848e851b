package engine

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
	"github.com/pankaj-dahiya-devops/secops-audit/internal/policy"
	"github.com/pankaj-dahiya-devops/secops-audit/internal/providers/aws/common"
	"github.com/pankaj-dahiya-devops/secops-audit/internal/rulepacks/network"
	s3pack "github.com/pankaj-dahiya-devops/secops-audit/internal/rulepacks/s3"
	sqspack "github.com/pankaj-dahiya-devops/secops-audit/internal/rulepacks/sqs"
	"github.com/pankaj-dahiya-devops/secops-audit/internal/rules"
)

// ── test doubles ──────────────────────────────────────────────────────────────

// stubProvider serves fixed profiles and regions.
type stubProvider struct {
	profiles   []*common.ProfileConfig
	regions    []string
	regionsErr error

	mu             sync.Mutex
	regionLookups  int
	requestedNames []string
}

func (p *stubProvider) LoadProfile(_ context.Context, name string) (*common.ProfileConfig, error) {
	p.mu.Lock()
	p.requestedNames = append(p.requestedNames, name)
	p.mu.Unlock()
	for _, pc := range p.profiles {
		if name == "" || pc.ProfileName == name {
			return pc, nil
		}
	}
	return nil, errors.New("profile not found")
}

func (p *stubProvider) LoadAllProfiles(context.Context) ([]*common.ProfileConfig, error) {
	return p.profiles, nil
}

func (p *stubProvider) GetActiveRegions(context.Context, *common.ProfileConfig) ([]string, error) {
	p.mu.Lock()
	p.regionLookups++
	p.mu.Unlock()
	return p.regions, p.regionsErr
}

func (p *stubProvider) ConfigForRegion(_ *common.ProfileConfig, region string) aws.Config {
	return aws.Config{Region: region}
}

// stubCollector returns fixed descriptors keyed by account ID.
type stubCollector struct {
	buckets map[string][]models.BucketDescriptor
	groups  map[string][]models.SecurityGroupDescriptor
	queues  map[string][]models.QueueDescriptor
	fail    map[string]error

	// after, when set, serves every queue read after the first one.
	after map[string]models.QueueDescriptor

	mu          sync.Mutex
	calls       []string
	queueRegion [][]string
}

func (c *stubCollector) record(call string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
}

func (c *stubCollector) CollectBuckets(_ context.Context, p *common.ProfileConfig, _ common.AWSClientProvider) ([]models.BucketDescriptor, error) {
	c.record("buckets")
	if err := c.fail[p.AccountID]; err != nil {
		return nil, err
	}
	return c.buckets[p.AccountID], nil
}

func (c *stubCollector) CollectSecurityGroups(_ context.Context, p *common.ProfileConfig, _ common.AWSClientProvider, _ []string) ([]models.SecurityGroupDescriptor, error) {
	c.record("security_groups")
	if err := c.fail[p.AccountID]; err != nil {
		return nil, err
	}
	return c.groups[p.AccountID], nil
}

func (c *stubCollector) CollectQueues(_ context.Context, p *common.ProfileConfig, _ common.AWSClientProvider, regions []string, urls []string) ([]models.QueueDescriptor, error) {
	c.record("queues")
	c.mu.Lock()
	c.queueRegion = append(c.queueRegion, regions)
	reread := len(c.queueRegion) > 1
	c.mu.Unlock()
	if err := c.fail[p.AccountID]; err != nil {
		return nil, err
	}
	if reread && c.after != nil {
		var out []models.QueueDescriptor
		for _, u := range urls {
			if q, ok := c.after[u]; ok {
				out = append(out, q)
			}
		}
		return out, nil
	}
	return c.queues[p.AccountID], nil
}

// stubRemediator records every change request.
type stubRemediator struct {
	keyErr error
	// sendFails lists queue URLs whose test message cannot be sent.
	sendFails []string

	mu        sync.Mutex
	replaced  []models.RemediationRequest
	encrypted []string
	keyChecks []string
	tested    []string
}

func (r *stubRemediator) ReplaceIngressRules(_ context.Context, _ *common.ProfileConfig, _ common.AWSClientProvider, region string, reqs []models.RemediationRequest) []models.RemediationResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.RemediationResult
	for _, req := range reqs {
		r.replaced = append(r.replaced, req)
		out = append(out, models.RemediationResult{Request: req, Region: region, Status: models.ActionApplied})
	}
	return out
}

func (r *stubRemediator) EnableQueueEncryption(_ context.Context, _ *common.ProfileConfig, _ common.AWSClientProvider, q models.QueueDescriptor, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encrypted = append(r.encrypted, q.URL)
	return nil
}

func (r *stubRemediator) TestQueueMessaging(_ context.Context, _ *common.ProfileConfig, _ common.AWSClientProvider, q models.QueueDescriptor) models.MessageTestResult {
	r.mu.Lock()
	r.tested = append(r.tested, q.URL)
	r.mu.Unlock()
	res := models.MessageTestResult{QueueURL: q.URL, QueueName: q.Name, Region: q.Region, Received: true}
	if slices.Contains(r.sendFails, q.URL) {
		res.SendError = "AccessDenied"
		return res
	}
	res.Sent = true
	res.MessageID = "msg-" + q.Name
	return res
}

func (r *stubRemediator) ListKMSKeys(_ context.Context, _ *common.ProfileConfig, _ common.AWSClientProvider, region string) ([]models.KMSKey, error) {
	return []models.KMSKey{{KeyID: "k-1", Region: region}}, nil
}

func (r *stubRemediator) DescribeKMSKey(_ context.Context, _ *common.ProfileConfig, _ common.AWSClientProvider, region, keyID string) (models.KMSKey, error) {
	r.mu.Lock()
	r.keyChecks = append(r.keyChecks, region)
	r.mu.Unlock()
	if r.keyErr != nil {
		return models.KMSKey{}, r.keyErr
	}
	return models.KMSKey{KeyID: keyID, Region: region}, nil
}

// ── fixtures ──────────────────────────────────────────────────────────────────

const (
	allUsersURI = "http://acs.amazonaws.com/groups/global/AllUsers"
	queueEast   = "https://sqs.us-east-1.amazonaws.com/111122223333/orders"
	queueWest   = "https://sqs.eu-west-1.amazonaws.com/111122223333/events"
)

var prodProfile = &common.ProfileConfig{ProfileName: "prod", AccountID: "111122223333", Region: "us-east-1"}

func publicBucket(name string) models.BucketDescriptor {
	return models.BucketDescriptor{
		Name:   name,
		Grants: []models.AccessGrant{{GranteeType: models.GranteeGroup, GranteeIdentifier: allUsersURI, Permission: "READ"}},
		Policy: models.PolicyInput{State: models.PolicyNotAttached},
	}
}

func privateBucket(name string) models.BucketDescriptor {
	return models.BucketDescriptor{
		Name:       name,
		Grants:     []models.AccessGrant{{GranteeType: models.GranteeUser, GranteeIdentifier: "owner", Permission: "FULL_CONTROL"}},
		Policy:     models.PolicyInput{State: models.PolicyAttached, Raw: `{"Statement":[{"Effect":"Allow","Principal":{"AWS":"arn:aws:iam::111122223333:root"},"Action":"s3:GetObject"}]}`},
		Encryption: models.EncryptionState{Enabled: true},
	}
}

func openGroup(id, region string) models.SecurityGroupDescriptor {
	return models.SecurityGroupDescriptor{
		GroupID: id,
		Region:  region,
		Rules: []models.IngressRule{
			{RuleID: id + "-ssh", GroupID: id, Protocol: "tcp", FromPort: 22, ToPort: 22, SourceCIDRv4: "0.0.0.0/0"},
			{RuleID: id + "-web", GroupID: id, Protocol: "tcp", FromPort: 443, ToPort: 443, SourceCIDRv4: "0.0.0.0/0"},
		},
	}
}

func openQueue(url, region string) models.QueueDescriptor {
	return models.QueueDescriptor{
		URL:    url,
		Region: region,
		Policy: models.PolicyInput{State: models.PolicyAttached, Raw: `{"Statement":[{"Effect":"Allow","Principal":"*","Action":"*"}]}`},
	}
}

func testRegistries() Registries {
	return Registries{
		models.DomainS3:      rules.NewRegistryFrom(s3pack.New()),
		models.DomainNetwork: rules.NewRegistryFrom(network.New()),
		models.DomainSQS:     rules.NewRegistryFrom(sqspack.New()),
	}
}

func newTestEngine(p *stubProvider, c *stubCollector, cfg *policy.PolicyConfig) *ExposureEngine {
	return NewExposureEngine(p, c, testRegistries(), cfg, zerolog.Nop()).WithWorkers(2)
}

func findingsFor(report *models.AuditReport, ruleID string) []models.Finding {
	var out []models.Finding
	for _, f := range report.Findings {
		if f.RuleID == ruleID {
			out = append(out, f)
		}
	}
	return out
}
