package main

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/config"
	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
	"github.com/pankaj-dahiya-devops/secops-audit/internal/output"
	"github.com/pankaj-dahiya-devops/secops-audit/internal/providers/aws/common"
	awssecurity "github.com/pankaj-dahiya-devops/secops-audit/internal/providers/aws/security"
)

// ── test doubles ──────────────────────────────────────────────────────────────

const (
	allUsersURI = "http://acs.amazonaws.com/groups/global/AllUsers"
	ordersURL   = "https://sqs.us-east-1.amazonaws.com/111122223333/orders"
)

type fakeProvider struct {
	profileErr error
	regionsErr error
}

func (p *fakeProvider) LoadProfile(_ context.Context, name string) (*common.ProfileConfig, error) {
	if p.profileErr != nil {
		return nil, p.profileErr
	}
	if name == "" {
		name = "default"
	}
	return &common.ProfileConfig{ProfileName: name, AccountID: "111122223333", Region: "us-east-1"}, nil
}

func (p *fakeProvider) LoadAllProfiles(ctx context.Context) ([]*common.ProfileConfig, error) {
	pc, err := p.LoadProfile(ctx, "")
	if err != nil {
		return nil, err
	}
	return []*common.ProfileConfig{pc}, nil
}

func (p *fakeProvider) GetActiveRegions(context.Context, *common.ProfileConfig) ([]string, error) {
	if p.regionsErr != nil {
		return nil, p.regionsErr
	}
	return []string{"us-east-1"}, nil
}

func (p *fakeProvider) ConfigForRegion(_ *common.ProfileConfig, region string) aws.Config {
	return aws.Config{Region: region}
}

// fakeInventory is shared by the collector and remediator so applied changes
// show up on the next read.
type fakeInventory struct {
	mu      sync.Mutex
	buckets []models.BucketDescriptor
	groups  []models.SecurityGroupDescriptor
	queues  []models.QueueDescriptor
}

func (inv *fakeInventory) CollectBuckets(context.Context, *common.ProfileConfig, common.AWSClientProvider) ([]models.BucketDescriptor, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return slices.Clone(inv.buckets), nil
}

func (inv *fakeInventory) CollectSecurityGroups(context.Context, *common.ProfileConfig, common.AWSClientProvider, []string) ([]models.SecurityGroupDescriptor, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return slices.Clone(inv.groups), nil
}

func (inv *fakeInventory) CollectQueues(_ context.Context, _ *common.ProfileConfig, _ common.AWSClientProvider, _ []string, urls []string) ([]models.QueueDescriptor, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	var out []models.QueueDescriptor
	for _, q := range inv.queues {
		if len(urls) == 0 || slices.Contains(urls, q.URL) {
			out = append(out, q)
		}
	}
	return out, nil
}

type fakeRemediator struct {
	inv      *fakeInventory
	replaced []models.RemediationRequest
	tested   []string
}

func (r *fakeRemediator) ReplaceIngressRules(_ context.Context, _ *common.ProfileConfig, _ common.AWSClientProvider, region string, reqs []models.RemediationRequest) []models.RemediationResult {
	var out []models.RemediationResult
	for _, req := range reqs {
		r.replaced = append(r.replaced, req)
		out = append(out, models.RemediationResult{Request: req, Region: region, Status: models.ActionApplied})
	}
	return out
}

func (r *fakeRemediator) EnableQueueEncryption(_ context.Context, _ *common.ProfileConfig, _ common.AWSClientProvider, q models.QueueDescriptor, keyID string) error {
	r.inv.mu.Lock()
	defer r.inv.mu.Unlock()
	for i := range r.inv.queues {
		if r.inv.queues[i].URL == q.URL {
			r.inv.queues[i].Encryption = models.NewEncryptionState(true, keyID)
		}
	}
	return nil
}

func (r *fakeRemediator) TestQueueMessaging(_ context.Context, _ *common.ProfileConfig, _ common.AWSClientProvider, q models.QueueDescriptor) models.MessageTestResult {
	r.inv.mu.Lock()
	r.tested = append(r.tested, q.URL)
	r.inv.mu.Unlock()
	return models.MessageTestResult{
		QueueURL:         q.URL,
		QueueName:        q.Name,
		Region:           q.Region,
		Sent:             true,
		MessageID:        "msg-" + q.Name,
		Received:         true,
		MessagesReceived: 1,
	}
}

func (r *fakeRemediator) ListKMSKeys(_ context.Context, _ *common.ProfileConfig, _ common.AWSClientProvider, region string) ([]models.KMSKey, error) {
	return []models.KMSKey{{KeyID: "1234abcd-key", KeyManager: "CUSTOMER", Region: region, Description: "queue key"}}, nil
}

func (r *fakeRemediator) DescribeKMSKey(_ context.Context, _ *common.ProfileConfig, _ common.AWSClientProvider, region, keyID string) (models.KMSKey, error) {
	if keyID == "alias/disabled" {
		return models.KMSKey{}, errors.New("key is disabled")
	}
	return models.KMSKey{KeyID: keyID, Region: region}, nil
}

type fakeAppender struct {
	spreadsheetID string
	rows          [][]any
}

func (a *fakeAppender) Append(_ context.Context, id, _ string, rows [][]any) error {
	a.spreadsheetID = id
	a.rows = append(a.rows, rows...)
	return nil
}

// ── harness ───────────────────────────────────────────────────────────────────

type testHarness struct {
	env        *environment
	stdout     *bytes.Buffer
	provider   *fakeProvider
	inv        *fakeInventory
	remediator *fakeRemediator
	appender   *fakeAppender
	cfg        *config.Config
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	// No .env lookups or real config files from the developer machine.
	t.Chdir(t.TempDir())

	h := &testHarness{
		stdout:   &bytes.Buffer{},
		provider: &fakeProvider{},
		inv: &fakeInventory{
			buckets: []models.BucketDescriptor{
				{
					Name:   "public-assets",
					Owner:  "owner-id",
					Grants: []models.AccessGrant{{GranteeType: models.GranteeGroup, GranteeIdentifier: allUsersURI, Permission: "READ"}},
					Policy: models.PolicyInput{State: models.PolicyNotAttached},
				},
				{
					Name:       "private-logs",
					Grants:     []models.AccessGrant{{GranteeType: models.GranteeUser, GranteeIdentifier: "owner-id", Permission: "FULL_CONTROL"}},
					Policy:     models.PolicyInput{State: models.PolicyAttached, Raw: `{"Statement":[{"Effect":"Allow","Principal":{"AWS":"arn:aws:iam::111122223333:root"},"Action":"s3:GetObject"}]}`},
					Encryption: models.EncryptionState{Enabled: true},
				},
			},
			groups: []models.SecurityGroupDescriptor{{
				GroupID: "sg-0abc",
				Region:  "us-east-1",
				Rules: []models.IngressRule{
					{RuleID: "sgr-ssh", GroupID: "sg-0abc", Protocol: "tcp", FromPort: 22, ToPort: 22, SourceCIDRv4: "0.0.0.0/0"},
					{RuleID: "sgr-web", GroupID: "sg-0abc", Protocol: "tcp", FromPort: 443, ToPort: 443, SourceCIDRv4: "0.0.0.0/0"},
				},
			}},
			queues: []models.QueueDescriptor{{
				URL:    ordersURL,
				Name:   "orders",
				Region: "us-east-1",
				Policy: models.PolicyInput{State: models.PolicyAttached, Raw: `{"Statement":[{"Effect":"Allow","Principal":"*","Action":"sqs:*"}]}`},
			}},
		},
		appender: &fakeAppender{},
		cfg:      config.Default(),
	}
	h.remediator = &fakeRemediator{inv: h.inv}

	h.env = &environment{
		stdout:     h.stdout,
		stderr:     &bytes.Buffer{},
		loadConfig: func(string) (*config.Config, error) { return h.cfg, nil },
		newProvider: func(zerolog.Logger) common.AWSClientProvider {
			return h.provider
		},
		newCollector: func(zerolog.Logger, int) awssecurity.ExposureCollector {
			return h.inv
		},
		newRemediator: func(zerolog.Logger) awssecurity.Remediator {
			return h.remediator
		},
		newAppender: func(context.Context, string) (output.ValuesAppender, error) {
			return h.appender, nil
		},
	}
	return h
}

func (h *testHarness) run(args ...string) (string, error) {
	h.stdout.Reset()
	root := newRootCmd(h.env)
	root.SetArgs(append([]string{"--no-color"}, args...))
	err := root.ExecuteContext(context.Background())
	return h.stdout.String(), err
}
