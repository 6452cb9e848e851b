package awssecurity

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2svc "github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	kmssvc "github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	sqssvc "github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/providers/aws/common"
)

func apiErr(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code}
}

// fakeProvider hands out region-scoped configs without touching AWS.
type fakeProvider struct{}

func (fakeProvider) LoadProfile(context.Context, string) (*common.ProfileConfig, error) {
	return nil, errors.New("not implemented")
}
func (fakeProvider) LoadAllProfiles(context.Context) ([]*common.ProfileConfig, error) {
	return nil, errors.New("not implemented")
}
func (fakeProvider) GetActiveRegions(context.Context, *common.ProfileConfig) ([]string, error) {
	return nil, errors.New("not implemented")
}
func (fakeProvider) ConfigForRegion(_ *common.ProfileConfig, region string) aws.Config {
	return aws.Config{Region: region}
}

var testProfile = &common.ProfileConfig{ProfileName: "test", AccountID: "111122223333", Region: "us-east-1"}

// ── S3 ──────────────────────────────────────────────────────────────────────

type fakeBucket struct {
	region    string
	acl       *s3svc.GetBucketAclOutput
	aclErr    error
	isPublic  *bool
	statusErr error
	policy    string
	policyErr error
	enc       *s3types.ServerSideEncryptionConfiguration
	encErr    error
}

type fakeS3 struct {
	order   []string
	buckets map[string]fakeBucket
	listErr error
}

func (f *fakeS3) ListBuckets(context.Context, *s3svc.ListBucketsInput, ...func(*s3svc.Options)) (*s3svc.ListBucketsOutput, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := &s3svc.ListBucketsOutput{}
	for _, name := range f.order {
		b := s3types.Bucket{Name: aws.String(name)}
		if r := f.buckets[name].region; r != "" {
			b.BucketRegion = aws.String(r)
		}
		out.Buckets = append(out.Buckets, b)
	}
	return out, nil
}

func (f *fakeS3) GetBucketAcl(_ context.Context, in *s3svc.GetBucketAclInput, _ ...func(*s3svc.Options)) (*s3svc.GetBucketAclOutput, error) {
	b := f.buckets[aws.ToString(in.Bucket)]
	if b.aclErr != nil {
		return nil, b.aclErr
	}
	if b.acl == nil {
		return &s3svc.GetBucketAclOutput{}, nil
	}
	return b.acl, nil
}

func (f *fakeS3) GetBucketPolicyStatus(_ context.Context, in *s3svc.GetBucketPolicyStatusInput, _ ...func(*s3svc.Options)) (*s3svc.GetBucketPolicyStatusOutput, error) {
	b := f.buckets[aws.ToString(in.Bucket)]
	if b.statusErr != nil {
		return nil, b.statusErr
	}
	return &s3svc.GetBucketPolicyStatusOutput{PolicyStatus: &s3types.PolicyStatus{IsPublic: b.isPublic}}, nil
}

func (f *fakeS3) GetBucketPolicy(_ context.Context, in *s3svc.GetBucketPolicyInput, _ ...func(*s3svc.Options)) (*s3svc.GetBucketPolicyOutput, error) {
	b := f.buckets[aws.ToString(in.Bucket)]
	if b.policyErr != nil {
		return nil, b.policyErr
	}
	return &s3svc.GetBucketPolicyOutput{Policy: aws.String(b.policy)}, nil
}

func (f *fakeS3) GetBucketEncryption(_ context.Context, in *s3svc.GetBucketEncryptionInput, _ ...func(*s3svc.Options)) (*s3svc.GetBucketEncryptionOutput, error) {
	b := f.buckets[aws.ToString(in.Bucket)]
	if b.encErr != nil {
		return nil, b.encErr
	}
	return &s3svc.GetBucketEncryptionOutput{ServerSideEncryptionConfiguration: b.enc}, nil
}

// ── EC2 ─────────────────────────────────────────────────────────────────────

type fakeEC2 struct {
	rules    []ec2types.SecurityGroupRule
	rulesErr error
	groups   []ec2types.SecurityGroup
	groupErr error

	mu        sync.Mutex
	modified  []*ec2svc.ModifySecurityGroupRulesInput
	modifyErr map[string]error
}

func (f *fakeEC2) DescribeSecurityGroupRules(context.Context, *ec2svc.DescribeSecurityGroupRulesInput, ...func(*ec2svc.Options)) (*ec2svc.DescribeSecurityGroupRulesOutput, error) {
	if f.rulesErr != nil {
		return nil, f.rulesErr
	}
	return &ec2svc.DescribeSecurityGroupRulesOutput{SecurityGroupRules: f.rules}, nil
}

func (f *fakeEC2) DescribeSecurityGroups(context.Context, *ec2svc.DescribeSecurityGroupsInput, ...func(*ec2svc.Options)) (*ec2svc.DescribeSecurityGroupsOutput, error) {
	if f.groupErr != nil {
		return nil, f.groupErr
	}
	return &ec2svc.DescribeSecurityGroupsOutput{SecurityGroups: f.groups}, nil
}

func (f *fakeEC2) ModifySecurityGroupRules(_ context.Context, in *ec2svc.ModifySecurityGroupRulesInput, _ ...func(*ec2svc.Options)) (*ec2svc.ModifySecurityGroupRulesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modified = append(f.modified, in)
	if err := f.modifyErr[aws.ToString(in.SecurityGroupRules[0].SecurityGroupRuleId)]; err != nil {
		return nil, err
	}
	return &ec2svc.ModifySecurityGroupRulesOutput{Return: aws.Bool(true)}, nil
}

// ── SQS ─────────────────────────────────────────────────────────────────────

type fakeSQS struct {
	urls    []string
	listErr error
	attrs   map[string]map[string]string
	attrErr map[string]error

	sendErr    error
	receiveErr error
	// inbox holds messages returned by ReceiveMessage in addition to any
	// message sent through the fake.
	inbox []sqstypes.Message

	mu      sync.Mutex
	set     []*sqssvc.SetQueueAttributesInput
	sent    []*sqssvc.SendMessageInput
	deleted []string
}

func (f *fakeSQS) ListQueues(context.Context, *sqssvc.ListQueuesInput, ...func(*sqssvc.Options)) (*sqssvc.ListQueuesOutput, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &sqssvc.ListQueuesOutput{QueueUrls: f.urls}, nil
}

func (f *fakeSQS) GetQueueAttributes(_ context.Context, in *sqssvc.GetQueueAttributesInput, _ ...func(*sqssvc.Options)) (*sqssvc.GetQueueAttributesOutput, error) {
	url := aws.ToString(in.QueueUrl)
	if err := f.attrErr[url]; err != nil {
		return nil, err
	}
	return &sqssvc.GetQueueAttributesOutput{Attributes: f.attrs[url]}, nil
}

func (f *fakeSQS) SetQueueAttributes(_ context.Context, in *sqssvc.SetQueueAttributesInput, _ ...func(*sqssvc.Options)) (*sqssvc.SetQueueAttributesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set = append(f.set, in)
	return &sqssvc.SetQueueAttributesOutput{}, nil
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqssvc.SendMessageInput, _ ...func(*sqssvc.Options)) (*sqssvc.SendMessageOutput, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, in)
	id := fmt.Sprintf("msg-%d", len(f.sent))
	f.inbox = append(f.inbox, sqstypes.Message{
		MessageId:         aws.String(id),
		Body:              in.MessageBody,
		ReceiptHandle:     aws.String("rh-" + id),
		MessageAttributes: in.MessageAttributes,
	})
	return &sqssvc.SendMessageOutput{MessageId: aws.String(id)}, nil
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, in *sqssvc.ReceiveMessageInput, _ ...func(*sqssvc.Options)) (*sqssvc.ReceiveMessageOutput, error) {
	if f.receiveErr != nil {
		return nil, f.receiveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n := min(int(in.MaxNumberOfMessages), len(f.inbox))
	out := &sqssvc.ReceiveMessageOutput{Messages: slices.Clone(f.inbox[:n])}
	f.inbox = f.inbox[n:]
	return out, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqssvc.DeleteMessageInput, _ ...func(*sqssvc.Options)) (*sqssvc.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqssvc.DeleteMessageOutput{}, nil
}

// ── KMS ─────────────────────────────────────────────────────────────────────

type fakeKMS struct {
	keys []kmstypes.KeyMetadata
}

func (f *fakeKMS) ListKeys(context.Context, *kmssvc.ListKeysInput, ...func(*kmssvc.Options)) (*kmssvc.ListKeysOutput, error) {
	out := &kmssvc.ListKeysOutput{}
	for _, k := range f.keys {
		out.Keys = append(out.Keys, kmstypes.KeyListEntry{KeyId: k.KeyId, KeyArn: k.Arn})
	}
	return out, nil
}

func (f *fakeKMS) DescribeKey(_ context.Context, in *kmssvc.DescribeKeyInput, _ ...func(*kmssvc.Options)) (*kmssvc.DescribeKeyOutput, error) {
	id := aws.ToString(in.KeyId)
	for i := range f.keys {
		if aws.ToString(f.keys[i].KeyId) == id || aws.ToString(f.keys[i].Arn) == id {
			return &kmssvc.DescribeKeyOutput{KeyMetadata: &f.keys[i]}, nil
		}
	}
	return nil, apiErr(codeKMSNotFound)
}

// factoryFor returns a secClientFactory serving the supplied clients per
// region; regions without an entry get the "" entry.
func factoryFor(byRegion map[string]*secClients) secClientFactory {
	return func(cfg aws.Config) *secClients {
		if c, ok := byRegion[cfg.Region]; ok {
			return c
		}
		return byRegion[""]
	}
}
