package awssecurity

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2svc "github.com/aws/aws-sdk-go-v2/service/ec2"
	kmssvc "github.com/aws/aws-sdk-go-v2/service/kms"
	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"
	sqssvc "github.com/aws/aws-sdk-go-v2/service/sqs"
)

// s3APIClient is the narrow S3 interface used by the bucket collector. It
// embeds ListBucketsAPIClient so the SDK paginator can be used directly.
type s3APIClient interface {
	s3svc.ListBucketsAPIClient
	GetBucketAcl(ctx context.Context, params *s3svc.GetBucketAclInput, optFns ...func(*s3svc.Options)) (*s3svc.GetBucketAclOutput, error)
	GetBucketPolicyStatus(ctx context.Context, params *s3svc.GetBucketPolicyStatusInput, optFns ...func(*s3svc.Options)) (*s3svc.GetBucketPolicyStatusOutput, error)
	GetBucketPolicy(ctx context.Context, params *s3svc.GetBucketPolicyInput, optFns ...func(*s3svc.Options)) (*s3svc.GetBucketPolicyOutput, error)
	GetBucketEncryption(ctx context.Context, params *s3svc.GetBucketEncryptionInput, optFns ...func(*s3svc.Options)) (*s3svc.GetBucketEncryptionOutput, error)
}

// ec2SecurityAPIClient is the narrow EC2 interface used for security-group
// collection and remediation.
type ec2SecurityAPIClient interface {
	ec2svc.DescribeSecurityGroupRulesAPIClient
	ec2svc.DescribeSecurityGroupsAPIClient
	ModifySecurityGroupRules(ctx context.Context, params *ec2svc.ModifySecurityGroupRulesInput, optFns ...func(*ec2svc.Options)) (*ec2svc.ModifySecurityGroupRulesOutput, error)
}

// sqsAPIClient is the narrow SQS interface used for queue collection,
// encryption changes and message round trips.
type sqsAPIClient interface {
	sqssvc.ListQueuesAPIClient
	GetQueueAttributes(ctx context.Context, params *sqssvc.GetQueueAttributesInput, optFns ...func(*sqssvc.Options)) (*sqssvc.GetQueueAttributesOutput, error)
	SetQueueAttributes(ctx context.Context, params *sqssvc.SetQueueAttributesInput, optFns ...func(*sqssvc.Options)) (*sqssvc.SetQueueAttributesOutput, error)
	SendMessage(ctx context.Context, params *sqssvc.SendMessageInput, optFns ...func(*sqssvc.Options)) (*sqssvc.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqssvc.ReceiveMessageInput, optFns ...func(*sqssvc.Options)) (*sqssvc.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqssvc.DeleteMessageInput, optFns ...func(*sqssvc.Options)) (*sqssvc.DeleteMessageOutput, error)
}

// kmsAPIClient is the narrow KMS interface used to list and verify keys.
type kmsAPIClient interface {
	kmssvc.ListKeysAPIClient
	DescribeKey(ctx context.Context, params *kmssvc.DescribeKeyInput, optFns ...func(*kmssvc.Options)) (*kmssvc.DescribeKeyOutput, error)
}

// secClients bundles all AWS service clients used by the collector and
// remediator.
type secClients struct {
	S3  s3APIClient
	EC2 ec2SecurityAPIClient
	SQS sqsAPIClient
	KMS kmsAPIClient
}

// secClientFactory creates secClients from an AWS config.
// Injection point: tests replace this with a function returning fake clients.
type secClientFactory func(cfg aws.Config) *secClients

// newDefaultSecClients creates production AWS SDK clients from the given config.
func newDefaultSecClients(cfg aws.Config) *secClients {
	return &secClients{
		S3:  s3svc.NewFromConfig(cfg),
		EC2: ec2svc.NewFromConfig(cfg),
		SQS: sqssvc.NewFromConfig(cfg),
		KMS: kmssvc.NewFromConfig(cfg),
	}
}
