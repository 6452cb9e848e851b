package awssecurity

import (
	"context"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
	"github.com/pankaj-dahiya-devops/secops-audit/internal/providers/aws/common"
)

// ExposureCollector collects raw exposure descriptors from an AWS account.
//
// Implementations must never score or produce findings. A failure to list a
// resource type is returned as an error; a failure to read one attribute of
// one resource is recorded on its descriptor (Unavailable policy, missing
// ACL) so the rest of the audit can complete.
type ExposureCollector interface {
	// CollectBuckets lists every bucket in the account with its ACL, policy
	// status, policy document and default encryption.
	CollectBuckets(
		ctx context.Context,
		profile *common.ProfileConfig,
		provider common.AWSClientProvider,
	) ([]models.BucketDescriptor, error)

	// CollectSecurityGroups returns every security group rule in regions,
	// grouped by security group.
	CollectSecurityGroups(
		ctx context.Context,
		profile *common.ProfileConfig,
		provider common.AWSClientProvider,
		regions []string,
	) ([]models.SecurityGroupDescriptor, error)

	// CollectQueues returns the queues named by queueURLs, or every queue in
	// regions when queueURLs is empty.
	CollectQueues(
		ctx context.Context,
		profile *common.ProfileConfig,
		provider common.AWSClientProvider,
		regions []string,
		queueURLs []string,
	) ([]models.QueueDescriptor, error)
}

// QueueTester checks that a queue accepts and delivers messages. It writes
// to the queue, so callers run it only on request.
type QueueTester interface {
	// TestQueueMessaging sends one test message and receives from the queue.
	// Failures are recorded on the result, never returned.
	TestQueueMessaging(
		ctx context.Context,
		profile *common.ProfileConfig,
		provider common.AWSClientProvider,
		queue models.QueueDescriptor,
	) models.MessageTestResult
}

// Remediator applies changes proposed by an audit. It never decides what to
// change; callers pass requests built by internal/exposure.
type Remediator interface {
	QueueTester

	// ReplaceIngressRules rewrites each rule in reqs in place. Every request
	// yields one result; a failed request does not stop the rest.
	ReplaceIngressRules(
		ctx context.Context,
		profile *common.ProfileConfig,
		provider common.AWSClientProvider,
		region string,
		reqs []models.RemediationRequest,
	) []models.RemediationResult

	// EnableQueueEncryption turns on KMS encryption with kmsKeyID, or
	// SQS-managed SSE when kmsKeyID is empty.
	EnableQueueEncryption(
		ctx context.Context,
		profile *common.ProfileConfig,
		provider common.AWSClientProvider,
		queue models.QueueDescriptor,
		kmsKeyID string,
	) error

	// ListKMSKeys returns the enabled KMS keys in region.
	ListKMSKeys(
		ctx context.Context,
		profile *common.ProfileConfig,
		provider common.AWSClientProvider,
		region string,
	) ([]models.KMSKey, error)

	// DescribeKMSKey resolves keyID (ID, ARN or alias) and fails unless the
	// key exists and is enabled.
	DescribeKMSKey(
		ctx context.Context,
		profile *common.ProfileConfig,
		provider common.AWSClientProvider,
		region string,
		keyID string,
	) (models.KMSKey, error)
}
