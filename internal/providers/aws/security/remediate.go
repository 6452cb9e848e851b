package awssecurity

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2svc "github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	sqssvc "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
	"github.com/pankaj-dahiya-devops/secops-audit/internal/providers/aws/common"
)

// DefaultRemediator is the production Remediator.
type DefaultRemediator struct {
	factory secClientFactory
	log     zerolog.Logger
}

// NewDefaultRemediator returns a remediator wired to production AWS SDK clients.
func NewDefaultRemediator(log zerolog.Logger) *DefaultRemediator {
	return &DefaultRemediator{factory: newDefaultSecClients, log: log}
}

// NewDefaultRemediatorWithFactory returns a remediator that uses f to build
// its clients.
func NewDefaultRemediatorWithFactory(f secClientFactory, log zerolog.Logger) *DefaultRemediator {
	return &DefaultRemediator{factory: f, log: log}
}

// ReplaceIngressRules implements Remediator. Each request is sent as its own
// ModifySecurityGroupRules call so one rejected rule does not block others.
func (r *DefaultRemediator) ReplaceIngressRules(
	ctx context.Context,
	profile *common.ProfileConfig,
	provider common.AWSClientProvider,
	region string,
	reqs []models.RemediationRequest,
) []models.RemediationResult {
	clients := r.factory(provider.ConfigForRegion(profile, region))

	results := make([]models.RemediationResult, 0, len(reqs))
	for _, req := range reqs {
		res := models.RemediationResult{Request: req, Region: region, Status: models.ActionApplied}
		if err := modifyRule(ctx, clients.EC2, req); err != nil {
			res.Status = models.ActionFailed
			res.Error = err.Error()
			r.log.Error().Err(err).Str("group_id", req.GroupID).Str("rule_id", req.RuleID).Msg("rule update failed")
		} else {
			r.log.Info().Str("group_id", req.GroupID).Str("rule_id", req.RuleID).Msg("rule updated")
		}
		results = append(results, res)
	}
	return results
}

func modifyRule(ctx context.Context, client ec2SecurityAPIClient, req models.RemediationRequest) error {
	rule := &ec2types.SecurityGroupRuleRequest{
		IpProtocol:  aws.String(req.Protocol),
		FromPort:    aws.Int32(int32(req.FromPort)),
		ToPort:      aws.Int32(int32(req.ToPort)),
		Description: aws.String(req.Description),
	}
	if req.SourceCIDRv4 != "" {
		rule.CidrIpv4 = aws.String(req.SourceCIDRv4)
	}
	if req.SourceCIDRv6 != "" {
		rule.CidrIpv6 = aws.String(req.SourceCIDRv6)
	}

	out, err := client.ModifySecurityGroupRules(ctx, &ec2svc.ModifySecurityGroupRulesInput{
		GroupId: aws.String(req.GroupID),
		SecurityGroupRules: []ec2types.SecurityGroupRuleUpdate{{
			SecurityGroupRuleId: aws.String(req.RuleID),
			SecurityGroupRule:   rule,
		}},
	})
	if err != nil {
		return fmt.Errorf("modify rule %s in %s: %w", req.RuleID, req.GroupID, err)
	}
	if out.Return != nil && !aws.ToBool(out.Return) {
		return fmt.Errorf("modify rule %s in %s: request rejected", req.RuleID, req.GroupID)
	}
	return nil
}

// EnableQueueEncryption implements Remediator. A KMS key replaces any
// SQS-managed encryption; without a key SQS-managed SSE is switched on.
func (r *DefaultRemediator) EnableQueueEncryption(
	ctx context.Context,
	profile *common.ProfileConfig,
	provider common.AWSClientProvider,
	queue models.QueueDescriptor,
	kmsKeyID string,
) error {
	clients := r.factory(provider.ConfigForRegion(profile, queueRegion(queue, profile)))

	attrs := map[string]string{attrSqsManagedSSE: "true"}
	if kmsKeyID != "" {
		attrs = map[string]string{attrKmsMasterKeyID: kmsKeyID}
	}

	_, err := clients.SQS.SetQueueAttributes(ctx, &sqssvc.SetQueueAttributesInput{
		QueueUrl:   aws.String(queue.URL),
		Attributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("set encryption on %s: %w", queue.URL, err)
	}

	r.log.Info().Str("queue", queue.URL).Str("kms_key_id", kmsKeyID).Msg("queue encryption enabled")
	return nil
}

// TestQueueMessaging implements QueueTester.
func (r *DefaultRemediator) TestQueueMessaging(
	ctx context.Context,
	profile *common.ProfileConfig,
	provider common.AWSClientProvider,
	queue models.QueueDescriptor,
) models.MessageTestResult {
	clients := r.factory(provider.ConfigForRegion(profile, queueRegion(queue, profile)))
	res := roundTrip(ctx, clients.SQS, queue, r.log)
	r.log.Debug().Str("queue", queue.URL).Bool("sent", res.Sent).Bool("received", res.Received).Msg("queue message test")
	return res
}

// ListKMSKeys implements Remediator.
func (r *DefaultRemediator) ListKMSKeys(
	ctx context.Context,
	profile *common.ProfileConfig,
	provider common.AWSClientProvider,
	region string,
) ([]models.KMSKey, error) {
	clients := r.factory(provider.ConfigForRegion(profile, region))
	return listKMSKeys(ctx, clients.KMS, region, r.log)
}

// DescribeKMSKey implements Remediator.
func (r *DefaultRemediator) DescribeKMSKey(
	ctx context.Context,
	profile *common.ProfileConfig,
	provider common.AWSClientProvider,
	region string,
	keyID string,
) (models.KMSKey, error) {
	clients := r.factory(provider.ConfigForRegion(profile, region))
	return verifyKMSKey(ctx, clients.KMS, keyID, region)
}

func queueRegion(q models.QueueDescriptor, profile *common.ProfileConfig) string {
	if q.Region != "" {
		return q.Region
	}
	if region := RegionFromQueueURL(q.URL); region != "" {
		return region
	}
	return profile.Region
}
