package awssecurity

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
)

// defaultS3KMSKey names the AWS managed key used when a bucket selects
// aws:kms without naming a key.
const defaultS3KMSKey = "alias/aws/s3"

type listedBucket struct {
	name   string
	region string
}

// listBuckets pages through ListBuckets and returns every bucket name with
// its region when S3 reports one.
func listBuckets(ctx context.Context, client s3APIClient) ([]listedBucket, error) {
	var out []listedBucket
	p := s3svc.NewListBucketsPaginator(client, &s3svc.ListBucketsInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list S3 buckets: %w", err)
		}
		for _, b := range page.Buckets {
			out = append(out, listedBucket{
				name:   aws.ToString(b.Name),
				region: aws.ToString(b.BucketRegion),
			})
		}
	}
	return out, nil
}

// describeBucket reads the four access-control attributes of one bucket.
// Every lookup failure is recorded on the descriptor instead of returned.
func describeBucket(ctx context.Context, client s3APIClient, name string, log zerolog.Logger) models.BucketDescriptor {
	d := models.BucketDescriptor{Name: name}

	d.Owner, d.Grants, d.ACLUnavailable = bucketACL(ctx, client, name, log)
	d.PolicyStatus = bucketPolicyStatus(ctx, client, name)
	d.Policy = bucketPolicy(ctx, client, name, log)
	d.Encryption = bucketEncryption(ctx, client, name, log)

	return d
}

func bucketACL(ctx context.Context, client s3APIClient, name string, log zerolog.Logger) (string, []models.AccessGrant, bool) {
	out, err := client.GetBucketAcl(ctx, &s3svc.GetBucketAclInput{Bucket: aws.String(name)})
	if err != nil {
		log.Warn().Err(err).Str("bucket", name).Msg("bucket ACL unavailable")
		return "", nil, true
	}

	owner := ""
	if out.Owner != nil {
		owner = aws.ToString(out.Owner.ID)
	}

	grants := make([]models.AccessGrant, 0, len(out.Grants))
	for _, g := range out.Grants {
		grants = append(grants, toAccessGrant(g))
	}
	return owner, grants, false
}

// toAccessGrant maps an SDK grant onto the normalized grant shape. Group
// grantees are identified by URI, users by canonical ID or email.
func toAccessGrant(g s3types.Grant) models.AccessGrant {
	ag := models.AccessGrant{GranteeType: models.GranteeOther, Permission: string(g.Permission)}
	if g.Grantee == nil {
		return ag
	}
	switch g.Grantee.Type {
	case s3types.TypeGroup:
		ag.GranteeType = models.GranteeGroup
		ag.GranteeIdentifier = aws.ToString(g.Grantee.URI)
	case s3types.TypeCanonicalUser:
		ag.GranteeType = models.GranteeUser
		ag.GranteeIdentifier = aws.ToString(g.Grantee.ID)
	case s3types.TypeAmazonCustomerByEmail:
		ag.GranteeType = models.GranteeUser
		ag.GranteeIdentifier = aws.ToString(g.Grantee.EmailAddress)
	default:
		ag.GranteeIdentifier = aws.ToString(g.Grantee.ID)
	}
	return ag
}

// bucketPolicyStatus returns S3's own public verdict on the bucket policy, or
// nil when there is no policy or the lookup failed.
func bucketPolicyStatus(ctx context.Context, client s3APIClient, name string) *bool {
	out, err := client.GetBucketPolicyStatus(ctx, &s3svc.GetBucketPolicyStatusInput{Bucket: aws.String(name)})
	if err != nil || out.PolicyStatus == nil || out.PolicyStatus.IsPublic == nil {
		return nil
	}
	return aws.Bool(aws.ToBool(out.PolicyStatus.IsPublic))
}

// bucketPolicy fetches the policy document. NoSuchBucketPolicy is the only
// error that proves no policy is attached.
func bucketPolicy(ctx context.Context, client s3APIClient, name string, log zerolog.Logger) models.PolicyInput {
	out, err := client.GetBucketPolicy(ctx, &s3svc.GetBucketPolicyInput{Bucket: aws.String(name)})
	if err != nil {
		if apiErrorCode(err) == codeNoSuchBucketPolicy {
			return models.PolicyInput{State: models.PolicyNotAttached}
		}
		log.Warn().Err(err).Str("bucket", name).Msg("bucket policy unavailable")
		return models.PolicyInput{State: models.PolicyUnavailable}
	}
	return models.PolicyInput{Raw: aws.ToString(out.Policy), State: models.PolicyAttached}
}

// bucketEncryption reads default encryption. Any error, including a missing
// configuration, is reported as disabled.
func bucketEncryption(ctx context.Context, client s3APIClient, name string, log zerolog.Logger) models.EncryptionState {
	out, err := client.GetBucketEncryption(ctx, &s3svc.GetBucketEncryptionInput{Bucket: aws.String(name)})
	if err != nil {
		if apiErrorCode(err) != codeNoEncryptionConfig {
			log.Debug().Err(err).Str("bucket", name).Msg("bucket encryption lookup failed")
		}
		return models.EncryptionState{}
	}
	if out.ServerSideEncryptionConfiguration == nil {
		return models.EncryptionState{}
	}

	var state models.EncryptionState
	for _, r := range out.ServerSideEncryptionConfiguration.Rules {
		def := r.ApplyServerSideEncryptionByDefault
		if def == nil || def.SSEAlgorithm == "" {
			continue
		}
		state.Enabled = true
		if def.SSEAlgorithm == s3types.ServerSideEncryptionAwsKms || def.SSEAlgorithm == s3types.ServerSideEncryptionAwsKmsDsse {
			key := aws.ToString(def.KMSMasterKeyID)
			if key == "" {
				key = defaultS3KMSKey
			}
			return models.NewEncryptionState(true, key)
		}
	}
	return state
}
