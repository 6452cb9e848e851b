package common

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// ProfileConfig is one audited AWS profile: its SDK config, the account it
// resolves to, and clients bound to its home region.
type ProfileConfig struct {
	ProfileName string
	AccountID   string
	Region      string
	Config      aws.Config
	Clients     *ClientSet
}

// AWSClientProvider resolves profiles and the regions an audit fans out to.
type AWSClientProvider interface {
	// LoadProfile loads profile, or the SDK default chain when profile is "".
	LoadProfile(ctx context.Context, profile string) (*ProfileConfig, error)
	LoadAllProfiles(ctx context.Context) ([]*ProfileConfig, error)
	// GetActiveRegions lists the regions enabled for cfg's account.
	GetActiveRegions(ctx context.Context, cfg *ProfileConfig) ([]string, error)
	ConfigForRegion(cfg *ProfileConfig, region string) aws.Config
}

// STSClient resolves the caller's account.
type STSClient interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// EC2RegionClient lists regions. Security group reads live in awssecurity.
type EC2RegionClient interface {
	DescribeRegions(ctx context.Context, params *ec2.DescribeRegionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error)
}

// ClientSet is the pair of account-level clients a profile needs.
type ClientSet struct {
	STS STSClient
	EC2 EC2RegionClient
}

// ClientFactory builds a ClientSet; tests replace it with fakes.
type ClientFactory func(cfg aws.Config) *ClientSet

func NewClientSet(cfg aws.Config) *ClientSet {
	return &ClientSet{STS: sts.NewFromConfig(cfg), EC2: ec2.NewFromConfig(cfg)}
}
