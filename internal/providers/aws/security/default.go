package awssecurity

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
	"github.com/pankaj-dahiya-devops/secops-audit/internal/providers/aws/common"
)

// DefaultMaxConcurrency bounds in-flight per-resource and per-region calls
// when the caller does not configure a limit.
const DefaultMaxConcurrency = 8

// DefaultExposureCollector is the production ExposureCollector.
// Buckets are listed once from us-east-1 and then read through a client in
// each bucket's own region. Security groups and queues are collected per
// region in parallel.
type DefaultExposureCollector struct {
	factory        secClientFactory
	log            zerolog.Logger
	maxConcurrency int
}

// NewDefaultExposureCollector returns a collector wired to production AWS SDK
// clients. maxConcurrency <= 0 selects DefaultMaxConcurrency.
func NewDefaultExposureCollector(log zerolog.Logger, maxConcurrency int) *DefaultExposureCollector {
	return NewDefaultExposureCollectorWithFactory(newDefaultSecClients, log, maxConcurrency)
}

// NewDefaultExposureCollectorWithFactory returns a collector that uses f to
// build its clients, allowing tests to inject fakes.
func NewDefaultExposureCollectorWithFactory(f secClientFactory, log zerolog.Logger, maxConcurrency int) *DefaultExposureCollector {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	return &DefaultExposureCollector{factory: f, log: log, maxConcurrency: maxConcurrency}
}

// CollectBuckets implements ExposureCollector.
func (c *DefaultExposureCollector) CollectBuckets(
	ctx context.Context,
	profile *common.ProfileConfig,
	provider common.AWSClientProvider,
) ([]models.BucketDescriptor, error) {
	global := c.factory(provider.ConfigForRegion(profile, globalRegion))

	listed, err := listBuckets(ctx, global.S3)
	if err != nil {
		return nil, err
	}

	clients := newRegionalClients(c.factory, func(region string) aws.Config {
		return provider.ConfigForRegion(profile, region)
	})

	out := make([]models.BucketDescriptor, len(listed))
	err = boundedEach(ctx, len(listed), c.maxConcurrency, func(ctx context.Context, i int) error {
		b := listed[i]
		region := b.region
		if region == "" {
			region = globalRegion
		}
		out[i] = describeBucket(ctx, clients.get(region).S3, b.name, c.log)
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.log.Debug().Str("profile", profile.ProfileName).Int("buckets", len(out)).Msg("buckets collected")
	return out, nil
}

// CollectSecurityGroups implements ExposureCollector. A region whose rules
// cannot be listed fails the whole call.
func (c *DefaultExposureCollector) CollectSecurityGroups(
	ctx context.Context,
	profile *common.ProfileConfig,
	provider common.AWSClientProvider,
	regions []string,
) ([]models.SecurityGroupDescriptor, error) {
	perRegion := make([][]models.SecurityGroupDescriptor, len(regions))
	err := boundedEach(ctx, len(regions), c.maxConcurrency, func(ctx context.Context, i int) error {
		region := regions[i]
		clients := c.factory(provider.ConfigForRegion(profile, region))
		groups, err := collectSecurityGroups(ctx, clients.EC2, region, c.log)
		if err != nil {
			return err
		}
		perRegion[i] = groups
		return nil
	})
	if err != nil {
		return nil, err
	}

	var all []models.SecurityGroupDescriptor
	for _, groups := range perRegion {
		all = append(all, groups...)
	}
	return all, nil
}

// CollectQueues implements ExposureCollector. Explicit queue URLs are read in
// the region encoded in their host, falling back to the first audited region.
func (c *DefaultExposureCollector) CollectQueues(
	ctx context.Context,
	profile *common.ProfileConfig,
	provider common.AWSClientProvider,
	regions []string,
	queueURLs []string,
) ([]models.QueueDescriptor, error) {
	clients := newRegionalClients(c.factory, func(region string) aws.Config {
		return provider.ConfigForRegion(profile, region)
	})

	type target struct{ url, region string }
	var targets []target

	if len(queueURLs) > 0 {
		fallback := profile.Region
		if len(regions) > 0 {
			fallback = regions[0]
		}
		for _, u := range queueURLs {
			region := RegionFromQueueURL(u)
			if region == "" {
				region = fallback
			}
			targets = append(targets, target{url: u, region: region})
		}
	} else {
		perRegion := make([][]string, len(regions))
		err := boundedEach(ctx, len(regions), c.maxConcurrency, func(ctx context.Context, i int) error {
			urls, err := listQueues(ctx, clients.get(regions[i]).SQS, regions[i])
			if err != nil {
				return err
			}
			perRegion[i] = urls
			return nil
		})
		if err != nil {
			return nil, err
		}
		for i, urls := range perRegion {
			for _, u := range urls {
				targets = append(targets, target{url: u, region: regions[i]})
			}
		}
	}

	out := make([]models.QueueDescriptor, len(targets))
	err := boundedEach(ctx, len(targets), c.maxConcurrency, func(ctx context.Context, i int) error {
		t := targets[i]
		out[i] = describeQueue(ctx, clients.get(t.region).SQS, t.url, t.region, c.log)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// boundedEach runs fn for indexes 0..n-1 with at most limit calls in flight.
// The first error cancels the shared context and is returned.
func boundedEach(ctx context.Context, n, limit int, fn func(ctx context.Context, i int) error) error {
	if limit <= 0 {
		limit = DefaultMaxConcurrency
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range n {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("collection cancelled: %w", ctxErr)
		}
		return err
	}
	return nil
}

// regionalClients lazily builds one client set per region.
type regionalClients struct {
	factory secClientFactory
	config  func(region string) aws.Config

	mu     sync.Mutex
	byName map[string]*secClients
}

func newRegionalClients(f secClientFactory, config func(string) aws.Config) *regionalClients {
	return &regionalClients{factory: f, config: config, byName: make(map[string]*secClients)}
}

func (r *regionalClients) get(region string) *secClients {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.byName[region]; ok {
		return c
	}
	c := r.factory(r.config(region))
	r.byName[region] = c
	return c
}
