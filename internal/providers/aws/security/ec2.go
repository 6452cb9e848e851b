package awssecurity

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2svc "github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/rs/zerolog"

	"github.com/pankaj-dahiya-devops/secops-audit/internal/models"
)

// collectSecurityGroups lists every security group rule in region and groups
// them by GroupId in first-seen order. Group names are looked up separately;
// a failure there only leaves GroupName empty.
func collectSecurityGroups(ctx context.Context, client ec2SecurityAPIClient, region string, log zerolog.Logger) ([]models.SecurityGroupDescriptor, error) {
	var (
		order  []string
		byID   = make(map[string]*models.SecurityGroupDescriptor)
		ruleIn = ec2svc.NewDescribeSecurityGroupRulesPaginator(client, &ec2svc.DescribeSecurityGroupRulesInput{})
	)
	for ruleIn.HasMorePages() {
		page, err := ruleIn.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe security group rules in %s: %w", region, err)
		}
		for _, r := range page.SecurityGroupRules {
			gid := aws.ToString(r.GroupId)
			sg, ok := byID[gid]
			if !ok {
				sg = &models.SecurityGroupDescriptor{GroupID: gid, Region: region}
				byID[gid] = sg
				order = append(order, gid)
			}
			sg.Rules = append(sg.Rules, models.IngressRule{
				RuleID:       aws.ToString(r.SecurityGroupRuleId),
				GroupID:      gid,
				IsEgress:     aws.ToBool(r.IsEgress),
				Protocol:     aws.ToString(r.IpProtocol),
				FromPort:     int(aws.ToInt32(r.FromPort)),
				ToPort:       int(aws.ToInt32(r.ToPort)),
				SourceCIDRv4: aws.ToString(r.CidrIpv4),
				SourceCIDRv6: aws.ToString(r.CidrIpv6),
				Description:  aws.ToString(r.Description),
			})
		}
	}

	names, err := securityGroupNames(ctx, client)
	if err != nil {
		log.Warn().Err(err).Str("region", region).Msg("security group names unavailable")
	}

	out := make([]models.SecurityGroupDescriptor, 0, len(order))
	for _, gid := range order {
		sg := byID[gid]
		sg.GroupName = names[gid]
		out = append(out, *sg)
	}
	return out, nil
}

func securityGroupNames(ctx context.Context, client ec2SecurityAPIClient) (map[string]string, error) {
	names := make(map[string]string)
	p := ec2svc.NewDescribeSecurityGroupsPaginator(client, &ec2svc.DescribeSecurityGroupsInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return names, fmt.Errorf("describe security groups: %w", err)
		}
		for _, sg := range page.SecurityGroups {
			names[aws.ToString(sg.GroupId)] = aws.ToString(sg.GroupName)
		}
	}
	return names, nil
}
