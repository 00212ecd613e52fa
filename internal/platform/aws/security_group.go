package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/samber/lo"
)

// EnsureSecurityGroup ensures that a security group with the given name exists in the VPC.
func (c *RealClient) EnsureSecurityGroup(ctx context.Context, vpcID, name, description string, tags map[string]string) (*SecurityGroup, error) {
	return (&EnsureOperation[SecurityGroup]{
		Name:         name,
		ResourceType: "security group",
		Get: func(ctx context.Context) (*SecurityGroup, error) {
			return c.describeSecurityGroup(ctx, &ec2.DescribeSecurityGroupsInput{
				Filters: []ec2types.Filter{
					filter("vpc-id", vpcID),
					filter("group-name", name),
				},
			})
		},
		Create: func(ctx context.Context) (*SecurityGroup, error) {
			var out *SecurityGroup
			err := c.call(ctx, "ec2:CreateSecurityGroup", func(ctx context.Context) error {
				res, err := c.clients.EC2.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
					GroupName:         aws.String(name),
					Description:       aws.String(description),
					VpcId:             aws.String(vpcID),
					TagSpecifications: tagSpecs(ec2types.ResourceTypeSecurityGroup, tags),
				})
				if err != nil {
					return err
				}
				out = &SecurityGroup{ID: aws.ToString(res.GroupId), Name: name, VPCID: vpcID}
				return nil
			})
			return out, err
		},
	}).Execute(ctx, c)
}

func (c *RealClient) describeSecurityGroup(ctx context.Context, in *ec2.DescribeSecurityGroupsInput) (*SecurityGroup, error) {
	var out *SecurityGroup
	err := c.call(ctx, "ec2:DescribeSecurityGroups", func(ctx context.Context) error {
		res, err := c.clients.EC2.DescribeSecurityGroups(ctx, in)
		if err != nil {
			return err
		}
		out = nil
		if len(res.SecurityGroups) > 0 {
			out = toSecurityGroup(res.SecurityGroups[0])
		}
		return nil
	})
	return out, err
}

func toSecurityGroup(sg ec2types.SecurityGroup) *SecurityGroup {
	out := &SecurityGroup{
		ID:    aws.ToString(sg.GroupId),
		Name:  aws.ToString(sg.GroupName),
		VPCID: aws.ToString(sg.VpcId),
	}
	for _, p := range sg.IpPermissions {
		for _, r := range p.IpRanges {
			out.Rules = append(out.Rules, IngressRule{
				Protocol:    aws.ToString(p.IpProtocol),
				FromPort:    aws.ToInt32(p.FromPort),
				ToPort:      aws.ToInt32(p.ToPort),
				CIDR:        aws.ToString(r.CidrIp),
				Description: aws.ToString(r.Description),
			})
		}
	}
	return out
}

// EnsureIngressRules authorizes each rule not already present on the group.
// Rules are authorized one at a time so a duplicate reported by a concurrent
// writer only skips that rule.
func (c *RealClient) EnsureIngressRules(ctx context.Context, groupID string, rules []IngressRule) (int, error) {
	sg, err := c.describeSecurityGroup(ctx, &ec2.DescribeSecurityGroupsInput{GroupIds: []string{groupID}})
	if err != nil {
		return 0, fmt.Errorf("failed to describe security group %s: %w", groupID, err)
	}
	if sg == nil {
		return 0, fmt.Errorf("security group %s not found", groupID)
	}

	missing := lo.Filter(rules, func(r IngressRule, _ int) bool {
		return !lo.ContainsBy(sg.Rules, r.Matches)
	})

	created := 0
	for _, rule := range missing {
		err := c.call(ctx, "ec2:AuthorizeSecurityGroupIngress", func(ctx context.Context) error {
			_, err := c.clients.EC2.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
				GroupId:       aws.String(groupID),
				IpPermissions: []ec2types.IpPermission{toIPPermission(rule)},
			})
			return err
		})
		switch {
		case errors.Is(err, ErrAlreadyExists):
			c.logger.Debug().Str("group", groupID).Str("cidr", rule.CIDR).Msg("ingress rule already present")
		case err != nil:
			return created, fmt.Errorf("failed to authorize %s %d-%d from %s: %w",
				rule.Protocol, rule.FromPort, rule.ToPort, rule.CIDR, err)
		default:
			created++
		}
	}
	return created, nil
}

func toIPPermission(r IngressRule) ec2types.IpPermission {
	ipRange := ec2types.IpRange{CidrIp: aws.String(r.CIDR)}
	if r.Description != "" {
		ipRange.Description = aws.String(r.Description)
	}
	return ec2types.IpPermission{
		IpProtocol: aws.String(r.Protocol),
		FromPort:   aws.Int32(r.FromPort),
		ToPort:     aws.Int32(r.ToPort),
		IpRanges:   []ec2types.IpRange{ipRange},
	}
}
