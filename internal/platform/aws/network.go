package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/imamik/dblab/internal/util/labels"
)

// DefaultRouteCIDR is the destination of the internet route.
const DefaultRouteCIDR = "0.0.0.0/0"

// EnsureVPC ensures that a VPC tagged with name exists with the given CIDR
// and DNS hostnames enabled.
func (c *RealClient) EnsureVPC(ctx context.Context, name, cidr string, tags map[string]string) (*VPC, error) {
	vpc, err := (&EnsureOperation[VPC]{
		Name:         name,
		ResourceType: "vpc",
		Get: func(ctx context.Context) (*VPC, error) {
			return c.getVPC(ctx, name)
		},
		Create: func(ctx context.Context) (*VPC, error) {
			return c.createVPC(ctx, cidr, tags)
		},
		Validate: func(v *VPC) error {
			if v.CIDR != cidr {
				return fmt.Errorf("vpc %s exists but with different CIDR %s (expected %s)", name, v.CIDR, cidr)
			}
			return nil
		},
	}).Execute(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := c.ensureDNSHostnames(ctx, vpc.ID); err != nil {
		return nil, err
	}
	return vpc, nil
}

// ensureDNSHostnames turns on enableDnsHostnames when it is off. A freshly
// created VPC may not be visible yet; NotFound is retried.
func (c *RealClient) ensureDNSHostnames(ctx context.Context, vpcID string) error {
	var enabled bool
	err := c.call(ctx, "ec2:DescribeVpcAttribute", func(ctx context.Context) error {
		res, err := c.clients.EC2.DescribeVpcAttribute(ctx, &ec2.DescribeVpcAttributeInput{
			VpcId:     aws.String(vpcID),
			Attribute: ec2types.VpcAttributeNameEnableDnsHostnames,
		})
		if err != nil {
			return err
		}
		enabled = res.EnableDnsHostnames != nil && aws.ToBool(res.EnableDnsHostnames.Value)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to read DNS hostnames of %s: %w", vpcID, err)
	}
	if enabled {
		return nil
	}

	err = c.call(ctx, "ec2:ModifyVpcAttribute", func(ctx context.Context) error {
		_, err := c.clients.EC2.ModifyVpcAttribute(ctx, &ec2.ModifyVpcAttributeInput{
			VpcId:              aws.String(vpcID),
			EnableDnsHostnames: &ec2types.AttributeBooleanValue{Value: aws.Bool(true)},
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to enable DNS hostnames on %s: %w", vpcID, err)
	}
	return nil
}

func (c *RealClient) getVPC(ctx context.Context, name string) (*VPC, error) {
	var out *VPC
	err := c.call(ctx, "ec2:DescribeVpcs", func(ctx context.Context) error {
		res, err := c.clients.EC2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
			Filters: []ec2types.Filter{filter("tag:"+labels.KeyName, name)},
		})
		if err != nil {
			return err
		}
		out = nil
		if len(res.Vpcs) > 0 {
			v := res.Vpcs[0]
			out = &VPC{ID: aws.ToString(v.VpcId), CIDR: aws.ToString(v.CidrBlock)}
		}
		return nil
	})
	return out, err
}

func (c *RealClient) createVPC(ctx context.Context, cidr string, tags map[string]string) (*VPC, error) {
	var out *VPC
	err := c.call(ctx, "ec2:CreateVpc", func(ctx context.Context) error {
		res, err := c.clients.EC2.CreateVpc(ctx, &ec2.CreateVpcInput{
			CidrBlock:         aws.String(cidr),
			TagSpecifications: tagSpecs(ec2types.ResourceTypeVpc, tags),
		})
		if err != nil {
			return err
		}
		out = &VPC{ID: aws.ToString(res.Vpc.VpcId), CIDR: aws.ToString(res.Vpc.CidrBlock)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EnsureSubnet ensures that a subnet tagged with name exists in the VPC and
// assigns public IPs on launch.
func (c *RealClient) EnsureSubnet(ctx context.Context, vpcID, name, zone, cidr string, tags map[string]string) (*Subnet, error) {
	subnet, err := (&EnsureOperation[Subnet]{
		Name:         name,
		ResourceType: "subnet",
		Get: func(ctx context.Context) (*Subnet, error) {
			return c.getSubnet(ctx, vpcID, name)
		},
		Create: func(ctx context.Context) (*Subnet, error) {
			var out *Subnet
			err := c.call(ctx, "ec2:CreateSubnet", func(ctx context.Context) error {
				res, err := c.clients.EC2.CreateSubnet(ctx, &ec2.CreateSubnetInput{
					VpcId:             aws.String(vpcID),
					CidrBlock:         aws.String(cidr),
					AvailabilityZone:  aws.String(zone),
					TagSpecifications: tagSpecs(ec2types.ResourceTypeSubnet, tags),
				})
				if err != nil {
					return err
				}
				out = toSubnet(*res.Subnet)
				return nil
			})
			return out, err
		},
		Validate: func(s *Subnet) error {
			if s.Zone != zone {
				return fmt.Errorf("subnet %s exists but in zone %s (expected %s)", name, s.Zone, zone)
			}
			return nil
		},
	}).Execute(ctx, c)
	if err != nil {
		return nil, err
	}

	if !subnet.MapPublicIP {
		err := c.call(ctx, "ec2:ModifySubnetAttribute", func(ctx context.Context) error {
			_, err := c.clients.EC2.ModifySubnetAttribute(ctx, &ec2.ModifySubnetAttributeInput{
				SubnetId:            aws.String(subnet.ID),
				MapPublicIpOnLaunch: &ec2types.AttributeBooleanValue{Value: aws.Bool(true)},
			})
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to enable public IPs on subnet %s: %w", subnet.ID, err)
		}
		subnet.MapPublicIP = true
	}
	return subnet, nil
}

func (c *RealClient) getSubnet(ctx context.Context, vpcID, name string) (*Subnet, error) {
	var out *Subnet
	err := c.call(ctx, "ec2:DescribeSubnets", func(ctx context.Context) error {
		res, err := c.clients.EC2.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
			Filters: []ec2types.Filter{
				filter("vpc-id", vpcID),
				filter("tag:"+labels.KeyName, name),
			},
		})
		if err != nil {
			return err
		}
		out = nil
		if len(res.Subnets) > 0 {
			out = toSubnet(res.Subnets[0])
		}
		return nil
	})
	return out, err
}

func toSubnet(s ec2types.Subnet) *Subnet {
	return &Subnet{
		ID:          aws.ToString(s.SubnetId),
		Zone:        aws.ToString(s.AvailabilityZone),
		CIDR:        aws.ToString(s.CidrBlock),
		MapPublicIP: aws.ToBool(s.MapPublicIpOnLaunch),
	}
}

// EnsureInternetGateway ensures that a gateway tagged with name exists and is
// attached to the VPC.
func (c *RealClient) EnsureInternetGateway(ctx context.Context, vpcID, name string, tags map[string]string) (*InternetGateway, error) {
	igw, err := (&EnsureOperation[InternetGateway]{
		Name:         name,
		ResourceType: "internet gateway",
		Get: func(ctx context.Context) (*InternetGateway, error) {
			return c.getInternetGateway(ctx, name)
		},
		Create: func(ctx context.Context) (*InternetGateway, error) {
			var out *InternetGateway
			err := c.call(ctx, "ec2:CreateInternetGateway", func(ctx context.Context) error {
				res, err := c.clients.EC2.CreateInternetGateway(ctx, &ec2.CreateInternetGatewayInput{
					TagSpecifications: tagSpecs(ec2types.ResourceTypeInternetGateway, tags),
				})
				if err != nil {
					return err
				}
				out = &InternetGateway{ID: aws.ToString(res.InternetGateway.InternetGatewayId)}
				return nil
			})
			return out, err
		},
		Validate: func(g *InternetGateway) error {
			if g.AttachedVPC != "" && g.AttachedVPC != vpcID {
				return fmt.Errorf("internet gateway %s is attached to %s (expected %s)", name, g.AttachedVPC, vpcID)
			}
			return nil
		},
	}).Execute(ctx, c)
	if err != nil {
		return nil, err
	}

	if igw.AttachedVPC == vpcID {
		return igw, nil
	}
	err = c.call(ctx, "ec2:AttachInternetGateway", func(ctx context.Context) error {
		_, err := c.clients.EC2.AttachInternetGateway(ctx, &ec2.AttachInternetGatewayInput{
			InternetGatewayId: aws.String(igw.ID),
			VpcId:             aws.String(vpcID),
		})
		return err
	})
	if err != nil && !errors.Is(err, ErrAlreadyExists) {
		return nil, fmt.Errorf("failed to attach internet gateway %s: %w", igw.ID, err)
	}
	igw.AttachedVPC = vpcID
	return igw, nil
}

func (c *RealClient) getInternetGateway(ctx context.Context, name string) (*InternetGateway, error) {
	var out *InternetGateway
	err := c.call(ctx, "ec2:DescribeInternetGateways", func(ctx context.Context) error {
		res, err := c.clients.EC2.DescribeInternetGateways(ctx, &ec2.DescribeInternetGatewaysInput{
			Filters: []ec2types.Filter{filter("tag:"+labels.KeyName, name)},
		})
		if err != nil {
			return err
		}
		out = nil
		if len(res.InternetGateways) > 0 {
			g := res.InternetGateways[0]
			out = &InternetGateway{ID: aws.ToString(g.InternetGatewayId)}
			if len(g.Attachments) > 0 {
				out.AttachedVPC = aws.ToString(g.Attachments[0].VpcId)
			}
		}
		return nil
	})
	return out, err
}

// MainRouteTable returns the main route table of the VPC.
func (c *RealClient) MainRouteTable(ctx context.Context, vpcID string) (*RouteTable, error) {
	var tables []ec2types.RouteTable
	err := c.call(ctx, "ec2:DescribeRouteTables", func(ctx context.Context) error {
		res, err := c.clients.EC2.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
			Filters: []ec2types.Filter{
				filter("vpc-id", vpcID),
				filter("association.main", "true"),
			},
		})
		if err != nil {
			return err
		}
		tables = res.RouteTables
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("%w for vpc %s", ErrMainRouteTableNotFound, vpcID)
	}

	rt := &RouteTable{ID: aws.ToString(tables[0].RouteTableId)}
	for _, r := range tables[0].Routes {
		rt.Routes = append(rt.Routes, Route{
			Destination: aws.ToString(r.DestinationCidrBlock),
			GatewayID:   aws.ToString(r.GatewayId),
		})
	}
	return rt, nil
}

// EnsureDefaultRoute ensures 0.0.0.0/0 routes through the gateway.
func (c *RealClient) EnsureDefaultRoute(ctx context.Context, table *RouteTable, gatewayID string) error {
	for _, r := range table.Routes {
		if r.Destination != DefaultRouteCIDR {
			continue
		}
		if r.GatewayID == gatewayID {
			return nil
		}
		return fmt.Errorf("route table %s already routes %s via %s", table.ID, DefaultRouteCIDR, r.GatewayID)
	}

	err := c.call(ctx, "ec2:CreateRoute", func(ctx context.Context) error {
		_, err := c.clients.EC2.CreateRoute(ctx, &ec2.CreateRouteInput{
			RouteTableId:         aws.String(table.ID),
			DestinationCidrBlock: aws.String(DefaultRouteCIDR),
			GatewayId:            aws.String(gatewayID),
		})
		return err
	})
	if err != nil && !errors.Is(err, ErrAlreadyExists) {
		return fmt.Errorf("failed to create default route in %s: %w", table.ID, err)
	}
	table.Routes = append(table.Routes, Route{Destination: DefaultRouteCIDR, GatewayID: gatewayID})
	return nil
}
