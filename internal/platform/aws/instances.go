package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/samber/lo"
)

// defaultRootDevice is used when the image does not report its root device.
const defaultRootDevice = "/dev/sda1"

// RunInstance launches a single instance. The client token makes repeated
// calls with the same opts return the originally launched instance.
func (c *RealClient) RunInstance(ctx context.Context, opts InstanceCreateOpts) (*Instance, error) {
	in := &ec2.RunInstancesInput{
		ImageId:          aws.String(opts.ImageID),
		InstanceType:     ec2types.InstanceType(opts.InstanceType),
		MinCount:         aws.Int32(1),
		MaxCount:         aws.Int32(1),
		SubnetId:         aws.String(opts.SubnetID),
		SecurityGroupIds: []string{opts.SecurityGroupID},
		BlockDeviceMappings: []ec2types.BlockDeviceMapping{
			rootVolume(opts.RootDeviceName, opts),
		},
		TagSpecifications: append(
			tagSpecs(ec2types.ResourceTypeInstance, opts.Tags),
			tagSpecs(ec2types.ResourceTypeVolume, opts.Tags)...,
		),
	}
	if opts.ClientToken != "" {
		in.ClientToken = aws.String(opts.ClientToken)
	}
	if opts.KeyName != "" {
		in.KeyName = aws.String(opts.KeyName)
	}
	if opts.InstanceProfileName != "" {
		in.IamInstanceProfile = &ec2types.IamInstanceProfileSpecification{Name: aws.String(opts.InstanceProfileName)}
	}

	var out *Instance
	err := c.call(ctx, "ec2:RunInstances", func(ctx context.Context) error {
		res, err := c.clients.EC2.RunInstances(ctx, in)
		if err != nil {
			return err
		}
		if len(res.Instances) == 0 {
			return fmt.Errorf("run instances returned no instances")
		}
		out = toInstance(res.Instances[0])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func rootVolume(device string, opts InstanceCreateOpts) ec2types.BlockDeviceMapping {
	if device == "" {
		device = defaultRootDevice
	}
	ebs := &ec2types.EbsBlockDevice{DeleteOnTermination: aws.Bool(true)}
	if opts.Storage.Type != "" {
		ebs.VolumeType = ec2types.VolumeType(opts.Storage.Type)
	}
	if opts.Storage.SizeGB > 0 {
		ebs.VolumeSize = aws.Int32(int32(opts.Storage.SizeGB))
	}
	if opts.Storage.IOPS > 0 {
		ebs.Iops = aws.Int32(int32(opts.Storage.IOPS))
	}
	if opts.Storage.Throughput > 0 && opts.Storage.Type == string(ec2types.VolumeTypeGp3) {
		ebs.Throughput = aws.Int32(int32(opts.Storage.Throughput))
	}
	return ec2types.BlockDeviceMapping{DeviceName: aws.String(device), Ebs: ebs}
}

// DescribeInstances lists instances carrying every tag in one of the given states.
func (c *RealClient) DescribeInstances(ctx context.Context, tags map[string]string, states []string) ([]Instance, error) {
	filters := tagFilters(tags)
	if len(states) > 0 {
		filters = append(filters, filter("instance-state-name", states...))
	}

	var (
		instances []Instance
		token     *string
	)
	for {
		err := c.call(ctx, "ec2:DescribeInstances", func(ctx context.Context) error {
			res, err := c.clients.EC2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
				Filters:   filters,
				NextToken: token,
			})
			if err != nil {
				return err
			}
			for _, r := range res.Reservations {
				instances = append(instances, lo.Map(r.Instances, func(i ec2types.Instance, _ int) Instance {
					return *toInstance(i)
				})...)
			}
			token = res.NextToken
			return nil
		})
		if err != nil {
			return nil, err
		}
		if aws.ToString(token) == "" {
			return instances, nil
		}
	}
}

// GetInstance looks up one instance by id.
func (c *RealClient) GetInstance(ctx context.Context, id string) (*Instance, error) {
	return describe(ctx, c, "ec2:DescribeInstances", func(ctx context.Context) (*Instance, error) {
		res, err := c.clients.EC2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{id}})
		if err != nil {
			return nil, err
		}
		for _, r := range res.Reservations {
			if len(r.Instances) > 0 {
				return toInstance(r.Instances[0]), nil
			}
		}
		return nil, nil
	})
}

func toInstance(i ec2types.Instance) *Instance {
	out := &Instance{
		ID:        aws.ToString(i.InstanceId),
		PublicIP:  aws.ToString(i.PublicIpAddress),
		PrivateIP: aws.ToString(i.PrivateIpAddress),
		Tags:      fromEC2Tags(i.Tags),
	}
	if i.State != nil {
		out.State = string(i.State.Name)
	}
	if i.Placement != nil {
		out.AvailabilityZone = aws.ToString(i.Placement.AvailabilityZone)
	}
	return out
}
