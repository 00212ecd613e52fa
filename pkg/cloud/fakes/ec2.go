package fakes

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// FakeEC2 simulates the EC2 API in memory.
type FakeEC2 struct {
	recorder

	VPCs             []ec2types.Vpc
	Subnets          []ec2types.Subnet
	InternetGateways []ec2types.InternetGateway
	RouteTables      []ec2types.RouteTable
	SecurityGroups   []ec2types.SecurityGroup
	Images           []ec2types.Image
	Instances        []ec2types.Instance

	// SkipMainRouteTable suppresses the main route table normally created with a VPC.
	SkipMainRouteTable bool
	// LaunchState is the state new instances start in; defaults to running.
	LaunchState ec2types.InstanceStateName
	// DNSHostnames is the enableDnsHostnames attribute keyed by VPC ID.
	DNSHostnames map[string]bool

	nextID       int
	clientTokens map[string][]string
}

// NewFakeEC2 returns an empty fake.
func NewFakeEC2() *FakeEC2 {
	return &FakeEC2{
		recorder:     newRecorder(),
		nextID:       1,
		clientTokens: map[string][]string{},
		DNSHostnames: map[string]bool{},
	}
}

// createOps are the operations that create or mutate cloud resources.
var createOps = []string{
	"CreateVpc", "CreateSubnet", "CreateInternetGateway", "AttachInternetGateway",
	"CreateRoute", "CreateSecurityGroup", "AuthorizeSecurityGroupIngress", "RunInstances",
}

// CreateCalls returns the total number of resource-creating calls.
func (f *FakeEC2) CreateCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, op := range createOps {
		n += f.calls[op]
	}
	return n
}

// AddImage registers an image owned by the caller.
func (f *FakeEC2) AddImage(id, name string, arch ec2types.ArchitectureValues, created time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Images = append(f.Images, ec2types.Image{
		ImageId:      aws.String(id),
		Name:         aws.String(name),
		Architecture: arch,
		CreationDate: aws.String(created.UTC().Format(time.RFC3339)),
		State:        ec2types.ImageStateAvailable,
	})
}

// AddInstance registers a pre-existing instance.
func (f *FakeEC2) AddInstance(inst ec2types.Instance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if inst.InstanceId == nil {
		inst.InstanceId = aws.String(f.id("i"))
	}
	if inst.State == nil {
		inst.State = &ec2types.InstanceState{Name: ec2types.InstanceStateNameRunning}
	}
	f.Instances = append(f.Instances, inst)
}

// SetInstanceState moves an instance to state, as an out-of-band stop or
// termination would.
func (f *FakeEC2) SetInstanceState(id string, state ec2types.InstanceStateName) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.Instances {
		if aws.ToString(f.Instances[i].InstanceId) == id {
			f.Instances[i].State = &ec2types.InstanceState{Name: state}
			if state == ec2types.InstanceStateNameTerminated {
				f.Instances[i].PublicIpAddress = nil
			}
		}
	}
}

func (f *FakeEC2) id(prefix string) string {
	id := fmt.Sprintf("%s-%08x", prefix, f.nextID)
	f.nextID++
	return id
}

func (f *FakeEC2) DescribeVpcs(_ context.Context, in *ec2.DescribeVpcsInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DescribeVpcs"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeVpcsOutput{}
	for _, v := range f.VPCs {
		if len(in.VpcIds) > 0 && !slices.Contains(in.VpcIds, aws.ToString(v.VpcId)) {
			continue
		}
		if matchFilters(in.Filters, v.Tags, map[string]string{"vpc-id": aws.ToString(v.VpcId), "cidr": aws.ToString(v.CidrBlock)}) {
			out.Vpcs = append(out.Vpcs, v)
		}
	}
	return out, nil
}

func (f *FakeEC2) CreateVpc(_ context.Context, in *ec2.CreateVpcInput, _ ...func(*ec2.Options)) (*ec2.CreateVpcOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("CreateVpc"); err != nil {
		return nil, err
	}
	vpc := ec2types.Vpc{
		VpcId:     aws.String(f.id("vpc")),
		CidrBlock: in.CidrBlock,
		State:     ec2types.VpcStateAvailable,
		Tags:      tagsFor(in.TagSpecifications, ec2types.ResourceTypeVpc),
	}
	f.VPCs = append(f.VPCs, vpc)
	if !f.SkipMainRouteTable {
		rtbID := f.id("rtb")
		f.RouteTables = append(f.RouteTables, ec2types.RouteTable{
			RouteTableId: aws.String(rtbID),
			VpcId:        vpc.VpcId,
			Routes: []ec2types.Route{{
				DestinationCidrBlock: in.CidrBlock,
				GatewayId:            aws.String("local"),
				State:                ec2types.RouteStateActive,
			}},
			Associations: []ec2types.RouteTableAssociation{{Main: aws.Bool(true), RouteTableId: aws.String(rtbID)}},
		})
	}
	return &ec2.CreateVpcOutput{Vpc: &vpc}, nil
}

func (f *FakeEC2) ModifyVpcAttribute(_ context.Context, in *ec2.ModifyVpcAttributeInput, _ ...func(*ec2.Options)) (*ec2.ModifyVpcAttributeOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("ModifyVpcAttribute"); err != nil {
		return nil, err
	}
	for _, v := range f.VPCs {
		if aws.ToString(v.VpcId) == aws.ToString(in.VpcId) {
			if in.EnableDnsHostnames != nil {
				f.DNSHostnames[aws.ToString(v.VpcId)] = aws.ToBool(in.EnableDnsHostnames.Value)
			}
			return &ec2.ModifyVpcAttributeOutput{}, nil
		}
	}
	return nil, apiError("InvalidVpcID.NotFound", "vpc not found")
}

func (f *FakeEC2) DescribeVpcAttribute(_ context.Context, in *ec2.DescribeVpcAttributeInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcAttributeOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DescribeVpcAttribute"); err != nil {
		return nil, err
	}
	id := aws.ToString(in.VpcId)
	if !slices.ContainsFunc(f.VPCs, func(v ec2types.Vpc) bool { return aws.ToString(v.VpcId) == id }) {
		return nil, apiError("InvalidVpcID.NotFound", "vpc not found")
	}
	out := &ec2.DescribeVpcAttributeOutput{VpcId: in.VpcId}
	if in.Attribute == ec2types.VpcAttributeNameEnableDnsHostnames {
		out.EnableDnsHostnames = &ec2types.AttributeBooleanValue{Value: aws.Bool(f.DNSHostnames[id])}
	}
	return out, nil
}

func (f *FakeEC2) DescribeSubnets(_ context.Context, in *ec2.DescribeSubnetsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DescribeSubnets"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeSubnetsOutput{}
	for _, s := range f.Subnets {
		attrs := map[string]string{
			"vpc-id":            aws.ToString(s.VpcId),
			"subnet-id":         aws.ToString(s.SubnetId),
			"availability-zone": aws.ToString(s.AvailabilityZone),
		}
		if matchFilters(in.Filters, s.Tags, attrs) {
			out.Subnets = append(out.Subnets, s)
		}
	}
	return out, nil
}

func (f *FakeEC2) CreateSubnet(_ context.Context, in *ec2.CreateSubnetInput, _ ...func(*ec2.Options)) (*ec2.CreateSubnetOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("CreateSubnet"); err != nil {
		return nil, err
	}
	for _, s := range f.Subnets {
		if aws.ToString(s.VpcId) == aws.ToString(in.VpcId) && aws.ToString(s.CidrBlock) == aws.ToString(in.CidrBlock) {
			return nil, apiError("InvalidSubnet.Conflict", "cidr conflicts with another subnet")
		}
	}
	subnet := ec2types.Subnet{
		SubnetId:            aws.String(f.id("subnet")),
		VpcId:               in.VpcId,
		CidrBlock:           in.CidrBlock,
		AvailabilityZone:    in.AvailabilityZone,
		MapPublicIpOnLaunch: aws.Bool(false),
		Tags:                tagsFor(in.TagSpecifications, ec2types.ResourceTypeSubnet),
	}
	f.Subnets = append(f.Subnets, subnet)
	return &ec2.CreateSubnetOutput{Subnet: &subnet}, nil
}

func (f *FakeEC2) ModifySubnetAttribute(_ context.Context, in *ec2.ModifySubnetAttributeInput, _ ...func(*ec2.Options)) (*ec2.ModifySubnetAttributeOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("ModifySubnetAttribute"); err != nil {
		return nil, err
	}
	for i := range f.Subnets {
		if aws.ToString(f.Subnets[i].SubnetId) == aws.ToString(in.SubnetId) {
			if in.MapPublicIpOnLaunch != nil {
				f.Subnets[i].MapPublicIpOnLaunch = in.MapPublicIpOnLaunch.Value
			}
			return &ec2.ModifySubnetAttributeOutput{}, nil
		}
	}
	return nil, apiError("InvalidSubnetID.NotFound", "subnet not found")
}

func (f *FakeEC2) DescribeInternetGateways(_ context.Context, in *ec2.DescribeInternetGatewaysInput, _ ...func(*ec2.Options)) (*ec2.DescribeInternetGatewaysOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DescribeInternetGateways"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeInternetGatewaysOutput{}
	for _, g := range f.InternetGateways {
		attrs := map[string]string{"internet-gateway-id": aws.ToString(g.InternetGatewayId)}
		if len(g.Attachments) > 0 {
			attrs["attachment.vpc-id"] = aws.ToString(g.Attachments[0].VpcId)
		}
		if matchFilters(in.Filters, g.Tags, attrs) {
			out.InternetGateways = append(out.InternetGateways, g)
		}
	}
	return out, nil
}

func (f *FakeEC2) CreateInternetGateway(_ context.Context, in *ec2.CreateInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.CreateInternetGatewayOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("CreateInternetGateway"); err != nil {
		return nil, err
	}
	igw := ec2types.InternetGateway{
		InternetGatewayId: aws.String(f.id("igw")),
		Tags:              tagsFor(in.TagSpecifications, ec2types.ResourceTypeInternetGateway),
	}
	f.InternetGateways = append(f.InternetGateways, igw)
	return &ec2.CreateInternetGatewayOutput{InternetGateway: &igw}, nil
}

func (f *FakeEC2) AttachInternetGateway(_ context.Context, in *ec2.AttachInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.AttachInternetGatewayOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("AttachInternetGateway"); err != nil {
		return nil, err
	}
	for i := range f.InternetGateways {
		g := &f.InternetGateways[i]
		if aws.ToString(g.InternetGatewayId) != aws.ToString(in.InternetGatewayId) {
			continue
		}
		if len(g.Attachments) > 0 {
			return nil, apiError("Resource.AlreadyAssociated", "gateway already attached")
		}
		g.Attachments = []ec2types.InternetGatewayAttachment{{VpcId: in.VpcId, State: ec2types.AttachmentStatusAttached}}
		return &ec2.AttachInternetGatewayOutput{}, nil
	}
	return nil, apiError("InvalidInternetGatewayID.NotFound", "gateway not found")
}

func (f *FakeEC2) DescribeRouteTables(_ context.Context, in *ec2.DescribeRouteTablesInput, _ ...func(*ec2.Options)) (*ec2.DescribeRouteTablesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DescribeRouteTables"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeRouteTablesOutput{}
	for _, rt := range f.RouteTables {
		main := slices.ContainsFunc(rt.Associations, func(a ec2types.RouteTableAssociation) bool { return aws.ToBool(a.Main) })
		attrs := map[string]string{
			"vpc-id":           aws.ToString(rt.VpcId),
			"route-table-id":   aws.ToString(rt.RouteTableId),
			"association.main": strconv.FormatBool(main),
		}
		if matchFilters(in.Filters, rt.Tags, attrs) {
			out.RouteTables = append(out.RouteTables, rt)
		}
	}
	return out, nil
}

func (f *FakeEC2) CreateRoute(_ context.Context, in *ec2.CreateRouteInput, _ ...func(*ec2.Options)) (*ec2.CreateRouteOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("CreateRoute"); err != nil {
		return nil, err
	}
	for i := range f.RouteTables {
		rt := &f.RouteTables[i]
		if aws.ToString(rt.RouteTableId) != aws.ToString(in.RouteTableId) {
			continue
		}
		for _, r := range rt.Routes {
			if aws.ToString(r.DestinationCidrBlock) == aws.ToString(in.DestinationCidrBlock) {
				return nil, apiError("RouteAlreadyExists", "route already exists")
			}
		}
		rt.Routes = append(rt.Routes, ec2types.Route{
			DestinationCidrBlock: in.DestinationCidrBlock,
			GatewayId:            in.GatewayId,
			State:                ec2types.RouteStateActive,
		})
		return &ec2.CreateRouteOutput{Return: aws.Bool(true)}, nil
	}
	return nil, apiError("InvalidRouteTableID.NotFound", "route table not found")
}

func (f *FakeEC2) DescribeSecurityGroups(_ context.Context, in *ec2.DescribeSecurityGroupsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DescribeSecurityGroups"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeSecurityGroupsOutput{}
	for _, sg := range f.SecurityGroups {
		if len(in.GroupIds) > 0 && !slices.Contains(in.GroupIds, aws.ToString(sg.GroupId)) {
			continue
		}
		attrs := map[string]string{
			"vpc-id":     aws.ToString(sg.VpcId),
			"group-id":   aws.ToString(sg.GroupId),
			"group-name": aws.ToString(sg.GroupName),
		}
		if matchFilters(in.Filters, sg.Tags, attrs) {
			out.SecurityGroups = append(out.SecurityGroups, sg)
		}
	}
	return out, nil
}

func (f *FakeEC2) CreateSecurityGroup(_ context.Context, in *ec2.CreateSecurityGroupInput, _ ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("CreateSecurityGroup"); err != nil {
		return nil, err
	}
	for _, sg := range f.SecurityGroups {
		if aws.ToString(sg.VpcId) == aws.ToString(in.VpcId) && aws.ToString(sg.GroupName) == aws.ToString(in.GroupName) {
			return nil, apiError("InvalidGroup.Duplicate", "security group already exists")
		}
	}
	sg := ec2types.SecurityGroup{
		GroupId:     aws.String(f.id("sg")),
		GroupName:   in.GroupName,
		Description: in.Description,
		VpcId:       in.VpcId,
		Tags:        tagsFor(in.TagSpecifications, ec2types.ResourceTypeSecurityGroup),
	}
	f.SecurityGroups = append(f.SecurityGroups, sg)
	return &ec2.CreateSecurityGroupOutput{GroupId: sg.GroupId}, nil
}

func (f *FakeEC2) AuthorizeSecurityGroupIngress(_ context.Context, in *ec2.AuthorizeSecurityGroupIngressInput, _ ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("AuthorizeSecurityGroupIngress"); err != nil {
		return nil, err
	}
	for i := range f.SecurityGroups {
		sg := &f.SecurityGroups[i]
		if aws.ToString(sg.GroupId) != aws.ToString(in.GroupId) {
			continue
		}
		for _, p := range in.IpPermissions {
			for _, r := range p.IpRanges {
				if hasPermission(sg.IpPermissions, p, aws.ToString(r.CidrIp)) {
					return nil, apiError("InvalidPermission.Duplicate", "rule already exists")
				}
			}
		}
		for _, p := range in.IpPermissions {
			for _, r := range p.IpRanges {
				sg.IpPermissions = append(sg.IpPermissions, ec2types.IpPermission{
					IpProtocol: p.IpProtocol,
					FromPort:   p.FromPort,
					ToPort:     p.ToPort,
					IpRanges:   []ec2types.IpRange{r},
				})
			}
		}
		return &ec2.AuthorizeSecurityGroupIngressOutput{Return: aws.Bool(true)}, nil
	}
	return nil, apiError("InvalidGroup.NotFound", "security group not found")
}

func hasPermission(perms []ec2types.IpPermission, want ec2types.IpPermission, cidr string) bool {
	for _, p := range perms {
		if aws.ToString(p.IpProtocol) != aws.ToString(want.IpProtocol) ||
			aws.ToInt32(p.FromPort) != aws.ToInt32(want.FromPort) ||
			aws.ToInt32(p.ToPort) != aws.ToInt32(want.ToPort) {
			continue
		}
		for _, r := range p.IpRanges {
			if aws.ToString(r.CidrIp) == cidr {
				return true
			}
		}
	}
	return false
}

func (f *FakeEC2) DescribeImages(_ context.Context, in *ec2.DescribeImagesInput, _ ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DescribeImages"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeImagesOutput{}
	for _, id := range in.ImageIds {
		if !slices.ContainsFunc(f.Images, func(img ec2types.Image) bool { return aws.ToString(img.ImageId) == id }) {
			return nil, apiError("InvalidAMIID.NotFound", fmt.Sprintf("image %s does not exist", id))
		}
	}
	for _, img := range f.Images {
		if len(in.ImageIds) > 0 && !slices.Contains(in.ImageIds, aws.ToString(img.ImageId)) {
			continue
		}
		attrs := map[string]string{
			"name":         aws.ToString(img.Name),
			"architecture": string(img.Architecture),
			"state":        string(img.State),
		}
		if matchFilters(in.Filters, img.Tags, attrs) {
			out.Images = append(out.Images, img)
		}
	}
	return out, nil
}

func (f *FakeEC2) RunInstances(_ context.Context, in *ec2.RunInstancesInput, _ ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.beginFor("RunInstances", string(in.InstanceType)); err != nil {
		return nil, err
	}

	token := aws.ToString(in.ClientToken)
	if ids, ok := f.clientTokens[token]; ok && token != "" {
		out := &ec2.RunInstancesOutput{}
		for _, inst := range f.Instances {
			if slices.Contains(ids, aws.ToString(inst.InstanceId)) {
				out.Instances = append(out.Instances, inst)
			}
		}
		return out, nil
	}

	var subnet *ec2types.Subnet
	for i := range f.Subnets {
		if aws.ToString(f.Subnets[i].SubnetId) == aws.ToString(in.SubnetId) {
			subnet = &f.Subnets[i]
		}
	}
	if subnet == nil {
		return nil, apiError("InvalidSubnetID.NotFound", "subnet not found")
	}

	state := f.LaunchState
	if state == "" {
		state = ec2types.InstanceStateNameRunning
	}

	out := &ec2.RunInstancesOutput{ReservationId: aws.String(f.id("r"))}
	var ids []string
	for range aws.ToInt32(in.MaxCount) {
		n := f.nextID
		inst := ec2types.Instance{
			InstanceId:       aws.String(f.id("i")),
			ImageId:          in.ImageId,
			InstanceType:     in.InstanceType,
			SubnetId:         subnet.SubnetId,
			VpcId:            subnet.VpcId,
			Placement:        &ec2types.Placement{AvailabilityZone: subnet.AvailabilityZone},
			PrivateIpAddress: aws.String(fmt.Sprintf("10.0.%d.%d", n/250, n%250+4)),
			PublicIpAddress:  aws.String(fmt.Sprintf("54.1.%d.%d", n/250, n%250+4)),
			State:            &ec2types.InstanceState{Name: state},
			Tags:             tagsFor(in.TagSpecifications, ec2types.ResourceTypeInstance),
			LaunchTime:       aws.Time(time.Now()),
		}
		f.Instances = append(f.Instances, inst)
		out.Instances = append(out.Instances, inst)
		ids = append(ids, aws.ToString(inst.InstanceId))
	}
	if token != "" {
		f.clientTokens[token] = ids
	}
	return out, nil
}

func (f *FakeEC2) DescribeInstances(_ context.Context, in *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DescribeInstances"); err != nil {
		return nil, err
	}
	res := ec2types.Reservation{}
	for _, inst := range f.Instances {
		if len(in.InstanceIds) > 0 && !slices.Contains(in.InstanceIds, aws.ToString(inst.InstanceId)) {
			continue
		}
		attrs := map[string]string{
			"instance-id":         aws.ToString(inst.InstanceId),
			"subnet-id":           aws.ToString(inst.SubnetId),
			"vpc-id":              aws.ToString(inst.VpcId),
			"instance-state-name": string(inst.State.Name),
		}
		if matchFilters(in.Filters, inst.Tags, attrs) {
			res.Instances = append(res.Instances, inst)
		}
	}
	out := &ec2.DescribeInstancesOutput{}
	if len(res.Instances) > 0 {
		out.Reservations = []ec2types.Reservation{res}
	}
	return out, nil
}

func (f *FakeEC2) CreateTags(_ context.Context, in *ec2.CreateTagsInput, _ ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("CreateTags"); err != nil {
		return nil, err
	}
	for _, id := range in.Resources {
		for i := range f.Instances {
			if aws.ToString(f.Instances[i].InstanceId) == id {
				f.Instances[i].Tags = mergeTags(f.Instances[i].Tags, in.Tags)
			}
		}
		for i := range f.VPCs {
			if aws.ToString(f.VPCs[i].VpcId) == id {
				f.VPCs[i].Tags = mergeTags(f.VPCs[i].Tags, in.Tags)
			}
		}
	}
	return &ec2.CreateTagsOutput{}, nil
}
