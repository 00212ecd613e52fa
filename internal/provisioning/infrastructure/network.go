package infrastructure

import (
	"fmt"

	"github.com/imamik/dblab/internal/config"
	"github.com/imamik/dblab/internal/provisioning"
	"github.com/imamik/dblab/internal/state"
	"github.com/imamik/dblab/internal/util/naming"
)

// subnetBits extends the VPC prefix for each zonal subnet (/16 -> /24).
const subnetBits = 8

// EnsureNetworking ensures VPC, subnets, gateway, route and security group,
// records the ids in the checkpoint and returns them.
func (p *Provisioner) EnsureNetworking(ctx *provisioning.Context) (state.Networking, error) {
	t := ctx.Topology
	name := t.Name
	var out state.Networking

	ctx.Observer.Printf("[%s] Reconciling VPC %s...", phase, naming.VPC(name))
	vpc, err := ctx.Infra.EnsureVPC(ctx, naming.VPC(name), t.VPCCIDR,
		ctx.Labels().WithName(naming.VPC(name)).Build())
	if err != nil {
		return out, fmt.Errorf("failed to ensure vpc: %w", err)
	}
	out.VPCID = vpc.ID

	out.SubnetIDs = make(map[string]string, len(t.Zones))
	for i, zone := range t.ZoneNames() {
		cidr, err := config.CIDRSubnet(t.VPCCIDR, subnetBits, i)
		if err != nil {
			return out, fmt.Errorf("failed to calculate subnet for zone %s: %w", zone, err)
		}
		subnetName := naming.Subnet(name, zone)
		subnet, err := ctx.Infra.EnsureSubnet(ctx, vpc.ID, subnetName, zone, cidr,
			ctx.Labels().WithName(subnetName).Build())
		if err != nil {
			return out, fmt.Errorf("failed to ensure subnet in %s: %w", zone, err)
		}
		out.SubnetIDs[zone] = subnet.ID
	}

	igwName := naming.InternetGateway(name)
	igw, err := ctx.Infra.EnsureInternetGateway(ctx, vpc.ID, igwName,
		ctx.Labels().WithName(igwName).Build())
	if err != nil {
		return out, fmt.Errorf("failed to ensure internet gateway: %w", err)
	}
	out.InternetGatewayID = igw.ID

	table, err := ctx.Infra.MainRouteTable(ctx, vpc.ID)
	if err != nil {
		return out, fmt.Errorf("failed to find main route table: %w", err)
	}
	if err := ctx.Infra.EnsureDefaultRoute(ctx, table, igw.ID); err != nil {
		return out, fmt.Errorf("failed to ensure default route: %w", err)
	}
	out.RouteTableID = table.ID

	sg, err := p.ensureSecurityGroup(ctx, vpc.ID)
	if err != nil {
		return out, err
	}
	out.SecurityGroupID = sg

	if err := ctx.Recorder.RecordNetworking(out); err != nil {
		return out, err
	}
	ctx.Observer.Printf("[%s] Networking ready: vpc=%s subnets=%d sg=%s", phase, out.VPCID, len(out.SubnetIDs), out.SecurityGroupID)
	return out, nil
}
