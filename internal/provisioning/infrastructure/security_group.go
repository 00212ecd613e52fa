package infrastructure

import (
	"fmt"
	"net"

	"github.com/samber/lo"

	"github.com/imamik/dblab/internal/platform/aws"
	"github.com/imamik/dblab/internal/provisioning"
	"github.com/imamik/dblab/internal/util/naming"
	"github.com/imamik/dblab/internal/util/netutil"
)

// SSHPort is opened to the operator CIDRs.
const SSHPort = 22

// ensureSecurityGroup ensures the cluster security group and its fixed rule set.
func (p *Provisioner) ensureSecurityGroup(ctx *provisioning.Context, vpcID string) (string, error) {
	name := naming.SecurityGroup(ctx.Topology.Name)
	ctx.Observer.Printf("[%s] Reconciling security group %s...", phase, name)

	sg, err := ctx.Infra.EnsureSecurityGroup(ctx, vpcID, name,
		fmt.Sprintf("dblab cluster %s", ctx.Topology.Name),
		ctx.Labels().WithName(name).Build())
	if err != nil {
		return "", fmt.Errorf("failed to ensure security group: %w", err)
	}

	sources, err := p.sshSources(ctx)
	if err != nil {
		return "", err
	}

	rules := IngressRules(sources, ctx.Topology.VPCCIDR)
	added, err := ctx.Infra.EnsureIngressRules(ctx, sg.ID, rules)
	if err != nil {
		return "", fmt.Errorf("failed to ensure ingress rules: %w", err)
	}
	if added > 0 {
		provisioning.LogResourceCreated(ctx.Observer, phase, "ingress rules", name, fmt.Sprintf("%d", added))
	}
	return sg.ID, nil
}

// sshSources returns the configured operator CIDRs, or the detected public
// IP as a /32 when none are configured.
func (p *Provisioner) sshSources(ctx *provisioning.Context) ([]string, error) {
	if sources := parseCIDRs(ctx.Topology.SSHCIDRs); len(sources) > 0 {
		return sources, nil
	}
	ip, err := ctx.Infra.GetPublicIP(ctx)
	if err != nil {
		return nil, fmt.Errorf("no ssh_cidrs configured and public IP detection failed: %w", err)
	}
	ctx.Observer.Printf("[%s] Allowing SSH from detected public IP %s", phase, ip)
	return []string{netutil.HostCIDR(ip)}, nil
}

// IngressRules builds the fixed rule set: SSH from each operator CIDR and
// all TCP and UDP traffic inside the VPC.
func IngressRules(sshSources []string, vpcCIDR string) []aws.IngressRule {
	rules := lo.Map(sshSources, func(cidr string, _ int) aws.IngressRule {
		return aws.IngressRule{
			Protocol:    "tcp",
			FromPort:    SSHPort,
			ToPort:      SSHPort,
			CIDR:        cidr,
			Description: "SSH from operator",
		}
	})
	for _, proto := range []string{"tcp", "udp"} {
		rules = append(rules, aws.IngressRule{
			Protocol:    proto,
			FromPort:    0,
			ToPort:      65535,
			CIDR:        vpcCIDR,
			Description: "All " + proto + " inside the VPC",
		})
	}
	return rules
}

// parseCIDRs normalizes CIDR strings to their network form, skipping invalid entries and duplicates.
func parseCIDRs(cidrs []string) []string {
	var out []string
	for _, cidr := range cidrs {
		_, n, err := net.ParseCIDR(cidr)
		if err == nil {
			out = append(out, n.String())
		}
	}
	return lo.Uniq(out)
}
