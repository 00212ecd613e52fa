package testing

import (
	"github.com/imamik/dblab/internal/config"
)

// TopologyBuilder provides a fluent interface for constructing test topologies.
// Each method returns a new builder (immutable) for chaining.
type TopologyBuilder struct {
	topo config.Topology
}

// NewTopologyBuilder creates a builder with sensible defaults: one db
// instance in a single zone of us-west-2.
func NewTopologyBuilder() *TopologyBuilder {
	return &TopologyBuilder{
		topo: config.Topology{
			Name:    "test-lab",
			Region:  "us-west-2",
			Arch:    config.ArchAMD64,
			Zones:   []string{"a"},
			VPCCIDR: config.DefaultVPCCIDR,
			Roles: map[config.Role]config.RoleSpec{
				config.RoleDB: {Count: 1, InstanceType: "c5.2xlarge"},
			},
			SSHCIDRs: []string{"198.51.100.0/24"},
		},
	}
}

// WithName sets the cluster name.
func (b *TopologyBuilder) WithName(name string) *TopologyBuilder {
	nb := b.clone()
	nb.topo.Name = name
	return nb
}

// WithRegion sets the region.
func (b *TopologyBuilder) WithRegion(region string) *TopologyBuilder {
	nb := b.clone()
	nb.topo.Region = region
	return nb
}

// WithArch sets the required CPU architecture.
func (b *TopologyBuilder) WithArch(arch config.Arch) *TopologyBuilder {
	nb := b.clone()
	nb.topo.Arch = arch
	return nb
}

// WithZones sets the availability zones.
func (b *TopologyBuilder) WithZones(zones ...string) *TopologyBuilder {
	nb := b.clone()
	nb.topo.Zones = zones
	return nb
}

// WithRole sets the count and instance type of a role.
func (b *TopologyBuilder) WithRole(role config.Role, instanceType string, count int) *TopologyBuilder {
	nb := b.clone()
	nb.topo.Roles[role] = config.RoleSpec{Count: count, InstanceType: instanceType}
	return nb
}

// WithImageID pins an explicit image.
func (b *TopologyBuilder) WithImageID(id string) *TopologyBuilder {
	nb := b.clone()
	nb.topo.Image.ID = id
	return nb
}

// WithSSHCIDRs sets the operator CIDRs; none means detect the public IP.
func (b *TopologyBuilder) WithSSHCIDRs(cidrs ...string) *TopologyBuilder {
	nb := b.clone()
	nb.topo.SSHCIDRs = cidrs
	return nb
}

// WithTags sets user tags.
func (b *TopologyBuilder) WithTags(tags map[string]string) *TopologyBuilder {
	nb := b.clone()
	nb.topo.Tags = tags
	return nb
}

// WithEMR enables the EMR cluster.
func (b *TopologyBuilder) WithEMR() *TopologyBuilder {
	nb := b.clone()
	nb.topo.EMR.Enabled = true
	return nb
}

// WithOpenSearch enables the OpenSearch domain.
func (b *TopologyBuilder) WithOpenSearch() *TopologyBuilder {
	nb := b.clone()
	nb.topo.OpenSearch.Enabled = true
	return nb
}

// Build returns the topology with defaults applied.
func (b *TopologyBuilder) Build() *config.Topology {
	t := b.topo.Clone()
	t.ApplyDefaults()
	return t
}

func (b *TopologyBuilder) clone() *TopologyBuilder {
	return &TopologyBuilder{topo: *b.topo.Clone()}
}
