package discovery

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/samber/lo"

	"github.com/imamik/dblab/internal/config"
	"github.com/imamik/dblab/internal/platform/aws"
	"github.com/imamik/dblab/internal/provisioning"
	"github.com/imamik/dblab/internal/state"
	"github.com/imamik/dblab/internal/util/labels"
	"github.com/imamik/dblab/internal/util/naming"
)

const phase = "discovery"

// States are the instance states that count as existing. Terminated and
// shutting-down instances are ignored.
var States = []string{"pending", "running", "stopping", "stopped"}

// Inventory is everything discovered for one cluster.
type Inventory struct {
	Hosts    state.Hosts
	Services map[state.ServiceKind]state.ManagedServiceState
}

// Discoverer queries the provider for resources belonging to a cluster.
type Discoverer struct {
	infra    aws.InfrastructureManager
	observer provisioning.Observer
}

// NewDiscoverer creates a discoverer.
func NewDiscoverer(infra aws.InfrastructureManager, observer provisioning.Observer) *Discoverer {
	return &Discoverer{infra: infra, observer: observer}
}

// Discover lists the cluster's instances and groups them by role, ordered by alias ordinal.
func (d *Discoverer) Discover(ctx context.Context, clusterID string) (state.Hosts, error) {
	instances, err := d.infra.DescribeInstances(ctx, labels.SelectorForCluster(clusterID), States)
	if err != nil {
		return nil, fmt.Errorf("failed to describe instances: %w", err)
	}

	byAlias := make(map[string]aws.Instance)
	for _, inst := range instances {
		role := config.ParseRole(inst.Tags[labels.KeyRole])
		if role == config.RoleUnknown {
			provisioning.LogResourceSkipped(d.observer, phase, inst.ID,
				fmt.Sprintf("unrecognized role tag %q", inst.Tags[labels.KeyRole]))
			continue
		}
		alias := inst.Tags[labels.KeyAlias]
		aliasRole, _, ok := config.ParseAlias(alias)
		if !ok || aliasRole != role {
			provisioning.LogResourceSkipped(d.observer, phase, inst.ID,
				fmt.Sprintf("alias %q does not belong to role %s", alias, role))
			continue
		}
		if prev, dup := byAlias[alias]; dup {
			keep, drop := preferred(prev, inst)
			provisioning.LogResourceSkipped(d.observer, phase, drop.ID,
				fmt.Sprintf("duplicate of %s for alias %s", keep.ID, alias))
			byAlias[alias] = keep
			continue
		}
		byAlias[alias] = inst
	}

	hosts := state.Hosts{}
	for alias, inst := range byAlias {
		role := config.ParseRole(inst.Tags[labels.KeyRole])
		hosts[role] = append(hosts[role], HostRecord(alias, inst))
	}
	for role := range hosts {
		state.SortHosts(hosts[role])
	}
	return hosts, nil
}

// preferred picks the instance to keep when two claim the same alias:
// a running one wins, otherwise the lower instance id.
func preferred(a, b aws.Instance) (keep, drop aws.Instance) {
	rank := func(i aws.Instance) int { return lo.Ternary(i.State == "running", 0, 1) }
	if cmp.Or(cmp.Compare(rank(a), rank(b)), cmp.Compare(a.ID, b.ID)) <= 0 {
		return a, b
	}
	return b, a
}

// HostRecord converts an instance into the record stored in the checkpoint.
func HostRecord(alias string, inst aws.Instance) state.HostRecord {
	return state.HostRecord{
		Alias:            alias,
		PublicIP:         inst.PublicIP,
		PrivateIP:        inst.PrivateIP,
		AvailabilityZone: inst.AvailabilityZone,
		InstanceID:       inst.ID,
	}
}

// Owned reports whether svc carries the clusterID tag.
func Owned(svc *aws.ServiceStatus, clusterID string) bool {
	return svc != nil && clusterID != "" && svc.Tags[labels.KeyClusterID] == clusterID
}

// DiscoverServices finds the enabled managed services of clusterID that
// already exist so they are adopted instead of created again. A service with
// the expected name but another cluster's tag is skipped.
func (d *Discoverer) DiscoverServices(ctx context.Context, clusterID string, topology *config.Topology) (map[state.ServiceKind]state.ManagedServiceState, error) {
	out := map[state.ServiceKind]state.ManagedServiceState{}

	if topology.EMR.Enabled {
		svc, err := d.infra.FindEMRCluster(ctx, naming.EMRCluster(topology.Name), clusterID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up emr cluster: %w", err)
		}
		if svc != nil {
			out[state.ServiceEMR] = ServiceState(state.ServiceEMR, svc)
		}
	}

	if topology.OpenSearch.Enabled {
		svc, err := d.infra.GetOpenSearchDomain(ctx, config.OpenSearchDomainName(topology.Name))
		if err != nil {
			return nil, fmt.Errorf("failed to look up opensearch domain: %w", err)
		}
		switch {
		case svc == nil || svc.State == aws.DomainStateDeleted:
		case !Owned(svc, clusterID):
			provisioning.LogResourceSkipped(d.observer, phase, svc.Name, "opensearch domain belongs to another cluster")
		default:
			out[state.ServiceOpenSearch] = ServiceState(state.ServiceOpenSearch, svc)
		}
	}

	return out, nil
}

// ServiceState converts a provider status into the checkpoint record.
func ServiceState(kind state.ServiceKind, svc *aws.ServiceStatus) state.ManagedServiceState {
	return state.ManagedServiceState{
		Kind:      kind,
		ID:        svc.ID,
		Name:      svc.Name,
		State:     svc.State,
		Endpoints: slices.Clone(svc.Endpoints),
	}
}

// Inventory runs both discoveries.
func (d *Discoverer) Inventory(ctx context.Context, clusterID string, topology *config.Topology) (*Inventory, error) {
	hosts, err := d.Discover(ctx, clusterID)
	if err != nil {
		return nil, err
	}
	services, err := d.DiscoverServices(ctx, clusterID, topology)
	if err != nil {
		return nil, err
	}
	return &Inventory{Hosts: hosts, Services: services}, nil
}

// Record writes the inventory into the checkpoint. The host mapping is
// replaced wholesale because the cloud is authoritative; discovered services
// are merged and services that were not found are kept.
func Record(recorder *state.Recorder, inv *Inventory) error {
	return recorder.Update(func(s *state.ClusterState) {
		s.Hosts = inv.Hosts.Clone()
		for kind, svc := range inv.Services {
			s.Services[kind] = svc
		}
	})
}
