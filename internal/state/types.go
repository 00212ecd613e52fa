package state

import (
	"cmp"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/imamik/dblab/internal/config"
)

// HostRecord is one provisioned instance. Records are replaced, never edited.
type HostRecord struct {
	Alias            string `json:"alias"`
	PublicIP         string `json:"public_ip"`
	PrivateIP        string `json:"private_ip"`
	AvailabilityZone string `json:"availability_zone"`
	InstanceID       string `json:"instance_id"`
}

// Ordinal returns the numeric suffix of the alias, or -1 if it has none.
func (h HostRecord) Ordinal() int {
	_, n, ok := config.ParseAlias(h.Alias)
	if !ok {
		return -1
	}
	return n
}

// Hosts groups host records by role. Within a role, records are ordered by ordinal.
type Hosts map[config.Role][]HostRecord

// Ordinals returns the ordinals in use for a role.
func (h Hosts) Ordinals(role config.Role) []int {
	out := make([]int, 0, len(h[role]))
	for _, r := range h[role] {
		if n := r.Ordinal(); n >= 0 {
			out = append(out, n)
		}
	}
	return out
}

// Count returns the total number of hosts across roles.
func (h Hosts) Count() int {
	n := 0
	for _, records := range h {
		n += len(records)
	}
	return n
}

// Merge replaces or appends the given records for a role, keyed by alias,
// leaving every other role untouched. The role's list stays ordinal-sorted.
func (h Hosts) Merge(role config.Role, records []HostRecord) {
	existing := h[role]
	for _, rec := range records {
		idx := slices.IndexFunc(existing, func(e HostRecord) bool { return e.Alias == rec.Alias })
		if idx >= 0 {
			existing[idx] = rec
		} else {
			existing = append(existing, rec)
		}
	}
	SortHosts(existing)
	h[role] = existing
}

// Clone returns a deep copy.
func (h Hosts) Clone() Hosts {
	out := make(Hosts, len(h))
	for role, records := range h {
		out[role] = slices.Clone(records)
	}
	return out
}

// SortHosts orders records by alias ordinal, then alias.
func SortHosts(records []HostRecord) {
	slices.SortFunc(records, func(a, b HostRecord) int {
		return cmp.Or(cmp.Compare(a.Ordinal(), b.Ordinal()), cmp.Compare(a.Alias, b.Alias))
	})
}

// ServiceKind identifies a managed service.
type ServiceKind string

const (
	ServiceEMR        ServiceKind = "emr"
	ServiceOpenSearch ServiceKind = "opensearch"
)

// ManagedServiceState is the last observed state of a managed service.
type ManagedServiceState struct {
	Kind      ServiceKind `json:"kind"`
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	State     string      `json:"state"`
	Endpoints []string    `json:"endpoints,omitempty"`
}

// Networking holds the ids produced by networking setup. Stable for the
// lifetime of a cluster.
type Networking struct {
	VPCID             string            `json:"vpc_id,omitempty"`
	SubnetIDs         map[string]string `json:"subnet_ids,omitempty"`
	SecurityGroupID   string            `json:"security_group_id,omitempty"`
	InternetGatewayID string            `json:"internet_gateway_id,omitempty"`
	RouteTableID      string            `json:"route_table_id,omitempty"`
}

// Ready reports whether instance creation can proceed.
func (n Networking) Ready() bool {
	return n.VPCID != "" && n.SecurityGroupID != "" && len(n.SubnetIDs) > 0
}

// Identity holds the instance role and profile attached to every host.
type Identity struct {
	RoleName            string `json:"role_name,omitempty"`
	InstanceProfileName string `json:"instance_profile_name,omitempty"`
	InstanceProfileARN  string `json:"instance_profile_arn,omitempty"`
}

// ClusterState is the reconciled cluster state persisted as the checkpoint.
type ClusterState struct {
	ClusterID        string                              `json:"cluster_id"`
	Name             string                              `json:"name"`
	Topology         *config.Topology                    `json:"topology"`
	Hosts            Hosts                               `json:"hosts"`
	Networking       Networking                          `json:"networking"`
	Bucket           string                              `json:"bucket"`
	Identity         Identity                            `json:"identity"`
	Services         map[ServiceKind]ManagedServiceState `json:"services"`
	InfrastructureUp bool                                `json:"infrastructure_up"`
	CreatedAt        time.Time                           `json:"created_at"`
	UpdatedAt        time.Time                           `json:"updated_at"`
}

// Empty returns a fresh state with no cluster identity.
func Empty() *ClusterState {
	return &ClusterState{
		Hosts:    Hosts{},
		Services: map[ServiceKind]ManagedServiceState{},
	}
}

// New mints a cluster identity for the given topology.
func New(topology *config.Topology, now time.Time) *ClusterState {
	s := Empty()
	s.ClusterID = uuid.NewString()
	s.Name = topology.Name
	s.Topology = topology.Clone()
	s.Bucket = BucketName(s.ClusterID)
	s.CreatedAt = now.UTC()
	s.UpdatedAt = s.CreatedAt
	return s
}

// Initialized reports whether the state carries a cluster identity.
func (s *ClusterState) Initialized() bool {
	return s != nil && s.ClusterID != ""
}

// Clone returns a deep copy.
func (s *ClusterState) Clone() *ClusterState {
	c := *s
	if s.Topology != nil {
		c.Topology = s.Topology.Clone()
	}
	c.Hosts = s.Hosts.Clone()
	c.Networking.SubnetIDs = maps.Clone(s.Networking.SubnetIDs)
	c.Services = make(map[ServiceKind]ManagedServiceState, len(s.Services))
	for k, v := range s.Services {
		v.Endpoints = slices.Clone(v.Endpoints)
		c.Services[k] = v
	}
	return &c
}

// BucketName derives the object-storage bucket name from the cluster id.
func BucketName(clusterID string) string {
	return "dblab-" + clusterID
}
