package labels

import (
	"maps"
	"strings"
)

// Standard tag keys for AWS resources.
const (
	// KeyClusterID identifies which cluster a resource belongs to
	KeyClusterID = "dblab:cluster-id"

	// KeyClusterName is the human-readable cluster name
	KeyClusterName = "dblab:cluster-name"

	// KeyRole identifies the role of an instance (db, app, control)
	KeyRole = "dblab:role"

	// KeyAlias is the stable host alias of an instance (db0, app1)
	KeyAlias = "dblab:alias"

	// KeyManagedBy identifies the management system
	KeyManagedBy = "dblab:managed-by"

	// KeyName is the AWS console display name
	KeyName = "Name"

	reservedPrefix = "dblab:"
)

// ManagedByDBLab is the KeyManagedBy value for resources created by this tool.
const ManagedByDBLab = "dblab"

// LabelBuilder provides a fluent interface for building resource tags.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a builder with the cluster identity pre-set.
func NewLabelBuilder(clusterID, clusterName string) *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyClusterID:   clusterID,
			KeyClusterName: clusterName,
			KeyManagedBy:   ManagedByDBLab,
		},
	}
}

// WithName sets the Name tag.
func (lb *LabelBuilder) WithName(name string) *LabelBuilder {
	lb.labels[KeyName] = name
	return lb
}

// WithRole adds a role tag.
func (lb *LabelBuilder) WithRole(role string) *LabelBuilder {
	lb.labels[KeyRole] = role
	return lb
}

// WithAlias adds an alias tag.
func (lb *LabelBuilder) WithAlias(alias string) *LabelBuilder {
	lb.labels[KeyAlias] = alias
	return lb
}

// Merge adds user-supplied tags. Reserved keys are never overridden.
func (lb *LabelBuilder) Merge(extra map[string]string) *LabelBuilder {
	for k, v := range extra {
		if IsReserved(k) {
			continue
		}
		lb.labels[k] = v
	}
	return lb
}

// Build returns a copy of the tags map.
func (lb *LabelBuilder) Build() map[string]string {
	return maps.Clone(lb.labels)
}

// IsReserved reports whether key is managed by dblab itself.
func IsReserved(key string) bool {
	return strings.HasPrefix(key, reservedPrefix) || key == KeyName
}

// SelectorForCluster returns the tag filter matching every resource of a cluster.
func SelectorForCluster(clusterID string) map[string]string {
	return map[string]string{KeyClusterID: clusterID}
}
