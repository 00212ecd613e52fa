// Package config defines the declarative topology of a lab cluster and the
// runtime knobs (timeouts, retry budget) used while provisioning it.
//
// The [Topology] struct is the canonical desired state: instance count and
// type per [Role], CPU architecture, availability zones, image selection,
// storage, tags and the two optional managed services. It is loaded from
// dblab.yaml once at init time and snapshotted into the checkpoint.
package config
