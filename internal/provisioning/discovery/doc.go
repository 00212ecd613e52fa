// Package discovery reconstructs the cluster inventory from the cloud.
//
// Instances are correlated with a cluster only through the cluster-id tag;
// IPs and instance ids are never trusted for identity. Role and alias come
// from tags, and anything that cannot be classified is skipped rather than
// failing the run.
package discovery
