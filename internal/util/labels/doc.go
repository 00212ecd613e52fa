// Package labels provides consistent tagging for AWS resources.
//
// Every resource created for a cluster carries the cluster id tag, which is
// the only key resource discovery trusts. Instances additionally carry role
// and alias tags. Reserved keys use the "dblab:" prefix and cannot be
// overridden by user-supplied tags.
package labels
