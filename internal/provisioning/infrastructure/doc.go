// Package infrastructure provisions the cluster-wide AWS resources every
// instance depends on.
//
// It ensures the VPC, one subnet per availability zone, the internet gateway
// and default route, and the security group with its fixed ingress rule set,
// followed by the instance role and the cluster bucket. Every resource is
// looked up by name before creation, so repeated runs return the same ids.
package infrastructure
