// Package provisioning provides shared types, interfaces, and orchestration for cluster provisioning.
//
// # Subpackages
//
//   - discovery/: Tag-driven inventory of hosts and managed services
//   - infrastructure/: VPC, subnets, gateway, routes, security group, identity, bucket
//   - image/: Machine image resolution
//   - compute/: Placement and per-role instance creation
//   - services/: EMR cluster and OpenSearch domain
//
// # Core Types
//
// Context carries the topology, cluster identity, state recorder, cloud client and observer.
// Phase defines a provisioning step with Name() and Provision() methods.
// Every persisted result goes through the Recorder held by the Context.
package provisioning
