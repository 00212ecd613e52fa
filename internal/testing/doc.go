// Package testing provides test utilities, builders, and fixtures for unit and integration tests.
//
// This package centralizes common testing patterns to avoid duplication across test files:
//   - TopologyBuilder: Fluent builder for creating test topologies
//   - CloudFixture: RealClient wired to the in-memory AWS fakes
//   - ClusterFixture: Initialized checkpoint, recorder and provisioning context
//   - RecordingObserver: Observer that keeps every event for assertions
//
// Usage:
//
//	topo := testing.NewTopologyBuilder().
//	    WithZones("a", "b", "c").
//	    WithRole(config.RoleDB, "c5.2xlarge", 3).
//	    Build()
//
//	cloud := testing.NewCloudFixture(t, topo.Region)
//	cluster := testing.NewClusterFixture(t, topo)
//	ctx := cluster.Context(cloud.Client)
package testing
