// Package state holds the reconciled cluster state (the checkpoint) and its
// persistence.
//
// [ClusterState] is the durable handoff document consumed by status
// reporting and any later bootstrap tooling. [FileStore] persists it with an
// atomic replace so a reader never observes a partial write, and [Recorder]
// serializes concurrent incremental updates behind a single mutex.
package state
