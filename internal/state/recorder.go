package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/imamik/dblab/internal/config"
)

// Recorder is the single writer of the checkpoint. Every method applies an
// incremental update and persists it while holding one mutex, so concurrent
// callers can never drop each other's updates.
type Recorder struct {
	mu    sync.Mutex
	store Store
	state *ClusterState
	now   func() time.Time
}

// NewRecorder wraps a loaded state and the store it is persisted to.
func NewRecorder(store Store, s *ClusterState) *Recorder {
	return &Recorder{store: store, state: s, now: time.Now}
}

// RecordHosts merges the given hosts into the role's list and persists.
func (r *Recorder) RecordHosts(role config.Role, hosts []HostRecord) error {
	return r.Update(func(s *ClusterState) {
		s.Hosts.Merge(role, hosts)
	})
}

// RecordService stores the latest observed state of a managed service.
func (r *Recorder) RecordService(svc ManagedServiceState) error {
	return r.Update(func(s *ClusterState) {
		s.Services[svc.Kind] = svc
	})
}

// RecordNetworking stores the networking ids.
func (r *Recorder) RecordNetworking(n Networking) error {
	return r.Update(func(s *ClusterState) {
		s.Networking = n
	})
}

// Update applies fn to the state and persists the result under the lock.
func (r *Recorder) Update(fn func(*ClusterState)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Hosts == nil {
		r.state.Hosts = Hosts{}
	}
	if r.state.Services == nil {
		r.state.Services = map[ServiceKind]ManagedServiceState{}
	}
	fn(r.state)
	r.state.UpdatedAt = r.now().UTC()

	if err := r.store.Save(r.state); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Save persists the current state without modification.
func (r *Recorder) Save() error {
	return r.Update(func(*ClusterState) {})
}

// Snapshot returns a deep copy of the current state.
func (r *Recorder) Snapshot() *ClusterState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Clone()
}
